package storage

import (
	"context"
	"testing"

	"inmoveo/internal/adapters/storage/localfs"
	"inmoveo/internal/config"
	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/ports"
)

func TestNewProviderLocalFS(t *testing.T) {
	root := t.TempDir()
	p, err := NewProvider(context.Background(), config.Config{StorageProvider: config.ProviderLocalFS, ArtifactsRoot: root})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	fs, ok := p.(*localfs.LocalFS)
	if !ok {
		t.Fatalf("expected *localfs.LocalFS, got %T", p)
	}
	if fs.Root() != root {
		t.Errorf("root = %q, want %q", fs.Root(), root)
	}

	_, err = p.(ports.URLSigner).SignedURL(context.Background(), "demo/result.mp4", 0)
	if !apperr.IsCode(err, apperr.CodeFailedPrecond) {
		t.Errorf("signing without key: expected FAILED_PRECONDITION, got %v", err)
	}
}

func TestNewProviderLocalFSWithSigning(t *testing.T) {
	p, err := NewProvider(context.Background(), config.Config{
		StorageProvider: config.ProviderLocalFS,
		ArtifactsRoot:   t.TempDir(),
		LocalSigningKey: "secret",
		PublicBaseURL:   "http://localhost:8080",
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	out, err := p.(ports.URLSigner).SignedURL(context.Background(), "demo/result.mp4", 60)
	if err != nil || out.URL == "" {
		t.Errorf("expected signed url, got %v %v", out, err)
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(context.Background(), config.Config{StorageProvider: "gdrive"})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestNewProviderGCSRequiresBucket(t *testing.T) {
	_, err := NewProvider(context.Background(), config.Config{StorageProvider: config.ProviderGCS})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}
