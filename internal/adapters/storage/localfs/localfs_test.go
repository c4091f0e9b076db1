package localfs

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/ports"
)

var _ ports.ArtifactStore = (*LocalFS)(nil)
var _ ports.URLSigner = (*LocalFS)(nil)

func newStore(t *testing.T) *LocalFS {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "artifacts"))
	if err := s.EnsureLayout(context.Background()); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	return s
}

func TestEnsureLayoutIdempotent(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 3; i++ {
		if err := s.EnsureLayout(context.Background()); err != nil {
			t.Fatalf("EnsureLayout #%d: %v", i, err)
		}
	}
	if st, err := os.Stat(s.Root()); err != nil || !st.IsDir() {
		t.Fatalf("expected root dir, got %v", err)
	}
}

func TestWriteReadText(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.WriteText(ctx, "demo/nested/deep/manifest.json", `{"a":1}`, "application/json"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	got, err := s.ReadText(ctx, "demo/nested/deep/manifest.json")
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("unexpected content %q", got)
	}

	if err := s.WriteText(ctx, "demo/nested/deep/manifest.json", "v2", "text/plain"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := s.ReadText(ctx, "demo/nested/deep/manifest.json"); got != "v2" {
		t.Errorf("expected overwrite, got %q", got)
	}
}

func TestWriteBytesPreservesBinary(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	data := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0x80, 0xc3, 0x28, '\n', '\r'}
	if err := s.WriteBytes(ctx, "demo/imagenes_propiedad/a.jpg", data, "image/jpeg"); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	got, err := s.ReadBytes(ctx, "demo/imagenes_propiedad/a.jpg")
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("bytes changed: %x vs %x", got, data)
	}
}

func TestReadMissing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_ = s.WriteText(ctx, "demo/results.csv", "x", "text/csv")

	for _, key := range []string{"demo/manifest.json", "nope/results.csv", "demo"} {
		_, err := s.ReadText(ctx, key)
		if !apperr.IsNotFound(err) {
			t.Errorf("ReadText(%q): expected NOT_FOUND, got %v", key, err)
		}
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_ = s.WriteText(ctx, "demo/result.mp4", "mp4", "video/mp4")

	if !s.Exists(ctx, "demo/result.mp4") {
		t.Error("expected object to exist")
	}
	if s.Exists(ctx, "demo") {
		t.Error("a directory is not an object")
	}
	if s.Exists(ctx, "demo/other.mp4") {
		t.Error("expected missing object")
	}
	if s.Exists(ctx, "../etc/passwd") {
		t.Error("traversal must never exist")
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, k := range []string{
		"demo/results.csv",
		"demo/manifest.json",
		"demo/imagenes_propiedad/b.jpg",
		"demo/imagenes_propiedad/a.jpg",
		"demo-2/manifest.json",
	} {
		if err := s.WriteText(ctx, k, "x", "text/plain"); err != nil {
			t.Fatalf("write %s: %v", k, err)
		}
	}

	got, err := s.List(ctx, "demo/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{
		"demo/imagenes_propiedad/a.jpg",
		"demo/imagenes_propiedad/b.jpg",
		"demo/manifest.json",
		"demo/results.csv",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List(demo/) = %v, want %v", got, want)
	}

	got, _ = s.List(ctx, "demo")
	if len(got) != 5 {
		t.Errorf("bare prefix should match both namespaces like an object store, got %v", got)
	}

	got, err = s.List(ctx, "missing/")
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty list for missing prefix, got %v %v", got, err)
	}
}

func TestListNamespaces(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, k := range []string{"zeta/manifest.json", "alpha/manifest.json", "alpha/results.csv", "mid/x"} {
		_ = s.WriteText(ctx, k, "x", "text/plain")
	}

	first, err := s.ListNamespaces(ctx)
	if err != nil {
		t.Fatalf("ListNamespaces: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("got %v, want %v", first, want)
	}

	second, _ := s.ListNamespaces(ctx)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("listing is not stable: %v vs %v", first, second)
	}
}

func TestListNamespacesMissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created"))
	got, err := s.ListNamespaces(context.Background())
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty list, got %v %v", got, err)
	}
}

func TestRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, key := range []string{"", "..", "../x", "a/../../x", ".staging/obj"} {
		err := s.WriteText(ctx, key, "x", "text/plain")
		if !apperr.IsCode(err, apperr.CodeValidation) {
			t.Errorf("WriteText(%q): expected VALIDATION_ERROR, got %v", key, err)
		}
	}
}

func TestScriptKey(t *testing.T) {
	s := newStore(t)
	if got := s.ScriptKey("demo", "guion.txt"); got != "demo/demo-guion.txt" {
		t.Errorf("unexpected script key %q", got)
	}
}

func TestSignedURLRoundTrip(t *testing.T) {
	ctx := context.Background()
	signer := NewSigner("secret", "http://localhost:8080/")
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return now }
	s := New(t.TempDir(), WithSigner(signer))

	out, err := s.SignedURL(ctx, "demo slug/result.mp4", 15*time.Minute)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if !out.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Errorf("unexpected expiry %v", out.ExpiresAt)
	}
	if !strings.HasPrefix(out.URL, "http://localhost:8080/files/demo%20slug/result.mp4?") {
		t.Errorf("unexpected url %s", out.URL)
	}

	u, err := url.Parse(out.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if err := s.Verify("demo slug/result.mp4", q.Get("expires"), q.Get("signature")); err != nil {
		t.Errorf("expected valid link, got %v", err)
	}
	if err := s.Verify("demo slug/manifest.json", q.Get("expires"), q.Get("signature")); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Errorf("signature must bind the key, got %v", err)
	}

	now = now.Add(16 * time.Minute)
	if err := s.Verify("demo slug/result.mp4", q.Get("expires"), q.Get("signature")); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Errorf("expected expired link, got %v", err)
	}
}

func TestSignedURLWithoutSigner(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.SignedURL(context.Background(), "demo/result.mp4", time.Minute)
	if !apperr.IsCode(err, apperr.CodeFailedPrecond) {
		t.Errorf("expected FAILED_PRECONDITION, got %v", err)
	}
}

func TestStat(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.WriteText(ctx, "demo/manifest.json", "{}", "application/json"); err != nil {
		t.Fatalf("write: %v", err)
	}

	if ok, err := s.Stat(ctx, "demo/manifest.json"); err != nil || !ok {
		t.Errorf("Stat(existing) = %v, %v", ok, err)
	}
	if ok, err := s.Stat(ctx, "demo/result.mp4"); err != nil || ok {
		t.Errorf("Stat(missing) = %v, %v", ok, err)
	}
	if ok, err := s.Stat(ctx, "demo"); err != nil || ok {
		t.Errorf("Stat(dir) = %v, %v", ok, err)
	}
	if _, err := s.Stat(ctx, "../escape"); err == nil {
		t.Error("expected traversal to be rejected")
	}
}
