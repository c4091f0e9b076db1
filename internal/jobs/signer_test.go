package jobs

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"inmoveo/internal/adapters/storage/localfs"
	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/ports"
)

// stubSigner wraps a store with a canned signing result.
type stubSigner struct {
	ports.ArtifactStore
	err  error
	ttls []time.Duration
	mu   sync.Mutex
}

func (s *stubSigner) SignedURL(_ context.Context, key string, ttl time.Duration) (ports.SignedURLOutput, error) {
	s.mu.Lock()
	s.ttls = append(s.ttls, ttl)
	s.mu.Unlock()
	if s.err != nil {
		return ports.SignedURLOutput{}, s.err
	}
	return ports.SignedURLOutput{URL: "https://storage.example/" + key, ExpiresAt: fixedNow.Add(ttl)}, nil
}

func withVideo(t *testing.T, store ports.ArtifactStore, slug string) {
	t.Helper()
	if err := store.WriteBytes(context.Background(), slug+"/result.mp4", []byte("mp4"), "video/mp4"); err != nil {
		t.Fatalf("write video: %v", err)
	}
}

func TestIssueLocalSignedURL(t *testing.T) {
	ctx := context.Background()
	signer := localfs.NewSigner("secret", "http://localhost:8080")
	store := newLocal(t, localfs.WithSigner(signer))
	withVideo(t, store, "listo")

	before := time.Now()
	out, err := NewIssuer(store).Issue(ctx, "listo", 15)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if out.TTLMinutes != 15 {
		t.Errorf("TTLMinutes = %d", out.TTLMinutes)
	}
	if d := out.ExpiresAt.Sub(before); d < 14*time.Minute || d > 16*time.Minute {
		t.Errorf("expiry %v is not ~15 minutes out", d)
	}

	u, err := url.Parse(out.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Path != "/files/listo/result.mp4" {
		t.Errorf("path = %q", u.Path)
	}
	if err := store.Verify("listo/result.mp4", u.Query().Get("expires"), u.Query().Get("signature")); err != nil {
		t.Errorf("issued link does not verify: %v", err)
	}
}

func TestIssueDefaultsTTL(t *testing.T) {
	stub := &stubSigner{ArtifactStore: newLocal(t)}
	withVideo(t, stub, "listo")

	out, err := NewIssuer(stub).Issue(context.Background(), "listo", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if out.TTLMinutes != DefaultTTLMinutes || stub.ttls[0] != time.Hour {
		t.Errorf("expected 60 minute default, got %d / %v", out.TTLMinutes, stub.ttls)
	}
	if !out.ExpiresAt.Equal(fixedNow.Add(time.Hour)) || !strings.HasSuffix(out.URL, "listo/result.mp4") {
		t.Errorf("unexpected result %+v", out)
	}
}

func TestIssueRejects(t *testing.T) {
	stub := &stubSigner{ArtifactStore: newLocal(t)}
	withVideo(t, stub, "listo")
	iss := NewIssuer(stub)

	tests := []struct {
		name string
		slug string
		ttl  int
		code apperr.Code
	}{
		{"bad slug", "Listo!", 60, apperr.CodeInvalidSlug},
		{"negative ttl", "listo", -1, apperr.CodeValidation},
		{"ttl above seven days", "listo", MaxTTLMinutes + 1, apperr.CodeValidation},
		{"video not produced", "pendiente", 60, apperr.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := iss.Issue(context.Background(), tt.slug, tt.ttl)
			if !apperr.IsCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
	if len(stub.ttls) != 0 {
		t.Errorf("signer must not be called for rejected requests, got %v", stub.ttls)
	}

	if _, err := iss.Issue(context.Background(), "listo", MaxTTLMinutes); err != nil {
		t.Errorf("seven days is allowed: %v", err)
	}
}

func TestIssueWithoutSigner(t *testing.T) {
	store := plainStore{newLocal(t)}
	withVideo(t, store, "listo")

	_, err := NewIssuer(store).Issue(context.Background(), "listo", 60)
	if !apperr.IsCode(err, apperr.CodeFailedPrecond) {
		t.Errorf("expected FAILED_PRECONDITION, got %v", err)
	}
}

func TestIssueSigningFailure(t *testing.T) {
	stub := &stubSigner{
		ArtifactStore: newLocal(t),
		err:           apperr.Permission("gcs.sign", errors.New("iam.serviceAccounts.signBlob denied")),
	}
	withVideo(t, stub, "listo")

	_, err := NewIssuer(stub).Issue(context.Background(), "listo", 60)
	if !apperr.IsPermission(err) {
		t.Errorf("expected PERMISSION_ERROR, got %v", err)
	}
}

func TestIssueConcurrent(t *testing.T) {
	stub := &stubSigner{ArtifactStore: newLocal(t)}
	withVideo(t, stub, "listo")
	iss := NewIssuer(stub)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := iss.Issue(context.Background(), "listo", 30); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent issue: %v", err)
	}
}

func TestServiceGetSignedURL(t *testing.T) {
	stub := &stubSigner{ArtifactStore: newLocal(t)}
	svc := newService(t, stub, nil)

	if _, err := svc.GetSignedURL(context.Background(), "listo", 60); !apperr.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND before the video exists, got %v", err)
	}
	withVideo(t, stub, "listo")
	if out, err := svc.GetSignedURL(context.Background(), "listo", 60); err != nil || out.URL == "" {
		t.Errorf("expected url, got %+v %v", out, err)
	}
}

// statStore fails every existence lookup with err.
type statStore struct {
	ports.ArtifactStore
	err error
}

func (s statStore) Stat(context.Context, string) (bool, error) { return false, s.err }

func (s statStore) SignedURL(context.Context, string, time.Duration) (ports.SignedURLOutput, error) {
	return ports.SignedURLOutput{URL: "https://storage.example/signed"}, nil
}

func TestIssueLookupFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Code
	}{
		{"read grant missing", apperr.Permission("gcs.stat", errors.New("403 forbidden")), apperr.CodePermission},
		{"store unreachable", apperr.Unavailable("gcs.stat", "gcs", errors.New("503 backend error")), apperr.CodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIssuer(statStore{ArtifactStore: newLocal(t), err: tt.err}).Issue(context.Background(), "demo-parque-a1", 60)
			if !apperr.IsCode(err, tt.want) {
				t.Errorf("expected %s, got %v", tt.want, err)
			}
			if apperr.IsNotFound(err) {
				t.Error("lookup failure must not read as a missing video")
			}
		})
	}
}

func TestIssueMissingVideoWithoutSigner(t *testing.T) {
	store := plainStore{newLocal(t)}

	_, err := NewIssuer(store).Issue(context.Background(), "sin-video", 60)
	if !apperr.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND before the signer check, got %v", err)
	}

	local := newLocal(t)
	_, err = NewIssuer(local).Issue(context.Background(), "sin-video", 60)
	if !apperr.IsNotFound(err) {
		t.Errorf("localfs without signing key: expected NOT_FOUND, got %v", err)
	}
}
