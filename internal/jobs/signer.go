package jobs

import (
	"context"
	"time"

	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/pkg/validate"
	"inmoveo/internal/ports"
	"inmoveo/internal/slug"
)

const (
	DefaultTTLMinutes = 60
	// MaxTTLMinutes is the longest V4 signed URL GCS accepts (7 days).
	MaxTTLMinutes = 7 * 24 * 60
)

type SignedURL struct {
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
	TTLMinutes int       `json:"ttl_minutes"`
}

// Issuer signs read-only links to a job's result.mp4. It keeps no state.
type Issuer struct {
	store  ports.ArtifactStore
	signer ports.URLSigner
}

func NewIssuer(store ports.ArtifactStore) *Issuer {
	signer, _ := store.(ports.URLSigner)
	return &Issuer{store: store, signer: signer}
}

type ttlParams struct {
	Minutes int `json:"minutes" validate:"gte=0,lte=10080"`
}

func (i *Issuer) Issue(ctx context.Context, raw string, ttlMinutes int) (SignedURL, error) {
	id, err := slug.Validate(raw)
	if err != nil {
		return SignedURL{}, err
	}
	if err := validate.Struct(ttlParams{Minutes: ttlMinutes}); err != nil {
		return SignedURL{}, err
	}
	if ttlMinutes == 0 {
		ttlMinutes = DefaultTTLMinutes
	}
	key := id + "/" + resultFile
	found, err := i.exists(ctx, key)
	if err != nil {
		return SignedURL{}, apperr.Wrap(err, "jobs.signed_url", "look up result video").WithField("slug", id)
	}
	if !found {
		return SignedURL{}, apperr.NotFound("video", key).WithField("reason", "video not yet produced")
	}

	if i.signer == nil {
		return SignedURL{}, apperr.Newf(apperr.CodeFailedPrecond, "storage provider %s cannot sign urls", i.store.Provider())
	}

	out, err := i.signer.SignedURL(ctx, key, time.Duration(ttlMinutes)*time.Minute)
	if err != nil {
		return SignedURL{}, apperr.Wrap(err, "jobs.signed_url", "sign result url").WithField("slug", id)
	}
	return SignedURL{URL: out.URL, ExpiresAt: out.ExpiresAt, TTLMinutes: ttlMinutes}, nil
}

func (i *Issuer) exists(ctx context.Context, key string) (bool, error) {
	if st, ok := i.store.(ports.Statter); ok {
		return st.Stat(ctx, key)
	}
	return i.store.Exists(ctx, key), nil
}
