package localfs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/ports"
)

// Signer issues HMAC-signed download links served by the API under /files/.
// It is the local stand-in for cloud signed URLs.
type Signer struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

func NewSigner(secret, baseURL string) *Signer {
	return &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (l *LocalFS) SignedURL(ctx context.Context, key string, ttl time.Duration) (ports.SignedURLOutput, error) {
	if l.signer == nil {
		return ports.SignedURLOutput{}, apperr.New(apperr.CodeFailedPrecond, "local signing key is not configured")
	}
	clean, err := sanitizeKey(key)
	if err != nil {
		return ports.SignedURLOutput{}, err
	}
	return l.signer.Sign(clean, ttl), nil
}

// Verify checks a link produced by SignedURL.
func (l *LocalFS) Verify(key, expires, signature string) error {
	if l.signer == nil {
		return apperr.New(apperr.CodeFailedPrecond, "local signing key is not configured")
	}
	clean, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	return l.signer.Verify(clean, expires, signature)
}

func (s *Signer) Sign(key string, ttl time.Duration) ports.SignedURLOutput {
	exp := s.now().UTC().Add(ttl).Truncate(time.Second)
	expStr := strconv.FormatInt(exp.Unix(), 10)

	q := url.Values{}
	q.Set("expires", expStr)
	q.Set("signature", s.mac(key, expStr))

	return ports.SignedURLOutput{
		URL:       s.baseURL + "/files/" + escapeKey(key) + "?" + q.Encode(),
		ExpiresAt: exp,
	}
}

func (s *Signer) Verify(key, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return apperr.New(apperr.CodeForbidden, "invalid link")
	}
	want := s.mac(key, expires)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return apperr.New(apperr.CodeForbidden, "invalid link signature")
	}
	if s.now().Unix() > exp {
		return apperr.New(apperr.CodeForbidden, "link expired")
	}
	return nil
}

func (s *Signer) mac(key, expires string) string {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(key))
	m.Write([]byte{'\n'})
	m.Write([]byte(expires))
	return hex.EncodeToString(m.Sum(nil))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
