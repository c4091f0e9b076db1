package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/ports"
)

// Config selects the bucket and, optionally, a service account key file.
// Without a key file the client uses Application Default Credentials and
// signs URLs through the IAM signBlob API, which requires the identity to
// hold roles/iam.serviceAccountTokenCreator on itself.
type Config struct {
	Bucket          string
	CredentialsFile string
}

// Client implements ports.ArtifactStore and ports.URLSigner on one bucket.
type Client struct {
	client *storage.Client
	bucket string
	bh     *storage.BucketHandle

	// Set when a service account key is available; signing is then local.
	accessID   string
	privateKey []byte

	now func() time.Time
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, apperr.ValidationField("GCS_BUCKET", "bucket is required for the gcs provider")
	}

	var (
		opts       []option.ClientOption
		accessID   string
		privateKey []byte
	)
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, apperr.Wrap(err, "gcs.new", "read credentials file")
		}
		creds, err := google.CredentialsFromJSON(ctx, data, storage.ScopeReadWrite)
		if err != nil {
			return nil, apperr.Wrap(err, "gcs.new", "parse credentials")
		}
		opts = append(opts, option.WithCredentials(creds))

		if jwtCfg, err := google.JWTConfigFromJSON(data); err == nil {
			accessID = jwtCfg.Email
			privateKey = jwtCfg.PrivateKey
		}
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperr.Wrap(err, "gcs.new", "create storage client")
	}

	c := newWithClient(client, cfg.Bucket)
	c.accessID = accessID
	c.privateKey = privateKey
	return c, nil
}

func newWithClient(client *storage.Client, bucket string) *Client {
	return &Client{
		client: client,
		bucket: bucket,
		bh:     client.Bucket(bucket),
		now:    time.Now,
	}
}

func (c *Client) Provider() string { return "gcs" }

func (c *Client) Close() error { return c.client.Close() }

// EnsureLayout checks the bucket is reachable. Prefixes need no creation.
func (c *Client) EnsureLayout(ctx context.Context) error {
	if _, err := c.bh.Attrs(ctx); err != nil {
		return classify(err, "gcs.layout", c.bucket)
	}
	return nil
}

func (c *Client) WriteText(ctx context.Context, key, content, contentType string) error {
	return c.write(ctx, key, strings.NewReader(content), contentType)
}

func (c *Client) WriteBytes(ctx context.Context, key string, data []byte, contentType string) error {
	return c.write(ctx, key, bytes.NewReader(data), contentType)
}

func (c *Client) write(ctx context.Context, key string, r io.Reader, contentType string) error {
	if key == "" {
		return apperr.ValidationField("key", "object key is required")
	}

	w := c.bh.Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return classify(err, "gcs.write", key)
	}
	if err := w.Close(); err != nil {
		return classify(err, "gcs.write", key)
	}
	return nil
}

func (c *Client) ReadText(ctx context.Context, key string) (string, error) {
	b, err := c.ReadBytes(ctx, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Client) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	rc, err := c.bh.Object(key).NewReader(ctx)
	if err != nil {
		return nil, classify(err, "gcs.read", key)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, classify(err, "gcs.read", key)
	}
	return b, nil
}

func (c *Client) Exists(ctx context.Context, key string) bool {
	ok, _ := c.Stat(ctx, key)
	return ok
}

// Stat reports whether key exists. Lookup failures other than "no such
// object" are classified, so a missing read grant is not mistaken for a
// missing object.
func (c *Client) Stat(ctx context.Context, key string) (bool, error) {
	_, err := c.bh.Object(key).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, classify(err, "gcs.stat", key)
	}
}

func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	q := &storage.Query{Prefix: prefix}
	if err := q.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, apperr.Wrap(err, "gcs.list", "select attrs")
	}

	out := []string{}
	it := c.bh.Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classify(err, "gcs.list", prefix)
		}
		out = append(out, attrs.Name)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Client) ListNamespaces(ctx context.Context) ([]string, error) {
	it := c.bh.Objects(ctx, &storage.Query{Delimiter: "/"})

	var prefixes []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classify(err, "gcs.namespaces", c.bucket)
		}
		if attrs.Prefix != "" {
			prefixes = append(prefixes, attrs.Prefix)
		}
	}
	return namespaces(prefixes), nil
}

// SignedURL issues a V4 GET URL for key valid for ttl.
func (c *Client) SignedURL(ctx context.Context, key string, ttl time.Duration) (ports.SignedURLOutput, error) {
	expires := c.now().UTC().Add(ttl)
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expires,
	}
	if c.accessID != "" && len(c.privateKey) > 0 {
		opts.GoogleAccessID = c.accessID
		opts.PrivateKey = c.privateKey
	}

	u, err := c.bh.SignedURL(key, opts)
	if err != nil {
		// No key and no signBlob permission on the runtime identity.
		return ports.SignedURLOutput{}, apperr.Permission("gcs.sign", err).WithField("key", key)
	}
	return ports.SignedURLOutput{URL: u, ExpiresAt: expires}, nil
}

// namespaces turns delimiter prefixes ("slug/") into sorted, distinct slugs.
func namespaces(prefixes []string) []string {
	seen := make(map[string]struct{}, len(prefixes))
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// classify maps client errors onto the service taxonomy.
func classify(err error, op, key string) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return apperr.NotFound("artifact", key)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(err, op, "request canceled")
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Permission(op, err).WithField("key", key)
		case http.StatusNotFound:
			return apperr.NotFound("artifact", key)
		case http.StatusBadRequest:
			return apperr.WrapWithCode(err, apperr.CodeValidation, op, fmt.Sprintf("rejected request for %s", key))
		}
	}
	return apperr.Unavailable(op, "gcs", err).WithField("key", key)
}
