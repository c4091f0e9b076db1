package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	apperr "inmoveo/internal/pkg/errors"
)

// stagingDir holds in-flight writes so a rename publishes each object whole.
const stagingDir = ".staging"

// LocalFS implements ports.ArtifactStore on a directory tree rooted at root.
type LocalFS struct {
	root   string
	signer *Signer
}

type Option func(*LocalFS)

// WithSigner enables SignedURL on this store.
func WithSigner(s *Signer) Option {
	return func(l *LocalFS) { l.signer = s }
}

func New(root string, opts ...Option) *LocalFS {
	l := &LocalFS{root: filepath.Clean(root)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) Root() string { return l.root }

// EnsureLayout creates the artifacts root and the staging folder.
func (l *LocalFS) EnsureLayout(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(l.root, stagingDir), 0o755); err != nil {
		return apperr.Wrap(err, "localfs.layout", "create artifacts root")
	}
	return nil
}

// ScriptKey stores scripts as "{slug}/{slug}-{filename}".
func (l *LocalFS) ScriptKey(slug, filename string) string {
	return slug + "/" + slug + "-" + filename
}

func (l *LocalFS) WriteText(ctx context.Context, key, content, contentType string) error {
	return l.write(ctx, key, []byte(content))
}

func (l *LocalFS) WriteBytes(ctx context.Context, key string, data []byte, contentType string) error {
	return l.write(ctx, key, data)
}

func (l *LocalFS) write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, clean, err := l.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperr.Wrap(err, "localfs.write", "create parent directory").WithField("key", clean)
	}
	staging := filepath.Join(l.root, stagingDir)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return apperr.Wrap(err, "localfs.write", "create staging directory")
	}

	tmp, err := os.CreateTemp(staging, "obj-*")
	if err != nil {
		return apperr.Wrap(err, "localfs.write", "create temp file").WithField("key", clean)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.Wrap(err, "localfs.write", "write temp file").WithField("key", clean)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Wrap(err, "localfs.write", "close temp file").WithField("key", clean)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return apperr.Wrap(err, "localfs.write", "chmod temp file").WithField("key", clean)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return apperr.Wrap(err, "localfs.write", "publish object").WithField("key", clean)
	}
	return nil
}

func (l *LocalFS) ReadText(ctx context.Context, key string) (string, error) {
	b, err := l.ReadBytes(ctx, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (l *LocalFS) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, clean, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isDirErr(p) {
			return nil, apperr.NotFound("artifact", clean)
		}
		return nil, apperr.Wrap(err, "localfs.read", "read object").WithField("key", clean)
	}
	return b, nil
}

// Open returns the object file for streaming (range requests, large videos).
func (l *LocalFS) Open(key string) (*os.File, error) {
	p, clean, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if err != nil || st.IsDir() {
		return nil, apperr.NotFound("artifact", clean)
	}
	return os.Open(p)
}

func (l *LocalFS) Exists(ctx context.Context, key string) bool {
	p, _, err := l.resolve(key)
	if err != nil {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func (l *LocalFS) Stat(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, clean, err := l.resolve(key)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(p)
	switch {
	case err == nil:
		return st.Mode().IsRegular(), nil
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return false, nil
	case errors.Is(err, fs.ErrPermission):
		return false, apperr.Permission("localfs.stat", err).WithField("key", clean)
	default:
		return false, apperr.Wrap(err, "localfs.stat", "stat object").WithField("key", clean)
	}
}

func (l *LocalFS) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimLeft(strings.ReplaceAll(prefix, "\\", "/"), "/")

	dir := prefix
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir)
	}
	if dir == "." || dir == "" {
		dir = ""
	} else if _, _, err := l.resolve(dir); err != nil {
		return nil, err
	}

	base := filepath.Join(l.root, filepath.FromSlash(dir))
	out := []string{}
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == stagingDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "localfs.list", "walk artifacts").WithField("prefix", prefix)
	}

	sort.Strings(out)
	return out, nil
}

func (l *LocalFS) ListNamespaces(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, apperr.Wrap(err, "localfs.namespaces", "read artifacts root")
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// resolve maps a key to a path under root and rejects traversal.
func (l *LocalFS) resolve(key string) (string, string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), clean, nil
}

func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimLeft(strings.TrimPrefix(key, "./"), "/")
	if key == "" {
		return "", apperr.ValidationField("key", "object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.HasPrefix(cleaned, stagingDir) {
		return "", apperr.ValidationField("key", fmt.Sprintf("invalid object key: %q", key))
	}
	return cleaned, nil
}

func isDirErr(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}
