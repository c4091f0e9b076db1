package storage

import (
	"context"

	"inmoveo/internal/adapters/storage/gcs"
	"inmoveo/internal/adapters/storage/localfs"
	"inmoveo/internal/config"
	apperr "inmoveo/internal/pkg/errors"
)

// NewProvider builds the backend selected by STORAGE_PROVIDER. The gcs
// provider holds a client that must be closed; it implements io.Closer.
func NewProvider(ctx context.Context, cfg config.Config) (Provider, error) {
	switch cfg.StorageProvider {
	case config.ProviderLocalFS, "":
		var opts []localfs.Option
		if cfg.LocalSigning() {
			opts = append(opts, localfs.WithSigner(localfs.NewSigner(cfg.LocalSigningKey, cfg.PublicBaseURL)))
		}
		return localfs.New(cfg.ArtifactsRoot, opts...), nil

	case config.ProviderGCS:
		c, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return c, nil

	default:
		return nil, apperr.ValidationField("STORAGE_PROVIDER", "unknown storage provider: "+cfg.StorageProvider)
	}
}
