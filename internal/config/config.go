package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/pkg/validate"
)

const (
	ProviderLocalFS = "localfs"
	ProviderGCS     = "gcs"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" validate:"required,numeric"`

	StorageProvider    string `env:"STORAGE_PROVIDER" validate:"oneof=localfs gcs"`
	ArtifactsRoot      string `env:"ARTIFACTS_ROOT" validate:"required_if=StorageProvider localfs"`
	GCSBucket          string `env:"GCS_BUCKET" validate:"required_if=StorageProvider gcs"`
	GCSCredentialsFile string `env:"GCS_CREDENTIALS_FILE"`

	// Local signed links; both empty disables result_url on localfs.
	PublicBaseURL   string `env:"PUBLIC_BASE_URL" validate:"omitempty,url"`
	LocalSigningKey string `env:"LOCAL_SIGNING_KEY"`

	SlugRequired bool `env:"SLUG_REQUIRED"`

	DatabaseURL  string `env:"DATABASE_URL"`
	RedisAddr    string `env:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	JobQueueName string `env:"JOB_QUEUE_NAME" validate:"required"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
	MaxUploadMB        int64    `env:"MAX_UPLOAD_MB" validate:"gte=1,lte=1024"`
}

// Load reads .env files when present, then the process environment.
// Variables already set in the environment win over the files.
func Load() (Config, error) {
	_ = godotenv.Load(".env.local", ".env")
	return FromEnv()
}

func FromEnv() (Config, error) {
	c := Config{
		HTTPPort:           getenv("HTTP_PORT", "8080"),
		StorageProvider:    strings.ToLower(getenv("STORAGE_PROVIDER", ProviderLocalFS)),
		ArtifactsRoot:      getenv("ARTIFACTS_ROOT", "./artifacts"),
		GCSBucket:          getenv("GCS_BUCKET", ""),
		GCSCredentialsFile: getenv("GCS_CREDENTIALS_FILE", ""),
		PublicBaseURL:      getenv("PUBLIC_BASE_URL", ""),
		LocalSigningKey:    getenv("LOCAL_SIGNING_KEY", ""),
		DatabaseURL:        getenv("DATABASE_URL", ""),
		RedisAddr:          getenv("REDIS_ADDR", ""),
		JobQueueName:       getenv("JOB_QUEUE_NAME", "inmoveo:jobs"),
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "")),
	}

	var err error
	if c.SlugRequired, err = getbool("SLUG_REQUIRED", false); err != nil {
		return Config{}, err
	}
	if c.MaxUploadMB, err = getint("MAX_UPLOAD_MB", 64); err != nil {
		return Config{}, err
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:" + c.HTTPPort
	}

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LocalSigning reports whether localfs can issue signed links.
func (c Config) LocalSigning() bool {
	return c.LocalSigningKey != ""
}

func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) (bool, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperr.ValidationField(k, k+" must be a boolean")
	}
	return b, nil
}

func getint(k string, def int64) (int64, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, apperr.ValidationField(k, k+" must be an integer")
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
