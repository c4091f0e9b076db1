package handlers

import (
	"context"
	"os"

	"inmoveo/internal/jobs"
	"inmoveo/internal/pkg/logger"
	"inmoveo/internal/ports"
)

// FileStore serves objects behind locally signed links.
type FileStore interface {
	Verify(key, expires, signature string) error
	Open(key string) (*os.File, error)
}

// Check is a named dependency probe for the deep health check.
type Check func(ctx context.Context) error

type Deps struct {
	Jobs  *jobs.Service
	Store ports.ArtifactStore
	// Files is set only when the store can serve signed links itself.
	Files   FileStore
	Catalog JobIndex
	Checks  map[string]Check
	Log     *logger.Logger

	MaxUploadBytes int64
}

type Handler struct {
	jobs           *jobs.Service
	store          ports.ArtifactStore
	files          FileStore
	catalog        JobIndex
	checks         map[string]Check
	log            *logger.Logger
	maxUploadBytes int64
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}
	return &Handler{
		jobs:           d.Jobs,
		store:          d.Store,
		files:          d.Files,
		catalog:        d.Catalog,
		checks:         d.Checks,
		log:            log.WithComponent("http"),
		maxUploadBytes: maxUpload,
	}
}
