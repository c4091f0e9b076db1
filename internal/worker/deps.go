package worker

import (
	"context"
	"time"

	"inmoveo/internal/jobs"
	"inmoveo/internal/pkg/logger"
)

// Queue yields the next slug to process; "" means nothing arrived in time.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
}

// Loader reads a job's stored artifacts.
type Loader interface {
	GetArtifactBundle(ctx context.Context, slug string) (*jobs.Bundle, error)
}

// StatusRecorder tracks job status outside the artifact store. Optional.
type StatusRecorder interface {
	MarkStatus(ctx context.Context, slug, status string) error
}

type Deps struct {
	Queue   Queue
	Jobs    Loader
	Catalog StatusRecorder
	Stage   Stage
	Log     *logger.Logger

	// PopTimeout bounds each blocking pop so cancellation is noticed.
	PopTimeout time.Duration
	// RetryDelay is the pause after a queue error.
	RetryDelay time.Duration
}
