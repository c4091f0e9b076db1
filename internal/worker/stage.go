package worker

import (
	"context"
	"errors"

	"inmoveo/internal/jobs"
	"inmoveo/internal/pkg/logger"
)

// ErrSkipped is returned by a stage that deliberately did no work.
var ErrSkipped = errors.New("stage skipped")

// Stage is one step of the generation pipeline applied to a job bundle.
type Stage interface {
	Name() string
	Process(ctx context.Context, b *jobs.Bundle) error
}

// LogStage records the job and skips it. Prompt building and provider
// submission are not part of this service.
type LogStage struct {
	Log *logger.Logger
}

func (LogStage) Name() string { return "log" }

func (s LogStage) Process(ctx context.Context, b *jobs.Bundle) error {
	log := s.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log.FromContext(ctx).Info("generation pipeline not configured, skipping job",
		"aspect_ratio", b.Manifest.AspectRatio,
		"style", b.Manifest.Style,
		"num_escenas", b.Manifest.NumEscenas,
		"files", len(b.Files),
	)
	return ErrSkipped
}
