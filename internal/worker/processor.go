package worker

import (
	"context"
	"errors"

	"inmoveo/internal/catalog"
	apperr "inmoveo/internal/pkg/errors"
	"inmoveo/internal/pkg/logger"
)

// Processor runs the configured stage for one slug and keeps the catalog
// status in step.
type Processor struct {
	jobs    Loader
	catalog StatusRecorder
	stage   Stage
	log     *logger.Logger
}

func NewProcessor(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	stage := d.Stage
	if stage == nil {
		stage = LogStage{Log: log}
	}
	return &Processor{
		jobs:    d.Jobs,
		catalog: d.Catalog,
		stage:   stage,
		log:     log.WithComponent("processor"),
	}
}

func (p *Processor) ProcessJob(ctx context.Context, slug string) error {
	log := p.log.FromContext(ctx)

	b, err := p.jobs.GetArtifactBundle(ctx, slug)
	if err != nil {
		return p.failJob(ctx, slug, apperr.Wrap(err, "processor.load", "failed to load job bundle"))
	}
	if b.Manifest.DryRun {
		log.Info("dry run job in queue, ignoring")
		p.mark(ctx, slug, catalog.StatusSkipped)
		return nil
	}

	p.mark(ctx, slug, catalog.StatusProcessing)

	log.Debug("running stage", "stage", p.stage.Name())
	err = p.stage.Process(ctx, b)
	switch {
	case errors.Is(err, ErrSkipped):
		p.mark(ctx, slug, catalog.StatusSkipped)
		return nil
	case err != nil:
		return p.failJob(ctx, slug, apperr.Wrap(err, "processor.stage", "stage "+p.stage.Name()+" failed"))
	}

	p.mark(ctx, slug, catalog.StatusDone)
	return nil
}

func (p *Processor) failJob(ctx context.Context, slug string, cause error) error {
	log := p.log.FromContext(ctx)

	var e *apperr.Error
	if apperr.As(cause, &e) {
		log.Error("job failed", "code", string(e.Code), "op", e.Op, "message", e.Message)
	} else {
		log.Error("job failed", "error", cause.Error())
	}

	p.mark(ctx, slug, catalog.StatusFailed)
	return cause
}

// mark is best effort; the artifact store remains authoritative.
func (p *Processor) mark(ctx context.Context, slug, status string) {
	if p.catalog == nil {
		return
	}
	if err := p.catalog.MarkStatus(ctx, slug, status); err != nil {
		p.log.FromContext(ctx).Warn("catalog status update failed", "status", status, "error", err.Error())
	}
}
