package worker

import (
	"context"
	"time"

	"inmoveo/internal/pkg/logger"
)

// Run pops slugs until ctx is canceled. Job failures are logged and do not
// stop the loop.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")
	d.Log = log

	popTimeout := d.PopTimeout
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	retryDelay := d.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	p := NewProcessor(d)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		slug, err := d.Queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}
			log.Warn("queue pop error, retrying", "error", err.Error())
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
			}
			continue
		}
		if slug == "" {
			continue
		}

		jobCtx := logger.ContextWithSlug(ctx, slug)
		jobLog := log.WithSlug(slug)

		jobLog.Info("processing job")
		start := time.Now()

		if err := p.ProcessJob(jobCtx, slug); err != nil {
			jobLog.Error("job failed",
				"error", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		} else {
			jobLog.Info("job completed", "duration_ms", time.Since(start).Milliseconds())
		}
	}
}
