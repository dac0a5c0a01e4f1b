// Package reconcile settles video jobs whose completion webhook was lost.
// It polls the backend for every pending video intent and finalizes the
// ones that became ready.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/events"
	"github.com/princekumarofficial/media-service/internal/metrics"
	"github.com/princekumarofficial/media-service/internal/types"
	mediaTypes "github.com/princekumarofficial/media-service/internal/types/media"
)

type PendingIntents interface {
	PendingVideos(ctx context.Context, limit int) ([]types.UploadIntent, error)
	Delete(ctx context.Context, handle string) error
}

type JobSource interface {
	Status(ctx context.Context, jobID string) (types.TranscodingJob, error)
}

type Finalizer interface {
	FinalizeJob(ctx context.Context, intent types.UploadIntent, job *types.TranscodingJob) (*mediaTypes.FinalizeResponse, error)
}

// Summary is the outcome of one pass.
type Summary struct {
	Checked   int
	Finalized int
	Dropped   int
	Pending   int
	Errors    int
}

type Worker struct {
	intents   PendingIntents
	jobs      JobSource
	finalizer Finalizer
	publisher events.Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewWorker(intents PendingIntents, jobs JobSource, finalizer Finalizer, publisher events.Publisher, interval time.Duration, batchSize int) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Worker{
		intents:   intents,
		jobs:      jobs,
		finalizer: finalizer,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "reconcile"),
	}
}

// Start runs a pass immediately and then once per interval until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Reconcile worker started", "interval", w.interval.String())

	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Reconcile worker shutting down")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	startTime := time.Now()

	summary, err := w.RunOnce(ctx)
	if err != nil {
		w.logger.Error("Failed to list pending video jobs",
			"error", err.Error(),
			"duration_ms", time.Since(startTime).Milliseconds())
		return
	}

	w.logger.Info("Completed reconcile pass",
		"checked", summary.Checked,
		"finalized", summary.Finalized,
		"dropped", summary.Dropped,
		"pending", summary.Pending,
		"errors", summary.Errors,
		"duration_ms", time.Since(startTime).Milliseconds())
}

// RunOnce checks one batch of pending video intents. Only a failure to
// list the batch is returned; per-job failures are counted and retried on
// the next pass.
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	intents, err := w.intents.PendingVideos(ctx, w.batchSize)
	if err != nil {
		return summary, err
	}

	for _, intent := range intents {
		if ctx.Err() != nil {
			break
		}
		summary.Checked++

		outcome := w.settle(ctx, intent)
		metrics.ReconciledJobs.WithLabelValues(outcome).Inc()
		switch outcome {
		case "finalized":
			summary.Finalized++
		case "dropped":
			summary.Dropped++
		case "pending":
			summary.Pending++
		default:
			summary.Errors++
		}
	}

	return summary, nil
}

func (w *Worker) settle(ctx context.Context, intent types.UploadIntent) string {
	logger := w.logger.With("job_id", intent.JobID, "owner_id", intent.OwnerID)

	job, err := w.jobs.Status(ctx, intent.JobID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			logger.Warn("Job unknown to the backend, dropping intent")
			if err := w.intents.Delete(ctx, intent.JobID); err != nil {
				logger.Warn("Failed to delete upload intent", "error", err.Error())
			}
			return "dropped"
		}
		logger.Error("Failed to poll job status", "error", err.Error())
		return "error"
	}
	w.publisher.PublishJobStatus(job, "reconcile")

	if !job.Phase.Terminal() {
		return "pending"
	}

	if _, err := w.finalizer.FinalizeJob(ctx, intent, &job); err != nil {
		if apperr.Is(err, apperr.ProcessingFailed) {
			logger.Info("Job failed upstream", "reason", job.ErrorMessage)
			return "dropped"
		}
		logger.Error("Failed to finalize job", "error", err.Error())
		return "error"
	}
	return "finalized"
}
