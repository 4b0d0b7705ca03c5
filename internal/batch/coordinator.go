// Package batch runs report jobs for a list of clients one after another.
// One job completes before the next starts; a failed job never stops the
// batch. Progress is reported through a callback after every job.
package batch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/models"
)

// Runner produces the report of one client.
type Runner interface {
	Run(ctx context.Context, clientID string) models.Outcome
}

// Progress is reported after each job.
type Progress struct {
	Done    int
	Total   int
	Outcome models.Outcome
}

// Recorder receives the batch result.
type Recorder interface {
	BatchFinished(failed int, at time.Time)
}

// Coordinator runs batches sequentially.
type Coordinator struct {
	runner     Runner
	recorder   Recorder
	logger     *zap.Logger
	onProgress func(Progress)
}

// New creates a Coordinator. recorder may be nil.
func New(runner Runner, recorder Recorder, logger *zap.Logger) *Coordinator {
	return &Coordinator{runner: runner, recorder: recorder, logger: logger.Named("batch")}
}

// OnProgress sets the callback invoked after each job.
func (c *Coordinator) OnProgress(fn func(Progress)) {
	c.onProgress = fn
}

// Run processes ids in order. A job counts as failed only when its outcome
// is not successful. When ctx is cancelled the remaining ids are reported
// as failed without being started.
func (c *Coordinator) Run(ctx context.Context, ids []string) models.BatchResult {
	var result models.BatchResult
	start := time.Now()
	c.logger.Info("Batch started", zap.Int("clients", len(ids)))

	for i, id := range ids {
		var outcome models.Outcome
		if err := ctx.Err(); err != nil {
			outcome = models.Outcome{ClientID: id, Message: "batch cancelled"}
		} else {
			outcome = c.runner.Run(ctx, id)
		}

		if outcome.Success {
			result.Succeeded++
		} else {
			result.Failed = append(result.Failed, models.Failure{ClientID: id, Reason: outcome.Message})
		}

		c.logger.Info("Job finished",
			zap.String("client_id", id),
			zap.Bool("success", outcome.Success),
			zap.String("message", outcome.Message),
			zap.Int("warnings", len(outcome.Warnings)),
			zap.Int("done", i+1),
			zap.Int("total", len(ids)))
		if c.onProgress != nil {
			c.onProgress(Progress{Done: i + 1, Total: len(ids), Outcome: outcome})
		}
	}

	c.logger.Info("Batch finished",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("took", time.Since(start)))
	if c.recorder != nil {
		c.recorder.BatchFinished(len(result.Failed), time.Now())
	}
	return result
}
