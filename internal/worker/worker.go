// Package worker runs background jobs pulled from the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/faninteract/backend/pkg/queue"
)

// JobQueue is the subset of queue.Queue the processor uses.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ObjectDeleter removes stored objects.
type ObjectDeleter interface {
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
}

// MediaPurgeProcessor deletes uploaded photos after a wall is cleared or deleted.
type MediaPurgeProcessor struct {
	deleter ObjectDeleter
	queue   JobQueue
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewMediaPurgeProcessor creates a media purge processor. A nil clock uses
// the real one.
func NewMediaPurgeProcessor(deleter ObjectDeleter, q JobQueue, clock clockwork.Clock, logger *zap.Logger) *MediaPurgeProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MediaPurgeProcessor{deleter: deleter, queue: q, clock: clock, logger: logger}
}

// Process executes one media purge job.
func (p *MediaPurgeProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeMediaPurge {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.MediaPurgePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if len(payload.Keys) == 0 {
		return nil
	}
	if err := p.deleter.DeleteObjects(ctx, payload.Bucket, payload.Keys); err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}
	p.logger.Info("media purged", zap.String("event_id", payload.EventID), zap.String("bucket", payload.Bucket), zap.Int("keys", len(payload.Keys)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. It returns
// when ctx is done.
func (p *MediaPurgeProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("media purge worker stopping")
			return
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("dequeue error", zap.Error(err))
				p.sleep(ctx)
			}
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *MediaPurgeProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-p.clock.After(queue.RetryBackoff):
	}
}
