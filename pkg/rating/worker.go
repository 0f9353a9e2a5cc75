package rating

import (
	"context"
	"errors"
	"time"

	"petsitter/pkg/apperror"
	"petsitter/pkg/queue"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recomputeKind = "rating.recompute"

// Worker retries rating write-backs that failed after the review itself was stored.
type Worker struct {
	db          *gorm.DB
	queue       *queue.Queue
	log         *zap.Logger
	interval    time.Duration
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewWorker(db *gorm.DB, q *queue.Queue, log *zap.Logger) *Worker {
	return &Worker{
		db:          db,
		queue:       q,
		log:         log,
		interval:    time.Second,
		baseDelay:   2 * time.Second,
		maxDelay:    time.Minute,
		maxAttempts: 5,
		now:         time.Now,
	}
}

// Recompute runs OnReviewAdded and schedules a retry when it fails for a reason other
// than the sitter being gone.
func (w *Worker) Recompute(ctx context.Context, sitterID string) (Summary, error) {
	summary, err := OnReviewAdded(ctx, w.db, sitterID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		w.schedule(sitterID, err)
	}
	return summary, err
}

func (w *Worker) schedule(sitterID string, cause error) {
	added := w.queue.Enqueue(&queue.Job{
		Key:         sitterID,
		Kind:        recomputeKind,
		RunAt:       w.now().Add(queue.Backoff(1, w.baseDelay, w.maxDelay)),
		MaxAttempts: w.maxAttempts,
		LastError:   cause.Error(),
	})
	if added {
		w.log.Warn("rating recompute deferred", zap.String("sitter_id", sitterID), zap.Error(cause))
	}
}

// Run drains due jobs every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes the jobs due now. Jobs requeued while draining wait for the next tick.
func (w *Worker) drain(ctx context.Context) {
	var due []*queue.Job
	for job := w.queue.Dequeue(); job != nil; job = w.queue.Dequeue() {
		due = append(due, job)
	}
	for _, job := range due {
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	job.Attempts++
	_, err := OnReviewAdded(ctx, w.db, job.Key)
	if err == nil {
		w.log.Info("rating recompute succeeded", zap.String("sitter_id", job.Key), zap.Int("attempts", job.Attempts))
		return
	}
	if errors.Is(err, apperror.ErrNotFound) {
		w.log.Info("rating recompute dropped, sitter gone", zap.String("sitter_id", job.Key))
		return
	}

	job.LastError = err.Error()
	if job.Exhausted() {
		w.log.Error("rating recompute gave up",
			zap.String("sitter_id", job.Key),
			zap.Int("attempts", job.Attempts),
			zap.Error(err),
		)
		return
	}
	job.RunAt = w.now().Add(queue.Backoff(job.Attempts+1, w.baseDelay, w.maxDelay))
	w.queue.Enqueue(job)
}
