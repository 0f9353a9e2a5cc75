package queue

import (
	"sync"
	"time"
)

// Job is a unit of deferred work keyed by the entity it concerns. Enqueueing a key that
// is already waiting keeps the earlier entry.
type Job struct {
	Key         string
	Kind        string
	RunAt       time.Time
	Attempts    int
	MaxAttempts int
	LastError   string
}

// Exhausted reports whether the job has used up its attempts.
func (j *Job) Exhausted() bool {
	return j.MaxAttempts > 0 && j.Attempts >= j.MaxAttempts
}

type Queue struct {
	items []*Job
	mu    sync.Mutex
	now   func() time.Time
}

func NewQueue() *Queue {
	return &Queue{
		items: make([]*Job, 0),
		now:   time.Now,
	}
}

// Enqueue adds job unless a job with the same kind and key is already queued. It
// reports whether the job was added.
func (q *Queue) Enqueue(job *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, queued := range q.items {
		if queued.Kind == job.Kind && queued.Key == job.Key {
			return false
		}
	}
	q.items = append(q.items, job)
	return true
}

// Dequeue removes and returns the first job that is due, or nil.
func (q *Queue) Dequeue() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for i, job := range q.items {
		if !job.RunAt.After(now) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return job
		}
	}
	return nil
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) GetAll() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]*Job, len(q.items))
	copy(result, q.items)
	return result
}

// Backoff returns the delay before retry number attempt: base doubled per attempt,
// capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
