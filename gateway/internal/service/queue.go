package service

import (
	"context"
	"time"

	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/cache"
)

const localQueueSize = 256

// in-process job queue for a single gateway process.
// job ids are remembered for retention, a second publish of the same id is dropped
type LocalQueue struct {
	jobs      chan *domain.Jobs
	seen      *cache.Cache
	retention time.Duration
}

func NewLocalQueue(seen *cache.Cache, retention time.Duration) *LocalQueue {
	return &LocalQueue{
		jobs:      make(chan *domain.Jobs, localQueueSize),
		seen:      seen,
		retention: retention,
	}
}

func (q *LocalQueue) Publish(ctx context.Context, job *domain.Jobs) error {
	if !q.seen.SetIfAbsent(job.ID, true, q.retention) {
		return nil
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		q.seen.Del(job.ID)
		return ctx.Err()
	}
}

func (q *LocalQueue) Consume(ctx context.Context, handler func(ctx context.Context, job *domain.Jobs)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-q.jobs:
			handler(ctx, job)
		}
	}
}
