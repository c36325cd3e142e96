package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/logger"
)

type schedule struct {
	kind     domain.JobKind
	chain    string
	interval time.Duration
}

// enqueues the periodic jobs. the job id of a tick is bound to its slot,
// so every process ticking in the same window enqueues the same job once
type SchedulerService struct {
	jobs      *JobsService
	l         logger.Logger
	schedules []schedule
	now       func() time.Time

	wg sync.WaitGroup
}

func NewSchedulerService(jobs *JobsService, l logger.Logger, config *config.Config) *SchedulerService {
	cfg := config.Scheduler

	var schedules []schedule
	for _, chain := range config.ChainNames() {
		schedules = append(schedules,
			schedule{kind: domain.JOB_SCAN, chain: chain, interval: cfg.ScanInterval},
			schedule{kind: domain.JOB_SWEEP, chain: chain, interval: cfg.SweepInterval},
		)
	}
	schedules = append(schedules,
		schedule{kind: domain.JOB_REAP, chain: ALL_CHAINS, interval: cfg.ReapInterval},
		schedule{kind: domain.JOB_WEBHOOK_RETRY, chain: ALL_CHAINS, interval: cfg.WebhookRetryInterval},
		schedule{kind: domain.JOB_PRUNE, chain: ALL_CHAINS, interval: cfg.PruneInterval},
	)

	return &SchedulerService{
		jobs:      jobs,
		l:         l,
		schedules: schedules,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// kind:chain:unix seconds of the slot start
func ScheduledJobID(kind domain.JobKind, chain string, t time.Time, interval time.Duration) string {
	return fmt.Sprintf("%s:%s:%d", kind, chain, t.Truncate(interval).Unix())
}

// one ticker per schedule, the first tick fires immediately. returns when ctx is done
func (s *SchedulerService) Start(ctx context.Context) {
	for _, sc := range s.schedules {
		if sc.interval <= 0 {
			continue
		}

		s.wg.Add(1)
		go func(sc schedule) {
			defer s.wg.Done()
			s.loop(ctx, sc)
		}(sc)
	}

	s.l.Info("scheduler started", logger.LS_SCHEDULER, false, "schedules", len(s.schedules))
	s.wg.Wait()
}

func (s *SchedulerService) loop(ctx context.Context, sc schedule) {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx, sc.kind, sc.chain, sc.interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// enqueues the job of the current slot. false - already enqueued by someone
func (s *SchedulerService) Tick(ctx context.Context, kind domain.JobKind, chain string, interval time.Duration) bool {
	id := ScheduledJobID(kind, chain, s.now(), interval)

	_, created, err := s.jobs.Enqueue(ctx, kind, chain, id, nil)
	if err != nil {
		if ctx.Err() == nil {
			s.l.Error("can't enqueue scheduled job", logger.LS_SCHEDULER, false, "job_id", id, "error", err.Error())
		}
		return false
	}
	return created
}
