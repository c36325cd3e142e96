package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/postgres"
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// label of jobs that are not bound to one chain
const ALL_CHAINS = "all"

var ErrNoRunner = errors.New("no runner for job kind")

// runs one job. the result is stored as json
type Runner func(ctx context.Context, job *domain.Jobs) (any, error)

type outcome struct {
	result any
	err    error
}

type JobsService struct {
	db     *gorm.DB
	repo   repository.Jobs
	queue  JobQueue
	locker Locker
	l      logger.Logger
	m      *Metrics
	cfg    config.Scheduler
	now    func() time.Time

	mu      sync.RWMutex
	runners map[domain.JobKind]Runner

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewJobsService(db *gorm.DB, repo repository.Jobs, queue JobQueue, locker Locker, l logger.Logger, m *Metrics, config *config.Config) *JobsService {
	return &JobsService{
		db:      db,
		repo:    repo,
		queue:   queue,
		locker:  locker,
		l:       l,
		m:       m,
		cfg:     config.Scheduler,
		now:     func() time.Time { return time.Now().UTC() },
		runners: make(map[domain.JobKind]Runner),
		sem:     make(chan struct{}, max(config.Scheduler.MaxConcurrentJobs, 1)),
	}
}

func (s *JobsService) Register(kind domain.JobKind, runner Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runners[kind] = runner
}

func (s *JobsService) runner(kind domain.JobKind) (Runner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runner, ok := s.runners[kind]
	return runner, ok
}

// inserts the job row and publishes it. an empty id gets a random one.
// false - a job with this id already exists, nothing is published
func (s *JobsService) Enqueue(ctx context.Context, kind domain.JobKind, chain, id string, args *domain.JobArgs) (string, bool, error) {
	if !kind.IsValid() {
		return "", false, fmt.Errorf("unknown job kind %q", kind)
	}
	if id == "" {
		id = uuid.NewString()
	}

	job := &domain.Jobs{
		ID:     id,
		Kind:   kind,
		Chain:  chain,
		Status: domain.JOB_STATUS_QUEUED,
	}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return "", false, err
		}
		job.Args = string(data)
	}

	if err := s.repo.Create(s.db.WithContext(ctx), job); err != nil {
		if postgres.IsUniqueViolation(err) {
			return id, false, nil
		}
		return "", false, fmt.Errorf("create job: %w", err)
	}

	if err := s.queue.Publish(ctx, job); err != nil {
		s.finish(ctx, job, domain.JOB_STATUS_FAILED, nil, fmt.Errorf("publish: %w", err), 0)
		return "", false, fmt.Errorf("publish job: %w", err)
	}

	return id, true, nil
}

// consumes the queue until ctx is done. every job runs in its own goroutine
func (s *JobsService) Start(ctx context.Context) error {
	return s.queue.Consume(ctx, s.handle)
}

func (s *JobsService) handle(ctx context.Context, job *domain.Jobs) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()
		s.Run(ctx, job)
	}()
}

// blocks until every started job goroutine is finished
func (s *JobsService) Wait() {
	s.wg.Wait()
}

func lockKey(job *domain.Jobs) string {
	return string(job.Kind) + ":" + job.Chain
}

func (s *JobsService) Timeout(kind domain.JobKind) time.Duration {
	switch kind {
	case domain.JOB_SCAN, domain.JOB_PROCESS:
		return s.cfg.Timeouts.Scan
	case domain.JOB_SWEEP, domain.JOB_SWEEP_ADDRESS:
		return s.cfg.Timeouts.Sweep
	case domain.JOB_REAP:
		return s.cfg.Timeouts.Reap
	case domain.JOB_WEBHOOK_RETRY, domain.JOB_SEND_WEBHOOK, domain.JOB_CUSTOM_WEBHOOK:
		return s.cfg.Timeouts.Webhook
	default:
		return s.cfg.Timeouts.Default
	}
}

// runs the job with its kind timeout and records the outcome.
// a kind+chain already running in this process is recorded as skipped
func (s *JobsService) Run(ctx context.Context, job *domain.Jobs) {
	runner, ok := s.runner(job.Kind)
	if !ok {
		s.finish(ctx, job, domain.JOB_STATUS_FAILED, nil, fmt.Errorf("%w: %s", ErrNoRunner, job.Kind), 0)
		return
	}

	unlock := func() {}
	if job.Kind.IsCycle() {
		key := lockKey(job)
		if !s.locker.TryLock(key) {
			s.l.Info("job skipped, previous run is not finished", logger.LS_SCHEDULER, false, "job_id", job.ID, "kind", string(job.Kind), "chain", job.Chain)
			s.finish(ctx, job, domain.JOB_STATUS_SKIPPED, nil, nil, 0)
			return
		}
		unlock = func() { s.locker.Unlock(key) }
	}

	started, err := s.repo.Start(s.db.WithContext(context.WithoutCancel(ctx)), job.ID, s.now())
	if err != nil || !started {
		unlock()
		if err != nil {
			s.l.TemplJobErr("can't start job", job, err)
		}
		return
	}

	jctx, cancel := context.WithTimeout(ctx, s.Timeout(job.Kind))
	defer cancel()

	begin := time.Now()
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		// released when the runner returns, even after a timeout
		defer func() {
			if r := recover(); r != nil {
				o = outcome{err: fmt.Errorf("panic: %v", r)}
			}
			unlock()
			done <- o
		}()

		o.result, o.err = runner(jctx, job)
	}()

	select {
	case o := <-done:
		status := domain.JOB_STATUS_SUCCEEDED
		if o.err != nil {
			status = domain.JOB_STATUS_FAILED
			s.l.TemplJobErr("job failed", job, o.err)
		}
		s.finish(ctx, job, status, o.result, o.err, time.Since(begin))
	case <-jctx.Done():
		err := jctx.Err()
		status := domain.JOB_STATUS_TIMED_OUT
		if !errors.Is(err, context.DeadlineExceeded) {
			// shutdown
			status = domain.JOB_STATUS_FAILED
		}
		s.l.TemplJobErr("job interrupted", job, err)
		s.finish(ctx, job, status, nil, err, time.Since(begin))
	}
}

func (s *JobsService) finish(ctx context.Context, job *domain.Jobs, status domain.JobStatus, result any, cause error, took time.Duration) {
	var data []byte
	if result != nil {
		var err error
		if data, err = json.Marshal(result); err != nil {
			s.l.TemplJobErr("can't marshal job result", job, err)
		}
	}

	var errMsg string
	if cause != nil {
		errMsg = cause.Error()
	}

	job.Status = status
	err := s.repo.Finish(s.db.WithContext(context.WithoutCancel(ctx)), job.ID, status, string(data), errMsg, s.now())
	if err != nil {
		s.l.TemplJobErr("can't record job status", job, err)
	}

	s.m.Jobs.WithLabelValues(string(job.Kind), status.ToString()).Inc()
	if took > 0 {
		s.m.JobDuration.WithLabelValues(string(job.Kind)).Observe(took.Seconds())
	}
}

func (s *JobsService) Get(ctx context.Context, id string) (*domain.Jobs, error) {
	job, err := s.repo.FindByID(s.db.WithContext(ctx), id)
	if err != nil {
		if postgres.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, err
	}
	return job, nil
}

// deletes job rows older than retention
func (s *JobsService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(s.db.WithContext(ctx), s.now().Add(-retention))
}

// decoded JobArgs of a manual job
func Args(job *domain.Jobs) (*domain.JobArgs, error) {
	var args domain.JobArgs
	if job.Args == "" {
		return &args, nil
	}
	if err := json.Unmarshal([]byte(job.Args), &args); err != nil {
		return nil, fmt.Errorf("job %s args: %w", job.ID, err)
	}
	return &args, nil
}
