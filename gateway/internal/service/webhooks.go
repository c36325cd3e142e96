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
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/repository"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const webhookRetryParallel = 8

// webhook outbox. rows are written with the state change and delivered after commit
type WebhooksService struct {
	db     *gorm.DB
	repo   repository.Webhooks
	sender WebhookSender
	l      logger.Logger
	m      *Metrics
	cfg    config.Webhook
	secret string
	now    func() time.Time

	wg sync.WaitGroup
}

func NewWebhooksService(db *gorm.DB, repo repository.Webhooks, sender WebhookSender, l logger.Logger, m *Metrics, config *config.Config) *WebhooksService {
	return &WebhooksService{
		db:     db,
		repo:   repo,
		sender: sender,
		l:      l,
		m:      m,
		cfg:    config.Webhook,
		secret: config.Secrets.WebhookSecret,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *WebhooksService) url(p *domain.Payments) string {
	if p.WebhookUrl != "" {
		return p.WebhookUrl
	}
	return s.cfg.Url
}

// writes the event of p to the outbox inside tx. returns nil if no url is configured
func (s *WebhooksService) Enqueue(tx *gorm.DB, p *domain.Payments, event string) (*domain.WebhookDeliveries, error) {
	url := s.url(p)
	if url == "" {
		s.l.Debug("no webhook url, event skipped", "payment_id", p.ID, "event", event)
		return nil, nil
	}

	payload, err := json.Marshal(domain.NewWebhookPayload(event, p, s.now()))
	if err != nil {
		return nil, err
	}

	return s.EnqueueRaw(tx, p.ID, event, url, payload, s.secret)
}

func (s *WebhooksService) EnqueueRaw(tx *gorm.DB, paymentID, event, url string, payload []byte, secret string) (*domain.WebhookDeliveries, error) {
	delivery := &domain.WebhookDeliveries{
		PaymentID: paymentID,
		Event:     event,
		Url:       url,
		Payload:   string(payload),
		Secret:    secret,
		Status:    domain.DELIVERY_PENDING,
		// the first attempt is made by Notify, the row is leased for it like a claimed retry
		NextAttemptAt: s.now().Add(s.firstAttemptLease()),
	}
	if err := s.repo.Create(tx, delivery); err != nil {
		return nil, fmt.Errorf("create webhook delivery: %w", err)
	}
	return delivery, nil
}

// no retry sweep may claim the row while the Notify attempt can still be running
func (s *WebhooksService) firstAttemptLease() time.Duration {
	return max(s.cfg.InitialBackoff, 2*s.cfg.Timeout)
}

// first delivery attempt, call after the outbox rows are committed
func (s *WebhooksService) Notify(deliveries ...*domain.WebhookDeliveries) {
	for _, d := range deliveries {
		if d == nil {
			continue
		}

		s.wg.Add(1)
		go func(d *domain.WebhookDeliveries) {
			defer s.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 2*s.cfg.Timeout)
			defer cancel()

			if err := s.attempt(ctx, d); err != nil {
				s.l.Error("webhook attempt not recorded", logger.LS_WEBHOOKS, false, "delivery_id", d.ID, "error", err.Error())
			}
		}(d)
	}
}

// blocks until every started Notify attempt is finished
func (s *WebhooksService) Wait() {
	s.wg.Wait()
}

// redelivers due rows. returns the number of rows this process claimed
func (s *WebhooksService) RetryDue(ctx context.Context) (int, error) {
	now := s.now()

	due, err := s.repo.FindDue(s.db.WithContext(ctx), now, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(webhookRetryParallel)

	var claimed int
	for i := range due {
		d := &due[i]

		// lease the row for the duration of the attempt
		ok, err := s.repo.Claim(s.db.WithContext(ctx), d, now.Add(2*s.cfg.Timeout))
		if err != nil {
			return claimed, err
		}
		if !ok {
			continue
		}
		claimed++

		g.Go(func() error {
			return s.attempt(gctx, d)
		})
	}

	return claimed, g.Wait()
}

func (s *WebhooksService) attempt(ctx context.Context, d *domain.WebhookDeliveries) error {
	code, err := s.sender.Deliver(ctx, d.Url, []byte(d.Payload), d.Secret)
	attempts := d.Attempts + 1
	// recorded even if ctx is done
	db := s.db.WithContext(context.WithoutCancel(ctx))

	if err == nil {
		s.m.WebhookDeliveries.WithLabelValues("delivered").Inc()
		return s.repo.MarkDelivered(db, d.ID, attempts, code)
	}

	var werr *WebhookError
	permanent := errors.As(err, &werr) && !werr.Retryable

	if permanent || attempts >= s.cfg.MaxAttempts {
		s.m.WebhookDeliveries.WithLabelValues("failed").Inc()
		s.l.TemplWebhookErr("webhook dropped: "+err.Error(), d.Url, attempts, logger.NA, []byte(d.Payload))
		return s.repo.MarkFailed(db, d.ID, attempts, code, err.Error())
	}

	s.m.WebhookDeliveries.WithLabelValues("retry").Inc()
	s.l.Error("webhook delivery failed", logger.LS_WEBHOOKS, false, "url", d.Url, "event", d.Event, "attempts", attempts, "error", err.Error())
	return s.repo.MarkRetry(db, d.ID, attempts, s.now().Add(s.Backoff(attempts)), code, err.Error())
}

// initial * 2^(attempts-1), capped
func (s *WebhooksService) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	backoff := s.cfg.InitialBackoff
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= s.cfg.MaxBackoff {
			return s.cfg.MaxBackoff
		}
	}
	if backoff > s.cfg.MaxBackoff {
		return s.cfg.MaxBackoff
	}
	return backoff
}

// writes and delivers an event outside of a status change
func (s *WebhooksService) Emit(ctx context.Context, p *domain.Payments, event string) (*domain.WebhookDeliveries, error) {
	var delivery *domain.WebhookDeliveries
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		delivery, err = s.Enqueue(tx, p, event)
		return err
	})
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, domain.ErrNoWebhookUrl
	}

	s.Notify(delivery)
	return delivery, nil
}

func (s *WebhooksService) EmitRaw(ctx context.Context, url string, payload []byte, secret string) (*domain.WebhookDeliveries, error) {
	delivery, err := s.EnqueueRaw(s.db.WithContext(ctx), "", domain.EVENT_CUSTOM, url, payload, secret)
	if err != nil {
		return nil, err
	}

	s.Notify(delivery)
	return delivery, nil
}
