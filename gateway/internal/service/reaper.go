package service

import (
	"context"
	"errors"
	"time"

	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/repository"

	"gorm.io/gorm"
)

const reapBatch = 500

// expires pending and detected payments past their deadline. needs no rpc
type ReaperService struct {
	db       *gorm.DB
	payments repository.Payments
	outbox   Outbox
	l        logger.Logger
	m        *Metrics
	now      func() time.Time
}

func NewReaperService(db *gorm.DB, payments repository.Payments, outbox Outbox, l logger.Logger, m *Metrics) *ReaperService {
	return &ReaperService{
		db:       db,
		payments: payments,
		outbox:   outbox,
		l:        l,
		m:        m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReaperService) ReapExpired(ctx context.Context) (int, error) {
	expired, err := s.payments.FindExpired(s.db.WithContext(ctx), s.now(), reapBatch)
	if err != nil {
		return 0, err
	}

	var (
		reaped int
		errs   []error
	)
	for i := range expired {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		p := &expired[i]
		ok, err := s.expire(ctx, p)
		if err != nil {
			s.l.TemplPaymentErr("can't expire payment", logger.LS_PAYMENTS, p, err)
			errs = append(errs, err)
			continue
		}
		if ok {
			reaped++
		}
	}

	return reaped, errors.Join(errs...)
}

func (s *ReaperService) expire(ctx context.Context, p *domain.Payments) (bool, error) {
	from := p.Status

	var delivery *domain.WebhookDeliveries
	var ok bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		ok, err = s.payments.Transition(tx, p, domain.STATUS_EXPIRED, nil)
		if err != nil || !ok {
			return err
		}

		delivery, err = s.outbox.Enqueue(tx, p, domain.EVENT_PAYMENT_EXPIRED)
		return err
	})
	if err != nil || !ok {
		// lost the race to the scanner
		return false, err
	}

	s.outbox.Notify(delivery)
	s.m.Transitions.WithLabelValues(p.Chain, domain.STATUS_EXPIRED.ToString()).Inc()
	s.l.TemplPaymentInfo("payment expired", logger.LS_PAYMENTS, p, "from", from.ToString())
	return true, nil
}
