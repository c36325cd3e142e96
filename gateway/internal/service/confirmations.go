package service

import (
	"context"
	"errors"
	"fmt"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/repository"

	"gorm.io/gorm"
)

type ConfirmationsService struct {
	db       *gorm.DB
	payments repository.Payments
	outbox   Outbox
	sources  map[string]BlockSource
	config   *config.Config
	l        logger.Logger
	m        *Metrics
}

func NewConfirmationsService(db *gorm.DB, payments repository.Payments, outbox Outbox, sources map[string]BlockSource, l logger.Logger, m *Metrics, config *config.Config) *ConfirmationsService {
	return &ConfirmationsService{db: db, payments: payments, outbox: outbox, sources: sources, config: config, l: l, m: m}
}

// head - detected block + 1. false if head is behind the detected block
func Confirmations(head, detectedInBlock uint64) (uint64, bool) {
	if head < detectedInBlock {
		return 0, false
	}
	return head - detectedInBlock + 1, true
}

// returns the number of payments that became confirmed
func (s *ConfirmationsService) ConfirmPending(ctx context.Context, chain string) (int, error) {
	src, ok := s.sources[chain]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownChain, chain)
	}

	head, err := src.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}

	detected, err := s.payments.FindByStatus(s.db.WithContext(ctx), chain, domain.STATUS_DETECTED)
	if err != nil {
		return 0, err
	}

	threshold := s.config.Confirmations(chain)

	var (
		confirmed int
		errs      []error
	)
	for i := range detected {
		p := &detected[i]
		done, err := s.confirm(ctx, p, head, threshold)
		if err != nil {
			s.l.TemplPaymentErr("can't update confirmations", logger.LS_SCANNER, p, err)
			errs = append(errs, err)
			continue
		}
		if done {
			confirmed++
		}
	}

	return confirmed, errors.Join(errs...)
}

func (s *ConfirmationsService) confirm(ctx context.Context, p *domain.Payments, head, threshold uint64) (bool, error) {
	if p.DetectedInBlock == nil {
		return false, nil
	}
	confirmations, ok := Confirmations(head, *p.DetectedInBlock)
	if !ok {
		return false, nil
	}

	if confirmations < threshold {
		return false, s.payments.UpdateConfirmations(s.db.WithContext(ctx), p, confirmations)
	}

	var delivery *domain.WebhookDeliveries
	var transitioned bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.payments.UpdateConfirmations(tx, p, confirmations); err != nil {
			return err
		}

		ok, err := s.payments.Transition(tx, p, domain.STATUS_CONFIRMED, nil)
		if err != nil || !ok {
			return err
		}
		transitioned = true

		delivery, err = s.outbox.Enqueue(tx, p, domain.EVENT_PAYMENT_CONFIRMED)
		return err
	})
	if err != nil || !transitioned {
		return false, err
	}

	s.outbox.Notify(delivery)
	s.m.Transitions.WithLabelValues(p.Chain, domain.STATUS_CONFIRMED.ToString()).Inc()
	s.l.TemplPaymentInfo("payment confirmed", logger.LS_SCANNER, p, "confirmations", confirmations)
	return true, nil
}
