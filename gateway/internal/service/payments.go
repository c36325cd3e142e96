package service

import (
	"context"
	"fmt"
	"time"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/postgres"
	"chainpay/gateway/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentsService struct {
	db        *gorm.DB
	payments  repository.Payments
	tokens    repository.Tokens
	addresses repository.Addresses
	wallet    KeyDeriver
	config    *config.Config
	validate  *validator.Validate
	now       func() time.Time
}

func NewPaymentsService(db *gorm.DB, repo *repository.Repositories, wallet KeyDeriver, config *config.Config) *PaymentsService {
	return &PaymentsService{
		db:        db,
		payments:  repo.Payments,
		tokens:    repo.Tokens,
		addresses: repo.Addresses,
		wallet:    wallet,
		config:    config,
		validate:  validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// validates the request, reserves the next derivation index and stores
// the pending payment with its fresh deposit address
func (s *PaymentsService) CreatePayment(ctx context.Context, req domain.CreatePayment) (*domain.Payments, error) {
	if _, ok := s.config.Chain(req.Chain); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownChain, req.Chain)
	}

	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, req.Amount.String())
	}

	lifetime := req.Lifetime
	if lifetime == 0 {
		lifetime = s.config.Payments.DefaultLifetime
	}
	if lifetime < 0 || lifetime > s.config.Payments.MaxLifetime {
		return nil, fmt.Errorf("%w: %s, max %s", domain.ErrInvalidLifetime, lifetime, s.config.Payments.MaxLifetime)
	}

	if req.WebhookUrl != "" {
		if err := s.validate.Var(req.WebhookUrl, "url"); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidUrl, req.WebhookUrl)
		}
	}

	if req.TokenID != nil {
		token, err := s.tokens.FindByID(s.db.WithContext(ctx), *req.TokenID)
		if err != nil && !postgres.IsNotFound(err) {
			return nil, err
		}
		if err != nil || !token.Enabled || token.Chain != req.Chain {
			return nil, fmt.Errorf("%w: %d", domain.ErrUnknownToken, *req.TokenID)
		}
	}

	now := s.now()
	payment := &domain.Payments{
		ID:         uuid.NewString(),
		Chain:      req.Chain,
		TokenID:    req.TokenID,
		Amount:     req.Amount,
		Status:     domain.STATUS_PENDING,
		WebhookUrl: req.WebhookUrl,
		ExpiresAt:  now.Add(lifetime),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		index, err := s.addresses.ReserveIndex(tx)
		if err != nil {
			return fmt.Errorf("reserve index: %w", err)
		}

		acc, err := s.wallet.Derive(index)
		if err != nil {
			return fmt.Errorf("derive %d: %w", index, err)
		}

		payment.Address = acc.Address.Hex()
		payment.DerivationIndex = index

		if err := s.addresses.Create(tx, &domain.Addresses{Address: payment.Address, Index: index}); err != nil {
			return err
		}
		return s.payments.Create(tx, payment)
	})
	if err != nil {
		return nil, err
	}

	return payment, nil
}

func (s *PaymentsService) GetPayment(ctx context.Context, id string) (*domain.Payments, error) {
	payment, err := s.payments.FindByID(s.db.WithContext(ctx), id)
	if err != nil {
		if postgres.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, id)
		}
		return nil, err
	}
	return payment, nil
}
