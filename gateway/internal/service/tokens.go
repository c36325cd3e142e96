package service

import (
	"context"
	"fmt"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/postgres"
	"chainpay/gateway/internal/repository"

	"gorm.io/gorm"
)

type TokensService struct {
	db   *gorm.DB
	repo repository.Tokens
}

func NewTokensService(db *gorm.DB, repo repository.Tokens) *TokensService {
	return &TokensService{db: db, repo: repo}
}

func (s *TokensService) FindByID(ctx context.Context, id uint) (*domain.Tokens, error) {
	token, err := s.repo.FindByID(s.db.WithContext(ctx), id)
	if err != nil {
		if postgres.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", domain.ErrUnknownToken, id)
		}
		return nil, err
	}
	return token, nil
}

// cursor rows, tokens and the address counter from config. safe to run on every start:
// existing cursors are kept, tokens are updated in place
func Seed(ctx context.Context, db *gorm.DB, config *config.Config) error {
	repo := repository.New()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, chain := range config.Chains {
			if err := repo.ChainStates.Seed(tx, chain.Name, chain.StartBlock); err != nil {
				return fmt.Errorf("seed chain %s: %w", chain.Name, err)
			}
		}

		for _, t := range config.Tokens {
			token := &domain.Tokens{
				Chain:    t.Chain,
				Symbol:   t.Symbol,
				Decimals: t.Decimals,
				Enabled:  t.IsEnabled(),
			}
			if t.Address != "" {
				address := t.Address
				token.Address = &address
			}
			if err := repo.Tokens.Seed(tx, token); err != nil {
				return fmt.Errorf("seed token %s/%s: %w", t.Chain, t.Symbol, err)
			}
		}

		return repo.Addresses.EnsureCounter(tx)
	})
}
