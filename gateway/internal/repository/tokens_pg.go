package repository

import (
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/postgres"

	"gorm.io/gorm"
)

type TokensRepo struct {
}

func InitTokensRepo() *TokensRepo {
	return &TokensRepo{}
}

// creates or updates the token by (chain, address)
func (r *TokensRepo) Seed(tx *gorm.DB, token *domain.Tokens) error {
	var existing domain.Tokens

	q := tx.Where("chain = ?", token.Chain)
	if token.IsNative() {
		token.Address = nil
		q = q.Where("address IS NULL")
	} else {
		q = q.Where("LOWER(address) = ?", domain.AddressKey(*token.Address))
	}

	err := q.First(&existing).Error
	if err != nil {
		if !postgres.IsNotFound(err) {
			return err
		}
		return tx.Create(token).Error
	}

	token.ID = existing.ID
	return tx.Model(&existing).Updates(map[string]any{
		"symbol":   token.Symbol,
		"decimals": token.Decimals,
		"enabled":  token.Enabled,
	}).Error
}

func (r *TokensRepo) FindByID(tx *gorm.DB, id uint) (*domain.Tokens, error) {
	var token domain.Tokens
	return &token, tx.Where("id = ?", id).First(&token).Error
}

// one query for the whole set
func (r *TokensRepo) FindByIDs(tx *gorm.DB, ids []uint) (map[uint]*domain.Tokens, error) {
	tokens := make(map[uint]*domain.Tokens, len(ids))
	if len(ids) == 0 {
		return tokens, nil
	}

	var rows []domain.Tokens
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	for i := range rows {
		tokens[rows[i].ID] = &rows[i]
	}
	return tokens, nil
}

func (r *TokensRepo) FindEnabled(tx *gorm.DB, chain string) ([]domain.Tokens, error) {
	var tokens []domain.Tokens
	return tokens, tx.Where("chain = ? AND enabled = ?", chain, true).Order("id").Find(&tokens).Error
}
