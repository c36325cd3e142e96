package repository

import (
	"fmt"

	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/postgres"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChainStatesRepo struct {
}

func InitChainStatesRepo() *ChainStatesRepo {
	return &ChainStatesRepo{}
}

func (r *ChainStatesRepo) Seed(tx *gorm.DB, chain string, startBlock uint64) error {
	var state domain.ChainStates
	return tx.Where(domain.ChainStates{Chain: chain}).
		Attrs(domain.ChainStates{LastScannedBlock: startBlock}).
		FirstOrCreate(&state).Error
}

// SELECT ... FOR UPDATE. a second caller for the same chain blocks until tx ends
func (r *ChainStatesRepo) AcquireForUpdate(tx *gorm.DB, chain string) (*domain.ChainStates, error) {
	var state domain.ChainStates
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("chain = ?", chain).First(&state).Error
	if err != nil {
		if postgres.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrChainNotSeeded, chain)
		}
		return nil, err
	}
	return &state, nil
}

// panics if the cursor would move backwards
func (r *ChainStatesRepo) Advance(tx *gorm.DB, state *domain.ChainStates, toBlock uint64) error {
	if toBlock < state.LastScannedBlock {
		panic(fmt.Sprintf("chain %s: cursor moves backwards: %d -> %d", state.Chain, state.LastScannedBlock, toBlock))
	}
	if toBlock == state.LastScannedBlock {
		return nil
	}

	err := tx.Model(state).Update("last_scanned_block", toBlock).Error
	if err != nil {
		return err
	}
	state.LastScannedBlock = toBlock
	return nil
}

func (r *ChainStatesRepo) Find(tx *gorm.DB, chain string) (*domain.ChainStates, error) {
	var state domain.ChainStates
	return &state, tx.Where("chain = ?", chain).First(&state).Error
}

func (r *ChainStatesRepo) FindAll(tx *gorm.DB) ([]domain.ChainStates, error) {
	var states []domain.ChainStates
	return states, tx.Order("chain").Find(&states).Error
}
