package repository

import (
	"chainpay/gateway/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionsRepo struct {
}

func InitTransactionsRepo() *TransactionsRepo {
	return &TransactionsRepo{}
}

// a hash already recorded for the payment is ignored
func (r *TransactionsRepo) Create(tx *gorm.DB, transaction *domain.Transactions) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}, {Name: "tx_hash"}},
		DoNothing: true,
	}).Create(transaction).Error
}

// block 0 keeps the stored block number
func (r *TransactionsRepo) UpdateStatus(tx *gorm.DB, paymentID, txHash, status string, block uint64) error {
	updates := map[string]any{"status": status}
	if block > 0 {
		updates["block_number"] = block
	}
	return tx.Model(&domain.Transactions{}).
		Where("payment_id = ? AND tx_hash = ?", paymentID, txHash).
		Updates(updates).Error
}

func (r *TransactionsRepo) FindByPayment(tx *gorm.DB, paymentID string) ([]domain.Transactions, error) {
	var transactions []domain.Transactions
	return transactions, tx.Where("payment_id = ?", paymentID).Order("id").Find(&transactions).Error
}
