package repository

import (
	"fmt"
	"time"

	"chainpay/gateway/internal/domain"

	"gorm.io/gorm"
)

type PaymentsRepo struct {
}

func InitPaymentsRepo() *PaymentsRepo {
	return &PaymentsRepo{}
}

func (r *PaymentsRepo) Create(tx *gorm.DB, payment *domain.Payments) error {
	return tx.Create(payment).Error
}

func (r *PaymentsRepo) FindByID(tx *gorm.DB, id string) (*domain.Payments, error) {
	var payment domain.Payments
	return &payment, tx.Where("id = ?", id).First(&payment).Error
}

func (r *PaymentsRepo) FindByStatus(tx *gorm.DB, chain string, statuses ...domain.Status) ([]domain.Payments, error) {
	var payments []domain.Payments
	return payments, tx.Where("chain = ? AND status IN ?", chain, statusValues(statuses)).Order("created_at").Find(&payments).Error
}

// pending or detected payments with passed deadline, across all chains
func (r *PaymentsRepo) FindExpired(tx *gorm.DB, now time.Time, limit int) ([]domain.Payments, error) {
	var payments []domain.Payments
	return payments, tx.Where("status IN ? AND expires_at <= ?", statusValues([]domain.Status{domain.STATUS_PENDING, domain.STATUS_DETECTED}), now).
		Order("expires_at").
		Limit(limit).
		Find(&payments).Error
}

func (r *PaymentsRepo) FindByAddress(tx *gorm.DB, chain, address string, status domain.Status) (*domain.Payments, error) {
	var payment domain.Payments
	return &payment, tx.Where("chain = ? AND LOWER(address) = ? AND status = ?", chain, domain.AddressKey(address), status).
		Order("created_at").
		First(&payment).Error
}

func (r *PaymentsRepo) Transition(tx *gorm.DB, payment *domain.Payments, to domain.Status, fields map[string]any) (bool, error) {
	if err := domain.CheckTransition(payment.Status, to); err != nil {
		return false, err
	}

	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	res := tx.Model(&domain.Payments{}).
		Where("id = ? AND status = ?", payment.ID, payment.Status).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	payment.Status = to
	return true, nil
}

// confirmations never go down
func (r *PaymentsRepo) UpdateConfirmations(tx *gorm.DB, payment *domain.Payments, confirmations uint64) error {
	if confirmations <= payment.Confirmations {
		return nil
	}

	err := tx.Model(&domain.Payments{}).
		Where("id = ? AND confirmations < ?", payment.ID, confirmations).
		Update("confirmations", confirmations).Error
	if err != nil {
		return err
	}
	payment.Confirmations = confirmations
	return nil
}

func (r *PaymentsRepo) RecordSweepFailure(tx *gorm.DB, payment *domain.Payments, errMsg string) error {
	err := tx.Model(&domain.Payments{}).
		Where("id = ?", payment.ID).
		Updates(map[string]any{
			"sweep_attempts":   gorm.Expr("sweep_attempts + 1"),
			"last_sweep_error": errMsg,
		}).Error
	if err != nil {
		return err
	}

	payment.SweepAttempts++
	payment.LastSweepError = errMsg
	return nil
}

func (r *PaymentsRepo) SetSweepTx(tx *gorm.DB, payment *domain.Payments, hash string) error {
	res := tx.Model(&domain.Payments{}).
		Where("id = ? AND status = ?", payment.ID, domain.STATUS_CONFIRMED).
		Update("sweep_tx_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("payment %s is not confirmed", payment.ID)
	}

	payment.SweepTxHash = hash
	return nil
}

func statusValues(statuses []domain.Status) []int {
	values := make([]int, len(statuses))
	for i, s := range statuses {
		values[i] = int(s)
	}
	return values
}
