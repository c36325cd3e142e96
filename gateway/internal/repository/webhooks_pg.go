package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"chainpay/gateway/internal/domain"

	"gorm.io/gorm"
)

type WebhooksRepo struct {
}

func InitWebhooksRepo() *WebhooksRepo {
	return &WebhooksRepo{}
}

func (r *WebhooksRepo) Create(tx *gorm.DB, delivery *domain.WebhookDeliveries) error {
	if !json.Valid([]byte(delivery.Payload)) {
		return fmt.Errorf("invalid payload: %s", delivery.Payload)
	}
	return tx.Create(delivery).Error
}

func (r *WebhooksRepo) FindByID(tx *gorm.DB, id uint) (*domain.WebhookDeliveries, error) {
	var delivery domain.WebhookDeliveries
	return &delivery, tx.Where("id = ?", id).First(&delivery).Error
}

func (r *WebhooksRepo) FindDue(tx *gorm.DB, now time.Time, limit int) ([]domain.WebhookDeliveries, error) {
	var deliveries []domain.WebhookDeliveries
	return deliveries, tx.Where("status = ? AND next_attempt_at <= ?", int(domain.DELIVERY_PENDING), now).
		Order("next_attempt_at").
		Limit(limit).
		Find(&deliveries).Error
}

func (r *WebhooksRepo) Claim(tx *gorm.DB, delivery *domain.WebhookDeliveries, until time.Time) (bool, error) {
	res := tx.Model(&domain.WebhookDeliveries{}).
		Where("id = ? AND status = ? AND next_attempt_at = ?", delivery.ID, int(domain.DELIVERY_PENDING), delivery.NextAttemptAt).
		Update("next_attempt_at", until)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	delivery.NextAttemptAt = until
	return true, nil
}

func (r *WebhooksRepo) MarkDelivered(tx *gorm.DB, id uint, attempts int, statusCode int) error {
	return tx.Model(&domain.WebhookDeliveries{}).Where("id = ?", id).Updates(map[string]any{
		"status":           int(domain.DELIVERY_DELIVERED),
		"attempts":         attempts,
		"last_status_code": statusCode,
		"last_error":       "",
	}).Error
}

func (r *WebhooksRepo) MarkRetry(tx *gorm.DB, id uint, attempts int, next time.Time, statusCode int, errMsg string) error {
	return tx.Model(&domain.WebhookDeliveries{}).Where("id = ?", id).Updates(map[string]any{
		"attempts":         attempts,
		"next_attempt_at":  next,
		"last_status_code": statusCode,
		"last_error":       errMsg,
	}).Error
}

func (r *WebhooksRepo) MarkFailed(tx *gorm.DB, id uint, attempts int, statusCode int, errMsg string) error {
	return tx.Model(&domain.WebhookDeliveries{}).Where("id = ?", id).Updates(map[string]any{
		"status":           int(domain.DELIVERY_FAILED),
		"attempts":         attempts,
		"last_status_code": statusCode,
		"last_error":       errMsg,
	}).Error
}
