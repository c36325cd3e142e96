package domain

import "time"

const (
	EVENT_PAYMENT_DETECTED  = "payment.detected"
	EVENT_PAYMENT_CONFIRMED = "payment.confirmed"
	EVENT_PAYMENT_SETTLED   = "payment.settled"
	EVENT_PAYMENT_EXPIRED   = "payment.expired"
	EVENT_PAYMENT_FAILED    = "payment.failed"
	EVENT_CUSTOM            = "custom"
)

var PaymentEvents = [...]string{EVENT_PAYMENT_DETECTED, EVENT_PAYMENT_CONFIRMED, EVENT_PAYMENT_SETTLED, EVENT_PAYMENT_EXPIRED, EVENT_PAYMENT_FAILED}

func IsPaymentEvent(event string) bool {
	for _, e := range PaymentEvents {
		if e == event {
			return true
		}
	}
	return false
}

type DeliveryStatus uint8

const (
	DELIVERY_PENDING DeliveryStatus = iota
	DELIVERY_DELIVERED
	DELIVERY_FAILED
)

var DeliveryStatuses = [...]string{"pending", "delivered", "failed"}

func (s DeliveryStatus) ToString() string {
	if int(s) >= len(DeliveryStatuses) {
		return "unknown"
	}
	return DeliveryStatuses[s]
}

// webhook outbox. rows are written in the same transaction as the state change
type WebhookDeliveries struct {
	ID             uint           `gorm:"primaryKey"`
	PaymentID      string         `gorm:"size:36;index"`
	Event          string         `gorm:"size:64;not null"`
	Url            string         `gorm:"type:text;not null"`
	Payload        string         `gorm:"type:text;not null"` // exact bytes that are sent and signed
	Secret         string         `gorm:"type:text"`
	Status         DeliveryStatus `gorm:"type:smallint;not null;index:idx_webhook_due"`
	Attempts       int            `gorm:"not null;default:0"`
	LastError      string         `gorm:"type:text"`
	LastStatusCode int
	NextAttemptAt  time.Time `gorm:"not null;index:idx_webhook_due"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// webhook wire payload
type WebhookPayload struct {
	Event         string  `json:"event"`
	PaymentID     string  `json:"payment_id"`
	Chain         string  `json:"chain"`
	Address       string  `json:"address"`
	Amount        string  `json:"amount"`
	TokenID       *uint   `json:"token_id,omitempty"`
	Status        string  `json:"status"`
	Confirmations uint64  `json:"confirmations"`
	BlockNumber   *uint64 `json:"block_number,omitempty"`
	TxHash        string  `json:"tx_hash,omitempty"`
	Timestamp     string  `json:"timestamp"`
}

func NewWebhookPayload(event string, p *Payments, now time.Time) WebhookPayload {
	payload := WebhookPayload{
		Event:         event,
		PaymentID:     p.ID,
		Chain:         p.Chain,
		Address:       p.Address,
		Amount:        p.Amount.String(),
		TokenID:       p.TokenID,
		Status:        p.Status.ToString(),
		Confirmations: p.Confirmations,
		BlockNumber:   p.DetectedInBlock,
		Timestamp:     now.UTC().Format(time.RFC3339),
	}

	switch p.Status {
	case STATUS_SETTLED:
		payload.TxHash = p.SweepTxHash
	default:
		payload.TxHash = p.DetectedTxHash
	}

	return payload
}
