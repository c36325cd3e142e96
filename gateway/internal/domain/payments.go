package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payments struct {
	ID              string          `gorm:"primaryKey;size:36"`
	Chain           string          `gorm:"size:64;not null;index:idx_payments_chain_status"`
	Address         string          `gorm:"size:42;not null;index"`
	TokenID         *uint           `gorm:"index"` // nil - native asset
	Amount          decimal.Decimal `gorm:"type:numeric(80,0);not null"` // smallest unit (wei, token base units)
	Status          Status          `gorm:"type:smallint;not null;index:idx_payments_chain_status"`
	Confirmations   uint64          `gorm:"not null;default:0"`
	DetectedInBlock *uint64
	DetectedTxHash  string          `gorm:"size:66"`
	ReceivedAmount  decimal.Decimal `gorm:"type:numeric(80,0)"`
	DerivationIndex uint32          `gorm:"not null"`
	WebhookUrl      string          `gorm:"type:text"` // overrides the global webhook url

	SweepAttempts  int    `gorm:"not null;default:0"`
	LastSweepError string `gorm:"type:text"`
	SweepTxHash    string `gorm:"size:66"`

	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Payments) IsNative() bool {
	return p.TokenID == nil
}

func (p *Payments) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

// request for payments service
type CreatePayment struct {
	Chain      string
	Amount     decimal.Decimal
	TokenID    *uint
	Lifetime   time.Duration // 0 - default lifetime
	WebhookUrl string
}

// on-chain transactions related to a payment. one batch transfer
// may pay several payments, so a hash is unique per payment only
type Transactions struct {
	ID          uint            `gorm:"primaryKey"`
	PaymentID   string          `gorm:"size:36;not null;uniqueIndex:idx_transactions_payment_tx"`
	TxHash      string          `gorm:"size:66;not null;index:idx_transactions_hash;uniqueIndex:idx_transactions_payment_tx"`
	BlockNumber uint64
	Kind        TxKind          `gorm:"size:16;not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(80,0)"`
	Status      string          `gorm:"size:16"`
	CreatedAt   time.Time
}

const (
	TX_STATUS_SEEN     = "seen"
	TX_STATUS_SENT     = "sent" // broadcast, not included yet
	TX_STATUS_MINED    = "mined"
	TX_STATUS_REVERTED = "reverted"
	TX_STATUS_DROPPED  = "dropped"
)

type TxKind string

const (
	TX_KIND_DEPOSIT   TxKind = "deposit"
	TX_KIND_SWEEP     TxKind = "sweep"
	TX_KIND_GAS_TOPUP TxKind = "gas_topup"
)
