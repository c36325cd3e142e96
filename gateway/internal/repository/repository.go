package repository

import (
	"time"

	"chainpay/gateway/internal/domain"

	"gorm.io/gorm"
)

// chain cursor store
type ChainStates interface {
	// creates the row if absent
	Seed(tx *gorm.DB, chain string, startBlock uint64) error
	// locks the row until tx ends
	AcquireForUpdate(tx *gorm.DB, chain string) (*domain.ChainStates, error)
	Advance(tx *gorm.DB, state *domain.ChainStates, toBlock uint64) error
	Find(tx *gorm.DB, chain string) (*domain.ChainStates, error)
	FindAll(tx *gorm.DB) ([]domain.ChainStates, error)
}

type Payments interface {
	Create(tx *gorm.DB, payment *domain.Payments) error
	FindByID(tx *gorm.DB, id string) (*domain.Payments, error)
	FindByStatus(tx *gorm.DB, chain string, statuses ...domain.Status) ([]domain.Payments, error)
	FindExpired(tx *gorm.DB, now time.Time, limit int) ([]domain.Payments, error)
	FindByAddress(tx *gorm.DB, chain, address string, status domain.Status) (*domain.Payments, error)
	// compare-and-set on the current status. false - the row was changed concurrently
	Transition(tx *gorm.DB, payment *domain.Payments, to domain.Status, fields map[string]any) (bool, error)
	UpdateConfirmations(tx *gorm.DB, payment *domain.Payments, confirmations uint64) error
	RecordSweepFailure(tx *gorm.DB, payment *domain.Payments, errMsg string) error
	// sweep tx awaiting inclusion of a confirmed payment. empty hash clears it
	SetSweepTx(tx *gorm.DB, payment *domain.Payments, hash string) error
}

type Tokens interface {
	Seed(tx *gorm.DB, token *domain.Tokens) error
	FindByID(tx *gorm.DB, id uint) (*domain.Tokens, error)
	FindByIDs(tx *gorm.DB, ids []uint) (map[uint]*domain.Tokens, error)
	FindEnabled(tx *gorm.DB, chain string) ([]domain.Tokens, error)
}

type Transactions interface {
	Create(tx *gorm.DB, transaction *domain.Transactions) error
	UpdateStatus(tx *gorm.DB, paymentID, txHash, status string, block uint64) error
	FindByPayment(tx *gorm.DB, paymentID string) ([]domain.Transactions, error)
}

type Addresses interface {
	// reserves the next derivation index under a row lock
	ReserveIndex(tx *gorm.DB) (uint32, error)
	EnsureCounter(tx *gorm.DB) error
	Create(tx *gorm.DB, address *domain.Addresses) error
	FindByAddress(tx *gorm.DB, address string) (*domain.Addresses, error)
	MarkSwept(tx *gorm.DB, address string) error
}

type Webhooks interface {
	Create(tx *gorm.DB, delivery *domain.WebhookDeliveries) error
	FindByID(tx *gorm.DB, id uint) (*domain.WebhookDeliveries, error)
	FindDue(tx *gorm.DB, now time.Time, limit int) ([]domain.WebhookDeliveries, error)
	// moves next_attempt_at forward if nobody else did. false - claimed by another worker
	Claim(tx *gorm.DB, delivery *domain.WebhookDeliveries, until time.Time) (bool, error)
	MarkDelivered(tx *gorm.DB, id uint, attempts int, statusCode int) error
	MarkRetry(tx *gorm.DB, id uint, attempts int, next time.Time, statusCode int, errMsg string) error
	MarkFailed(tx *gorm.DB, id uint, attempts int, statusCode int, errMsg string) error
}

type Jobs interface {
	Create(tx *gorm.DB, job *domain.Jobs) error
	FindByID(tx *gorm.DB, id string) (*domain.Jobs, error)
	// queued -> running. false - already started
	Start(tx *gorm.DB, id string, now time.Time) (bool, error)
	Finish(tx *gorm.DB, id string, status domain.JobStatus, result string, errMsg string, now time.Time) error
	DeleteOlderThan(tx *gorm.DB, before time.Time) (int64, error)
}

type Repositories struct {
	ChainStates  ChainStates
	Payments     Payments
	Tokens       Tokens
	Transactions Transactions
	Addresses    Addresses
	Webhooks     Webhooks
	Jobs         Jobs
}

func New() *Repositories {
	return &Repositories{
		ChainStates:  InitChainStatesRepo(),
		Payments:     InitPaymentsRepo(),
		Tokens:       InitTokensRepo(),
		Transactions: InitTransactionsRepo(),
		Addresses:    InitAddressesRepo(),
		Webhooks:     InitWebhooksRepo(),
		Jobs:         InitJobsRepo(),
	}
}
