package service

import (
	"context"
	"math/big"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/cache"
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/repository"
	"chainpay/pkg/hdwallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"gorm.io/gorm"
)

// read side of a chain, enough for the scanner and confirmations
type BlockSource interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*domain.Block, error)
	FilterTransfers(ctx context.Context, number uint64, tokens []common.Address) ([]types.Log, error)
}

type ChainClient interface {
	BlockSource
	ChainID() *big.Int
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// ethereum.NotFound - not included yet
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	// ethereum.NotFound - unknown to the node
	TransactionPending(ctx context.Context, hash common.Hash) (bool, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

type KeyDeriver interface {
	Derive(index uint32) (*hdwallet.Account, error)
}

type Outbox interface {
	Enqueue(tx *gorm.DB, p *domain.Payments, event string) (*domain.WebhookDeliveries, error)
	EnqueueRaw(tx *gorm.DB, paymentID, event, url string, payload []byte, secret string) (*domain.WebhookDeliveries, error)
	// first attempt of committed rows
	Notify(deliveries ...*domain.WebhookDeliveries)
	RetryDue(ctx context.Context) (int, error)
}

type WebhookSender interface {
	Deliver(ctx context.Context, url string, payload []byte, secret string) (int, error)
	UpdateList(proxies []string)
	GetList() []string
}

type Locker interface {
	// false - the key is already locked
	TryLock(key string) bool
	Unlock(key string)
	IsLocked(key string) bool
}

// delivers jobs to workers. nats jetstream or in-process
type JobQueue interface {
	Publish(ctx context.Context, job *domain.Jobs) error
	// blocks until ctx is done
	Consume(ctx context.Context, handler func(ctx context.Context, job *domain.Jobs)) error
}

type Payments interface {
	CreatePayment(ctx context.Context, req domain.CreatePayment) (*domain.Payments, error)
	GetPayment(ctx context.Context, id string) (*domain.Payments, error)
}

type Admin interface {
	TriggerScan(ctx context.Context, chain string) (string, error)
	TriggerSweep(ctx context.Context, chain string) (string, error)
	SweepAddress(ctx context.Context, address, chain string) (string, error)
	ProcessPayment(ctx context.Context, paymentID string) (string, error)
	SendWebhook(ctx context.Context, paymentID, event string) (string, error)
	CustomWebhook(ctx context.Context, url string, payload map[string]any, secret string) (string, error)
	GetJobStatus(ctx context.Context, id string) (*domain.Jobs, error)
}

type QrCodes interface {
	// base64 png of the payment uri
	ForPayment(p *domain.Payments, token *domain.Tokens) (string, error)
	PaymentURI(p *domain.Payments, token *domain.Tokens) (string, error)
	FindOrNew(content string) (string, error)
}

type Tokens interface {
	FindByID(ctx context.Context, id uint) (*domain.Tokens, error)
}

// chain clients and keys the services work with
type Deps struct {
	Clients   map[string]ChainClient
	Wallet    KeyDeriver
	GasFunder *hdwallet.Account // nil - token sweeps need gas on the address
	Queue     JobQueue          // nil - in-process queue
}

type Services struct {
	Payments      Payments
	Admin         Admin
	QrCodes       QrCodes
	Tokens        Tokens
	WebhookSender WebhookSender

	Scanner       *ScannerService
	Confirmations *ConfirmationsService
	Reaper        *ReaperService
	Sweeper       *SweeperService
	Webhooks      *WebhooksService
	Jobs          *JobsService
	Scheduler     *SchedulerService
	Metrics       *Metrics
}

func HewServices(db *gorm.DB, deps Deps, l logger.Logger, config *config.Config) *Services {
	repo := repository.New()
	m := NewMetrics()

	sources := make(map[string]BlockSource, len(deps.Clients))
	for name, client := range deps.Clients {
		sources[name] = client
	}

	queue := deps.Queue
	if queue == nil {
		queue = NewLocalQueue(cache.JobsCache, config.Scheduler.JobRetention)
	}

	webhookSender := NewWebhookSenderService(config.ProxyList, config.Webhook.Timeout, l)
	webhooks := NewWebhooksService(db, repo.Webhooks, webhookSender, l, m, config)

	scanner := NewScannerService(db, repo, webhooks, sources, l, m, config)
	confirmations := NewConfirmationsService(db, repo.Payments, webhooks, sources, l, m, config)
	reaper := NewReaperService(db, repo.Payments, webhooks, l, m)
	sweeper := NewSweeperService(db, repo, webhooks, deps.Clients, deps.Wallet, deps.GasFunder, l, m, config)

	jobs := NewJobsService(db, repo.Jobs, queue, NewLockerService(cache.InitStorage()), l, m, config)
	payments := NewPaymentsService(db, repo, deps.Wallet, config)

	RegisterRunners(jobs, &Runners{
		Chains:        config.ChainNames(),
		Scanner:       scanner,
		Confirmations: confirmations,
		Reaper:        reaper,
		Sweeper:       sweeper,
		Webhooks:      webhooks,
		Jobs:          jobs,
		Payments:      payments,
		Retention:     config.Scheduler.JobRetention,
	})

	return &Services{
		Payments:      payments,
		Admin:         NewAdminService(jobs, payments, config),
		QrCodes:       NewQrCodesService(config),
		Tokens:        NewTokensService(db, repo.Tokens),
		WebhookSender: webhookSender,
		Scanner:       scanner,
		Confirmations: confirmations,
		Reaper:        reaper,
		Sweeper:       sweeper,
		Webhooks:      webhooks,
		Jobs:          jobs,
		Scheduler:     NewSchedulerService(jobs, l, config),
		Metrics:       m,
	}
}
