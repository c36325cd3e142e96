package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/cache"
	"chainpay/gateway/internal/infra/evm"
	"chainpay/gateway/internal/infra/postgres"
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/repository"
	"chainpay/pkg/hdwallet"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	testMnemonic = "test test test test test test test test test test test junk"
	testTreasury = "0x90F79bf6EB2c4f870365E785982E1f101E93b906"
	testToken    = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	testChain    = "ethereum"
)

var errRPCDown = &evm.RPCError{Op: "eth_blockNumber", Transient: true, Err: errors.New("connection refused")}

const testConfig = `
[[chains]]
name = "ethereum"
rpc_urls = ["http://127.0.0.1:8545"]
chain_id = 1337
confirmations = 3

[[tokens]]
chain = "ethereum"
symbol = "ETH"

[[tokens]]
chain = "ethereum"
address = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
symbol = "USDT"
decimals = 6

[webhook]
url = "http://merchant.test/hook"
max_attempts = 3
`

// fake evm node
type fakeChain struct {
	mu sync.Mutex

	chainID  *big.Int
	head     uint64
	headErr  error
	blocks   map[uint64]*domain.Block
	logs     map[uint64][]types.Log
	blockErr map[uint64]error

	balances      map[common.Address]*big.Int
	tokenBalances map[common.Address]*big.Int // owner -> balance of testToken
	gasPrice      *big.Int
	gas           uint64
	estimateErr   error
	receiptStatus uint64
	sent          []*types.Transaction
	// WaitMined runs out, sent txs stay in the mempool until mineAll
	holdMining bool
	mined      map[common.Hash]*types.Receipt
	dropped    map[common.Hash]bool

	blockCalls int
}

func newFakeChain(head uint64) *fakeChain {
	return &fakeChain{
		chainID:       big.NewInt(1337),
		head:          head,
		blocks:        make(map[uint64]*domain.Block),
		logs:          make(map[uint64][]types.Log),
		blockErr:      make(map[uint64]error),
		balances:      make(map[common.Address]*big.Int),
		tokenBalances: make(map[common.Address]*big.Int),
		gasPrice:      big.NewInt(1_000_000_000),
		gas:           60000,
		receiptStatus: types.ReceiptStatusSuccessful,
		mined:         make(map[common.Hash]*types.Receipt),
		dropped:       make(map[common.Hash]bool),
	}
}

func randomHash() common.Hash {
	return common.HexToHash(fmt.Sprintf("0x%016x%016x", gofakeit.Uint64(), gofakeit.Uint64()))
}

func randomAddress() string {
	return common.HexToAddress(fmt.Sprintf("0x%040x", gofakeit.Uint64())).Hex()
}

func (c *fakeChain) addNativeTx(number uint64, to string, value int64) common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()

	block, ok := c.blocks[number]
	if !ok {
		block = &domain.Block{Number: number, Hash: randomHash()}
		c.blocks[number] = block
	}

	hash := randomHash()
	recipient := common.HexToAddress(to)
	block.Transactions = append(block.Transactions, domain.BlockTx{Hash: hash, To: &recipient, Value: big.NewInt(value)})
	return hash
}

func (c *fakeChain) addTransfer(number uint64, token, to string, value int64) common.Hash {
	hash := randomHash()
	c.addTransferInTx(number, hash, token, to, value)
	return hash
}

func (c *fakeChain) addTransferInTx(number uint64, hash common.Hash, token, to string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs[number] = append(c.logs[number], types.Log{
		Address:     common.HexToAddress(token),
		Topics:      []common.Hash{evm.TransferTopic, common.BytesToHash(common.HexToAddress(randomAddress()).Bytes()), common.BytesToHash(common.HexToAddress(to).Bytes())},
		Data:        common.LeftPadBytes(big.NewInt(value).Bytes(), 32),
		BlockNumber: number,
		TxHash:      hash,
		Index:       uint(len(c.logs[number])),
	})
}

func (c *fakeChain) setHead(head uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head, c.headErr = head, err
}

func (c *fakeChain) CurrentHeight(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, c.headErr
}

func (c *fakeChain) BlockByNumber(ctx context.Context, number uint64) (*domain.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blockCalls++
	if err := c.blockErr[number]; err != nil {
		return nil, err
	}
	if block, ok := c.blocks[number]; ok {
		return block, nil
	}
	return &domain.Block{Number: number}, nil
}

func (c *fakeChain) FilterTransfers(ctx context.Context, number uint64, tokens []common.Address) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var logs []types.Log
	for _, log := range c.logs[number] {
		for _, token := range tokens {
			if log.Address == token {
				logs = append(logs, log)
			}
		}
	}
	return logs, nil
}

func (c *fakeChain) ChainID() *big.Int {
	return c.chainID
}

func (c *fakeChain) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *fakeChain) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.tokenBalances[owner]; ok && token == common.HexToAddress(testToken) {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.gasPrice), nil
}

func (c *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.sent)), nil
}

func (c *fakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.gas, c.estimateErr
}

func (c *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, tx)
	return nil
}

func (c *fakeChain) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holdMining {
		return nil, context.DeadlineExceeded
	}
	return c.mine(tx), nil
}

func (c *fakeChain) mine(tx *types.Transaction) *types.Receipt {
	receipt := &types.Receipt{Status: c.receiptStatus, TxHash: tx.Hash(), BlockNumber: new(big.Int).SetUint64(c.head)}
	c.mined[tx.Hash()] = receipt
	return receipt
}

// includes every sent tx that isn't mined or dropped
func (c *fakeChain) mineAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdMining = false
	for _, tx := range c.sent {
		if _, ok := c.mined[tx.Hash()]; !ok && !c.dropped[tx.Hash()] {
			c.mine(tx)
		}
	}
}

func (c *fakeChain) drop(hash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped[hash] = true
}

func (c *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if receipt, ok := c.mined[hash]; ok {
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

func (c *fakeChain) TransactionPending(ctx context.Context, hash common.Hash) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped[hash] {
		return false, ethereum.NotFound
	}
	if _, ok := c.mined[hash]; ok {
		return false, nil
	}
	for _, tx := range c.sent {
		if tx.Hash() == hash {
			return true, nil
		}
	}
	return false, ethereum.NotFound
}

func (c *fakeChain) sentTxs() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

type delivered struct {
	url     string
	payload []byte
	secret  string
}

// records deliveries, answers with code/err
type fakeSender struct {
	mu        sync.Mutex
	code      int
	err       error
	delivered []delivered
}

func (s *fakeSender) Deliver(ctx context.Context, url string, payload []byte, secret string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, delivered{url: url, payload: payload, secret: secret})
	if s.code == 0 && s.err == nil {
		return 200, nil
	}
	return s.code, s.err
}

func (s *fakeSender) set(code int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code, s.err = code, err
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func (s *fakeSender) UpdateList(proxies []string) {}
func (s *fakeSender) GetList() []string           { return nil }

type testEnv struct {
	db     *gorm.DB
	repo   *repository.Repositories
	config *config.Config
	chain  *fakeChain
	sender *fakeSender
	wallet *hdwallet.Wallet
	m      *Metrics

	webhooks      *WebhooksService
	scanner       *ScannerService
	confirmations *ConfirmationsService
	reaper        *ReaperService
	sweeper       *SweeperService
	payments      *PaymentsService
	jobs          *JobsService
	admin         *AdminService
}

func newTestEnv(t *testing.T, head uint64) *testEnv {
	t.Helper()

	c, err := config.Parse(testConfig)
	if err != nil {
		t.Fatal(err)
	}
	c.Secrets = config.Secrets{
		Mnemonic:        testMnemonic,
		TreasuryAddress: testTreasury,
		WebhookSecret:   "whsec",
		AdminKey:        gofakeit.LetterN(32),
	}
	c.Scheduler.Timeouts.Default = 5 * time.Second

	wallet, err := hdwallet.NewFromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		db:     postgres.InitTest(),
		repo:   repository.New(),
		config: c,
		chain:  newFakeChain(head),
		sender: &fakeSender{},
		wallet: wallet,
		m:      NewMetrics(),
	}

	if err := Seed(context.Background(), env.db, c); err != nil {
		t.Fatal(err)
	}

	l := logger.Nop()
	sources := map[string]BlockSource{testChain: env.chain}
	clients := map[string]ChainClient{testChain: env.chain}

	env.webhooks = NewWebhooksService(env.db, env.repo.Webhooks, env.sender, l, env.m, c)
	env.scanner = NewScannerService(env.db, env.repo, env.webhooks, sources, l, env.m, c)
	env.confirmations = NewConfirmationsService(env.db, env.repo.Payments, env.webhooks, sources, l, env.m, c)
	env.reaper = NewReaperService(env.db, env.repo.Payments, env.webhooks, l, env.m)
	env.sweeper = NewSweeperService(env.db, env.repo, env.webhooks, clients, wallet, nil, l, env.m, c)
	env.payments = NewPaymentsService(env.db, env.repo, wallet, c)
	env.jobs = NewJobsService(env.db, env.repo.Jobs, NewLocalQueue(cache.InitStorage(), time.Hour), NewLockerService(cache.InitStorage()), l, env.m, c)
	env.admin = NewAdminService(env.jobs, env.payments, c)

	RegisterRunners(env.jobs, &Runners{
		Chains:        c.ChainNames(),
		Scanner:       env.scanner,
		Confirmations: env.confirmations,
		Reaper:        env.reaper,
		Sweeper:       env.sweeper,
		Webhooks:      env.webhooks,
		Jobs:          env.jobs,
		Payments:      env.payments,
		Retention:     c.Scheduler.JobRetention,
	})

	t.Cleanup(func() {
		env.jobs.Wait()
		env.webhooks.Wait()
	})
	return env
}

func (env *testEnv) setCursor(t *testing.T, block uint64) {
	t.Helper()
	err := env.db.Model(&domain.ChainStates{}).Where("chain = ?", testChain).Update("last_scanned_block", block).Error
	if err != nil {
		t.Fatal(err)
	}
}

func (env *testEnv) token(t *testing.T, address *string) *domain.Tokens {
	t.Helper()
	var token domain.Tokens
	q := env.db.Where("chain = ?", testChain)
	if address == nil {
		q = q.Where("address IS NULL")
	} else {
		q = q.Where("address = ?", *address)
	}
	if err := q.First(&token).Error; err != nil {
		t.Fatal(err)
	}
	return &token
}

func (env *testEnv) newPayment(t *testing.T, status domain.Status, amount int64, tokenID *uint) *domain.Payments {
	t.Helper()

	p := &domain.Payments{
		ID:        gofakeit.UUID(),
		Chain:     testChain,
		Address:   randomAddress(),
		TokenID:   tokenID,
		Amount:    decimal.NewFromInt(amount),
		Status:    status,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := env.repo.Payments.Create(env.db, p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (env *testEnv) reload(t *testing.T, p *domain.Payments) *domain.Payments {
	t.Helper()
	fresh, err := env.repo.Payments.FindByID(env.db, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	return fresh
}

func (env *testEnv) deliveries(t *testing.T, paymentID string) []domain.WebhookDeliveries {
	t.Helper()
	env.webhooks.Wait()

	var rows []domain.WebhookDeliveries
	if err := env.db.Where("payment_id = ?", paymentID).Order("id").Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	return rows
}
