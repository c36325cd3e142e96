package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/evm"
	"chainpay/gateway/internal/infra/postgres"
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/repository"
	"chainpay/pkg/hdwallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"gorm.io/gorm"
)

const NATIVE_TRANSFER_GAS = 21000

var (
	ErrNothingToSweep  = errors.New("nothing to sweep")
	ErrInsufficientGas = errors.New("not enough native balance for gas")
	ErrTxReverted      = errors.New("transaction reverted")
	ErrNoTreasury      = errors.New("treasury address is not configured")
	ErrSweepPending    = errors.New("sweep transaction is not mined yet")

	errSweepDropped = errors.New("sweep transaction dropped")
)

type SweepReport struct {
	Chain    string   `json:"chain"`
	Swept    int      `json:"swept"`
	Failed   int      `json:"failed"`
	Pending  int      `json:"pending"` // sweep tx sent, waiting for inclusion
	TxHashes []string `json:"tx_hashes,omitempty"`
}

type sentTx struct {
	tx      *types.Transaction
	receipt *types.Receipt
	kind    domain.TxKind
	amount  *big.Int
}

type SweeperService struct {
	db           *gorm.DB
	payments     repository.Payments
	tokens       repository.Tokens
	transactions repository.Transactions
	addresses    repository.Addresses
	outbox       Outbox
	clients      map[string]ChainClient
	keys         KeyDeriver
	treasury     common.Address
	// pays gas of token sweeps, optional
	gasFunder *hdwallet.Account
	cfg       config.Sweeper
	l         logger.Logger
	m         *Metrics
}

func NewSweeperService(db *gorm.DB, repo *repository.Repositories, outbox Outbox, clients map[string]ChainClient, keys KeyDeriver, gasFunder *hdwallet.Account, l logger.Logger, m *Metrics, config *config.Config) *SweeperService {
	s := &SweeperService{
		db:           db,
		payments:     repo.Payments,
		tokens:       repo.Tokens,
		transactions: repo.Transactions,
		addresses:    repo.Addresses,
		outbox:       outbox,
		clients:      clients,
		keys:         keys,
		gasFunder:    gasFunder,
		cfg:          config.Sweeper,
		l:            l,
		m:            m,
	}
	if config.Secrets.TreasuryAddress != "" {
		s.treasury = common.HexToAddress(config.Secrets.TreasuryAddress)
	}
	return s
}

func (s *SweeperService) client(chain string) (ChainClient, error) {
	client, ok := s.clients[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownChain, chain)
	}
	if s.treasury == (common.Address{}) {
		return nil, ErrNoTreasury
	}
	return client, nil
}

// sweeps every confirmed payment of chain one by one. a failed payment doesn't stop the others
func (s *SweeperService) Sweep(ctx context.Context, chain string) (*SweepReport, error) {
	client, err := s.client(chain)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.payments.FindByStatus(s.db.WithContext(ctx), chain, domain.STATUS_CONFIRMED)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Chain: chain}
	for i := range confirmed {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		s.sweepOne(ctx, client, &confirmed[i], report)
	}

	return report, nil
}

// sweeps a derived address. without a confirmed payment on it
// native and enabled token balances are moved to the treasury with no status change
func (s *SweeperService) SweepAddress(ctx context.Context, address, chain string) (*SweepReport, error) {
	client, err := s.client(chain)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAddress, address)
	}

	report := &SweepReport{Chain: chain}

	p, err := s.payments.FindByAddress(s.db.WithContext(ctx), chain, address, domain.STATUS_CONFIRMED)
	if err == nil {
		s.sweepOne(ctx, client, p, report)
		return report, nil
	}
	if !postgres.IsNotFound(err) {
		return nil, err
	}

	a, err := s.addresses.FindByAddress(s.db.WithContext(ctx), address)
	if err != nil {
		if postgres.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAddressNotFound, address)
		}
		return nil, err
	}

	acc, err := s.keys.Derive(a.Index)
	if err != nil {
		return nil, err
	}

	tokens, err := s.tokens.FindEnabled(s.db.WithContext(ctx), chain)
	if err != nil {
		return nil, err
	}

	var sent []sentTx
	var errs []error

	// tokens first, the native balance may be needed for their gas
	for i := range tokens {
		if tokens[i].IsNative() {
			continue
		}
		txs, err := s.sweepToken(ctx, client, acc, tokens[i].Contract(), nil)
		if err == nil {
			sent = append(sent, txs...)
		} else if !errors.Is(err, ErrNothingToSweep) {
			errs = append(errs, fmt.Errorf("%s: %w", tokens[i].Symbol, err))
		}
	}

	txs, err := s.sweepNative(ctx, client, acc, nil)
	if err == nil {
		sent = append(sent, txs...)
	} else if !errors.Is(err, ErrNothingToSweep) {
		errs = append(errs, fmt.Errorf("native: %w", err))
	}

	for _, st := range sent {
		report.TxHashes = append(report.TxHashes, st.tx.Hash().Hex())
	}
	if len(sent) > 0 {
		report.Swept = 1
		if err := s.addresses.MarkSwept(s.db.WithContext(ctx), address); err != nil {
			errs = append(errs, err)
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		report.Failed = 1
		s.l.Error("address sweep failed", logger.LS_SWEEPER, false, "chain", chain, "address", address, "error", err.Error())
	}
	return report, err
}

func (s *SweeperService) sweepOne(ctx context.Context, client ChainClient, p *domain.Payments, report *SweepReport) {
	pctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	hash, err := s.sweepPayment(pctx, client, p)
	if errors.Is(err, ErrSweepPending) {
		report.Pending++
		s.l.TemplPaymentInfo("sweep tx is not mined yet", logger.LS_SWEEPER, p, "tx_hash", p.SweepTxHash)
		return
	}
	if err != nil {
		report.Failed++
		if ferr := s.fail(ctx, p, err); ferr != nil {
			s.l.TemplPaymentErr("can't record sweep failure", logger.LS_SWEEPER, p, ferr)
		}
		return
	}

	report.Swept++
	report.TxHashes = append(report.TxHashes, hash)
}

func (s *SweeperService) sweepPayment(ctx context.Context, client ChainClient, p *domain.Payments) (string, error) {
	if p.SweepTxHash != "" {
		hash, err := s.resume(ctx, client, p)
		if !errors.Is(err, errSweepDropped) {
			return hash, err
		}
	}

	acc, err := s.keys.Derive(p.DerivationIndex)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(acc.Address.Hex(), p.Address) {
		return "", fmt.Errorf("derived address %s doesn't match %s", acc.Address.Hex(), p.Address)
	}

	native := true
	var contract common.Address
	if p.TokenID != nil {
		token, err := s.tokens.FindByID(s.db.WithContext(ctx), *p.TokenID)
		if err != nil {
			return "", fmt.Errorf("token %d: %w", *p.TokenID, err)
		}
		native = token.IsNative()
		contract = token.Contract()
	}

	// the sweep tx is stored before waiting, the next cycle picks it up if the wait runs out
	persist := func(st *sentTx) error {
		return s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
			if err := s.record(tx, p.ID, []sentTx{*st}); err != nil {
				return err
			}
			return s.payments.SetSweepTx(tx, p, st.tx.Hash().Hex())
		})
	}

	var sent []sentTx
	if native {
		sent, err = s.sweepNative(ctx, client, acc, persist)
	} else {
		sent, err = s.sweepToken(ctx, client, acc, contract, persist)
	}
	if err != nil {
		if len(sent) > 0 {
			if rerr := s.record(s.db.WithContext(context.WithoutCancel(ctx)), p.ID, sent); rerr != nil {
				s.l.TemplPaymentErr("can't record transactions", logger.LS_SWEEPER, p, rerr)
			}
		}
		if p.SweepTxHash == "" {
			return "", err
		}
		if errors.Is(err, ErrTxReverted) {
			s.clearSent(ctx, p, domain.TX_STATUS_REVERTED, blockOf(sent[len(sent)-1].receipt))
			return "", err
		}
		s.l.TemplPaymentErr("sweep tx sent, wait failed", logger.LS_SWEEPER, p, err)
		return "", ErrSweepPending
	}

	sweep := sent[len(sent)-1]
	return s.settle(ctx, p, sent, sweep.tx.Hash().Hex(), blockOf(sweep.receipt), sweep.amount.String())
}

// sweep tx of an earlier cycle: settled when mined, cleared when reverted,
// errSweepDropped when the node forgot it and a new one has to be sent
func (s *SweeperService) resume(ctx context.Context, client ChainClient, p *domain.Payments) (string, error) {
	hash := common.HexToHash(p.SweepTxHash)

	receipt, err := client.TransactionReceipt(ctx, hash)
	if err == nil {
		if receipt.Status != types.ReceiptStatusSuccessful {
			s.clearSent(ctx, p, domain.TX_STATUS_REVERTED, blockOf(receipt))
			return "", fmt.Errorf("%w: %s", ErrTxReverted, hash.Hex())
		}
		return s.settle(ctx, p, nil, hash.Hex(), blockOf(receipt), "")
	}
	if !errors.Is(err, ethereum.NotFound) {
		return "", err
	}

	// no receipt. still known to the node means it is waiting for inclusion
	_, err = client.TransactionPending(ctx, hash)
	if err == nil {
		return "", ErrSweepPending
	}
	if !errors.Is(err, ethereum.NotFound) {
		return "", err
	}

	s.l.TemplPaymentInfo("sweep tx dropped, sending a new one", logger.LS_SWEEPER, p, "tx_hash", hash.Hex())
	s.clearSent(ctx, p, domain.TX_STATUS_DROPPED, 0)
	if p.SweepTxHash != "" {
		return "", fmt.Errorf("can't clear dropped sweep tx %s", hash.Hex())
	}
	return "", errSweepDropped
}

func (s *SweeperService) settle(ctx context.Context, p *domain.Payments, sent []sentTx, hash string, block uint64, amount string) (string, error) {
	var delivery *domain.WebhookDeliveries
	err := s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		if err := s.record(tx, p.ID, sent); err != nil {
			return err
		}
		if err := s.transactions.UpdateStatus(tx, p.ID, hash, domain.TX_STATUS_MINED, block); err != nil {
			return err
		}

		ok, err := s.payments.Transition(tx, p, domain.STATUS_SETTLED, map[string]any{"sweep_tx_hash": hash})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("payment %s changed during sweep", p.ID)
		}
		p.SweepTxHash = hash

		if err := s.addresses.MarkSwept(tx, p.Address); err != nil {
			return err
		}

		delivery, err = s.outbox.Enqueue(tx, p, domain.EVENT_PAYMENT_SETTLED)
		return err
	})
	if err != nil {
		return "", err
	}

	s.outbox.Notify(delivery)
	s.m.Transitions.WithLabelValues(p.Chain, domain.STATUS_SETTLED.ToString()).Inc()
	s.l.TemplPaymentInfo("payment settled", logger.LS_SWEEPER, p, "tx_hash", hash, "amount_swept", amount)
	return hash, nil
}

// marks the stored sweep tx and forgets it, so the next sweep builds a new one
func (s *SweeperService) clearSent(ctx context.Context, p *domain.Payments, status string, block uint64) {
	hash := p.SweepTxHash
	err := s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		if err := s.transactions.UpdateStatus(tx, p.ID, hash, status, block); err != nil {
			return err
		}
		return s.payments.SetSweepTx(tx, p, "")
	})
	if err != nil {
		s.l.TemplPaymentErr("can't clear sweep tx", logger.LS_SWEEPER, p, err)
	}
}

func (s *SweeperService) record(tx *gorm.DB, paymentID string, sent []sentTx) error {
	for _, st := range sent {
		transaction := &domain.Transactions{
			PaymentID:   paymentID,
			TxHash:      st.tx.Hash().Hex(),
			BlockNumber: blockOf(st.receipt),
			Kind:        st.kind,
			Amount:      evm.BigToDecimal(st.amount),
			Status:      domain.TX_STATUS_SENT,
		}
		if st.receipt != nil {
			transaction.Status = domain.TX_STATUS_MINED
			if st.receipt.Status != types.ReceiptStatusSuccessful {
				transaction.Status = domain.TX_STATUS_REVERTED
			}
		}
		if err := s.transactions.Create(tx, transaction); err != nil {
			return err
		}
	}
	return nil
}

func blockOf(receipt *types.Receipt) uint64 {
	if receipt == nil || receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}

// attempt is counted, the payment stays confirmed until the attempts are exhausted
func (s *SweeperService) fail(ctx context.Context, p *domain.Payments, cause error) error {
	s.m.SweepFailures.WithLabelValues(p.Chain).Inc()
	s.l.TemplPaymentErr("sweep failed", logger.LS_SWEEPER, p, cause)

	var delivery *domain.WebhookDeliveries
	var failed bool
	err := s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		if err := s.payments.RecordSweepFailure(tx, p, cause.Error()); err != nil {
			return err
		}
		if s.cfg.MaxAttempts <= 0 || p.SweepAttempts < s.cfg.MaxAttempts {
			return nil
		}

		ok, err := s.payments.Transition(tx, p, domain.STATUS_FAILED, nil)
		if err != nil || !ok {
			return err
		}
		failed = true
		delivery, err = s.outbox.Enqueue(tx, p, domain.EVENT_PAYMENT_FAILED)
		return err
	})
	if err != nil {
		return err
	}

	if failed {
		s.outbox.Notify(delivery)
		s.m.Transitions.WithLabelValues(p.Chain, domain.STATUS_FAILED.ToString()).Inc()
		s.l.TemplPaymentErr("sweep attempts exhausted", logger.LS_SWEEPER, p, cause)
	}
	return nil
}

// balance minus the 21000 gas reserve goes to the treasury
func (s *SweeperService) sweepNative(ctx context.Context, client ChainClient, acc *hdwallet.Account, onSent func(*sentTx) error) ([]sentTx, error) {
	balance, err := client.BalanceAt(ctx, acc.Address)
	if err != nil {
		return nil, err
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	fee := new(big.Int).Mul(big.NewInt(NATIVE_TRANSFER_GAS), gasPrice)
	value := new(big.Int).Sub(balance, fee)
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: balance %s, gas cost %s", ErrNothingToSweep, balance, fee)
	}

	st, err := s.send(ctx, client, acc, txRequest{
		kind:     domain.TX_KIND_SWEEP,
		to:       &s.treasury,
		value:    value,
		amount:   value,
		gas:      NATIVE_TRANSFER_GAS,
		gasPrice: gasPrice,
	}, onSent)
	if st == nil {
		return nil, err
	}
	return []sentTx{*st}, err
}

// transfer(treasury, balance). gas is topped up from the funder if the address lacks it
func (s *SweeperService) sweepToken(ctx context.Context, client ChainClient, acc *hdwallet.Account, contract common.Address, onSent func(*sentTx) error) ([]sentTx, error) {
	balance, err := client.TokenBalance(ctx, contract, acc.Address)
	if err != nil {
		return nil, err
	}
	if balance.Sign() <= 0 {
		return nil, fmt.Errorf("%w: token %s", ErrNothingToSweep, contract.Hex())
	}

	data, err := evm.PackTransfer(s.treasury, balance)
	if err != nil {
		return nil, err
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{From: acc.Address, To: &contract, Data: data})
	if err != nil || gasLimit == 0 {
		s.l.Debug("gas estimate failed, using fallback", "token", contract.Hex(), "gas", s.cfg.TokenGasLimit, "error", fmt.Sprint(err))
		gasLimit = s.cfg.TokenGasLimit
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	var sent []sentTx

	fee := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	nativeBalance, err := client.BalanceAt(ctx, acc.Address)
	if err != nil {
		return nil, err
	}
	if nativeBalance.Cmp(fee) < 0 {
		if s.gasFunder == nil {
			return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientGas, nativeBalance, fee)
		}

		missing := new(big.Int).Sub(fee, nativeBalance)
		topup, err := s.send(ctx, client, s.gasFunder, txRequest{
			kind:     domain.TX_KIND_GAS_TOPUP,
			to:       &acc.Address,
			value:    missing,
			amount:   missing,
			gas:      NATIVE_TRANSFER_GAS,
			gasPrice: gasPrice,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("gas top up: %w", err)
		}
		sent = append(sent, *topup)
	}

	st, err := s.send(ctx, client, acc, txRequest{
		kind:     domain.TX_KIND_SWEEP,
		to:       &contract,
		value:    big.NewInt(0),
		amount:   balance,
		gas:      gasLimit,
		gasPrice: gasPrice,
		data:     data,
	}, onSent)
	if st != nil {
		sent = append(sent, *st)
	}
	return sent, err
}

type txRequest struct {
	kind     domain.TxKind
	to       *common.Address
	value    *big.Int
	amount   *big.Int // ledger amount, the token balance for transfers
	gas      uint64
	gasPrice *big.Int
	data     []byte
}

// signs a legacy tx, sends it and waits until it is mined with status 1.
// once broadcast the tx is returned along with any wait error, onSent runs before waiting
func (s *SweeperService) send(ctx context.Context, client ChainClient, from *hdwallet.Account, req txRequest, onSent func(*sentTx) error) (*sentTx, error) {
	nonce, err := client.PendingNonceAt(ctx, from.Address)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       req.to,
		Value:    req.value,
		Gas:      req.gas,
		GasPrice: req.gasPrice,
		Data:     req.data,
	})

	signed, err := from.SignTx(tx, client.ChainID())
	if err != nil {
		return nil, err
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}

	st := &sentTx{tx: signed, kind: req.kind, amount: req.amount}
	if onSent != nil {
		if err := onSent(st); err != nil {
			s.l.Error("can't store sent tx", logger.LS_SWEEPER, false, "tx_hash", signed.Hash().Hex(), "error", err.Error())
		}
	}

	wctx, cancel := context.WithTimeout(ctx, s.cfg.WaitMinedTimeout)
	defer cancel()

	receipt, err := client.WaitMined(wctx, signed)
	if err != nil {
		return st, fmt.Errorf("wait mined %s: %w", signed.Hash().Hex(), err)
	}
	st.receipt = receipt
	if receipt.Status != types.ReceiptStatusSuccessful {
		return st, fmt.Errorf("%w: %s", ErrTxReverted, signed.Hash().Hex())
	}

	return st, nil
}
