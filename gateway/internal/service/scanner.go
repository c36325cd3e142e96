package service

import (
	"context"
	"fmt"
	"math/big"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/evm"
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type ScanReport struct {
	Chain   string `json:"chain"`
	From    uint64 `json:"from"`
	To      uint64 `json:"to"`
	Matched int    `json:"matched"`
	Skipped int    `json:"skipped"` // payments with missing or disabled token
}

type ScannerService struct {
	db           *gorm.DB
	chains       repository.ChainStates
	payments     repository.Payments
	tokens       repository.Tokens
	transactions repository.Transactions
	outbox       Outbox
	sources      map[string]BlockSource
	cfg          config.Scanner
	l            logger.Logger
	m            *Metrics
}

func NewScannerService(db *gorm.DB, repo *repository.Repositories, outbox Outbox, sources map[string]BlockSource, l logger.Logger, m *Metrics, config *config.Config) *ScannerService {
	return &ScannerService{
		db:           db,
		chains:       repo.ChainStates,
		payments:     repo.Payments,
		tokens:       repo.Tokens,
		transactions: repo.Transactions,
		outbox:       outbox,
		sources:      sources,
		cfg:          config.Scanner,
		l:            l,
		m:            m,
	}
}

// pending payments of one scan, indexed by lowercase address
type watchlist struct {
	native    map[string][]*domain.Payments
	tokens    map[string]map[string][]*domain.Payments // contract -> recipient -> payments
	contracts []common.Address
}

// scans the next block range of chain under the cursor lock.
// matches and the new cursor are committed in one transaction
func (s *ScannerService) Scan(ctx context.Context, chain string) (*ScanReport, error) {
	src, ok := s.sources[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownChain, chain)
	}

	report := &ScanReport{Chain: chain}
	var deliveries []*domain.WebhookDeliveries

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := s.chains.AcquireForUpdate(tx, chain)
		if err != nil {
			return err
		}

		head, err := src.CurrentHeight(ctx)
		if err != nil {
			s.l.TemplScanErr("can't get chain head", chain, state.LastScannedBlock, 0, err)
			return err
		}
		if head < s.cfg.ScanLag {
			return nil
		}
		head -= s.cfg.ScanLag

		from := state.LastScannedBlock + 1
		if from > head {
			return nil
		}
		to := min(state.LastScannedBlock+s.cfg.BatchSize, head)
		report.From, report.To = from, to

		pending, err := s.payments.FindByStatus(tx, chain, domain.STATUS_PENDING)
		if err != nil {
			return err
		}

		w, err := s.watchlist(tx, pending, report)
		if err != nil {
			return err
		}

		blocks, logs, err := s.fetch(ctx, src, from, to, w.contracts)
		if err != nil {
			if evm.IsTransient(err) {
				s.l.TemplScanErr("rpc unavailable, scan aborted", chain, from, to, err)
			} else {
				s.l.TemplScanErr("unrecoverable block, scan aborted", chain, from, to, err)
			}
			return err
		}

		// ascending order, the earliest block wins
		for i, block := range blocks {
			for _, btx := range block.Transactions {
				if btx.To == nil || btx.Value == nil {
					continue
				}
				for _, p := range w.native[domain.AddressKey(btx.To.Hex())] {
					d, err := s.match(tx, p, block.Number, btx.Hash, btx.Value)
					if err != nil {
						return err
					}
					if d != nil {
						deliveries = append(deliveries, d)
					}
				}
			}

			for _, log := range logs[i] {
				transfer, err := evm.ParseTransfer(log)
				if err != nil {
					s.l.Error("malformed transfer log skipped", logger.LS_SCANNER, false, "chain", chain, "block", block.Number, "tx_hash", log.TxHash.Hex(), "log_index", log.Index, "error", err.Error())
					continue
				}

				recipients := w.tokens[domain.AddressKey(transfer.Token.Hex())]
				for _, p := range recipients[domain.AddressKey(transfer.To.Hex())] {
					d, err := s.match(tx, p, block.Number, transfer.TxHash, transfer.Value)
					if err != nil {
						return err
					}
					if d != nil {
						deliveries = append(deliveries, d)
					}
				}
			}
		}

		for _, p := range pending {
			if p.Status == domain.STATUS_DETECTED {
				report.Matched++
			}
		}

		return s.chains.Advance(tx, state, to)
	})
	if err != nil {
		return nil, err
	}

	s.outbox.Notify(deliveries...)

	if report.To != 0 {
		s.m.ScannedBlocks.WithLabelValues(chain).Add(float64(report.To - report.From + 1))
		s.m.Cursor.WithLabelValues(chain).Set(float64(report.To))
		s.l.Debug("blocks scanned", "chain", chain, "from", report.From, "to", report.To, "matched", report.Matched)
	}

	return report, nil
}

func (s *ScannerService) watchlist(tx *gorm.DB, pending []domain.Payments, report *ScanReport) (*watchlist, error) {
	w := &watchlist{
		native: make(map[string][]*domain.Payments),
		tokens: make(map[string]map[string][]*domain.Payments),
	}

	var ids []uint
	for i := range pending {
		if pending[i].TokenID != nil {
			ids = append(ids, *pending[i].TokenID)
		}
	}

	tokens, err := s.tokens.FindByIDs(tx, ids)
	if err != nil {
		return nil, err
	}

	for i := range pending {
		p := &pending[i]
		address := domain.AddressKey(p.Address)

		if p.TokenID == nil {
			w.native[address] = append(w.native[address], p)
			continue
		}

		token, ok := tokens[*p.TokenID]
		if !ok || !token.Enabled {
			report.Skipped++
			s.l.TemplPaymentErr("payment skipped", logger.LS_SCANNER, p, fmt.Errorf("%w: %d", domain.ErrUnknownToken, *p.TokenID))
			continue
		}

		if token.IsNative() {
			w.native[address] = append(w.native[address], p)
			continue
		}

		contract := domain.AddressKey(*token.Address)
		if _, ok := w.tokens[contract]; !ok {
			w.tokens[contract] = make(map[string][]*domain.Payments)
			w.contracts = append(w.contracts, token.Contract())
		}
		w.tokens[contract][address] = append(w.tokens[contract][address], p)
	}

	return w, nil
}

// blocks [from, to] with at most MaxInFlight requests at a time.
// transfer logs are fetched only if token payments are watched
func (s *ScannerService) fetch(ctx context.Context, src BlockSource, from, to uint64, contracts []common.Address) ([]*domain.Block, [][]types.Log, error) {
	n := int(to - from + 1)
	blocks := make([]*domain.Block, n)
	logs := make([][]types.Log, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxInFlight)

	for i := 0; i < n; i++ {
		number := from + uint64(i)
		g.Go(func() error {
			block, err := src.BlockByNumber(gctx, number)
			if err != nil {
				return fmt.Errorf("block %d: %w", number, err)
			}
			blocks[i] = block

			if len(contracts) == 0 {
				return nil
			}
			blockLogs, err := src.FilterTransfers(gctx, number, contracts)
			if err != nil {
				return fmt.Errorf("logs of block %d: %w", number, err)
			}
			logs[i] = blockLogs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return blocks, logs, nil
}

// pending -> detected if value covers the amount. nil delivery - no match
func (s *ScannerService) match(tx *gorm.DB, p *domain.Payments, block uint64, hash common.Hash, value *big.Int) (*domain.WebhookDeliveries, error) {
	if p.Status != domain.STATUS_PENDING {
		return nil, nil
	}

	received := evm.BigToDecimal(value)
	if received.LessThan(p.Amount) {
		s.l.TemplPaymentInfo("underpayment ignored", logger.LS_SCANNER, p, "received", received.String(), "tx_hash", hash.Hex())
		return nil, nil
	}

	ok, err := s.payments.Transition(tx, p, domain.STATUS_DETECTED, map[string]any{
		"detected_in_block": block,
		"detected_tx_hash":  hash.Hex(),
		"received_amount":   received,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// changed concurrently, e.g. expired
		return nil, nil
	}

	p.DetectedInBlock = &block
	p.DetectedTxHash = hash.Hex()
	p.ReceivedAmount = received

	if excess := received.Sub(p.Amount); excess.IsPositive() {
		s.m.Overpayments.WithLabelValues(p.Chain).Inc()
		s.l.TemplPaymentInfo("overpayment accepted", logger.LS_SCANNER, p, "received", received.String(), "excess", excess.String())
	}

	err = s.transactions.Create(tx, &domain.Transactions{
		PaymentID:   p.ID,
		TxHash:      hash.Hex(),
		BlockNumber: block,
		Kind:        domain.TX_KIND_DEPOSIT,
		Amount:      received,
		Status:      domain.TX_STATUS_SEEN,
	})
	if err != nil {
		return nil, err
	}

	s.m.Transitions.WithLabelValues(p.Chain, domain.STATUS_DETECTED.ToString()).Inc()
	s.l.TemplPaymentInfo("payment detected", logger.LS_SCANNER, p, "block", block, "tx_hash", hash.Hex())

	return s.outbox.Enqueue(tx, p, domain.EVENT_PAYMENT_DETECTED)
}
