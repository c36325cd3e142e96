package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/cache"
	"chainpay/pkg/rr"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	pkgerrors "github.com/pkg/errors"
)

const gasPriceTTL = 10 * time.Second

// json-rpc client of one chain. calls rotate over the configured urls,
// a transient failure is retried on the next url
type Client struct {
	name    string
	chainID *big.Int
	urls    atomic.Pointer[[]string]
	rr      rr.RoundRobin
	clients map[string]*ethclient.Client
}

func Connect(ctx context.Context, chain config.Chain) (*Client, error) {
	clients := make(map[string]*ethclient.Client, len(chain.RpcUrls))
	for _, url := range chain.RpcUrls {
		cl, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, wrap("dial "+url, err)
		}
		clients[url] = cl
	}

	c := newClient(chain.Name, chain.RpcUrls, clients)

	var chainID *big.Int
	err := c.call(ctx, "chain_id", func(cl *ethclient.Client) (err error) {
		chainID, err = cl.ChainID(ctx)
		return err
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	if chain.ChainID != 0 && chainID.Uint64() != chain.ChainID {
		c.Close()
		return nil, fmt.Errorf("chain %s: rpc reports chain id %s, expected %d", chain.Name, chainID, chain.ChainID)
	}

	c.chainID = chainID
	return c, nil
}

func newClient(name string, urls []string, clients map[string]*ethclient.Client) *Client {
	c := &Client{name: name, clients: clients}
	list := append([]string(nil), urls...)
	c.urls.Store(&list)
	c.rr = rr.New(&c.urls)
	return c
}

func (c *Client) Close() {
	for _, cl := range c.clients {
		cl.Close()
	}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) call(ctx context.Context, op string, fn func(cl *ethclient.Client) error) error {
	var err error
	for attempt := 0; attempt < c.rr.Len(); attempt++ {
		url, ok := c.rr.Next()
		if !ok {
			break
		}

		err = fn(c.clients[url])
		if err == nil {
			return nil
		}
		if !classify(err) || ctx.Err() != nil {
			break
		}
	}
	if err == nil {
		err = pkgerrors.Errorf("chain %s: no rpc urls", c.name)
	}
	return wrap(op, err)
}

func (c *Client) CurrentHeight(ctx context.Context) (height uint64, err error) {
	err = c.call(ctx, "block_number", func(cl *ethclient.Client) (err error) {
		height, err = cl.BlockNumber(ctx)
		return err
	})
	return height, err
}

func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*domain.Block, error) {
	var block *types.Block
	err := c.call(ctx, "block_by_number", func(cl *ethclient.Client) (err error) {
		block, err = cl.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &domain.Block{
		Number:       block.NumberU64(),
		Hash:         block.Hash(),
		Transactions: make([]domain.BlockTx, 0, len(block.Transactions())),
	}
	for _, tx := range block.Transactions() {
		result.Transactions = append(result.Transactions, domain.BlockTx{
			Hash:  tx.Hash(),
			To:    tx.To(),
			Value: tx.Value(),
		})
	}
	return result, nil
}

// Transfer logs of the given token contracts in one block
func (c *Client) FilterTransfers(ctx context.Context, number uint64, tokens []common.Address) (logs []types.Log, err error) {
	block := new(big.Int).SetUint64(number)
	query := ethereum.FilterQuery{
		FromBlock: block,
		ToBlock:   block,
		Addresses: tokens,
		Topics:    [][]common.Hash{{TransferTopic}},
	}
	err = c.call(ctx, "filter_logs", func(cl *ethclient.Client) (err error) {
		logs, err = cl.FilterLogs(ctx, query)
		return err
	})
	return logs, err
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address) (balance *big.Int, err error) {
	err = c.call(ctx, "balance_at", func(cl *ethclient.Client) (err error) {
		balance, err = cl.BalanceAt(ctx, account, nil)
		return err
	})
	return balance, err
}

func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := PackBalanceOf(owner)
	if err != nil {
		return nil, err
	}

	var out []byte
	err = c.call(ctx, "balance_of", func(cl *ethclient.Client) (err error) {
		out, err = cl.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return UnpackBalance(out)
}

// cached per chain for gasPriceTTL
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	key := "gas_price:" + c.name
	if price, ok := cache.GasPriceCache.Load(key).(*big.Int); ok {
		return new(big.Int).Set(price), nil
	}

	var price *big.Int
	err := c.call(ctx, "gas_price", func(cl *ethclient.Client) (err error) {
		price, err = cl.SuggestGasPrice(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	cache.GasPriceCache.Set(key, price, gasPriceTTL)
	return new(big.Int).Set(price), nil
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (nonce uint64, err error) {
	err = c.call(ctx, "pending_nonce", func(cl *ethclient.Client) (err error) {
		nonce, err = cl.PendingNonceAt(ctx, account)
		return err
	})
	return nonce, err
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (gas uint64, err error) {
	err = c.call(ctx, "estimate_gas", func(cl *ethclient.Client) (err error) {
		gas, err = cl.EstimateGas(ctx, msg)
		return err
	})
	return gas, err
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.call(ctx, "send_transaction", func(cl *ethclient.Client) error {
		return cl.SendTransaction(ctx, tx)
	})
}

// ethereum.NotFound - not included yet or unknown to the node
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (receipt *types.Receipt, err error) {
	err = c.call(ctx, "transaction_receipt", func(cl *ethclient.Client) (err error) {
		receipt, err = cl.TransactionReceipt(ctx, hash)
		return err
	})
	return receipt, err
}

// ethereum.NotFound - the node doesn't know the tx, e.g. dropped from the mempool
func (c *Client) TransactionPending(ctx context.Context, hash common.Hash) (pending bool, err error) {
	err = c.call(ctx, "transaction_by_hash", func(cl *ethclient.Client) (err error) {
		_, pending, err = cl.TransactionByHash(ctx, hash)
		return err
	})
	return pending, err
}

// blocks until the tx is included or ctx is done
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (receipt *types.Receipt, err error) {
	err = c.call(ctx, "wait_mined", func(cl *ethclient.Client) (err error) {
		receipt, err = bind.WaitMined(ctx, cl, tx)
		return err
	})
	return receipt, err
}
