package evm

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// keccak256("Transfer(address,address,uint256)")
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

var ErrMalformedTransfer = errors.New("malformed transfer log")

var erc20 = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic("erc20 abi: " + err.Error())
	}
	return parsed
}

type Transfer struct {
	Token       common.Address
	From        common.Address
	To          common.Address
	Value       *big.Int
	BlockNumber uint64
	TxHash      common.Hash
	Index       uint
}

// decodes an ERC20 Transfer log. data must be exactly one 32 byte word
func ParseTransfer(log types.Log) (*Transfer, error) {
	if len(log.Topics) < 3 || log.Topics[0] != TransferTopic {
		return nil, ErrMalformedTransfer
	}
	if len(log.Data) != 32 {
		return nil, ErrMalformedTransfer
	}

	return &Transfer{
		Token:       log.Address,
		From:        common.BytesToAddress(log.Topics[1].Bytes()[12:]),
		To:          common.BytesToAddress(log.Topics[2].Bytes()[12:]),
		Value:       new(big.Int).SetBytes(log.Data),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		Index:       log.Index,
	}, nil
}

func PackTransfer(to common.Address, value *big.Int) ([]byte, error) {
	return erc20.Pack("transfer", to, value)
}

func PackBalanceOf(owner common.Address) ([]byte, error) {
	return erc20.Pack("balanceOf", owner)
}

func UnpackBalance(data []byte) (*big.Int, error) {
	out, err := erc20.Unpack("balanceOf", data)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, errors.New("unexpected balanceOf output")
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected balanceOf output")
	}
	return balance, nil
}
