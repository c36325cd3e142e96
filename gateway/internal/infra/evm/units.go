package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// 1230000000000000000, 18 to 1.23
func ToDecimal(amount decimal.Decimal, decimals uint8) decimal.Decimal {
	return amount.Shift(-int32(decimals))
}

// 1.23, 18 to 1230000000000000000
func ToBaseUnits(amount decimal.Decimal, decimals uint8) decimal.Decimal {
	return amount.Shift(int32(decimals)).Truncate(0)
}

func BigToDecimal(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}

// amount must be an integer
func DecimalToBig(v decimal.Decimal) *big.Int {
	return v.Truncate(0).BigInt()
}

// EIP-681 payment request
//
// ethereum:<address>@<chain id>?value=<wei>
// ethereum:<token>@<chain id>/transfer?address=<address>&uint256=<amount>
func PaymentURI(address string, amount decimal.Decimal, chainID uint64, token *common.Address) string {
	if token == nil {
		return fmt.Sprintf("ethereum:%s@%d?value=%s", address, chainID, amount.Truncate(0).String())
	}
	return fmt.Sprintf("ethereum:%s@%d/transfer?address=%s&uint256=%s", token.Hex(), chainID, address, amount.Truncate(0).String())
}
