package evm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func TestUnits(t *testing.T) {
	wei := decimal.RequireFromString("1230000000000000000")
	if got := ToDecimal(wei, 18); !got.Equal(decimal.RequireFromString("1.23")) {
		t.Fatalf("unexpected %s", got)
	}
	if got := ToBaseUnits(decimal.RequireFromString("1.5"), 6); !got.Equal(decimal.NewFromInt(1500000)) {
		t.Fatalf("unexpected %s", got)
	}
	if got := DecimalToBig(wei); got.Cmp(new(big.Int).Mul(big.NewInt(123), big.NewInt(1e16))) != 0 {
		t.Fatalf("unexpected %s", got)
	}
	if !BigToDecimal(nil).IsZero() {
		t.Fatal("nil must be zero")
	}
}

func TestPaymentURI(t *testing.T) {
	address := "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	native := PaymentURI(address, decimal.NewFromInt(1000), 1, nil)
	if native != "ethereum:0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266@1?value=1000" {
		t.Fatal(native)
	}

	token := common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	transfer := PaymentURI(address, decimal.NewFromInt(50), 1, &token)
	if transfer != "ethereum:0xdAC17F958D2ee523a2206206994597C13D831ec7@1/transfer?address=0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266&uint256=50" {
		t.Fatal(transfer)
	}
}
