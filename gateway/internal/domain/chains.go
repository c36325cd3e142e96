package domain

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// scan cursor, one row per configured chain
type ChainStates struct {
	ID               uint   `gorm:"primaryKey"`
	Chain            string `gorm:"size:64;uniqueIndex;not null"`
	LastScannedBlock uint64 `gorm:"not null;default:0"`
	UpdatedAt        time.Time
}

type Tokens struct {
	ID       uint    `gorm:"primaryKey"`
	Chain    string  `gorm:"size:64;not null;uniqueIndex:idx_tokens_chain_address"`
	Address  *string `gorm:"size:42;uniqueIndex:idx_tokens_chain_address"` // nil - native asset marker
	Symbol   string  `gorm:"size:16;not null"`
	Decimals uint8   `gorm:"not null;default:18"`
	Enabled  bool    `gorm:"not null"`
}

func (t *Tokens) IsNative() bool {
	return t.Address == nil || *t.Address == ""
}

func (t *Tokens) Contract() common.Address {
	if t.IsNative() {
		return common.Address{}
	}
	return common.HexToAddress(*t.Address)
}

// block as seen by the scanner. only value transfers are kept
type Block struct {
	Number       uint64
	Hash         common.Hash
	Transactions []BlockTx
}

type BlockTx struct {
	Hash  common.Hash
	To    *common.Address // nil - contract creation
	Value *big.Int
}

// lowercase hex, used as map key for address matching
func AddressKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
