// Package hdwallet derives ethereum accounts from a bip39 mnemonic along m/44'/60'/0'/0/i.
package hdwallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

const DefaultPath = "m/44'/60'/0'/0"

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

type Wallet struct {
	// m/44'/60'/0'/0
	account *hdkeychain.ExtendedKey
}

type Account struct {
	Index      uint32
	Address    common.Address
	privateKey *ecdsa.PrivateKey
}

func NewFromMnemonic(mnemonic, passphrase string) (*Wallet, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}

	return NewFromSeed(seed)
}

func NewFromSeed(seed []byte) (*Wallet, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	key := master
	for _, i := range []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
	} {
		key, err = key.Derive(i)
		if err != nil {
			return nil, err
		}
	}

	return &Wallet{account: key}, nil
}

// returns the account at m/44'/60'/0'/0/index
func (w *Wallet) Derive(index uint32) (*Account, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("index %d is out of range", index)
	}

	child, err := w.account.Derive(index)
	if err != nil {
		return nil, err
	}

	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, err
	}

	privateKey := priv.ToECDSA()
	return &Account{
		Index:      index,
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		privateKey: privateKey,
	}, nil
}

// hex key with or without 0x
func FromPrivateKey(key string) (*Account, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(key), "0x"))
	if err != nil {
		return nil, err
	}

	return &Account{
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		privateKey: privateKey,
	}, nil
}

func (a *Account) Path() string {
	return fmt.Sprintf("%s/%d", DefaultPath, a.Index)
}

func (a *Account) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), a.privateKey)
}

func (a *Account) PrivateKeyHex() string {
	return strings.TrimPrefix(hexutil.Encode(crypto.FromECDSA(a.privateKey)), "0x")
}
