package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"chainpay/gateway/internal/domain"

	"github.com/shopspring/decimal"
)

func TestCreatePaymentDerivesSequentialAddresses(t *testing.T) {
	env := newTestEnv(t, 100)

	want := []string{
		"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
	}

	for i, address := range want {
		p, err := env.payments.CreatePayment(context.Background(), domain.CreatePayment{
			Chain:  testChain,
			Amount: decimal.NewFromInt(1_000),
		})
		if err != nil {
			t.Fatal(err)
		}
		if p.Address != address || p.DerivationIndex != uint32(i) {
			t.Fatalf("payment %d: %s index %d", i, p.Address, p.DerivationIndex)
		}
		if p.Status != domain.STATUS_PENDING {
			t.Fatalf("status %s", p.Status.ToString())
		}

		got, err := env.payments.GetPayment(context.Background(), p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Address != address || !got.Amount.Equal(p.Amount) {
			t.Fatalf("stored %s %s", got.Address, got.Amount)
		}

		if _, err := env.repo.Addresses.FindByAddress(env.db, address); err != nil {
			t.Fatalf("address %s not stored: %v", address, err)
		}
	}
}

func TestCreatePaymentLifetime(t *testing.T) {
	env := newTestEnv(t, 100)

	before := time.Now().UTC()
	p, err := env.payments.CreatePayment(context.Background(), domain.CreatePayment{
		Chain:    testChain,
		Amount:   decimal.NewFromInt(1),
		Lifetime: 10 * time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.ExpiresAt.Before(before.Add(10*time.Minute)) || p.ExpiresAt.After(time.Now().UTC().Add(10*time.Minute)) {
		t.Fatalf("expires at %s", p.ExpiresAt)
	}

	p, err = env.payments.CreatePayment(context.Background(), domain.CreatePayment{Chain: testChain, Amount: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatal(err)
	}
	if p.ExpiresAt.Before(before.Add(env.config.Payments.DefaultLifetime)) {
		t.Fatalf("default lifetime not applied: %s", p.ExpiresAt)
	}
}

func TestCreatePaymentErrors(t *testing.T) {
	env := newTestEnv(t, 100)

	address := testToken
	usdt := env.token(t, &address)
	native := env.token(t, nil)

	disabled := native.ID
	if err := env.db.Model(native).Update("enabled", false).Error; err != nil {
		t.Fatal(err)
	}
	unknown := uint(999)

	tests := []struct {
		name string
		req  domain.CreatePayment
		want error
	}{
		{"unknown chain", domain.CreatePayment{Chain: "dogecoin", Amount: decimal.NewFromInt(1)}, domain.ErrUnknownChain},
		{"zero amount", domain.CreatePayment{Chain: testChain, Amount: decimal.Zero}, domain.ErrInvalidAmount},
		{"negative amount", domain.CreatePayment{Chain: testChain, Amount: decimal.NewFromInt(-1)}, domain.ErrInvalidAmount},
		{"fractional amount", domain.CreatePayment{Chain: testChain, Amount: decimal.RequireFromString("1.5")}, domain.ErrInvalidAmount},
		{"lifetime above max", domain.CreatePayment{Chain: testChain, Amount: decimal.NewFromInt(1), Lifetime: 100 * time.Hour}, domain.ErrInvalidLifetime},
		{"negative lifetime", domain.CreatePayment{Chain: testChain, Amount: decimal.NewFromInt(1), Lifetime: -time.Minute}, domain.ErrInvalidLifetime},
		{"invalid webhook url", domain.CreatePayment{Chain: testChain, Amount: decimal.NewFromInt(1), WebhookUrl: "not a url"}, domain.ErrInvalidUrl},
		{"unknown token", domain.CreatePayment{Chain: testChain, Amount: decimal.NewFromInt(1), TokenID: &unknown}, domain.ErrUnknownToken},
		{"disabled token", domain.CreatePayment{Chain: testChain, Amount: decimal.NewFromInt(1), TokenID: &disabled}, domain.ErrUnknownToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.payments.CreatePayment(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	// nothing reserved by the rejected requests
	p, err := env.payments.CreatePayment(context.Background(), domain.CreatePayment{Chain: testChain, Amount: decimal.NewFromInt(1), TokenID: &usdt.ID})
	if err != nil {
		t.Fatal(err)
	}
	if p.DerivationIndex != 0 {
		t.Fatalf("index %d", p.DerivationIndex)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	env := newTestEnv(t, 100)

	if _, err := env.payments.GetPayment(context.Background(), "00000000-0000-0000-0000-000000000000"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestTokensFindByID(t *testing.T) {
	env := newTestEnv(t, 100)
	tokens := NewTokensService(env.db, env.repo.Tokens)

	native := env.token(t, nil)
	got, err := tokens.FindByID(context.Background(), native.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Symbol != "ETH" || !got.IsNative() {
		t.Fatalf("token: %+v", got)
	}

	if _, err := tokens.FindByID(context.Background(), 999); !errors.Is(err, domain.ErrUnknownToken) {
		t.Fatalf("got %v", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 100)
	env.setCursor(t, 42)

	if err := Seed(context.Background(), env.db, env.config); err != nil {
		t.Fatal(err)
	}

	var tokens int64
	env.db.Model(&domain.Tokens{}).Count(&tokens)
	if tokens != 2 {
		t.Fatalf("%d tokens", tokens)
	}

	state, err := env.repo.ChainStates.Find(env.db, testChain)
	if err != nil {
		t.Fatal(err)
	}
	if state.LastScannedBlock != 42 {
		t.Fatalf("cursor reset to %d", state.LastScannedBlock)
	}
}
