package service

import (
	"context"
	"testing"
	"time"

	"chainpay/gateway/internal/domain"
)

func TestConfirmationsArithmetic(t *testing.T) {
	tests := []struct {
		head, detected uint64
		want           uint64
		ok             bool
	}{
		{100, 100, 1, true},
		{102, 100, 3, true},
		{1000, 1, 1000, true},
		{99, 100, 0, false},
	}

	for _, tt := range tests {
		got, ok := Confirmations(tt.head, tt.detected)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Confirmations(%d, %d) = %d, %v; want %d, %v", tt.head, tt.detected, got, ok, tt.want, tt.ok)
		}
	}
}

func detectedPayment(t *testing.T, env *testEnv, block uint64) *domain.Payments {
	t.Helper()
	p := env.newPayment(t, domain.STATUS_DETECTED, 100, nil)
	if err := env.db.Model(p).Update("detected_in_block", block).Error; err != nil {
		t.Fatal(err)
	}
	return p
}

func TestConfirmPending(t *testing.T) {
	// 3 confirmations required
	env := newTestEnv(t, 101)
	p := detectedPayment(t, env, 100)

	confirmed, err := env.confirmations.ConfirmPending(context.Background(), testChain)
	if err != nil {
		t.Fatal(err)
	}
	if confirmed != 0 {
		t.Fatalf("confirmed %d at 2 confirmations", confirmed)
	}
	got := env.reload(t, p)
	if got.Status != domain.STATUS_DETECTED || got.Confirmations != 2 {
		t.Fatalf("status %s confirmations %d", got.Status.ToString(), got.Confirmations)
	}

	env.chain.setHead(102, nil)
	confirmed, err = env.confirmations.ConfirmPending(context.Background(), testChain)
	if err != nil {
		t.Fatal(err)
	}
	if confirmed != 1 {
		t.Fatalf("confirmed %d", confirmed)
	}
	got = env.reload(t, p)
	if got.Status != domain.STATUS_CONFIRMED || got.Confirmations != 3 {
		t.Fatalf("status %s confirmations %d", got.Status.ToString(), got.Confirmations)
	}

	rows := env.deliveries(t, p.ID)
	if len(rows) != 1 || rows[0].Event != domain.EVENT_PAYMENT_CONFIRMED {
		t.Fatalf("deliveries: %+v", rows)
	}
	if env.sender.count() != 1 {
		t.Fatalf("%d webhook attempts", env.sender.count())
	}
}

func TestConfirmationsNeverDecrease(t *testing.T) {
	env := newTestEnv(t, 101)
	p := detectedPayment(t, env, 100)

	if _, err := env.confirmations.ConfirmPending(context.Background(), testChain); err != nil {
		t.Fatal(err)
	}

	// head goes back after a node switch
	env.chain.setHead(100, nil)
	if _, err := env.confirmations.ConfirmPending(context.Background(), testChain); err != nil {
		t.Fatal(err)
	}

	if got := env.reload(t, p); got.Confirmations != 2 {
		t.Fatalf("confirmations %d, want 2", got.Confirmations)
	}
}

func TestConfirmHeadUnavailable(t *testing.T) {
	env := newTestEnv(t, 200)
	p := detectedPayment(t, env, 100)
	env.chain.setHead(0, errRPCDown)

	if _, err := env.confirmations.ConfirmPending(context.Background(), testChain); err == nil {
		t.Fatal("expected an error")
	}
	if got := env.reload(t, p); got.Status != domain.STATUS_DETECTED {
		t.Fatalf("status %s", got.Status.ToString())
	}
}

func TestReapExpired(t *testing.T) {
	env := newTestEnv(t, 100)
	// reaping needs no rpc
	env.chain.setHead(0, errRPCDown)

	pending := env.newPayment(t, domain.STATUS_PENDING, 100, nil)
	detected := env.newPayment(t, domain.STATUS_DETECTED, 100, nil)
	confirmed := env.newPayment(t, domain.STATUS_CONFIRMED, 100, nil)
	alive := env.newPayment(t, domain.STATUS_PENDING, 100, nil)

	past := time.Now().UTC().Add(-time.Minute)
	for _, p := range []*domain.Payments{pending, detected, confirmed} {
		if err := env.db.Model(p).Update("expires_at", past).Error; err != nil {
			t.Fatal(err)
		}
	}

	reaped, err := env.reaper.ReapExpired(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reaped != 2 {
		t.Fatalf("reaped %d, want 2", reaped)
	}

	tests := []struct {
		p    *domain.Payments
		want domain.Status
	}{
		{pending, domain.STATUS_EXPIRED},
		{detected, domain.STATUS_EXPIRED},
		{confirmed, domain.STATUS_CONFIRMED},
		{alive, domain.STATUS_PENDING},
	}
	for _, tt := range tests {
		if got := env.reload(t, tt.p); got.Status != tt.want {
			t.Errorf("payment %s: status %s, want %s", got.ID, got.Status.ToString(), tt.want.ToString())
		}
	}

	rows := env.deliveries(t, pending.ID)
	if len(rows) != 1 || rows[0].Event != domain.EVENT_PAYMENT_EXPIRED {
		t.Fatalf("deliveries: %+v", rows)
	}

	// nothing left
	if reaped, _ := env.reaper.ReapExpired(context.Background()); reaped != 0 {
		t.Fatalf("reaped %d on the second run", reaped)
	}
}
