package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{STATUS_PENDING, STATUS_DETECTED, true},
		{STATUS_PENDING, STATUS_EXPIRED, true},
		{STATUS_DETECTED, STATUS_CONFIRMED, true},
		{STATUS_DETECTED, STATUS_EXPIRED, true},
		{STATUS_CONFIRMED, STATUS_SETTLED, true},
		{STATUS_CONFIRMED, STATUS_FAILED, true},

		{STATUS_PENDING, STATUS_CONFIRMED, false},
		{STATUS_PENDING, STATUS_SETTLED, false},
		{STATUS_DETECTED, STATUS_PENDING, false},
		{STATUS_CONFIRMED, STATUS_EXPIRED, false},
		{STATUS_CONFIRMED, STATUS_DETECTED, false},
		{STATUS_PENDING, STATUS_FAILED, false},
		{STATUS_PENDING, STATUS_PENDING, false},
	}

	for _, x := range tests {
		if got := x.from.CanTransition(x.to); got != x.ok {
			t.Fatalf("%s -> %s: got %v, want %v", x.from.ToString(), x.to.ToString(), got, x.ok)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{STATUS_SETTLED, STATUS_EXPIRED, STATUS_FAILED} {
		if !s.IsTerminal() {
			t.Fatalf("%s must be terminal", s.ToString())
		}
		for i := range Statuses {
			if s.CanTransition(Status(i)) {
				t.Fatalf("terminal %s -> %s allowed", s.ToString(), Status(i).ToString())
			}
		}
	}
}

func TestCheckTransition(t *testing.T) {
	err := CheckTransition(STATUS_SETTLED, STATUS_PENDING)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("got %v, want ErrIllegalTransition", err)
	}
	t.Log(err)

	if err := CheckTransition(STATUS_PENDING, STATUS_DETECTED); err != nil {
		t.Fatal(err)
	}
}

func TestStrToStatus(t *testing.T) {
	for i, name := range Statuses {
		s, ok := StrToStatus(name)
		if !ok || s != Status(i) {
			t.Fatalf("StrToStatus(%s) = %d, %v", name, s, ok)
		}
	}

	if _, ok := StrToStatus(gofakeit.LetterN(12)); ok {
		t.Fatal("random status accepted")
	}

	if Status(200).ToString() != "unknown" {
		t.Fatal("out of range status")
	}
}

func TestNewWebhookPayload(t *testing.T) {
	block := uint64(100)
	p := &Payments{
		ID:              gofakeit.UUID(),
		Chain:           "ethereum",
		Address:         "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Amount:          decimal.NewFromInt(50),
		Status:          STATUS_DETECTED,
		DetectedInBlock: &block,
		DetectedTxHash:  "0xabc",
		SweepTxHash:     "0xdef",
	}

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	payload := NewWebhookPayload(STATUS_DETECTED.Event(), p, now)

	if payload.Event != EVENT_PAYMENT_DETECTED {
		t.Fatalf("event: %s", payload.Event)
	}
	if payload.Amount != "50" || payload.Status != "detected" || payload.TxHash != "0xabc" {
		t.Fatalf("payload: %+v", payload)
	}
	if payload.Timestamp != "2024-05-01T09:00:00Z" {
		t.Fatalf("timestamp: %s", payload.Timestamp)
	}

	p.Status = STATUS_SETTLED
	if NewWebhookPayload(STATUS_SETTLED.Event(), p, now).TxHash != "0xdef" {
		t.Fatal("settled payload must carry sweep tx hash")
	}
}
