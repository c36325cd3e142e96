package service

import (
	"encoding/base64"
	"strings"
	"testing"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"

	"github.com/shopspring/decimal"
)

func TestPaymentURI(t *testing.T) {
	s := NewQrCodesService(&config.Config{Chains: []config.Chain{{Name: "ethereum", ChainID: 1}}})

	p := &domain.Payments{Chain: "ethereum", Address: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", Amount: decimal.NewFromInt(1000)}

	uri, err := s.PaymentURI(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if uri != "ethereum:0x70997970C51812dc3A010C7d01b50e0d17dc79C8@1?value=1000" {
		t.Fatalf("native uri: %s", uri)
	}

	contract := "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	uri, err = s.PaymentURI(p, &domain.Tokens{Address: &contract})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(uri, "ethereum:"+contract+"@1/transfer?") {
		t.Fatalf("token uri: %s", uri)
	}

	p.Chain = "unknown"
	if _, err := s.PaymentURI(p, nil); err == nil {
		t.Fatal("unknown chain accepted")
	}
}

func TestFindOrNew(t *testing.T) {
	s := NewQrCodesService(&config.Config{})

	qr, err := s.FindOrNew("ethereum:0x70997970C51812dc3A010C7d01b50e0d17dc79C8@1?value=1")
	if err != nil {
		t.Fatal(err)
	}

	image, err := base64.StdEncoding.DecodeString(qr)
	if err != nil {
		t.Fatal(err)
	}
	if len(image) == 0 {
		t.Fatal("empty image")
	}

	cached, err := s.FindOrNew("ethereum:0x70997970C51812dc3A010C7d01b50e0d17dc79C8@1?value=1")
	if err != nil {
		t.Fatal(err)
	}
	if cached != qr {
		t.Fatal("second call must return the cached code")
	}
}
