package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chainpay/gateway/internal/logger"

	"github.com/brianvoe/gofakeit/v7"
)

func TestDeliverSignature(t *testing.T) {
	secret := gofakeit.Password(true, true, true, false, false, 32)
	payload := []byte(`{"event":"payment.detected","payment_id":"` + gofakeit.UUID() + `"}`)

	tests := []struct {
		name   string
		secret string
	}{
		{"with secret", secret},
		{"without secret", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				gotBody   []byte
				gotHeader string
				hasHeader bool
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotBody, _ = io.ReadAll(r.Body)
				gotHeader = r.Header.Get(SIGNATURE_HEADER)
				_, hasHeader = r.Header[SIGNATURE_HEADER]
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer srv.Close()

			s := NewWebhookSenderService(nil, time.Second, logger.Nop())
			code, err := s.Deliver(context.Background(), srv.URL, payload, tt.secret)
			if err != nil {
				t.Fatal(err)
			}
			if code != http.StatusNoContent {
				t.Fatalf("unexpected status %d", code)
			}
			if string(gotBody) != string(payload) {
				t.Fatalf("body changed: %s", gotBody)
			}

			if tt.secret == "" {
				if hasHeader {
					t.Fatal("signature header must be absent without a secret")
				}
				return
			}
			if gotHeader != Sign(tt.secret, payload) {
				t.Fatalf("invalid signature %q", gotHeader)
			}
		})
	}
}

func TestSign(t *testing.T) {
	// RFC 4231 test case 2
	got := Sign("Jefe", []byte("what do ya want for nothing?"))
	want := "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDeliverStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   bool
		retryable bool
	}{
		{http.StatusOK, false, false},
		{http.StatusAccepted, false, false},
		{http.StatusBadRequest, true, false},
		{http.StatusNotFound, true, false},
		{http.StatusTooManyRequests, true, true},
		{http.StatusInternalServerError, true, true},
		{http.StatusBadGateway, true, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			s := NewWebhookSenderService(nil, time.Second, logger.Nop())
			code, err := s.Deliver(context.Background(), srv.URL, []byte(`{}`), "")
			if code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, code)
			}
			if !tt.wantErr {
				if err != nil {
					t.Fatal(err)
				}
				return
			}

			var werr *WebhookError
			if !errors.As(err, &werr) {
				t.Fatalf("expected *WebhookError, got %v", err)
			}
			if werr.Retryable != tt.retryable || werr.StatusCode != tt.status {
				t.Fatalf("unexpected error %+v", werr)
			}
		})
	}
}

func TestDeliverNetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	s := NewWebhookSenderService(nil, time.Second, logger.Nop())
	_, err := s.Deliver(context.Background(), url, []byte(`{}`), "")

	var werr *WebhookError
	if !errors.As(err, &werr) || !werr.Retryable {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestDeliverTimeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	defer close(done)

	s := NewWebhookSenderService(nil, 50*time.Millisecond, logger.Nop())
	_, err := s.Deliver(context.Background(), srv.URL, []byte(`{}`), "")

	var werr *WebhookError
	if !errors.As(err, &werr) || !werr.Retryable {
		t.Fatalf("expected retryable timeout, got %v", err)
	}
}

func TestParseProxy(t *testing.T) {
	proxies := []struct {
		str   string
		valid bool
	}{
		{"login:password@ip:port", false},
		{"login:password:ip:port", false},
		{"login", false},
		{"login:password:", false},
		{"login:password:127.0.0.1:1234:", false},
		{"login:password@127.0.0.1:1234", true},
		{"user:secret@proxy.example.com:1080", true},
		{"", false},
		{" ", false},
	}

	s := WebhookSenderService{}

	for _, i := range proxies {
		_, err := s.parseProxy(i.str)
		if err != nil && i.valid {
			t.Fatalf("%q: %v", i.str, err)
		}
		if err == nil && !i.valid {
			t.Fatalf("%q must be rejected", i.str)
		}
	}
}

func TestUpdateList(t *testing.T) {
	s := NewWebhookSenderService([]string{"boss:boss@127.0.0.1:1080", "broken"}, time.Second, logger.Nop())

	if list := s.GetList(); len(list) != 1 || list[0] != "boss:boss@127.0.0.1:1080" {
		t.Fatalf("unexpected list %v", list)
	}

	s.UpdateList([]string{"aa:bb@10.0.0.1:1080", "aa:bb@10.0.0.2:1080"})
	if list := s.GetList(); len(list) != 2 {
		t.Fatalf("unexpected list %v", list)
	}

	s.UpdateList(nil)
	if list := s.GetList(); len(list) != 0 {
		t.Fatalf("unexpected list %v", list)
	}
}

func TestDeliverWithDeadProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	// nothing listens on the proxy port
	s := NewWebhookSenderService([]string{"boss:boss@127.0.0.1:1"}, time.Second, logger.Nop())
	_, err := s.Deliver(context.Background(), srv.URL, []byte(`{}`), "")

	var werr *WebhookError
	if !errors.As(err, &werr) || !werr.Retryable {
		t.Fatalf("expected retryable error, got %v", err)
	}
}
