package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"chainpay/gateway/internal/logger"
	"chainpay/pkg/rr"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/proxy"
)

const SIGNATURE_HEADER = "X-Webhook-Signature"

// failed delivery. Retryable is false for 4xx answers except 429
type WebhookError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *WebhookError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("webhook: %v", e.Err)
}

func (e *WebhookError) Unwrap() error {
	return e.Err
}

type WebhookSenderService struct {
	rr       rr.RoundRobin
	list     *atomic.Pointer[[]string]
	l        logger.Logger
	timeout  time.Duration
	validate *validator.Validate
}

func NewWebhookSenderService(proxyList []string, timeout time.Duration, l logger.Logger) *WebhookSenderService {
	var list atomic.Pointer[[]string]
	list.Store(&[]string{})

	s := &WebhookSenderService{rr: rr.New(&list), list: &list, l: l, timeout: timeout, validate: validator.New()}
	s.UpdateList(proxyList)
	return s
}

type MyRoundTripper struct {
	r http.RoundTripper
}

func (mrt MyRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	r.Header.Set("User-Agent", "chainpay-webhook")
	return mrt.r.RoundTrip(r)
}

// hex HMAC-SHA256 of the body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// posts payload as is. returns the http status code of the answer, 0 if there was none
func (s *WebhookSenderService) Deliver(ctx context.Context, url string, payload []byte, secret string) (int, error) {
	attempts := s.rr.Len()
	if attempts == 0 {
		return s.send(ctx, s.directClient(), url, payload, secret)
	}

	var (
		code int
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		stringProxy, ok := s.rr.Next()
		if !ok {
			return s.send(ctx, s.directClient(), url, payload, secret)
		}

		client, perr := s.proxyClient(stringProxy)
		if perr != nil {
			s.l.TemplWebhookErr("can't use proxy: "+perr.Error(), url, attempt, stringProxy, payload)
			err = &WebhookError{Retryable: true, Err: perr}
			continue
		}

		code, err = s.send(ctx, client, url, payload, secret)
		if err == nil || code != 0 || ctx.Err() != nil {
			// the endpoint answered, another proxy won't change it
			return code, err
		}
		s.l.TemplWebhookErr("send with proxy error: "+err.Error(), url, attempt, stringProxy, payload)
	}

	return code, err
}

func (s *WebhookSenderService) send(ctx context.Context, client *http.Client, url string, payload []byte, secret string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, &WebhookError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SIGNATURE_HEADER, Sign(secret, payload))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, &WebhookError{Retryable: true, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}

	retryable := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
	return resp.StatusCode, &WebhookError{
		StatusCode: resp.StatusCode,
		Retryable:  retryable,
		Err:        fmt.Errorf("invalid status code: %d", resp.StatusCode),
	}
}

func (s *WebhookSenderService) directClient() *http.Client {
	return &http.Client{
		Transport: MyRoundTripper{r: http.DefaultTransport},
		Timeout:   s.timeout,
	}
}

func (s *WebhookSenderService) proxyClient(stringProxy string) (*http.Client, error) {
	socks, err := s.parseProxy(stringProxy)
	if err != nil {
		return nil, fmt.Errorf("can't parse proxy: %w", err)
	}

	auth := proxy.Auth{
		User:     socks.User,
		Password: socks.Pass,
	}

	dialer, err := proxy.SOCKS5("tcp", net.JoinHostPort(socks.Ip, socks.Port), &auth, proxy.Direct)
	if err != nil {
		return nil, err
	}

	dialContext := func(ctx context.Context, network, address string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, address)
		}
		return dialer.Dial(network, address)
	}

	transport := &http.Transport{
		DialContext:       dialContext,
		DisableKeepAlives: true,
	}

	return &http.Client{
		Transport: MyRoundTripper{r: transport},
		Timeout:   s.timeout,
	}, nil
}

type parsedProxy struct {
	User string `validate:"required,gte=2"`
	Pass string `validate:"required,gte=2"`
	Ip   string `validate:"required,ip|hostname"`
	Port string `validate:"required,numeric"`
}

// login:password@ip:port
func (s *WebhookSenderService) parseProxy(str string) (parsedProxy, error) {
	splitA := strings.Split(str, ":") //  to [user pass@ip port]

	if len(splitA) != 3 {
		return parsedProxy{}, fmt.Errorf("invalid proxy format: given: %s", str)
	}

	splitB := strings.Split(splitA[1], "@") // to [pass ip]

	if len(splitB) != 2 {
		return parsedProxy{}, fmt.Errorf("invalid proxy format: given: %s", str)
	}

	pp := parsedProxy{
		User: splitA[0],
		Pass: splitB[0],
		Ip:   splitB[1],
		Port: splitA[2],
	}

	if s.validate == nil {
		s.validate = validator.New()
	}
	if err := s.validate.Struct(pp); err != nil {
		return parsedProxy{}, err
	}

	return pp, nil
}

// invalid entries are dropped
func (s *WebhookSenderService) UpdateList(proxies []string) {
	validProxies := make([]string, 0, len(proxies))

	for _, proxy := range proxies {
		_, err := s.parseProxy(proxy)
		if err != nil {
			s.l.Error("invalid proxy", logger.LS_WEBHOOKS, false, "proxy", proxy, "error", err.Error())
			continue
		}
		validProxies = append(validProxies, proxy)
	}

	s.list.Store(&validProxies)
}

func (s *WebhookSenderService) GetList() []string {
	listPtr := s.list.Load()
	if listPtr == nil {
		return []string{}
	}

	return *listPtr
}
