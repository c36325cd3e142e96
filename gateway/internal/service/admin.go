package service

import (
	"context"
	"fmt"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

// manual triggers. every call enqueues one job and returns its id
type AdminService struct {
	jobs     *JobsService
	payments Payments
	config   *config.Config
	validate *validator.Validate
}

func NewAdminService(jobs *JobsService, payments Payments, config *config.Config) *AdminService {
	return &AdminService{jobs: jobs, payments: payments, config: config, validate: validator.New()}
}

// empty - all chains
func (s *AdminService) chain(chain string) (string, error) {
	if chain == "" || chain == ALL_CHAINS {
		return ALL_CHAINS, nil
	}
	if _, ok := s.config.Chain(chain); !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownChain, chain)
	}
	return chain, nil
}

func (s *AdminService) enqueue(ctx context.Context, kind domain.JobKind, chain string, args *domain.JobArgs) (string, error) {
	id, _, err := s.jobs.Enqueue(ctx, kind, chain, "", args)
	return id, err
}

func (s *AdminService) TriggerScan(ctx context.Context, chain string) (string, error) {
	chain, err := s.chain(chain)
	if err != nil {
		return "", err
	}
	return s.enqueue(ctx, domain.JOB_SCAN, chain, nil)
}

func (s *AdminService) TriggerSweep(ctx context.Context, chain string) (string, error) {
	chain, err := s.chain(chain)
	if err != nil {
		return "", err
	}
	return s.enqueue(ctx, domain.JOB_SWEEP, chain, nil)
}

func (s *AdminService) SweepAddress(ctx context.Context, address, chain string) (string, error) {
	if _, ok := s.config.Chain(chain); !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownChain, chain)
	}
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidAddress, address)
	}
	return s.enqueue(ctx, domain.JOB_SWEEP_ADDRESS, chain, &domain.JobArgs{Address: address})
}

func (s *AdminService) ProcessPayment(ctx context.Context, paymentID string) (string, error) {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	return s.enqueue(ctx, domain.JOB_PROCESS, p.Chain, &domain.JobArgs{PaymentID: p.ID})
}

func (s *AdminService) SendWebhook(ctx context.Context, paymentID, event string) (string, error) {
	if !domain.IsPaymentEvent(event) {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidEvent, event)
	}

	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	if p.WebhookUrl == "" && s.config.Webhook.Url == "" {
		return "", domain.ErrNoWebhookUrl
	}
	return s.enqueue(ctx, domain.JOB_SEND_WEBHOOK, p.Chain, &domain.JobArgs{PaymentID: p.ID, Event: event})
}

func (s *AdminService) CustomWebhook(ctx context.Context, url string, payload map[string]any, secret string) (string, error) {
	if err := s.validate.Var(url, "required,url"); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidUrl, url)
	}
	return s.enqueue(ctx, domain.JOB_CUSTOM_WEBHOOK, ALL_CHAINS, &domain.JobArgs{Url: url, Payload: payload, Secret: secret})
}

func (s *AdminService) GetJobStatus(ctx context.Context, id string) (*domain.Jobs, error) {
	return s.jobs.Get(ctx, id)
}
