package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chainpay/gateway/internal/domain"
)

// cycle functions behind the job kinds
type Runners struct {
	Chains        []string
	Scanner       *ScannerService
	Confirmations *ConfirmationsService
	Reaper        *ReaperService
	Sweeper       *SweeperService
	Webhooks      *WebhooksService
	Jobs          *JobsService
	Payments      *PaymentsService
	Retention     time.Duration
}

type ScanResult struct {
	Chain     string      `json:"chain"`
	Scan      *ScanReport `json:"scan,omitempty"`
	Confirmed int         `json:"confirmed"`
}

type ProcessResult struct {
	PaymentID string       `json:"payment_id"`
	Status    string       `json:"status"`
	Confirmed int          `json:"confirmed"`
	Sweep     *SweepReport `json:"sweep,omitempty"`
}

type DeliveryResult struct {
	DeliveryID uint   `json:"delivery_id"`
	Url        string `json:"url"`
}

type CountResult struct {
	Count int64 `json:"count"`
}

func RegisterRunners(jobs *JobsService, r *Runners) {
	jobs.Register(domain.JOB_SCAN, r.scan)
	jobs.Register(domain.JOB_SWEEP, r.sweep)
	jobs.Register(domain.JOB_REAP, r.reap)
	jobs.Register(domain.JOB_WEBHOOK_RETRY, r.webhookRetry)
	jobs.Register(domain.JOB_PRUNE, r.prune)
	jobs.Register(domain.JOB_SWEEP_ADDRESS, r.sweepAddress)
	jobs.Register(domain.JOB_PROCESS, r.processPayment)
	jobs.Register(domain.JOB_SEND_WEBHOOK, r.sendWebhook)
	jobs.Register(domain.JOB_CUSTOM_WEBHOOK, r.customWebhook)
}

func (r *Runners) chains(job *domain.Jobs) []string {
	if job.Chain == "" || job.Chain == ALL_CHAINS {
		return r.Chains
	}
	return []string{job.Chain}
}

// scan then confirm, chain by chain. a failing chain doesn't stop the others
func (r *Runners) scan(ctx context.Context, job *domain.Jobs) (any, error) {
	var (
		results []ScanResult
		errs    []error
	)
	for _, chain := range r.chains(job) {
		res := ScanResult{Chain: chain}

		report, err := r.Scanner.Scan(ctx, chain)
		if err != nil {
			errs = append(errs, fmt.Errorf("scan %s: %w", chain, err))
		}
		res.Scan = report

		confirmed, err := r.Confirmations.ConfirmPending(ctx, chain)
		if err != nil {
			errs = append(errs, fmt.Errorf("confirm %s: %w", chain, err))
		}
		res.Confirmed = confirmed

		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (r *Runners) sweep(ctx context.Context, job *domain.Jobs) (any, error) {
	var (
		reports []*SweepReport
		errs    []error
	)
	for _, chain := range r.chains(job) {
		report, err := r.Sweeper.Sweep(ctx, chain)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", chain, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

func (r *Runners) reap(ctx context.Context, _ *domain.Jobs) (any, error) {
	n, err := r.Reaper.ReapExpired(ctx)
	return CountResult{Count: int64(n)}, err
}

func (r *Runners) webhookRetry(ctx context.Context, _ *domain.Jobs) (any, error) {
	n, err := r.Webhooks.RetryDue(ctx)
	return CountResult{Count: int64(n)}, err
}

func (r *Runners) prune(ctx context.Context, _ *domain.Jobs) (any, error) {
	n, err := r.Jobs.Prune(ctx, r.Retention)
	return CountResult{Count: n}, err
}

func (r *Runners) sweepAddress(ctx context.Context, job *domain.Jobs) (any, error) {
	args, err := Args(job)
	if err != nil {
		return nil, err
	}
	return r.Sweeper.SweepAddress(ctx, args.Address, job.Chain)
}

// confirms the payment's chain and sweeps the payment once it is confirmed
func (r *Runners) processPayment(ctx context.Context, job *domain.Jobs) (any, error) {
	args, err := Args(job)
	if err != nil {
		return nil, err
	}

	p, err := r.Payments.GetPayment(ctx, args.PaymentID)
	if err != nil {
		return nil, err
	}

	res := &ProcessResult{PaymentID: p.ID}
	if p.Status == domain.STATUS_DETECTED {
		if res.Confirmed, err = r.Confirmations.ConfirmPending(ctx, p.Chain); err != nil {
			return res, err
		}
		if p, err = r.Payments.GetPayment(ctx, p.ID); err != nil {
			return res, err
		}
	}

	if p.Status == domain.STATUS_CONFIRMED {
		if res.Sweep, err = r.Sweeper.SweepAddress(ctx, p.Address, p.Chain); err != nil {
			return res, err
		}
		if p, err = r.Payments.GetPayment(ctx, p.ID); err != nil {
			return res, err
		}
	}

	res.Status = p.Status.ToString()
	return res, nil
}

func (r *Runners) sendWebhook(ctx context.Context, job *domain.Jobs) (any, error) {
	args, err := Args(job)
	if err != nil {
		return nil, err
	}

	p, err := r.Payments.GetPayment(ctx, args.PaymentID)
	if err != nil {
		return nil, err
	}

	delivery, err := r.Webhooks.Emit(ctx, p, args.Event)
	if err != nil {
		return nil, err
	}
	return DeliveryResult{DeliveryID: delivery.ID, Url: delivery.Url}, nil
}

func (r *Runners) customWebhook(ctx context.Context, job *domain.Jobs) (any, error) {
	args, err := Args(job)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(args.Payload)
	if err != nil {
		return nil, err
	}

	delivery, err := r.Webhooks.EmitRaw(ctx, args.Url, payload, args.Secret)
	if err != nil {
		return nil, err
	}
	return DeliveryResult{DeliveryID: delivery.ID, Url: delivery.Url}, nil
}
