package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	registry *prometheus.Registry

	ScannedBlocks     *prometheus.CounterVec
	Cursor            *prometheus.GaugeVec
	Transitions       *prometheus.CounterVec
	Overpayments      *prometheus.CounterVec
	SweepFailures     *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
	Jobs              *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ScannedBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpay_scanned_blocks_total",
			Help: "Blocks inspected by the scanner.",
		}, []string{"chain"}),
		Cursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainpay_last_scanned_block",
			Help: "Scan cursor per chain.",
		}, []string{"chain"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpay_payment_transitions_total",
			Help: "Payment status transitions by target status.",
		}, []string{"chain", "status"}),
		Overpayments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpay_overpayments_total",
			Help: "Detected payments that received more than requested.",
		}, []string{"chain"}),
		SweepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpay_sweep_failures_total",
			Help: "Failed sweep attempts.",
		}, []string{"chain"}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpay_webhook_deliveries_total",
			Help: "Webhook delivery attempts by result.",
		}, []string{"result"}),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpay_jobs_total",
			Help: "Finished jobs by kind and status.",
		}, []string{"kind", "status"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chainpay_job_duration_seconds",
			Help:    "Job run time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScannedBlocks,
		m.Cursor,
		m.Transitions,
		m.Overpayments,
		m.SweepFailures,
		m.WebhookDeliveries,
		m.Jobs,
		m.JobDuration,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
