package logger

import (
	"chainpay/gateway/internal/domain"
)

// use only for fatal errors
func (l Logger) TemplHTTPError(message string, ipv4 string, err error) {
	l.Fatal(message, LS_FATAL, true, "error", err.Error(), "ipv4", ipv4)
}

func (l Logger) TemplNatsError(message, natsUrl string, err error) {
	l.Error(message, LS_NATS, true, "nats_url", natsUrl, "error", err.Error())
}

func (l Logger) TemplNatsInfo(message, natsUrl string) {
	l.Info(message, LS_NATS, true, "nats_url", natsUrl, "error", NA)
}

func (l Logger) TemplScanErr(message, chain string, from, to uint64, err error) {
	l.Error(message, LS_SCANNER, true, "chain", chain, "from", from, "to", to, "error", err.Error())
}

func (l Logger) TemplPaymentInfo(message string, logStream Logstream, p *domain.Payments, args ...any) {
	l.Info(message, logStream, true, append([]any{"payment_id", p.ID, "chain", p.Chain, "address", p.Address, "amount", p.Amount.String(), "status", p.Status.ToString()}, args...)...)
}

func (l Logger) TemplPaymentErr(message string, logStream Logstream, p *domain.Payments, err error) {
	l.Error(message, logStream, true, "payment_id", p.ID, "chain", p.Chain, "address", p.Address, "status", p.Status.ToString(), "error", err.Error())
}

func (l Logger) TemplWebhookErr(message, url string, attempts int, proxy string, payload []byte) {
	l.Error(message, LS_WEBHOOKS, true, "url", url, "attempts", attempts, "proxy", proxy, "payload", string(payload))
}

func (l Logger) TemplJobErr(message string, job *domain.Jobs, err error) {
	l.Error(message, LS_SCHEDULER, true, "job_id", job.ID, "kind", string(job.Kind), "chain", job.Chain, "error", err.Error())
}

func (l Logger) TemplRequestErr(message, errorId, uri, ip string, err error) {
	l.Error(message, LS_HTTP, true, "error_id", errorId, "uri", uri, "ip", ip, "error", err.Error())
}
