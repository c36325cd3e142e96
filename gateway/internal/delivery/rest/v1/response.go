package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/logger"

	"github.com/gin-gonic/gin"
)

type responseError struct {
	Error   bool   `json:"error"`
	ErrorID string `json:"error_id"`
	Msg     string `json:"msg"`
}

type responsePaymentInfo struct {
	ID              string  `json:"id"`
	Chain           string  `json:"chain"`
	Address         string  `json:"address"`
	Amount          string  `json:"amount"`
	TokenID         *uint   `json:"token_id,omitempty"`
	Symbol          string  `json:"symbol,omitempty"`
	Status          string  `json:"status"`
	Confirmations   uint64  `json:"confirmations"`
	DetectedInBlock *uint64 `json:"detected_in_block,omitempty"`
	DetectedTxHash  string  `json:"detected_tx_hash,omitempty"`
	ReceivedAmount  string  `json:"received_amount,omitempty"`
	SweepTxHash     string  `json:"sweep_tx_hash,omitempty"`
	PaymentURI      string  `json:"payment_uri,omitempty"`
	QrCode          string  `json:"qr_code"` // url of the qr image
	ExpiresAt       string  `json:"expires_at"`
	CreatedAt       string  `json:"created_at"`
}

// /payments, /payments/:id
type responsePayment struct {
	Error   bool                `json:"error"`
	Payment responsePaymentInfo `json:"payment"`
}

// admin triggers
type responseJobQueued struct {
	Error bool   `json:"error"`
	JobID string `json:"job_id"`
}

type responseJobInfo struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Chain      string          `json:"chain"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	StartedAt  string          `json:"started_at,omitempty"`
	FinishedAt string          `json:"finished_at,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// /admin/jobs/:id
type responseJob struct {
	Error bool            `json:"error"`
	Job   responseJobInfo `json:"job"`
}

type responseProxyList struct {
	Error   bool     `json:"error"`
	Proxies []string `json:"proxies"`
}

type responseOK struct {
	Error bool `json:"error"`
}

func responseErr(c *gin.Context, statusCode int, msg, errorID string) {
	c.AbortWithStatusJSON(statusCode, responseError{true, errorID, msg})
}

// domain errors are shown to the client, anything else is logged under a fresh error id
func (h *Handler) responseServiceErr(c *gin.Context, message string, err error) {
	status := domain.GetStatusByErr(err)
	if status != http.StatusInternalServerError {
		responseErr(c, status, err.Error(), "")
		return
	}

	errid := logger.GenErrorId()
	h.log.TemplRequestErr(message, errid, c.Request.RequestURI, c.ClientIP(), err)
	responseErr(c, status, domain.ErrMsgInternalServerError, errid)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func jobInfo(job *domain.Jobs) responseJobInfo {
	info := responseJobInfo{
		ID:         job.ID,
		Kind:       string(job.Kind),
		Chain:      job.Chain,
		Status:     job.Status.ToString(),
		Error:      job.Error,
		StartedAt:  formatTimePtr(job.StartedAt),
		FinishedAt: formatTimePtr(job.FinishedAt),
		CreatedAt:  formatTime(job.CreatedAt),
	}
	if job.Result != "" {
		info.Result = json.RawMessage(job.Result)
	}
	return info
}
