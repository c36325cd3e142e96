package v1

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/logger"

	"github.com/gin-gonic/gin"
)

// POST /v1/payments
func (h *Handler) paymentCreate(c *gin.Context) {
	var data createPaymentRequest
	if !bindAndValidate(c, &data) {
		return
	}

	p, err := h.services.Payments.CreatePayment(c.Request.Context(), domain.CreatePayment{
		Chain:      data.Chain,
		Amount:     data.Amount,
		TokenID:    data.TokenID,
		Lifetime:   time.Duration(data.Lifetime) * time.Minute,
		WebhookUrl: data.WebhookUrl,
	})
	if err != nil {
		h.responseServiceErr(c, "create payment error", err)
		return
	}

	info, err := h.paymentInfo(c.Request.Context(), p)
	if err != nil {
		h.responseServiceErr(c, "payment info error", err)
		return
	}

	h.log.TemplPaymentInfo("new payment created", logger.LS_PAYMENTS, p, "ip", c.ClientIP())
	c.AbortWithStatusJSON(http.StatusOK, responsePayment{Payment: info})
}

// GET /v1/payments/:id
func (h *Handler) paymentInfoHandler(c *gin.Context) {
	p, err := h.services.Payments.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.responseServiceErr(c, "get payment error", err)
		return
	}

	info, err := h.paymentInfo(c.Request.Context(), p)
	if err != nil {
		h.responseServiceErr(c, "payment info error", err)
		return
	}

	c.AbortWithStatusJSON(http.StatusOK, responsePayment{Payment: info})
}

// GET /v1/payments/:id/qr
func (h *Handler) qrCode(c *gin.Context) {
	ctx := c.Request.Context()

	p, err := h.services.Payments.GetPayment(ctx, c.Param("id"))
	if err != nil {
		h.responseServiceErr(c, "get payment error", err)
		return
	}

	token, err := h.token(ctx, p)
	if err != nil {
		h.responseServiceErr(c, "find token error", err)
		return
	}

	qrCode, err := h.services.QrCodes.ForPayment(p, token)
	if err != nil {
		h.responseServiceErr(c, "qr code error", err)
		return
	}

	imageData, err := base64.StdEncoding.DecodeString(qrCode)
	if err != nil {
		h.responseServiceErr(c, "qr code decode error", err)
		return
	}

	c.Data(http.StatusOK, "image/png", imageData)
}

// nil for native payments
func (h *Handler) token(ctx context.Context, p *domain.Payments) (*domain.Tokens, error) {
	if p.TokenID == nil {
		return nil, nil
	}
	return h.services.Tokens.FindByID(ctx, *p.TokenID)
}

func (h *Handler) paymentInfo(ctx context.Context, p *domain.Payments) (responsePaymentInfo, error) {
	info := responsePaymentInfo{
		ID:              p.ID,
		Chain:           p.Chain,
		Address:         p.Address,
		Amount:          p.Amount.String(),
		TokenID:         p.TokenID,
		Status:          p.Status.ToString(),
		Confirmations:   p.Confirmations,
		DetectedInBlock: p.DetectedInBlock,
		DetectedTxHash:  p.DetectedTxHash,
		SweepTxHash:     p.SweepTxHash,
		QrCode:          fmt.Sprintf("/v1/payments/%s/qr", p.ID),
		ExpiresAt:       formatTime(p.ExpiresAt),
		CreatedAt:       formatTime(p.CreatedAt),
	}
	if !p.ReceivedAmount.IsZero() {
		info.ReceivedAmount = p.ReceivedAmount.String()
	}

	token, err := h.token(ctx, p)
	if err != nil {
		return info, err
	}
	if token != nil {
		info.Symbol = token.Symbol
	}

	if !p.Status.IsTerminal() {
		if info.PaymentURI, err = h.services.QrCodes.PaymentURI(p, token); err != nil {
			return info, err
		}
	}
	return info, nil
}

func (h *Handler) initPaymentRoutes(g *gin.RouterGroup) {
	g.POST("/payments", h.paymentCreate)
	g.GET("/payments/:id", h.paymentInfoHandler)
	g.GET("/payments/:id/qr", h.qrCode)
}
