package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) jobQueued(c *gin.Context, message string, jobID string, err error) {
	if err != nil {
		h.responseServiceErr(c, message, err)
		return
	}
	c.AbortWithStatusJSON(http.StatusAccepted, responseJobQueued{JobID: jobID})
}

// POST /v1/admin/scan-now
func (h *Handler) scanNow(c *gin.Context) {
	var data chainRequest
	if !bindAndValidate(c, &data) {
		return
	}

	id, err := h.services.Admin.TriggerScan(c.Request.Context(), data.Chain)
	h.jobQueued(c, "trigger scan error", id, err)
}

// POST /v1/admin/sweep-now
func (h *Handler) sweepNow(c *gin.Context) {
	var data chainRequest
	if !bindAndValidate(c, &data) {
		return
	}

	id, err := h.services.Admin.TriggerSweep(c.Request.Context(), data.Chain)
	h.jobQueued(c, "trigger sweep error", id, err)
}

func (h *Handler) sweepAddress(c *gin.Context) {
	var data sweepAddressRequest
	if !bindAndValidate(c, &data) {
		return
	}

	id, err := h.services.Admin.SweepAddress(c.Request.Context(), data.Address, data.Chain)
	h.jobQueued(c, "sweep address error", id, err)
}

func (h *Handler) processPayment(c *gin.Context) {
	var data processPaymentRequest
	if !bindAndValidate(c, &data) {
		return
	}

	id, err := h.services.Admin.ProcessPayment(c.Request.Context(), data.PaymentID)
	h.jobQueued(c, "process payment error", id, err)
}

func (h *Handler) sendWebhook(c *gin.Context) {
	var data sendWebhookRequest
	if !bindAndValidate(c, &data) {
		return
	}

	id, err := h.services.Admin.SendWebhook(c.Request.Context(), data.PaymentID, data.Event)
	h.jobQueued(c, "send webhook error", id, err)
}

func (h *Handler) customWebhook(c *gin.Context) {
	var data customWebhookRequest
	if !bindAndValidate(c, &data) {
		return
	}

	id, err := h.services.Admin.CustomWebhook(c.Request.Context(), data.Url, data.Payload, data.Secret)
	h.jobQueued(c, "custom webhook error", id, err)
}

// GET /v1/admin/jobs/:id
func (h *Handler) jobStatus(c *gin.Context) {
	job, err := h.services.Admin.GetJobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.responseServiceErr(c, "job status error", err)
		return
	}

	c.AbortWithStatusJSON(http.StatusOK, responseJob{Job: jobInfo(job)})
}

// replaces the socks5 proxies of the webhook sender
func (h *Handler) updateProxyList(c *gin.Context) {
	var data proxyListRequest
	if !bindAndValidate(c, &data) {
		return
	}

	h.services.WebhookSender.UpdateList(data.Proxies)
	c.AbortWithStatusJSON(http.StatusOK, responseOK{})
}

func (h *Handler) proxyList(c *gin.Context) {
	proxies := h.services.WebhookSender.GetList()
	if proxies == nil {
		proxies = []string{}
	}
	c.AbortWithStatusJSON(http.StatusOK, responseProxyList{Proxies: proxies})
}

func (h *Handler) initAdminRoutes(g *gin.RouterGroup) {
	admin := g.Group("/admin", h.adminAccessMiddleware())

	admin.POST("/scan-now", h.scanNow)
	admin.POST("/sweep-now", h.sweepNow)
	admin.POST("/sweep-address", h.sweepAddress)
	admin.POST("/process-payment", h.processPayment)
	admin.POST("/send-webhook", h.sendWebhook)
	admin.POST("/custom-webhook", h.customWebhook)
	admin.GET("/jobs/:id", h.jobStatus)

	admin.POST("/webhook/updateProxyList", h.updateProxyList)
	admin.GET("/webhook/proxyList", h.proxyList)
}
