package v1

import (
	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	services *service.Services
	config   *config.Config
	log      logger.Logger
}

func (h *Handler) InitRoutes(g *gin.RouterGroup) {
	{
		h.initPaymentRoutes(g)
		h.initAdminRoutes(g)
	}
}

func NewHandler(services *service.Services, config *config.Config, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		log:      log,
		services: services,
	}
}
