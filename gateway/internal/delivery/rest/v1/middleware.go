package v1

import (
	"crypto/subtle"
	"net/http"

	"chainpay/gateway/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

func (h *Handler) adminAccessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Header.Get("Access")
		if key == "" || subtle.ConstantTimeCompare([]byte(h.config.Secrets.AdminKey), []byte(key)) != 1 {
			responseErr(c, http.StatusUnauthorized, domain.ErrMsgAccessError, "")
			return
		}
		c.Next()
	}
}

// rs/cors as gin middleware. preflight requests end here
func Cors(opts cors.Options) gin.HandlerFunc {
	cr := cors.New(opts)
	return func(c *gin.Context) {
		cr.HandlerFunc(c.Writer, c.Request)

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
