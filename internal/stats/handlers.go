package stats

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meterly/antifraud/internal/logging"
	"github.com/meterly/antifraud/internal/validation"
)

// Handlers exposes the abuse counters for operator inspection.
type Handlers struct {
	store Store
}

// NewHandlers creates stats HTTP handlers.
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes mounts the stats routes on r. Callers gate r behind admin
// auth; these handlers do no auth themselves.
func (h *Handlers) RegisterRoutes(r gin.IRouter) {
	r.GET("/stats/ips/:ip", h.GetIPStats)
	r.GET("/stats/fingerprints/:id", h.GetFingerprintStats)
}

// GetIPStats handles GET /v1/stats/ips/:ip.
func (h *Handlers) GetIPStats(c *gin.Context) {
	ip := c.Param("ip")
	if !validation.IsValidIP(ip) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": "ip must be a valid IPv4 or IPv6 address",
		})
		return
	}

	s, err := h.store.GetIPStats(c.Request.Context(), ip)
	if err != nil {
		logging.L(c.Request.Context()).Error("get ip stats failed", "ip", ip, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "failed to load ip stats",
		})
		return
	}

	c.JSON(http.StatusOK, s)
}

// GetFingerprintStats handles GET /v1/stats/fingerprints/:id.
func (h *Handlers) GetFingerprintStats(c *gin.Context) {
	id := c.Param("id")

	s, err := h.store.GetFingerprintStats(c.Request.Context(), id)
	if err != nil {
		logging.L(c.Request.Context()).Error("get fingerprint stats failed", "fingerprint_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "failed to load fingerprint stats",
		})
		return
	}

	c.JSON(http.StatusOK, s)
}
