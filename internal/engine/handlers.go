package engine

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meterly/antifraud/internal/logging"
	"github.com/meterly/antifraud/internal/signals"
	"github.com/meterly/antifraud/internal/validation"
)

// Handlers exposes the engine over HTTP.
type Handlers struct {
	engine *Engine
}

// NewHandlers creates engine HTTP handlers.
func NewHandlers(e *Engine) *Handlers {
	return &Handlers{engine: e}
}

// RegisterRoutes mounts the signup and assessment routes on r.
func (h *Handlers) RegisterRoutes(r gin.IRouter) {
	r.POST("/signups/validate", h.ValidateSignup)
	r.POST("/signups/:accountId/finalize", h.FinalizeSignup)
	r.GET("/assessments/:accountId", h.GetAssessment)
}

// ValidateSignup handles POST /v1/signups/validate.
func (h *Handlers) ValidateSignup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "request body must be valid JSON with an email field",
		})
		return
	}

	// Connection-derived fields fill any the client omitted.
	reqCtx := signals.NewRequestContext(c.Request)
	if req.IP == "" {
		req.IP = reqCtx.IP
	}
	if req.UserAgent == "" {
		req.UserAgent = reqCtx.UserAgent
	}

	if errs := validation.Validate(
		validation.Required("email", req.Email),
		validation.ValidEmail("email", req.Email),
		validation.Required("ip", req.IP),
		validation.ValidIP("ip", req.IP),
		validation.MaxLength("name", req.Name, 256),
		validation.MaxLength("fingerprintId", req.FingerprintID, 128),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
		})
		return
	}

	res, err := h.engine.ValidateSignup(c.Request.Context(), req)
	if err != nil {
		logging.L(c.Request.Context()).Error("validate signup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "failed to validate signup",
		})
		return
	}

	c.JSON(http.StatusOK, res)
}

// FinalizeRequest is the body of POST /v1/signups/:accountId/finalize. The
// caller sends back the validate result it received; the engine persists it
// against the newly created account.
type FinalizeRequest struct {
	Request        SignupRequest  `json:"request"`
	ValidateResult ValidateResult `json:"validateResult"`
}

// FinalizeSignup handles POST /v1/signups/:accountId/finalize.
func (h *Handlers) FinalizeSignup(c *gin.Context) {
	accountID := c.Param("accountId")

	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "request body must carry the validate result",
		})
		return
	}

	if req.ValidateResult.Decision == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": "validateResult.decision is required",
		})
		return
	}

	res, err := h.engine.FinalizeSignup(c.Request.Context(), accountID, &req.ValidateResult)
	if err != nil {
		logging.L(c.Request.Context()).Error("finalize signup failed", "account_id", accountID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "failed to finalize signup",
		})
		return
	}

	c.JSON(http.StatusOK, res)
}

// GetAssessment handles GET /v1/assessments/:accountId.
func (h *Handlers) GetAssessment(c *gin.Context) {
	accountID := c.Param("accountId")

	a, err := h.engine.GetAssessment(c.Request.Context(), accountID)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "no assessment for this account",
		})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("get assessment failed", "account_id", accountID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "failed to load assessment",
		})
		return
	}

	c.JSON(http.StatusOK, a)
}
