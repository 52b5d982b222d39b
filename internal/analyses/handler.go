package analyses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pcos-backend/internal/pairing"
	"pcos-backend/internal/patients"
	"pcos-backend/internal/shared/server/middleware"
	"pcos-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the protected router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses/submit", h.submit)
	rg.GET("/analyses", h.list)
	rg.GET("/analyses/:id", h.get)
	rg.POST("/analyses/:id/retry", h.retry)
}

type submitRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "pairing code is required", nil)
		return
	}

	patientID := middleware.UserIDFromContext(c)
	requestID := c.GetString("requestId")

	a, err := h.Svc.FinalizeSubmission(c.Request.Context(), patientID, req.Code, requestID)
	if err != nil {
		switch {
		case errors.Is(err, pairing.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "pairing code is invalid or expired", nil)
		case errors.Is(err, pairing.ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "pairing code belongs to another user", nil)
		case errors.Is(err, pairing.ErrReadingPending):
			respond.Error(c, http.StatusConflict, "reading_pending", "no device reading has arrived for this code", nil)
		case errors.Is(err, patients.ErrNotFound):
			respond.Error(c, http.StatusBadRequest, "validation_error", "complete your profile before submitting", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit analysis", nil)
		}
		return
	}

	respond.Accepted(c, gin.H{
		"analysisId": a.ID,
		"status":     a.Status,
	})
}

func (h *Handler) get(c *gin.Context) {
	requester := middleware.UserIDFromContext(c)
	a, err := h.Svc.Get(c.Request.Context(), c.Param("id"), requester)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "analysis belongs to another user", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analysis", nil)
		}
		return
	}
	respond.OK(c, a)
}

func (h *Handler) list(c *gin.Context) {
	patientID := middleware.UserIDFromContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.Svc.ListForPatient(c.Request.Context(), patientID, limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	if items == nil {
		items = []Analysis{}
	}
	respond.OK(c, gin.H{"analyses": items})
}

func (h *Handler) retry(c *gin.Context) {
	patientID := middleware.UserIDFromContext(c)
	a, err := h.Svc.Retry(c.Request.Context(), c.Param("id"), patientID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "analysis belongs to another user", nil)
		case errors.Is(err, ErrNotRetryable):
			respond.Error(c, http.StatusConflict, "not_retryable", "only failed analyses can be retried", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to retry analysis", nil)
		}
		return
	}
	respond.Accepted(c, gin.H{
		"analysisId": a.ID,
		"status":     a.Status,
	})
}
