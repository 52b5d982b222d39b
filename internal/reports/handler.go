package reports

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pcos-backend/internal/analyses"
	"pcos-backend/internal/shared/server/middleware"
	"pcos-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the reports service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches doctor review routes to the protected group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/doctor/pending", h.pending)
	rg.GET("/doctor/dashboard", h.dashboard)
	rg.POST("/doctor/analyses/:id/report", h.submitReport)
}

func (h *Handler) pending(c *gin.Context) {
	doctorID := middleware.UserIDFromContext(c)
	items, err := h.Svc.PendingReview(c.Request.Context(), doctorID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list pending analyses", nil)
		return
	}
	if items == nil {
		items = []analyses.Analysis{}
	}
	respond.OK(c, gin.H{"analyses": items})
}

func (h *Handler) dashboard(c *gin.Context) {
	doctorID := middleware.UserIDFromContext(c)
	m, err := h.Svc.Dashboard(c.Request.Context(), doctorID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load dashboard", nil)
		return
	}
	respond.OK(c, m)
}

type reportRequest struct {
	FinalVerdict string `json:"finalVerdict" binding:"required"`
	Prescription string `json:"prescription"`
	Notes        string `json:"notes"`
}

func (h *Handler) submitReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "finalVerdict is required", nil)
		return
	}

	doctorID := middleware.UserIDFromContext(c)
	a, err := h.Svc.Submit(c.Request.Context(), c.Param("id"), doctorID, req.FinalVerdict, req.Prescription, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, analyses.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, analyses.ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "analysis is assigned to another doctor", nil)
		case errors.Is(err, analyses.ErrReportExists):
			respond.Error(c, http.StatusConflict, "already_exists", "a report is already filed for this analysis", nil)
		case errors.Is(err, analyses.ErrNotScored):
			respond.Error(c, http.StatusConflict, "not_scored", "analysis has not been scored yet", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to file report", nil)
		}
		return
	}
	respond.OK(c, a)
}
