package pairing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pcos-backend/internal/shared/server/middleware"
	"pcos-backend/internal/shared/server/respond"
)

// Reading readiness values reported to polling clients.
const (
	StateWaiting = "WAITING"
	StateReady   = "READY"
)

// Handler wires HTTP handlers to the pairing service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the patient-facing pairing routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/pairing/code", h.issueCode)
	rg.GET("/pairing/:code/reading", h.reading)
}

// RegisterDeviceRoutes attaches the unauthenticated device ingest route.
// Devices know nothing about sessions; possession of a live pairing code
// is their only credential.
func (h *Handler) RegisterDeviceRoutes(rg *gin.RouterGroup) {
	rg.POST("/device/readings", h.ingestReading)
}

func (h *Handler) issueCode(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)
	code, err := h.Svc.IssueCode(c.Request.Context(), owner)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue pairing code", nil)
		return
	}
	respond.JSON(c, http.StatusCreated, gin.H{
		"code":      code,
		"expiresIn": int(h.Svc.TTL().Seconds()),
	})
}

func (h *Handler) reading(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)
	code := c.Param("code")

	reading, err := h.Svc.Resolve(c.Request.Context(), code, owner)
	if err != nil {
		switch {
		case errors.Is(err, ErrReadingPending):
			respond.OK(c, gin.H{"status": StateWaiting})
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "pairing code belongs to another user", nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "pairing code is invalid or expired", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to check reading", nil)
		}
		return
	}

	respond.OK(c, gin.H{"status": StateReady, "reading": reading})
}

type ingestRequest struct {
	Code        string  `json:"code" binding:"required"`
	SpO2        float64 `json:"spo2"`
	Temperature float64 `json:"temperature"`
	HeartRate   int     `json:"heartRate"`
	HeightCm    float64 `json:"height" binding:"required"`
	WeightKg    float64 `json:"weight" binding:"required"`
}

func (h *Handler) ingestReading(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "code, height and weight are required", nil)
		return
	}
	if req.HeightCm <= 0 || req.WeightKg <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "height and weight must be positive", nil)
		return
	}

	err := h.Svc.StageReading(c.Request.Context(), req.Code, Reading{
		SpO2:        req.SpO2,
		Temperature: req.Temperature,
		HeartRate:   req.HeartRate,
		HeightCm:    req.HeightCm,
		WeightKg:    req.WeightKg,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "pairing code is invalid or expired", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store reading", nil)
		}
		return
	}
	respond.Accepted(c, gin.H{"staged": true})
}
