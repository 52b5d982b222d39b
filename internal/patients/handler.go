package patients

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pcos-backend/internal/shared/server/middleware"
	"pcos-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the patients service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches profile routes to the protected router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profile", h.getProfile)
	rg.PUT("/profile", h.saveProfile)
}

func (h *Handler) getProfile(c *gin.Context) {
	email := middleware.UserIDFromContext(c)
	p, err := h.Svc.Get(c.Request.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "profile not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load profile", nil)
		}
		return
	}
	respond.OK(c, p)
}

func (h *Handler) saveProfile(c *gin.Context) {
	var p Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid profile payload", nil)
		return
	}

	email := middleware.UserIDFromContext(c)
	saved, err := h.Svc.Save(c.Request.Context(), email, p)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	respond.OK(c, saved)
}
