package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pcos-backend/internal/sessions"
	"pcos-backend/internal/shared/server/middleware"
	"pcos-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the users and sessions services.
type Handler struct {
	Svc      *Service
	Sessions *sessions.Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, sess *sessions.Service) *Handler {
	return &Handler{Svc: svc, Sessions: sess}
}

// RegisterPublicRoutes attaches the unauthenticated auth routes.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.signUp)
	rg.POST("/auth/signin", h.signIn)
}

// RegisterRoutes attaches the session-protected auth routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/heartbeat", h.heartbeat)
	rg.POST("/auth/signout", h.signOut)
	rg.GET("/auth/me", h.me)
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

func (h *Handler) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "email, password and role are required", nil)
		return
	}

	u, err := h.Svc.SignUp(c.Request.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrExists):
			respond.Error(c, http.StatusConflict, "already_exists", "an account with this email already exists", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create account", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, gin.H{
		"email": u.Email,
		"name":  u.Name,
		"role":  u.Role,
	})
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "email and password are required", nil)
		return
	}

	u, err := h.Svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to sign in", nil)
		}
		return
	}

	// A client that lost its response but kept its session ID can replay
	// sign-in with the X-Session-Id header and get the same session back.
	sess, err := h.Sessions.Create(c.Request.Context(), u.Email, c.GetHeader(middleware.SessionHeader))
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrSessionConflict):
			respond.Error(c, http.StatusForbidden, "session_conflict", "User already logged in on another device", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create session", nil)
		}
		return
	}

	respond.OK(c, gin.H{
		"sessionId": sess.ID,
		"expiresIn": int(sess.ExpiresIn.Seconds()),
		"restored":  sess.Restored,
		"user": gin.H{
			"email": u.Email,
			"name":  u.Name,
			"role":  u.Role,
		},
	})
}

func (h *Handler) heartbeat(c *gin.Context) {
	sessionID := middleware.SessionIDFromContext(c)
	if err := h.Sessions.Renew(c.Request.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, sessions.ErrSessionExpired):
			respond.Error(c, http.StatusUnauthorized, "session_expired", "Session expired", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to renew session", nil)
		}
		return
	}
	respond.OK(c, gin.H{"expiresIn": int(h.Sessions.TTL().Seconds())})
}

func (h *Handler) signOut(c *gin.Context) {
	sessionID := middleware.SessionIDFromContext(c)
	if err := h.Sessions.Invalidate(c.Request.Context(), sessionID); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to sign out", nil)
		return
	}
	respond.OK(c, gin.H{"signedOut": true})
}

func (h *Handler) me(c *gin.Context) {
	email := middleware.UserIDFromContext(c)
	u, err := h.Svc.Get(c.Request.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "account not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load account", nil)
		}
		return
	}
	respond.OK(c, gin.H{
		"email":     u.Email,
		"name":      u.Name,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
	})
}
