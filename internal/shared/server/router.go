package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pcos-backend/internal/analyses"
	"pcos-backend/internal/pairing"
	"pcos-backend/internal/patients"
	"pcos-backend/internal/reports"
	"pcos-backend/internal/shared/config"
	"pcos-backend/internal/shared/metrics"
	"pcos-backend/internal/shared/server/middleware"
	"pcos-backend/internal/shared/server/respond"
	"pcos-backend/internal/users"
)

// RouterDeps carries the handlers and the session resolver the router
// needs; construction of services stays in bootstrap.
type RouterDeps struct {
	Config          config.Config
	Sessions        middleware.SessionResolver
	UsersHandler    *users.Handler
	PatientsHandler *patients.Handler
	PairingHandler  *pairing.Handler
	AnalysisHandler *analyses.Handler
	ReportsHandler  *reports.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())

	// Unauthenticated surface: sign-up/sign-in and the device ingest
	// endpoint, which authenticates by pairing code instead of session.
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterPublicRoutes(api)
	}
	if deps.PairingHandler != nil {
		deps.PairingHandler.RegisterDeviceRoutes(api)
	}

	protected := api.Group("")
	protected.Use(middleware.SessionAuth(deps.Sessions))
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(protected)
	}
	if deps.PatientsHandler != nil {
		deps.PatientsHandler.RegisterRoutes(protected)
	}
	if deps.PairingHandler != nil {
		deps.PairingHandler.RegisterRoutes(protected)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(protected)
	}
	if deps.ReportsHandler != nil {
		deps.ReportsHandler.RegisterRoutes(protected)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
