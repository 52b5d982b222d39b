package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"pcos-backend/internal/analyses"
	"pcos-backend/internal/inference"
	"pcos-backend/internal/pairing"
	"pcos-backend/internal/patients"
	"pcos-backend/internal/queue"
	"pcos-backend/internal/reports"
	"pcos-backend/internal/sessions"
	"pcos-backend/internal/shared/config"
	"pcos-backend/internal/shared/server"
	"pcos-backend/internal/shared/storage/db"
	"pcos-backend/internal/shared/storage/kv"
	"pcos-backend/internal/users"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client
	KV     kv.Store
	Queue  queue.Client

	UsersRepo    users.Repo
	PatientsRepo patients.Repo
	AnalysesRepo analyses.Repo

	SessionsService *sessions.Service
	PairingService  *pairing.Service
	UsersService    *users.Service
	PatientsService *patients.Service
	AnalysesService *analyses.Service
	ReportsService  *reports.Service

	// AnalysisProcessor allows the worker harness to override scoring in
	// tests.
	AnalysisProcessor AnalysisProcessor
}

// AnalysisProcessor scores one analysis by ID.
type AnalysisProcessor interface {
	ProcessAnalysis(ctx context.Context, analysisID string) error
}

// Options tunes what Build wires up.
type Options struct {
	// WithRouter controls whether the HTTP router is constructed; the
	// worker process skips it.
	WithRouter bool
}

// Build prepares shared dependencies.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB}

	if strings.TrimSpace(cfg.RedisAddr) != "" {
		app.Redis = kv.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		app.KV = kv.NewRedisStore(app.Redis)
	} else {
		log.Printf("bootstrap: REDIS_ADDR empty; using in-memory ephemeral store")
		app.KV = kv.NewMemoryStore()
	}

	queueClient, err := buildQueue(ctx, cfg, app.Redis)
	if err != nil {
		return nil, err
	}
	app.Queue = queueClient

	if err := buildServices(app); err != nil {
		return nil, err
	}

	if opts.WithRouter {
		app.Router = server.NewRouter(server.RouterDeps{
			Config:          cfg,
			Sessions:        app.SessionsService,
			UsersHandler:    users.NewHandler(app.UsersService, app.SessionsService),
			PatientsHandler: patients.NewHandler(app.PatientsService),
			PairingHandler:  pairing.NewHandler(app.PairingService),
			AnalysisHandler: analyses.NewHandler(app.AnalysesService),
			ReportsHandler:  reports.NewHandler(app.ReportsService),
		})
	}

	return app, nil
}

// Close releases pooled connections and stops background loops.
func (a *App) Close() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if mem, ok := a.KV.(*kv.MemoryStore); ok {
		mem.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildQueue(ctx context.Context, cfg config.Config, rdb *redis.Client) (queue.Client, error) {
	switch cfg.QueueBackend {
	case "sqs":
		if strings.TrimSpace(cfg.SQSQueueURL) == "" {
			return nil, fmt.Errorf("QUEUE_BACKEND=sqs requires PCOS_SQS_QUEUE_URL")
		}
		return queue.NewSQSClient(ctx, cfg.SQSQueueURL, os.Getenv("AWS_REGION"))
	default:
		if rdb == nil {
			return nil, fmt.Errorf("QUEUE_BACKEND=redis requires REDIS_ADDR")
		}
		return queue.NewRedisQueue(rdb, cfg.QueueName, queue.RetryPolicy{
			MaxAttempts: cfg.JobMaxAttempts,
			BackoffBase: cfg.JobBackoffBase,
		}), nil
	}
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.UsersRepo = users.NewPGRepo(app.DB)
		app.PatientsRepo = patients.NewPGRepo(app.DB)
		app.AnalysesRepo = analyses.NewPGRepo(app.DB)
	} else {
		app.UsersRepo = users.NewMemoryRepo()
		app.PatientsRepo = patients.NewMemoryRepo()
		app.AnalysesRepo = analyses.NewMemoryRepo()
	}

	app.SessionsService = sessions.NewService(app.KV, app.Config.SessionTTL)
	app.PairingService = pairing.NewService(app.KV, app.Config.PairingTTL)
	app.UsersService = users.NewService(app.UsersRepo)
	app.PatientsService = patients.NewService(app.PatientsRepo)

	mlClient := inference.Client(inference.PlaceholderClient{})
	if strings.TrimSpace(app.Config.MLServiceURL) != "" {
		httpClient, err := inference.NewHTTPClient(app.Config.MLServiceURL, app.Config.MLServiceAPIKey, app.Config.MLTimeout)
		if err != nil {
			return err
		}
		mlClient = httpClient
	} else {
		log.Printf("bootstrap: ML_SERVICE_URL empty; scoring jobs will fail until configured")
	}

	app.AnalysesService = &analyses.Service{
		Repo:         app.AnalysesRepo,
		Patients:     app.PatientsRepo,
		Pairing:      app.PairingService,
		Queue:        app.Queue,
		Inference:    mlClient,
		ModelVersion: app.Config.MLModelVersion,
	}
	app.AnalysisProcessor = app.AnalysesService
	app.ReportsService = reports.NewService(app.AnalysesRepo)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
