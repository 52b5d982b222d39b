package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"pcos-backend/internal/bootstrap"
	"pcos-backend/internal/queue"
	"pcos-backend/internal/reconcile"
	"pcos-backend/internal/shared/config"
	"pcos-backend/internal/shared/metrics"
	"pcos-backend/internal/shared/telemetry"
	"pcos-backend/internal/workerproc"
)

const (
	defaultSQSRegion          = "us-east-1"
	defaultVisibilitySeconds  = 120
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{WithRouter: false})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	sweeper := &reconcile.Sweeper{
		Analyses:  app.AnalysesService,
		Repo:      app.AnalysesRepo,
		Grace:     time.Duration(envInt("RECONCILE_GRACE_SECONDS", 120)) * time.Second,
		Interval:  time.Duration(envInt("RECONCILE_INTERVAL_SECONDS", 60)) * time.Second,
		BatchSize: envInt("RECONCILE_BATCH_SIZE", 100),
	}
	go sweeper.Run(ctx)

	switch cfg.QueueBackend {
	case "sqs":
		runSQS(ctx, cfg, app)
	default:
		runRedis(ctx, cfg, app)
	}
}

// handleBody runs one job. Permanent failures are logged and acknowledged
// so the retry loop only sees errors that a later attempt could fix.
func handleBody(ctx context.Context, app *bootstrap.App, body string) error {
	metrics.IncJobsReceived()
	err := workerproc.HandleMessage(ctx, app, body)
	if err == nil {
		return nil
	}
	if workerproc.IsPermanent(err) {
		telemetry.Error("worker.job_dropped", map[string]any{"error": err.Error()})
		return nil
	}
	return err
}

func runRedis(ctx context.Context, cfg config.Config, app *bootstrap.App) {
	rq, ok := app.Queue.(*queue.RedisQueue)
	if !ok {
		log.Fatal("redis worker requires QUEUE_BACKEND=redis")
	}

	concurrency := max(1, envInt("WORKER_CONCURRENCY", defaultWorkerConcurrency))
	log.Printf("worker started backend=redis queue=%s concurrency=%d", cfg.QueueName, concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := rq.Consume(ctx, func(ctx context.Context, body string) error {
				return handleBody(ctx, app, body)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("consume: %v", err)
			}
		}()
	}
	wg.Wait()
}

func runSQS(ctx context.Context, cfg config.Config, app *bootstrap.App) {
	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		log.Fatal("PCOS_SQS_QUEUE_URL is required")
	}

	region := strings.TrimSpace(os.Getenv("AWS_REGION"))
	if region == "" {
		region = defaultSQSRegion
	}
	visibilitySeconds := envInt("SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := max(1, envInt("WORKER_CONCURRENCY", defaultWorkerConcurrency))
	shutdownTimeout := time.Duration(envInt("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	client := sqs.NewFromConfig(awsCfg)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	log.Printf("worker started backend=sqs queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, visibilitySeconds)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				// On error the message is left in flight; SQS redelivers
				// after the visibility timeout and owns the retry budget.
				if err := handleBody(ctx, app, aws.ToString(m.Body)); err != nil {
					telemetry.Error("worker.job_failed", map[string]any{
						"sqs_message_id": aws.ToString(m.MessageId),
						"error":          err.Error(),
					})
					return
				}
				if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
					QueueUrl:      aws.String(queueURL),
					ReceiptHandle: m.ReceiptHandle,
				}); err != nil {
					telemetry.Error("worker.delete_failed", map[string]any{
						"sqs_message_id": aws.ToString(m.MessageId),
						"error":          err.Error(),
					})
				}
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

