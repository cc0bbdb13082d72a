// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"credit-eligibility-workers/internal/common/aws"
	"credit-eligibility-workers/internal/common/camunda"
	"credit-eligibility-workers/internal/common/config"
	"credit-eligibility-workers/internal/common/database"
	"credit-eligibility-workers/internal/common/logger"
	"credit-eligibility-workers/internal/common/observability"
	recordscoreresult "credit-eligibility-workers/internal/workers/scoring/record-score-result"
	"credit-eligibility-workers/pkg/registry"
)

type connection interface {
	Ping(ctx context.Context) error
	Close() error
}

// pingOrClose releases the connection pool when the ping fails so retries
// do not accumulate open pools.
func pingOrClose(ctx context.Context, c connection) error {
	if err := c.Ping(ctx); err != nil {
		c.Close()
		return err
	}
	return nil
}

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// deps are the shared clients handed to the worker handlers. Optional
// backends are nil when they could not be reached at startup.
type deps struct {
	zeebe   *camunda.Client
	pg      *database.PostgresClient
	redis   *database.RedisClient
	es      *database.ElasticsearchClient
	aws     *aws.Clients
	obs     *observability.Observability
	log     logger.Logger
	zapLog  *zap.Logger
	workers *camunda.WorkerSet
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewService(cfg.App.Name, cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()
	d := &deps{
		log:    logger.NewZapAdapter(zapLog),
		zapLog: zapLog,
		obs:    observability.New(cfg.App.Name, zapLog),
	}

	// --- Zeebe ---
	err = retryWithBackoff(func() error {
		var err error
		d.zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	err = retryWithBackoff(func() error {
		var err error
		d.pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pingOrClose(ctx, d.pg)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer d.pg.Close()
	if err := d.pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("postgres schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	err = retryWithBackoff(func() error {
		d.redis = database.NewRedis(cfg.Database.Redis)
		return pingOrClose(ctx, d.redis)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer d.redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch (optional: scores stay in Postgres without it) ---
	err = retryWithBackoff(func() error {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := es.Ping(ctx); err != nil {
			return err
		}
		if err := es.EnsureIndex(ctx, cfg.Scoring.ScoreIndex, recordscoreresult.IndexMapping); err != nil {
			return err
		}
		d.es = es
		return nil
	}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Warn("elasticsearch unavailable, score indexing disabled", zap.Error(err))
	} else {
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- AWS (notifications) ---
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		d.aws, err = aws.NewClients(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Warn("aws clients unavailable, notifications disabled", zap.Error(err))
		}
	}

	d.workers = camunda.NewWorkerSet(d.zeebe.GetClient(), zapLog)
	registerWorkers(cfg, d)
	zapLog.Info("Workers registered", zap.Strings("taskTypes", d.workers.Running()))
	checkRegistry(cfg.App.TaskRegistry, d.workers.Running(), zapLog)

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           newRouter(readinessChecks(d), d.workers.Running),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	d.workers.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := d.obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}
	if err := d.zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func readinessChecks(d *deps) map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"zeebe":    d.zeebe.HealthCheck,
		"postgres": d.pg.Ping,
		"redis":    d.redis.Ping,
	}
	if d.es != nil {
		checks["elasticsearch"] = d.es.Ping
	}
	return checks
}

// checkRegistry warns about started task types that process designers
// cannot find in the task catalog.
func checkRegistry(path string, running []string, log *zap.Logger) {
	reg, err := registry.Load(path)
	if err != nil {
		log.Warn("task registry not loaded", zap.String("path", path), zap.Error(err))
		return
	}
	if missing := reg.Missing(running); len(missing) > 0 {
		log.Warn("workers running without a registry entry", zap.Strings("taskTypes", missing))
	}
}
