// cmd/intake-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclients "intake-workers/internal/common/aws"
	"intake-workers/internal/common/camunda"
	"intake-workers/internal/common/config"
	"intake-workers/internal/common/database"
	commonhttp "intake-workers/internal/common/http"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/common/observability"
	"intake-workers/internal/intake/audit"
	"intake-workers/internal/intake/flows"
	"intake-workers/internal/intake/guard"
	"intake-workers/internal/intake/ingest"
	"intake-workers/internal/intake/ledger"
	"intake-workers/internal/intake/notify"
	"intake-workers/internal/intake/orchestrator"
	"intake-workers/internal/intake/store"

	him "intake-workers/internal/workers/intake/handle-inbound-message"
	lsr "intake-workers/internal/workers/intake/list-service-requests"
)

// retryWithBackoff attempts to execute a function with exponential backoff
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intake manager...", zap.String("environment", cfg.App.Environment))

	obs := observability.New("intake-manager", log)
	defer obs.Shutdown(context.Background())

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional) ---
	var indexer *ledger.Indexer
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(); err != nil {
				return err
			}
			return es.EnsureIndex(ctx, cfg.Database.Elasticsearch.RequestIndex, ledger.RequestIndexMapping)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = ledger.NewIndexer(es.Client, cfg.Database.Elasticsearch.RequestIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	} else {
		zapLog.Info("Elasticsearch not configured, request search disabled")
	}

	// --- Init AWS Clients ---
	s3Client, err := awsclients.NewS3Client(ctx, cfg.Storage.Region)
	if err != nil {
		zapLog.Fatal("s3 client failed", zap.Error(err))
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Channel.TopicARN != "" {
		snsClient, err := awsclients.NewSNSClient(ctx, cfg.Channel.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		notifier = notify.NewSNSNotifier(snsClient, cfg.Channel.TopicARN, cfg.Intake.Templates, log)
	}

	var alerts notify.RequestAlerter = notify.Nop{}
	if cfg.Notifications.Email.Enabled {
		sesClient, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		adminAlerts, err := notify.NewAdminAlerts(sesClient, cfg.Notifications.Email.FromEmail, splitList(cfg.Notifications.Email.AdminTo), log)
		if err != nil {
			zapLog.Fatal("admin alerts misconfigured", zap.Error(err))
		}
		alerts = adminAlerts
	}
	zapLog.Info("All external service clients initialized")

	// --- Intake Core ---
	sessions := store.New(pg.DB, log)
	requests := ledger.New(pg.DB, log)

	media := commonhttp.NewClient(config.GetDuration(cfg.Intake.IngestTimeout)).
		WithBasicAuth(cfg.Channel.MediaUsername, cfg.Channel.MediaPassword)
	ingestor := ingest.New(media, s3Client, ingest.Options{
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.Storage.Region,
		Folder:        cfg.Storage.Folder,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		Timeout:       config.GetDuration(cfg.Intake.IngestTimeout),
	}, log)

	registry, err := flows.NewRegistry(cfg.Intake, flows.Dependencies{
		Ingestor: ingestor,
		Requests: requests,
	}, log)
	if err != nil {
		zapLog.Fatal("flow registry invalid", zap.Error(err))
	}

	deps := orchestrator.Dependencies{
		Sessions: sessions,
		Ledger:   requests,
		Tx:       orchestrator.SQLTransactor{DB: pg.DB},
		Registry: registry,
		Notifier: notifier,
		Alerts:   alerts,
		Locker:   guard.NewLocker(rdb.Client, config.GetDuration(cfg.Intake.LockTTL), config.GetDuration(cfg.Intake.LockWait), log),
		Dedupe:   guard.NewDedupe(rdb.Client, config.GetDuration(cfg.Intake.DedupeTTL)),
		Recorder: obs,
	}
	if indexer != nil {
		deps.Indexer = indexer
	}
	if cfg.Intake.AuditDisqualified {
		deps.Audit = audit.NewLog(pg.DB, log)
	}

	orch, err := orchestrator.New(deps, orchestrator.Options{ResetKeywords: cfg.Intake.ResetKeywords}, log)
	if err != nil {
		zapLog.Fatal("orchestrator init failed", zap.Error(err))
	}

	// --- Register Workers ---
	var workers []*camunda.Worker

	if wcfg := config.GetWorkerConfig(cfg, him.TaskType); wcfg.Enabled {
		handler := him.NewHandler(&him.Config{Timeout: config.GetDuration(wcfg.Timeout)}, orch, log)
		workers = append(workers, startWorker(zeebe, him.TaskType, wcfg, handler, log))
	}

	if wcfg := config.GetWorkerConfig(cfg, lsr.TaskType); wcfg.Enabled {
		defaults := lsr.LoadConfig()
		var searcher lsr.Searcher
		if indexer != nil {
			searcher = indexer
		}
		handler := lsr.NewHandler(&lsr.Config{
			Timeout:      config.GetDuration(wcfg.Timeout),
			DefaultLimit: defaults.DefaultLimit,
			MaxLimit:     defaults.MaxLimit,
		}, requests, searcher, log)
		workers = append(workers, startWorker(zeebe, lsr.TaskType, wcfg, handler, log))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pg.Ping(checkCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "postgres unavailable")
			return
		}
		if err := rdb.Ping(checkCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "zeebe unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Server.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Intake manager stopped gracefully")
}

func startWorker(client *camunda.Client, taskType string, wcfg config.WorkerConfig, handler camunda.JobHandler, log logger.Logger) *camunda.Worker {
	return camunda.StartWorker(client.GetClient(), taskType, camunda.WorkerOptions{
		MaxJobsActive: wcfg.MaxJobsActive,
		Timeout:       config.GetDuration(wcfg.Timeout),
	}, handler, log)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}

// splitList parses a comma separated address list.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
