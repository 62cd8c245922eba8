package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"listou/internal/audit"
	"listou/internal/platform/config"
	"listou/internal/platform/httpserver"
	"listou/internal/platform/logger"
	platformmetrics "listou/internal/platform/metrics"
	platformredis "listou/internal/platform/redis"
	"listou/internal/receipt/handler"
	"listou/internal/receipt/importer"
	receiptmetrics "listou/internal/receipt/metrics"
	"listou/internal/receipt/provider"
	"listou/internal/receipt/service"
	"listou/internal/receipt/store"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	httpMetrics := platformmetrics.New()
	importMetrics := receiptmetrics.New()

	var receiptStore store.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(context.Background()); err != nil {
			log.Error("ping database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		receiptStore = store.NewPostgresStore(db)
		log.Info("using postgres receipt store")
	} else {
		receiptStore = store.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory receipt store")
	}

	var sessions importer.SessionStore
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = importer.NewRedisSessions(redisClient.Client, cfg.PendingImportTTL)
		log.Info("using redis pending-import sessions")
	} else {
		sessions = importer.NewInMemorySessions(cfg.PendingImportTTL)
	}

	var receiptProvider provider.Client
	if cfg.ProviderToken != "" {
		receiptProvider = provider.NewHTTPClient(cfg.ProviderBaseURL, cfg.ProviderToken, cfg.ProviderTimeout)
	} else {
		log.Warn("NFCE_PROVIDER_TOKEN not set, using mock aggregator")
		receiptProvider = &provider.MockClient{Latency: 500 * time.Millisecond}
	}

	var auditPublisher audit.Publisher
	if cfg.KafkaBrokers != "" {
		kafkaPublisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		auditPublisher = kafkaPublisher
	} else {
		auditPublisher = audit.NewRecorder()
	}
	defer auditPublisher.Close()

	imp := importer.New(receiptProvider, receiptStore, sessions, log, importMetrics)
	receiptService := service.New(imp, receiptStore, auditPublisher, importMetrics, log)
	receiptHandler := handler.New(receiptService, log, httpMetrics, []byte(cfg.JWTSigningKey))

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	receiptHandler.Register(router)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting listou server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
