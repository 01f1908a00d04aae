package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"eduledger/internal/audit"
	certledger "eduledger/internal/certificate/ledger"
	certmetrics "eduledger/internal/certificate/metrics"
	consentledger "eduledger/internal/consent/ledger"
	consentmetrics "eduledger/internal/consent/metrics"
	"eduledger/internal/disclosure"
	"eduledger/internal/platform/config"
	"eduledger/internal/platform/database"
	"eduledger/internal/platform/httpserver"
	"eduledger/internal/platform/kafka/producer"
	"eduledger/internal/platform/logger"
	platformmetrics "eduledger/internal/platform/metrics"
	"eduledger/internal/platform/middleware"
	platformredis "eduledger/internal/platform/redis"
	httptransport "eduledger/internal/transport/http"
	"eduledger/internal/txn"
	"eduledger/internal/worldstate"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Ledger logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing eduledger gateway",
		"addr", cfg.Addr,
		"metrics_addr", cfg.MetricsAddr,
		"database", cfg.DatabaseURL != "",
		"redis", cfg.Redis.URL != "",
		"kafka", cfg.Kafka.Brokers != "",
	)

	// World state: PostgreSQL when configured, in-memory otherwise.
	var store worldstate.Store = worldstate.NewMemory()
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		pg := worldstate.NewPostgres(pool.DB())
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("schema init failed", "error", err)
			os.Exit(1)
		}
		store = pg
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit trail: always persisted in memory for inspection, fanned out to
	// Kafka when brokers are configured.
	auditOpts := []audit.PublisherOption{
		audit.WithAsyncBuffer(cfg.AuditBufferSize),
		audit.WithPublisherLogger(log),
	}
	if cfg.Kafka.Brokers != "" {
		kafkaProducer, err := producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Acks:            cfg.Kafka.Acks,
			Retries:         cfg.Kafka.Retries,
			DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		}, log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		auditOpts = append(auditOpts, audit.WithSink(audit.NewKafkaSink(kafkaProducer, cfg.Kafka.AuditTopic)))
	}
	publisher := audit.NewPublisher(audit.NewInMemoryStore(), auditOpts...)
	defer publisher.Close()

	certificates := certledger.New()
	consents := consentledger.New(certificates)
	verifier := disclosure.New(certificates, consents)
	processor := txn.NewProcessor(certificates, consents, verifier,
		txn.WithCertificateMetrics(certmetrics.New()),
		txn.WithConsentMetrics(consentmetrics.New()),
	)
	runtime := txn.NewRuntime(store, processor, publisher, log,
		txn.WithMaxRetries(cfg.MaxCommitRetries),
	)

	handler := httptransport.NewHandler(runtime, log,
		httptransport.WithMetrics(platformmetrics.New()),
		httptransport.WithVerifyCache(httptransport.NewVerifyCache(redisClient, cfg.Redis.VerifyTTL)),
	)
	validator := middleware.NewJWTValidator(cfg.JWTSigningKey)
	router := httptransport.NewRouter(handler, validator, log, cfg.RequestTimeout)

	srv := httpserver.New(cfg.Addr, router)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := httpserver.New(cfg.MetricsAddr, metricsMux)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("starting metrics server", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if redisClient != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					redisClient.RecordPoolStats()
				}
			}
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
