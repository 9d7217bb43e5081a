package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/serasa-adapter/internal/api"
	"github.com/Checker-Finance/serasa-adapter/internal/handler"
	"github.com/Checker-Finance/serasa-adapter/internal/jobs"
	"github.com/Checker-Finance/serasa-adapter/internal/metrics"
	"github.com/Checker-Finance/serasa-adapter/internal/publisher"
	"github.com/Checker-Finance/serasa-adapter/internal/rate"
	internalsecrets "github.com/Checker-Finance/serasa-adapter/internal/secrets"
	"github.com/Checker-Finance/serasa-adapter/internal/serasa"
	"github.com/Checker-Finance/serasa-adapter/internal/store"
	"github.com/Checker-Finance/serasa-adapter/pkg/config"
	"github.com/Checker-Finance/serasa-adapter/pkg/logger"
	"github.com/Checker-Finance/serasa-adapter/pkg/secrets"
	"github.com/Checker-Finance/serasa-adapter/pkg/utils"
)

// resolver is what both the service and the API validator need from a credentials source.
type resolver interface {
	serasa.CredentialsResolver
	DiscoverClients(ctx context.Context) ([]string, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [serasa-adapter]...")
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- Per-client credentials ---
	credsCache := secrets.NewCache[serasa.Credentials](cfg.CacheTTL).OnAccess(func(hit bool) {
		if hit {
			metrics.IncCacheHit("hit")
		} else {
			metrics.IncCacheHit("miss")
		}
	})
	stopCleaner := make(chan struct{})
	go credsCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

	var credsResolver resolver
	switch cfg.CredentialsSource {
	case config.CredentialsEnv:
		r, err := internalsecrets.NewStaticResolver(serasa.Credentials{
			Username: cfg.SerasaUsername,
			Password: cfg.SerasaPassword,
			BaseURL:  cfg.SerasaBaseURL,
			Proxy:    cfg.SerasaProxy,
		}, cfg.StaticClients)
		if err != nil {
			logg.Fatalw("failed to configure static credentials", "error", err)
		}
		credsResolver = r
	default:
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		credsResolver = internalsecrets.NewCredentialsResolver(
			logg.Desugar(),
			cfg.Env,
			cfg.SerasaBaseURL,
			awsProvider,
			credsCache,
		)
	}

	// --- Discover configured clients ---
	clients, err := credsResolver.DiscoverClients(ctx)
	if err != nil {
		logg.Warnw("failed to discover clients", "error", err)
	} else {
		logg.Infow("discovered Serasa clients", "count", len(clients), "clients", clients)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	var pub publisher.EventPublisher
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		pub, err = publisher.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.ServiceName, logg.Desugar())
	default:
		pub, err = publisher.New(nc, cfg.OutboundSubject, cfg.ServiceName)
	}
	if err != nil {
		logg.Fatalw("failed to init publisher", "broker", cfg.EventBroker, "error", err)
	}

	// --- Rate limiter (per Serasa account) ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
		Cooldown:          cfg.RateLimitCooldown,
	})

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, cfg.LastFetchTTL, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Audit retention ---
	var pruner *jobs.AuditPruner
	if pg := st.(*store.HybridStore).PG; pg != nil {
		pruner = jobs.NewAuditPruner(logg.Desugar(), pg, pub, cfg.AuditPruneInterval, cfg.AuditRetention)
		go pruner.Start(ctx)
	}

	// --- Serasa service ---
	svc := serasa.NewService(logg.Desugar(), credsResolver, st, pub, rateMgr, cfg.SerasaMaxTimeout)

	// --- NATS command handler ---
	cmdHandler := handler.NewHandler(ctx, logg.Desugar(), nc, svc,
		cfg.InboundSubject, cfg.QueueGroup, cfg.SerasaMaxTimeout+5*time.Second)
	if err := cmdHandler.Start(); err != nil {
		logg.Fatalw("failed to start command handler", "error", err)
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	reportHandler := api.NewReportHandler(logg.Desugar(), svc, api.NewResolverValidator(credsResolver))
	api.RegisterRoutes(app, nc, st, reportHandler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[serasa-adapter] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"broker", cfg.EventBroker,
		"credentials", cfg.CredentialsSource,
		"discovered_clients", len(clients))

	<-ctx.Done()
	logg.Info("shutting down [serasa-adapter]...")

	close(stopCleaner)
	cmdHandler.Stop()
	if pruner != nil {
		pruner.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if cfg.EventBroker == config.BrokerRabbitMQ {
		pub.Close()
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
