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

	"github.com/redis/go-redis/v9"

	"vizintel/api/internal/archive"
	"vizintel/api/internal/config"
	"vizintel/api/internal/db"
	internalhttp "vizintel/api/internal/http"
	"vizintel/api/internal/identity"
	"vizintel/api/internal/jobs"
	"vizintel/api/internal/live"
	"vizintel/api/internal/logging"
	"vizintel/api/internal/metrics"
	"vizintel/api/internal/repository"
	"vizintel/api/internal/repository/memory"
	"vizintel/api/internal/repository/postgres"
	"vizintel/api/internal/services"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "dotenv load failed: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()
	log := logging.NewJSON(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	hub := live.NewHub(cfg.AllowedOrigin, log, m)

	var broker live.Broker = live.NewLocalBroker(hub)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Warn(ctx, "redis close error", "error", err)
			}
		}()
		broker = live.NewRedisBroker(redisClient, hub, log)
	}
	go func() {
		if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "live broker stopped", "error", err)
		}
	}()

	arch, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}

	var verifier identity.Verifier = identity.Disabled{}
	if cfg.GoogleClientID != "" {
		google, err := identity.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			return err
		}
		verifier = google
	} else {
		log.Warn(ctx, "GOOGLE_CLIENT_ID not set; external login disabled")
	}

	traffic := services.NewTraffic(store)
	server := internalhttp.NewServer(cfg, internalhttp.Deps{
		Sessions: services.NewSessions(store, verifier, cfg.JWTSecret, log),
		Accounts: services.NewAccounts(store, store, log),
		Records:  services.NewRecords(store, broker, arch, m, log),
		Tickets:  services.NewTickets(store, log),
		Traffic:  traffic,
		Hub:      hub,
		Metrics:  m,
		Log:      log,
	})
	jobs.StartTrafficRetentionJob(ctx, cfg, traffic, log)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "vizintel http listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "shutdown error", "error", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log logging.Logger) (repository.Repositories, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		log.Warn(ctx, "using in-memory storage; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	case config.StoragePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connection failed: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

func openArchive(ctx context.Context, cfg config.Config) (archive.Archive, error) {
	if cfg.S3Bucket != "" {
		return archive.NewS3(ctx, archive.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return archive.NewFilesystem(cfg.UploadDir)
}
