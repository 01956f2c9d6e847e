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

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/api"
	"github.com/terra-clan/staffing-engine/internal/cleanup"
	"github.com/terra-clan/staffing-engine/internal/config"
	"github.com/terra-clan/staffing-engine/internal/execution"
	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/services"
	"github.com/terra-clan/staffing-engine/internal/staffing"
	"github.com/terra-clan/staffing-engine/internal/storage"
	"github.com/terra-clan/staffing-engine/internal/templates"
)

const (
	lockPrefix      = "staffing:lock:"
	progressPrefix  = "staffing:execution:"
	shutdownTimeout = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting staffing-engine",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("version", version),
	)

	initCtx, initCancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer initCancel()

	repo, err := openRepository(initCtx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("repository close error", zap.Error(err))
		}
	}()

	registry := services.NewRegistry()
	registry.Register("database", services.NewDatabaseProvider(cfg.Storage.Driver, repo))

	// without redis, locks and progress fan-out stay inside this process
	var (
		locker services.Locker      = services.NewLocalLocker()
		bus    services.ProgressBus = services.NewLocalBus()
	)
	if cfg.Redis.Enabled {
		redisProvider, err := services.NewRedisProvider(initCtx, services.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("redis unavailable, using in-process lock and progress bus", zap.Error(err))
		} else {
			defer redisProvider.Close()
			registry.Register("redis", redisProvider)
			locker = services.NewRedisLocker(redisProvider.Client(), lockPrefix, log)
			bus = services.NewRedisBus(redisProvider.Client(), progressPrefix, log)
		}
	}

	// Load playbooks and skill keyword rules
	loader := templates.NewLoader(log)
	if err := loader.LoadFromDir(cfg.Templates.Dir); err != nil {
		log.Warn("failed to load templates from dir", zap.String("dir", cfg.Templates.Dir), zap.Error(err))
	}
	skills := matching.DefaultSkillTable()
	loader.ApplySkills(skills)

	matcher := matching.NewMatcher(
		matching.WithSkillTable(skills),
		matching.WithHistoryLimit(cfg.Matching.HistoryLimit),
	)

	svc := staffing.New(repo, log,
		staffing.WithMatcher(matcher),
		staffing.WithLocker(locker),
		staffing.WithHistoryLimit(cfg.Matching.HistoryLimit),
		staffing.WithExecution(execution.Config{
			Playbooks:   loader,
			Publisher:   bus,
			SpeedFactor: cfg.Execution.SpeedFactor,
		}),
	)

	if err := bootstrapClient(initCtx, cfg, repo, log); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cleaner := cleanup.NewCleaner(repo, svc.Runner(), cfg.Cleanup.Interval, cfg.Execution.StaleAfter, log)
	cleaner.Start(ctx)

	opts := []api.ServerOption{api.WithProgressBus(bus)}
	if !cfg.Auth.Enabled {
		log.Warn("api key authentication is disabled")
		opts = append(opts, api.WithoutAuth())
	}
	server := api.NewServer(cfg.Server, svc, repo, registry, log, opts...)

	// execution streams run longer than any fixed write timeout
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down gracefully", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server error", zap.Error(err))
		return err
	}

	// stop background workers before draining requests
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("staffing-engine stopped")
	return nil
}

// openRepository connects the configured storage driver, applying migrations
// first when they are enabled
func openRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Repository, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return storage.NewMemoryRepository(), nil
	}

	if cfg.Migrations.Auto {
		log.Info("running database migrations", zap.String("dir", cfg.Migrations.Dir))
		applied, err := storage.MigrateFromDSN(ctx, cfg.Database.DSN, cfg.Migrations.Dir, log)
		if err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations done", zap.Int("applied", len(applied)))
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:         cfg.Database.DSN,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxLifetime: cfg.Database.MaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create database repository: %w", err)
	}
	log.Info("database connected successfully")
	return repo, nil
}

// bootstrapClient registers the configured key as a full-access client
func bootstrapClient(ctx context.Context, cfg *config.Config, repo storage.Repository, log *zap.Logger) error {
	key := cfg.Auth.BootstrapKey
	if key == "" {
		return nil
	}

	client := &models.ApiClient{
		ID:          uuid.NewString(),
		Name:        "bootstrap",
		ApiKey:      key,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		Permissions: []string{"*"},
	}
	err := repo.CreateClient(ctx, client)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		log.Debug("bootstrap api client already registered")
	case err != nil:
		return fmt.Errorf("failed to register bootstrap api client: %w", err)
	default:
		log.Info("bootstrap api client registered", zap.String("key_prefix", client.MaskedApiKey()))
	}
	return nil
}
