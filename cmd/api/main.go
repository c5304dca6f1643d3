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

	"github.com/pratik-mahalle/ec2inventory/internal/api/handlers"
	"github.com/pratik-mahalle/ec2inventory/internal/api/middleware"
	"github.com/pratik-mahalle/ec2inventory/internal/api/router"
	"github.com/pratik-mahalle/ec2inventory/internal/config"
	"github.com/pratik-mahalle/ec2inventory/internal/ec2sync"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/secrets"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/validator"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
	"github.com/pratik-mahalle/ec2inventory/internal/repository/postgres"
	"github.com/pratik-mahalle/ec2inventory/internal/services"
	"github.com/pratik-mahalle/ec2inventory/internal/worker"
	"github.com/pratik-mahalle/ec2inventory/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})

	if cfg.Auth.EncryptionKey == "" {
		log.Fatal("ACCOUNT_ENCRYPTION_KEY must be set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	applied, err := postgres.RunMigrations(ctx, db, migrations.Files)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Infof("Database ready (%d migrations applied)", applied)

	// Repositories
	box := secrets.NewBox(cfg.Auth.EncryptionKey)
	accountRepo := postgres.NewAccountRepository(db, box)
	inventoryRepo := postgres.NewInventoryRepository(db)
	regionRepo := postgres.NewRegionRepository(db)
	tagRepo := postgres.NewTagRepository(db)
	priceRepo := postgres.NewPriceRepository(db)
	stateRepo := postgres.NewSyncStateRepository(db)

	// Providers
	factory := providers.NewAWSFactory()
	pricingFactory := providers.NewAWSPricingFactory(cfg.AWS.PricingRegion)
	retry := providers.RetryPolicyFromConfig(cfg.Sync)

	pool := worker.NewPool(cfg.Sync.Workers, cfg.Sync.QueueSize, log)
	pool.Start()

	// Sync engine
	deps := ec2sync.Deps{
		Store:   inventoryRepo,
		Regions: regionRepo,
		Tags:    ec2sync.NewTagAttacher(tagRepo, regionRepo, log),
		Retry:   retry,
		Log:     log,
	}
	orch := ec2sync.NewOrchestrator(ec2sync.Options{
		Accounts:  accountRepo,
		Regions:   regionRepo,
		State:     stateRepo,
		Discovery: ec2sync.NewRegionDiscovery(regionRepo, cfg.Sync, cfg.AWS.DiscoveryRegion, log),
		Prices:    ec2sync.NewPriceSynchronizer(priceRepo, inventoryRepo, stateRepo, pricingFactory, cfg.Sync, log),
		Fetchers: []ec2sync.Fetcher{
			ec2sync.NewKeypairFetcher(deps),
			ec2sync.NewSecurityGroupFetcher(deps),
			ec2sync.NewAMIFetcher(deps),
			ec2sync.NewInstanceFetcher(deps),
			ec2sync.NewVolumeFetcher(deps),
			ec2sync.NewSnapshotFetcher(deps),
			ec2sync.NewElasticIPFetcher(deps),
			ec2sync.NewLoadBalancerFetcher(deps),
		},
		Pool:    pool,
		Factory: factory,
		Sync:    cfg.Sync,
		Logger:  log,
		Base:    ctx,
	})

	// Services
	accountService := services.NewAccountService(accountRepo, stateRepo, factory, retry, cfg.AWS.DiscoveryRegion, log)
	inventoryService := services.NewInventoryService(inventoryRepo, accountRepo, regionRepo, priceRepo, factory, retry, log)

	// Handlers
	val := validator.New()
	h := &router.Handlers{
		Health:    handlers.NewHealthHandler(db, log),
		Account:   handlers.NewAccountHandler(accountService, log, val),
		Sync:      handlers.NewSyncHandler(orch, log, val),
		Inventory: handlers.NewInventoryHandler(inventoryService, orch, log),
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go limiter.Run(ctx)

	var scheduler *worker.SyncScheduler
	if cfg.Sync.SchedulerEnabled {
		scheduler, err = worker.NewSyncScheduler(accountRepo, func(ctx context.Context, userID int64) error {
			_, err := orch.EnsureFresh(ctx, userID)
			return err
		}, cfg.Sync.SchedulerSpec, log)
		if err != nil {
			log.Fatalf("Failed to create sync scheduler: %v", err)
		}
		if err := scheduler.Start(ctx); err != nil {
			log.Fatalf("Failed to start sync scheduler: %v", err)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, limiter, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Server listening on %s (%s)", server.Addr, cfg.Server.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr(err, "Server forced to shutdown")
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	// Cancel in-flight runs, then wait for them to release their sync state
	cancel()
	waitWithTimeout(orch.Wait, 10*time.Second, log)
	pool.Stop()

	log.Info("Server exited")
}

func waitWithTimeout(wait func(), timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn("Timed out waiting for sync runs to finish")
	}
}
