package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/marketsync/config"
	"example.com/backstage/services/marketsync/internal/cache"
	"example.com/backstage/services/marketsync/internal/marketplace"
	"example.com/backstage/services/marketsync/internal/messaging"
	"example.com/backstage/services/marketsync/internal/metrics"
	"example.com/backstage/services/marketsync/internal/repositories"
	"example.com/backstage/services/marketsync/internal/scheduler"
	"example.com/backstage/services/marketsync/internal/search"
	"example.com/backstage/services/marketsync/internal/services"
	"example.com/backstage/services/marketsync/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that sweeps every active account and reconciles marketplace orders`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connections
	db, readOnlyDB, err := initDatabases(cfg)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache, _ = cache.NewRedisCache(config.RedisConfig{})
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		return err
	}
	defer tracer.Close()

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	}

	// Initialize the dispatch event publisher
	var publisher messaging.Publisher
	if cfg.Azure.QueueConnStr != "" {
		publisher, err = messaging.NewServiceBusPublisher(cfg.Azure)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Service Bus publisher, continuing without dispatch events")
		}
	}
	defer func() {
		if publisher == nil {
			return
		}
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Service Bus publisher")
		}
	}()

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize the marketplace API client
	marketplaceClient := marketplace.NewClient(cfg.Marketplace)

	// Initialize repositories and services
	accountRepo := repositories.NewAccountRepository(db, readOnlyDB)
	orderRepo := repositories.NewOrderRepository(db, readOnlyDB)

	orderService := services.NewOrderService(accountRepo, orderRepo, marketplaceClient,
		redisCache, elasticClient, publisher, metricsCollector, tracer, cfg.Scheduler.AccountTimeout)

	// Start the sync sweep
	sweep := scheduler.New(cfg.Scheduler, accountRepo, orderService, metricsCollector)
	g.Go(func() error {
		return sweep.Run(ctx)
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
