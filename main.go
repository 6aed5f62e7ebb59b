package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"bleemsworker/config"
	"bleemsworker/helpers"
	"bleemsworker/internal/scraper"
	"bleemsworker/logger"
	"bleemsworker/services/cache"
	"bleemsworker/services/publisher"
	"bleemsworker/services/storage"
	"bleemsworker/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bleemsworker",
		Short:         "Bleems catalog scraper",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var category string
	scrape := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape shops, products and reviews and upload CSV partitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd.Context(), category)
		},
	}
	scrape.Flags().StringVar(&category, "category", "", "process only this shop type")

	categories := &cobra.Command{
		Use:   "categories",
		Short: "Print the distinct shop types as JSON, for CI matrix fan-out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCategories(cmd.Context())
		},
	}

	root.AddCommand(scrape, categories)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root.PersistentPostRun = func(*cobra.Command, []string) { cancel() }
	root.SetContext(ctx)
	return root
}

func runScrape(ctx context.Context, category string) error {
	log := logger.Default

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("base_url", cfg.BaseURL).
		Str("country", cfg.Country).
		Int("shop_workers", cfg.ShopWorkers).
		Msg("Starting application")

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	w, metrics := buildWorker(cfg, services)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics server enabled")
	}

	runErr := w.Run(ctx, category)
	if metricsServer != nil {
		metricsServer.Shutdown(context.Background())
	}
	log.Info().Interface("metrics", metrics.Summary()).Msg("Run metrics")

	if runErr != nil {
		log.Error().Err(runErr).Msg("Run failed")
		return runErr
	}

	log.Info().Msg("Run finished")
	return nil
}

func runCategories(ctx context.Context) error {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	w, _ := buildWorker(cfg, services)
	types, err := w.Categories(ctx)
	if err != nil {
		return err
	}

	out, err := json.Marshal(types)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func buildWorker(cfg *config.Config, services *Services) (*worker.Worker, *scraper.Metrics) {
	fetcher := helpers.NewFetcher(cfg.RequestTimeout, cfg.MaxRetries, services.Cache, cfg.BlockTime)
	metrics := scraper.NewMetrics()
	s := scraper.New(
		fetcher,
		cfg.BaseURL,
		cfg.Country,
		cfg.RequestDelay,
		cfg.RequestTimeout,
		cfg.MaxRetries,
		cfg.ReviewPageSize,
		metrics,
	)
	return worker.NewWorker(s, services.Store, services.Publisher, fetcher, cfg), metrics
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Store     storage.Store
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices initializes all required services. Memcache and Redis are
// optional; storage goes to S3 when a bucket is configured, otherwise to the
// local output directory.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	if cfg.S3Bucket != "" {
		store, err := storage.NewS3Store(ctx, cfg.S3Bucket, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		services.Store = store
		logger.Info("Uploading to s3://%s/%s", cfg.S3Bucket, cfg.S3Prefix)
	} else {
		services.Store = storage.NewLocalStore(cfg.LocalOutputDir)
		logger.Info("Writing output to %s", cfg.LocalOutputDir)
	}

	if cfg.RedisAddr != "" {
		services.Publisher = publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	} else {
		services.Publisher = publisher.Noop{}
	}

	return services, nil
}
