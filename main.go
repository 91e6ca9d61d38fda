package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agmark-sync/config"
	"agmark-sync/metrics"
	"agmark-sync/models"
	"agmark-sync/scraper/agmarknet"
	"agmark-sync/services"
	"agmark-sync/storage"
	"agmark-sync/utils"
)

var (
	envFile string
	passes  int
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:          "agmark-sync",
	Short:        "Scrapes Agmarknet commodity prices and appends them to a store, pass after pass.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	rootCmd.Flags().IntVar(&passes, "passes", -1, "stop after this many passes (0 runs forever, overrides MAX_PASSES)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep records in memory instead of the configured store")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	if passes >= 0 {
		cfg.MaxPasses = passes
	}
	if dryRun {
		cfg.StoreBackend = config.BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := utils.NewLoggerWithLevel(os.Stdout, utils.ParseLevel(cfg.LogLevel), false)
	logger.Info("=== Agmarknet sync starting ===")
	logger.Info("Config | state: %s | market: %s | commodities: %s | offset: %dd | interval: %v | store: %s:%s",
		cfg.State, cfg.Market, strings.Join(cfg.Commodities, ","), cfg.DateOffsetDays,
		cfg.PassInterval, cfg.StoreBackend, cfg.CollectionPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer store.Close()

	var dedup *utils.KeySet
	if cfg.DedupEnabled {
		dedup = utils.NewKeySet(cfg.DedupSize, cfg.DedupTTL)
		logger.Info("Duplicate suppression on (size %d, ttl %v)", cfg.DedupSize, cfg.DedupTTL)
	}

	sessions := agmarknet.NewChromeSessionFactory(agmarknet.ChromeOptions{
		ExecPath: cfg.ChromeBin,
		Headless: cfg.Headless,
	}, logger)
	navigator := agmarknet.NewNavigator(cfg.PortalURL, cfg.ElementTimeout, sessions, logger)

	uploader := services.NewUploader(store, cfg.CollectionPath, services.NewSanitizer(), dedup, logger)
	pipeline := services.NewPipeline(navigator, agmarknet.NewTableExtractor(logger), uploader, cfg.RunTimeout, logger, m)

	scheduler := services.NewScheduler(pipeline, services.SchedulerOptions{
		State:       cfg.State,
		Market:      cfg.Market,
		Commodities: cfg.Commodities,
		DateOffset:  cfg.DateOffsetDays,
		Interval:    cfg.PassInterval,
		MaxPasses:   cfg.MaxPasses,
	}, services.NewReportService(logger), logger, m)

	if counter, ok := store.(storage.Counter); ok {
		scheduler.OnPass = func(ctx context.Context, _ *models.PassReport) {
			n, err := counter.Count(ctx, cfg.CollectionPath)
			if err != nil {
				logger.Warn("Could not count documents under %s: %v", cfg.CollectionPath, err)
				return
			}
			logger.Info("%d documents stored under %s", n, cfg.CollectionPath)
		}
	}

	if cfg.AdminAddr != "" {
		admin := &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           services.NewAdminHandler(scheduler, m),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Admin server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
		}()
		logger.Info("Admin server listening on %s", cfg.AdminAddr)
	}

	err = scheduler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("Shutdown signal received, stopped")
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("=== Agmarknet sync finished ===")
	return nil
}
