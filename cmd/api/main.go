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

	"vouchers/internal/codegen"
	"vouchers/internal/codeset"
	"vouchers/internal/config"
	"vouchers/internal/database"
	"vouchers/internal/event"
	"vouchers/internal/handler"
	"vouchers/internal/metrics"
	"vouchers/internal/repository"
	"vouchers/internal/retry"
	"vouchers/internal/router"
	"vouchers/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting voucher API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	tables := database.Tables{
		Schema:     cfg.Voucher.Schema,
		Voucher:    cfg.Voucher.VoucherTable,
		Redemption: cfg.Voucher.RedemptionTable,
	}
	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool, tables, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize repository
	voucherRepo := repository.NewVoucherRepository(pool, tables, logger)

	// Load reserved codes the generator must never emit
	reserved, err := loadReservedCodes(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to load reserved codes: %w", err)
	}

	// Initialize code generator
	gen, err := codegen.NewGenerator(codegen.Config{
		Alphabet:  cfg.Voucher.CodeAlphabet,
		Length:    cfg.Voucher.CodeLength,
		Prefix:    cfg.Voucher.CodePrefix,
		Suffix:    cfg.Voucher.CodeSuffix,
		Separator: cfg.Voucher.CodeSeparator,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize code generator: %w", err)
	}
	uniqueGen := codegen.NewUniqueGenerator(gen, voucherRepo, cfg.Voucher.MaxAttempts, logger,
		codegen.WithReserved(reserved),
		codegen.WithCollisionHook(m.CodeCollision),
	)

	// Initialize redemption event notifiers
	notifier, err := newNotifier(ctx, cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event notifier: %w", err)
	}

	// Initialize service
	voucherService := service.NewVoucherService(
		voucherRepo,
		uniqueGen,
		service.MatchExtra,
		notifier,
		m,
		service.Options{RedeemRelation: cfg.Voucher.RedeemRelation},
		logger,
	)

	// Initialize HTTP handlers
	voucherHandler := handler.NewVoucherHandler(voucherService, retry.FromConfig(cfg.Retry), logger)

	// Initialize router
	mux := router.New(voucherHandler, pool, registry, router.Config{
		APIKey:         cfg.Auth.APIKey,
		AllowedOrigins: cfg.Server.Origins(),
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// loadReservedCodes loads the configured reserved code files, from S3 with a
// local fallback when S3 is enabled.
func loadReservedCodes(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (codeset.CodeSet, error) {
	paths := cfg.Voucher.ReservedFilePaths()
	if len(paths) == 0 {
		return codeset.Empty(), nil
	}

	fileLoader := codeset.NewFileLoader(logger)
	var s3Loader codeset.Loader

	if cfg.S3.Enabled {
		l, err := codeset.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = l
		}
	} else {
		logger.Info().Msg("using local file system for reserved code files (S3 disabled)")
	}

	loader := codeset.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, logger)

	return codeset.LoadAll(ctx, loader, paths, logger)
}

// newNotifier always logs redemption events and also sends them to SQS when enabled.
func newNotifier(ctx context.Context, cfg config.EventsConfig, logger zerolog.Logger) (event.Notifier, error) {
	notifiers := event.Multi{event.NewLogNotifier(logger)}

	if cfg.SQSEnabled {
		sqsNotifier, err := event.NewSQSNotifier(ctx, cfg.SQSQueueURL, cfg.SQSRegion, logger)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, sqsNotifier)
	}

	return notifiers, nil
}
