package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/okian/certify/internal/adapters/http/api"
	"github.com/okian/certify/internal/adapters/http/swagger"
	"github.com/okian/certify/internal/adapters/notify"
	"github.com/okian/certify/internal/adapters/repository"
	app "github.com/okian/certify/internal/app"
	"github.com/okian/certify/internal/config"
	"github.com/okian/certify/internal/domain/certificate"
	"github.com/okian/certify/internal/domain/roster"
	"github.com/okian/certify/pkg/logger"
	"github.com/okian/certify/pkg/metrics"
	"github.com/spf13/cobra"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := initLogging(ctx, cfg)
	if err != nil {
		return err
	}

	metrics.Configure(metricsOptions(cfg)...)

	svc := buildService(ctx, cfg, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	apiServer := api.NewServer(svc, svc,
		api.WithCORSOrigins(cfg.CORSOrigins...),
		api.WithLogger(log.Named("api")),
	)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           buildRouter(ctx, apiServer),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	apiServer.SetReady(true)
	printBanner(cfg)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")
	apiServer.SetReady(false)

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return runErr
}

// buildService wires the roster, renderer, feedback store and mailer from cfg.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) *app.Service {
	idx := roster.Load(ctx, cfg.RosterPath, log.Named("roster"))

	renderer := certificate.NewRenderer(
		certificate.WithTemplatePath(cfg.TemplatePath),
		certificate.WithFontPath(cfg.FontPath),
		certificate.WithOutputDir(cfg.OutputDir),
		certificate.WithLogger(log.Named("certificate")),
	)
	store := repository.NewRESTStore(cfg.StoreURL, cfg.StoreKey,
		repository.WithTimeout(time.Duration(cfg.StoreTimeoutMS)*time.Millisecond),
		repository.WithLogger(log.Named("store")),
	)
	mailer := notify.NewDispatcher(notify.Settings{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, notify.WithLogger(log.Named("mail")))

	if !cfg.StoreConfigured() {
		log.Warn(ctx, "feedback store not configured; feedback and admin endpoints will fail")
	}
	if !cfg.SMTPConfigured() {
		log.Warn(ctx, "SMTP not configured; certificates will not be emailed")
	}

	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithRoster(idx),
		app.WithRenderer(renderer),
		app.WithStore(store),
		app.WithDispatcher(mailer),
		app.WithWorkerCount(cfg.DeliveryWorkers),
		app.WithQueueSize(cfg.DeliveryQueueSize),
		app.WithAdminCredentials(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminToken),
	)
}

// metricsOptions maps the metrics settings onto manager options.
func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithCustomLabels(cfg.MetricsLabels),
		metrics.WithHistogramBuckets(cfg.MetricsBucketsMS),
	}
}

// buildRouter registers the API and documentation routes.
func buildRouter(ctx context.Context, apiServer *api.Server) http.Handler {
	r := apiServer.Router(ctx)
	swagger.Register(ctx, r)
	return r
}

func printBanner(cfg *config.Config) {
	on := color.New(color.FgGreen).SprintFunc()
	off := color.New(color.FgYellow).SprintFunc()
	state := func(ok bool) string {
		if ok {
			return on("configured")
		}
		return off("not configured")
	}
	fmt.Printf("%s listening on %s\n", color.New(color.Bold).Sprint("certify"), cfg.Addr)
	fmt.Printf("  feedback store: %s\n", state(cfg.StoreConfigured()))
	fmt.Printf("  smtp:           %s\n", state(cfg.SMTPConfigured()))
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes queue and worker gauges from the service.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
