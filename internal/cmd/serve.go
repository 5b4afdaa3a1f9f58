package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/contractlens/contractlens/internal/analyze"
	"github.com/contractlens/contractlens/internal/config"
	errwrap "github.com/contractlens/contractlens/internal/errors"
	"github.com/contractlens/contractlens/internal/extract"
	"github.com/contractlens/contractlens/internal/llm"
	"github.com/contractlens/contractlens/internal/observability"
	"github.com/contractlens/contractlens/internal/quota"
	"github.com/contractlens/contractlens/internal/ratelimit"
	"github.com/contractlens/contractlens/internal/server"
	"github.com/contractlens/contractlens/internal/server/handlers"
	"github.com/contractlens/contractlens/internal/stats"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

The server will cleanly shut down the HTTP server and flush logs on shutdown.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
	}

	observability.InitServerLogger(appName, cfg.Logging.Level)

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(appName, cfg.Metrics.Port); err != nil {
			observability.ServerLogger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}
	}

	// Domain packages log through a plain zap core; the gofulmen structured
	// logger stays on the HTTP surface.
	zlog, err := zap.NewProduction()
	if err != nil {
		return errwrap.WrapInternal(cmd.Context(), err, "logger initialization failed")
	}
	defer zlog.Sync() // nolint:errcheck // stderr sync errors are benign

	observability.ServerLogger.Info("Initializing server",
		zap.String("service", appName),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	healthCheckers := map[string]handlers.HealthChecker{}

	var backend stats.Backend
	if cfg.Redis.Addr != "" {
		redisBackend, err := stats.NewRedis(stats.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// The in-memory fallback keeps counters alive for this process.
			observability.ServerLogger.Warn("Redis unavailable, stats are in-memory only",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			backend = redisBackend
			healthCheckers["redis"] = handlers.HealthCheckerFunc(redisBackend.Ping)
			defer redisBackend.Close() // nolint:errcheck // best-effort cleanup
		}
	}

	if cfg.Metrics.Enabled {
		healthCheckers["telemetry"] = handlers.HealthCheckerFunc(func(ctx context.Context) error {
			if observability.TelemetrySystem == nil {
				return errwrap.NewInternalError("telemetry system not initialized")
			}
			return nil
		})
	}

	store := stats.New(backend, time.Duration(cfg.Stats.RetentionDays)*24*time.Hour, zlog)

	var driver llm.Driver
	if cfg.LLM.APIKey != "" {
		client := llm.NewOpenAI(cfg.LLM.BaseURL, cfg.LLM.APIKey)
		client.Timeout = cfg.LLM.Timeout
		driver = client
	} else {
		observability.ServerLogger.Warn("No model API key configured, serving mock analyses")
	}

	pipeline := extract.NewPipeline(extract.Config{
		MaxOCRPages:  cfg.Extract.MaxOCRPages,
		OCRScale:     cfg.Extract.OCRScale,
		OCRLanguages: cfg.Extract.OCRLanguages,
	}, extract.Tesseract{}, zlog)

	analyzer := &analyze.Analyzer{
		Quota: &quota.Tracker{
			Window: cfg.Quota.Window,
			Secret: cfg.Quota.Secret,
		},
		Pipeline:      pipeline,
		Driver:        driver,
		Stats:         store,
		Model:         cfg.LLM.Model,
		MaxModelChars: cfg.LLM.MaxChars,
		Logger:        zlog,
	}

	limiter := ratelimit.New()
	limiter.StartEviction(cmd.Context(), time.Minute)

	host := cfg.Server.Host
	if serverHost != "" {
		host = serverHost
	}
	port := cfg.Server.Port
	if serverPort != 0 {
		port = serverPort
	}

	srv := server.New(server.Options{
		Host:           host,
		Port:           port,
		Analyzer:       analyzer,
		Stats:          store,
		Limiter:        limiter,
		AdminPassword:  cfg.Admin.Password,
		QuotaWindow:    cfg.Quota.Window,
		LoginLimit:     cfg.RateLimit.LoginLimit,
		LoginWindow:    cfg.RateLimit.LoginWindow,
		RollupDays:     cfg.Stats.RollupDays,
		Version:        versionInfo.Version,
		HealthCheckers: healthCheckers,
	})

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}

	// Graceful shutdown handlers run LIFO: server drain first, log flush last.
	signals.OnShutdown(func(ctx context.Context) error {
		observability.ServerLogger.Info("Flushing logger...")
		if err := observability.ServerLogger.Sync(); err != nil {
			observability.ServerLogger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		observability.ServerLogger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}

		observability.ServerLogger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				observability.ServerLogger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			observability.ServerLogger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()), zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}

		observability.ServerLogger.Info("Configuration reloaded successfully",
			zap.String("file", viper.ConfigFileUsed()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		observability.ServerLogger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		observability.ServerLogger.Info("Starting HTTP server...",
			zap.String("host", host),
			zap.Int("port", port))
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	go func() {
		if err := signals.Listen(cmd.Context()); err != nil {
			observability.ServerLogger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return errwrap.WrapInternal(cmd.Context(), err, "server error")
	}

	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "server port (overrides config)")
}
