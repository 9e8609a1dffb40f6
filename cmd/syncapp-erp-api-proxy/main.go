package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"syncapp-erp-proxy/internal/client"
	"syncapp-erp-proxy/internal/codec"
	"syncapp-erp-proxy/internal/config"
	"syncapp-erp-proxy/internal/handler"
	"syncapp-erp-proxy/internal/metrics"
	"syncapp-erp-proxy/internal/middleware"
	"syncapp-erp-proxy/internal/policy"
	"syncapp-erp-proxy/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("syncapp-erp-api-proxy"),
		kong.Description("Restricted forwarding proxy for ERP API calls from browser tools."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			(*config.Config).Origins,
			newLogger,
			newEcho,
			metrics.New,
			policy.DefaultTargetValidator,
			fx.Annotate(client.NewForwarder, fx.As(new(service.Doer))),
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfig, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h).With("service", "syncapp-erp-api-proxy")
}

func newEcho(cfg *config.Config, origins *policy.Origins, m *metrics.Metrics, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = codec.Serializer{}
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	e.Server.ReadTimeout = 30 * time.Second
	// Forwarded calls run as long as the caller's timeoutMs allows, so the
	// write side is left unbounded.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	if cfg.Metrics.Enabled {
		e.Use(middleware.RequestMetrics(m))
	}
	e.Use(middleware.ResponseHardening())
	e.Use(middleware.OriginPolicy(origins))

	if cfg.Server.RateLimit.Enabled {
		e.Use(middleware.RateLimit(cfg.Server.RateLimit))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func warnConfig(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
	cfg.WarnOrigins(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, origins *policy.Origins, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}

			base := "http://" + ln.Addr().String()
			allowed := "* (dev mode)"
			if origins.Enabled() {
				allowed = strings.Join(origins.List(), ", ")
			}
			logger.Info("starting server",
				"addr", ln.Addr().String(),
				"proxy_url", base+"/proxy",
				"health_url", base+"/health",
				"allowed_origins", allowed,
				"config", cfg.FilePath(),
			)

			if err := cfg.WriteBaseURL(ln.Addr()); err != nil {
				_ = ln.Close()
				return err
			}

			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
