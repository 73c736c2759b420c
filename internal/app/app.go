package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stockmatrix/internal/config"
	"stockmatrix/internal/engine"
	"stockmatrix/internal/infrastructure"
	"stockmatrix/internal/ledger"
	"stockmatrix/internal/middleware"
	handlers "stockmatrix/internal/transport/http"
	"stockmatrix/pkg/contracts"
)

// AppName is the binary name reported in logs.
const AppName = "matrixctl"

// Options are the command-line overrides applied on top of the loaded config.
type Options struct {
	ConfigPath string
	StorePath  string
	Verbose    bool
	// LogOut receives console logs; defaults to stderr so stdout stays
	// free for command output.
	LogOut io.Writer
	// TraceOut receives stdout-exporter spans; defaults to stderr.
	TraceOut io.Writer
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Engine        *engine.Engine
	// Ledger is nil when disabled or when it could not be opened.
	Ledger *ledger.Ledger
	Server *http.Server

	logCloser io.Closer
}

// New loads the configuration and builds the application.
func New(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.StorePath != "" {
		cfg.Store.Path = opts.StorePath
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	return NewWithConfig(cfg, opts)
}

// NewWithConfig builds the application from an already loaded configuration.
func NewWithConfig(cfg *config.Config, opts Options) (*Application, error) {
	if opts.LogOut == nil {
		opts.LogOut = os.Stderr
	}
	if opts.TraceOut == nil {
		opts.TraceOut = os.Stderr
	}

	// Initialize structured logger
	logger, logCloser, err := infrastructure.NewLogger(cfg.Logging, opts.LogOut)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(logger)

	a := &Application{Config: cfg, Logger: logger, logCloser: logCloser}

	// Ensure the data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		a.Close(context.Background())
		return nil, err
	}

	// Initialize OpenTelemetry
	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, opts.TraceOut, logger)
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithTelemetry(providers),
	}
	// The ledger is optional; the engine works without it
	if cfg.Ledger.Enabled {
		l, err := ledger.Open(cfg.Ledger.Path, logger)
		if err != nil {
			logger.Warn("ledger unavailable, continuing without provenance",
				slog.String("path", cfg.Ledger.Path),
				slog.String("error", err.Error()))
		} else {
			a.Ledger = l
			engineOpts = append(engineOpts, engine.WithRecorder(l))
		}
	}
	a.Engine = engine.New(cfg, engineOpts...)

	logger.Debug("application initialized",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("store", cfg.Store.Path),
		slog.Bool("ledger", a.Ledger != nil))
	return a, nil
}

// Handler builds the read-only API router.
func (a *Application) Handler() (http.Handler, error) {
	otelMW, err := middleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry middleware: %w", err)
	}

	opts := handlers.RouterOptions{
		Store:      a.Engine,
		StorePath:  a.Config.Store.Path,
		RateLimit:  a.Config.Server.RateLimit,
		Instrument: otelMW.Handler,
		Metrics:    a.OTelProviders.PrometheusHTTP,
		Logger:     a.Logger,
	}
	if a.Ledger != nil {
		opts.Ledger = a.Ledger
	}
	return handlers.NewRouter(opts), nil
}

// createServer creates the HTTP server
func (a *Application) createServer(h http.Handler) {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      h,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Serve runs the API on ln, or on the configured port when ln is nil,
// until ctx is done, then shuts the server down gracefully.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	h, err := a.Handler()
	if err != nil {
		return err
	}
	a.createServer(h)

	if ln == nil {
		ln, err = net.Listen("tcp", a.Server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
		}
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	a.Logger.InfoContext(ctx, "server started",
		slog.String("address", ln.Addr().String()),
		slog.String("store", a.Config.Store.Path))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// Run serves the API until SIGINT or SIGTERM.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx, nil)
}

// Close flushes telemetry and releases the ledger and log file.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Ledger != nil {
		if err := a.Ledger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
