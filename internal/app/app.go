// Package app wires configuration, storage, the monitor and its delivery
// channels into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanlang-budget/budget-guardian/internal/config"
	"github.com/vanlang-budget/budget-guardian/internal/server"
	"github.com/vanlang-budget/budget-guardian/pkg/alerts"
	"github.com/vanlang-budget/budget-guardian/pkg/messages"
	"github.com/vanlang-budget/budget-guardian/pkg/monitor"
	"github.com/vanlang-budget/budget-guardian/pkg/scheduler"
	"github.com/vanlang-budget/budget-guardian/pkg/storage"
)

// Scheduled job names.
const (
	JobThresholdCheck = "threshold_check"
	JobCleanup        = "notification_cleanup"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired components of the service.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     storage.Storage
	Catalog   *messages.Catalog
	Notifiers []alerts.Notifier
	Monitor   *monitor.Monitor
	Cleaner   *monitor.Cleaner

	closers []func() error
}

// New validates cfg and builds every component. Close releases them.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	catalog, err := messages.LoadFile(cfg.Messages.File)
	if err != nil {
		return nil, err
	}
	if cfg.Messages.DefaultLocale != "" {
		if err := catalog.SetDefault(cfg.Messages.DefaultLocale); err != nil {
			return nil, fmt.Errorf("messages.default_locale: %w", err)
		}
	}

	a := &App{Config: cfg, Logger: logger, Catalog: catalog}

	notifiers, err := a.initNotifiers()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Notifiers = notifiers

	store, err := storage.NewSQLite(cfg.Storage.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.Monitor = monitor.New(store, catalog, notifiers, logger, monitor.WithLocation(loc))
	a.Cleaner = monitor.NewCleaner(store, cfg.NotificationRetention(), nil, logger)
	return a, nil
}

// initNotifiers creates alert notifiers from config.
func (a *App) initNotifiers() ([]alerts.Notifier, error) {
	cfg := a.Config.Alerts
	var notifiers []alerts.Notifier

	if cfg.Slack.Enabled && cfg.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(cfg.Slack.WebhookURL, cfg.Slack.Channel))
	}

	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Secret))
	}

	if cfg.AMQP.Enabled {
		n, err := alerts.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
		if err != nil {
			return nil, fmt.Errorf("init amqp notifier: %w", err)
		}
		a.closers = append(a.closers, n.Close)
		notifiers = append(notifiers, n)
	}

	return notifiers, nil
}

// Scheduler registers the periodic jobs on a new scheduler.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}

	s := scheduler.New(loc, a.Config.JobTimeout(), a.Logger)
	if err := s.Add(JobThresholdCheck, a.Config.Schedule.ThresholdCheck, func(ctx context.Context) error {
		_, err := a.Monitor.RunThresholdCheck(ctx)
		if errors.Is(err, monitor.ErrCheckRunning) {
			return nil
		}
		return err
	}); err != nil {
		return nil, err
	}
	if err := s.Add(JobCleanup, a.Config.Schedule.Cleanup, func(ctx context.Context) error {
		_, err := a.Cleaner.PurgeReadNotifications(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if a.Config.Schedule.RunOnStart {
		s.RunOnStart(JobThresholdCheck)
	}
	return s, nil
}

// HTTPServer returns the API server configured from server.*.
func (a *App) HTTPServer() *http.Server {
	api := server.NewServer(a.Monitor, a.Store, a.Logger)
	return &http.Server{
		Addr:         a.Config.Server.Listen,
		Handler:      api.Handler(),
		ReadTimeout:  a.Config.ReadTimeout(),
		WriteTimeout: a.Config.WriteTimeout(),
	}
}

// Serve runs the HTTP API and, when enabled, the scheduler until ctx is
// cancelled or either of them fails.
func (a *App) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.Config.Schedule.Enabled {
		s, err := a.Scheduler()
		if err != nil {
			return err
		}
		g.Go(func() error { return s.Run(ctx) })
	} else {
		a.Logger.Info("scheduled jobs disabled")
	}

	srv := a.HTTPServer()
	g.Go(func() error {
		a.Logger.Info("guardian started", "listen", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases storage and broker connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger creates a structured logger from config.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}
