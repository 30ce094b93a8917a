// Package monitor raises budget threshold notifications.
//
// A run selects the budgets of the current month that have not yet reached
// the 100% watermark and, for each one, emits at most one notification:
// the 80% alert when usage is at or above 80% and nothing has been notified
// yet, otherwise the 100% alert when usage is at or above 100% and only the
// 80% alert has been sent. The watermark only moves forward.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanlang-budget/budget-guardian/internal/metrics"
	"github.com/vanlang-budget/budget-guardian/pkg/alerts"
	"github.com/vanlang-budget/budget-guardian/pkg/messages"
	"github.com/vanlang-budget/budget-guardian/pkg/model"
)

// DefaultTimezone is the zone used to decide the current budget period.
const DefaultTimezone = "Asia/Ho_Chi_Minh"

var (
	warningPct  = decimal.NewFromInt(model.ThresholdWarning)
	exceededPct = decimal.NewFromInt(model.ThresholdExceeded)
)

// ErrCheckRunning is returned when a threshold check is requested while
// another one is still in progress.
var ErrCheckRunning = errors.New("threshold check already running")

// Clock returns the current time.
type Clock func() time.Time

// Store is the persistence the monitor needs.
type Store interface {
	FindBudgetsForThresholdCheck(ctx context.Context, period model.Period) ([]model.Budget, error)
	SaveBudget(ctx context.Context, budget *model.Budget) error
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLocation sets the zone in which the current month is determined.
func WithLocation(loc *time.Location) Option {
	return func(m *Monitor) { m.loc = loc }
}

// Monitor evaluates budgets against the notification thresholds.
type Monitor struct {
	store     Store
	catalog   *messages.Catalog
	notifiers []alerts.Notifier
	logger    *slog.Logger
	clock     Clock
	loc       *time.Location

	running sync.Mutex
}

// New creates a monitor. Notifiers receive every notification after it has
// been stored; they may be nil.
func New(store Store, catalog *messages.Catalog, notifiers []alerts.Notifier, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		store:     store,
		catalog:   catalog,
		notifiers: notifiers,
		logger:    logger.With("component", "monitor"),
		clock:     time.Now,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Period returns the budget period the next run will scan.
func (m *Monitor) Period() model.Period {
	return model.PeriodOf(m.clock().In(m.loc))
}

// RunThresholdCheck scans the current period and returns the number of
// notifications created. The first error aborts the run; budgets already
// notified in the same run keep their new watermark. Only one check runs at
// a time; a concurrent call returns ErrCheckRunning without scanning.
func (m *Monitor) RunThresholdCheck(ctx context.Context) (int, error) {
	if !m.running.TryLock() {
		metrics.ThresholdChecks.WithLabelValues(metrics.ResultSkipped).Inc()
		m.logger.Info("threshold check skipped, previous run still in progress")
		return 0, ErrCheckRunning
	}
	defer m.running.Unlock()

	start := time.Now()
	period := m.Period()

	count, err := m.check(ctx, period)
	metrics.ThresholdCheckDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThresholdChecks.WithLabelValues(metrics.ResultError).Inc()
		m.logger.Error("threshold check failed",
			"period", period.String(),
			"notifications", count,
			"error", err,
		)
		return count, fmt.Errorf("threshold check %s: %w", period, err)
	}

	metrics.ThresholdChecks.WithLabelValues(metrics.ResultSuccess).Inc()
	m.logger.Info("threshold check complete", "period", period.String(), "notifications", count)
	return count, nil
}

func (m *Monitor) check(ctx context.Context, period model.Period) (int, error) {
	budgets, err := m.store.FindBudgetsForThresholdCheck(ctx, period)
	if err != nil {
		return 0, fmt.Errorf("find budgets: %w", err)
	}

	count := 0
	for i := range budgets {
		b := &budgets[i]

		typ, ok := nextNotification(b)
		if !ok {
			continue
		}

		n, err := m.createNotification(ctx, b, typ)
		if err != nil {
			return count, fmt.Errorf("budget %s: %w", b.ID, err)
		}
		count++

		// A failed save leaves the stored notification counted; the next
		// run will raise it again.
		if err := m.advance(ctx, b, n); err != nil {
			return count, fmt.Errorf("budget %s: %w", b.ID, err)
		}

		m.deliver(ctx, n, b)
	}
	return count, nil
}

// nextNotification decides which notification, if any, a budget is due.
// The 80% branch is tested first, so a budget that goes from unnotified to
// over 100% in one period gets the 80% alert now and the 100% alert on the
// following run.
func nextNotification(b *model.Budget) (model.NotificationType, bool) {
	pct := b.PercentUsed()
	switch {
	case pct.GreaterThanOrEqual(warningPct) && b.NotifiedThreshold < model.ThresholdWarning:
		return model.NotificationBudgetAlert, true
	case pct.GreaterThanOrEqual(exceededPct) && b.NotifiedThreshold < model.ThresholdExceeded:
		return model.NotificationBudgetExceeded, true
	default:
		return "", false
	}
}

// createNotification renders and stores the notification a budget is due.
func (m *Monitor) createNotification(ctx context.Context, b *model.Budget, typ model.NotificationType) (*model.Notification, error) {
	locale := ""
	if b.Owner != nil {
		locale = b.Owner.Settings.Language
	}

	title, message, err := m.catalog.Render(locale, typ, messages.BudgetParams(b))
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", typ, err)
	}

	n := &model.Notification{
		UserID:  b.UserID,
		Title:   title,
		Message: message,
		Type:    typ,
		RefID:   b.ID,
		Data: model.NotificationData{
			BudgetID:    b.ID,
			PercentUsed: b.PercentUsed().Round(2).InexactFloat64(),
			Threshold:   typ.Threshold(),
		},
		CreatedAt: m.clock().UTC(),
	}
	if err := m.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(typ)).Inc()
	return n, nil
}

// advance moves the budget watermark to the threshold of n.
func (m *Monitor) advance(ctx context.Context, b *model.Budget, n *model.Notification) error {
	b.NotifiedThreshold = n.Type.Threshold()
	if err := m.store.SaveBudget(ctx, b); err != nil {
		return fmt.Errorf("save budget: %w", err)
	}

	m.logger.Info("budget threshold crossed",
		"budget", b.ID,
		"user", b.UserID,
		"category", b.Category,
		"type", n.Type,
		"percent_used", n.Data.PercentUsed,
	)
	return nil
}

// deliver fans a stored notification out to the notifiers. Failures are
// logged and do not affect the run.
func (m *Monitor) deliver(ctx context.Context, n *model.Notification, b *model.Budget) {
	if len(m.notifiers) == 0 {
		return
	}

	alert := alerts.FromNotification(n, b)
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, alert); err != nil {
			metrics.AlertDeliveries.WithLabelValues(notifier.Name(), metrics.ResultError).Inc()
			m.logger.Error("send alert failed",
				"notifier", notifier.Name(),
				"notification", n.ID,
				"budget", b.ID,
				"error", err,
			)
			continue
		}
		metrics.AlertDeliveries.WithLabelValues(notifier.Name(), metrics.ResultSuccess).Inc()
	}
}
