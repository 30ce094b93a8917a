package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vanlang-budget/budget-guardian/internal/metrics"
)

// DefaultRetention is how long read notifications are kept.
const DefaultRetention = 30 * 24 * time.Hour

// NotificationPurger deletes read notifications older than a cutoff.
type NotificationPurger interface {
	DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner removes read notifications past their retention period.
type Cleaner struct {
	store     NotificationPurger
	retention time.Duration
	clock     Clock
	logger    *slog.Logger
}

// NewCleaner creates a cleaner. A non-positive retention uses DefaultRetention
// and a nil clock uses time.Now.
func NewCleaner(store NotificationPurger, retention time.Duration, clock Clock, logger *slog.Logger) *Cleaner {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if clock == nil {
		clock = time.Now
	}
	return &Cleaner{
		store:     store,
		retention: retention,
		clock:     clock,
		logger:    logger.With("component", "cleaner"),
	}
}

// PurgeReadNotifications deletes read notifications created before
// now minus the retention period and returns how many were removed.
func (c *Cleaner) PurgeReadNotifications(ctx context.Context) (int64, error) {
	cutoff := c.clock().Add(-c.retention)

	n, err := c.store.DeleteReadNotificationsBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("notification cleanup failed", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("purge read notifications: %w", err)
	}

	metrics.NotificationsPurged.Add(float64(n))
	c.logger.Info("notification cleanup complete", "cutoff", cutoff, "deleted", n)
	return n, nil
}
