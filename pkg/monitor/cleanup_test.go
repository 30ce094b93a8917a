package monitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanlang-budget/budget-guardian/pkg/model"
	"github.com/vanlang-budget/budget-guardian/pkg/monitor"
)

func TestCleaner_PurgeReadNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	add := func(age time.Duration, read bool) *model.Notification {
		n := &model.Notification{
			UserID:    f.user.ID,
			Title:     "t",
			Message:   "m",
			Type:      model.NotificationBudgetAlert,
			CreatedAt: may2024.Add(-age),
		}
		require.NoError(t, f.store.CreateNotification(ctx, n))
		if read {
			require.NoError(t, f.store.MarkNotificationRead(ctx, n.ID))
		}
		return n
	}

	oldRead := add(45*24*time.Hour, true)
	oldUnread := add(45*24*time.Hour, false)
	recentRead := add(2*24*time.Hour, true)

	c := monitor.NewCleaner(f.store, 0, func() time.Time { return may2024 }, discardLogger())
	deleted, err := c.PurgeReadNotifications(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	ids := map[string]bool{}
	for _, n := range f.notifications() {
		ids[n.ID] = true
	}
	assert.False(t, ids[oldRead.ID])
	assert.True(t, ids[oldUnread.ID])
	assert.True(t, ids[recentRead.ID])

	deleted, err = c.PurgeReadNotifications(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestCleaner_CustomRetention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := &model.Notification{
		UserID:    f.user.ID,
		Title:     "t",
		Message:   "m",
		Type:      model.NotificationBudgetExceeded,
		CreatedAt: may2024.Add(-48 * time.Hour),
	}
	require.NoError(t, f.store.CreateNotification(ctx, n))
	require.NoError(t, f.store.MarkNotificationRead(ctx, n.ID))

	c := monitor.NewCleaner(f.store, 24*time.Hour, func() time.Time { return may2024 }, discardLogger())
	deleted, err := c.PurgeReadNotifications(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

type brokenPurger struct{}

func (brokenPurger) DeleteReadNotificationsBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("no such table")
}

func TestCleaner_Error(t *testing.T) {
	c := monitor.NewCleaner(brokenPurger{}, time.Hour, nil, discardLogger())
	_, err := c.PurgeReadNotifications(context.Background())
	assert.ErrorContains(t, err, "no such table")
}
