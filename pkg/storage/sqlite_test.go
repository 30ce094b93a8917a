package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vanlang-budget/budget-guardian/pkg/model"
	"github.com/vanlang-budget/budget-guardian/pkg/storage"
)

func newTestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *storage.SQLite, email string) *model.User {
	t.Helper()
	u := &model.User{
		Name:     "Lan",
		Email:    email,
		Settings: model.UserSettings{Language: "en", PushAlerts: true},
	}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func seedBudget(t *testing.T, db *storage.SQLite, userID, category string, month, year, notified int) *model.Budget {
	t.Helper()
	b := &model.Budget{
		UserID:            userID,
		Category:          category,
		Amount:            decimal.NewFromInt(1_000_000),
		Month:             month,
		Year:              year,
		NotifiedThreshold: notified,
	}
	require.NoError(t, db.SetBudget(context.Background(), b))
	return b
}

func TestSQLite_ReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	u := &model.User{Name: "Lan", Email: "lan@example.com"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	require.NoError(t, db.Close())

	db, err = storage.NewSQLite(dbPath)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lan", got.Name)
}

func TestSQLite_CreateAndGetUser(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "lan@example.com")
	assert.NotEmpty(t, u.ID)

	got, err := db.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "lan@example.com", got.Email)
	assert.Equal(t, "en", got.Settings.Language)
	assert.True(t, got.Settings.PushAlerts)
}

func TestSQLite_GetUser_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLite_CreateUser_Invalid(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateUser(context.Background(), &model.User{Name: "x", Email: "bad"})
	assert.ErrorIs(t, err, model.ErrInvalidUser)
}

func TestSQLite_SetBudget_Upsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "lan@example.com")

	first := seedBudget(t, db, u.ID, "Food", 5, 2024, 0)

	again := &model.Budget{
		UserID:   u.ID,
		Category: "Food",
		Amount:   decimal.NewFromInt(2_000_000),
		Month:    5,
		Year:     2024,
	}
	require.NoError(t, db.SetBudget(ctx, again))
	assert.Equal(t, first.ID, again.ID)

	got, err := db.GetBudget(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(2_000_000)))

	all, err := db.ListBudgets(ctx, model.BudgetFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_SetBudget_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	err := db.SetBudget(context.Background(), &model.Budget{
		UserID:   "ghost",
		Category: "Food",
		Amount:   decimal.NewFromInt(10),
		Month:    5,
		Year:     2024,
	})
	assert.Error(t, err)
}

func TestSQLite_SetBudget_Invalid(t *testing.T) {
	db := newTestDB(t)
	err := db.SetBudget(context.Background(), &model.Budget{UserID: "u", Category: "Food", Month: 0, Year: 2024})
	assert.ErrorIs(t, err, model.ErrInvalidBudget)
}

func TestSQLite_GetBudget_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetBudget(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLite_ListBudgets_Filter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "lan@example.com")
	seedBudget(t, db, u.ID, "Food", 5, 2024, 0)
	seedBudget(t, db, u.ID, "Rent", 5, 2024, 0)
	seedBudget(t, db, u.ID, "Food", 4, 2024, 0)

	may, err := db.ListBudgets(ctx, model.BudgetFilter{Month: 5, Year: 2024})
	require.NoError(t, err)
	assert.Len(t, may, 2)

	all, err := db.ListBudgets(ctx, model.BudgetFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 5, all[0].Month)
	assert.Equal(t, 4, all[2].Month)
}

func TestSQLite_AddSpend(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "lan@example.com")
	b := seedBudget(t, db, u.ID, "Food", 5, 2024, 0)
	period := model.Period{Month: 5, Year: 2024}

	_, err := db.AddSpend(ctx, u.ID, "Food", period, decimal.RequireFromString("500000.50"))
	require.NoError(t, err)
	updated, err := db.AddSpend(ctx, u.ID, "Food", period, decimal.RequireFromString("350000.25"))
	require.NoError(t, err)
	assert.True(t, updated.Spent.Equal(decimal.RequireFromString("850000.75")))

	got, err := db.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Spent.Equal(decimal.RequireFromString("850000.75")))
	assert.Equal(t, 0, got.NotifiedThreshold)
}

func TestSQLite_AddSpend_NotFound(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "lan@example.com")
	_, err := db.AddSpend(context.Background(), u.ID, "Travel", model.Period{Month: 5, Year: 2024}, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLite_AddSpend_RejectsNegativeTotal(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "lan@example.com")
	seedBudget(t, db, u.ID, "Food", 5, 2024, 0)
	_, err := db.AddSpend(context.Background(), u.ID, "Food", model.Period{Month: 5, Year: 2024}, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, model.ErrInvalidBudget)
}

func TestSQLite_FindBudgetsForThresholdCheck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "lan@example.com")

	fresh := seedBudget(t, db, u.ID, "Food", 5, 2024, 0)
	warned := seedBudget(t, db, u.ID, "Rent", 5, 2024, 80)
	seedBudget(t, db, u.ID, "Fun", 5, 2024, 100)
	seedBudget(t, db, u.ID, "Food", 3, 2024, 0)
	seedBudget(t, db, u.ID, "Food", 5, 2023, 0)

	got, err := db.FindBudgetsForThresholdCheck(ctx, model.Period{Month: 5, Year: 2024})
	require.NoError(t, err)
	require.Len(t, got, 2)

	ids := []string{got[0].ID, got[1].ID}
	assert.ElementsMatch(t, []string{fresh.ID, warned.ID}, ids)
	for _, b := range got {
		require.NotNil(t, b.Owner)
		assert.Equal(t, "Lan", b.Owner.Name)
		assert.Equal(t, "lan@example.com", b.Owner.Email)
		assert.Equal(t, "en", b.Owner.Settings.Language)
	}
}

func TestSQLite_SaveBudget_Monotonic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "lan@example.com")
	b := seedBudget(t, db, u.ID, "Food", 5, 2024, 0)

	b.NotifiedThreshold = 80
	require.NoError(t, db.SaveBudget(ctx, b))
	assert.Equal(t, 80, b.NotifiedThreshold)

	b.NotifiedThreshold = 100
	require.NoError(t, db.SaveBudget(ctx, b))

	stale := *b
	stale.NotifiedThreshold = 80
	require.NoError(t, db.SaveBudget(ctx, &stale))
	assert.Equal(t, 100, stale.NotifiedThreshold, "stored watermark must not move back")

	got, err := db.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.NotifiedThreshold)
}

func TestSQLite_SaveBudget_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.SaveBudget(context.Background(), &model.Budget{
		ID: "missing", UserID: "u", Category: "Food", Month: 5, Year: 2024, NotifiedThreshold: 80,
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLite_Notifications(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n := &model.Notification{
		UserID:  "u1",
		Title:   "Budget alert",
		Message: "Food at 85%",
		Type:    model.NotificationBudgetAlert,
		RefID:   "b1",
		Data:    model.NotificationData{BudgetID: "b1", PercentUsed: 85, Threshold: 80},
	}
	require.NoError(t, db.CreateNotification(ctx, n))
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())

	other := &model.Notification{UserID: "u2", Title: "t", Message: "m", Type: model.NotificationBudgetExceeded}
	require.NoError(t, db.CreateNotification(ctx, other))

	list, err := db.ListNotifications(ctx, model.NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationBudgetAlert, list[0].Type)
	assert.Equal(t, "b1", list[0].Data.BudgetID)
	assert.InDelta(t, 85.0, list[0].Data.PercentUsed, 0.001)
	assert.Equal(t, 80, list[0].Data.Threshold)

	require.NoError(t, db.MarkNotificationRead(ctx, n.ID))
	unread, err := db.ListNotifications(ctx, model.NotificationFilter{UserID: "u1", UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.ErrorIs(t, db.MarkNotificationRead(ctx, "missing"), model.ErrNotFound)
}

func TestSQLite_CreateNotification_Invalid(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateNotification(context.Background(), &model.Notification{UserID: "u1"})
	assert.ErrorIs(t, err, model.ErrInvalidNotification)
}

func TestSQLite_ListNotifications_Limit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.CreateNotification(ctx, &model.Notification{
			UserID: "u1", Title: "t", Message: "m", Type: model.NotificationBudgetAlert,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	list, err := db.ListNotifications(ctx, model.NotificationFilter{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, base.Add(4*time.Hour), list[0].CreatedAt)
}

func TestSQLite_DeleteReadNotificationsBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 1, 0, 0, 0, time.UTC)

	oldRead := &model.Notification{UserID: "u1", Title: "t", Message: "m", Type: model.NotificationBudgetAlert,
		Read: true, CreatedAt: now.AddDate(0, 0, -40)}
	oldUnread := &model.Notification{UserID: "u1", Title: "t", Message: "m", Type: model.NotificationBudgetAlert,
		CreatedAt: now.AddDate(0, 0, -40)}
	recentRead := &model.Notification{UserID: "u1", Title: "t", Message: "m", Type: model.NotificationBudgetAlert,
		Read: true, CreatedAt: now.AddDate(0, 0, -5)}
	for _, n := range []*model.Notification{oldRead, oldUnread, recentRead} {
		require.NoError(t, db.CreateNotification(ctx, n))
	}

	deleted, err := db.DeleteReadNotificationsBefore(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	left, err := db.ListNotifications(ctx, model.NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}
