package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vanlang-budget/budget-guardian/pkg/model"
)

// BudgetStore persists budgets.
type BudgetStore interface {
	// FindBudgetsForThresholdCheck returns the budgets of the given period
	// whose notified threshold is still below 100, each with Owner populated.
	FindBudgetsForThresholdCheck(ctx context.Context, period model.Period) ([]model.Budget, error)

	// SaveBudget persists the notified threshold of an existing budget. The
	// stored watermark never decreases; budget.NotifiedThreshold is refreshed
	// from the stored value.
	SaveBudget(ctx context.Context, budget *model.Budget) error

	// SetBudget creates a budget or updates the amount of the existing one
	// with the same user, category and period.
	SetBudget(ctx context.Context, budget *model.Budget) error

	// GetBudget retrieves a budget by id.
	GetBudget(ctx context.Context, id string) (*model.Budget, error)

	// ListBudgets returns budgets matching the filter, newest period first.
	ListBudgets(ctx context.Context, filter model.BudgetFilter) ([]model.Budget, error)

	// AddSpend adds amount to the spent total of a budget.
	AddSpend(ctx context.Context, userID, category string, period model.Period, amount decimal.Decimal) (*model.Budget, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	// CreateNotification appends a notification.
	CreateNotification(ctx context.Context, n *model.Notification) error

	// ListNotifications returns notifications matching the filter, newest first.
	ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error)

	// MarkNotificationRead flags a notification as read.
	MarkNotificationRead(ctx context.Context, id string) error

	// DeleteReadNotificationsBefore removes read notifications created before cutoff.
	DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserDirectory resolves budget owners.
type UserDirectory interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// Storage is the full persistence layer.
type Storage interface {
	BudgetStore
	NotificationStore
	UserDirectory

	// Close releases resources.
	Close() error
}
