package alerts

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vanlang-budget/budget-guardian/pkg/model"
)

// AlertLevel indicates the severity of a budget alert.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"  // Crossed the 80% threshold
	AlertExceeded AlertLevel = "exceeded" // Crossed the 100% threshold
)

// Alert is the delivery form of a stored budget notification.
type Alert struct {
	Level          AlertLevel      `json:"level"`
	NotificationID string          `json:"notification_id"`
	UserID         string          `json:"user_id"`
	UserEmail      string          `json:"user_email,omitempty"`
	BudgetID       string          `json:"budget_id"`
	Category       string          `json:"category"`
	Amount         decimal.Decimal `json:"amount"`
	Spent          decimal.Decimal `json:"spent"`
	PercentUsed    float64         `json:"percent_used"`
	Threshold      int             `json:"threshold"`
	Period         string          `json:"period"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
}

// FromNotification builds an alert for a notification raised on budget.
func FromNotification(n *model.Notification, b *model.Budget) Alert {
	level := AlertWarning
	if n.Type == model.NotificationBudgetExceeded {
		level = AlertExceeded
	}

	a := Alert{
		Level:          level,
		NotificationID: n.ID,
		UserID:         n.UserID,
		BudgetID:       b.ID,
		Category:       b.Category,
		Amount:         b.Amount,
		Spent:          b.Spent,
		PercentUsed:    n.Data.PercentUsed,
		Threshold:      n.Data.Threshold,
		Period:         b.Period().String(),
		Title:          n.Title,
		Message:        n.Message,
	}
	if b.Owner != nil {
		a.UserEmail = b.Owner.Email
	}
	return a
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}
