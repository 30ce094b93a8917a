package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Notification thresholds, in percent of the budgeted amount.
const (
	ThresholdWarning  = 80
	ThresholdExceeded = 100
)

var hundred = decimal.NewFromInt(100)

// UserSettings holds per-user delivery preferences.
type UserSettings struct {
	Language    string `json:"language,omitempty"`
	EmailAlerts bool   `json:"email_alerts"`
	PushAlerts  bool   `json:"push_alerts"`
}

// User is the owner of budgets and the recipient of notifications.
type User struct {
	ID        string       `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Email     string       `json:"email" db:"email"`
	Settings  UserSettings `json:"settings" db:"settings"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// Validate checks the fields required to address a user.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidUser, u.Email)
	}
	return nil
}

// Budget is a monthly spending ceiling for one category of one user.
type Budget struct {
	ID                string          `json:"id" db:"id"`
	UserID            string          `json:"user_id" db:"user_id"`
	Category          string          `json:"category" db:"category"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Spent             decimal.Decimal `json:"spent" db:"spent"`
	Month             int             `json:"month" db:"month"`
	Year              int             `json:"year" db:"year"`
	NotifiedThreshold int             `json:"notified_threshold" db:"notified_threshold"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`

	// Owner is populated by queries that join the user directory.
	Owner *User `json:"owner,omitempty" db:"-"`
}

// PercentUsed returns Spent as a percentage of Amount. A zero amount
// reports zero usage.
func (b *Budget) PercentUsed() decimal.Decimal {
	if !b.Amount.IsPositive() {
		return decimal.Zero
	}
	return b.Spent.Div(b.Amount).Mul(hundred)
}

// Remaining returns Amount minus Spent, which is negative once exceeded.
func (b *Budget) Remaining() decimal.Decimal {
	return b.Amount.Sub(b.Spent)
}

// Period returns the calendar month this budget governs.
func (b *Budget) Period() Period {
	return Period{Month: b.Month, Year: b.Year}
}

// Validate checks the budget invariants enforced at the store boundary.
func (b *Budget) Validate() error {
	switch {
	case b.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidBudget)
	case strings.TrimSpace(b.Category) == "":
		return fmt.Errorf("%w: category is required", ErrInvalidBudget)
	case b.Amount.IsNegative():
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidBudget)
	case b.Spent.IsNegative():
		return fmt.Errorf("%w: spent must not be negative", ErrInvalidBudget)
	case !b.Period().Valid():
		return fmt.Errorf("%w: invalid period %d/%d", ErrInvalidBudget, b.Month, b.Year)
	}
	if !ValidNotifiedThreshold(b.NotifiedThreshold) {
		return fmt.Errorf("%w: invalid notified threshold %d", ErrInvalidBudget, b.NotifiedThreshold)
	}
	return nil
}

// ValidNotifiedThreshold reports whether v is a legal watermark: anything in
// [0, 80) means "not yet notified", otherwise it must be exactly 80 or 100.
func ValidNotifiedThreshold(v int) bool {
	if v >= 0 && v < ThresholdWarning {
		return true
	}
	return v == ThresholdWarning || v == ThresholdExceeded
}

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationBudgetAlert    NotificationType = "budget_alert"
	NotificationBudgetExceeded NotificationType = "budget_exceeded"
)

// Threshold returns the percentage that triggers this notification type.
func (t NotificationType) Threshold() int {
	switch t {
	case NotificationBudgetAlert:
		return ThresholdWarning
	case NotificationBudgetExceeded:
		return ThresholdExceeded
	default:
		return 0
	}
}

// NotificationData is the structured payload attached to budget notifications.
type NotificationData struct {
	BudgetID    string  `json:"budgetId"`
	PercentUsed float64 `json:"percentUsed"`
	Threshold   int     `json:"threshold"`
}

// Notification is an in-app message addressed to a user.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	Type      NotificationType `json:"type" db:"type"`
	RefID     string           `json:"ref_id" db:"ref_id"`
	Data      NotificationData `json:"data" db:"data"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// Validate checks the fields every stored notification must carry.
func (n *Notification) Validate() error {
	switch {
	case n.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidNotification)
	case n.Title == "" || n.Message == "":
		return fmt.Errorf("%w: title and message are required", ErrInvalidNotification)
	case n.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidNotification)
	}
	return nil
}

// Period identifies a calendar month.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// PeriodOf returns the calendar month containing t, in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// Valid reports whether the period is a real month from 2000 onwards.
func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year >= 2000
}

func (p Period) String() string {
	return fmt.Sprintf("%02d/%d", p.Month, p.Year)
}

// BudgetFilter narrows budget listings.
type BudgetFilter struct {
	UserID string `json:"user_id,omitempty"`
	Month  int    `json:"month,omitempty"`
	Year   int    `json:"year,omitempty"`
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	UserID     string `json:"user_id,omitempty"`
	UnreadOnly bool   `json:"unread_only,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}
