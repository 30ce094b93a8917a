package alerts_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vanlang-budget/budget-guardian/pkg/alerts"
	"github.com/vanlang-budget/budget-guardian/pkg/model"
)

func TestFromNotification(t *testing.T) {
	b := &model.Budget{
		ID:       "b1",
		Category: "Food",
		Amount:   decimal.NewFromInt(1_000_000),
		Spent:    decimal.NewFromInt(1_050_000),
		Month:    5,
		Year:     2024,
		Owner:    &model.User{ID: "u1", Email: "lan@example.com"},
	}
	n := &model.Notification{
		ID:      "n1",
		UserID:  "u1",
		Title:   "Budget exceeded",
		Message: "over",
		Type:    model.NotificationBudgetExceeded,
		RefID:   "b1",
		Data:    model.NotificationData{BudgetID: "b1", PercentUsed: 105, Threshold: 100},
	}

	a := alerts.FromNotification(n, b)
	assert.Equal(t, alerts.AlertExceeded, a.Level)
	assert.Equal(t, "n1", a.NotificationID)
	assert.Equal(t, "lan@example.com", a.UserEmail)
	assert.Equal(t, "05/2024", a.Period)
	assert.Equal(t, 100, a.Threshold)
	assert.InDelta(t, 105.0, a.PercentUsed, 0.001)

	n.Type = model.NotificationBudgetAlert
	b.Owner = nil
	a = alerts.FromNotification(n, b)
	assert.Equal(t, alerts.AlertWarning, a.Level)
	assert.Empty(t, a.UserEmail)
}
