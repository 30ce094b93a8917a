package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vanlang-budget/budget-guardian/pkg/model"

	_ "modernc.org/sqlite"
)

// Timestamps are stored as fixed-width UTC text so they sort and compare
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const budgetColumns = `b.id, b.user_id, b.category, b.amount, b.spent, b.month, b.year,
	b.notified_threshold, b.created_at, b.updated_at`

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) CreateUser(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	settings, err := json.Marshal(user.Settings)
	if err != nil {
		return fmt.Errorf("marshal user settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, settings, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, string(settings), formatTime(user.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLite) GetUser(ctx context.Context, id string) (*model.User, error) {
	var (
		u         model.User
		settings  string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, settings, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &settings, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &u.Settings); err != nil {
		return nil, fmt.Errorf("decode user settings: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLite) FindBudgetsForThresholdCheck(ctx context.Context, period model.Period) ([]model.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+budgetColumns+`, u.id, u.name, u.email, u.settings
		 FROM budgets b LEFT JOIN users u ON u.id = b.user_id
		 WHERE b.month = ? AND b.year = ? AND b.notified_threshold < ?
		 ORDER BY b.created_at, b.id`,
		period.Month, period.Year, model.ThresholdExceeded,
	)
	if err != nil {
		return nil, fmt.Errorf("query budgets for threshold check: %w", err)
	}
	defer rows.Close()

	var budgets []model.Budget
	for rows.Next() {
		var (
			ownerID, name, email, settings sql.NullString
		)
		b, err := scanBudget(rows, &ownerID, &name, &email, &settings)
		if err != nil {
			return nil, fmt.Errorf("scan budget row: %w", err)
		}
		if ownerID.Valid {
			owner := &model.User{ID: ownerID.String, Name: name.String, Email: email.String}
			if settings.Valid && settings.String != "" {
				if err := json.Unmarshal([]byte(settings.String), &owner.Settings); err != nil {
					return nil, fmt.Errorf("decode owner settings: %w", err)
				}
			}
			b.Owner = owner
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

func (s *SQLite) SaveBudget(ctx context.Context, budget *model.Budget) error {
	if err := budget.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()

	var stored int
	err := s.db.QueryRowContext(ctx,
		`UPDATE budgets
		 SET notified_threshold = MAX(notified_threshold, ?), updated_at = ?
		 WHERE id = ?
		 RETURNING notified_threshold`,
		budget.NotifiedThreshold, formatTime(now), budget.ID,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("budget %q: %w", budget.ID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("save budget: %w", err)
	}

	budget.NotifiedThreshold = stored
	budget.UpdatedAt = now
	return nil
}

func (s *SQLite) SetBudget(ctx context.Context, budget *model.Budget) error {
	if err := budget.Validate(); err != nil {
		return err
	}
	if budget.ID == "" {
		budget.ID = uuid.New().String()
	}
	now := s.now().UTC()
	if budget.CreatedAt.IsZero() {
		budget.CreatedAt = now
	}
	budget.UpdatedAt = now

	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO budgets (id, user_id, category, amount, spent, month, year, notified_threshold, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, category, month, year) DO UPDATE SET
		   amount = excluded.amount,
		   updated_at = excluded.updated_at
		 RETURNING id, spent, notified_threshold, created_at`,
		budget.ID, budget.UserID, budget.Category, budget.Amount.String(), budget.Spent.String(),
		budget.Month, budget.Year, budget.NotifiedThreshold,
		formatTime(budget.CreatedAt), formatTime(budget.UpdatedAt),
	).Scan(&budget.ID, &budget.Spent, &budget.NotifiedThreshold, &createdAt)
	if err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	budget.CreatedAt, err = parseTime(createdAt)
	return err
}

func (s *SQLite) GetBudget(ctx context.Context, id string) (*model.Budget, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets b WHERE b.id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget %q: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (s *SQLite) ListBudgets(ctx context.Context, filter model.BudgetFilter) ([]model.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets b`
	where, args := buildBudgetWhere(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY b.year DESC, b.month DESC, b.category"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget row: %w", err)
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

func (s *SQLite) AddSpend(ctx context.Context, userID, category string, period model.Period, amount decimal.Decimal) (*model.Budget, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin add spend: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets b
		 WHERE b.user_id = ? AND b.category = ? AND b.month = ? AND b.year = ?`,
		userID, category, period.Month, period.Year,
	)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget %q for %s: %w", category, period, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load budget: %w", err)
	}

	b.Spent = b.Spent.Add(amount)
	if b.Spent.IsNegative() {
		return nil, fmt.Errorf("%w: spent would become %s", model.ErrInvalidBudget, b.Spent)
	}
	b.UpdatedAt = s.now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE budgets SET spent = ?, updated_at = ? WHERE id = ?`,
		b.Spent.String(), formatTime(b.UpdatedAt), b.ID,
	); err != nil {
		return nil, fmt.Errorf("update spent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add spend: %w", err)
	}
	return b, nil
}

func (s *SQLite) CreateNotification(ctx context.Context, n *model.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, title, message, type, ref_id, data, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, string(n.Type), n.RefID,
		string(data), n.Read, formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *SQLite) ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error) {
	query := `SELECT id, user_id, title, message, type, ref_id, data, read, created_at FROM notifications`
	var (
		conditions []string
		args       []any
	)
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.UnreadOnly {
		conditions = append(conditions, "read = 0")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n         model.Notification
			typ       string
			data      string
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &n.RefID,
			&data, &n.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		n.Type = model.NotificationType(typ)
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return nil, fmt.Errorf("decode notification data: %w", err)
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLite) MarkNotificationRead(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification %q: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *SQLite) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE read = 1 AND created_at < ?`, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	return result.RowsAffected()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanBudget reads budgetColumns followed by any extra destinations.
func scanBudget(row rowScanner, extra ...any) (*model.Budget, error) {
	var (
		b                    model.Budget
		createdAt, updatedAt string
	)
	dest := []any{&b.ID, &b.UserID, &b.Category, &b.Amount, &b.Spent, &b.Month, &b.Year,
		&b.NotifiedThreshold, &createdAt, &updatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// buildBudgetWhere constructs a SQL WHERE clause from a BudgetFilter.
func buildBudgetWhere(filter model.BudgetFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "b.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Month != 0 {
		conditions = append(conditions, "b.month = ?")
		args = append(args, filter.Month)
	}
	if filter.Year != 0 {
		conditions = append(conditions, "b.year = ?")
		args = append(args, filter.Year)
	}

	return strings.Join(conditions, " AND "), args
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
