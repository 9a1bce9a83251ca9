package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duohabit/duohabit/internal/model"
)

// dateLayout renders DATE columns back to the YYYY-MM-DD strings the
// rest of the service speaks. The driver parses them into time.Time
// because the DSN sets parseTime.
const dateLayout = "2006-01-02"

// CompletionRepo reads and writes habit_completions. The table's
// UNIQUE(habit_id, user_id, completion_date) key is the idempotency
// guard for double-tapping "complete": the second insert maps to
// ErrAlreadyCompleted and the handler answers as if it succeeded.
type CompletionRepo struct{ DB *sql.DB }

func NewCompletionRepo(db *sql.DB) *CompletionRepo { return &CompletionRepo{DB: db} }

// Create inserts a completion for (habit, user, date) and returns its
// id. date is a YYYY-MM-DD string.
func (r *CompletionRepo) Create(ctx context.Context, habitID, userID, date string) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO habit_completions (id, habit_id, user_id, completion_date) VALUES (?,?,?,?)",
		id, habitID, userID, date)
	if err != nil {
		if isDuplicate(err) {
			return "", ErrAlreadyCompleted
		}
		return "", err
	}
	return id, nil
}

// FindForDay returns the user's completion of a habit on a date, or
// sql.ErrNoRows. Used to recover the existing row id after a
// duplicate insert so the response still carries a completion id.
func (r *CompletionRepo) FindForDay(ctx context.Context, habitID, userID, date string) (model.Completion, error) {
	var (
		c   model.Completion
		day time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, habit_id, user_id, completion_date, created_at
		 FROM habit_completions
		 WHERE habit_id=? AND user_id=? AND completion_date=? LIMIT 1`,
		habitID, userID, date).Scan(&c.ID, &c.HabitID, &c.UserID, &day, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	c.Date = day.Format(dateLayout)
	return c, nil
}

// GetByID fetches one completion row, or sql.ErrNoRows. The toggle
// handler reads it before deleting so the cached list for the row's
// own date, not the request's, gets patched.
func (r *CompletionRepo) GetByID(ctx context.Context, completionID string) (model.Completion, error) {
	var (
		c   model.Completion
		day time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, habit_id, user_id, completion_date, created_at
		 FROM habit_completions WHERE id=? LIMIT 1`,
		completionID).Scan(&c.ID, &c.HabitID, &c.UserID, &day, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	c.Date = day.Format(dateLayout)
	return c, nil
}

// ListForDate bulk-fetches the given accounts' completions of the
// given habits on one date. Both id slices feed IN clauses; empty
// input returns an empty slice without querying.
func (r *CompletionRepo) ListForDate(ctx context.Context, habitIDs, userIDs []string, date string) ([]model.Completion, error) {
	if len(habitIDs) == 0 || len(userIDs) == 0 {
		return []model.Completion{}, nil
	}
	q := `SELECT id, habit_id, user_id, completion_date, created_at
	      FROM habit_completions
	      WHERE completion_date = ?
	        AND habit_id IN (` + placeholders(len(habitIDs)) + `)
	        AND user_id IN (` + placeholders(len(userIDs)) + `)`
	args := make([]any, 0, 1+len(habitIDs)+len(userIDs))
	args = append(args, date)
	for _, id := range habitIDs {
		args = append(args, id)
	}
	for _, id := range userIDs {
		args = append(args, id)
	}
	return r.queryCompletions(ctx, q, args...)
}

// ListForHabit returns every completion of a habit by any account,
// oldest first. Feeds the detail view's calendar and streak walks.
func (r *CompletionRepo) ListForHabit(ctx context.Context, habitID string) ([]model.Completion, error) {
	const q = `SELECT id, habit_id, user_id, completion_date, created_at
	           FROM habit_completions
	           WHERE habit_id = ?
	           ORDER BY completion_date, created_at`
	return r.queryCompletions(ctx, q, habitID)
}

// Delete removes one completion owned by userID. The ownership clause
// means an account can never delete its partner's completion; trying
// resolves to ErrForbidden.
func (r *CompletionRepo) Delete(ctx context.Context, completionID, userID string) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM habit_completions WHERE id=? AND user_id=?", completionID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var owner string
	err = r.DB.QueryRowContext(ctx,
		"SELECT user_id FROM habit_completions WHERE id=? LIMIT 1", completionID).Scan(&owner)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return err
	}
	return ErrForbidden
}

func (r *CompletionRepo) queryCompletions(ctx context.Context, q string, args ...any) ([]model.Completion, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comps := make([]model.Completion, 0)
	for rows.Next() {
		var (
			c   model.Completion
			day time.Time
		)
		if err := rows.Scan(&c.ID, &c.HabitID, &c.UserID, &day, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Date = day.Format(dateLayout)
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

// placeholders builds "?,?,...,?" for an IN clause.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
