package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/duohabit/duohabit/internal/model"
)

// HabitRepo reads and writes the habits table. Visibility is a WHERE
// clause here rather than a separate policy engine: a habit is
// visible to a user when they own it, when it is shared with their
// couple, or when the partner owns it and has not marked it private.
type HabitRepo struct{ DB *sql.DB }

func NewHabitRepo(db *sql.DB) *HabitRepo { return &HabitRepo{DB: db} }

const habitColumns = "id, user_id, couple_id, name, is_private, frequency, frequency_days, description, created_at"

// scanHabit maps a row onto the domain type, translating the nullable
// couple_id column and is_private flag into the explicit
// personal/shared scope variant.
func scanHabit(scan func(dest ...any) error) (model.Habit, error) {
	var (
		h         model.Habit
		coupleID  sql.NullString
		isPrivate bool
		freqDays  []byte
		desc      sql.NullString
	)
	err := scan(&h.ID, &h.OwnerID, &coupleID, &h.Name, &isPrivate,
		&h.Frequency, &freqDays, &desc, &h.CreatedAt)
	if err != nil {
		return model.Habit{}, err
	}
	if coupleID.Valid && coupleID.String != "" {
		h.Scope = model.Scope{Kind: model.ScopeShared, CoupleID: coupleID.String}
	} else {
		h.Scope = model.Scope{Kind: model.ScopePersonal, IsPrivate: isPrivate}
	}
	if desc.Valid {
		d := desc.String
		h.Description = &d
	}
	if len(freqDays) > 0 {
		if err := json.Unmarshal(freqDays, &h.FrequencyDays); err != nil {
			return model.Habit{}, err
		}
	}
	return h, nil
}

// scopeColumns translates the domain scope back to the column pair.
func scopeColumns(s model.Scope) (coupleID any, isPrivate bool) {
	if s.Kind == model.ScopeShared {
		return s.CoupleID, false
	}
	return nil, s.IsPrivate
}

// ListVisible returns all habits the user may see, oldest first.
// partnerID and coupleID may be empty when the user is unpaired; the
// corresponding clauses then match nothing.
func (r *HabitRepo) ListVisible(ctx context.Context, userID, partnerID, coupleID string) ([]model.Habit, error) {
	const q = `SELECT ` + habitColumns + ` FROM habits
	           WHERE user_id = ?
	              OR (couple_id IS NOT NULL AND couple_id = ?)
	              OR (user_id = ? AND couple_id IS NULL AND is_private = 0)
	           ORDER BY created_at, id`
	rows, err := r.DB.QueryContext(ctx, q, userID, coupleID, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	habits := make([]model.Habit, 0)
	for rows.Next() {
		h, err := scanHabit(rows.Scan)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// GetVisible fetches one habit with the same visibility rule as
// ListVisible. A hidden habit is indistinguishable from a missing
// one: both return sql.ErrNoRows.
func (r *HabitRepo) GetVisible(ctx context.Context, habitID, userID, partnerID, coupleID string) (model.Habit, error) {
	const q = `SELECT ` + habitColumns + ` FROM habits
	           WHERE id = ?
	             AND (user_id = ?
	              OR (couple_id IS NOT NULL AND couple_id = ?)
	              OR (user_id = ? AND couple_id IS NULL AND is_private = 0))
	           LIMIT 1`
	return scanHabit(r.DB.QueryRowContext(ctx, q, habitID, userID, coupleID, partnerID).Scan)
}

// GetByID fetches a habit without a visibility filter. Mutation
// handlers use it to distinguish "not found" from "not yours".
func (r *HabitRepo) GetByID(ctx context.Context, habitID string) (model.Habit, error) {
	const q = `SELECT ` + habitColumns + ` FROM habits WHERE id = ? LIMIT 1`
	return scanHabit(r.DB.QueryRowContext(ctx, q, habitID).Scan)
}

// Create inserts a habit owned by userID and returns its id. The
// caller validates the name/frequency/day-set invariants first.
func (r *HabitRepo) Create(ctx context.Context, userID string, h model.Habit) (string, error) {
	id := uuid.NewString()
	coupleID, isPrivate := scopeColumns(h.Scope)
	days, err := marshalDays(h.FrequencyDays)
	if err != nil {
		return "", err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO habits (id, user_id, couple_id, name, is_private, frequency, frequency_days, description)
		 VALUES (?,?,?,?,?,?,?,?)`,
		id, userID, coupleID, h.Name, isPrivate, h.Frequency, days, h.Description)
	if err != nil {
		return "", err
	}
	return id, nil
}

// HabitUpdate carries the mutable fields of a habit; nil pointers are
// left untouched. ClearDescription wipes the description instead of
// ignoring it, since *string cannot express "set to null".
type HabitUpdate struct {
	Name             *string
	IsPrivate        *bool
	Description      *string
	ClearDescription bool
	Frequency        *model.Frequency
	FrequencyDays    *[]string
}

// Update applies a partial update to a habit owned by userID. The
// WHERE clause enforces ownership; zero affected rows with an
// existing habit means someone else owns it.
func (r *HabitRepo) Update(ctx context.Context, habitID, userID string, u HabitUpdate) error {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if u.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *u.Name)
	}
	if u.IsPrivate != nil {
		sets = append(sets, "is_private=?")
		args = append(args, *u.IsPrivate)
	}
	if u.ClearDescription {
		sets = append(sets, "description=NULL")
	} else if u.Description != nil {
		sets = append(sets, "description=?")
		args = append(args, *u.Description)
	}
	if u.Frequency != nil {
		sets = append(sets, "frequency=?")
		args = append(args, *u.Frequency)
	}
	if u.FrequencyDays != nil {
		days, err := marshalDays(*u.FrequencyDays)
		if err != nil {
			return err
		}
		sets = append(sets, "frequency_days=?")
		args = append(args, days)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, habitID, userID)
	// RowsAffected is not checked here: MySQL reports zero changed
	// rows for a value-identical update, so the handler verifies
	// ownership on the fetched row before calling Update.
	_, err := r.DB.ExecContext(ctx,
		"UPDATE habits SET "+strings.Join(sets, ", ")+" WHERE id=? AND user_id=?",
		args...)
	return err
}

// Delete removes a habit owned by userID. Completions cascade via the
// habit_completions foreign key.
func (r *HabitRepo) Delete(ctx context.Context, habitID, userID string) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM habits WHERE id=? AND user_id=?", habitID, userID)
	if err != nil {
		return err
	}
	return r.checkOwnedWrite(ctx, res, habitID)
}

// checkOwnedWrite resolves a zero-row owned mutation into either
// "missing" or "not yours".
func (r *HabitRepo) checkOwnedWrite(ctx context.Context, res sql.Result, habitID string) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var owner string
	err = r.DB.QueryRowContext(ctx,
		"SELECT user_id FROM habits WHERE id=? LIMIT 1", habitID).Scan(&owner)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return err
	}
	return ErrForbidden
}

// marshalDays encodes a day-set for the JSON column; an empty set
// stores NULL, matching the daily-habit invariant.
func marshalDays(days []string) (any, error) {
	if len(days) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(days)
	if err != nil {
		return nil, err
	}
	return b, nil
}
