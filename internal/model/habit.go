package model

import "time"

// Frequency tells how often a habit is meant to be performed.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// ScopeKind discriminates personal and shared habits. The database
// stores this as a nullable couple_id column; the repository layer
// translates between the column and this explicit variant so that
// business code never branches on a nil foreign key.
type ScopeKind string

const (
	ScopePersonal ScopeKind = "personal"
	ScopeShared   ScopeKind = "shared"
)

// Scope is the tagged personal/shared variant of a habit.
// IsPrivate is meaningful only for personal habits (a private habit
// is hidden from the partner); CoupleID is set only for shared ones.
type Scope struct {
	Kind      ScopeKind `json:"kind"`
	IsPrivate bool      `json:"is_private,omitempty"`
	CoupleID  string    `json:"couple_id,omitempty"`
}

// Habit is a trackable recurring action owned by exactly one account
// and optionally shared with the owner's couple.
//
// Fields:
//  ID            – uuid primary key.
//  OwnerID       – account that created the habit; only the owner may
//                  update or delete it.
//  Name          – non-empty display name.
//  Description   – optional free text.
//  Frequency     – daily or weekly.
//  FrequencyDays – lowercase weekday names; non-empty exactly when
//                  Frequency is weekly, nil when daily.
//  Scope         – personal/shared variant (see Scope).
//  CreatedAt     – creation timestamp.
type Habit struct {
	ID            string    `json:"id"`             // habits.id
	OwnerID       string    `json:"owner_id"`       // habits.user_id
	Name          string    `json:"name"`           // habits.name
	Description   *string   `json:"description"`    // habits.description (nullable)
	Frequency     Frequency `json:"frequency"`      // habits.frequency
	FrequencyDays []string  `json:"frequency_days"` // habits.frequency_days (nullable JSON)
	Scope         Scope     `json:"scope"`          // habits.couple_id + habits.is_private
	CreatedAt     time.Time `json:"created_at"`     // habits.created_at
}

// Completion records that one account performed one habit on one
// calendar date. The store enforces at most one row per
// (habit, account, date); a duplicate insert is reported to callers
// as "already completed", never as an error.
//
// Fields:
//  ID        – uuid primary key.
//  HabitID   – completed habit.
//  UserID    – account that completed it.
//  Date      – calendar date in YYYY-MM-DD form.
//  CreatedAt – creation timestamp (wall clock, not business data).
type Completion struct {
	ID        string    `json:"id"`              // habit_completions.id
	HabitID   string    `json:"habit_id"`        // habit_completions.habit_id
	UserID    string    `json:"user_id"`         // habit_completions.user_id
	Date      string    `json:"completion_date"` // habit_completions.completion_date
	CreatedAt time.Time `json:"created_at"`      // habit_completions.created_at
}
