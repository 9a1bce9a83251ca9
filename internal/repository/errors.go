// Package repository defines error values reused across multiple
// repositories. These sentinels let handlers map failure scenarios to
// distinct responses: ErrForbidden becomes a 403, the duplicate
// sentinels stay benign. The store's uniqueness constraints are the
// idempotency mechanism for double submissions, so hitting one is
// reported as "already done", never as a hard error.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by someone else.
var ErrForbidden = errors.New("forbidden")

// ErrAlreadyCompleted is returned when a completion insert hits the
// (habit, user, date) uniqueness key. Callers treat it as success.
var ErrAlreadyCompleted = errors.New("already completed today")

// ErrAlreadyMember is returned when a membership insert hits the
// one-membership-per-user uniqueness key. Callers treat it as
// "already connected".
var ErrAlreadyMember = errors.New("already a couple member")

// ErrCoupleFull is returned when a redemption would give a couple a
// third member.
var ErrCoupleFull = errors.New("couple already has two members")

// isDuplicate reports whether err is a MySQL duplicate-key error
// (code 1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
