package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/duohabit/duohabit/internal/model"
)

// CoupleRepo manages couples and couple_members. The couples.code
// column carries a unique index, couple_members.user_id a unique
// index (one membership per account); both are load-bearing for the
// pairing flow's idempotency.
type CoupleRepo struct{ DB *sql.DB }

func NewCoupleRepo(db *sql.DB) *CoupleRepo { return &CoupleRepo{DB: db} }

// codeAlphabet excludes 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed length of couple join codes.
const CodeLength = 6

// NormalizeCode canonicalizes user input before lookup: codes are
// case-insensitive and whitespace around them is ignored.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randomCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// CreateWithUniqueCode inserts a couple with a fresh random code,
// retrying on a code collision. This is the atomic
// couple-with-unique-code procedure that pairing code generation
// relies on; membership insertion is a separate step so a failed
// membership can delete the orphaned couple again.
func (r *CoupleRepo) CreateWithUniqueCode(ctx context.Context) (model.Couple, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomCode()
		if err != nil {
			return model.Couple{}, err
		}
		id := uuid.NewString()
		_, err = r.DB.ExecContext(ctx,
			"INSERT INTO couples (id, code) VALUES (?,?)", id, code)
		if err != nil {
			if isDuplicate(err) {
				continue // code collision, roll again
			}
			return model.Couple{}, err
		}
		return model.Couple{ID: id, Code: code}, nil
	}
	return model.Couple{}, errors.New("could not generate a unique couple code")
}

// GetByCode fetches a couple by its normalized join code.
func (r *CoupleRepo) GetByCode(ctx context.Context, code string) (model.Couple, error) {
	var c model.Couple
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, code, created_at FROM couples WHERE code=? LIMIT 1",
		NormalizeCode(code)).Scan(&c.ID, &c.Code, &c.CreatedAt)
	return c, err
}

// GetByID fetches a couple by id.
func (r *CoupleRepo) GetByID(ctx context.Context, id string) (model.Couple, error) {
	var c model.Couple
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, code, created_at FROM couples WHERE id=? LIMIT 1",
		id).Scan(&c.ID, &c.Code, &c.CreatedAt)
	return c, err
}

// Delete removes a couple row. Used as compensating cleanup when the
// generating user's own membership insert fails and the couple would
// otherwise be orphaned.
func (r *CoupleRepo) Delete(ctx context.Context, coupleID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM couples WHERE id=?", coupleID)
	return err
}

// MembershipForUser returns the user's membership, or sql.ErrNoRows
// when the account is not paired.
func (r *CoupleRepo) MembershipForUser(ctx context.Context, userID string) (model.Membership, error) {
	var m model.Membership
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, couple_id, user_id, created_at FROM couple_members WHERE user_id=? LIMIT 1",
		userID).Scan(&m.ID, &m.CoupleID, &m.UserID, &m.CreatedAt)
	return m, err
}

// OtherMember returns the membership of the couple's other account,
// or sql.ErrNoRows when the user is alone in the couple.
func (r *CoupleRepo) OtherMember(ctx context.Context, coupleID, userID string) (model.Membership, error) {
	var m model.Membership
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, couple_id, user_id, created_at FROM couple_members WHERE couple_id=? AND user_id<>? LIMIT 1",
		coupleID, userID).Scan(&m.ID, &m.CoupleID, &m.UserID, &m.CreatedAt)
	return m, err
}

// MemberCount counts the couple's memberships.
func (r *CoupleRepo) MemberCount(ctx context.Context, coupleID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM couple_members WHERE couple_id=?", coupleID).Scan(&n)
	return n, err
}

// Redeem adds userID to the couple, enforcing the two-member cap.
// The couple row is locked for the duration of the transaction, so
// two concurrent redemptions of the same code serialize and the
// second one sees the first one's membership when it counts. A full
// couple maps to ErrCoupleFull, a duplicate membership for the user
// to ErrAlreadyMember; both are decided inside the same transaction.
func (r *CoupleRepo) Redeem(ctx context.Context, coupleID, userID string) (string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM couples WHERE id=? FOR UPDATE", coupleID).Scan(&locked); err != nil {
		return "", err
	}
	var n int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM couple_members WHERE couple_id=?", coupleID).Scan(&n); err != nil {
		return "", err
	}
	if n >= 2 {
		return "", ErrCoupleFull
	}
	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO couple_members (id, couple_id, user_id) VALUES (?,?,?)",
		id, coupleID, userID); err != nil {
		if isDuplicate(err) {
			return "", ErrAlreadyMember
		}
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// RemoveMember deletes the user's membership in the couple and, when
// that was the last membership, the couple itself. Both steps run in
// one transaction so a disconnect can never leave a memberless couple
// behind.
func (r *CoupleRepo) RemoveMember(ctx context.Context, coupleID, userID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM couple_members WHERE couple_id=? AND user_id=?", coupleID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	var remaining int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM couple_members WHERE couple_id=?", coupleID).Scan(&remaining); err != nil {
		return err
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM couples WHERE id=?", coupleID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
