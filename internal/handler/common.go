package handler

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/duohabit/duohabit/internal/config"
	"github.com/duohabit/duohabit/internal/derive"
	"github.com/duohabit/duohabit/internal/queue"
	"github.com/duohabit/duohabit/internal/repository"
	queue_publisher "github.com/duohabit/duohabit/internal/service"
)

var (
	errIssueAccess  = errors.New("issue access failed")
	errIssueRefresh = errors.New("issue refresh failed")
	errSaveRefresh  = errors.New("save refresh failed")
)

// currentUserID reads the authenticated account id placed into the
// context by the JWT middleware.
func currentUserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}

// pairing is the caller's couple context. CoupleID is empty when the
// account is unpaired; PartnerID is empty when the caller is alone in
// the couple (code generated, partner not joined yet).
type pairing struct {
	CoupleID  string
	PartnerID string
}

// resolvePairing loads the caller's membership and, if any, the other
// member. An unpaired account yields the zero pairing, not an error.
func resolvePairing(ctx context.Context, couples *repository.CoupleRepo, userID string) (pairing, error) {
	m, err := couples.MembershipForUser(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return pairing{}, nil
		}
		return pairing{}, err
	}
	p := pairing{CoupleID: m.CoupleID}
	other, err := couples.OtherMember(ctx, m.CoupleID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return p, nil
		}
		return pairing{}, err
	}
	p.PartnerID = other.UserID
	return p, nil
}

// requestDate resolves the optional date query parameter. Missing
// means "today" in server UTC; a malformed value is reported so a
// client bug cannot silently toggle the wrong day.
func requestDate(c echo.Context) (string, error) {
	d := c.QueryParam("date")
	if d == "" {
		return derive.DateString(time.Now().UTC()), nil
	}
	if _, err := derive.ParseDate(d); err != nil {
		return "", err
	}
	return d, nil
}

// publishChange emits a row-change event for the background
// invalidator. Publishing is best effort: failures are logged by the
// publisher and never fail the request. A missing broker URL disables
// publishing entirely.
func publishChange(ctx context.Context, cfg config.Config, table, action, rowID string, userIDs ...string) {
	if cfg.AMQPURL == "" {
		return
	}
	_ = queue_publisher.PublishRowChange(ctx, queue.RowChangeEvent{
		Table:   table,
		Action:  action,
		RowID:   rowID,
		UserIDs: userIDs,
	})
}
