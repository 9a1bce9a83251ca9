package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/duohabit/duohabit/internal/cache"
	"github.com/duohabit/duohabit/internal/config"
	"github.com/duohabit/duohabit/internal/model"
	"github.com/duohabit/duohabit/internal/repository"
)

// PartnerHandler serves the partner view and the pairing lifecycle:
// generating a connection code, joining by code and disconnecting.
type PartnerHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Couples *repository.CoupleRepo
	Views   *cache.View
}

func NewPartnerHandler(cfg config.Config, u *repository.UserRepo, cp *repository.CoupleRepo, v *cache.View) *PartnerHandler {
	return &PartnerHandler{Cfg: cfg, Users: u, Couples: cp, Views: v}
}

// partnerResp is the partner data view. Partner is null while the
// caller waits for someone to join; Code is the couple's connection
// code, present whenever the caller belongs to a couple.
type partnerResp struct {
	CoupleID string         `json:"couple_id,omitempty"`
	Code     string         `json:"code,omitempty"`
	Partner  *model.Partner `json:"partner"`
}

// GetPartner returns the caller's couple and partner profile. The
// view is cached per user; a vanished partner account degrades to
// "no partner" rather than an error.
func (h *PartnerHandler) GetPartner(c echo.Context) error {
	uid := currentUserID(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	key := cache.NewKey("partner", uid)
	var cached partnerResp
	if _, ok := h.Views.Get(ctx, key, &cached); ok {
		return c.JSON(http.StatusOK, cached)
	}

	resp, err := h.buildPartnerView(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	h.Views.Put(ctx, key, 0, resp)
	return c.JSON(http.StatusOK, resp)
}

func (h *PartnerHandler) buildPartnerView(ctx context.Context, uid string) (partnerResp, error) {
	p, err := resolvePairing(ctx, h.Couples, uid)
	if err != nil {
		return partnerResp{}, err
	}
	if p.CoupleID == "" {
		return partnerResp{}, nil
	}
	resp := partnerResp{CoupleID: p.CoupleID}
	if cp, err := h.Couples.GetByID(ctx, p.CoupleID); err == nil {
		resp.Code = cp.Code
	}
	if p.PartnerID != "" {
		prof, err := h.Users.GetProfile(ctx, p.PartnerID)
		if err == nil {
			resp.Partner = &model.Partner{UserID: prof.ID, Name: prof.Name, CoupleID: p.CoupleID}
		} else if err != sql.ErrNoRows {
			return partnerResp{}, err
		}
	}
	return resp, nil
}

// CreateCode creates a couple with a fresh connection code and makes
// the caller its first member. Calling it again while already in a
// couple is the recovery path: the existing couple's code comes back
// instead of an error, so a client that lost state can re-display it.
func (h *PartnerHandler) CreateCode(c echo.Context) error {
	uid := currentUserID(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if m, err := h.Couples.MembershipForUser(ctx, uid); err == nil {
		cp, err := h.Couples.GetByID(ctx, m.CoupleID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return c.JSON(http.StatusOK, echo.Map{"couple_id": cp.ID, "code": cp.Code})
	} else if err != sql.ErrNoRows {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	cp, err := h.Couples.CreateWithUniqueCode(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create couple failed"})
	}
	if _, err := h.Couples.Redeem(ctx, cp.ID, uid); err != nil {
		// The couple has no members yet; leave nothing orphaned behind.
		_ = h.Couples.Delete(ctx, cp.ID)
		if err == repository.ErrAlreadyMember {
			// Raced a concurrent join on another device; fall back to
			// the membership that won.
			m, merr := h.Couples.MembershipForUser(ctx, uid)
			if merr == nil {
				if existing, gerr := h.Couples.GetByID(ctx, m.CoupleID); gerr == nil {
					return c.JSON(http.StatusOK, echo.Map{"couple_id": existing.ID, "code": existing.Code})
				}
			}
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create membership failed"})
	}

	h.Views.Invalidate(ctx, "partner", uid)
	publishChange(ctx, h.Cfg, "couple_members", "insert", cp.ID, uid)
	return c.JSON(http.StatusCreated, echo.Map{"couple_id": cp.ID, "code": cp.Code})
}

type joinReq struct {
	Code string `json:"code"`
}

// Join connects the caller to the couple behind a connection code.
// Codes are matched case-insensitively with surrounding whitespace
// ignored. Joining a couple the caller already belongs to answers
// with the current pairing instead of failing.
func (h *PartnerHandler) Join(c echo.Context) error {
	uid := currentUserID(c)
	var req joinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	code := repository.NormalizeCode(req.Code)
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// An already-connected caller short-circuits to success before
	// the code is even looked at: redeeming twice is a no-op, not an
	// error, whatever code the retry carried.
	if _, err := h.Couples.MembershipForUser(ctx, uid); err == nil {
		return h.joinedResponse(c, ctx, uid)
	} else if err != sql.ErrNoRows {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	cp, err := h.Couples.GetByCode(ctx, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invalid connection code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if _, err := h.Couples.Redeem(ctx, cp.ID, uid); err != nil {
		switch err {
		case repository.ErrCoupleFull:
			return c.JSON(http.StatusConflict, echo.Map{"error": "couple is full"})
		case repository.ErrAlreadyMember:
			// Raced our own earlier attempt; fall through to the
			// current pairing.
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
		}
	}

	h.Views.Invalidate(ctx, "partner")
	h.Views.Invalidate(ctx, "habits")
	publishChange(ctx, h.Cfg, "couple_members", "insert", cp.ID, uid)
	return h.joinedResponse(c, ctx, uid)
}

func (h *PartnerHandler) joinedResponse(c echo.Context, ctx context.Context, uid string) error {
	resp, err := h.buildPartnerView(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Disconnect removes the caller from their couple. The last member
// leaving dissolves the couple and its code.
func (h *PartnerHandler) Disconnect(c echo.Context) error {
	uid := currentUserID(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.Couples.MembershipForUser(ctx, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not connected"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Couples.RemoveMember(ctx, m.CoupleID, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "disconnect failed"})
	}

	h.Views.Invalidate(ctx, "partner")
	h.Views.Invalidate(ctx, "habits")
	publishChange(ctx, h.Cfg, "couple_members", "delete", m.CoupleID, uid)
	return c.JSON(http.StatusOK, echo.Map{"status": "disconnected"})
}
