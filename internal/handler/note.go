package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/duohabit/duohabit/internal/cache"
	"github.com/duohabit/duohabit/internal/config"
	"github.com/duohabit/duohabit/internal/model"
	"github.com/duohabit/duohabit/internal/repository"
)

// maxNoteRunes bounds note content; notes are meant to be one-liners.
const maxNoteRunes = 100

// NoteHandler serves the short notes members leave for each other.
type NoteHandler struct {
	Cfg     config.Config
	Notes   *repository.NoteRepo
	Couples *repository.CoupleRepo
	Views   *cache.View
}

func NewNoteHandler(cfg config.Config, n *repository.NoteRepo, cp *repository.CoupleRepo, v *cache.View) *NoteHandler {
	return &NoteHandler{Cfg: cfg, Notes: n, Couples: cp, Views: v}
}

type latestNoteResp struct {
	Note *model.Note `json:"note"`
}

// Latest returns the newest note the caller received from their
// partner, or a null note. No partner means no query at all.
func (h *NoteHandler) Latest(c echo.Context) error {
	uid := currentUserID(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := resolvePairing(ctx, h.Couples, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if p.PartnerID == "" {
		return c.JSON(http.StatusOK, latestNoteResp{})
	}

	key := cache.NewKey("notes", "latest", uid, p.PartnerID)
	var cached latestNoteResp
	if _, ok := h.Views.Get(ctx, key, &cached); ok {
		return c.JSON(http.StatusOK, cached)
	}

	var resp latestNoteResp
	n, err := h.Notes.LatestReceived(ctx, uid, p.PartnerID)
	if err != nil && err != sql.ErrNoRows {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err == nil {
		resp.Note = &n
	}

	h.Views.Put(ctx, key, 0, resp)
	return c.JSON(http.StatusOK, resp)
}

type sendNoteReq struct {
	Content string `json:"content"`
}

// Send leaves a note for the caller's partner. The content is trimmed
// and must stay within 1..100 characters; sending requires a
// connected partner.
func (h *NoteHandler) Send(c echo.Context) error {
	uid := currentUserID(c)
	var req sendNoteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content required"})
	}
	if utf8.RuneCountInString(content) > maxNoteRunes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "note is limited to 100 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := resolvePairing(ctx, h.Couples, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if p.PartnerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "connect with a partner before sending notes"})
	}

	id, err := h.Notes.Create(ctx, p.CoupleID, uid, p.PartnerID, content)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "send failed"})
	}

	// The receiver's latest-note view changed, not the sender's.
	h.Views.Invalidate(ctx, "notes", "latest", p.PartnerID)
	publishChange(ctx, h.Cfg, "notes", "insert", id, uid, p.PartnerID)
	return c.JSON(http.StatusCreated, echo.Map{"note_id": id})
}

// MarkRead stamps a received note as read. Reading it twice keeps the
// first timestamp.
func (h *NoteHandler) MarkRead(c echo.Context) error {
	uid := currentUserID(c)
	noteID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Notes.MarkRead(ctx, noteID, uid); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "note not found"})
		case repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "only the receiver can mark a note read"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
	}

	h.Views.Invalidate(ctx, "notes", "latest", uid)
	publishChange(ctx, h.Cfg, "notes", "update", noteID, uid)
	return c.JSON(http.StatusOK, echo.Map{"status": "read"})
}
