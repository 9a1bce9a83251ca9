package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/duohabit/duohabit/internal/cache"
	"github.com/duohabit/duohabit/internal/config"
	"github.com/duohabit/duohabit/internal/derive"
	"github.com/duohabit/duohabit/internal/model"
	"github.com/duohabit/duohabit/internal/repository"
)

// HabitHandler serves the habit list, habit CRUD and the completion
// toggle.
type HabitHandler struct {
	Cfg         config.Config
	Habits      *repository.HabitRepo
	Completions *repository.CompletionRepo
	Couples     *repository.CoupleRepo
	Views       *cache.View
}

func NewHabitHandler(cfg config.Config, h *repository.HabitRepo, cm *repository.CompletionRepo, cp *repository.CoupleRepo, v *cache.View) *HabitHandler {
	return &HabitHandler{Cfg: cfg, Habits: h, Completions: cm, Couples: cp, Views: v}
}

func habitListKey(date, userID, partnerID string) cache.Key {
	return cache.NewKey("habits", date, userID, partnerID)
}

// List returns every habit visible to the caller with both members'
// completion state for the requested date. ?scheduled=true keeps only
// the habits due that day; the filter runs after the cache so one
// cached list serves both views.
func (h *HabitHandler) List(c echo.Context) error {
	uid := currentUserID(c)
	date, err := requestDate(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := resolvePairing(ctx, h.Couples, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	key := habitListKey(date, uid, p.PartnerID)
	var list []derive.HabitWithStatus
	version, hit := h.Views.Get(ctx, key, &list)
	if !hit {
		habits, err := h.Habits.ListVisible(ctx, uid, p.PartnerID, p.CoupleID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		ids := make([]string, 0, len(habits))
		for _, hb := range habits {
			ids = append(ids, hb.ID)
		}
		members := []string{uid}
		if p.PartnerID != "" {
			members = append(members, p.PartnerID)
		}
		comps, err := h.Completions.ListForDate(ctx, ids, members, date)
		if err != nil {
			// The list still renders without completion state; skip the
			// cache so the next fetch retries the join.
			c.Logger().Warnf("completion fetch failed, serving degraded list: %v", err)
			return c.JSON(http.StatusOK, echo.Map{"date": date, "degraded": true,
				"habits": h.filtered(c, derive.Degraded(habits), date)})
		}
		list = derive.StatusForDate(habits, comps, uid, p.PartnerID)
		h.Views.Put(ctx, key, version, list)
	}

	return c.JSON(http.StatusOK, echo.Map{"date": date, "habits": h.filtered(c, list, date)})
}

func (h *HabitHandler) filtered(c echo.Context, list []derive.HabitWithStatus, date string) []derive.HabitWithStatus {
	if c.QueryParam("scheduled") != "true" {
		return list
	}
	day, err := derive.ParseDate(date)
	if err != nil {
		return list
	}
	return derive.FilterScheduled(list, day)
}

// ----- CRUD -----

type createHabitReq struct {
	Name          string   `json:"name"`
	Description   *string  `json:"description"`
	Frequency     string   `json:"frequency"`
	FrequencyDays []string `json:"frequency_days"`
	Shared        bool     `json:"shared"`
	IsPrivate     bool     `json:"is_private"`
}

// Create inserts a habit owned by the caller. Shared habits require a
// connected partner; the couple id is always the caller's own.
func (h *HabitHandler) Create(c echo.Context) error {
	uid := currentUserID(c)
	var req createHabitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	freq := model.Frequency(strings.ToLower(strings.TrimSpace(req.Frequency)))
	if freq == "" {
		freq = model.FrequencyDaily
	}
	if err := derive.ValidateDaySet(freq, req.FrequencyDays); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	habit := model.Habit{
		Name:          req.Name,
		Description:   trimDescription(req.Description),
		Frequency:     freq,
		FrequencyDays: req.FrequencyDays,
		Scope:         model.Scope{Kind: model.ScopePersonal, IsPrivate: req.IsPrivate},
	}
	if req.Shared {
		p, err := resolvePairing(ctx, h.Couples, uid)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if p.PartnerID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "shared habits need a connected partner"})
		}
		habit.Scope = model.Scope{Kind: model.ScopeShared, CoupleID: p.CoupleID}
	}

	id, err := h.Habits.Create(ctx, uid, habit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create habit failed"})
	}

	h.Views.Invalidate(ctx, "habits")
	publishChange(ctx, h.Cfg, "habits", "insert", id, uid)

	created, err := h.Habits.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusCreated, echo.Map{"id": id})
	}
	return c.JSON(http.StatusCreated, created)
}

type updateHabitReq struct {
	Name             *string   `json:"name"`
	Description      *string   `json:"description"`
	ClearDescription bool      `json:"clear_description"`
	IsPrivate        *bool     `json:"is_private"`
	Frequency        *string   `json:"frequency"`
	FrequencyDays    *[]string `json:"frequency_days"`
}

// Update applies a partial update to a habit owned by the caller. The
// frequency/day-set invariant is revalidated against the merged row,
// not just the patch.
func (h *HabitHandler) Update(c echo.Context) error {
	uid := currentUserID(c)
	habitID := c.Param("id")
	var req updateHabitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Habits.GetByID(ctx, habitID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "habit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if existing.OwnerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the owner can modify a habit"})
	}

	u := repository.HabitUpdate{
		IsPrivate:        req.IsPrivate,
		ClearDescription: req.ClearDescription,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
		}
		u.Name = &name
	}
	if !req.ClearDescription {
		u.Description = trimDescription(req.Description)
	}

	// Merge to revalidate the cadence invariant.
	freq := existing.Frequency
	if req.Frequency != nil {
		freq = model.Frequency(strings.ToLower(strings.TrimSpace(*req.Frequency)))
		u.Frequency = &freq
	}
	days := existing.FrequencyDays
	if req.FrequencyDays != nil {
		days = *req.FrequencyDays
		u.FrequencyDays = req.FrequencyDays
	} else if freq == model.FrequencyDaily && len(days) > 0 {
		// Switching weekly -> daily drops the stale day-set.
		empty := []string{}
		days = empty
		u.FrequencyDays = &empty
	}
	if err := derive.ValidateDaySet(freq, days); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	if err := h.Habits.Update(ctx, habitID, uid, u); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	h.Views.Invalidate(ctx, "habits")
	h.Views.Invalidate(ctx, "habit_detail", habitID)
	publishChange(ctx, h.Cfg, "habits", "update", habitID, uid)

	updated, err := h.Habits.GetByID(ctx, habitID)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"status": "updated"})
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete removes a habit owned by the caller; its completions cascade.
func (h *HabitHandler) Delete(c echo.Context) error {
	uid := currentUserID(c)
	habitID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Habits.Delete(ctx, habitID, uid); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "habit not found"})
		case repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "only the owner can delete a habit"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
		}
	}

	h.Views.Invalidate(ctx, "habits")
	h.Views.Invalidate(ctx, "habit_detail", habitID)
	publishChange(ctx, h.Cfg, "habits", "delete", habitID, uid)
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}

// ----- Completion toggle -----

type completeReq struct {
	Date string `json:"date"`
}

// Complete records the caller's completion of a habit for a date.
// Pressing the button twice is not an error: the duplicate insert
// resolves to the existing row and the response says so.
func (h *HabitHandler) Complete(c echo.Context) error {
	uid := currentUserID(c)
	habitID := c.Param("id")

	var req completeReq
	_ = c.Bind(&req) // body is optional
	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = derive.DateString(time.Now().UTC())
	} else if _, err := derive.ParseDate(date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := resolvePairing(ctx, h.Couples, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	habit, err := h.Habits.GetVisible(ctx, habitID, uid, p.PartnerID, p.CoupleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "habit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	// The partner's personal habits are view-only.
	if habit.OwnerID != uid && habit.Scope.Kind != model.ScopeShared {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot complete your partner's habit"})
	}

	already := false
	id, err := h.Completions.Create(ctx, habitID, uid, date)
	if err == repository.ErrAlreadyCompleted {
		already = true
		existing, ferr := h.Completions.FindForDay(ctx, habitID, uid, date)
		if ferr != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		id = existing.ID
	} else if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "complete failed"})
	}

	if !already {
		cid := id
		h.reconcileToggle(ctx, date, uid, p.PartnerID, habitID,
			func(s *derive.HabitWithStatus) {
				s.IsCompletedToday = true
				s.TodaysCompletionID = &cid
			},
			func(s *derive.HabitWithStatus) {
				s.PartnerCompletedToday = true
				s.PartnerTodaysCompletionID = &cid
			})
		publishChange(ctx, h.Cfg, "habit_completions", "insert", id, uid)
	}

	status := http.StatusCreated
	if already {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{"completion_id": id, "already_completed": already})
}

// Uncomplete deletes one completion row by id. Deleting a row that is
// already gone is benign; deleting the partner's row is not. The
// cached list for the row's own completion date is patched, so
// undoing a past day never flips today's flags.
func (h *HabitHandler) Uncomplete(c echo.Context) error {
	uid := currentUserID(c)
	completionID := c.Param("completionID")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	row, err := h.Completions.GetByID(ctx, completionID)
	if err != nil {
		if err == sql.ErrNoRows {
			// Already removed, the toggle converged.
			return c.JSON(http.StatusOK, echo.Map{"status": "removed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if err := h.Completions.Delete(ctx, completionID, uid); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusOK, echo.Map{"status": "removed"})
		case repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot remove your partner's completion"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "uncomplete failed"})
		}
	}

	if p, perr := resolvePairing(ctx, h.Couples, uid); perr == nil {
		h.reconcileToggle(ctx, row.Date, uid, p.PartnerID, row.HabitID,
			func(s *derive.HabitWithStatus) {
				s.IsCompletedToday = false
				s.TodaysCompletionID = nil
			},
			func(s *derive.HabitWithStatus) {
				s.PartnerCompletedToday = false
				s.PartnerTodaysCompletionID = nil
			})
	} else {
		h.Views.Invalidate(ctx, "habit_detail", row.HabitID)
	}
	publishChange(ctx, h.Cfg, "habit_completions", "delete", completionID, uid)
	return c.JSON(http.StatusOK, echo.Map{"status": "removed"})
}

// reconcileToggle brings the cached lists for one date in line with a
// completion change: both members' entries are patched in place, and
// an entry the patch could not apply to is dropped so the next fetch
// recomputes it from the store. That keeps reconciliation working
// with or without the broker; the row-change event remains the
// cross-instance path. The habit's detail views are always dropped.
func (h *HabitHandler) reconcileToggle(ctx context.Context, date, userID, partnerID, habitID string, self, partner func(*derive.HabitWithStatus)) {
	if !h.patchListEntry(ctx, habitListKey(date, userID, partnerID), habitID, self) {
		h.Views.Invalidate(ctx, "habits", date, userID)
	}
	if partnerID != "" {
		if !h.patchListEntry(ctx, habitListKey(date, partnerID, userID), habitID, partner) {
			h.Views.Invalidate(ctx, "habits", date, partnerID)
		}
	}
	h.Views.Invalidate(ctx, "habit_detail", habitID)
}

// patchListEntry rewrites one habit's flags inside a cached list
// entry. The version bump inside Patch protects the rewrite from
// being clobbered by an in-flight refetch carrying older data. It
// reports whether the patch applied; a miss, a list without the
// habit, or an undecodable entry all return false.
func (h *HabitHandler) patchListEntry(ctx context.Context, key cache.Key, habitID string, apply func(*derive.HabitWithStatus)) bool {
	applied := false
	h.Views.Patch(ctx, key, func(data json.RawMessage) (json.RawMessage, bool) {
		var list []derive.HabitWithStatus
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, false
		}
		found := false
		for i := range list {
			if list[i].ID == habitID {
				apply(&list[i])
				found = true
			}
		}
		if !found {
			return nil, false
		}
		out, err := json.Marshal(list)
		if err != nil {
			return nil, false
		}
		applied = true
		return out, true
	})
	return applied
}

func trimDescription(d *string) *string {
	if d == nil {
		return nil
	}
	t := strings.TrimSpace(*d)
	if t == "" {
		return nil
	}
	return &t
}
