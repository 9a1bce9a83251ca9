package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/duohabit/duohabit/internal/cache"
	"github.com/duohabit/duohabit/internal/config"
	"github.com/duohabit/duohabit/internal/derive"
	"github.com/duohabit/duohabit/internal/model"
	"github.com/duohabit/duohabit/internal/repository"
)

// HabitDetailHandler serves the per-habit detail view: the full
// completion history reduced to streaks and a calendar.
type HabitDetailHandler struct {
	Cfg         config.Config
	Habits      *repository.HabitRepo
	Completions *repository.CompletionRepo
	Couples     *repository.CoupleRepo
	Views       *cache.View
}

func NewHabitDetailHandler(cfg config.Config, h *repository.HabitRepo, cm *repository.CompletionRepo, cp *repository.CoupleRepo, v *cache.View) *HabitDetailHandler {
	return &HabitDetailHandler{Cfg: cfg, Habits: h, Completions: cm, Couples: cp, Views: v}
}

// habitDetailResp is the detail view. Streaks are computed from the
// caller's perspective; the calendar marks both members per day.
type habitDetailResp struct {
	Habit          model.Habit      `json:"habit"`
	Streaks        derive.Streaks   `json:"streaks"`
	Calendar       []derive.DayMark `json:"calendar"`
	ScheduledToday bool             `json:"scheduled_today"`
	FrequencyLabel string           `json:"frequency_label"`
	CompletedToday bool             `json:"completed_today"`
}

// Get returns one habit with derived streaks and calendar for the
// requested date. A habit the caller may not see answers 404, same as
// a habit that does not exist.
func (h *HabitDetailHandler) Get(c echo.Context) error {
	uid := currentUserID(c)
	habitID := c.Param("id")
	date, err := requestDate(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}
	day, _ := derive.ParseDate(date)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := resolvePairing(ctx, h.Couples, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	key := cache.NewKey("habit_detail", habitID, date, uid)
	var cached habitDetailResp
	if _, ok := h.Views.Get(ctx, key, &cached); ok {
		return c.JSON(http.StatusOK, cached)
	}

	habit, err := h.Habits.GetVisible(ctx, habitID, uid, p.PartnerID, p.CoupleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "habit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	comps, err := h.Completions.ListForHabit(ctx, habitID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	resp := habitDetailResp{
		Habit:          habit,
		Streaks:        derive.ComputeStreaks(comps, uid, p.PartnerID, day),
		Calendar:       derive.Calendar(comps, uid, p.PartnerID, day),
		ScheduledToday: derive.IsScheduledOn(habit, day),
		FrequencyLabel: derive.FrequencyLabel(habit),
	}
	for _, cm := range comps {
		if cm.UserID == uid && cm.Date == date {
			resp.CompletedToday = true
			break
		}
	}

	h.Views.Put(ctx, key, 0, resp)
	return c.JSON(http.StatusOK, resp)
}
