package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/duohabit/duohabit/internal/model"
)

func TestValidateDaySet(t *testing.T) {
	cases := []struct {
		name    string
		freq    model.Frequency
		days    []string
		wantErr bool
	}{
		{"daily without days", model.FrequencyDaily, nil, false},
		{"daily with days", model.FrequencyDaily, []string{"monday"}, true},
		{"weekly with days", model.FrequencyWeekly, []string{"monday", "friday"}, false},
		{"weekly without days", model.FrequencyWeekly, nil, true},
		{"weekly unknown day", model.FrequencyWeekly, []string{"mondayy"}, true},
		{"weekly uppercase rejected", model.FrequencyWeekly, []string{"Monday"}, true},
		{"unknown frequency", model.Frequency("biweekly"), nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDaySet(tc.freq, tc.days)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsScheduledOn(t *testing.T) {
	daily := model.Habit{Frequency: model.FrequencyDaily}
	weekly := model.Habit{Frequency: model.FrequencyWeekly, FrequencyDays: []string{"monday", "wednesday"}}

	monday := day("2026-08-31")
	tuesday := day("2026-09-01")
	wednesday := day("2026-09-02")

	assert.True(t, IsScheduledOn(daily, tuesday))
	assert.True(t, IsScheduledOn(weekly, monday))
	assert.False(t, IsScheduledOn(weekly, tuesday))
	assert.True(t, IsScheduledOn(weekly, wednesday))
}

func TestFilterScheduled(t *testing.T) {
	list := []HabitWithStatus{
		{Habit: model.Habit{ID: "a", Frequency: model.FrequencyDaily}},
		{Habit: model.Habit{ID: "b", Frequency: model.FrequencyWeekly, FrequencyDays: []string{"tuesday"}}},
		{Habit: model.Habit{ID: "c", Frequency: model.FrequencyWeekly, FrequencyDays: []string{"sunday"}}},
	}

	due := FilterScheduled(list, day("2026-09-01")) // a Tuesday
	ids := make([]string, 0, len(due))
	for _, s := range due {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestFrequencyLabel(t *testing.T) {
	assert.Equal(t, "Daily",
		FrequencyLabel(model.Habit{Frequency: model.FrequencyDaily}))
	assert.Equal(t, "Weekly on Mon, Wed",
		FrequencyLabel(model.Habit{Frequency: model.FrequencyWeekly, FrequencyDays: []string{"wednesday", "monday"}}))
	assert.Equal(t, "Weekly",
		FrequencyLabel(model.Habit{Frequency: model.FrequencyWeekly}))
}
