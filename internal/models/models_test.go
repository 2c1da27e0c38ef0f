package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntityFromRow(t *testing.T) {
	row := map[string]any{
		"id":                  "w1",
		"status":              "live",
		"countdown":           "5 Minutes",
		"countdown_active":    false,
		"auto_delete_minutes": float64(10),
		"layout_type":         "2 Column × 2 Row",
		"updated_at":          "2026-03-01T10:00:00.123456+00:00",
		"options": []any{
			map[string]any{"id": "a", "text": "Red", "votes": float64(2)},
			"garbage",
		},
	}
	e := EntityFromRow(row)
	assert.Equal(t, "w1", e.ID)
	assert.Equal(t, StatusLive, e.Status)
	assert.Equal(t, "5 Minutes", e.CountdownDescriptor())
	assert.Equal(t, 10, e.AutoDeleteMinutes)
	assert.Equal(t, 2026, e.UpdatedAt.Year())
	assert.Equal(t, []PollOption{{ID: "a", Text: "Red"}}, e.Options)
}

func TestOptionsToValueStoresNoCounts(t *testing.T) {
	v := OptionsToValue([]PollOption{{ID: "a", Text: "Red"}})
	assert.Equal(t, []any{map[string]any{"id": "a", "text": "Red"}}, v)
}

func TestEntityFromRowToleratesBadTypes(t *testing.T) {
	e := EntityFromRow(map[string]any{"status": 7, "countdown_active": "yes", "countdown": nil})
	assert.Equal(t, Status("7"), e.Status)
	assert.False(t, e.CountdownActive)
	assert.Nil(t, e.Countdown)
	assert.Equal(t, "", e.CountdownDescriptor())
}

func TestCountdownNone(t *testing.T) {
	none := "none"
	e := Entity{Countdown: &none}
	assert.Equal(t, "", e.CountdownDescriptor())
}

func TestTallyAndWinner(t *testing.T) {
	opts := []PollOption{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"}}
	votes := []Item{{OptionID: "b"}, {OptionID: "a"}, {OptionID: "b"}, {OptionID: "zzz"}}
	tallies := Tally(opts, votes)
	assert.Equal(t, 1, tallies[0].Votes)
	assert.Equal(t, 2, tallies[1].Votes)
	assert.Equal(t, 0, tallies[2].Votes)
	assert.InDelta(t, 66.66, tallies[1].Percent, 0.01)
	assert.Equal(t, 1, Winner(tallies))
	assert.Equal(t, -1, Winner(Tally(opts, nil)))
}

func TestItemAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	it := ItemFromRow(map[string]any{"id": "s1", "event_id": "w1", "created_at": now.Add(-3 * time.Minute).Format(time.RFC3339)}, "event_id")
	assert.Equal(t, "w1", it.ParentID)
	assert.Equal(t, 3*time.Minute, it.Age(now))
}
