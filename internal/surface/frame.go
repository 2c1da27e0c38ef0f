package surface

import (
	"github.com/faninteract/backend/internal/display"
	"github.com/faninteract/backend/internal/models"
	"github.com/faninteract/backend/internal/rotation"
)

// Frame is everything a screen needs to render at one moment.
type Frame struct {
	Kind       string          `json:"kind"`
	EntityID   string          `json:"entity_id"`
	Found      bool            `json:"found"`
	View       display.View    `json:"view"`
	Generation uint64          `json:"generation"`
	Entity     *models.Entity  `json:"entity,omitempty"`
	Host       *models.Host    `json:"host,omitempty"`
	Countdown  *CountdownFrame `json:"countdown,omitempty"`
	Highlight  *HighlightFrame `json:"highlight,omitempty"`
	Grid       *GridFrame      `json:"grid,omitempty"`
	Poll       *PollFrame      `json:"poll,omitempty"`
	SpinAt     int64           `json:"spin_at,omitempty"`
	SpinMS     int64           `json:"spin_ms,omitempty"`
}

// CountdownFrame is the pre-live countdown.
type CountdownFrame struct {
	State            string `json:"state"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Display          string `json:"display"`
}

// HighlightFrame is the single-highlight wall.
type HighlightFrame struct {
	Item         *models.Item `json:"item,omitempty"`
	Index        int          `json:"index"`
	PoolSize     int          `json:"pool_size"`
	Transition   string       `json:"transition"`
	TransitionMS int64        `json:"transition_ms"`
	Placeholder  string       `json:"placeholder,omitempty"`
}

// GridFrame is a 2×2 or 4×2 wall.
type GridFrame struct {
	Slots       []rotation.Slot `json:"slots"`
	Changed     int             `json:"changed"`
	Step        string          `json:"step,omitempty"`
	FadeMS      int64           `json:"fade_ms"`
	Placeholder string          `json:"placeholder"`
}

// PollFrame is the live bar chart.
type PollFrame struct {
	Question         string               `json:"question"`
	Options          []models.OptionTally `json:"options"`
	TotalVotes       int                  `json:"total_votes"`
	Winner           int                  `json:"winner"`
	RemainingSeconds int                  `json:"remaining_seconds,omitempty"`
}
