package models

import "time"

// Status is the lifecycle state of a wall, poll or prize wheel.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusLive     Status = "live"
	StatusClosed   Status = "closed"
)

// Entity is the typed view of a wall, poll or prize wheel row.
type Entity struct {
	ID                string       `json:"id"`
	HostID            string       `json:"host_id"`
	Title             string       `json:"title"`
	Status            Status       `json:"status"`
	Countdown         *string      `json:"countdown,omitempty"`
	CountdownActive   bool         `json:"countdown_active"`
	BackgroundType    string       `json:"background_type"`
	BackgroundValue   string       `json:"background_value"`
	LayoutType        string       `json:"layout_type,omitempty"`
	Layout            string       `json:"layout,omitempty"`
	TransitionSpeed   string       `json:"transition_speed,omitempty"`
	PostTransition    string       `json:"post_transition,omitempty"`
	AutoDeleteMinutes int          `json:"auto_delete_minutes"`
	Duration          *string      `json:"duration,omitempty"`
	Question          string       `json:"question,omitempty"`
	Options           []PollOption `json:"options,omitempty"`
	SpinSpeed         string       `json:"spin_speed,omitempty"`
	QRURL             string       `json:"qr_url,omitempty"`
	PendingPosts      int          `json:"pending_posts"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// EntityFromRow decodes an entity row leniently.
func EntityFromRow(m map[string]any) Entity {
	return Entity{
		ID:                fieldString(m, "id"),
		HostID:            fieldString(m, "host_id"),
		Title:             fieldString(m, "title"),
		Status:            Status(fieldString(m, "status")),
		Countdown:         fieldOptString(m, "countdown"),
		CountdownActive:   fieldBool(m, "countdown_active"),
		BackgroundType:    fieldString(m, "background_type"),
		BackgroundValue:   fieldString(m, "background_value"),
		LayoutType:        fieldString(m, "layout_type"),
		Layout:            fieldString(m, "layout"),
		TransitionSpeed:   fieldString(m, "transition_speed"),
		PostTransition:    fieldString(m, "post_transition"),
		AutoDeleteMinutes: fieldInt(m, "auto_delete_minutes"),
		Duration:          fieldOptString(m, "duration"),
		Question:          fieldString(m, "question"),
		Options:           optionsFromValue(m["options"]),
		SpinSpeed:         fieldString(m, "spin_speed"),
		QRURL:             fieldString(m, "qr_url"),
		PendingPosts:      fieldInt(m, "pending_posts"),
		CreatedAt:         fieldTime(m, "created_at"),
		UpdatedAt:         fieldTime(m, "updated_at"),
	}
}

// CountdownDescriptor returns the configured countdown, or "" when none is set.
func (e Entity) CountdownDescriptor() string {
	if e.Countdown == nil || *e.Countdown == "none" {
		return ""
	}
	return *e.Countdown
}

// DurationDescriptor returns the configured poll duration, or "" when none is set.
func (e Entity) DurationDescriptor() string {
	if e.Duration == nil || *e.Duration == "none" {
		return ""
	}
	return *e.Duration
}
