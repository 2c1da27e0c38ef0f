// Package entity describes the three kinds of live entity a host can run.
// Everything downstream (state sync, selector, host actions) is written once
// against a Kind instead of per wall, poll and prize wheel.
package entity

import (
	"fmt"
	"time"

	"github.com/faninteract/backend/internal/models"
)

// Kind describes where an entity kind lives and how it behaves.
type Kind struct {
	// Name is the short identifier used in URLs and logs.
	Name string
	// Table holds the entity rows.
	Table string
	// ItemTable holds dependent items; empty when the kind has none.
	ItemTable string
	// ParentColumn is the foreign key on ItemTable.
	ParentColumn string
	// ModerationColumn is the item status column. Empty means every item is
	// implicitly approved.
	ModerationColumn string
	// ChannelPrefix names the broadcast channel: <prefix>-<id>.
	ChannelPrefix string
	// PublicPath is the guest page prefix used to build the QR URL.
	PublicPath string
	// SupportsClosed reports whether "closed" is a valid status.
	SupportsClosed bool
	// SettingsFields are the columns a host may change through update.
	SettingsFields []string
}

var (
	Wall = Kind{
		Name:             "wall",
		Table:            "events",
		ItemTable:        "submissions",
		ParentColumn:     "event_id",
		ModerationColumn: "status",
		ChannelPrefix:    "wall",
		PublicPath:       "wall",
		SettingsFields: []string{
			"title", "countdown", "background_type", "background_value",
			"layout_type", "transition_speed", "post_transition", "auto_delete_minutes",
		},
	}
	Poll = Kind{
		Name:           "poll",
		Table:          "polls",
		ItemTable:      "poll_votes",
		ParentColumn:   "poll_id",
		ChannelPrefix:  "poll",
		PublicPath:     "poll",
		SupportsClosed: true,
		SettingsFields: []string{
			"title", "question", "options", "countdown", "duration", "layout",
			"background_type", "background_value",
		},
	}
	PrizeWheel = Kind{
		Name:          "prizewheel",
		Table:         "prize_wheels",
		ChannelPrefix: "prizewheel",
		PublicPath:    "prizewheel",
		SettingsFields: []string{
			"title", "countdown", "background_type", "background_value", "spin_speed",
		},
	}
)

// Kinds lists every kind.
var Kinds = []Kind{Wall, Poll, PrizeWheel}

// Lookup returns the kind with the given name.
func Lookup(name string) (Kind, error) {
	for _, k := range Kinds {
		if k.Name == name {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("unknown entity kind %q", name)
}

// HasItems reports whether the kind has a dependent item table.
func (k Kind) HasItems() bool { return k.ItemTable != "" }

// Moderated reports whether items carry an explicit moderation status.
func (k Kind) Moderated() bool { return k.ModerationColumn != "" }

// Channel returns the broadcast channel for an entity id.
func (k Kind) Channel(id string) string { return k.ChannelPrefix + "-" + id }

// IsApproved reports whether an item row is eligible for display.
func (k Kind) IsApproved(row map[string]any) bool {
	if !k.Moderated() {
		return true
	}
	s, _ := row[k.ModerationColumn].(string)
	return s == models.ItemApproved
}

// AllowsSetting reports whether field may be changed by a host update.
func (k Kind) AllowsSetting(field string) bool {
	for _, f := range k.SettingsFields {
		if f == field {
			return true
		}
	}
	return false
}

// GoLivePatch is written when a countdown expires.
func GoLivePatch(now time.Time) map[string]any {
	return map[string]any{
		"status":           string(models.StatusLive),
		"countdown_active": false,
		"updated_at":       now.UTC(),
	}
}

// ClosePatch is written when a poll's duration elapses or the host closes it.
func ClosePatch(now time.Time) map[string]any {
	return map[string]any{
		"status":           string(models.StatusClosed),
		"countdown_active": false,
		"updated_at":       now.UTC(),
	}
}

// StopPatch returns an entity to inactive and cancels any countdown.
func StopPatch(now time.Time) map[string]any {
	return map[string]any{
		"status":           string(models.StatusInactive),
		"countdown_active": false,
		"updated_at":       now.UTC(),
	}
}

// StartPatch arms the countdown when one is configured, otherwise goes live.
func StartPatch(e models.Entity, now time.Time) map[string]any {
	if e.CountdownDescriptor() != "" {
		return map[string]any{
			"status":           string(models.StatusInactive),
			"countdown_active": true,
			"updated_at":       now.UTC(),
		}
	}
	return GoLivePatch(now)
}
