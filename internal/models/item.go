package models

import "time"

// Moderation states of a submission.
const (
	ItemPending  = "pending"
	ItemApproved = "approved"
	ItemRejected = "rejected"
)

// Item is a dependent row of an entity: a wall submission or a poll vote.
type Item struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id"`
	Status    string    `json:"status,omitempty"`
	Nickname  string    `json:"nickname,omitempty"`
	Message   string    `json:"message,omitempty"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	OptionID  string    `json:"option_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemFromRow decodes a dependent row. parentColumn names the foreign key
// (event_id for submissions, poll_id for votes).
func ItemFromRow(m map[string]any, parentColumn string) Item {
	return Item{
		ID:        fieldString(m, "id"),
		ParentID:  fieldString(m, parentColumn),
		Status:    fieldString(m, "status"),
		Nickname:  fieldString(m, "nickname"),
		Message:   fieldString(m, "message"),
		PhotoURL:  fieldString(m, "photo_url"),
		OptionID:  fieldString(m, "option_id"),
		CreatedAt: fieldTime(m, "created_at"),
	}
}

// Age reports how long ago the item was created relative to now.
func (i Item) Age(now time.Time) time.Duration {
	if i.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(i.CreatedAt)
}
