package rotation

import (
	"time"

	"github.com/faninteract/backend/internal/models"
)

// FilterExpired drops items older than limitMinutes. Zero or less keeps everything.
// An item exactly at the limit is kept.
func FilterExpired(items []models.Item, limitMinutes int, now time.Time) []models.Item {
	if limitMinutes <= 0 {
		return items
	}
	limit := time.Duration(limitMinutes) * time.Minute
	out := make([]models.Item, 0, len(items))
	for _, it := range items {
		if it.Age(now) <= limit {
			out = append(out, it)
		}
	}
	return out
}
