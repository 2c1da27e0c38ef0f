package rotation

import "github.com/faninteract/backend/internal/models"

// Slot is one grid cell. A nil Item renders the placeholder.
type Slot struct {
	Item    *models.Item `json:"item"`
	Visible bool         `json:"visible"`
}

func itemPtr(it models.Item) *models.Item {
	return &it
}

func indexByID(pool []models.Item) map[string]int {
	m := make(map[string]int, len(pool))
	for i, it := range pool {
		m[it.ID] = i
	}
	return m
}

// refresh replaces slot contents with their latest pool version and reports
// whether any slot shows an item that left the pool.
func refresh(slots []Slot, pool []models.Item) (stale bool) {
	byID := indexByID(pool)
	for i := range slots {
		if slots[i].Item == nil {
			continue
		}
		j, ok := byID[slots[i].Item.ID]
		if !ok {
			stale = true
			continue
		}
		slots[i].Item = itemPtr(pool[j])
	}
	return stale
}
