package livestate

import (
	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/models"
	"github.com/faninteract/backend/internal/remote"
)

// Projection is the approved subset of an entity's dependent items, kept in
// arrival order. It only ever holds items whose last known status is approved.
type Projection struct {
	kind  entity.Kind
	items []models.Item
	pos   map[string]int
}

// NewProjection returns an empty projection for kind.
func NewProjection(k entity.Kind) *Projection {
	return &Projection{kind: k, pos: make(map[string]int)}
}

// Reset replaces the contents with the approved rows, keeping their order.
func (p *Projection) Reset(rows []remote.Row) {
	p.items = p.items[:0]
	p.pos = make(map[string]int, len(rows))
	for _, r := range rows {
		if !p.kind.IsApproved(r) {
			continue
		}
		p.upsert(models.ItemFromRow(r, p.kind.ParentColumn))
	}
}

// Apply merges one change event and reports whether the projection changed.
// Applying the same event twice has the same effect as applying it once.
func (p *Projection) Apply(ev remote.ChangeEvent) bool {
	switch ev.Type {
	case remote.Delete:
		return p.remove(ev.Old.ID())
	case remote.Insert, remote.Update:
		if ev.New == nil {
			return false
		}
		if p.kind.IsApproved(ev.New) {
			p.upsert(models.ItemFromRow(ev.New, p.kind.ParentColumn))
			return true
		}
		return p.remove(ev.New.ID())
	}
	return false
}

func (p *Projection) upsert(it models.Item) {
	if i, ok := p.pos[it.ID]; ok {
		p.items[i] = it
		return
	}
	p.pos[it.ID] = len(p.items)
	p.items = append(p.items, it)
}

func (p *Projection) remove(id string) bool {
	i, ok := p.pos[id]
	if !ok {
		return false
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	delete(p.pos, id)
	for j := i; j < len(p.items); j++ {
		p.pos[p.items[j].ID] = j
	}
	return true
}

// Items returns a copy of the projected items.
func (p *Projection) Items() []models.Item {
	out := make([]models.Item, len(p.items))
	copy(out, p.items)
	return out
}

// Len returns the number of projected items.
func (p *Projection) Len() int { return len(p.items) }
