package rotation

import "github.com/faninteract/backend/internal/models"

// Order2x2 is the fixed order in which 2×2 cells are replaced.
var Order2x2 = [4]int{0, 1, 2, 3}

// Grid2x2 replaces one cell per tick, walking Order2x2 and a pointer into the
// pool that wraps modulo the pool length.
type Grid2x2 struct {
	slots   [4]Slot
	cell    int
	pointer int
}

// NewGrid2x2 returns a grid seeded from pool.
func NewGrid2x2(pool []models.Item) *Grid2x2 {
	g := &Grid2x2{}
	g.Seed(pool)
	return g
}

// Seed fills the cells from the first four items; missing items leave the
// placeholder. The pointer resumes at the fifth item.
func (g *Grid2x2) Seed(pool []models.Item) {
	for i := range g.slots {
		g.slots[i] = Slot{Visible: true}
		if i < len(pool) {
			g.slots[i].Item = itemPtr(pool[i])
		}
	}
	g.cell = 0
	g.pointer = 0
	if len(pool) > 0 {
		g.pointer = len(g.slots) % len(pool)
	}
}

// Tick places the next pool item into the next cell and returns that cell,
// or -1 when the pool is empty.
func (g *Grid2x2) Tick(pool []models.Item) int {
	n := len(pool)
	if n == 0 {
		return -1
	}
	cell := Order2x2[g.cell]
	g.slots[cell] = Slot{Item: itemPtr(pool[g.pointer%n]), Visible: true}
	g.pointer = (g.pointer%n + 1) % n
	g.cell = (g.cell + 1) % len(Order2x2)
	return cell
}

// Reconcile brings the grid in line with a changed pool. It re-seeds when a
// cell shows an item that is no longer eligible, or when empty cells could now
// be filled; otherwise cells keep their place and new items enter by rotation.
func (g *Grid2x2) Reconcile(pool []models.Item) bool {
	stale := refresh(g.slots[:], pool)
	if stale || (g.filled() < len(g.slots) && len(pool) > g.filled()) {
		g.Seed(pool)
		return true
	}
	return false
}

func (g *Grid2x2) filled() int {
	n := 0
	for _, s := range g.slots {
		if s.Item != nil {
			n++
		}
	}
	return n
}

// Slots returns a copy of the cells.
func (g *Grid2x2) Slots() []Slot {
	out := make([]Slot, len(g.slots))
	copy(out, g.slots[:])
	return out
}
