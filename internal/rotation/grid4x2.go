package rotation

import (
	"time"

	"github.com/faninteract/backend/internal/models"
)

// Pairs4x2 are the vertical (top, bottom) cell pairs, replaced left to right.
var Pairs4x2 = [4][2]int{{0, 4}, {1, 5}, {2, 6}, {3, 7}}

// Step is a phase of the 4×2 shuffle-down cycle.
type Step int

const (
	FadeOutBottom Step = iota
	Pause
	FadeOutTop
	MoveDown
	PlaceTop
	Hold
)

var stepNames = [...]string{"fade_out_bottom", "pause", "fade_out_top", "move_down", "place_top", "hold"}

func (s Step) String() string {
	if int(s) < len(stepNames) {
		return stepNames[s]
	}
	return "unknown"
}

// Grid4x2 shuffles one column per cycle: the bottom fades out, the top fades
// out, the old top moves down and fades in, then the next pool item fades in
// on top. A moved item is never visible in both cells of its pair at once.
type Grid4x2 struct {
	slots   [8]Slot
	pair    int
	pointer int
	step    Step
	fade    time.Duration
	pause   time.Duration
	hold    time.Duration
}

// NewGrid4x2 returns a grid seeded from pool.
func NewGrid4x2(pool []models.Item, t Timing, speed Speed) *Grid4x2 {
	g := &Grid4x2{}
	g.SetTiming(t, speed)
	g.Seed(pool)
	return g
}

// SetTiming changes step lengths; it applies from the next step.
func (g *Grid4x2) SetTiming(t Timing, speed Speed) {
	g.fade = t.ShuffleFade
	g.pause = t.ShufflePause
	g.hold = t.IntervalFor(speed)
}

// Seed fills all eight cells from the pool, wrapping when it has fewer than
// eight items, and restarts the cycle at the first pair.
func (g *Grid4x2) Seed(pool []models.Item) {
	for i := range g.slots {
		g.slots[i] = Slot{Visible: true}
		if len(pool) > 0 {
			g.slots[i].Item = itemPtr(pool[i%len(pool)])
		}
	}
	g.pair = 0
	g.step = FadeOutBottom
	g.pointer = 0
	if len(pool) > 0 {
		g.pointer = len(g.slots) % len(pool)
	}
}

// Step returns the phase that the next Advance call performs.
func (g *Grid4x2) Step() Step { return g.step }

// Pair returns the index of the pair being shuffled.
func (g *Grid4x2) Pair() int { return g.pair }

// Advance performs the pending step and returns how long to wait before the
// next one. With an empty pool nothing changes and the hold time is returned.
func (g *Grid4x2) Advance(pool []models.Item) time.Duration {
	n := len(pool)
	if n == 0 {
		return g.hold
	}
	top, bottom := Pairs4x2[g.pair][0], Pairs4x2[g.pair][1]
	switch g.step {
	case FadeOutBottom:
		g.slots[bottom].Visible = false
		g.step = Pause
		return g.fade
	case Pause:
		g.step = FadeOutTop
		return g.pause
	case FadeOutTop:
		g.slots[top].Visible = false
		g.step = MoveDown
		return g.fade
	case MoveDown:
		g.slots[bottom] = Slot{Item: g.slots[top].Item, Visible: true}
		g.step = PlaceTop
		return g.fade
	case PlaceTop:
		g.slots[top] = Slot{Item: itemPtr(pool[g.pointer%n]), Visible: true}
		g.step = Hold
		return g.fade
	default:
		g.pointer = (g.pointer%n + 1) % n
		g.pair = (g.pair + 1) % len(Pairs4x2)
		g.step = FadeOutBottom
		return g.hold
	}
}

// Reconcile re-seeds when a cell shows an item that left the pool or when
// the grid was empty; otherwise cell contents are refreshed in place.
func (g *Grid4x2) Reconcile(pool []models.Item) bool {
	stale := refresh(g.slots[:], pool)
	if stale || (g.slots[0].Item == nil && len(pool) > 0) {
		g.Seed(pool)
		return true
	}
	return false
}

// Slots returns a copy of the cells.
func (g *Grid4x2) Slots() []Slot {
	out := make([]Slot, len(g.slots))
	copy(out, g.slots[:])
	return out
}
