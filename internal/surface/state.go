// Package surface drives one open display: it folds live entity state,
// the display mode, the rotation schedulers and the countdown engines into
// a stream of frames.
package surface

import (
	"encoding/json"
	"time"

	"github.com/faninteract/backend/internal/countdown"
	"github.com/faninteract/backend/internal/display"
	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/livestate"
	"github.com/faninteract/backend/internal/models"
	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/internal/rotation"
)

// Write is a remote update requested by a timer.
type Write struct {
	Table  string
	ID     string
	Patch  remote.Row
	Reason string
}

// Effects tell the runner what to do after a state transition.
type Effects struct {
	Emit   bool
	Writes []Write
	// Rearm replaces the rotation timer with one firing after Next.
	// A zero Next disarms it.
	Rearm bool
	Next  time.Duration
}

func (e *Effects) merge(o Effects) {
	e.Emit = e.Emit || o.Emit
	e.Writes = append(e.Writes, o.Writes...)
	if o.Rearm {
		e.Rearm, e.Next = true, o.Next
	}
}

// State is the single-threaded display state machine. It performs no I/O and
// reads time only through now, so it can be stepped deterministically.
type State struct {
	kind   entity.Kind
	timing rotation.Timing
	now    func() time.Time

	snap livestate.Snapshot
	view display.View

	countdown *countdown.Engine
	duration  *countdown.Engine

	rotating   bool
	layout     display.Layout
	speed      rotation.Speed
	generation uint64
	pool       []models.Item
	single     rotation.Single
	grid2      *rotation.Grid2x2
	grid4      *rotation.Grid4x2
	lastCell   int

	spinAt    int64
	spinUntil time.Time
}

// NewState returns the state for one display of kind k.
func NewState(k entity.Kind, timing rotation.Timing, now func() time.Time) *State {
	return &State{
		kind:      k,
		timing:    timing,
		now:       now,
		view:      display.View{Mode: display.Inactive},
		countdown: countdown.New(),
		duration:  countdown.New(),
		lastCell:  -1,
	}
}

// Update folds in a new snapshot.
func (st *State) Update(snap livestate.Snapshot) Effects {
	st.snap = snap
	e := snap.Entity
	if snap.Found {
		st.view = display.Select(st.kind, e)
	} else {
		st.view = display.View{Mode: display.Inactive}
	}
	if st.view.Mode != display.Live {
		st.spinAt, st.spinUntil = 0, time.Time{}
	}
	eff := Effects{Emit: true}

	if st.countdown.Observe(snap.Found && e.CountdownActive, e.CountdownDescriptor()) {
		eff.Writes = append(eff.Writes, st.terminal(entity.GoLivePatch, "countdown expired"))
	}
	if st.kind.SupportsClosed {
		d := countdown.ParseWithDefaultUnit(e.DurationDescriptor(), time.Minute)
		active := st.view.Mode == display.Live && d > 0
		if st.duration.ObserveDuration(active, d) {
			eff.Writes = append(eff.Writes, st.terminal(entity.ClosePatch, "duration elapsed"))
		}
	}

	if st.kind.Name == entity.Wall.Name {
		eff.merge(st.updateRotation(e))
	}
	return eff
}

func (st *State) updateRotation(e models.Entity) Effects {
	pool := rotation.FilterExpired(st.snap.Items, e.AutoDeleteMinutes, st.now())
	if st.view.Mode != display.Live {
		st.pool = pool
		if st.rotating {
			st.rotating = false
			return Effects{Rearm: true}
		}
		return Effects{}
	}
	speed := rotation.ParseSpeed(e.TransitionSpeed)
	if !st.rotating || st.view.Layout != st.layout || speed != st.speed {
		st.rotating = true
		st.layout = st.view.Layout
		st.speed = speed
		st.pool = pool
		st.restart()
		return Effects{Rearm: true, Next: st.timing.IntervalFor(speed)}
	}
	if st.setPool(pool) {
		return Effects{Rearm: true, Next: st.timing.IntervalFor(speed)}
	}
	return Effects{}
}

// restart begins a new generation: schedulers are re-seeded from the pool.
func (st *State) restart() {
	st.generation++
	st.lastCell = -1
	st.single.Reset()
	st.grid2 = nil
	st.grid4 = nil
	switch st.layout {
	case display.LayoutGrid2x2:
		st.grid2 = rotation.NewGrid2x2(st.pool)
	case display.LayoutGrid4x2:
		st.grid4 = rotation.NewGrid4x2(st.pool, st.timing, st.speed)
	}
}

// setPool swaps in a new pool and reports whether a grid was re-seeded.
func (st *State) setPool(pool []models.Item) bool {
	st.pool = pool
	switch {
	case st.grid2 != nil:
		if st.grid2.Reconcile(pool) {
			st.lastCell = -1
			return true
		}
	case st.grid4 != nil:
		return st.grid4.Reconcile(pool)
	}
	return false
}

// Second advances the countdown and duration engines by one second.
func (st *State) Second() Effects {
	var eff Effects
	if st.countdown.Tick() {
		eff.Writes = append(eff.Writes, st.terminal(entity.GoLivePatch, "countdown expired"))
	}
	if st.duration.Tick() {
		eff.Writes = append(eff.Writes, st.terminal(entity.ClosePatch, "duration elapsed"))
	}
	if len(eff.Writes) > 0 || st.countdown.State() == countdown.Running || st.duration.State() == countdown.Running {
		eff.Emit = true
	}
	return eff
}

// Minute re-applies the auto-delete window so items can age out mid-rotation.
func (st *State) Minute() Effects {
	if st.kind.Name != entity.Wall.Name {
		return Effects{}
	}
	pool := rotation.FilterExpired(st.snap.Items, st.snap.Entity.AutoDeleteMinutes, st.now())
	if sameIDs(pool, st.pool) {
		return Effects{}
	}
	eff := Effects{Emit: true}
	if st.rotating && st.setPool(pool) {
		eff.Rearm, eff.Next = true, st.timing.IntervalFor(st.speed)
	} else if !st.rotating {
		st.pool = pool
	}
	return eff
}

// Rotate runs when the rotation timer fires.
func (st *State) Rotate() Effects {
	if !st.rotating {
		return Effects{}
	}
	interval := st.timing.IntervalFor(st.speed)
	switch st.layout {
	case display.LayoutGrid2x2:
		st.lastCell = st.grid2.Tick(st.pool)
		return Effects{Emit: true, Rearm: true, Next: interval}
	case display.LayoutGrid4x2:
		return Effects{Emit: true, Rearm: true, Next: st.grid4.Advance(st.pool)}
	default:
		st.single.Advance(len(st.pool))
		return Effects{Emit: true, Rearm: true, Next: interval}
	}
}

// Spin records a prize-wheel spin trigger. Triggers are dropped unless the
// wheel is live and the previous spin has finished. The spin window is measured
// on the local clock since the payload timestamp comes from the publisher.
func (st *State) Spin(payload json.RawMessage) Effects {
	if st.view.Mode != display.Live {
		return Effects{}
	}
	now := st.now()
	if now.Before(st.spinUntil) {
		return Effects{}
	}
	var p struct {
		Timestamp int64 `json:"timestamp"`
	}
	_ = json.Unmarshal(payload, &p)
	if p.Timestamp == 0 {
		p.Timestamp = now.UnixMilli()
	}
	_, d := st.timing.SpinFor(st.snap.Entity.SpinSpeed)
	st.spinAt = p.Timestamp
	st.spinUntil = now.Add(d)
	return Effects{Emit: true}
}

func (st *State) terminal(patch func(time.Time) map[string]any, reason string) Write {
	return Write{
		Table:  st.kind.Table,
		ID:     st.snap.Entity.ID,
		Patch:  patch(st.now()),
		Reason: reason,
	}
}

// Generation counts scheduler restarts.
func (st *State) Generation() uint64 { return st.generation }

// View returns the current view.
func (st *State) View() display.View { return st.view }

// Frame renders the current state.
func (st *State) Frame() Frame {
	f := Frame{
		Kind:       st.kind.Name,
		EntityID:   st.snap.Entity.ID,
		Found:      st.snap.Found,
		View:       st.view,
		Generation: st.generation,
		Host:       st.snap.Host,
		SpinAt:     st.spinAt,
	}
	if st.snap.Found {
		e := st.snap.Entity
		f.Entity = &e
	}
	if st.kind.Name == entity.PrizeWheel.Name {
		_, d := st.timing.SpinFor(st.snap.Entity.SpinSpeed)
		f.SpinMS = d.Milliseconds()
	}
	switch st.view.Mode {
	case display.Countdown:
		rem := st.countdown.Remaining()
		f.Countdown = &CountdownFrame{
			State:            st.countdown.State().String(),
			RemainingSeconds: int(rem / time.Second),
			Display:          countdown.Display(rem),
		}
	case display.Live, display.Closed:
		switch st.view.Layout {
		case display.LayoutSingle:
			f.Highlight = st.highlightFrame()
		case display.LayoutGrid2x2, display.LayoutGrid4x2:
			f.Grid = st.gridFrame()
		case display.LayoutHorizontal, display.LayoutVertical:
			f.Poll = st.pollFrame()
		}
	}
	return f
}

func (st *State) highlightFrame() *HighlightFrame {
	tr, d := st.timing.TransitionFor(st.snap.Entity.PostTransition)
	h := &HighlightFrame{
		Index:        st.single.Index(len(st.pool)),
		PoolSize:     len(st.pool),
		Transition:   string(tr),
		TransitionMS: d.Milliseconds(),
	}
	if it, ok := st.single.Current(st.pool); ok {
		h.Item = &it
	} else {
		h.Placeholder = rotation.Placeholder
	}
	return h
}

func (st *State) gridFrame() *GridFrame {
	g := &GridFrame{Changed: -1, Placeholder: rotation.Placeholder}
	switch {
	case st.grid2 != nil:
		g.Slots = st.grid2.Slots()
		g.Changed = st.lastCell
		g.FadeMS = st.timing.GridFadeFor(st.speed).Milliseconds()
	case st.grid4 != nil:
		g.Slots = st.grid4.Slots()
		g.Step = st.grid4.Step().String()
		g.FadeMS = st.timing.ShuffleFade.Milliseconds()
	}
	return g
}

func (st *State) pollFrame() *PollFrame {
	tallies := models.Tally(st.snap.Entity.Options, st.snap.Items)
	total := 0
	for _, t := range tallies {
		total += t.Votes
	}
	p := &PollFrame{
		Question:   st.snap.Entity.Question,
		Options:    tallies,
		TotalVotes: total,
		Winner:     -1,
	}
	if st.view.Mode == display.Closed {
		p.Winner = models.Winner(tallies)
	}
	if st.duration.State() == countdown.Running {
		p.RemainingSeconds = int(st.duration.Remaining() / time.Second)
	}
	return p
}

func sameIDs(a, b []models.Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
