// Package rotation decides which approved items occupy the visible slots of a
// wall at every tick. The schedulers are plain state machines; the caller owns
// the clock.
package rotation

import "time"

// Speed is the host-selected display cadence.
type Speed string

const (
	Slow   Speed = "Slow"
	Medium Speed = "Medium"
	Fast   Speed = "Fast"
)

// ParseSpeed maps a stored transition_speed to a Speed. Unknown values are Medium.
func ParseSpeed(s string) Speed {
	switch Speed(s) {
	case Slow, Fast:
		return Speed(s)
	default:
		return Medium
	}
}

// Transition is the single-highlight enter/exit animation.
type Transition string

const (
	FadeInOut     Transition = "Fade In / Fade Out"
	SlideUp       Transition = "Slide Up / Slide Out"
	SlideDown     Transition = "Slide Down / Slide Out"
	SlideLeft     Transition = "Slide Left / Slide Right"
	ZoomInOut     Transition = "Zoom In / Zoom Out"
	Flip          Transition = "Flip"
	RotateInOut   Transition = "Rotate In / Rotate Out"
	DefaultEffect            = FadeInOut
)

// SpinSpeed is the prize-wheel spin length setting.
type SpinSpeed string

const (
	SpinShort  SpinSpeed = "Short"
	SpinMedium SpinSpeed = "Medium"
	SpinLong   SpinSpeed = "Long"
)

// Placeholder is shown in any slot with nothing to display.
const Placeholder = "Fan posts will appear here soon!"

// Timing holds every duration the schedulers use.
type Timing struct {
	Interval     map[Speed]time.Duration
	GridFade     map[Speed]time.Duration
	Transition   map[Transition]time.Duration
	Spin         map[SpinSpeed]time.Duration
	ShuffleFade  time.Duration
	ShufflePause time.Duration
	ExpirySweep  time.Duration
}

// DefaultTiming is the stock cadence: 12s/8s/4s per item.
func DefaultTiming() Timing {
	return Timing{
		Interval: map[Speed]time.Duration{
			Slow:   12 * time.Second,
			Medium: 8 * time.Second,
			Fast:   4 * time.Second,
		},
		GridFade: map[Speed]time.Duration{
			Slow:   1600 * time.Millisecond,
			Medium: 1200 * time.Millisecond,
			Fast:   800 * time.Millisecond,
		},
		Transition: map[Transition]time.Duration{
			FadeInOut:   800 * time.Millisecond,
			SlideUp:     700 * time.Millisecond,
			SlideDown:   700 * time.Millisecond,
			SlideLeft:   700 * time.Millisecond,
			ZoomInOut:   600 * time.Millisecond,
			Flip:        800 * time.Millisecond,
			RotateInOut: 800 * time.Millisecond,
		},
		Spin: map[SpinSpeed]time.Duration{
			SpinShort:  10 * time.Second,
			SpinMedium: 15 * time.Second,
			SpinLong:   20 * time.Second,
		},
		ShuffleFade:  1200 * time.Millisecond,
		ShufflePause: 300 * time.Millisecond,
		ExpirySweep:  time.Minute,
	}
}

// IntervalFor returns the hold time per item at speed s.
func (t Timing) IntervalFor(s Speed) time.Duration {
	if d, ok := t.Interval[s]; ok && d > 0 {
		return d
	}
	return DefaultTiming().Interval[Medium]
}

// GridFadeFor returns the 2×2 cross-fade length at speed s.
func (t Timing) GridFadeFor(s Speed) time.Duration {
	if d, ok := t.GridFade[s]; ok && d > 0 {
		return d
	}
	return DefaultTiming().GridFade[Medium]
}

// TransitionFor resolves a stored post_transition to a known effect and its length.
func (t Timing) TransitionFor(name string) (Transition, time.Duration) {
	tr := Transition(name)
	d, ok := t.Transition[tr]
	if !ok {
		tr = DefaultEffect
		d = t.Transition[tr]
	}
	if d <= 0 {
		d = DefaultTiming().Transition[tr]
	}
	return tr, d
}

// SpinFor resolves a stored spin_speed to a known speed and the spin length.
// Unknown values are Medium.
func (t Timing) SpinFor(name string) (SpinSpeed, time.Duration) {
	s := SpinSpeed(name)
	if _, ok := DefaultTiming().Spin[s]; !ok {
		s = SpinMedium
	}
	if d, ok := t.Spin[s]; ok && d > 0 {
		return s, d
	}
	return s, DefaultTiming().Spin[s]
}
