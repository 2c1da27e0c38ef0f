package surface

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faninteract/backend/internal/display"
	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/internal/remote/remotetest"
	"github.com/faninteract/backend/internal/rotation"
)

type harness struct {
	fake   *remotetest.Fake
	clock  *clockwork.FakeClock
	frames chan Frame
	cancel context.CancelFunc
	done   chan error
	ctx    context.Context
}

func start(t *testing.T, f *remotetest.Fake, k entity.Kind, id string, sink func(Frame) error) *harness {
	t.Helper()
	h := &harness{
		fake:   f,
		clock:  clockwork.NewFakeClockAt(t0),
		frames: make(chan Frame, 256),
		done:   make(chan error, 1),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	t.Cleanup(h.cancel)
	s := New(Config{Service: f, Kind: k, EntityID: id, Clock: h.clock, Timing: rotation.DefaultTiming()})
	if sink == nil {
		sink = func(fr Frame) error {
			h.frames <- fr
			return nil
		}
	}
	go func() { h.done <- s.Run(h.ctx, sink) }()
	return h
}

func (h *harness) next(t *testing.T) Frame {
	t.Helper()
	select {
	case fr := <-h.frames:
		return fr
	case <-time.After(2 * time.Second):
		t.Fatal("no frame")
		return Frame{}
	}
}

func (h *harness) waitFor(t *testing.T, cond func(Frame) bool) Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case fr := <-h.frames:
			if cond(fr) {
				return fr
			}
		case <-deadline:
			t.Fatal("condition never met")
			return Frame{}
		}
	}
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestRunCountdownGoesLiveWithOneWrite(t *testing.T) {
	f := remotetest.New()
	f.Put("events", remote.Row{"id": "w1", "status": "inactive", "countdown": "30 Seconds", "countdown_active": true})
	h := start(t, f, entity.Wall, "w1", nil)

	fr := h.next(t)
	require.Equal(t, display.Countdown, fr.View.Mode)
	require.Equal(t, 30, fr.Countdown.RemainingSeconds)
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 2))

	for i := 1; i < 30; i++ {
		h.clock.Advance(time.Second)
		fr = h.next(t)
		require.Equal(t, 30-i, fr.Countdown.RemainingSeconds)
	}
	assert.Empty(t, f.Writes())

	h.clock.Advance(time.Second)
	fr = h.waitFor(t, func(fr Frame) bool { return fr.View.Mode == display.Live })
	assert.Equal(t, "live", entityStatus(fr))

	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Second)
	}
	writes := f.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "live", writes[0].Patch["status"])
	assert.Equal(t, false, writes[0].Patch["countdown_active"])
	assert.Equal(t, "live", f.Row("events", "w1")["status"])
	h.stop(t)
}

func entityStatus(fr Frame) string {
	if fr.Entity == nil {
		return ""
	}
	return string(fr.Entity.Status)
}

func TestRunRotatesFivePostsAtMediumSpeed(t *testing.T) {
	f := remotetest.New()
	f.Put("events", remote.Row{"id": "w1", "status": "live", "layout_type": "1 Column", "transition_speed": "Medium"})
	for i := 0; i < 5; i++ {
		f.Put("submissions", remote.Row{
			"id": fmt.Sprintf("s%d", i), "event_id": "w1", "status": "approved",
			"created_at": t0.Add(time.Duration(i) * time.Second).Format(remotetest.TimeLayout),
		})
	}
	h := start(t, f, entity.Wall, "w1", nil)

	fr := h.next(t)
	require.NotNil(t, fr.Highlight)
	assert.Equal(t, "s0", fr.Highlight.Item.ID)

	for i := 1; i <= 7; i++ {
		require.NoError(t, h.clock.BlockUntilContext(h.ctx, 3))
		h.clock.Advance(8 * time.Second)
		fr = h.waitFor(t, func(fr Frame) bool { return fr.Highlight != nil && fr.Highlight.Index == i%5 })
		assert.Equal(t, fmt.Sprintf("s%d", i%5), fr.Highlight.Item.ID)
	}
	h.stop(t)
}

func TestRunPicksUpApprovedPost(t *testing.T) {
	f := remotetest.New()
	f.Put("events", remote.Row{"id": "w1", "status": "live"})
	h := start(t, f, entity.Wall, "w1", nil)

	fr := h.next(t)
	assert.Equal(t, rotation.Placeholder, fr.Highlight.Placeholder)

	_, err := f.Insert(context.Background(), "submissions", remote.Row{"event_id": "w1", "status": "pending", "message": "hi"})
	require.NoError(t, err)
	_, err = f.Update(context.Background(), "submissions", "submissions-1", remote.Row{"status": "approved"})
	require.NoError(t, err)

	fr = h.waitFor(t, func(fr Frame) bool { return fr.Highlight != nil && fr.Highlight.Item != nil })
	assert.Equal(t, "hi", fr.Highlight.Item.Message)
	h.stop(t)
}

func TestRunSpinBroadcast(t *testing.T) {
	f := remotetest.New()
	f.Put("prize_wheels", remote.Row{"id": "pw1", "status": "live"})
	h := start(t, f, entity.PrizeWheel, "pw1", nil)
	h.next(t)

	require.NoError(t, f.PublishBroadcast(context.Background(), entity.PrizeWheel.Channel("pw1"), EventSpin, map[string]any{"timestamp": 1767000000000}))
	fr := h.waitFor(t, func(fr Frame) bool { return fr.SpinAt != 0 })
	assert.Equal(t, int64(1767000000000), fr.SpinAt)
	h.stop(t)
}

func TestRunReleasesSubscriptions(t *testing.T) {
	f := remotetest.New()
	f.Put("events", remote.Row{"id": "w1", "status": "live"})
	h := start(t, f, entity.Wall, "w1", nil)
	h.next(t)
	assert.Equal(t, 3, f.ActiveSubscriptions())

	h.stop(t)
	assert.Zero(t, f.ActiveSubscriptions())
}

func TestRunEndsWhenSinkFails(t *testing.T) {
	f := remotetest.New()
	f.Put("events", remote.Row{"id": "w1", "status": "live"})
	gone := errors.New("client gone")
	h := start(t, f, entity.Wall, "w1", func(Frame) error { return gone })

	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, gone)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
	assert.Zero(t, f.ActiveSubscriptions())
}

func TestRunSurvivesFailedWrite(t *testing.T) {
	f := remotetest.New()
	f.Put("events", remote.Row{"id": "w1", "status": "inactive", "countdown": "1 second", "countdown_active": true})
	f.SetError("update", errors.New("unavailable"))
	h := start(t, f, entity.Wall, "w1", nil)

	h.next(t)
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 2))
	h.clock.Advance(time.Second)
	fr := h.next(t)
	assert.Equal(t, display.Countdown, fr.View.Mode)
	assert.Equal(t, "expired", fr.Countdown.State)
	assert.Empty(t, f.Writes())
	h.stop(t)
}
