package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/internal/surface"
)

var (
	_ remote.Broadcaster = (*RedisBroadcaster)(nil)
	_ remote.Broadcaster = (*NATSBroadcaster)(nil)
)

// memTransport loops published envelopes back to local subscribers.
type memTransport struct {
	mu     sync.Mutex
	subs   map[string]map[int]func([]byte)
	next   int
	opened int
	closed int
}

func newMemTransport() *memTransport {
	return &memTransport{subs: make(map[string]map[int]func([]byte))}
}

func (m *memTransport) publish(_ context.Context, channel string, body []byte) error {
	m.mu.Lock()
	var targets []func([]byte)
	for _, d := range m.subs[channel] {
		targets = append(targets, d)
	}
	m.mu.Unlock()
	for _, d := range targets {
		d(body)
	}
	return nil
}

func (m *memTransport) subscribe(channel string, deliver func([]byte)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[int]func([]byte))
	}
	m.next++
	id := m.next
	m.subs[channel][id] = deliver
	m.opened++
	return func() {
		m.mu.Lock()
		delete(m.subs[channel], id)
		m.closed++
		m.mu.Unlock()
	}, nil
}

func TestRouterFiltersByEvent(t *testing.T) {
	mt := newMemTransport()
	r := newRouter(mt, nil)

	var got []string
	spin, err := r.SubscribeBroadcast("prizewheel-1", "spin", func(p json.RawMessage) { got = append(got, "spin:"+string(p)) })
	require.NoError(t, err)
	upd, err := r.SubscribeBroadcast("prizewheel-1", "UPDATE", func(p json.RawMessage) { got = append(got, "update") })
	require.NoError(t, err)
	assert.Equal(t, 1, mt.opened)

	require.NoError(t, r.PublishBroadcast(context.Background(), "prizewheel-1", "spin", map[string]int64{"timestamp": 7}))
	require.NoError(t, r.PublishBroadcast(context.Background(), "prizewheel-1", "UPDATE", map[string]string{}))
	require.NoError(t, r.PublishBroadcast(context.Background(), "prizewheel-2", "spin", nil))
	assert.Equal(t, []string{`spin:{"timestamp":7}`, "update"}, got)

	spin.Unsubscribe()
	assert.Equal(t, 0, mt.closed)
	upd.Unsubscribe()
	upd.Unsubscribe()
	assert.Equal(t, 1, mt.closed)
	assert.Zero(t, r.openChannels())
}

func TestRouterDropsMalformedEnvelope(t *testing.T) {
	mt := newMemTransport()
	r := newRouter(mt, nil)
	called := false
	_, err := r.SubscribeBroadcast("wall-1", "UPDATE", func(json.RawMessage) { called = true })
	require.NoError(t, err)
	require.NoError(t, mt.publish(context.Background(), "wall-1", []byte("not json")))
	assert.False(t, called)
}

// gatedTransport holds subscribe calls for gated channels until released.
type gatedTransport struct {
	*memTransport
	entered chan string
	gates   map[string]chan struct{}
}

func (g *gatedTransport) subscribe(channel string, deliver func([]byte)) (func(), error) {
	if gate, ok := g.gates[channel]; ok {
		g.entered <- channel
		<-gate
	}
	return g.memTransport.subscribe(channel, deliver)
}

func TestRouterSlowSubscribeDoesNotBlockOtherChannels(t *testing.T) {
	gt := &gatedTransport{
		memTransport: newMemTransport(),
		entered:      make(chan string, 4),
		gates:        map[string]chan struct{}{"wall-slow": make(chan struct{})},
	}
	r := newRouter(gt, nil)

	slowDone := make(chan error, 1)
	go func() {
		_, err := r.SubscribeBroadcast("wall-slow", "UPDATE", func(json.RawMessage) {})
		slowDone <- err
	}()
	assert.Equal(t, "wall-slow", <-gt.entered)

	done := make(chan struct{})
	var got []string
	go func() {
		defer close(done)
		sub, err := r.SubscribeBroadcast("wall-fast", "UPDATE", func(p json.RawMessage) { got = append(got, string(p)) })
		if !assert.NoError(t, err) {
			return
		}
		assert.NoError(t, r.PublishBroadcast(context.Background(), "wall-fast", "UPDATE", 1))
		sub.Unsubscribe()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe on another channel blocked behind a pending subscribe")
	}
	assert.Equal(t, []string{"1"}, got)

	close(gt.gates["wall-slow"])
	require.NoError(t, <-slowDone)
	assert.Equal(t, 1, r.openChannels())
}

func TestRouterConcurrentOpenSharesOneSubscription(t *testing.T) {
	gate := make(chan struct{})
	gt := &gatedTransport{
		memTransport: newMemTransport(),
		entered:      make(chan string, 4),
		gates:        map[string]chan struct{}{"prizewheel-1": gate},
	}
	r := newRouter(gt, nil)

	var mu sync.Mutex
	var got []string
	subs := make(chan remote.Subscription, 2)
	for _, name := range []string{"a", "b"} {
		name := name
		go func() {
			sub, err := r.SubscribeBroadcast("prizewheel-1", surface.EventSpin, func(json.RawMessage) {
				mu.Lock()
				got = append(got, name)
				mu.Unlock()
			})
			assert.NoError(t, err)
			subs <- sub
		}()
	}
	<-gt.entered
	<-gt.entered
	close(gate)
	a, b := <-subs, <-subs

	gt.mu.Lock()
	assert.Equal(t, 2, gt.opened)
	assert.Equal(t, 1, gt.closed)
	gt.mu.Unlock()
	assert.Equal(t, 1, r.openChannels())

	require.NoError(t, r.PublishBroadcast(context.Background(), "prizewheel-1", surface.EventSpin, nil))
	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b"}, got)
	mu.Unlock()

	a.Unsubscribe()
	b.Unsubscribe()
	assert.Zero(t, r.openChannels())
}

func TestHubCountsScreens(t *testing.T) {
	h := NewHub(nil)
	var last int
	h.SetScreenChangeHandler(func(kind, id string, n int) { last = n })

	a := &Client{ID: "a", Kind: "wall", EntityID: "w1"}
	b := &Client{ID: "b", Kind: "wall", EntityID: "w1"}
	c := &Client{ID: "c", Kind: "poll", EntityID: "w1"}
	h.Register(a)
	h.Register(b)
	h.Register(c)
	assert.Equal(t, 2, h.ScreenCount("wall", "w1"))
	assert.Equal(t, 1, h.ScreenCount("poll", "w1"))
	assert.Equal(t, 1, last)

	h.Unregister(a)
	assert.Equal(t, 1, h.ScreenCount("wall", "w1"))
	h.Unregister(b)
	assert.Equal(t, 0, h.ScreenCount("wall", "w1"))
	assert.Equal(t, 0, last)
}

type stubRunner struct {
	started chan struct{}
	ended   chan struct{}
}

func (s *stubRunner) Run(ctx context.Context, sink surface.Sink) error {
	close(s.started)
	defer close(s.ended)
	if err := sink(surface.Frame{Kind: "wall", EntityID: "w1", Found: true}); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func TestServeDisplayStreamsFrames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	runner := &stubRunner{started: make(chan struct{}), ended: make(chan struct{})}
	var gotKind, gotID string
	r := gin.New()
	r.GET("/ws/display", ServeDisplay(hub, func(k entity.Kind, id string) Runner {
		gotKind, gotID = k.Name, id
		return runner
	}, zap.NewNop()))
	r.GET("/displays/:kind/:id/screens", ScreensHandler(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/display?kind=wall&id=w1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventFrame, msg.Event)
	var f surface.Frame
	require.NoError(t, json.Unmarshal(msg.Data, &f))
	assert.Equal(t, "w1", f.EntityID)
	<-runner.started
	assert.Equal(t, "wall", gotKind)
	assert.Equal(t, "w1", gotID)
	assert.Equal(t, 1, hub.ScreenCount("wall", "w1"))

	resp, err := http.Get(srv.URL + "/displays/wall/w1/screens")
	require.NoError(t, err)
	var body struct {
		Data struct {
			Screens int `json:"screens"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, 1, body.Data.Screens)

	require.NoError(t, conn.Close())
	select {
	case <-runner.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("runner not stopped after disconnect")
	}
	assert.Eventually(t, func() bool { return hub.ScreenCount("wall", "w1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeDisplayRejectsBadQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/display", ServeDisplay(NewHub(nil), func(entity.Kind, string) Runner { return nil }, zap.NewNop()))

	for _, q := range []string{"", "?kind=wall", "?kind=quiz&id=1"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws/display"+q, nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}
