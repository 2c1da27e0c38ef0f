package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/remote"
)

// envelope is the message published on a broadcast channel.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// transport moves raw envelopes between instances.
type transport interface {
	publish(ctx context.Context, channel string, body []byte) error
	subscribe(channel string, deliver func(body []byte)) (cancel func(), err error)
}

type handler struct {
	event string
	h     func(json.RawMessage)
}

type channelSubs struct {
	cancel   func()
	handlers map[uint64]handler
}

// router keeps one transport subscription per channel and fans envelopes out
// to the handlers registered for their event. The transport subscription is
// opened with the first handler and closed with the last.
type router struct {
	t      transport
	logger *zap.Logger

	mu       sync.Mutex
	channels map[string]*channelSubs
	nextID   uint64
}

func newRouter(t transport, logger *zap.Logger) *router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &router{t: t, logger: logger, channels: make(map[string]*channelSubs)}
}

// PublishBroadcast implements remote.Broadcaster.
func (r *router) PublishBroadcast(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal broadcast payload: %w", err)
	}
	body, err := json.Marshal(envelope{Event: event, Data: data, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	if err := r.t.publish(ctx, channel, body); err != nil {
		return fmt.Errorf("publish %s/%s: %w", channel, event, err)
	}
	return nil
}

// SubscribeBroadcast implements remote.Broadcaster. The transport
// subscription is opened without holding the lock; when two callers race to
// open the same channel the loser closes its own subscription and joins the
// winner's.
func (r *router) SubscribeBroadcast(channel, event string, h func(json.RawMessage)) (remote.Subscription, error) {
	r.mu.Lock()
	cs, ok := r.channels[channel]
	var extra func()
	if !ok {
		r.mu.Unlock()
		opened := &channelSubs{handlers: make(map[uint64]handler)}
		cancel, err := r.t.subscribe(channel, func(body []byte) { r.deliver(opened, channel, body) })
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", channel, err)
		}
		opened.cancel = cancel
		r.mu.Lock()
		if cs, ok = r.channels[channel]; ok {
			extra = cancel
		} else {
			cs = opened
			r.channels[channel] = cs
			r.logger.Debug("broadcast channel opened", zap.String("channel", channel))
		}
	}
	r.nextID++
	id := r.nextID
	cs.handlers[id] = handler{event: event, h: h}
	r.mu.Unlock()
	if extra != nil {
		extra()
	}
	return remote.SubscriptionFunc(func() { r.release(channel, id) }), nil
}

func (r *router) release(channel string, id uint64) {
	r.mu.Lock()
	cs, ok := r.channels[channel]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(cs.handlers, id)
	var cancel func()
	if len(cs.handlers) == 0 {
		delete(r.channels, channel)
		cancel = cs.cancel
	}
	r.mu.Unlock()
	if cancel != nil {
		cancel()
		r.logger.Debug("broadcast channel closed", zap.String("channel", channel))
	}
}

// deliver fans body out to the handlers of from. Messages arriving on a
// subscription that is no longer the channel's current one are dropped.
func (r *router) deliver(from *channelSubs, channel string, body []byte) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		r.logger.Warn("dropping malformed broadcast", zap.String("channel", channel), zap.Error(err))
		return
	}
	r.mu.Lock()
	var targets []func(json.RawMessage)
	if cs, ok := r.channels[channel]; ok && cs == from {
		for _, h := range cs.handlers {
			if h.event == env.Event {
				targets = append(targets, h.h)
			}
		}
	}
	r.mu.Unlock()
	for _, h := range targets {
		h(env.Data)
	}
}

// openChannels returns the number of open transport subscriptions.
func (r *router) openChannels() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}
