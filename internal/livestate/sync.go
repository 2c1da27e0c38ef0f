// Package livestate keeps one entity and its approved items current on a
// display by loading them once and then merging change events.
package livestate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/models"
	"github.com/faninteract/backend/internal/remote"
)

// EventReload is the broadcast event that asks displays to refetch.
const EventReload = "UPDATE"

// Snapshot is the best-known state of one entity.
type Snapshot struct {
	Found    bool
	Row      remote.Row
	Entity   models.Entity
	Host     *models.Host
	Items    []models.Item
	ShowLive bool
	Version  uint64
}

// Signal is a broadcast event forwarded to the owner of a Sync.
type Signal struct {
	Event   string
	Payload json.RawMessage
}

// Options tune a Sync.
type Options struct {
	// Signals lists extra broadcast events to forward on Signals().
	Signals []string
}

// Sync is the live copy of one entity. It is safe for concurrent use.
type Sync struct {
	kind   entity.Kind
	id     string
	svc    remote.Service
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	row     remote.Row
	found   bool
	host    *models.Host
	proj    *Projection
	version uint64
	loading int
	pending []remote.ChangeEvent
	subs    []remote.Subscription

	updates   chan struct{}
	signals   chan Signal
	closeOnce sync.Once
}

// Open loads the entity and its approved items and subscribes to their
// change feeds. Failures are logged and leave an empty snapshot; the Sync
// is usable either way. Cancelling ctx has the same effect as Close.
func Open(ctx context.Context, svc remote.Service, k entity.Kind, id string, opts Options, logger *zap.Logger) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	inner, cancel := context.WithCancel(ctx)
	s := &Sync{
		kind:    k,
		id:      id,
		svc:     svc,
		logger:  logger.With(zap.String("kind", k.Name), zap.String("entity_id", id)),
		ctx:     inner,
		cancel:  cancel,
		proj:    NewProjection(k),
		updates: make(chan struct{}, 1),
		signals: make(chan Signal, 8),
	}
	s.subscribe(opts)
	s.load(inner)
	go func() {
		<-inner.Done()
		s.Close()
	}()
	return s
}

func (s *Sync) subscribe(opts Options) {
	// Events arriving before the first load completes are queued and
	// replayed on top of it.
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()

	sub, err := s.svc.SubscribeRowChanges(s.kind.Table, remote.Eq("id", s.id), s.onChange)
	if err != nil {
		s.logger.Warn("subscribe entity changes failed", zap.Error(err))
	} else {
		s.track(sub)
	}
	if s.kind.HasItems() {
		sub, err := s.svc.SubscribeRowChanges(s.kind.ItemTable, remote.Eq(s.kind.ParentColumn, s.id), s.onChange)
		if err != nil {
			s.logger.Warn("subscribe item changes failed", zap.Error(err))
		} else {
			s.track(sub)
		}
	}
	channel := s.kind.Channel(s.id)
	sub, err = s.svc.SubscribeBroadcast(channel, EventReload, func(json.RawMessage) {
		go s.Reload(s.ctx)
	})
	if err != nil {
		s.logger.Warn("subscribe reload broadcast failed", zap.Error(err))
	} else {
		s.track(sub)
	}
	for _, ev := range opts.Signals {
		ev := ev
		sub, err := s.svc.SubscribeBroadcast(channel, ev, func(p json.RawMessage) {
			select {
			case s.signals <- Signal{Event: ev, Payload: p}:
			default:
				s.logger.Warn("signal dropped", zap.String("event", ev))
			}
		})
		if err != nil {
			s.logger.Warn("subscribe broadcast failed", zap.String("event", ev), zap.Error(err))
			continue
		}
		s.track(sub)
	}
}

func (s *Sync) track(sub remote.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		sub.Unsubscribe()
		return
	}
	s.subs = append(s.subs, sub)
}

// Reload refetches the entity and its approved items. A failed fetch keeps
// the corresponding part of the snapshot unchanged.
func (s *Sync) Reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	s.load(ctx)
}

// load fetches and applies state. The caller has already incremented loading.
func (s *Sync) load(ctx context.Context) {
	row, rowErr := s.svc.Get(ctx, s.kind.Table, s.id)
	if rowErr != nil {
		if errors.Is(rowErr, remote.ErrNotFound) {
			s.logger.Warn("entity not found")
		} else {
			s.logger.Warn("fetch entity failed", zap.Error(rowErr))
		}
	}
	var host *models.Host
	if rowErr == nil {
		host = s.fetchHost(ctx, row)
	}
	var items []remote.Row
	var itemsErr error
	if s.kind.HasItems() {
		q := remote.Query{Where: []remote.Filter{remote.Eq(s.kind.ParentColumn, s.id)}, OrderBy: "created_at"}
		if s.kind.Moderated() {
			q.Where = append(q.Where, remote.Eq(s.kind.ModerationColumn, models.ItemApproved))
		}
		items, itemsErr = s.svc.List(ctx, s.kind.ItemTable, q)
		if itemsErr != nil {
			s.logger.Warn("fetch items failed", zap.Error(itemsErr))
		}
	}

	s.mu.Lock()
	if rowErr == nil {
		s.row = row
		s.found = true
		if host != nil {
			s.host = host
		}
	}
	if s.kind.HasItems() && itemsErr == nil {
		s.proj.Reset(items)
	}
	s.loading--
	if s.loading == 0 {
		for _, ev := range s.pending {
			s.applyLocked(ev)
		}
		s.pending = nil
	}
	s.version++
	s.mu.Unlock()
	s.notify()
}

func (s *Sync) fetchHost(ctx context.Context, row remote.Row) *models.Host {
	hostID, _ := row["host_id"].(string)
	if hostID == "" {
		return nil
	}
	h, err := s.svc.Get(ctx, "hosts", hostID)
	if err != nil {
		s.logger.Debug("fetch host branding failed", zap.Error(err))
		return nil
	}
	host := models.HostFromRow(h)
	return &host
}

func (s *Sync) onChange(ev remote.ChangeEvent) {
	s.mu.Lock()
	if s.loading > 0 {
		s.pending = append(s.pending, ev)
		s.mu.Unlock()
		return
	}
	changed := s.applyLocked(ev)
	if changed {
		s.version++
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Sync) applyLocked(ev remote.ChangeEvent) bool {
	if ev.Table == s.kind.Table {
		switch ev.Type {
		case remote.Delete:
			s.row = nil
			s.found = false
		default:
			// Last write wins: the incoming row's fields replace ours.
			s.row = s.row.Merge(ev.New)
			s.found = true
		}
		return true
	}
	if ev.Table == s.kind.ItemTable {
		return s.proj.Apply(ev)
	}
	return false
}

func (s *Sync) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current state.
func (s *Sync) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Found:   s.found,
		Items:   s.proj.Items(),
		Version: s.version,
	}
	if s.row != nil {
		snap.Row = s.row.Merge(nil)
		snap.Entity = models.EntityFromRow(s.row)
	}
	if s.host != nil {
		h := *s.host
		snap.Host = &h
	}
	snap.ShowLive = s.found && snap.Entity.Status == models.StatusLive
	return snap
}

// Updates receives a value after the snapshot changes. Notifications coalesce.
func (s *Sync) Updates() <-chan struct{} { return s.updates }

// Signals receives the extra broadcast events requested in Options.
func (s *Sync) Signals() <-chan Signal { return s.signals }

// Done is closed once the Sync is closed.
func (s *Sync) Done() <-chan struct{} { return s.ctx.Done() }

// Close releases every subscription exactly once.
func (s *Sync) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		subs := s.subs
		s.subs = nil
		s.mu.Unlock()
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		s.logger.Debug("live state closed", zap.Int("subscriptions", len(subs)))
	})
}
