package remote

import (
	"sync"

	"go.uber.org/zap"
)

// Fanout routes change events to the subscriptions whose table and filter match.
// Dispatch is sequential so per-row commit order is preserved for every handler.
type Fanout struct {
	mu     sync.RWMutex
	subs   map[uint64]feedSub
	nextID uint64
	logger *zap.Logger
}

type feedSub struct {
	table  string
	filter Filter
	h      func(ChangeEvent)
}

// NewFanout creates an empty Fanout.
func NewFanout(logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{subs: make(map[uint64]feedSub), logger: logger}
}

// SubscribeRowChanges registers h for changes on table matching f.
func (f *Fanout) SubscribeRowChanges(table string, filter Filter, h func(ChangeEvent)) (Subscription, error) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs[id] = feedSub{table: table, filter: filter, h: h}
	f.mu.Unlock()
	f.logger.Debug("row change subscription added", zap.String("table", table), zap.String("column", filter.Column))
	return SubscriptionFunc(func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		f.logger.Debug("row change subscription released", zap.String("table", table))
	}), nil
}

// Dispatch delivers ev to every matching subscriber.
func (f *Fanout) Dispatch(ev ChangeEvent) {
	f.mu.RLock()
	var targets []func(ChangeEvent)
	for _, s := range f.subs {
		if s.table == ev.Table && ev.Matches(s.filter) {
			targets = append(targets, s.h)
		}
	}
	f.mu.RUnlock()
	for _, h := range targets {
		h(ev)
	}
}

// Len returns the number of live subscriptions.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
