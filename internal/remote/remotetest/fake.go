// Package remotetest provides an in-memory remote.Service for tests.
package remotetest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/faninteract/backend/internal/remote"
)

// Broadcast is one recorded PublishBroadcast call.
type Broadcast struct {
	Channel string
	Event   string
	Payload json.RawMessage
}

// Write is one recorded Update call.
type Write struct {
	Table string
	ID    string
	Patch remote.Row
}

// TimeLayout is the fixed-width timestamp format the fake stamps rows with so
// that lexical order matches time order.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

type bcSub struct {
	channel string
	event   string
	h       func(json.RawMessage)
}

// Fake is an in-memory data service. Writes emit change events synchronously
// on the calling goroutine.
type Fake struct {
	*remote.Fanout

	mu         sync.Mutex
	tables     map[string]map[string]remote.Row
	seq        int
	errs       map[string]error
	bcSubs     map[uint64]bcSub
	bcNext     uint64
	broadcasts []Broadcast
	writes     []Write
	objects    map[string][]byte

	// Now stamps created_at on inserted rows that lack one.
	Now func() time.Time
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		Fanout:  remote.NewFanout(nil),
		tables:  make(map[string]map[string]remote.Row),
		errs:    make(map[string]error),
		bcSubs:  make(map[uint64]bcSub),
		objects: make(map[string][]byte),
		Now:     time.Now,
	}
}

var _ remote.Service = (*Fake)(nil)

// SetError makes every call of op ("get", "list", "insert", "update", "delete",
// "publish", "subscribe", "upload") fail with err. A nil err clears it.
func (f *Fake) SetError(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

func (f *Fake) errFor(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

// Put stores a row without emitting a change event.
func (f *Fake) Put(table string, row remote.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(table, copyRow(row))
}

func (f *Fake) put(table string, row remote.Row) {
	t := f.tables[table]
	if t == nil {
		t = make(map[string]remote.Row)
		f.tables[table] = t
	}
	t[row.ID()] = row
}

// Row returns a copy of a stored row, or nil.
func (f *Fake) Row(table, id string) remote.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyRow(f.tables[table][id])
}

// Get implements remote.Rows.
func (f *Fake) Get(_ context.Context, table, id string) (remote.Row, error) {
	if err := f.errFor("get"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.tables[table][id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return copyRow(r), nil
}

// List implements remote.Rows.
func (f *Fake) List(_ context.Context, table string, q remote.Query) ([]remote.Row, error) {
	if err := f.errFor("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remote.Row
	for _, r := range f.tables[table] {
		if matchAll(r, q.Where) {
			out = append(out, copyRow(r))
		}
	}
	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "id"
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := sortKey(out[i][orderBy]), sortKey(out[j][orderBy])
		if a == b {
			a, b = out[i].ID(), out[j].ID()
		}
		if q.Desc {
			return a > b
		}
		return a < b
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Insert implements remote.Rows.
func (f *Fake) Insert(_ context.Context, table string, row remote.Row) (remote.Row, error) {
	if err := f.errFor("insert"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	r := copyRow(row)
	if r == nil {
		r = remote.Row{}
	}
	if r.ID() == "" {
		f.seq++
		r["id"] = fmt.Sprintf("%s-%d", table, f.seq)
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = f.Now().UTC().Format(TimeLayout)
	}
	f.put(table, r)
	out := copyRow(r)
	f.mu.Unlock()
	f.Dispatch(remote.ChangeEvent{Table: table, Type: remote.Insert, New: copyRow(r)})
	return out, nil
}

// Update implements remote.Rows.
func (f *Fake) Update(_ context.Context, table, id string, patch remote.Row) (remote.Row, error) {
	if err := f.errFor("update"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	old, ok := f.tables[table][id]
	if !ok {
		f.mu.Unlock()
		return nil, remote.ErrNotFound
	}
	r := old.Merge(patch)
	r["id"] = id
	f.put(table, r)
	f.writes = append(f.writes, Write{Table: table, ID: id, Patch: copyRow(patch)})
	out := copyRow(r)
	f.mu.Unlock()
	f.Dispatch(remote.ChangeEvent{Table: table, Type: remote.Update, New: copyRow(r), Old: copyRow(old)})
	return out, nil
}

// Delete implements remote.Rows.
func (f *Fake) Delete(ctx context.Context, table, id string) error {
	_, err := f.DeleteWhere(ctx, table, remote.Eq("id", id))
	return err
}

// DeleteWhere implements remote.Rows.
func (f *Fake) DeleteWhere(_ context.Context, table string, flt remote.Filter) (int64, error) {
	if err := f.errFor("delete"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	var removed []remote.Row
	for id, r := range f.tables[table] {
		if matchAll(r, []remote.Filter{flt}) {
			removed = append(removed, r)
			delete(f.tables[table], id)
		}
	}
	f.mu.Unlock()
	for _, r := range removed {
		f.Dispatch(remote.ChangeEvent{Table: table, Type: remote.Delete, Old: copyRow(r)})
	}
	return int64(len(removed)), nil
}

// PublishBroadcast implements remote.Broadcaster. Subscribers run synchronously.
func (f *Fake) PublishBroadcast(_ context.Context, channel, event string, payload any) error {
	if err := f.errFor("publish"); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.broadcasts = append(f.broadcasts, Broadcast{Channel: channel, Event: event, Payload: data})
	var targets []func(json.RawMessage)
	for _, s := range f.bcSubs {
		if s.channel == channel && s.event == event {
			targets = append(targets, s.h)
		}
	}
	f.mu.Unlock()
	for _, h := range targets {
		h(data)
	}
	return nil
}

// SubscribeBroadcast implements remote.Broadcaster.
func (f *Fake) SubscribeBroadcast(channel, event string, h func(json.RawMessage)) (remote.Subscription, error) {
	if err := f.errFor("subscribe"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.bcNext++
	id := f.bcNext
	f.bcSubs[id] = bcSub{channel: channel, event: event, h: h}
	f.mu.Unlock()
	return remote.SubscriptionFunc(func() {
		f.mu.Lock()
		delete(f.bcSubs, id)
		f.mu.Unlock()
	}), nil
}

// SubscribeRowChanges implements remote.Feed.
func (f *Fake) SubscribeRowChanges(table string, flt remote.Filter, h func(remote.ChangeEvent)) (remote.Subscription, error) {
	if err := f.errFor("subscribe"); err != nil {
		return nil, err
	}
	return f.Fanout.SubscribeRowChanges(table, flt, h)
}

// Upload implements remote.ObjectStore.
func (f *Fake) Upload(_ context.Context, bucket, path, _ string, body io.Reader, _ int64) error {
	if err := f.errFor("upload"); err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	f.mu.Lock()
	f.objects[bucket+"/"+path] = buf.Bytes()
	f.mu.Unlock()
	return nil
}

// PublicURL implements remote.ObjectStore.
func (f *Fake) PublicURL(bucket, path string) string {
	return "https://objects.test/" + bucket + "/" + path
}

// Object returns an uploaded object.
func (f *Fake) Object(bucket, path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[bucket+"/"+path]
	return b, ok
}

// Broadcasts returns every published broadcast.
func (f *Fake) Broadcasts() []Broadcast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Broadcast(nil), f.broadcasts...)
}

// Writes returns every Update call.
func (f *Fake) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// ActiveSubscriptions counts open row-change and broadcast subscriptions.
func (f *Fake) ActiveSubscriptions() int {
	f.mu.Lock()
	n := len(f.bcSubs)
	f.mu.Unlock()
	return n + f.Fanout.Len()
}

func matchAll(r remote.Row, where []remote.Filter) bool {
	for _, w := range where {
		ev := remote.ChangeEvent{Type: remote.Update, New: r}
		if !ev.Matches(w) {
			return false
		}
	}
	return true
}

func sortKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case int:
		return fmt.Sprintf("%020d", t)
	case float64:
		return fmt.Sprintf("%020.6f", t)
	default:
		return fmt.Sprint(t)
	}
}

func copyRow(r remote.Row) remote.Row {
	if r == nil {
		return nil
	}
	out := make(remote.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
