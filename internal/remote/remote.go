// Package remote is the data service every display and host action talks to:
// relational rows, a per-row change feed, ephemeral broadcast channels and
// object storage.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrNotFound      = errors.New("row not found")
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	// ErrConflict is returned when an insert violates a unique constraint.
	ErrConflict = errors.New("row conflicts with an existing row")
)

// Row is a single table row as a JSON object.
type Row map[string]any

// ID returns the row's id column as a string.
func (r Row) ID() string {
	if r == nil {
		return ""
	}
	return valueKey(r["id"])
}

// Merge copies patch into a new row; patch fields win.
func (r Row) Merge(patch Row) Row {
	out := make(Row, len(r)+len(patch))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// ChangeEvent is one row-level change delivered by the feed.
type ChangeEvent struct {
	Table string    `json:"table"`
	Type  EventType `json:"type"`
	New   Row       `json:"new"`
	Old   Row       `json:"old"`
}

// Filter restricts a query or subscription to rows where Column equals Value.
type Filter struct {
	Column string
	Value  any
}

// Eq builds a Filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Query describes a filtered, ordered read.
type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Subscription is released with Unsubscribe. Calling it more than once is a no-op.
type Subscription interface {
	Unsubscribe()
}

// Rows is read/write access to relational rows.
type Rows interface {
	Get(ctx context.Context, table, id string) (Row, error)
	List(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table, id string, patch Row) (Row, error)
	Delete(ctx context.Context, table, id string) error
	DeleteWhere(ctx context.Context, table string, f Filter) (int64, error)
}

// Feed delivers row changes for one table, optionally scoped by a filter.
// Handlers run on the feed's dispatch goroutine and must not block.
type Feed interface {
	SubscribeRowChanges(table string, f Filter, h func(ChangeEvent)) (Subscription, error)
}

// Broadcaster is the low-latency, non-persisted signal channel.
type Broadcaster interface {
	PublishBroadcast(ctx context.Context, channel, event string, payload any) error
	SubscribeBroadcast(channel, event string, h func(payload json.RawMessage)) (Subscription, error)
}

// ObjectStore stores uploaded media.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path, contentType string, body io.Reader, size int64) error
	PublicURL(bucket, path string) string
}

// Service is the full data service.
type Service interface {
	Rows
	Feed
	Broadcaster
	ObjectStore
}

// Matches reports whether the event concerns rows selected by f. The NEW row
// is consulted for inserts and updates, the OLD row for deletes.
func (e ChangeEvent) Matches(f Filter) bool {
	if f.Column == "" {
		return true
	}
	row := e.New
	if e.Type == Delete || row == nil {
		row = e.Old
	}
	if row == nil {
		return false
	}
	v, ok := row[f.Column]
	if !ok {
		return false
	}
	return valueKey(v) == valueKey(f.Value)
}

func valueKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

type funcSubscription struct {
	once sync.Once
	fn   func()
}

// SubscriptionFunc adapts a release function into a Subscription that runs it at most once.
func SubscriptionFunc(release func()) Subscription {
	return &funcSubscription{fn: release}
}

func (s *funcSubscription) Unsubscribe() {
	s.once.Do(func() {
		if s.fn != nil {
			s.fn()
		}
	})
}
