package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// FeedConfig configures the LISTEN/NOTIFY change feed.
type FeedConfig struct {
	DSN            string
	Channel        string
	PingInterval   time.Duration
	MinReconnect   time.Duration
	MaxReconnect   time.Duration
	RefetchTimeout time.Duration
}

// DefaultFeedConfig returns the feed settings used by the server.
func DefaultFeedConfig(dsn string) FeedConfig {
	return FeedConfig{
		DSN:            dsn,
		Channel:        "row_changes",
		PingInterval:   90 * time.Second,
		MinReconnect:   10 * time.Second,
		MaxReconnect:   time.Minute,
		RefetchTimeout: 5 * time.Second,
	}
}

// notification is the payload written by the notify_row_change trigger.
// Rows too large for a NOTIFY payload arrive truncated and are re-read.
type notification struct {
	Table     string    `json:"table"`
	Type      EventType `json:"type"`
	New       Row       `json:"new"`
	Old       Row       `json:"old"`
	Truncated bool      `json:"truncated"`
}

// PQFeed is a Feed backed by PostgreSQL LISTEN/NOTIFY. Reconnection is left
// to pq.Listener; notifications missed while disconnected are not replayed.
type PQFeed struct {
	*Fanout
	listener *pq.Listener
	rows     Rows
	cfg      FeedConfig
	logger   *zap.Logger
}

// NewPQFeed starts listening on cfg.Channel. rows is used to re-read truncated rows.
func NewPQFeed(cfg FeedConfig, rows Rows, logger *zap.Logger) (*PQFeed, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := pq.NewListener(cfg.DSN, cfg.MinReconnect, cfg.MaxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			logger.Info("change feed connected")
		case pq.ListenerEventDisconnected:
			logger.Warn("change feed disconnected", zap.Error(err))
		case pq.ListenerEventReconnected:
			logger.Info("change feed reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("change feed connection attempt failed", zap.Error(err))
		}
	})
	if err := l.Listen(cfg.Channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen %s: %w", cfg.Channel, err)
	}
	logger.Info("listening for row changes", zap.String("channel", cfg.Channel))
	return &PQFeed{
		Fanout:   NewFanout(logger),
		listener: l,
		rows:     rows,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Run dispatches notifications until ctx is done, then closes the listener.
func (f *PQFeed) Run(ctx context.Context) error {
	ping := time.NewTicker(f.cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("change feed shutting down")
			return f.listener.Close()
		case n := <-f.listener.Notify:
			if n == nil {
				// connection was re-established
				continue
			}
			ev, err := f.decode(ctx, n.Extra)
			if err != nil {
				f.logger.Warn("drop row change", zap.Error(err))
				continue
			}
			f.Dispatch(ev)
		case <-ping.C:
			if err := f.listener.Ping(); err != nil {
				f.logger.Warn("change feed ping failed", zap.Error(err))
			}
		}
	}
}

func (f *PQFeed) decode(ctx context.Context, payload string) (ChangeEvent, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode notification: %w", err)
	}
	ev := ChangeEvent{Table: n.Table, Type: n.Type, New: n.New, Old: n.Old}
	if n.Truncated && n.Type != Delete && f.rows != nil {
		rctx, cancel := context.WithTimeout(ctx, f.cfg.RefetchTimeout)
		defer cancel()
		row, err := f.rows.Get(rctx, n.Table, n.New.ID())
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("refetch truncated %s row: %w", n.Table, err)
		}
		ev.New = row
	}
	return ev, nil
}
