package remote

import (
	"context"
	"errors"
	"io"
)

// ErrStorageDisabled is returned by uploads when no object store is configured.
var ErrStorageDisabled = errors.New("object storage not configured")

// Client composes the four backends into a Service. It is built once at
// process start and handed to every component that needs the data service.
type Client struct {
	Rows
	Feed
	Broadcaster
	ObjectStore
}

// NewClient composes a Service. A nil store disables uploads.
func NewClient(rows Rows, feed Feed, bc Broadcaster, store ObjectStore) *Client {
	if store == nil {
		store = disabledStore{}
	}
	return &Client{Rows: rows, Feed: feed, Broadcaster: bc, ObjectStore: store}
}

type disabledStore struct{}

func (disabledStore) Upload(context.Context, string, string, string, io.Reader, int64) error {
	return ErrStorageDisabled
}

func (disabledStore) PublicURL(string, string) string { return "" }
