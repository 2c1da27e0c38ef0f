package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisChannelPrefix = "fanwall:"
	// redisSubscribeTimeout bounds the wait for the subscription confirmation.
	redisSubscribeTimeout = 5 * time.Second
)

// RedisBroadcaster carries broadcast events over Redis pub/sub.
type RedisBroadcaster struct {
	*router
}

// NewRedisBroadcaster creates a broadcaster on client.
func NewRedisBroadcaster(client *redis.Client, logger *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{router: newRouter(&redisTransport{client: client, logger: logger}, logger)}
}

type redisTransport struct {
	client *redis.Client
	logger *zap.Logger
}

func (t *redisTransport) publish(ctx context.Context, channel string, body []byte) error {
	return t.client.Publish(ctx, redisChannelPrefix+channel, body).Err()
}

func (t *redisTransport) subscribe(channel string, deliver func([]byte)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := t.client.Subscribe(ctx, redisChannelPrefix+channel)
	rctx, rcancel := context.WithTimeout(ctx, redisSubscribeTimeout)
	_, err := pubsub.Receive(rctx)
	rcancel()
	if err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				deliver([]byte(msg.Payload))
			}
		}
	}()
	return cancel, nil
}
