package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const natsSubjectPrefix = "fanwall."

// NATSBroadcaster carries broadcast events over core NATS subjects.
type NATSBroadcaster struct {
	*router
	nc *nats.Conn
}

// ConnectNATS dials url with unlimited reconnects.
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("fanwall-broadcast"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("nats error", zap.Error(err))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NewNATSBroadcaster creates a broadcaster on nc.
func NewNATSBroadcaster(nc *nats.Conn, logger *zap.Logger) *NATSBroadcaster {
	return &NATSBroadcaster{router: newRouter(&natsTransport{nc: nc}, logger), nc: nc}
}

// Close drains the connection.
func (b *NATSBroadcaster) Close() error {
	return b.nc.Drain()
}

type natsTransport struct {
	nc *nats.Conn
}

func (t *natsTransport) publish(_ context.Context, channel string, body []byte) error {
	return t.nc.Publish(natsSubjectPrefix+channel, body)
}

func (t *natsTransport) subscribe(channel string, deliver func([]byte)) (func(), error) {
	sub, err := t.nc.Subscribe(natsSubjectPrefix+channel, func(msg *nats.Msg) {
		deliver(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
