package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/surface"
)

// EventFrame carries one rendered surface.Frame.
const EventFrame = "frame"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // displays are public pages served from any origin
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Runner drives one display until ctx ends or the sink fails.
type Runner interface {
	Run(ctx context.Context, sink surface.Sink) error
}

// RunnerFactory builds the runner for one display connection.
type RunnerFactory func(kind entity.Kind, entityID string) Runner

// Client is a single display WebSocket connection.
type Client struct {
	ID          string
	Kind        string
	EntityID    string
	ConnectedAt time.Time
	hub         *Hub
	conn        *websocket.Conn
	send        chan WSMessage
	cancel      context.CancelFunc
	logger      *zap.Logger
}

// ServeDisplay upgrades GET /ws/display?kind=<kind>&id=<id> and streams frames
// until the screen disconnects.
func ServeDisplay(hub *Hub, newRunner RunnerFactory, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		kindName := c.Query("kind")
		entityID := c.Query("id")
		if kindName == "" || entityID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind and id required"})
			return
		}
		kind, err := entity.Lookup(kindName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		client := &Client{
			ID:          uuid.New().String(),
			Kind:        kind.Name,
			EntityID:    entityID,
			ConnectedAt: time.Now(),
			hub:         hub,
			conn:        conn,
			send:        make(chan WSMessage, 256),
			cancel:      cancel,
			logger:      logger.With(zap.String("kind", kind.Name), zap.String("entity_id", entityID)),
		}
		hub.Register(client)
		go client.writePump()
		go func() {
			client.readPump()
			cancel()
		}()

		if err := newRunner(kind, entityID).Run(ctx, client.deliver); err != nil {
			client.logger.Info("display stream ended", zap.Error(err))
		}
		cancel()
		hub.Unregister(client)
		close(client.send)
	}
}

func (c *Client) deliver(f surface.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	select {
	case c.send <- WSMessage{Event: EventFrame, Data: data}:
	default:
		c.logger.Warn("display send buffer full, frame dropped")
	}
	return nil
}

// readPump only services control frames; displays send nothing meaningful.
func (c *Client) readPump() {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}
