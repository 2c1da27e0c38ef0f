package realtime

import (
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/pkg/response"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// ScreenChangeHandler is called when the number of screens showing an entity changes.
type ScreenChangeHandler func(kind, entityID string, count int)

// Hub tracks the display connections open on this instance, grouped by entity.
type Hub struct {
	screens  map[string]map[string]*Client
	mu       sync.RWMutex
	logger   *zap.Logger
	onChange ScreenChangeHandler
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		screens: make(map[string]map[string]*Client),
		logger:  logger,
	}
}

func screenKey(kind, entityID string) string { return kind + ":" + entityID }

// SetScreenChangeHandler sets the callback for screen count changes.
func (h *Hub) SetScreenChangeHandler(fn ScreenChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

// Register adds a display connection.
func (h *Hub) Register(c *Client) {
	key := screenKey(c.Kind, c.EntityID)
	h.mu.Lock()
	if h.screens[key] == nil {
		h.screens[key] = make(map[string]*Client)
	}
	h.screens[key][c.ID] = c
	count := len(h.screens[key])
	onChange := h.onChange
	h.mu.Unlock()
	if onChange != nil {
		onChange(c.Kind, c.EntityID, count)
	}
	h.logger.Debug("display joined", zap.String("client_id", c.ID), zap.String("kind", c.Kind), zap.String("entity_id", c.EntityID))
}

// Unregister removes a display connection.
func (h *Hub) Unregister(c *Client) {
	key := screenKey(c.Kind, c.EntityID)
	h.mu.Lock()
	var count int
	if m, ok := h.screens[key]; ok {
		delete(m, c.ID)
		count = len(m)
		if count == 0 {
			delete(h.screens, key)
		}
	}
	onChange := h.onChange
	h.mu.Unlock()
	if onChange != nil {
		onChange(c.Kind, c.EntityID, count)
	}
	h.logger.Debug("display left", zap.String("client_id", c.ID), zap.String("kind", c.Kind), zap.String("entity_id", c.EntityID))
}

// ScreenCount returns the number of displays showing an entity on this instance.
func (h *Hub) ScreenCount(kind, entityID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.screens[screenKey(kind, entityID)])
}

// CloseAll ends every display connection, e.g. on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Client
	for _, m := range h.screens {
		for _, c := range m {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.cancel()
	}
}

// ScreensHandler handles GET /displays/:kind/:id/screens.
func ScreensHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := entity.Lookup(c.Param("kind"))
		if err != nil {
			response.NotFound(c, "unknown kind")
			return
		}
		id := c.Param("id")
		response.OK(c, gin.H{"kind": kind.Name, "id": id, "screens": hub.ScreenCount(kind.Name, id)})
	}
}
