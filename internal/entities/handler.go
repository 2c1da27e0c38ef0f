package entities

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/middleware"
	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/pkg/response"
)

// CreateRequest is the body for POST /entities/:kind.
type CreateRequest struct {
	Title    string         `json:"title" binding:"required"`
	Settings map[string]any `json:"settings"`
}

// Handler handles host entity endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an entities handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/entities/:kind")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/start", h.Start)
	g.POST("/:id/stop", h.Stop)
	g.POST("/:id/close", h.Close)
	g.POST("/:id/clear", h.Clear)
	g.POST("/:id/spin", h.Spin)
}

// Create handles POST /entities/:kind.
func (h *Handler) Create(c *gin.Context) {
	k, ok := kindParam(c)
	if !ok {
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	row, err := h.svc.Create(c.Request.Context(), k, ActorFrom(c), req.Title, req.Settings)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, row)
}

// List handles GET /entities/:kind.
func (h *Handler) List(c *gin.Context) {
	k, ok := kindParam(c)
	if !ok {
		return
	}
	rows, err := h.svc.List(c.Request.Context(), k, ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if rows == nil {
		rows = []remote.Row{}
	}
	response.OK(c, rows)
}

// Get handles GET /entities/:kind/:id.
func (h *Handler) Get(c *gin.Context) {
	h.rowAction(c, h.svc.Get)
}

// Update handles PATCH /entities/:kind/:id with a settings object.
func (h *Handler) Update(c *gin.Context) {
	k, ok := kindParam(c)
	if !ok {
		return
	}
	var settings map[string]any
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	row, err := h.svc.UpdateSettings(c.Request.Context(), k, ActorFrom(c), c.Param("id"), settings)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, row)
}

// Start handles POST /entities/:kind/:id/start.
func (h *Handler) Start(c *gin.Context) { h.rowAction(c, h.svc.Start) }

// Stop handles POST /entities/:kind/:id/stop.
func (h *Handler) Stop(c *gin.Context) { h.rowAction(c, h.svc.Stop) }

// Close handles POST /entities/:kind/:id/close.
func (h *Handler) Close(c *gin.Context) { h.rowAction(c, h.svc.Close) }

// Clear handles POST /entities/:kind/:id/clear.
func (h *Handler) Clear(c *gin.Context) { h.rowAction(c, h.svc.Clear) }

// Delete handles DELETE /entities/:kind/:id.
func (h *Handler) Delete(c *gin.Context) {
	k, ok := kindParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), k, ActorFrom(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// Spin handles POST /entities/prizewheel/:id/spin.
func (h *Handler) Spin(c *gin.Context) {
	k, ok := kindParam(c)
	if !ok {
		return
	}
	id := c.Param("id")
	at, err := h.svc.Spin(c.Request.Context(), k, ActorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "timestamp": at})
}

type rowFunc func(ctx context.Context, k entity.Kind, a Actor, id string) (remote.Row, error)

func (h *Handler) rowAction(c *gin.Context, fn rowFunc) {
	k, ok := kindParam(c)
	if !ok {
		return
	}
	row, err := fn(c.Request.Context(), k, ActorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, row)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrUnsupported), errors.Is(err, ErrInvalidSettings):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("entity action failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}

func kindParam(c *gin.Context) (entity.Kind, bool) {
	k, err := entity.Lookup(c.Param("kind"))
	if err != nil {
		response.NotFound(c, err.Error())
		return entity.Kind{}, false
	}
	return k, true
}

// ActorFrom reads the authenticated caller set by the JWT middleware.
func ActorFrom(c *gin.Context) Actor {
	return Actor{HostID: middleware.HostID(c), Admin: middleware.IsAdmin(c)}
}
