package submissions

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/entities"
	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/pkg/response"
	"github.com/faninteract/backend/pkg/storage"
)

// maxFormSize bounds the multipart body: one photo plus text fields.
const maxFormSize = storage.MaxPhotoSize + 1<<20

// Handler handles submission endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a submissions handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the guest routes.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.POST("/walls/:id/submissions", h.Submit)
}

// Register mounts the moderation routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/walls/:id/submissions/pending", h.Pending)
	rg.POST("/submissions/:id/approve", h.Approve)
	rg.POST("/submissions/:id/reject", h.Reject)
}

// Submit handles POST /walls/:id/submissions (multipart: nickname, message, photo).
func (h *Handler) Submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFormSize)
	post := Post{Nickname: c.PostForm("nickname"), Message: c.PostForm("message")}

	fh, err := c.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		response.BadRequest(c, "invalid form: "+err.Error())
		return
	default:
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, "invalid photo")
			return
		}
		defer f.Close()
		post.Photo = &Photo{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		}
	}

	row, err := h.svc.Submit(c.Request.Context(), c.Param("id"), post)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, row)
}

// Pending handles GET /walls/:id/submissions/pending.
func (h *Handler) Pending(c *gin.Context) {
	rows, err := h.svc.Pending(c.Request.Context(), entities.ActorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if rows == nil {
		rows = []remote.Row{}
	}
	response.OK(c, rows)
}

// Approve handles POST /submissions/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	row, err := h.svc.Approve(c.Request.Context(), entities.ActorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, row)
}

// Reject handles POST /submissions/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	row, err := h.svc.Reject(c.Request.Context(), entities.ActorFrom(c), c.Param("id"))
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
	case errors.Is(err, entities.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidPhoto), errors.Is(err, ErrInvalidSubmission):
		response.BadRequest(c, err.Error())
	case errors.Is(err, remote.ErrStorageDisabled):
		response.ServiceUnavailable(c, "photo uploads are disabled")
	default:
		h.logger.Error("submission request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
