package polls

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/pkg/response"
)

// VoteRequest is the body for POST /polls/:id/votes.
type VoteRequest struct {
	OptionID   string `json:"option_id" binding:"required"`
	VoterToken string `json:"voter_token" binding:"required"`
}

// Handler handles the guest poll endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the guest routes.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.POST("/polls/:id/votes", h.Vote)
	rg.GET("/polls/:id/results", h.Results)
}

// Vote handles POST /polls/:id/votes.
func (h *Handler) Vote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	vote, err := h.svc.Vote(c.Request.Context(), c.Param("id"), req.VoterToken, req.OptionID)
	switch {
	case err == nil:
		response.Created(c, vote)
	case errors.Is(err, remote.ErrNotFound):
		response.NotFound(c, "poll not found")
	case errors.Is(err, ErrDuplicateVote):
		response.Conflict(c, "already voted")
	case errors.Is(err, ErrPollNotLive):
		response.Forbidden(c, "poll is not accepting votes")
	case errors.Is(err, ErrUnknownOption), errors.Is(err, ErrMissingVoter):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("vote failed", zap.String("poll_id", c.Param("id")), zap.Error(err))
		response.Internal(c, "failed to record vote")
	}
}

// Results handles GET /polls/:id/results.
func (h *Handler) Results(c *gin.Context) {
	res, err := h.svc.Results(c.Request.Context(), c.Param("id"))
	if errors.Is(err, remote.ErrNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("poll results failed", zap.String("poll_id", c.Param("id")), zap.Error(err))
		response.Internal(c, "failed to load results")
		return
	}
	response.OK(c, res)
}
