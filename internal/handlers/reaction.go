package handlers

import (
	"net/http"

	"commfeed/internal/middleware"
	"commfeed/internal/models"
	"commfeed/internal/services"

	"github.com/gin-gonic/gin"
)

type ReactionHandler struct {
	reactions *services.ReactionService
}

func NewReactionHandler(reactions *services.ReactionService) *ReactionHandler {
	return &ReactionHandler{reactions: reactions}
}

// reactionRequest post 与 comment 二选一
type reactionRequest struct {
	Post    *uint `json:"post"`
	Comment *uint `json:"comment"`
}

func (r reactionRequest) target() (services.Target, bool) {
	switch {
	case r.Post != nil && r.Comment == nil:
		return services.Target{Kind: models.TargetPost, ID: *r.Post}, true
	case r.Comment != nil && r.Post == nil:
		return services.Target{Kind: models.TargetComment, ID: *r.Comment}, true
	default:
		return services.Target{}, false
	}
}

func bindTarget(c *gin.Context) (services.Target, bool) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return services.Target{}, false
	}
	target, ok := req.target()
	if !ok {
		badRequest(c, "exactly one of post or comment is required")
		return services.Target{}, false
	}
	return target, true
}

// React 点赞：新建返回 201 及声望变化，重复点赞返回 409
func (h *ReactionHandler) React(c *gin.Context) {
	target, ok := bindTarget(c)
	if !ok {
		return
	}

	user := middleware.CurrentUser(c)
	result, err := h.reactions.React(c.Request.Context(), user.ID, target)
	if err != nil {
		RenderError(c, err)
		return
	}

	if result.Outcome == services.ReactConflict {
		c.JSON(http.StatusConflict, gin.H{
			"error": gin.H{"type": "conflict", "message": "already reacted"},
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ledger_delta": result.Delta})
}

// Unreact 取消点赞：204，不存在时 404
func (h *ReactionHandler) Unreact(c *gin.Context) {
	target, ok := bindTarget(c)
	if !ok {
		return
	}

	user := middleware.CurrentUser(c)
	outcome, err := h.reactions.Unreact(c.Request.Context(), user.ID, target)
	if err != nil {
		RenderError(c, err)
		return
	}

	if outcome == services.UnreactNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"type": "not_found", "message": "reaction not found"},
		})
		return
	}
	c.Status(http.StatusNoContent)
}
