package handlers

import (
	"net/http"
	"time"

	"commfeed/internal/services"
	"commfeed/internal/utils"

	"github.com/gin-gonic/gin"
)

const maxLedgerLimit = 200

type UserHandler struct {
	users         *services.UserService
	ledger        *services.Ledger
	defaultWindow time.Duration
}

func NewUserHandler(users *services.UserService, ledger *services.Ledger, defaultWindow time.Duration) *UserHandler {
	return &UserHandler{users: users, ledger: ledger, defaultWindow: defaultWindow}
}

// Karma GET /api/users/:id/karma?window_hours=
func (h *UserHandler) Karma(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	window, ok := windowParam(c, h.defaultWindow)
	if !ok {
		return
	}

	karma, err := h.users.Karma(c.Request.Context(), userID, window)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":      karma.UserID,
		"total":        karma.Total,
		"recent":       karma.Recent,
		"window_hours": window.Hours(),
	})
}

// Ledger GET /api/users/:id/ledger?limit=
func (h *UserHandler) Ledger(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	limit := utils.StringToInt(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > maxLedgerLimit {
		limit = 50
	}

	ctx := c.Request.Context()
	if _, err := h.users.Get(ctx, userID); err != nil {
		RenderError(c, err)
		return
	}

	entries, err := h.ledger.History(ctx, userID, limit)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
