package handlers

import (
	"net/http"
	"strconv"
	"time"

	"commfeed/internal/services"

	"github.com/gin-gonic/gin"
)

type LeaderboardHandler struct {
	leaderboard   *services.Leaderboard
	defaultSize   int
	maxSize       int
	defaultWindow time.Duration
}

func NewLeaderboardHandler(leaderboard *services.Leaderboard, defaultSize, maxSize int, defaultWindow time.Duration) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard:   leaderboard,
		defaultSize:   defaultSize,
		maxSize:       maxSize,
		defaultWindow: defaultWindow,
	}
}

// Top GET /api/leaderboard?k=&window_hours=
func (h *LeaderboardHandler) Top(c *gin.Context) {
	k := h.defaultSize
	if raw := c.Query("k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > h.maxSize {
			badRequest(c, "k must be between 1 and "+strconv.Itoa(h.maxSize))
			return
		}
		k = v
	}

	window, ok := windowParam(c, h.defaultWindow)
	if !ok {
		return
	}

	entries, err := h.leaderboard.Top(c.Request.Context(), k, window)
	if err != nil {
		RenderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"k":            k,
		"window_hours": window.Hours(),
		"entries":      entries,
	})
}
