package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"commfeed/internal/apperr"
	"commfeed/internal/logging"
	"commfeed/internal/middleware"
	"commfeed/internal/utils"

	"github.com/gin-gonic/gin"
)

// RenderError 按错误类别输出 {"error": {"type", "message"}}
func RenderError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Storage("unexpected error", err)
	}

	status := appErr.HTTPStatus()
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		// 内部细节不返回给客户端
		message = "internal error"
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"type": appErr.Type, "message": message},
	})
}

// badRequest 参数格式错误
func badRequest(c *gin.Context, message string) {
	RenderError(c, apperr.Validation("%s", message))
}

// pathID 解析路径参数中的 id，失败时已写好 400 响应
func pathID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		badRequest(c, "invalid "+name)
	}
	return id, ok
}

// currentUserID 未登录返回 0
func currentUserID(c *gin.Context) uint {
	if user := middleware.CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}

// maxWindowHours window_hours 的上限，一年
const maxWindowHours = 24 * 365

// windowParam 解析 window_hours 查询参数，缺省时返回 def。失败时已写好 400 响应。
func windowParam(c *gin.Context, def time.Duration) (time.Duration, bool) {
	raw := c.Query("window_hours")
	if raw == "" {
		return def, true
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(hours) || hours <= 0 || hours > maxWindowHours {
		badRequest(c, "window_hours must be a number in (0, "+strconv.Itoa(maxWindowHours)+"]")
		return 0, false
	}
	return time.Duration(hours * float64(time.Hour)), true
}
