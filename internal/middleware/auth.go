package middleware

import (
	"commfeed/internal/apperr"
	"commfeed/internal/models"
	"commfeed/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CheckUserKey = "user"

// SessionUserKey session 中保存登录用户 id 的键
const SessionUserKey = "user_id"

// AuthRequired 未登录直接返回 401 JSON
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			err := apperr.Unauthorized("login required")
			c.AbortWithStatusJSON(err.HTTPStatus(), gin.H{
				"error": gin.H{"type": err.Type, "message": err.Message},
			})
			return
		}
		c.Next()
	}
}

// LoadUser 从 session 中取出用户并放进 context；用户已不存在时清掉 session
func LoadUser(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(SessionUserKey).(uint)

		if ok && userID != 0 {
			user, err := users.Get(c.Request.Context(), userID)
			if err == nil {
				c.Set(CheckUserKey, user)
			} else if apperr.IsNotFound(err) {
				session.Delete(SessionUserKey)
				_ = session.Save()
			}
		}
		c.Next()
	}
}

// CurrentUser 返回当前登录用户，未登录返回 nil
func CurrentUser(c *gin.Context) *models.User {
	user, exists := c.Get(CheckUserKey)
	if !exists {
		return nil
	}
	u, _ := user.(*models.User)
	return u
}
