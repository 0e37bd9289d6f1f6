package db

import (
	"path/filepath"
	"testing"
	"time"

	"commfeed/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// OpenTestDB 为单个测试创建独立的 SQLite 数据库并完成迁移。
// 单连接让并发事务在数据库层串行，唯一索引依然是唯一的裁决者。
func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "commfeed.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := gorm.Open(sqlite.Open(dsn), Config())
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(conn))
	return conn
}

// CreateTestUser 创建测试用户
func CreateTestUser(t testing.TB, conn *gorm.DB, username string) *models.User {
	t.Helper()

	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
	}
	require.NoError(t, conn.Create(&user).Error)
	return &user
}

// CreateTestPost 创建测试帖子
func CreateTestPost(t testing.TB, conn *gorm.DB, authorID uint, createdAt time.Time) *models.Post {
	t.Helper()

	post := models.Post{UserID: authorID, Body: "post body", CreatedAt: createdAt}
	require.NoError(t, conn.Create(&post).Error)
	return &post
}

// CreateTestComment 直接落库一条评论，不做任何校验，便于构造异常数据
func CreateTestComment(t testing.TB, conn *gorm.DB, postID, authorID uint, parentID *uint, createdAt time.Time) *models.Comment {
	t.Helper()

	comment := models.Comment{
		PostID:    postID,
		ParentID:  parentID,
		UserID:    authorID,
		Body:      "comment body",
		CreatedAt: createdAt,
	}
	require.NoError(t, conn.Create(&comment).Error)
	return &comment
}
