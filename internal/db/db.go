package db

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"commfeed/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 全局连接，由 Init 设置，cmd 与 handlers 共享
var DB *gorm.DB

// pgUniqueViolation Postgres unique_violation SQLSTATE
const pgUniqueViolation = "23505"

// Init 连接数据库并执行迁移
func Init(dsn string) error {
	conn, err := Open(dsn)
	if err != nil {
		return err
	}
	if err := Migrate(conn); err != nil {
		return err
	}
	DB = conn
	return nil
}

// Open 打开 Postgres 连接
func Open(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("Database connection established")
	return conn, nil
}

// Config 所有方言共用的 gorm 配置
func Config() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

// Migrate 自动迁移表结构，并补充 gorm 标签无法表达的部分唯一索引
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Reaction{},
		&models.LedgerEntry{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// NULL 在唯一索引中互不相等，但显式加 WHERE 条件让约束意图更清晰，
	// Postgres 与 SQLite 都支持部分索引
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_reactions_user_post ON reactions (user_id, post_id) WHERE post_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_reactions_user_comment ON reactions (user_id, comment_id) WHERE comment_id IS NOT NULL`,
	}
	for _, stmt := range stmts {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create reaction unique index: %w", err)
		}
	}

	slog.Info("Database migration completed")
	return nil
}

// IsUniqueViolation 判断错误是否来自唯一约束冲突
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// SQLite 驱动未翻译时的兜底
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
