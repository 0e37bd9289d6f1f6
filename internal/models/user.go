package models

import (
	"time"
)

// User 用户模型
// 没有积分字段：声望永远从 ledger_entries 汇总得出
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"` // Hash
	// emoji 头像
	Avatar    string    `gorm:"default:🌱" json:"avatar"`
	Bio       string    `gorm:"size:200" json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
