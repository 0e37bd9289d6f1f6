package models

import (
	"time"
)

// LedgerEntry 声望流水，只追加，永不修改或删除。
// ReactionID 仅作审计引用，不建外键：取消点赞会删除 reactions 行，而流水必须保留。
type LedgerEntry struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index:idx_ledger_user_created,priority:1;index:idx_ledger_created_user,priority:2" json:"user_id"`
	User   User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	// 正数为增加，负数为扣除
	Points     int        `gorm:"not null" json:"points"`
	Kind       TargetKind `gorm:"size:20;not null" json:"kind"`
	ReactionID uint       `gorm:"not null;index" json:"reaction_id"`
	CreatedAt  time.Time  `gorm:"not null;index:idx_ledger_created_user,priority:1;index:idx_ledger_user_created,priority:2" json:"created_at"`
}
