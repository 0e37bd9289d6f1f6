package models

import (
	"time"
)

// TargetKind 点赞目标类型
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// Valid 只允许 post / comment 两种目标
func (k TargetKind) Valid() bool {
	return k == TargetPost || k == TargetComment
}

// Reaction 点赞记录，PostID 与 CommentID 有且只有一个非空。
// (user_id, post_id) 与 (user_id, comment_id) 的唯一性由数据库部分唯一索引保证，
// 见 db.Migrate。
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	PostID    *uint     `gorm:"index;check:chk_reactions_single_target,(post_id IS NULL) <> (comment_id IS NULL)" json:"post_id,omitempty"`
	Post      *Post     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CommentID *uint     `gorm:"index" json:"comment_id,omitempty"`
	Comment   *Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Kind 返回点赞目标类型
func (r *Reaction) Kind() TargetKind {
	if r.PostID != nil {
		return TargetPost
	}
	return TargetComment
}
