package services

import (
	"context"
	"time"

	"commfeed/internal/apperr"
	"commfeed/internal/models"

	"gorm.io/gorm"
)

// 点赞带来的声望值
const (
	PointsPostLiked    = 5
	PointsCommentLiked = 1
)

// PointsFor 返回某类目标被点赞时作者获得的声望
func PointsFor(kind models.TargetKind) int {
	if kind == models.TargetPost {
		return PointsPostLiked
	}
	return PointsCommentLiked
}

// Ledger 声望流水。声望的唯一可写来源，任何地方都不保存累计值。
type Ledger struct {
	db *gorm.DB
}

func NewLedger(conn *gorm.DB) *Ledger {
	return &Ledger{db: conn}
}

// Append 在调用方的事务中追加一条流水，事务提交即生效，之后永不修改
func (l *Ledger) Append(tx *gorm.DB, userID uint, points int, reaction *models.Reaction) (*models.LedgerEntry, error) {
	entry := models.LedgerEntry{
		UserID:     userID,
		Points:     points,
		Kind:       reaction.Kind(),
		ReactionID: reaction.ID,
		CreatedAt:  reaction.CreatedAt,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// SumFor 返回用户的声望总和；since 非空时只统计 created_at >= since 的流水。
// 没有任何流水的用户返回 0。
func (l *Ledger) SumFor(ctx context.Context, userID uint, since *time.Time) (int64, error) {
	query := l.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ?", userID)
	if since != nil {
		query = query.Where("created_at >= ?", since.UTC())
	}

	var total int64
	if err := query.Scan(&total).Error; err != nil {
		return 0, apperr.Storage("sum ledger", err)
	}
	return total, nil
}

// History 返回用户最近的流水明细，新的在前
func (l *Ledger) History(ctx context.Context, userID uint, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperr.Storage("load ledger history", err)
	}
	return entries, nil
}
