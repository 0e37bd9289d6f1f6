package services

import (
	"context"

	"commfeed/internal/apperr"
	"commfeed/internal/db"
	"commfeed/internal/logging"
	"commfeed/internal/metrics"
	"commfeed/internal/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// ReactOutcome React 的结果
type ReactOutcome int

const (
	// ReactCreated 新建了点赞，并追加了一条流水
	ReactCreated ReactOutcome = iota
	// ReactConflict 该用户已经点过赞，什么都没写
	ReactConflict
)

// UnreactOutcome Unreact 的结果
type UnreactOutcome int

const (
	UnreactRemoved UnreactOutcome = iota
	UnreactNotFound
)

// Target 点赞目标：一个帖子或一条评论
type Target struct {
	Kind models.TargetKind
	ID   uint
}

func (t Target) validate() error {
	if !t.Kind.Valid() {
		return apperr.Validation("unknown target kind %q", t.Kind)
	}
	if t.ID == 0 {
		return apperr.Validation("target id is required")
	}
	return nil
}

// LedgerDelta 一次成功点赞带来的声望变化
type LedgerDelta struct {
	ReactionID uint `json:"reaction_id"`
	UserID     uint `json:"user_id"`
	Points     int  `json:"points"`
}

// ReactResult React 返回值，Outcome 为 ReactCreated 时 Delta 非空
type ReactResult struct {
	Outcome ReactOutcome
	Delta   *LedgerDelta
}

// ReactionService 点赞登记。每个 (user, target) 至多一条点赞，
// 唯一性完全交给数据库唯一索引裁决，不做"先查再插"。
//
// 取消点赞不回收声望：流水只追加，已获得的声望是永久的。
type ReactionService struct {
	db     *gorm.DB
	ledger *Ledger
	clock  clockwork.Clock
}

func NewReactionService(conn *gorm.DB, ledger *Ledger, clock clockwork.Clock) *ReactionService {
	return &ReactionService{db: conn, ledger: ledger, clock: clock}
}

// React 为 user 在 target 上点赞。点赞记录与流水在同一事务中写入，要么都提交要么都回滚。
// 重复点赞返回 ReactConflict 而不是错误，因此调用方可以安全重试。
func (s *ReactionService) React(ctx context.Context, userID uint, target Target) (*ReactResult, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}

	var delta *LedgerDelta
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 找到内容作者，目标不存在直接返回 NotFound
		authorID, err := targetAuthor(tx, target)
		if err != nil {
			return err
		}

		// 2. 无条件插入，由唯一索引判定是否重复
		reaction := models.Reaction{
			UserID:    userID,
			CreatedAt: s.clock.Now().UTC(),
		}
		if target.Kind == models.TargetPost {
			reaction.PostID = &target.ID
		} else {
			reaction.CommentID = &target.ID
		}
		if err := tx.Create(&reaction).Error; err != nil {
			return err
		}

		// 3. 同一事务内给作者记流水
		entry, err := s.ledger.Append(tx, authorID, PointsFor(target.Kind), &reaction)
		if err != nil {
			return err
		}

		delta = &LedgerDelta{ReactionID: reaction.ID, UserID: entry.UserID, Points: entry.Points}
		return nil
	})

	log := logging.FromContext(ctx)
	switch {
	case err == nil:
		metrics.ReactionsTotal.WithLabelValues(string(target.Kind), "created").Inc()
		metrics.LedgerPointsTotal.WithLabelValues(string(target.Kind)).Add(float64(delta.Points))
		log.Info("reaction created", "user_id", userID, "kind", target.Kind, "target_id", target.ID, "author_id", delta.UserID, "points", delta.Points)
		return &ReactResult{Outcome: ReactCreated, Delta: delta}, nil
	case db.IsUniqueViolation(err):
		metrics.ReactionsTotal.WithLabelValues(string(target.Kind), "conflict").Inc()
		log.Debug("reaction already exists", "user_id", userID, "kind", target.Kind, "target_id", target.ID)
		return &ReactResult{Outcome: ReactConflict}, nil
	case apperr.IsNotFound(err):
		return nil, err
	default:
		metrics.ReactionsTotal.WithLabelValues(string(target.Kind), "error").Inc()
		log.Error("reaction transaction failed", "user_id", userID, "kind", target.Kind, "target_id", target.ID, "error", err)
		return nil, apperr.Storage("react", err)
	}
}

// Unreact 删除 user 在 target 上的点赞。不存在时返回 UnreactNotFound，不视为错误。
// 流水保持不变。
func (s *ReactionService) Unreact(ctx context.Context, userID uint, target Target) (UnreactOutcome, error) {
	if err := target.validate(); err != nil {
		return UnreactNotFound, err
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if target.Kind == models.TargetPost {
		query = query.Where("post_id = ?", target.ID)
	} else {
		query = query.Where("comment_id = ?", target.ID)
	}

	result := query.Delete(&models.Reaction{})
	if result.Error != nil {
		logging.FromContext(ctx).Error("unreact failed", "user_id", userID, "kind", target.Kind, "target_id", target.ID, "error", result.Error)
		return UnreactNotFound, apperr.Storage("unreact", result.Error)
	}
	if result.RowsAffected == 0 {
		metrics.ReactionsTotal.WithLabelValues(string(target.Kind), "unreact_not_found").Inc()
		return UnreactNotFound, nil
	}

	metrics.ReactionsTotal.WithLabelValues(string(target.Kind), "removed").Inc()
	return UnreactRemoved, nil
}

// ReactedTargets 返回 ids 中 user 已点赞的目标集合，一次查询
func (s *ReactionService) ReactedTargets(ctx context.Context, userID uint, kind models.TargetKind, ids []uint) (map[uint]bool, error) {
	reacted := make(map[uint]bool)
	if userID == 0 || len(ids) == 0 {
		return reacted, nil
	}

	column := "post_id"
	if kind == models.TargetComment {
		column = "comment_id"
	}

	var hits []uint
	err := s.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Where("user_id = ? AND "+column+" IN ?", userID, ids).
		Pluck(column, &hits).Error
	if err != nil {
		return nil, apperr.Storage("load reactions", err)
	}
	for _, id := range hits {
		reacted[id] = true
	}
	return reacted, nil
}

// targetAuthor 查询目标内容的作者
func targetAuthor(tx *gorm.DB, target Target) (uint, error) {
	var authorIDs []uint
	var err error
	if target.Kind == models.TargetPost {
		err = tx.Model(&models.Post{}).Where("id = ?", target.ID).Limit(1).Pluck("user_id", &authorIDs).Error
	} else {
		err = tx.Model(&models.Comment{}).Where("id = ?", target.ID).Limit(1).Pluck("user_id", &authorIDs).Error
	}
	if err != nil {
		return 0, err
	}
	if len(authorIDs) == 0 {
		return 0, apperr.NotFound("%s %d not found", target.Kind, target.ID)
	}
	return authorIDs[0], nil
}

// HasReacted user 是否已在 target 上点赞
func (s *ReactionService) HasReacted(ctx context.Context, userID uint, target Target) (bool, error) {
	if err := target.validate(); err != nil {
		return false, err
	}
	reacted, err := s.ReactedTargets(ctx, userID, target.Kind, []uint{target.ID})
	if err != nil {
		return false, err
	}
	return reacted[target.ID], nil
}
