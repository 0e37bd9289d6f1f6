package services

import (
	"context"
	"sort"
	"time"

	"commfeed/internal/apperr"
	"commfeed/internal/metrics"
	"commfeed/internal/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// 排行榜默认参数
const (
	DefaultLeaderboardSize   = 5
	DefaultLeaderboardWindow = 24 * time.Hour
)

// UserPoints 单个用户在窗口内的声望合计
type UserPoints struct {
	UserID      uint
	TotalPoints int64
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      uint   `json:"user_id"`
	Username    string `json:"username"`
	TotalPoints int64  `json:"total_points"`
}

// Leaderboard 按时间窗口统计声望排行。每次调用都直接汇总流水，没有任何缓存，
// 刚提交的流水立即可见，滑出窗口的流水下一次调用就消失。
type Leaderboard struct {
	db    *gorm.DB
	clock clockwork.Clock
}

func NewLeaderboard(conn *gorm.DB, clock clockwork.Clock) *Leaderboard {
	return &Leaderboard{db: conn, clock: clock}
}

// Top 使用当前时间作为 asOf
func (l *Leaderboard) Top(ctx context.Context, k int, window time.Duration) ([]LeaderboardEntry, error) {
	return l.TopK(ctx, k, window, l.clock.Now())
}

// TopK 返回 [asOf-window, asOf] 内声望最高的至多 k 个用户。
// 按合计降序，合计相同按 user_id 升序。
func (l *Leaderboard) TopK(ctx context.Context, k int, window time.Duration, asOf time.Time) ([]LeaderboardEntry, error) {
	if k <= 0 {
		return nil, apperr.Validation("k must be positive")
	}
	if window <= 0 {
		return nil, apperr.Validation("window must be positive")
	}

	start := time.Now()
	defer func() {
		metrics.LeaderboardDuration.Observe(time.Since(start).Seconds())
	}()

	asOf = asOf.UTC()
	from := asOf.Add(-window)

	var sums []UserPoints
	err := l.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("user_id, SUM(points) AS total_points").
		Where("created_at >= ? AND created_at <= ?", from, asOf).
		Group("user_id").
		Scan(&sums).Error
	if err != nil {
		return nil, apperr.Storage("aggregate ledger", err)
	}

	ranked := RankTopK(sums, k)
	if len(ranked) == 0 {
		return []LeaderboardEntry{}, nil
	}

	// 一次查询补齐用户名
	ids := make([]uint, len(ranked))
	for i, r := range ranked {
		ids[i] = r.UserID
	}
	var users []models.User
	if err := l.db.WithContext(ctx).Select("id, username").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperr.Storage("load leaderboard users", err)
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	entries := make([]LeaderboardEntry, len(ranked))
	for i, r := range ranked {
		entries[i] = LeaderboardEntry{
			Rank:        i + 1,
			UserID:      r.UserID,
			Username:    names[r.UserID],
			TotalPoints: r.TotalPoints,
		}
	}
	return entries, nil
}

// RankTopK 按合计降序、user_id 升序排序后截取前 k 个，不修改入参
func RankTopK(sums []UserPoints, k int) []UserPoints {
	ranked := make([]UserPoints, len(sums))
	copy(ranked, sums)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalPoints != ranked[j].TotalPoints {
			return ranked[i].TotalPoints > ranked[j].TotalPoints
		}
		return ranked[i].UserID < ranked[j].UserID
	})
	if k >= 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
