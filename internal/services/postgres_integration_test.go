//go:build integration

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"commfeed/internal/db"
	"commfeed/internal/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// setupPostgres 启动一个 Postgres 容器并完成迁移
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("commfeed"),
		postgres.WithUsername("commfeed"),
		postgres.WithPassword("commfeed"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestPostgres_ConcurrentReactsCreateExactlyOne(t *testing.T) {
	conn := setupPostgres(t)
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testNow)
	ledger := NewLedger(conn)
	reactions := NewReactionService(conn, ledger, clock)

	author := db.CreateTestUser(t, conn, "author")
	fan := db.CreateTestUser(t, conn, "fan")
	post := db.CreateTestPost(t, conn, author.ID, testNow)
	c := db.CreateTestComment(t, conn, post.ID, author.ID, nil, testNow)

	for _, target := range []Target{
		{Kind: models.TargetPost, ID: post.ID},
		{Kind: models.TargetComment, ID: c.ID},
	} {
		const attempts = 32
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := reactions.React(ctx, fan.ID, target)
				if !assert.NoError(t, err) {
					return
				}
				if res.Outcome == ReactCreated {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, created, "target %s", target.Kind)
	}

	total, err := ledger.SumFor(ctx, author.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(PointsPostLiked+PointsCommentLiked), total)

	var entries int64
	require.NoError(t, conn.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(2), entries)
}

func TestPostgres_LeaderboardWindow(t *testing.T) {
	conn := setupPostgres(t)
	ctx := context.Background()
	board := NewLeaderboard(conn, clockwork.NewFakeClockAt(testNow))

	a := db.CreateTestUser(t, conn, "a")
	b := db.CreateTestUser(t, conn, "b")
	stale := db.CreateTestUser(t, conn, "stale")
	for _, e := range []models.LedgerEntry{
		{UserID: a.ID, Points: 5, Kind: models.TargetPost, ReactionID: 1, CreatedAt: testNow.Add(-time.Hour)},
		{UserID: b.ID, Points: 5, Kind: models.TargetPost, ReactionID: 2, CreatedAt: testNow.Add(-10 * time.Hour)},
		{UserID: stale.ID, Points: 50, Kind: models.TargetPost, ReactionID: 3, CreatedAt: testNow.Add(-30 * time.Hour)},
	} {
		require.NoError(t, conn.Create(&e).Error)
	}

	entries, err := board.TopK(ctx, 5, 24*time.Hour, testNow)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, a.ID, entries[0].UserID)
	assert.Equal(t, b.ID, entries[1].UserID)
}

func TestPostgres_CheckConstraintRejectsTwoTargets(t *testing.T) {
	conn := setupPostgres(t)

	user := db.CreateTestUser(t, conn, "u")
	post := db.CreateTestPost(t, conn, user.ID, testNow)
	c := db.CreateTestComment(t, conn, post.ID, user.ID, nil, testNow)

	err := conn.Create(&models.Reaction{UserID: user.ID, PostID: &post.ID, CommentID: &c.ID}).Error
	assert.Error(t, err)
}
