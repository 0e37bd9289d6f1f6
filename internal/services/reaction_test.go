package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"commfeed/internal/apperr"
	"commfeed/internal/db"
	"commfeed/internal/metrics"
	"commfeed/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countLedger(t *testing.T, env *testEnv) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&n).Error)
	return n
}

func TestReact_PostThenDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := db.CreateTestUser(t, env.db, "author")
	fan := db.CreateTestUser(t, env.db, "fan")
	post := db.CreateTestPost(t, env.db, author.ID, testNow)
	target := Target{Kind: models.TargetPost, ID: post.ID}

	res, err := env.reactions.React(ctx, fan.ID, target)
	require.NoError(t, err)
	assert.Equal(t, ReactCreated, res.Outcome)
	require.NotNil(t, res.Delta)
	assert.Equal(t, author.ID, res.Delta.UserID)
	assert.Equal(t, PointsPostLiked, res.Delta.Points)

	res, err = env.reactions.React(ctx, fan.ID, target)
	require.NoError(t, err)
	assert.Equal(t, ReactConflict, res.Outcome)
	assert.Nil(t, res.Delta)

	total, err := env.ledger.SumFor(ctx, author.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(PointsPostLiked), total)
	assert.Equal(t, int64(1), countLedger(t, env))
}

func TestReact_CommentAwardsCommentPoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poster := db.CreateTestUser(t, env.db, "poster")
	replier := db.CreateTestUser(t, env.db, "replier")
	fan := db.CreateTestUser(t, env.db, "fan")
	post := db.CreateTestPost(t, env.db, poster.ID, testNow)
	c := db.CreateTestComment(t, env.db, post.ID, replier.ID, nil, testNow)

	res, err := env.reactions.React(ctx, fan.ID, Target{Kind: models.TargetComment, ID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, ReactCreated, res.Outcome)

	var entry models.LedgerEntry
	require.NoError(t, env.db.First(&entry).Error)
	assert.Equal(t, replier.ID, entry.UserID)
	assert.Equal(t, PointsCommentLiked, entry.Points)
	assert.Equal(t, models.TargetComment, entry.Kind)
	assert.Equal(t, res.Delta.ReactionID, entry.ReactionID)
	assert.True(t, testNow.Equal(entry.CreatedAt))

	posterTotal, err := env.ledger.SumFor(ctx, poster.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, posterTotal)
}

func TestReact_PostAndCommentAreIndependentTargets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := db.CreateTestUser(t, env.db, "author")
	fan := db.CreateTestUser(t, env.db, "fan")
	post := db.CreateTestPost(t, env.db, author.ID, testNow)
	c := db.CreateTestComment(t, env.db, post.ID, author.ID, nil, testNow)

	res, err := env.reactions.React(ctx, fan.ID, Target{Kind: models.TargetPost, ID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, ReactCreated, res.Outcome)

	res, err = env.reactions.React(ctx, fan.ID, Target{Kind: models.TargetComment, ID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, ReactCreated, res.Outcome)

	total, err := env.ledger.SumFor(ctx, author.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(PointsPostLiked+PointsCommentLiked), total)
}

func TestReact_SelfLikeEarnsPoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := db.CreateTestUser(t, env.db, "author")
	post := db.CreateTestPost(t, env.db, author.ID, testNow)

	res, err := env.reactions.React(ctx, author.ID, Target{Kind: models.TargetPost, ID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, ReactCreated, res.Outcome)
	assert.Equal(t, author.ID, res.Delta.UserID)
}

func TestReact_MissingTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fan := db.CreateTestUser(t, env.db, "fan")

	_, err := env.reactions.React(ctx, fan.ID, Target{Kind: models.TargetPost, ID: 404})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))

	_, err = env.reactions.React(ctx, fan.ID, Target{Kind: models.TargetComment, ID: 404})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))

	assert.Zero(t, countLedger(t, env))
}

func TestReact_InvalidTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.reactions.React(ctx, 1, Target{Kind: "story", ID: 1})
	assert.True(t, apperr.IsValidation(err))

	_, err = env.reactions.React(ctx, 1, Target{Kind: models.TargetPost})
	assert.True(t, apperr.IsValidation(err))
}

func TestReact_ConcurrentAttemptsCreateExactlyOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := db.CreateTestUser(t, env.db, "author")
	fan := db.CreateTestUser(t, env.db, "fan")
	post := db.CreateTestPost(t, env.db, author.ID, testNow)
	target := Target{Kind: models.TargetPost, ID: post.ID}

	const attempts = 16
	outcomes := make([]ReactOutcome, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.reactions.React(ctx, fan.ID, target)
			errs[i] = err
			if err == nil {
				outcomes[i] = res.Outcome
			}
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		if outcomes[i] == ReactCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, int64(1), countLedger(t, env))

	var reactions int64
	require.NoError(t, env.db.Model(&models.Reaction{}).Count(&reactions).Error)
	assert.Equal(t, int64(1), reactions)
}

func countReactions(t *testing.T, env *testEnv) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.db.Model(&models.Reaction{}).Count(&n).Error)
	return n
}

func TestReact_LedgerFailureRollsBackReaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := db.CreateTestUser(t, env.db, "author")
	fan := db.CreateTestUser(t, env.db, "fan")
	post := db.CreateTestPost(t, env.db, author.ID, testNow)
	target := Target{Kind: models.TargetPost, ID: post.ID}

	// 流水表不存在，点赞插入成功后追加流水失败
	require.NoError(t, env.db.Migrator().DropTable(&models.LedgerEntry{}))

	res, err := env.reactions.React(ctx, fan.ID, target)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, apperr.TypeInternal, apperr.TypeOf(err))
	assert.Zero(t, countReactions(t, env))

	// 恢复之后可以重新点赞，没有残留的点赞挡住唯一索引
	require.NoError(t, db.Migrate(env.db))
	res, err = env.reactions.React(ctx, fan.ID, target)
	require.NoError(t, err)
	assert.Equal(t, ReactCreated, res.Outcome)
	assert.Equal(t, int64(1), countReactions(t, env))
	assert.Equal(t, int64(1), countLedger(t, env))
}

func TestReact_CancelledContextWritesNothing(t *testing.T) {
	env := newTestEnv(t)

	author := db.CreateTestUser(t, env.db, "author")
	fan := db.CreateTestUser(t, env.db, "fan")
	post := db.CreateTestPost(t, env.db, author.ID, testNow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := env.reactions.React(ctx, fan.ID, Target{Kind: models.TargetPost, ID: post.ID})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, apperr.TypeInternal, apperr.TypeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, countReactions(t, env))
	assert.Zero(t, countLedger(t, env))
}

func TestUnreact_KeepsLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := db.CreateTestUser(t, env.db, "author")
	fan := db.CreateTestUser(t, env.db, "fan")
	post := db.CreateTestPost(t, env.db, author.ID, testNow)
	target := Target{Kind: models.TargetPost, ID: post.ID}

	_, err := env.reactions.React(ctx, fan.ID, target)
	require.NoError(t, err)

	outcome, err := env.reactions.Unreact(ctx, fan.ID, target)
	require.NoError(t, err)
	assert.Equal(t, UnreactRemoved, outcome)

	reacted, err := env.reactions.HasReacted(ctx, fan.ID, target)
	require.NoError(t, err)
	assert.False(t, reacted)

	// 声望一旦获得就是永久的
	total, err := env.ledger.SumFor(ctx, author.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(PointsPostLiked), total)
}

func TestUnreact_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := db.CreateTestUser(t, env.db, "author")
	fan := db.CreateTestUser(t, env.db, "fan")
	post := db.CreateTestPost(t, env.db, author.ID, testNow)

	outcome, err := env.reactions.Unreact(ctx, fan.ID, Target{Kind: models.TargetPost, ID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, UnreactNotFound, outcome)

	// 别人的点赞不能被取消
	_, err = env.reactions.React(ctx, author.ID, Target{Kind: models.TargetPost, ID: post.ID})
	require.NoError(t, err)
	outcome, err = env.reactions.Unreact(ctx, fan.ID, Target{Kind: models.TargetPost, ID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, UnreactNotFound, outcome)
}

func TestReact_AgainAfterUnreactEarnsAgain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := db.CreateTestUser(t, env.db, "author")
	fan := db.CreateTestUser(t, env.db, "fan")
	post := db.CreateTestPost(t, env.db, author.ID, testNow)
	target := Target{Kind: models.TargetPost, ID: post.ID}

	_, err := env.reactions.React(ctx, fan.ID, target)
	require.NoError(t, err)
	_, err = env.reactions.Unreact(ctx, fan.ID, target)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	res, err := env.reactions.React(ctx, fan.ID, target)
	require.NoError(t, err)
	assert.Equal(t, ReactCreated, res.Outcome)

	total, err := env.ledger.SumFor(ctx, author.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2*PointsPostLiked), total)
}

func TestReactedTargets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := db.CreateTestUser(t, env.db, "author")
	fan := db.CreateTestUser(t, env.db, "fan")
	p1 := db.CreateTestPost(t, env.db, author.ID, testNow)
	p2 := db.CreateTestPost(t, env.db, author.ID, testNow)
	p3 := db.CreateTestPost(t, env.db, author.ID, testNow)

	for _, p := range []uint{p1.ID, p3.ID} {
		_, err := env.reactions.React(ctx, fan.ID, Target{Kind: models.TargetPost, ID: p})
		require.NoError(t, err)
	}

	got, err := env.reactions.ReactedTargets(ctx, fan.ID, models.TargetPost, []uint{p1.ID, p2.ID, p3.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uint]bool{p1.ID: true, p3.ID: true}, got)

	got, err = env.reactions.ReactedTargets(ctx, 0, models.TargetPost, []uint{p1.ID})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReact_RecordsOutcomeMetrics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := db.CreateTestUser(t, env.db, "author")
	fan := db.CreateTestUser(t, env.db, "fan")
	post := db.CreateTestPost(t, env.db, author.ID, testNow)
	target := Target{Kind: models.TargetPost, ID: post.ID}

	created := metrics.ReactionsTotal.WithLabelValues("post", "created")
	conflict := metrics.ReactionsTotal.WithLabelValues("post", "conflict")
	points := metrics.LedgerPointsTotal.WithLabelValues("post")
	createdBefore := testutil.ToFloat64(created)
	conflictBefore := testutil.ToFloat64(conflict)
	pointsBefore := testutil.ToFloat64(points)

	_, err := env.reactions.React(ctx, fan.ID, target)
	require.NoError(t, err)
	_, err = env.reactions.React(ctx, fan.ID, target)
	require.NoError(t, err)

	assert.Equal(t, createdBefore+1, testutil.ToFloat64(created))
	assert.Equal(t, conflictBefore+1, testutil.ToFloat64(conflict))
	assert.Equal(t, pointsBefore+PointsPostLiked, testutil.ToFloat64(points))
}
