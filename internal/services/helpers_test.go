package services

import (
	"testing"
	"time"

	"commfeed/internal/db"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db          *gorm.DB
	clock       *clockwork.FakeClock
	ledger      *Ledger
	reactions   *ReactionService
	comments    *CommentService
	users       *UserService
	leaderboard *Leaderboard
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn := db.OpenTestDB(t)
	clock := clockwork.NewFakeClockAt(testNow)
	ledger := NewLedger(conn)

	return &testEnv{
		db:          conn,
		clock:       clock,
		ledger:      ledger,
		reactions:   NewReactionService(conn, ledger, clock),
		comments:    NewCommentService(conn, clock),
		users:       NewUserService(conn, ledger, clock),
		leaderboard: NewLeaderboard(conn, clock),
	}
}
