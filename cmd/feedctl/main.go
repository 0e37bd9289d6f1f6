package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"commfeed/internal/config"
	"commfeed/internal/db"
	"commfeed/internal/logging"
	"commfeed/internal/services"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "feedctl",
		Short:         "Operator tool for the community feed database",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	connect := func() (*gorm.DB, func(), error) {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return conn, func() { closeDB(conn) }, nil
	}

	clock := clockwork.NewRealClock()
	root.AddCommand(newMigrateCmd(connect))
	root.AddCommand(newLeaderboardCmd(connect, clock, func() *config.Config { return cfg }))
	root.AddCommand(newKarmaCmd(connect, clock))
	return root
}

// connector 打开数据库，返回连接与对应的关闭函数
type connector func() (*gorm.DB, func(), error)

func closeDB(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logging.Logger.Warn("close database", "error", err)
	}
}

func newMigrateCmd(connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, closeConn, err := connect()
			if err != nil {
				return err
			}
			defer closeConn()
			if err := db.Migrate(conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}

func newLeaderboardCmd(connect connector, clock clockwork.Clock, cfg func() *config.Config) *cobra.Command {
	var (
		k      int
		window time.Duration
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the top users by reputation earned in a trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("k") {
				k = cfg().LeaderboardSize
			}
			if !cmd.Flags().Changed("window") {
				window = cfg().LeaderboardWindow
			}

			conn, closeConn, err := connect()
			if err != nil {
				return err
			}
			defer closeConn()

			board := services.NewLeaderboard(conn, clock)
			entries, err := board.Top(cmd.Context(), k, window)
			if err != nil {
				return err
			}
			return printLeaderboard(cmd, entries)
		},
	}

	cmd.Flags().IntVar(&k, "k", services.DefaultLeaderboardSize, "number of users to show")
	cmd.Flags().DurationVar(&window, "window", services.DefaultLeaderboardWindow, "trailing window, e.g. 24h or 168h")
	return cmd
}

func printLeaderboard(cmd *cobra.Command, entries []services.LeaderboardEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tUSER ID\tUSERNAME\tPOINTS")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%d\t%s\t%d\n", e.Rank, e.UserID, e.Username, e.TotalPoints)
	}
	return w.Flush()
}

func newKarmaCmd(connect connector, clock clockwork.Clock) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "karma <user-id>",
		Short: "Print a user's reputation derived from the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || userID == 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			conn, closeConn, err := connect()
			if err != nil {
				return err
			}
			defer closeConn()

			ledger := services.NewLedger(conn)
			var from *time.Time
			if since > 0 {
				t := clock.Now().UTC().Add(-since)
				from = &t
			}
			total, err := ledger.SumFor(cmd.Context(), uint(userID), from)
			if err != nil {
				return err
			}

			if from != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "user %d: %d points since %s\n", userID, total, from.Format(time.RFC3339))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "user %d: %d points\n", userID, total)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "only count entries in this trailing window (0 = all time)")
	return cmd
}
