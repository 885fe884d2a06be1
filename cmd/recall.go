// File: cmd/recall.go
package cmd

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/config"
	"github.com/voidmaw/wayfarer/internal/observability"
	"github.com/voidmaw/wayfarer/internal/store"
)

// recentLister is the slice of the store the --recent path needs. Declared
// here so tests can inject a mock instead of a live database.
type recentLister interface {
	RecentAPIRequests(ctx context.Context, limit int) ([]schemas.APIInteraction, error)
}

// openRecentLister opens a short-lived persistence session. Swapped in tests.
var openRecentLister = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (recentLister, func(), error) {
	session, err := store.NewSessionFactory(cfg.Database, logger)(ctx)
	if err != nil {
		return nil, nil, err
	}
	return session, session.Close, nil
}

// newRecallCmd creates the `recall` command: semantic search over learned API
// knowledge, or with --recent a listing of the latest captures from the store.
func newRecallCmd() *cobra.Command {
	var recent bool
	var limit int

	recallCmd := &cobra.Command{
		Use:   "recall [\"<query>\"]",
		Short: "Search learned API knowledge, or list recent captures",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			if recent {
				return listRecent(cmd, cfg, logger, limit)
			}

			if len(args) != 1 {
				return errors.New("recall needs a query unless --recent is set")
			}
			query := args[0]

			engine, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			records, err := engine.APISearch(ctx, query)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("No matching memories.")
				return nil
			}
			for i, rec := range records {
				cmd.Printf("%d. [%.3f] (%s) %s\n", i+1, rec.Score, rec.Type(), firstLine(rec.Text))
			}
			return nil
		},
	}

	recallCmd.Flags().BoolVar(&recent, "recent", false, "List the most recent captured API requests from the store")
	recallCmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of recent captures to print")
	return recallCmd
}

func listRecent(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, limit int) error {
	lister, cleanup, err := openRecentLister(cmd.Context(), cfg, logger)
	if err != nil {
		if errors.Is(err, store.ErrPersistenceDisabled) {
			return errors.New("--recent needs a configured database (WAYFARER_DATABASE_URL)")
		}
		return err
	}
	defer cleanup()

	requests, err := lister.RecentAPIRequests(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		cmd.Println("No captured API requests on record.")
		return nil
	}
	for i, r := range requests {
		cmd.Printf("%d. %s -> %d (%s)\n", i+1, r.RequestLine(), r.StatusCode, r.CapturedAt.Format(time.RFC3339))
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
