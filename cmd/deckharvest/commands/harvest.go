package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"deckharvest/internal/fetch"
	"deckharvest/internal/pagecache"
	"deckharvest/internal/paginate"
	"deckharvest/internal/recordstore"
	"deckharvest/internal/speakerdeck"

	"github.com/spf13/cobra"
)

const report_harvest_count = "harvest.presentations"

type harvestFlags struct {
	limit  int
	format string
	db     string
}

func addHarvestFlags(cmd *cobra.Command) *harvestFlags {
	flags := &harvestFlags{}
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Stop after this many presentations, 0 means no limit.")
	cmd.Flags().StringVar(&flags.format, "format", "log", "Output format: log, table or json.")
	cmd.Flags().StringVar(&flags.db, "db", "", "Also write the presentations to this sqlite database.")
	return flags
}

var userFlags *harvestFlags

var userCmd = &cobra.Command{
	Use:   "user <username> [--limit n] [--format log|table|json] [--db <path/to/output.db>]",
	Short: "Harvests every presentation of a user.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return harvest(cmd, recordstore.QueryUser, args[0], userFlags)
	},
}

var searchFlags *harvestFlags

var searchCmd = &cobra.Command{
	Use:   "search <query> [--limit n] [--format log|table|json] [--db <path/to/output.db>]",
	Short: "Harvests every search result of a query.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return harvest(cmd, recordstore.QuerySearch, args[0], searchFlags)
	},
}

func init() {
	userFlags = addHarvestFlags(userCmd)
	searchFlags = addHarvestFlags(searchCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(searchCmd)
}

func openStore(flags *harvestFlags) (*recordstore.Store, error) {
	opts := recordstore.Options{
		File:      cfg.Output.Database.File,
		Url:       cfg.Output.Database.Url,
		AuthToken: cfg.Output.Database.AuthToken,
	}
	if flags.db != "" {
		opts = recordstore.Options{File: flags.db}
	}
	if opts.File == "" && opts.Url == "" {
		return nil, nil
	}
	store, err := recordstore.Open(opts)
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func newClient(cache pagecache.Cache) (speakerdeck.Client, error) {
	fetcher := fetch.NewRestyFetcher(cfg.FetchOptions(), tel)
	source := fetch.NewCachedFetcher(cache, fetcher, tel)
	return speakerdeck.NewClient(cfg.BaseUrl, source, cfg.Resolution(), tel)
}

func harvest(cmd *cobra.Command, kind recordstore.QueryKind, query string, flags *harvestFlags) error {
	ctx := cmd.Context()

	out, err := newOutput(flags.format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cache, err := pagecache.Open(cfg.CacheBackend(), cfg.Cache.Dir)
	if err != nil {
		return fmt.Errorf("open page cache: %w", err)
	}
	defer cache.Close()

	client, err := newClient(cache)
	if err != nil {
		return err
	}

	store, err := openStore(flags)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var it *paginate.Iterator[speakerdeck.Presentation]
	switch kind {
	case recordstore.QueryUser:
		it = client.UserPresentations(query)
	case recordstore.QuerySearch:
		it = client.SearchPresentations(query)
	}

	slog.Info("harvesting", "kind", kind, "query", query, "cache", cfg.CacheBackend())

	start := time.Now()
	count, err := drain(ctx, it, flags.limit, func(p speakerdeck.Presentation) error {
		record := recordstore.Record{
			Kind:         kind,
			Query:        query,
			Page:         it.Page(),
			HarvestedAt:  time.Now(),
			Presentation: p,
		}
		if store != nil {
			err := store.Put(ctx, record)
			if err != nil {
				return err
			}
		}
		return out.Add(record)
	})

	flushErr := out.Flush()
	if err != nil {
		return fmt.Errorf("harvest %s %q: %w", kind, query, err)
	}
	if flushErr != nil {
		return flushErr
	}

	slog.Info(
		"harvest finished",
		"presentations", count,
		"pages", it.Pages(),
		"seconds", time.Since(start).Seconds(),
	)
	return nil
}

// drain hands every item to handle until the iterator is exhausted or limit
// items have been handled.
func drain(
	ctx context.Context,
	it *paginate.Iterator[speakerdeck.Presentation],
	limit int,
	handle func(p speakerdeck.Presentation) error,
) (int, error) {
	count := 0
	for p, err := range it.All(ctx) {
		if err != nil {
			return count, err
		}
		err = handle(p)
		if err != nil {
			return count, err
		}
		count++
		tel.ReportCount(report_harvest_count, int64(count))
		if limit > 0 && count >= limit {
			break
		}
	}
	return count, nil
}
