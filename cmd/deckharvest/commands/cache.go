package commands

import (
	"fmt"

	"deckharvest/internal/pagecache"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspects and manages the page cache.",
}

var cacheKeyCmd = &cobra.Command{
	Use:   "key <url>",
	Short: "Prints the cache key a url is stored under.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), pagecache.DeriveKey(args[0]))
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Removes every entry of the configured page cache.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := pagecache.Open(cfg.CacheBackend(), cfg.Cache.Dir)
		if err != nil {
			return fmt.Errorf("open page cache: %w", err)
		}
		defer cache.Close()

		removed, err := cache.Clear(cmd.Context())
		if err != nil {
			return fmt.Errorf("clear page cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached pages from %s\n", removed, cfg.Cache.Dir)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheKeyCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
