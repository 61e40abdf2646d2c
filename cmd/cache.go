package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the durable enrichment cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached predictions older than the cache TTL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ttl := time.Duration(cfg.Enrich.CacheTTLHours) * time.Hour
		before := time.Now().Add(-ttl)
		n, err := st.DeleteExpiredPredictions(ctx, before)
		if err != nil {
			return eris.Wrap(err, "cache prune")
		}

		zap.L().Info("cache pruned", zap.Int("deleted", n), zap.Time("before", before))
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired predictions.\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
