package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"musicez/internal/repositories"
	"musicez/internal/services"
)

var (
	reindexBatch   int
	reindexWorkers int
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Recompute the search text and trigrams of every song",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		start := time.Now()
		slog.Info("Starting reindex", "batch", reindexBatch, "workers", reindexWorkers)

		stats, err := services.ReindexSongs(cmd.Context(), repositories.NewMongoSongRepository(db), reindexBatch, reindexWorkers)
		slog.Info("Reindex finished", "scanned", stats.Scanned, "updated", stats.Updated, "duration", time.Since(start))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "scanned %d songs, updated %d\n", stats.Scanned, stats.Updated)
		return nil
	},
}

func init() {
	reindexCmd.Flags().IntVar(&reindexBatch, "batch", 500, "cursor batch size")
	reindexCmd.Flags().IntVar(&reindexWorkers, "workers", 8, "concurrent writes")
	rootCmd.AddCommand(reindexCmd)
}
