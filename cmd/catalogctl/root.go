package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"musicez/internal/config"
	"musicez/internal/models"
)

var (
	cfg *config.Config
	db  *models.Database
)

var rootCmd = &cobra.Command{
	Use:          "catalogctl",
	Short:        "MusicEZ catalog maintenance",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Load .env file for local development
		_ = godotenv.Load()

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		db, err = models.NewDatabase(ctx, cfg.MongodbURL, cfg.MongodbDatabase)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if db == nil {
			return nil
		}
		return db.Close(context.Background())
	},
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
