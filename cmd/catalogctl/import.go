package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"musicez/internal/repositories"
	"musicez/internal/services"
)

var importWorkers int

var importCmd = &cobra.Command{
	Use:   "import <spotify-id|uri|url>...",
	Short: "Import tracks from Spotify into the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.SpotifyEnabled() {
			return errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required for import")
		}

		spotify := services.NewSpotifyService(services.SpotifyConfig{
			ClientID:       cfg.SpotifyClientID,
			ClientSecret:   cfg.SpotifyClientSecret,
			APIURL:         cfg.SpotifyAPIURL,
			TokenURL:       cfg.SpotifyTokenURL,
			ConnectTimeout: cfg.ProviderConnectTimeout,
			RateLimit:      cfg.ProviderRateLimit,
		}, nil)
		importer := services.NewImportService(repositories.NewMongoSongRepository(db), spotify)

		out := cmd.OutOrStdout()
		failed := 0
		for _, r := range importer.ImportMany(cmd.Context(), args, importWorkers) {
			switch {
			case r.Err != nil:
				failed++
				fmt.Fprintf(out, "FAIL     %s: %v\n", r.Ref, r.Err)
			case r.Created:
				fmt.Fprintf(out, "CREATED  %s -> %s (%s - %s)\n", r.Ref, r.Song.ID.Hex(), r.Song.Artist, r.Song.Title)
			default:
				fmt.Fprintf(out, "EXISTS   %s -> %s (%s - %s)\n", r.Ref, r.Song.ID.Hex(), r.Song.Artist, r.Song.Title)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d imports failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().IntVar(&importWorkers, "workers", 4, "concurrent imports")
	rootCmd.AddCommand(importCmd)
}
