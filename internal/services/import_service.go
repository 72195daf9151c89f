package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"musicez/internal/metrics"
	"musicez/internal/models"
	"musicez/internal/repositories"
)

// ErrImportNotFound means the provider has no track for the requested ID
var ErrImportNotFound = errors.New("track to import not found")

// ImportService adds provider tracks to the local catalog
type ImportService struct {
	songRepo repositories.SongRepository
	catalog  TrackCatalog
}

// NewImportService creates a new import service. catalog may be nil when
// no provider is configured; imports of unknown tracks then fail.
func NewImportService(songRepo repositories.SongRepository, catalog TrackCatalog) *ImportService {
	return &ImportService{
		songRepo: songRepo,
		catalog:  catalog,
	}
}

// Import resolves a track reference (ID, URI or URL) into a catalog record.
// created is false when the record already existed; that is not an error.
func (s *ImportService) Import(ctx context.Context, ref string) (*models.Song, bool, error) {
	trackID, err := ParseTrackID(ref)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.songRepo.FindBySpotifyID(ctx, trackID)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to check existing song: %w", err)
	}
	if existing != nil {
		slog.Info("Import found existing song", "spotifyID", trackID, "songID", existing.ID.Hex())
		metrics.ImportsTotal.WithLabelValues("existing").Inc()
		return existing, false, nil
	}

	if s.catalog == nil {
		return nil, false, &ProviderError{
			Provider:  ProviderSpotify,
			Operation: "import",
			Message:   "provider not configured",
			Err:       ErrProviderUnavailable,
		}
	}

	track, err := s.catalog.GetTrackByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, ErrTrackNotFound) {
			metrics.ImportsTotal.WithLabelValues("not_found").Inc()
			return nil, false, fmt.Errorf("%w: %s", ErrImportNotFound, trackID)
		}
		metrics.ImportsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to get track info: %w", err)
	}

	// Same recording imported under another provider ID or seeded without one
	if track.ISRC != "" {
		byISRC, err := s.songRepo.FindByISRC(ctx, track.ISRC)
		if err != nil {
			metrics.ImportsTotal.WithLabelValues("error").Inc()
			return nil, false, fmt.Errorf("failed to check existing song by ISRC: %w", err)
		}
		if byISRC != nil {
			if byISRC.SpotifyID == "" {
				byISRC.LinkSpotify(track.ExternalID, track.URL, track.PreviewURL)
				if err := s.songRepo.Update(ctx, byISRC); err != nil {
					slog.Error("Failed to link provider ID to existing song", "songID", byISRC.ID.Hex(), "error", err)
				}
			}
			slog.Info("Import matched existing song by ISRC", "isrc", track.ISRC, "songID", byISRC.ID.Hex())
			metrics.ImportsTotal.WithLabelValues("linked").Inc()
			return byISRC, false, nil
		}
	}

	song := track.ToSong()
	features, err := s.catalog.GetAudioFeatures(ctx, trackID)
	if err != nil {
		slog.Warn("Failed to fetch audio features", "spotifyID", trackID, "error", err)
	} else {
		song.AudioFeatures = features
	}

	stored, created, err := s.songRepo.InsertIfAbsent(ctx, song)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to save imported song: %w", err)
	}

	if created {
		slog.Info("Imported new song", "songID", stored.ID.Hex(), "title", stored.Title, "spotifyID", trackID)
		metrics.ImportsTotal.WithLabelValues("created").Inc()
	} else {
		metrics.ImportsTotal.WithLabelValues("existing").Inc()
	}
	return stored, created, nil
}
