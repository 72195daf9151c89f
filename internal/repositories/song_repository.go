package repositories

import (
	"context"
	"errors"

	"musicez/internal/models"
	"musicez/internal/scoring"
)

// ErrNotFound is returned by writes that target a record which does not exist
var ErrNotFound = errors.New("record not found")

// SimilarityQuery describes a fuzzy catalog lookup
type SimilarityQuery struct {
	Text      string
	Threshold float64
	Limit     int

	Weights scoring.Weights
	// MaxCandidates bounds how many prefiltered rows are scored
	MaxCandidates int
}

// ScoredSong is a catalog row with its similarity to the query text
type ScoredSong struct {
	Song  *models.Song
	Score float64
}

// SongRepository defines the interface for catalog data operations.
// Find methods return nil, nil when nothing matches.
type SongRepository interface {
	// Create and Update
	Save(ctx context.Context, song *models.Song) error
	Update(ctx context.Context, song *models.Song) error
	// InsertIfAbsent inserts song unless a record with the same Spotify ID
	// exists, in which case the existing record is returned with created=false
	InsertIfAbsent(ctx context.Context, song *models.Song) (stored *models.Song, created bool, err error)

	// Find operations
	FindByID(ctx context.Context, id string) (*models.Song, error)
	FindBySpotifyID(ctx context.Context, spotifyID string) (*models.Song, error)
	FindByISRC(ctx context.Context, isrc string) (*models.Song, error)

	// Search operations
	SimilaritySearch(ctx context.Context, q SimilarityQuery) ([]ScoredSong, error)

	// Maintenance operations
	Each(ctx context.Context, batchSize int, fn func(*models.Song) error) error
	UpdateSearchIndex(ctx context.Context, song *models.Song) error
	Count(ctx context.Context) (int64, error)
}

// ConnectionRepository stores users' provider OAuth connections
type ConnectionRepository interface {
	FindByUser(ctx context.Context, userID, provider string) (*models.ProviderConnection, error)
	Upsert(ctx context.Context, conn *models.ProviderConnection) error
	Delete(ctx context.Context, userID, provider string) error
}
