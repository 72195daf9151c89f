package repositories

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"musicez/internal/cache"
	"musicez/internal/models"
)

// cachedSongRepository wraps a SongRepository with caching of point lookups.
// Similarity searches are cached one level up, by the search engine.
type cachedSongRepository struct {
	repository SongRepository
	cache      cache.Cache
}

// NewCachedSongRepository creates a new cached song repository
func NewCachedSongRepository(repository SongRepository, cache cache.Cache) SongRepository {
	return &cachedSongRepository{
		repository: repository,
		cache:      cache,
	}
}

// Cache key generators
func songIDKey(id string) string { return "musicez:song:id:" + id }
func songISRCKey(isrc string) string { return "musicez:song:isrc:" + isrc }
func songSpotifyKey(id string) string { return "musicez:song:spotify:" + id }

const (
	songCacheTTL     = 1 * time.Hour
	negativeCacheTTL = 5 * time.Minute // For null results
)

// Save invalidates relevant cache entries and saves to repository
func (r *cachedSongRepository) Save(ctx context.Context, song *models.Song) error {
	if err := r.repository.Save(ctx, song); err != nil {
		return err
	}
	r.invalidateSongCache(ctx, song)
	return nil
}

// Update invalidates cache and updates in repository
func (r *cachedSongRepository) Update(ctx context.Context, song *models.Song) error {
	if err := r.repository.Update(ctx, song); err != nil {
		return err
	}
	r.invalidateSongCache(ctx, song)
	return nil
}

// InsertIfAbsent clears negative entries left by earlier misses
func (r *cachedSongRepository) InsertIfAbsent(ctx context.Context, song *models.Song) (*models.Song, bool, error) {
	stored, created, err := r.repository.InsertIfAbsent(ctx, song)
	if err != nil {
		return nil, false, err
	}
	if created {
		r.invalidateSongCache(ctx, stored)
	}
	return stored, created, nil
}

// FindByID checks cache first, then repository
func (r *cachedSongRepository) FindByID(ctx context.Context, id string) (*models.Song, error) {
	return r.cachedLookup(ctx, songIDKey(id), func() (*models.Song, error) {
		return r.repository.FindByID(ctx, id)
	})
}

// FindBySpotifyID checks cache first, then repository
func (r *cachedSongRepository) FindBySpotifyID(ctx context.Context, spotifyID string) (*models.Song, error) {
	return r.cachedLookup(ctx, songSpotifyKey(spotifyID), func() (*models.Song, error) {
		return r.repository.FindBySpotifyID(ctx, spotifyID)
	})
}

// FindByISRC checks cache first, then repository
func (r *cachedSongRepository) FindByISRC(ctx context.Context, isrc string) (*models.Song, error) {
	return r.cachedLookup(ctx, songISRCKey(isrc), func() (*models.Song, error) {
		return r.repository.FindByISRC(ctx, isrc)
	})
}

func (r *cachedSongRepository) SimilaritySearch(ctx context.Context, q SimilarityQuery) ([]ScoredSong, error) {
	return r.repository.SimilaritySearch(ctx, q)
}

func (r *cachedSongRepository) Each(ctx context.Context, batchSize int, fn func(*models.Song) error) error {
	return r.repository.Each(ctx, batchSize, fn)
}

func (r *cachedSongRepository) UpdateSearchIndex(ctx context.Context, song *models.Song) error {
	if err := r.repository.UpdateSearchIndex(ctx, song); err != nil {
		return err
	}
	r.invalidateSongCache(ctx, song)
	return nil
}

// Count - not cached as it changes frequently
func (r *cachedSongRepository) Count(ctx context.Context) (int64, error) {
	return r.repository.Count(ctx)
}

func (r *cachedSongRepository) cachedLookup(ctx context.Context, key string, load func() (*models.Song, error)) (*models.Song, error) {
	if cached, hit := r.getFromCache(ctx, key); hit {
		return cached, nil
	}

	song, err := load()
	if err != nil {
		return nil, err
	}

	// Cache the result (even if nil)
	r.cacheResult(ctx, key, song)
	return song, nil
}

// getFromCache reports a hit for cached songs and cached negative results
func (r *cachedSongRepository) getFromCache(ctx context.Context, key string) (*models.Song, bool) {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Song cache read failed", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	// Handle negative cache (null result marker)
	if string(data) == "null" {
		return nil, true
	}

	var song models.Song
	if err := json.Unmarshal(data, &song); err != nil {
		slog.Error("Failed to unmarshal song from cache", "key", key, "error", err)
		// Delete corrupted cache entry
		_ = r.cache.Delete(ctx, key)
		return nil, false
	}

	return &song, true
}

// cacheResult caches a single song result
func (r *cachedSongRepository) cacheResult(ctx context.Context, key string, song *models.Song) {
	data := []byte("null")
	ttl := negativeCacheTTL

	if song != nil {
		encoded, err := json.Marshal(song)
		if err != nil {
			slog.Error("Failed to marshal song for cache", "key", key, "error", err)
			return
		}
		data = encoded
		ttl = songCacheTTL
	}

	if err := r.cache.Set(ctx, key, data, ttl); err != nil {
		slog.Error("Failed to cache song", "key", key, "error", err)
	}
}

// invalidateSongCache removes all cache entries for a song
func (r *cachedSongRepository) invalidateSongCache(ctx context.Context, song *models.Song) {
	keys := make([]string, 0, 3)
	if !song.ID.IsZero() {
		keys = append(keys, songIDKey(song.ID.Hex()))
	}
	if song.ISRC != "" {
		keys = append(keys, songISRCKey(song.ISRC))
	}
	if song.SpotifyID != "" {
		keys = append(keys, songSpotifyKey(song.SpotifyID))
	}

	for _, key := range keys {
		if err := r.cache.Delete(ctx, key); err != nil {
			slog.Warn("Failed to invalidate song cache", "key", key, "error", err)
		}
	}

	// Search entries are not invalidated here; they expire by TTL
}
