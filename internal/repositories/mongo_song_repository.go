package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"musicez/internal/models"
	"musicez/internal/scoring"
)

const defaultMaxCandidates = 2000

// mongoSongRepository implements SongRepository interface using MongoDB
type mongoSongRepository struct {
	collection *mongo.Collection
}

// NewMongoSongRepository creates a new MongoDB-backed song repository
func NewMongoSongRepository(db *models.Database) SongRepository {
	return &mongoSongRepository{
		collection: db.DB.Collection(models.SongsCollection),
	}
}

// Save creates a new song or replaces the existing one
func (r *mongoSongRepository) Save(ctx context.Context, song *models.Song) error {
	song.RefreshSearchIndex()
	song.UpdatedAt = time.Now()

	if song.ID.IsZero() {
		song.CreatedAt = song.UpdatedAt
		result, err := r.collection.InsertOne(ctx, song)
		if err != nil {
			return fmt.Errorf("failed to insert song: %w", err)
		}
		song.ID = result.InsertedID.(primitive.ObjectID)
		return nil
	}

	if song.CreatedAt.IsZero() {
		song.CreatedAt = song.UpdatedAt
	}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": song.ID}, song, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save song: %w", err)
	}
	return nil
}

// Update replaces an existing song
func (r *mongoSongRepository) Update(ctx context.Context, song *models.Song) error {
	if song.ID.IsZero() {
		return fmt.Errorf("song ID is required for update")
	}

	song.RefreshSearchIndex()
	song.UpdatedAt = time.Now()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": song.ID}, song)
	if err != nil {
		return fmt.Errorf("failed to update song: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("failed to update song %s: %w", song.ID.Hex(), ErrNotFound)
	}
	return nil
}

// InsertIfAbsent inserts song, resolving duplicate-key races by returning the winner
func (r *mongoSongRepository) InsertIfAbsent(ctx context.Context, song *models.Song) (*models.Song, bool, error) {
	if song.SpotifyID != "" {
		existing, err := r.FindBySpotifyID(ctx, song.SpotifyID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	err := r.Save(ctx, song)
	if err == nil {
		return song, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) || song.SpotifyID == "" {
		return nil, false, err
	}

	existing, findErr := r.FindBySpotifyID(ctx, song.SpotifyID)
	if findErr != nil {
		return nil, false, findErr
	}
	if existing == nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FindByID finds a song by its ObjectID
func (r *mongoSongRepository) FindByID(ctx context.Context, id string) (*models.Song, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"_id": objectID}, "ID")
}

// FindBySpotifyID finds a song by its provider track ID
func (r *mongoSongRepository) FindBySpotifyID(ctx context.Context, spotifyID string) (*models.Song, error) {
	return r.findOne(ctx, bson.M{"spotify_id": spotifyID}, "Spotify ID")
}

// FindByISRC finds a song by its ISRC code
func (r *mongoSongRepository) FindByISRC(ctx context.Context, isrc string) (*models.Song, error) {
	return r.findOne(ctx, bson.M{"isrc": isrc}, "ISRC")
}

func (r *mongoSongRepository) findOne(ctx context.Context, filter bson.M, by string) (*models.Song, error) {
	var song models.Song
	err := r.collection.FindOne(ctx, filter).Decode(&song)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find song by %s: %w", by, err)
	}

	r.handleSchemaEvolution(&song)
	return &song, nil
}

// SimilaritySearch prefilters rows sharing at least one trigram with the
// query through the multikey index, then scores them in process.
func (r *mongoSongRepository) SimilaritySearch(ctx context.Context, q SimilarityQuery) ([]ScoredSong, error) {
	scorer := scoring.NewScorer(q.Text, q.Weights)
	trigrams := scorer.QueryTrigrams()
	if len(trigrams) == 0 || q.Limit <= 0 {
		return []ScoredSong{}, nil
	}

	maxCandidates := q.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}

	// Recall is bounded: only the maxCandidates most popular rows sharing a
	// trigram are scored, so a close but obscure match can lose its place to
	// popular partial matches on short or common queries.
	filter := bson.M{"search_trigrams": bson.M{"$in": trigrams}}
	opts := options.Find().
		SetLimit(int64(maxCandidates)).
		SetSort(bson.D{{Key: "popularity", Value: -1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search songs: %w", err)
	}
	defer cursor.Close(ctx)

	var songs []*models.Song
	for cursor.Next(ctx) {
		var song models.Song
		if err := cursor.Decode(&song); err != nil {
			slog.Error("Failed to decode song", "error", err)
			continue
		}
		songs = append(songs, &song)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to search songs: %w", err)
	}

	return rankSongs(scorer, songs, q.Threshold, q.Limit), nil
}

// rankSongs scores rows, drops those under threshold and orders the rest by
// score, popularity, then ID so equal inputs always rank the same way
func rankSongs(scorer *scoring.Scorer, songs []*models.Song, threshold float64, limit int) []ScoredSong {
	scored := make([]ScoredSong, 0, len(songs))
	for _, song := range songs {
		text := scoring.FromList(song.SearchTrigrams)
		if len(text) == 0 {
			text = scoring.NewSet(models.BuildSearchText(song.Title, song.Artist, song.Album))
		}
		score := scorer.Score(song.Title, text)
		if score < threshold {
			continue
		}
		scored = append(scored, ScoredSong{Song: song, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Song.Popularity != b.Song.Popularity {
			return a.Song.Popularity > b.Song.Popularity
		}
		return a.Song.ID.Hex() < b.Song.ID.Hex()
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Each streams the whole collection in ID order
func (r *mongoSongRepository) Each(ctx context.Context, batchSize int, fn func(*models.Song) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if batchSize > 0 {
		opts.SetBatchSize(int32(batchSize))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("failed to iterate songs: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var song models.Song
		if err := cursor.Decode(&song); err != nil {
			slog.Error("Failed to decode song", "error", err)
			continue
		}
		if err := fn(&song); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// UpdateSearchIndex writes only the derived search fields
func (r *mongoSongRepository) UpdateSearchIndex(ctx context.Context, song *models.Song) error {
	update := bson.M{"$set": bson.M{
		"search_text":     song.SearchText,
		"search_trigrams": song.SearchTrigrams,
		"schema_version":  song.SchemaVersion,
		"updated_at":      time.Now(),
	}}
	if _, err := r.collection.UpdateByID(ctx, song.ID, update); err != nil {
		return fmt.Errorf("failed to update search index: %w", err)
	}
	return nil
}

// Count returns the total number of songs in the collection
func (r *mongoSongRepository) Count(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return count, nil
}

// handleSchemaEvolution upgrades documents written before the trigram index existed
func (r *mongoSongRepository) handleSchemaEvolution(song *models.Song) {
	if song.SchemaVersion >= models.CurrentSchemaVersion {
		return
	}
	if !song.RefreshSearchIndex() {
		return
	}

	// Lazy update the document in the database
	snapshot := *song
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.UpdateSearchIndex(ctx, &snapshot); err != nil {
			slog.Error("Failed to upgrade song schema", "songID", snapshot.ID, "error", err)
		}
	}()
}
