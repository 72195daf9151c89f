package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"musicez/internal/models"
	"musicez/internal/repositories"
	"musicez/internal/services"
)

// MockSongRepository is a mock implementation of SongRepository for testing
type MockSongRepository struct {
	mock.Mock
}

func (m *MockSongRepository) Save(ctx context.Context, song *models.Song) error {
	args := m.Called(ctx, song)
	return args.Error(0)
}

func (m *MockSongRepository) Update(ctx context.Context, song *models.Song) error {
	args := m.Called(ctx, song)
	return args.Error(0)
}

func (m *MockSongRepository) InsertIfAbsent(ctx context.Context, song *models.Song) (*models.Song, bool, error) {
	args := m.Called(ctx, song)
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Bool(1), args.Error(2)
	case func(context.Context, *models.Song) *models.Song:
		return v(ctx, song), args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Song), args.Bool(1), args.Error(2)
}

func (m *MockSongRepository) FindByID(ctx context.Context, id string) (*models.Song, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Song), args.Error(1)
}

func (m *MockSongRepository) FindBySpotifyID(ctx context.Context, spotifyID string) (*models.Song, error) {
	args := m.Called(ctx, spotifyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Song), args.Error(1)
}

func (m *MockSongRepository) FindByISRC(ctx context.Context, isrc string) (*models.Song, error) {
	args := m.Called(ctx, isrc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Song), args.Error(1)
}

func (m *MockSongRepository) SimilaritySearch(ctx context.Context, q repositories.SimilarityQuery) ([]repositories.ScoredSong, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repositories.ScoredSong), args.Error(1)
}

func (m *MockSongRepository) Each(ctx context.Context, batchSize int, fn func(*models.Song) error) error {
	args := m.Called(ctx, batchSize, fn)
	return args.Error(0)
}

func (m *MockSongRepository) UpdateSearchIndex(ctx context.Context, song *models.Song) error {
	args := m.Called(ctx, song)
	return args.Error(0)
}

func (m *MockSongRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockConnectionRepository is a mock implementation of ConnectionRepository
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) FindByUser(ctx context.Context, userID, provider string) (*models.ProviderConnection, error) {
	args := m.Called(ctx, userID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProviderConnection), args.Error(1)
}

func (m *MockConnectionRepository) Upsert(ctx context.Context, conn *models.ProviderConnection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockConnectionRepository) Delete(ctx context.Context, userID, provider string) error {
	args := m.Called(ctx, userID, provider)
	return args.Error(0)
}

// MockTrackCatalog is a mock implementation of services.TrackCatalog
type MockTrackCatalog struct {
	mock.Mock
}

func (m *MockTrackCatalog) GetTrackByID(ctx context.Context, trackID string) (*services.TrackInfo, error) {
	args := m.Called(ctx, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TrackInfo), args.Error(1)
}

func (m *MockTrackCatalog) GetAudioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error) {
	args := m.Called(ctx, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AudioFeatures), args.Error(1)
}

// MockTrackSearcher is a mock implementation of services.TrackSearcher
type MockTrackSearcher struct {
	mock.Mock
}

func (m *MockTrackSearcher) SearchTracksForUser(ctx context.Context, userID, query string, limit int) ([]*services.TrackInfo, error) {
	args := m.Called(ctx, userID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*services.TrackInfo), args.Error(1)
}

// MockRecommender is a mock implementation of services.Recommender
type MockRecommender struct {
	mock.Mock
}

func (m *MockRecommender) Recommend(ctx context.Context, seed *models.Song, limit int) ([]services.Suggestion, error) {
	args := m.Called(ctx, seed, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.Suggestion), args.Error(1)
}

// Helper functions for setting up mock expectations

// ExpectFindBySpotifyID sets up expectation for FindBySpotifyID
func ExpectFindBySpotifyID(mockRepo *MockSongRepository, spotifyID string, song *models.Song, err error) {
	mockRepo.On("FindBySpotifyID", mock.Anything, spotifyID).Return(song, err)
}

// ExpectFindByISRC sets up expectation for FindByISRC
func ExpectFindByISRC(mockRepo *MockSongRepository, isrc string, song *models.Song, err error) {
	mockRepo.On("FindByISRC", mock.Anything, isrc).Return(song, err)
}

// ExpectGetTrackByID sets up expectation for GetTrackByID
func ExpectGetTrackByID(mockCatalog *MockTrackCatalog, trackID string, track *services.TrackInfo, err error) {
	mockCatalog.On("GetTrackByID", mock.Anything, trackID).Return(track, err)
}
