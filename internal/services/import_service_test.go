package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"musicez/internal/models"
	"musicez/internal/services"
	"musicez/internal/testutil"
)

func TestImportService_Import(t *testing.T) {
	ctx := context.Background()

	t.Run("existing record is returned without calling the provider", func(t *testing.T) {
		songRepo := &testutil.MockSongRepository{}
		catalog := &testutil.MockTrackCatalog{}
		existing := testutil.NewSongBuilder().WithNewID().WithSpotify(testutil.TestSpotifyID1).Build()
		testutil.ExpectFindBySpotifyID(songRepo, testutil.TestSpotifyID1, existing, nil)

		song, created, err := services.NewImportService(songRepo, catalog).Import(ctx, "spotify:track:"+testutil.TestSpotifyID1)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing.ID, song.ID)
		catalog.AssertNotCalled(t, "GetTrackByID", mock.Anything, mock.Anything)
	})

	t.Run("new track is fetched and inserted", func(t *testing.T) {
		songRepo := &testutil.MockSongRepository{}
		catalog := &testutil.MockTrackCatalog{}
		track := testutil.CreateBohemianRhapsodyTrack()

		testutil.ExpectFindBySpotifyID(songRepo, testutil.TestSpotifyID1, nil, nil)
		testutil.ExpectGetTrackByID(catalog, testutil.TestSpotifyID1, track, nil)
		testutil.ExpectFindByISRC(songRepo, testutil.TestISRC1, nil, nil)
		catalog.On("GetAudioFeatures", mock.Anything, testutil.TestSpotifyID1).Return(&models.AudioFeatures{Energy: 0.4, Tempo: 144}, nil)
		songRepo.On("InsertIfAbsent", mock.Anything, mock.AnythingOfType("*models.Song")).
			Return(func(_ context.Context, s *models.Song) *models.Song { return s }, true, nil).Once()

		song, created, err := services.NewImportService(songRepo, catalog).Import(ctx, services.BuildTrackURL(testutil.TestSpotifyID1))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "Bohemian Rhapsody", song.Title)
		assert.Equal(t, testutil.TestSpotifyID1, song.SpotifyID)
		assert.Equal(t, 1975, song.ReleaseYear)
		require.NotNil(t, song.AudioFeatures)
		assert.Equal(t, 144.0, song.AudioFeatures.Tempo)
		assert.NotEmpty(t, song.SearchTrigrams, "imported songs are searchable")
	})

	t.Run("unknown provider ID", func(t *testing.T) {
		songRepo := &testutil.MockSongRepository{}
		catalog := &testutil.MockTrackCatalog{}
		testutil.ExpectFindBySpotifyID(songRepo, testutil.TestSpotifyID2, nil, nil)
		testutil.ExpectGetTrackByID(catalog, testutil.TestSpotifyID2, nil, &services.ProviderError{
			Provider: services.ProviderSpotify, Operation: "get_track", StatusCode: 404, Err: services.ErrTrackNotFound,
		})

		_, _, err := services.NewImportService(songRepo, catalog).Import(ctx, testutil.TestSpotifyID2)
		assert.ErrorIs(t, err, services.ErrImportNotFound)
	})

	t.Run("same ISRC links the existing record", func(t *testing.T) {
		songRepo := &testutil.MockSongRepository{}
		catalog := &testutil.MockTrackCatalog{}
		seeded := testutil.CreateBohemianRhapsody()
		track := testutil.CreateBohemianRhapsodyTrack()

		testutil.ExpectFindBySpotifyID(songRepo, testutil.TestSpotifyID1, nil, nil)
		testutil.ExpectGetTrackByID(catalog, testutil.TestSpotifyID1, track, nil)
		testutil.ExpectFindByISRC(songRepo, testutil.TestISRC1, seeded, nil)
		songRepo.On("Update", mock.Anything, seeded).Return(nil).Once()

		song, created, err := services.NewImportService(songRepo, catalog).Import(ctx, testutil.TestSpotifyID1)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, testutil.TestSpotifyID1, song.SpotifyID)
		assert.Equal(t, track.PreviewURL, song.PreviewURL)
		songRepo.AssertExpectations(t)
		songRepo.AssertNotCalled(t, "InsertIfAbsent", mock.Anything, mock.Anything)
	})

	t.Run("audio feature failure does not block the import", func(t *testing.T) {
		songRepo := &testutil.MockSongRepository{}
		catalog := &testutil.MockTrackCatalog{}
		track := testutil.NewTrackInfoBuilder().Build()

		testutil.ExpectFindBySpotifyID(songRepo, testutil.TestSpotifyID1, nil, nil)
		testutil.ExpectGetTrackByID(catalog, testutil.TestSpotifyID1, track, nil)
		catalog.On("GetAudioFeatures", mock.Anything, testutil.TestSpotifyID1).Return(nil, errors.New("boom"))
		songRepo.On("InsertIfAbsent", mock.Anything, mock.AnythingOfType("*models.Song")).
			Return(func(_ context.Context, s *models.Song) *models.Song { return s }, true, nil).Once()

		song, created, err := services.NewImportService(songRepo, catalog).Import(ctx, testutil.TestSpotifyID1)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Nil(t, song.AudioFeatures)
	})

	t.Run("duplicate key race returns the winner", func(t *testing.T) {
		songRepo := &testutil.MockSongRepository{}
		catalog := &testutil.MockTrackCatalog{}
		track := testutil.NewTrackInfoBuilder().Build()
		winner := testutil.NewSongBuilder().WithNewID().WithSpotify(testutil.TestSpotifyID1).Build()

		testutil.ExpectFindBySpotifyID(songRepo, testutil.TestSpotifyID1, nil, nil)
		testutil.ExpectGetTrackByID(catalog, testutil.TestSpotifyID1, track, nil)
		catalog.On("GetAudioFeatures", mock.Anything, testutil.TestSpotifyID1).Return(nil, errors.New("skip"))
		songRepo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(winner, false, nil).Once()

		song, created, err := services.NewImportService(songRepo, catalog).Import(ctx, testutil.TestSpotifyID1)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, winner.ID, song.ID)
	})

	t.Run("invalid reference", func(t *testing.T) {
		_, _, err := services.NewImportService(&testutil.MockSongRepository{}, nil).Import(ctx, "https://example.com/not-a-track")
		assert.ErrorIs(t, err, services.ErrInvalidTrackID)
	})

	t.Run("provider not configured", func(t *testing.T) {
		songRepo := &testutil.MockSongRepository{}
		testutil.ExpectFindBySpotifyID(songRepo, testutil.TestSpotifyID1, nil, nil)

		_, _, err := services.NewImportService(songRepo, nil).Import(ctx, testutil.TestSpotifyID1)
		assert.ErrorIs(t, err, services.ErrProviderUnavailable)
	})
}
