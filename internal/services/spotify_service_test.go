package services_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"musicez/internal/models"
	"musicez/internal/services"
	"musicez/internal/testutil"
)

func newTestSpotifyService(t *testing.T, server *testutil.MockHTTPServer, connections *testutil.MockConnectionRepository) *services.SpotifyService {
	t.Helper()
	return services.NewSpotifyService(services.SpotifyConfig{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		APIURL:         server.URL() + "/v1",
		TokenURL:       server.URL() + "/api/token",
		RequestTimeout: 2 * time.Second,
		ConnectTimeout: time.Second,
		RateLimit:      60000,
	}, connections)
}

func TestSpotifyService_GetTrackByID(t *testing.T) {
	server := testutil.NewMockHTTPServer()
	defer server.Close()

	server.On("/api/token", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, testutil.SpotifyTokenResponse("app-token"))
	})
	server.On("/v1/tracks/"+testutil.TestSpotifyID1, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		testutil.WriteJSON(w, http.StatusOK, testutil.SpotifyTrackResponse(testutil.TestSpotifyID1, "Bohemian Rhapsody", "Queen"))
	})

	svc := newTestSpotifyService(t, server, nil)
	track, err := svc.GetTrackByID(context.Background(), testutil.TestSpotifyID1)
	require.NoError(t, err)

	assert.Equal(t, testutil.TestSpotifyID1, track.ExternalID)
	assert.Equal(t, "Bohemian Rhapsody", track.Title)
	assert.Equal(t, []string{"Queen"}, track.Artists)
	assert.Equal(t, testutil.TestISRC1, track.ISRC)
	assert.Equal(t, 1975, track.ReleaseYear())
	assert.Equal(t, "https://example.com/image.jpg", track.ImageURL, "prefers the medium image")
	assert.Equal(t, "https://open.spotify.com/track/"+testutil.TestSpotifyID1, track.URL)
	assert.NotEmpty(t, track.PreviewURL)
}

func TestSpotifyService_GetTrackByID_NotFound(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusBadRequest} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := testutil.NewMockHTTPServer()
			defer server.Close()

			server.On("/api/token", func(w http.ResponseWriter, r *http.Request) {
				testutil.WriteJSON(w, http.StatusOK, testutil.SpotifyTokenResponse("app-token"))
			})
			server.On("/v1/tracks/"+testutil.TestSpotifyID2, func(w http.ResponseWriter, r *http.Request) {
				testutil.WriteJSON(w, status, map[string]interface{}{"error": map[string]interface{}{"status": status}})
			})

			svc := newTestSpotifyService(t, server, nil)
			_, err := svc.GetTrackByID(context.Background(), testutil.TestSpotifyID2)
			assert.ErrorIs(t, err, services.ErrTrackNotFound)
		})
	}
}

func TestSpotifyService_SearchTracksForUser(t *testing.T) {
	server := testutil.NewMockHTTPServer()
	defer server.Close()

	server.On("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "bohemian rapsody", r.URL.Query().Get("q"))
		assert.Equal(t, "track", r.URL.Query().Get("type"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"), "limit is capped at the provider maximum")
		testutil.WriteJSON(w, http.StatusOK, testutil.SpotifySearchResponse(
			testutil.SpotifyTrackResponse(testutil.TestSpotifyID1, "Bohemian Rhapsody", "Queen"),
			testutil.SpotifyTrackResponse(testutil.TestSpotifyID2, "Bohemian Like You", "The Dandy Warhols"),
		))
	})

	connections := &testutil.MockConnectionRepository{}
	connections.On("FindByUser", mock.Anything, "user-1", services.ProviderSpotify).Return(&models.ProviderConnection{
		UserID:       "user-1",
		Provider:     services.ProviderSpotify,
		AccessToken:  "user-token",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}, nil)

	svc := newTestSpotifyService(t, server, connections)
	tracks, err := svc.SearchTracksForUser(context.Background(), "user-1", "bohemian rapsody", 200)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Bohemian Rhapsody", tracks[0].Title)
	assert.Equal(t, "The Dandy Warhols", tracks[1].ArtistCredit())

	connections.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestSpotifyService_SearchTracksForUser_NotConnected(t *testing.T) {
	server := testutil.NewMockHTTPServer()
	defer server.Close()

	connections := &testutil.MockConnectionRepository{}
	connections.On("FindByUser", mock.Anything, "user-1", services.ProviderSpotify).Return(nil, nil)

	svc := newTestSpotifyService(t, server, connections)

	_, err := svc.SearchTracksForUser(context.Background(), "user-1", "queen", 10)
	assert.ErrorIs(t, err, services.ErrNotConnected)

	_, err = svc.SearchTracksForUser(context.Background(), "", "queen", 10)
	assert.ErrorIs(t, err, services.ErrNotConnected)
}

func TestSpotifyService_RefreshesExpiredUserToken(t *testing.T) {
	server := testutil.NewMockHTTPServer()
	defer server.Close()

	server.On("/api/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		testutil.WriteJSON(w, http.StatusOK, testutil.SpotifyTokenResponse("refreshed-token"))
	})
	server.On("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer refreshed-token", r.Header.Get("Authorization"))
		testutil.WriteJSON(w, http.StatusOK, testutil.SpotifySearchResponse())
	})

	connections := &testutil.MockConnectionRepository{}
	connections.On("FindByUser", mock.Anything, "user-1", services.ProviderSpotify).Return(&models.ProviderConnection{
		UserID:       "user-1",
		Provider:     services.ProviderSpotify,
		AccessToken:  "stale-token",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}, nil)
	connections.On("Upsert", mock.Anything, mock.MatchedBy(func(c *models.ProviderConnection) bool {
		return c.AccessToken == "refreshed-token" && c.RefreshToken == "refresh"
	})).Return(nil)

	svc := newTestSpotifyService(t, server, connections)
	tracks, err := svc.SearchTracksForUser(context.Background(), "user-1", "queen", 10)
	require.NoError(t, err)
	assert.Empty(t, tracks)

	connections.AssertExpectations(t)
}

func TestSpotifyService_RevokedRefreshToken(t *testing.T) {
	server := testutil.NewMockHTTPServer()
	defer server.Close()

	server.On("/api/token", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
	})

	connections := &testutil.MockConnectionRepository{}
	connections.On("FindByUser", mock.Anything, "user-1", services.ProviderSpotify).Return(&models.ProviderConnection{
		UserID:       "user-1",
		AccessToken:  "stale-token",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Hour),
	}, nil)

	svc := newTestSpotifyService(t, server, connections)
	_, err := svc.SearchTracksForUser(context.Background(), "user-1", "queen", 10)
	assert.ErrorIs(t, err, services.ErrNotConnected)
}

func TestSpotifyService_CircuitBreakerOpens(t *testing.T) {
	server := testutil.NewMockHTTPServer()
	defer server.Close()

	var hits atomic.Int32
	server.On("/api/token", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, testutil.SpotifyTokenResponse("app-token"))
	})
	server.On("/v1/tracks/"+testutil.TestSpotifyID1, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	svc := newTestSpotifyService(t, server, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := svc.GetTrackByID(ctx, testutil.TestSpotifyID1)
		require.Error(t, err)

		var providerErr *services.ProviderError
		require.ErrorAs(t, err, &providerErr)
		assert.Equal(t, http.StatusServiceUnavailable, providerErr.StatusCode)
	}

	before := hits.Load()
	_, err := svc.GetTrackByID(ctx, testutil.TestSpotifyID1)
	assert.ErrorIs(t, err, services.ErrProviderUnavailable)
	assert.Equal(t, before, hits.Load(), "open breaker fails fast without calling upstream")
}

func TestSpotifyService_HonoursContextDeadline(t *testing.T) {
	server := testutil.NewMockHTTPServer()
	defer server.Close()

	release := make(chan struct{})
	defer close(release)

	server.On("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	connections := &testutil.MockConnectionRepository{}
	connections.On("FindByUser", mock.Anything, "user-1", services.ProviderSpotify).Return(&models.ProviderConnection{
		UserID:      "user-1",
		AccessToken: "user-token",
		Expiry:      time.Now().Add(time.Hour),
	}, nil)

	svc := newTestSpotifyService(t, server, connections)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.SearchTracksForUser(ctx, "user-1", "queen", 10)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}
