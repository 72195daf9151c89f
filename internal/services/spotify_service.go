package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"musicez/internal/metrics"
	"musicez/internal/models"
	"musicez/internal/repositories"
)

// Spotify API endpoints
const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com/v1"

	spotifyMaxSearchLimit = 50
)

// SpotifyConfig configures the Spotify client
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	APIURL       string
	TokenURL     string

	// RequestTimeout bounds a whole request; ConnectTimeout bounds dialing
	// and the TLS handshake and should be shorter
	RequestTimeout time.Duration
	ConnectTimeout time.Duration

	// RateLimit in requests per minute, shared by all callers
	RateLimit int
}

func (c *SpotifyConfig) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = spotifyAPIURL
	}
	if c.TokenURL == "" {
		c.TokenURL = spotifyTokenURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.ConnectTimeout <= 0 || c.ConnectTimeout > c.RequestTimeout {
		c.ConnectTimeout = c.RequestTimeout / 2
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 100
	}
}

// SpotifyService talks to the Spotify Web API. Searches run with the
// requesting user's token; imports use application credentials.
type SpotifyService struct {
	client      *resty.Client
	httpClient  *http.Client
	apiURL      string
	appTokens   oauth2.TokenSource
	userOAuth   *oauth2.Config
	connections repositories.ConnectionRepository
	breaker     *gobreaker.CircuitBreaker[*resty.Response]
	limiter     *rate.Limiter
}

// NewSpotifyService creates a new Spotify service
func NewSpotifyService(cfg SpotifyConfig, connections repositories.ConnectionRepository) *SpotifyService {
	cfg.applyDefaults()

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   cfg.RequestTimeout,
	}

	client := resty.NewWithClient(httpClient).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetRetryCount(1).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})

	oauthCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	appTokens := (&clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}).TokenSource(oauthCtx)

	s := &SpotifyService{
		client:     client,
		httpClient: httpClient,
		apiURL:     cfg.APIURL,
		appTokens:  appTokens,
		userOAuth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: cfg.TokenURL},
		},
		connections: connections,
		limiter:     rate.NewLimiter(rate.Limit(float64(cfg.RateLimit)/60.0), max(1, cfg.RateLimit/10)),
	}

	metrics.ProviderAvailable.WithLabelValues(ProviderSpotify).Set(1)
	s.breaker = gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        ProviderSpotify,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not a provider failure
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Provider circuit breaker state changed", "provider", name, "from", from.String(), "to", to.String())
			available := 1.0
			if to == gobreaker.StateOpen {
				available = 0
			}
			metrics.ProviderAvailable.WithLabelValues(name).Set(available)
		},
	})

	return s
}

// SearchTracksForUser searches the catalog with the user's linked account
func (s *SpotifyService) SearchTracksForUser(ctx context.Context, userID, query string, limit int) ([]*TrackInfo, error) {
	token, err := s.userToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > spotifyMaxSearchLimit {
		limit = spotifyMaxSearchLimit
	}

	var result SpotifySearchResult
	resp, err := s.get(ctx, "search", token, "/search", map[string]string{
		"q":     query,
		"type":  "track",
		"limit": strconv.Itoa(limit),
	}, &result)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, &ProviderError{
			Provider:   ProviderSpotify,
			Operation:  "search",
			Message:    "user token rejected",
			StatusCode: resp.StatusCode(),
			Err:        ErrNotConnected,
		}
	default:
		return nil, statusError("search", resp)
	}

	tracks := make([]*TrackInfo, 0, len(result.Tracks.Items))
	for i := range result.Tracks.Items {
		tracks = append(tracks, convertSpotifyTrack(&result.Tracks.Items[i]))
	}
	return tracks, nil
}

// GetTrackByID fetches track details with application credentials
func (s *SpotifyService) GetTrackByID(ctx context.Context, trackID string) (*TrackInfo, error) {
	token, err := s.appToken()
	if err != nil {
		return nil, err
	}

	var track SpotifyTrack
	resp, err := s.get(ctx, "get_track", token, "/tracks/"+trackID, nil, &track)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return convertSpotifyTrack(&track), nil
	case http.StatusNotFound, http.StatusBadRequest:
		// The API answers 400 for malformed IDs
		return nil, &ProviderError{
			Provider:   ProviderSpotify,
			Operation:  "get_track",
			Message:    "track not found",
			StatusCode: resp.StatusCode(),
			Err:        ErrTrackNotFound,
		}
	default:
		return nil, statusError("get_track", resp)
	}
}

// GetAudioFeatures fetches the audio analysis summary for a track
func (s *SpotifyService) GetAudioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error) {
	token, err := s.appToken()
	if err != nil {
		return nil, err
	}

	var features SpotifyAudioFeatures
	resp, err := s.get(ctx, "audio_features", token, "/audio-features/"+trackID, nil, &features)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("audio_features", resp)
	}

	return &models.AudioFeatures{
		Energy:           features.Energy,
		Danceability:     features.Danceability,
		Valence:          features.Valence,
		Acousticness:     features.Acousticness,
		Instrumentalness: features.Instrumentalness,
		Speechiness:      features.Speechiness,
		Liveness:         features.Liveness,
		Loudness:         features.Loudness,
		Tempo:            features.Tempo,
		Key:              features.Key,
	}, nil
}

// Health checks that application credentials are accepted
func (s *SpotifyService) Health(ctx context.Context) error {
	_, err := s.appToken()
	return err
}

// get runs a rate-limited GET through the circuit breaker. Non-2xx
// responses are returned to the caller; only transport errors, 429 and
// 5xx count against the breaker.
func (s *SpotifyService) get(ctx context.Context, operation, token, path string, params map[string]string, result interface{}) (*resty.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(ProviderSpotify, operation, "rate_limited").Inc()
		return nil, &ProviderError{Provider: ProviderSpotify, Operation: operation, Message: "rate limit wait aborted", Err: err}
	}

	start := time.Now()
	resp, err := s.breaker.Execute(func() (*resty.Response, error) {
		resp, err := s.client.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParams(params).
			SetResult(result).
			Get(s.apiURL + path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500 {
			return resp, fmt.Errorf("upstream status %d", resp.StatusCode())
		}
		return resp, nil
	})
	metrics.ProviderRequestDuration.WithLabelValues(ProviderSpotify, operation).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.ProviderRequestsTotal.WithLabelValues(ProviderSpotify, operation, "circuit_open").Inc()
			return nil, &ProviderError{Provider: ProviderSpotify, Operation: operation, Message: "circuit open", Err: ErrProviderUnavailable}
		}
		metrics.ProviderRequestsTotal.WithLabelValues(ProviderSpotify, operation, "error").Inc()
		pe := &ProviderError{Provider: ProviderSpotify, Operation: operation, Message: "request failed", Err: err}
		if resp != nil {
			pe.StatusCode = resp.StatusCode()
		}
		return nil, pe
	}

	metrics.ProviderRequestsTotal.WithLabelValues(ProviderSpotify, operation, strconv.Itoa(resp.StatusCode())).Inc()
	return resp, nil
}

func (s *SpotifyService) appToken() (string, error) {
	tok, err := s.appTokens.Token()
	if err != nil {
		return "", &ProviderError{
			Provider:  ProviderSpotify,
			Operation: "auth",
			Message:   "failed to get access token",
			Err:       err,
		}
	}
	return tok.AccessToken, nil
}

// userToken loads the user's stored token, refreshing and persisting it
// when it has expired
func (s *SpotifyService) userToken(ctx context.Context, userID string) (string, error) {
	if s.connections == nil || userID == "" {
		return "", ErrNotConnected
	}

	conn, err := s.connections.FindByUser(ctx, userID, ProviderSpotify)
	if err != nil {
		return "", &ProviderError{Provider: ProviderSpotify, Operation: "auth", Message: "connection lookup failed", Err: err}
	}
	if conn == nil {
		return "", ErrNotConnected
	}

	oauthCtx := context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.userOAuth.TokenSource(oauthCtx, conn.Token()).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// Refresh token revoked or expired; the user has to reconnect
			return "", fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		return "", &ProviderError{Provider: ProviderSpotify, Operation: "auth", Message: "token refresh failed", Err: err}
	}

	if conn.ApplyToken(tok) {
		if err := s.connections.Upsert(ctx, conn); err != nil {
			slog.Warn("Failed to persist refreshed provider token", "userID", userID, "error", err)
		} else {
			slog.Info("Provider token refreshed", "userID", userID, "expires_at", tok.Expiry)
		}
	}

	return tok.AccessToken, nil
}

func statusError(operation string, resp *resty.Response) error {
	return &ProviderError{
		Provider:   ProviderSpotify,
		Operation:  operation,
		Message:    fmt.Sprintf("API returned status %d", resp.StatusCode()),
		StatusCode: resp.StatusCode(),
	}
}

// convertSpotifyTrack converts Spotify API response to TrackInfo
func convertSpotifyTrack(track *SpotifyTrack) *TrackInfo {
	artists := make([]string, len(track.Artists))
	for i, artist := range track.Artists {
		artists[i] = artist.Name
	}

	// Get image URL (prefer medium size)
	var imageURL string
	if len(track.Album.Images) > 0 {
		imageURL = track.Album.Images[0].URL
		for _, img := range track.Album.Images {
			if img.Width >= 300 && img.Width <= 640 {
				imageURL = img.URL
				break
			}
		}
	}

	url := track.ExternalURLs.Spotify
	if url == "" {
		url = BuildTrackURL(track.ID)
	}

	return &TrackInfo{
		ExternalID:  track.ID,
		URL:         url,
		Title:       track.Name,
		Artists:     artists,
		Album:       track.Album.Name,
		ISRC:        track.ExternalIDs.ISRC,
		DurationMs:  track.DurationMs,
		ReleaseDate: track.Album.ReleaseDate,
		Explicit:    track.Explicit,
		Popularity:  track.Popularity,
		ImageURL:    imageURL,
		PreviewURL:  track.PreviewURL,
	}
}

// Spotify API response structures
type SpotifyTrack struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Artists      []SpotifyArtist     `json:"artists"`
	Album        SpotifyAlbum        `json:"album"`
	DurationMs   int                 `json:"duration_ms"`
	Explicit     bool                `json:"explicit"`
	Popularity   int                 `json:"popularity"`
	PreviewURL   string              `json:"preview_url"`
	ExternalIDs  SpotifyExternalIDs  `json:"external_ids"`
	ExternalURLs SpotifyExternalURLs `json:"external_urls"`
}

type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
}

type SpotifyImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type SpotifyExternalIDs struct {
	ISRC string `json:"isrc"`
}

type SpotifyExternalURLs struct {
	Spotify string `json:"spotify"`
}

type SpotifySearchResult struct {
	Tracks SpotifyTracksPaging `json:"tracks"`
}

type SpotifyTracksPaging struct {
	Items []SpotifyTrack `json:"items"`
	Total int            `json:"total"`
}

type SpotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Energy           float64 `json:"energy"`
	Danceability     float64 `json:"danceability"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Speechiness      float64 `json:"speechiness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Tempo            float64 `json:"tempo"`
	Key              int     `json:"key"`
}
