package services

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"musicez/internal/models"
)

const ProviderSpotify = "spotify"

var (
	// ErrTrackNotFound means the provider has no track for the given ID
	ErrTrackNotFound = errors.New("track not found")
	// ErrNotConnected means the user has not linked a provider account
	ErrNotConnected = errors.New("provider account not connected")
	// ErrProviderUnavailable means calls are short-circuited by the breaker
	ErrProviderUnavailable = errors.New("provider temporarily unavailable")
	// ErrInvalidTrackID means the input is not a provider track ID, URL or URI
	ErrInvalidTrackID = errors.New("invalid track ID")
)

// TrackSearcher searches the provider catalog on behalf of a user
type TrackSearcher interface {
	SearchTracksForUser(ctx context.Context, userID, query string, limit int) ([]*TrackInfo, error)
}

// TrackCatalog fetches individual tracks with application credentials
type TrackCatalog interface {
	GetTrackByID(ctx context.Context, trackID string) (*TrackInfo, error)
	GetAudioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error)
}

// TrackInfo represents track information from the provider
type TrackInfo struct {
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`

	// Core track metadata
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	ISRC       string   `json:"isrc,omitempty"`
	DurationMs int      `json:"duration_ms,omitempty"`

	// Additional metadata
	ReleaseDate string `json:"release_date,omitempty"`
	Explicit    bool   `json:"explicit,omitempty"`
	Popularity  int    `json:"popularity,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
}

// ArtistCredit joins all credited artists
func (t *TrackInfo) ArtistCredit() string {
	return strings.Join(t.Artists, ", ")
}

// ReleaseYear parses the year out of YYYY, YYYY-MM or YYYY-MM-DD dates
func (t *TrackInfo) ReleaseYear() int {
	if len(t.ReleaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(t.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}

// ToSong converts TrackInfo to a catalog record
func (t *TrackInfo) ToSong() *models.Song {
	song := models.NewSong(t.Title, t.ArtistCredit())
	song.Album = t.Album
	song.ISRC = t.ISRC
	song.SpotifyID = t.ExternalID
	song.ExternalURL = t.URL
	song.PreviewURL = t.PreviewURL
	song.ImageURL = t.ImageURL
	song.DurationMs = t.DurationMs
	song.ReleaseYear = t.ReleaseYear()
	song.Popularity = t.Popularity
	song.RefreshSearchIndex()
	return song
}

var (
	spotifyURLPattern = regexp.MustCompile(`(?:https?://)?(?:open\.)?spotify\.com/(?:intl-[a-z]{2}/)?track/([a-zA-Z0-9]{22})`)
	spotifyURIPattern = regexp.MustCompile(`^spotify:track:([a-zA-Z0-9]{22})$`)
	spotifyIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9]{22}$`)
)

// ParseTrackID accepts a bare track ID, an open.spotify.com URL or a spotify:track URI
func ParseTrackID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if spotifyIDPattern.MatchString(input) {
		return input, nil
	}
	if m := spotifyURIPattern.FindStringSubmatch(input); len(m) > 1 {
		return m[1], nil
	}
	if m := spotifyURLPattern.FindStringSubmatch(input); len(m) > 1 {
		return m[1], nil
	}
	return "", &ProviderError{
		Provider:  ProviderSpotify,
		Operation: "parse_id",
		Message:   "unsupported track reference",
		URL:       input,
		Err:       ErrInvalidTrackID,
	}
}

// BuildTrackURL constructs a public track URL from a track ID
func BuildTrackURL(trackID string) string {
	return "https://open.spotify.com/track/" + trackID
}

// ProviderError represents an error from the external provider
type ProviderError struct {
	Provider   string
	Operation  string
	Message    string
	URL        string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Provider + " " + e.Operation + " failed"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.URL != "" {
		msg += " (URL: " + e.URL + ")"
	}
	if e.Err != nil {
		msg += " - " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
