package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"musicez/internal/scoring"
)

const CurrentSchemaVersion = 2

// Song is a canonical catalog record
type Song struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SchemaVersion int                `bson:"schema_version" json:"schemaVersion"`

	// Core Identifiers
	ISRC      string `bson:"isrc,omitempty" json:"isrc,omitempty"` // International Standard Recording Code
	SpotifyID string `bson:"spotify_id,omitempty" json:"spotifyId,omitempty"`
	Title     string `bson:"title" json:"title"`
	Artist    string `bson:"artist" json:"artist"`
	Album     string `bson:"album,omitempty" json:"album,omitempty"`

	DurationMs  int `bson:"duration_ms" json:"duration"`
	ReleaseYear int `bson:"release_year,omitempty" json:"releaseYear,omitempty"`
	Popularity  int `bson:"popularity" json:"popularity"` // 0-100

	ImageURL    string `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	PreviewURL  string `bson:"preview_url,omitempty" json:"previewUrl,omitempty"`
	ExternalURL string `bson:"external_url,omitempty" json:"externalUrl,omitempty"`

	AudioFeatures *AudioFeatures `bson:"audio_features,omitempty" json:"audioFeatures,omitempty"`

	// Precomputed search index, see RefreshSearchIndex
	SearchText     string   `bson:"search_text" json:"-"`
	SearchTrigrams []string `bson:"search_trigrams" json:"-"`

	// Timestamps
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// AudioFeatures mirrors the provider's per-track audio analysis
type AudioFeatures struct {
	Energy           float64 `bson:"energy" json:"energy"`
	Danceability     float64 `bson:"danceability" json:"danceability"`
	Valence          float64 `bson:"valence" json:"valence"`
	Acousticness     float64 `bson:"acousticness" json:"acousticness"`
	Instrumentalness float64 `bson:"instrumentalness" json:"instrumentalness"`
	Speechiness      float64 `bson:"speechiness" json:"speechiness"`
	Liveness         float64 `bson:"liveness" json:"liveness"`
	Loudness         float64 `bson:"loudness" json:"loudness"`
	Tempo            float64 `bson:"tempo" json:"tempo"`
	Key              int     `bson:"key" json:"key"`
}

// NewSong creates a new Song with default values and a fresh search index
func NewSong(title, artist string) *Song {
	now := time.Now()
	s := &Song{
		SchemaVersion: CurrentSchemaVersion,
		Title:         title,
		Artist:        artist,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.RefreshSearchIndex()
	return s
}

// BuildSearchText joins the searchable fields into folded text
func BuildSearchText(title, artist, album string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{title, artist, album} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(strings.Fields(scoring.Fold(strings.Join(parts, " "))), " ")
}

// RefreshSearchIndex recomputes SearchText and SearchTrigrams. It reports
// whether anything changed.
func (s *Song) RefreshSearchIndex() bool {
	text := BuildSearchText(s.Title, s.Artist, s.Album)
	trigrams := scoring.NewSet(text).List()

	changed := text != s.SearchText || !equalStrings(trigrams, s.SearchTrigrams)
	s.SearchText = text
	s.SearchTrigrams = trigrams
	if s.SchemaVersion < CurrentSchemaVersion {
		s.SchemaVersion = CurrentSchemaVersion
		changed = true
	}
	return changed
}

// PrimaryArtist returns the first credited artist
func (s *Song) PrimaryArtist() string {
	return PrimaryArtist(s.Artist)
}

// PrimaryArtist returns the first entry of a comma separated artist credit
func PrimaryArtist(artist string) string {
	if i := strings.Index(artist, ","); i >= 0 {
		return strings.TrimSpace(artist[:i])
	}
	return strings.TrimSpace(artist)
}

// LinkSpotify attaches provider identifiers the record does not have yet
func (s *Song) LinkSpotify(spotifyID, externalURL, previewURL string) {
	if s.SpotifyID == "" {
		s.SpotifyID = spotifyID
	}
	if s.ExternalURL == "" {
		s.ExternalURL = externalURL
	}
	if s.PreviewURL == "" {
		s.PreviewURL = previewURL
	}
	s.UpdatedAt = time.Now()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
