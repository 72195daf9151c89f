package testutil

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"musicez/internal/models"
	"musicez/internal/services"
)

// Common test constants
const (
	TestISRC1 = "GBUM71029604"
	TestISRC2 = "USRC17607839"

	TestSpotifyID1 = "4u7EnebtmKWzUH433cf5Qv"
	TestSpotifyID2 = "7tFiyTwD0nx5a1eklYtX2J"
)

// SongBuilder provides a fluent interface for creating test songs
type SongBuilder struct {
	song *models.Song
}

// NewSongBuilder creates a new song builder with default values
func NewSongBuilder() *SongBuilder {
	return &SongBuilder{
		song: models.NewSong("Test Song", "Test Artist"),
	}
}

// WithID sets the song ID
func (b *SongBuilder) WithID(id string) *SongBuilder {
	objID, _ := primitive.ObjectIDFromHex(id)
	b.song.ID = objID
	return b
}

// WithNewID assigns a fresh ObjectID
func (b *SongBuilder) WithNewID() *SongBuilder {
	b.song.ID = primitive.NewObjectID()
	return b
}

func (b *SongBuilder) WithTitle(title string) *SongBuilder {
	b.song.Title = title
	return b
}

func (b *SongBuilder) WithArtist(artist string) *SongBuilder {
	b.song.Artist = artist
	return b
}

func (b *SongBuilder) WithAlbum(album string) *SongBuilder {
	b.song.Album = album
	return b
}

func (b *SongBuilder) WithISRC(isrc string) *SongBuilder {
	b.song.ISRC = isrc
	return b
}

// WithSpotify links the song to a provider track
func (b *SongBuilder) WithSpotify(trackID string) *SongBuilder {
	b.song.SpotifyID = trackID
	b.song.ExternalURL = services.BuildTrackURL(trackID)
	return b
}

func (b *SongBuilder) WithPopularity(popularity int) *SongBuilder {
	b.song.Popularity = popularity
	return b
}

func (b *SongBuilder) WithDuration(durationMs int) *SongBuilder {
	b.song.DurationMs = durationMs
	return b
}

func (b *SongBuilder) WithReleaseYear(year int) *SongBuilder {
	b.song.ReleaseYear = year
	return b
}

// Build returns the constructed song with its search index refreshed
func (b *SongBuilder) Build() *models.Song {
	b.song.RefreshSearchIndex()
	song := *b.song
	return &song
}

// TrackInfoBuilder provides a fluent interface for creating provider tracks
type TrackInfoBuilder struct {
	track *services.TrackInfo
}

// NewTrackInfoBuilder creates a new track builder with default values
func NewTrackInfoBuilder() *TrackInfoBuilder {
	return &TrackInfoBuilder{
		track: &services.TrackInfo{
			ExternalID: TestSpotifyID1,
			URL:        services.BuildTrackURL(TestSpotifyID1),
			Title:      "Test Song",
			Artists:    []string{"Test Artist"},
			DurationMs: 180000,
			Popularity: 50,
		},
	}
}

// WithExternalID sets the provider ID and the matching URL
func (b *TrackInfoBuilder) WithExternalID(id string) *TrackInfoBuilder {
	b.track.ExternalID = id
	b.track.URL = services.BuildTrackURL(id)
	return b
}

func (b *TrackInfoBuilder) WithTitle(title string) *TrackInfoBuilder {
	b.track.Title = title
	return b
}

func (b *TrackInfoBuilder) WithArtists(artists ...string) *TrackInfoBuilder {
	b.track.Artists = artists
	return b
}

func (b *TrackInfoBuilder) WithAlbum(album string) *TrackInfoBuilder {
	b.track.Album = album
	return b
}

func (b *TrackInfoBuilder) WithISRC(isrc string) *TrackInfoBuilder {
	b.track.ISRC = isrc
	return b
}

func (b *TrackInfoBuilder) WithPopularity(popularity int) *TrackInfoBuilder {
	b.track.Popularity = popularity
	return b
}

func (b *TrackInfoBuilder) WithPreviewURL(url string) *TrackInfoBuilder {
	b.track.PreviewURL = url
	return b
}

func (b *TrackInfoBuilder) WithReleaseDate(date string) *TrackInfoBuilder {
	b.track.ReleaseDate = date
	return b
}

// Build returns the constructed TrackInfo
func (b *TrackInfoBuilder) Build() *services.TrackInfo {
	track := *b.track
	track.Artists = append([]string(nil), b.track.Artists...)
	return &track
}

// CreateBohemianRhapsody returns a catalog record used across search tests
func CreateBohemianRhapsody() *models.Song {
	return NewSongBuilder().
		WithNewID().
		WithTitle("Bohemian Rhapsody").
		WithArtist("Queen").
		WithAlbum("A Night at the Opera").
		WithISRC(TestISRC1).
		WithDuration(354947).
		WithReleaseYear(1975).
		WithPopularity(83).
		Build()
}

// CreateBohemianRhapsodyTrack returns the provider track for the same recording
func CreateBohemianRhapsodyTrack() *services.TrackInfo {
	return NewTrackInfoBuilder().
		WithExternalID(TestSpotifyID1).
		WithTitle("Bohemian Rhapsody").
		WithArtists("Queen").
		WithAlbum("A Night at the Opera").
		WithISRC(TestISRC1).
		WithPopularity(85).
		WithPreviewURL("https://p.scdn.co/mp3-preview/bohemian").
		WithReleaseDate("1975-10-31").
		Build()
}
