package search

import (
	"musicez/internal/models"
	"musicez/internal/services"
)

// Source is the provenance of a result
type Source string

const (
	SourceLocal    Source = "local"
	SourceExternal Source = "external"
	SourceMerged   Source = "merged"
)

// Track is a search hit from either source. LocalTrack carries a complete
// catalog record; ExternalTrack only what the provider returned.
type Track interface {
	Title() string
	Artist() string
	Popularity() int
	// SortID breaks ties between otherwise equal tracks
	SortID() string
	toResult() Result
}

// LocalTrack wraps a catalog record
type LocalTrack struct {
	Song *models.Song
}

func (t LocalTrack) Title() string   { return t.Song.Title }
func (t LocalTrack) Artist() string  { return t.Song.Artist }
func (t LocalTrack) Popularity() int { return t.Song.Popularity }
func (t LocalTrack) SortID() string  { return t.Song.ID.Hex() }

func (t LocalTrack) toResult() Result {
	s := t.Song
	return Result{
		ID:          s.ID.Hex(),
		Title:       s.Title,
		Artist:      s.Artist,
		Album:       s.Album,
		Duration:    s.DurationMs,
		ReleaseYear: s.ReleaseYear,
		Popularity:  s.Popularity,
		SpotifyID:   s.SpotifyID,
		PreviewURL:  s.PreviewURL,
		ExternalURL: s.ExternalURL,
		ImageURL:    s.ImageURL,
	}
}

// ExternalTrack wraps a provider track that is not in the catalog
type ExternalTrack struct {
	Info *services.TrackInfo
}

func (t ExternalTrack) Title() string   { return t.Info.Title }
func (t ExternalTrack) Artist() string  { return t.Info.ArtistCredit() }
func (t ExternalTrack) Popularity() int { return t.Info.Popularity }
func (t ExternalTrack) SortID() string  { return services.ProviderSpotify + ":" + t.Info.ExternalID }

func (t ExternalTrack) toResult() Result {
	i := t.Info
	return Result{
		Title:       i.Title,
		Artist:      i.ArtistCredit(),
		Album:       i.Album,
		Duration:    i.DurationMs,
		ReleaseYear: i.ReleaseYear(),
		Popularity:  i.Popularity,
		SpotifyID:   i.ExternalID,
		PreviewURL:  i.PreviewURL,
		ExternalURL: i.URL,
		ImageURL:    i.ImageURL,
	}
}

// Candidate is a scored track before merging
type Candidate struct {
	Track  Track
	Score  float64
	Source Source
}

// Result is the flattened form returned to clients and stored in the cache
type Result struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album,omitempty"`
	Duration    int     `json:"duration"`
	ReleaseYear int     `json:"releaseYear,omitempty"`
	Popularity  int     `json:"popularity"`
	Similarity  float64 `json:"similarity"`
	Source      Source  `json:"source"`
	SpotifyID   string  `json:"spotifyId,omitempty"`
	PreviewURL  string  `json:"previewUrl,omitempty"`
	ExternalURL string  `json:"externalUrl,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// ResultSet is a ranked page of results with request metadata. Callers
// must not mutate a ResultSet they did not build.
type ResultSet struct {
	Results  []Result `json:"results"`
	Metadata Metadata `json:"metadata"`
}

// HasExternal reports whether any result came from the provider
func (rs *ResultSet) HasExternal() bool {
	for _, r := range rs.Results {
		if r.Source != SourceLocal {
			return true
		}
	}
	return false
}

// Metadata describes how a result set was produced
type Metadata struct {
	Total          int            `json:"total"`
	Query          string         `json:"query"`
	ProcessingTime ProcessingTime `json:"processingTime"`
	Cached         bool           `json:"cached"`
	Sources        SourceCounts   `json:"sources"`
	Enrichment     EnrichmentInfo `json:"enrichment"`
}

// ProcessingTime holds stage timings in milliseconds
type ProcessingTime struct {
	LocalMs    int64  `json:"localMs"`
	ExternalMs *int64 `json:"externalMs,omitempty"`
	TotalMs    int64  `json:"totalMs"`
}

// SourceCounts counts results by provenance
type SourceCounts struct {
	Local    int `json:"local"`
	External int `json:"external"`
	Merged   int `json:"merged"`
}

// EnrichmentInfo reports whether the provider was consulted
type EnrichmentInfo struct {
	Requested      bool       `json:"requested"`
	Attempted      bool       `json:"attempted"`
	SpotifyEnabled bool       `json:"spotifyEnabled"`
	Skipped        SkipReason `json:"skipped,omitempty"`
}

// SkipReason says why enrichment produced no candidates
type SkipReason string

const (
	SkipDisabled      SkipReason = "disabled"
	SkipNotConnected  SkipReason = "not_connected"
	SkipTimeout       SkipReason = "timeout"
	SkipProviderError SkipReason = "provider_error"
)

// EnrichmentSkipped is the non-error outcome of an enrichment that did not
// run or did not finish. Err holds the underlying failure, if any, for logs.
type EnrichmentSkipped struct {
	Reason SkipReason
	Err    error
}
