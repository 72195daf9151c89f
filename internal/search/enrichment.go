package search

import (
	"context"
	"errors"
	"time"

	"musicez/internal/config"
	"musicez/internal/models"
	"musicez/internal/scoring"
	"musicez/internal/services"
)

const (
	// MaxExternalResults bounds what one enrichment may contribute
	MaxExternalResults = 50

	DefaultEnrichmentTimeout = 5 * time.Second
)

// Enricher searches the external provider on behalf of a principal
type Enricher struct {
	searcher services.TrackSearcher
	timeout  time.Duration
	tuning   *config.TuningStore
}

// NewEnricher creates an enricher. A nil searcher disables enrichment.
func NewEnricher(searcher services.TrackSearcher, timeout time.Duration, tuning *config.TuningStore) *Enricher {
	if timeout <= 0 {
		timeout = DefaultEnrichmentTimeout
	}
	if tuning == nil {
		tuning = config.NewStaticTuningStore(nil)
	}
	return &Enricher{
		searcher: searcher,
		timeout:  timeout,
		tuning:   tuning,
	}
}

// Enabled reports whether a provider is configured
func (e *Enricher) Enabled() bool {
	return e != nil && e.searcher != nil
}

// Timeout is the budget of a single enrichment
func (e *Enricher) Timeout() time.Duration {
	return e.timeout
}

// Eligible checks the preconditions that need no I/O. It returns nil when
// enrichment may run for principal.
func (e *Enricher) Eligible(principal *models.Principal) *EnrichmentSkipped {
	if !e.Enabled() {
		return &EnrichmentSkipped{Reason: SkipDisabled}
	}
	if !principal.CanEnrich() {
		return &EnrichmentSkipped{Reason: SkipNotConnected}
	}
	return nil
}

// Enrich returns scored provider candidates, or the reason there are none.
// Provider failures never surface as errors.
func (e *Enricher) Enrich(ctx context.Context, q SearchQuery, principal *models.Principal) ([]Candidate, *EnrichmentSkipped) {
	if skipped := e.Eligible(principal); skipped != nil {
		return nil, skipped
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tuning := e.tuning.Current()
	resultCap := tuning.ExternalResultCap
	if resultCap <= 0 || resultCap > MaxExternalResults {
		resultCap = MaxExternalResults
	}
	limit := min(q.Limit*max(tuning.OversampleFactor, 1), resultCap)

	tracks, err := e.searcher.SearchTracksForUser(ctx, principal.ID, q.Text, limit)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotConnected):
			return nil, &EnrichmentSkipped{Reason: SkipNotConnected, Err: err}
		case ctx.Err() != nil:
			return nil, &EnrichmentSkipped{Reason: SkipTimeout, Err: err}
		default:
			return nil, &EnrichmentSkipped{Reason: SkipProviderError, Err: err}
		}
	}

	if len(tracks) > resultCap {
		tracks = tracks[:resultCap]
	}

	scorer := scoring.NewScorer(q.Text, scoring.Weights{
		Word:  tuning.WordSimilarityWeight,
		Title: tuning.TitleSimilarityWeight,
	})

	candidates := make([]Candidate, 0, len(tracks))
	for _, track := range tracks {
		if track == nil || track.Title == "" {
			continue
		}
		text := models.BuildSearchText(track.Title, track.ArtistCredit(), track.Album)
		candidates = append(candidates, Candidate{
			Track:  ExternalTrack{Info: track},
			Score:  scorer.ScoreText(track.Title, text),
			Source: SourceExternal,
		})
	}
	return candidates, nil
}
