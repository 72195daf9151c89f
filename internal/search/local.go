package search

import (
	"context"
	"errors"
	"fmt"

	"musicez/internal/config"
	"musicez/internal/repositories"
	"musicez/internal/scoring"
)

// ErrCatalogUnavailable means the catalog store could not be queried
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// LocalSearcher runs fuzzy searches against the catalog
type LocalSearcher struct {
	repository repositories.SongRepository
	tuning     *config.TuningStore
}

// NewLocalSearcher creates a catalog searcher
func NewLocalSearcher(repository repositories.SongRepository, tuning *config.TuningStore) *LocalSearcher {
	if tuning == nil {
		tuning = config.NewStaticTuningStore(nil)
	}
	return &LocalSearcher{
		repository: repository,
		tuning:     tuning,
	}
}

// Search returns catalog candidates scoring at least q.Threshold, best
// first. It oversamples the limit so merge-time dedup can still fill a page.
func (l *LocalSearcher) Search(ctx context.Context, q SearchQuery) ([]Candidate, error) {
	tuning := l.tuning.Current()

	oversample := tuning.OversampleFactor
	if oversample < 1 {
		oversample = 1
	}

	rows, err := l.repository.SimilaritySearch(ctx, repositories.SimilarityQuery{
		Text:      q.Text,
		Threshold: q.Threshold,
		Limit:     q.Limit * oversample,
		Weights: scoring.Weights{
			Word:  tuning.WordSimilarityWeight,
			Title: tuning.TitleSimilarityWeight,
		},
		MaxCandidates: tuning.MaxCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		score := scoring.Clamp(row.Score)
		if row.Song == nil || score < q.Threshold {
			continue
		}
		candidates = append(candidates, Candidate{
			Track:  LocalTrack{Song: row.Song},
			Score:  score,
			Source: SourceLocal,
		})
	}
	return candidates, nil
}
