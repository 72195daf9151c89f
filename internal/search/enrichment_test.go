package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"musicez/internal/config"
	"musicez/internal/models"
	"musicez/internal/repositories"
	"musicez/internal/services"
	"musicez/internal/testutil"
)

func TestEnricher_CapsProviderResults(t *testing.T) {
	tracks := make([]*services.TrackInfo, 5)
	for i := range tracks {
		tracks[i] = testutil.NewTrackInfoBuilder().
			WithExternalID(fmt.Sprintf("sp%d", i)).
			WithTitle(fmt.Sprintf("Hello %d", i)).
			Build()
	}

	searcher := new(testutil.MockTrackSearcher)
	searcher.On("SearchTracksForUser", mock.Anything, "user-1", "hello", 3).Return(tracks, nil)

	tuning := config.NewStaticTuningStore(&config.SearchTuning{ExternalResultCap: 3})
	enricher := NewEnricher(searcher, 0, tuning)

	candidates, skipped := enricher.Enrich(context.Background(), SearchQuery{Text: "hello", Limit: 20, Threshold: 0.3, Enrich: true}, connectedUser)
	require.Nil(t, skipped)
	assert.Len(t, candidates, 3)
	for _, c := range candidates {
		assert.Equal(t, SourceExternal, c.Source)
		assert.Greater(t, c.Score, 0.0)
	}
	searcher.AssertExpectations(t)
}

func TestEnricher_Eligible(t *testing.T) {
	searcher := new(testutil.MockTrackSearcher)

	tests := []struct {
		name      string
		enricher  *Enricher
		principal *models.Principal
		want      SkipReason
	}{
		{"anonymous", NewEnricher(searcher, 0, nil), nil, SkipNotConnected},
		{"not connected", NewEnricher(searcher, 0, nil), &models.Principal{ID: "u"}, SkipNotConnected},
		{"no provider", NewEnricher(nil, 0, nil), connectedUser, SkipDisabled},
		{"eligible", NewEnricher(searcher, 0, nil), connectedUser, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skipped := tt.enricher.Eligible(tt.principal)
			if tt.want == "" {
				assert.Nil(t, skipped)
				return
			}
			require.NotNil(t, skipped)
			assert.Equal(t, tt.want, skipped.Reason)
		})
	}
}

func TestLocalSearcher_ReassertsThreshold(t *testing.T) {
	repo := new(testutil.MockSongRepository)
	repo.On("SimilaritySearch", mock.Anything, mock.Anything).Return([]repositories.ScoredSong{
		{Song: testutil.NewSongBuilder().WithNewID().WithTitle("Close").Build(), Score: 0.61},
		{Song: testutil.NewSongBuilder().WithNewID().WithTitle("Far").Build(), Score: 0.42},
		{Song: nil, Score: 0.9},
	}, nil)

	local := NewLocalSearcher(repo, nil)
	candidates, err := local.Search(context.Background(), SearchQuery{Text: "close", Limit: 10, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Close", candidates[0].Track.Title())
}
