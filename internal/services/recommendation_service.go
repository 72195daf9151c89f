package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"

	"musicez/internal/models"
	"musicez/internal/repositories"
	"musicez/internal/scoring"
)

const (
	ProviderOpenAI = "openai"

	recommendationMatchThreshold = 0.5
	maxRecommendations           = 20
)

// ErrRecommendationsDisabled means no recommender is configured
var ErrRecommendationsDisabled = errors.New("recommendations are not configured")

// Suggestion is a song proposed by a Recommender, not yet matched to the catalog
type Suggestion struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Recommender proposes songs similar to a seed song
type Recommender interface {
	Recommend(ctx context.Context, seed *models.Song, limit int) ([]Suggestion, error)
}

// OpenAIConfig configures the chat-completion recommender
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIRecommender asks an OpenAI-compatible chat model for similar songs
type OpenAIRecommender struct {
	client *openai.Client
	model  string
}

// NewOpenAIRecommender creates a recommender. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAIRecommender(cfg OpenAIConfig) *OpenAIRecommender {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIRecommender{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

type suggestionList struct {
	Songs []Suggestion `json:"songs"`
}

// Recommend implements Recommender
func (r *OpenAIRecommender) Recommend(ctx context.Context, seed *models.Song, limit int) ([]Suggestion, error) {
	prompt := fmt.Sprintf("Suggest %d songs similar to %q by %s.", limit, seed.Title, seed.Artist)
	if seed.Album != "" {
		prompt += fmt.Sprintf(" The song is from the album %q.", seed.Album)
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: `You recommend music. Answer with a JSON object {"songs":[{"title":"...","artist":"..."}]} and nothing else.`,
			},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.7,
	})
	if err != nil {
		return nil, parseOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: ProviderOpenAI, Operation: "recommend", Message: "empty response"}
	}

	var list suggestionList
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &list); err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Operation: "recommend", Message: "malformed response", Err: err}
	}

	suggestions := make([]Suggestion, 0, len(list.Songs))
	for _, s := range list.Songs {
		s.Title = strings.TrimSpace(s.Title)
		s.Artist = strings.TrimSpace(s.Artist)
		if s.Title == "" {
			continue
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}

func parseOpenAIError(err error) error {
	pe := &ProviderError{Provider: ProviderOpenAI, Operation: "recommend", Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode = apiErr.HTTPStatusCode
		pe.Message = apiErr.Message
	case errors.As(err, &reqErr):
		pe.StatusCode = reqErr.HTTPStatusCode
		pe.Message = "request failed"
	default:
		pe.Message = "request failed"
	}
	return pe
}

// Recommendation is a suggestion, resolved against the catalog when possible
type Recommendation struct {
	Suggestion
	Song  *models.Song `json:"song,omitempty"`
	Score float64      `json:"similarity,omitempty"`
}

// RecommendationService turns recommender suggestions into catalog songs
type RecommendationService struct {
	songRepo    repositories.SongRepository
	recommender Recommender
}

// NewRecommendationService creates a new recommendation service. A nil
// recommender disables the feature.
func NewRecommendationService(songRepo repositories.SongRepository, recommender Recommender) *RecommendationService {
	return &RecommendationService{
		songRepo:    songRepo,
		recommender: recommender,
	}
}

// Enabled reports whether a recommender is configured
func (s *RecommendationService) Enabled() bool {
	return s != nil && s.recommender != nil
}

// Recommend returns the seed song and up to limit recommendations for it
func (s *RecommendationService) Recommend(ctx context.Context, songID string, limit int) (*models.Song, []Recommendation, error) {
	if !s.Enabled() {
		return nil, nil, ErrRecommendationsDisabled
	}
	if limit <= 0 || limit > maxRecommendations {
		limit = 10
	}

	seed, err := s.songRepo.FindByID(ctx, songID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load seed song: %w", err)
	}
	if seed == nil {
		return nil, nil, fmt.Errorf("song %s: %w", songID, repositories.ErrNotFound)
	}

	suggestions, err := s.recommender.Recommend(ctx, seed, limit)
	if err != nil {
		return nil, nil, err
	}

	seen := map[string]bool{seed.ID.Hex(): true}
	recs := make([]Recommendation, 0, limit)
	for _, suggestion := range suggestions {
		if len(recs) == limit {
			break
		}

		rec := Recommendation{Suggestion: suggestion}
		matches, err := s.songRepo.SimilaritySearch(ctx, repositories.SimilarityQuery{
			Text:      suggestion.Title + " " + suggestion.Artist,
			Threshold: recommendationMatchThreshold,
			Limit:     1,
			Weights:   scoring.DefaultWeights(),
		})
		if err != nil {
			slog.Warn("Failed to resolve recommendation", "title", suggestion.Title, "error", err)
		} else if len(matches) > 0 {
			match := matches[0]
			if seen[match.Song.ID.Hex()] {
				continue
			}
			seen[match.Song.ID.Hex()] = true
			rec.Song = match.Song
			rec.Score = match.Score
		}
		recs = append(recs, rec)
	}

	return seed, recs, nil
}
