package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"musicez/internal/auth"
	"musicez/internal/handlers/render"
	"musicez/internal/models"
	"musicez/internal/repositories"
	"musicez/internal/search"
	"musicez/internal/services"
)

// SearchParams are the query parameters of GET /api/v1/songs/search.
// Range checks happen in the search engine so the reasons stay precise.
type SearchParams struct {
	Query     string   `form:"q"`
	Limit     *int     `form:"limit"`
	Threshold *float64 `form:"threshold"`
	Enrich    bool     `form:"enrich"`
	Refresh   bool     `form:"refresh"`
}

// SearchResponse is the success body of a search
type SearchResponse struct {
	Success   bool            `json:"success"`
	Results   []search.Result `json:"results"`
	Metadata  search.Metadata `json:"metadata"`
	Timestamp time.Time       `json:"timestamp"`
}

// ImportRequest represents the request to import a track from Spotify
type ImportRequest struct {
	SpotifyID string `json:"spotifyId" binding:"required,max=200"`
}

// ImportResponse is the payload of a successful import
type ImportResponse struct {
	Song    *models.Song `json:"song"`
	Created bool         `json:"created"`
}

// RecommendationParams are the query parameters of the recommendations route
type RecommendationParams struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=20"`
}

// RecommendationsResponse is the payload of the recommendations route
type RecommendationsResponse struct {
	Seed            *models.Song              `json:"seed"`
	Recommendations []services.Recommendation `json:"recommendations"`
}

// SongHandler handles song-related requests
type SongHandler struct {
	engine          *search.Engine
	importer        *services.ImportService
	songRepository  repositories.SongRepository
	recommendations *services.RecommendationService
}

// NewSongHandler creates a new song handler
func NewSongHandler(engine *search.Engine, importer *services.ImportService, songRepository repositories.SongRepository, recommendations *services.RecommendationService) *SongHandler {
	return &SongHandler{
		engine:          engine,
		importer:        importer,
		songRepository:  songRepository,
		recommendations: recommendations,
	}
}

// SearchSongs handles GET /api/v1/songs/search
func (h *SongHandler) SearchSongs(c *gin.Context) {
	var params SearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindingError(c, err)
		return
	}

	rs, err := h.engine.Search(c.Request.Context(), search.Request{
		Query:     params.Query,
		Limit:     params.Limit,
		Threshold: params.Threshold,
		Enrich:    params.Enrich,
		Refresh:   params.Refresh,
		Principal: auth.PrincipalFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SearchResponse{
		Success:   true,
		Results:   rs.Results,
		Metadata:  rs.Metadata,
		Timestamp: render.Now(),
	})
}

// ImportSong handles POST /api/v1/songs/import
func (h *SongHandler) ImportSong(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	song, created, err := h.importer.Import(c.Request.Context(), req.SpotifyID)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		slog.Info("Imported song", "songID", song.ID.Hex(), "spotifyID", song.SpotifyID, "user", auth.PrincipalFrom(c).ID)
	}
	render.Data(c, status, ImportResponse{Song: song, Created: created})
}

// GetSong handles GET /api/v1/songs/:id
func (h *SongHandler) GetSong(c *gin.Context) {
	song, err := h.songRepository.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if song == nil {
		render.Error(c, http.StatusNotFound, render.CodeNotFound, "Song not found", nil)
		return
	}
	render.Data(c, http.StatusOK, song)
}

// GetRecommendations handles GET /api/v1/songs/:id/recommendations
func (h *SongHandler) GetRecommendations(c *gin.Context) {
	var params RecommendationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindingError(c, err)
		return
	}

	seed, recs, err := h.recommendations.Recommend(c.Request.Context(), c.Param("id"), params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	render.Data(c, http.StatusOK, RecommendationsResponse{Seed: seed, Recommendations: recs})
}
