package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"musicez/internal/auth"
	"musicez/internal/handlers/render"
)

// RouterConfig wires the HTTP surface
type RouterConfig struct {
	Songs    *SongHandler
	Admin    *AdminHandler
	Verifier *auth.Verifier
	// RateLimiter is optional
	RateLimiter *RateLimiter
	// Gatherer defaults to the global Prometheus registry
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Recovery(), RequestLogger(), Metrics())

	router.NoRoute(func(c *gin.Context) {
		render.Error(c, http.StatusNotFound, render.CodeNotFound, "Route not found", nil)
	})

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	if cfg.Admin != nil {
		router.GET("/health", cfg.Admin.Health)
	}

	v1 := router.Group("/api/v1")
	if cfg.RateLimiter != nil {
		v1.Use(cfg.RateLimiter.Middleware())
	}

	songs := v1.Group("/songs")
	{
		songs.GET("/search", cfg.Verifier.Optional(), cfg.Songs.SearchSongs)
		songs.POST("/import", cfg.Verifier.Required(), cfg.Songs.ImportSong)
		songs.GET("/:id", cfg.Songs.GetSong)
		songs.GET("/:id/recommendations", cfg.Verifier.Required(), cfg.Songs.GetRecommendations)
	}

	return router
}
