package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"musicez/internal/auth"
	"musicez/internal/cache"
	"musicez/internal/config"
	"musicez/internal/handlers"
	"musicez/internal/metrics"
	"musicez/internal/models"
	"musicez/internal/repositories"
	"musicez/internal/search"
	searchcache "musicez/internal/search/cache"
	"musicez/internal/services"
	"musicez/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "musicez")
	if err != nil {
		slog.Warn("Tracing setup failed", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := models.NewDatabase(connectCtx, cfg.MongodbURL, cfg.MongodbDatabase)
	cancel()
	if err != nil {
		return err
	}
	if err := db.CreateIndexes(ctx); err != nil {
		slog.Warn("Failed to create indexes", "error", err)
	}

	// A cache outage degrades the service; it never stops it
	var backend cache.Cache
	backend, err = cache.New(cfg.CacheOptions())
	if err != nil {
		slog.Warn("Cache backend unavailable, running without cache", "driver", cfg.CacheDriver, "error", err)
		backend = nil
	}

	tuning, err := config.NewTuningStore(cfg.SearchTuningPath)
	if err != nil {
		return err
	}
	tuning.Watch(ctx, 10*time.Second)

	songRepo := repositories.NewMongoSongRepository(db)
	if backend != nil {
		songRepo = repositories.NewCachedSongRepository(songRepo, backend)
	}
	connectionRepo := repositories.NewMongoConnectionRepository(db)

	var (
		searcher services.TrackSearcher
		catalog  services.TrackCatalog
	)
	if cfg.SpotifyEnabled() {
		spotify := services.NewSpotifyService(services.SpotifyConfig{
			ClientID:       cfg.SpotifyClientID,
			ClientSecret:   cfg.SpotifyClientSecret,
			APIURL:         cfg.SpotifyAPIURL,
			TokenURL:       cfg.SpotifyTokenURL,
			RequestTimeout: cfg.EnrichmentTimeout,
			ConnectTimeout: cfg.ProviderConnectTimeout,
			RateLimit:      cfg.ProviderRateLimit,
		}, connectionRepo)
		searcher, catalog = spotify, spotify
	} else {
		slog.Info("Spotify credentials not set, enrichment and import disabled")
	}

	var recommender services.Recommender
	if cfg.RecommendationsEnabled() {
		recommender = services.NewOpenAIRecommender(services.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	}

	engine := search.NewEngine(
		search.NewLocalSearcher(songRepo, tuning),
		search.NewEnricher(searcher, cfg.EnrichmentTimeout, tuning),
		searchcache.NewStore[search.ResultSet](backend, searchcache.Policy{
			LocalTTL:    cfg.SearchLocalTTL,
			ExternalTTL: cfg.SearchExternalTTL,
		}),
	)

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return err
	}

	limiter := handlers.NewRateLimiter(cfg.APIRateLimit, 0)
	go limiter.Run(ctx, time.Minute)

	var cacheHealth handlers.HealthChecker
	if backend != nil {
		cacheHealth = backend
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Songs: handlers.NewSongHandler(
			engine,
			services.NewImportService(songRepo, catalog),
			songRepo,
			services.NewRecommendationService(songRepo, recommender),
		),
		Admin:       handlers.NewAdminHandler(db, cacheHealth),
		Verifier:    verifier,
		RateLimiter: limiter,
		Gatherer:    reg,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", handlers.RequestIDHeader},
		ExposedHeaders:   []string{handlers.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           600,
	}).Handler(router)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(corsHandler, "musicez",
			otelhttp.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.URL.Path != "/metrics"
			}),
		),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server started", "addr", srv.Addr, "spotify", cfg.SpotifyEnabled(), "recommendations", cfg.RecommendationsEnabled(), "cache", cfg.CacheDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	if backend != nil {
		if err := backend.Close(); err != nil {
			slog.Warn("Cache close error", "error", err)
		}
	}
	if err := db.Close(shutdownCtx); err != nil {
		slog.Warn("Mongo disconnect error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("Tracing shutdown error", "error", err)
	}
	return nil
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
