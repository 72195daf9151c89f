package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// SearchTuning holds tunable knobs for the search pipeline
type SearchTuning struct {
	// Local search fetches limit*OversampleFactor rows so dedup and merge
	// still have enough to fill the page
	OversampleFactor int `toml:"oversample_factor"`

	// Upper bound of trigram-prefiltered rows scored per query
	MaxCandidates int `toml:"max_candidates"`

	// Blend between containment in the searchable text and a direct title match
	WordSimilarityWeight  float64 `toml:"word_similarity_weight"`
	TitleSimilarityWeight float64 `toml:"title_similarity_weight"`

	// Maximum candidates accepted from the external provider
	ExternalResultCap int `toml:"external_result_cap"`
}

// DefaultSearchTuning returns hard-coded safe defaults
func DefaultSearchTuning() *SearchTuning {
	return &SearchTuning{
		OversampleFactor:      2,
		MaxCandidates:         2000,
		WordSimilarityWeight:  0.7,
		TitleSimilarityWeight: 0.3,
		ExternalResultCap:     50,
	}
}

// TuningStore serves the current tuning and swaps it on reload
type TuningStore struct {
	current atomic.Pointer[SearchTuning]
	path    string
}

// NewTuningStore loads tuning from path, or from the first well-known
// location when path is empty. Missing files fall back to defaults.
func NewTuningStore(path string) (*TuningStore, error) {
	s := &TuningStore{}
	s.current.Store(DefaultSearchTuning())

	candidates := []string{path}
	if path == "" {
		candidates = candidateTuningPaths()
	}

	for _, p := range candidates {
		fileCfg, err := loadTuningFromPath(p)
		if err != nil {
			return nil, err
		}
		if fileCfg != nil {
			s.path = p
			s.current.Store(mergeTuning(DefaultSearchTuning(), fileCfg))
			break
		}
	}
	return s, nil
}

// NewStaticTuningStore serves a fixed tuning, mostly for tests
func NewStaticTuningStore(t *SearchTuning) *TuningStore {
	s := &TuningStore{}
	s.current.Store(mergeTuning(DefaultSearchTuning(), t))
	return s
}

// Current returns the active tuning. Callers must not modify it.
func (s *TuningStore) Current() *SearchTuning {
	return s.current.Load()
}

// Path returns the file the tuning was loaded from, if any
func (s *TuningStore) Path() string {
	return s.path
}

func loadTuningFromPath(path string) (*SearchTuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg SearchTuning
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mergeTuning(base, override *SearchTuning) *SearchTuning {
	if override == nil {
		return base
	}
	if override.OversampleFactor > 0 {
		base.OversampleFactor = override.OversampleFactor
	}
	if override.MaxCandidates > 0 {
		base.MaxCandidates = override.MaxCandidates
	}
	if override.WordSimilarityWeight > 0 || override.TitleSimilarityWeight > 0 {
		base.WordSimilarityWeight = override.WordSimilarityWeight
		base.TitleSimilarityWeight = override.TitleSimilarityWeight
	}
	if override.ExternalResultCap > 0 && override.ExternalResultCap <= 50 {
		base.ExternalResultCap = override.ExternalResultCap
	}
	return base
}

// candidateTuningPaths returns common locations to auto-discover tuning
func candidateTuningPaths() []string {
	paths := []string{
		"search.toml",
		filepath.Join("config", "search.toml"),
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "musicez", "search.toml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", "musicez", "search.toml"))
	}
	paths = append(paths, filepath.Join(string(os.PathSeparator), "etc", "musicez", "search.toml"))
	return paths
}

// Watch polls the tuning file and swaps in a new tuning when its mtime
// moves forward. It is a no-op when no file was loaded.
func (s *TuningStore) Watch(ctx context.Context, interval time.Duration) {
	if s.path == "" {
		slog.Info("search tuning watcher: no config file found; using defaults")
		return
	}

	var lastModTime time.Time
	if fi, err := os.Stat(s.path); err == nil {
		lastModTime = fi.ModTime()
	}

	slog.Info("search tuning watcher: watching file", "path", s.path)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("search tuning watcher: stopped")
				return
			case <-ticker.C:
				if s.reloadIfChanged(&lastModTime) {
					slog.Info("search tuning reloaded", "path", s.path, "mtime", lastModTime)
				}
			}
		}
	}()
}

func (s *TuningStore) reloadIfChanged(lastModTime *time.Time) bool {
	fi, err := os.Stat(s.path)
	if err != nil || fi.IsDir() || !fi.ModTime().After(*lastModTime) {
		return false
	}
	fileCfg, err := loadTuningFromPath(s.path)
	if err != nil || fileCfg == nil {
		slog.Warn("search tuning reload failed", "path", s.path, "error", err)
		return false
	}
	// Merge over defaults to keep unspecified keys sane
	s.current.Store(mergeTuning(DefaultSearchTuning(), fileCfg))
	*lastModTime = fi.ModTime()
	return true
}
