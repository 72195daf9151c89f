package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"musicez/internal/metrics"
	"musicez/internal/models"
	"musicez/internal/search/cache"
)

var errAwaitDeadline = errors.New("deadline elapsed before completion")

// Request is a raw search request as received from a caller
type Request struct {
	Query     string
	Limit     *int
	Threshold *float64
	Enrich    bool
	// Refresh skips the cache read; the fresh result is still written
	Refresh   bool
	Principal *models.Principal
}

// Engine is the main search orchestrator. Each request runs the catalog
// search and, when requested and allowed, provider enrichment concurrently,
// then merges whatever finished within the enrichment budget.
type Engine struct {
	local    *LocalSearcher
	enricher *Enricher
	cache    *cache.Store[ResultSet]
}

// NewEngine creates a new search engine. enricher and store may be nil.
func NewEngine(local *LocalSearcher, enricher *Enricher, store *cache.Store[ResultSet]) *Engine {
	if enricher == nil {
		enricher = NewEnricher(nil, 0, nil)
	}
	return &Engine{
		local:    local,
		enricher: enricher,
		cache:    store,
	}
}

type localOutcome struct {
	candidates []Candidate
	err        error
	elapsed    time.Duration
}

type enrichOutcome struct {
	candidates []Candidate
	skipped    *EnrichmentSkipped
}

// Search runs one orchestration. The only errors returned are
// *ValidationError and ErrCatalogUnavailable; every other failure degrades
// the result and is recorded in its metadata.
func (e *Engine) Search(ctx context.Context, req Request) (*ResultSet, error) {
	start := time.Now()

	q, err := NewSearchQuery(req.Query, req.Limit, req.Threshold, req.Enrich)
	if err != nil {
		recordOutcome("rejected_invalid")
		return nil, err
	}
	slog.Debug("Search normalized", "query", q.Text, "limit", q.Limit, "threshold", q.Threshold, "enrich", q.Enrich, "refresh", req.Refresh)

	// An ineligible caller gets exactly the catalog-only answer, so it shares
	// that entry and never reads one built from someone else's enrichment
	eligibility := e.enricher.Eligible(req.Principal)
	enrich := q.Enrich && eligibility == nil

	key := cache.Key(cache.KeyParts{
		Query:     q.Text,
		Limit:     q.Limit,
		Threshold: q.Threshold,
		Enrich:    enrich,
	})

	info := EnrichmentInfo{
		Requested:      q.Enrich,
		SpotifyEnabled: eligibility == nil,
	}
	if q.Enrich && eligibility != nil {
		info.Skipped = eligibility.Reason
	}

	if !req.Refresh {
		if rs, ok := e.cached(ctx, key, start); ok {
			slog.Debug("Search cache hit", "query", q.Text, "results", len(rs.Results))
			rs.Metadata.Enrichment = cachedEnrichment(info, rs.Metadata.Enrichment, enrich)
			recordOutcome("cache_hit")
			return rs, nil
		}
	}

	localCh := make(chan localOutcome, 1)
	go func() {
		began := time.Now()
		candidates, err := e.local.Search(ctx, q)
		localCh <- localOutcome{candidates: candidates, err: err, elapsed: time.Since(began)}
	}()
	slog.Debug("Search stage", "stage", "local_searching", "query", q.Text)

	var (
		enrichCh       chan enrichOutcome
		enrichLaunched time.Time
		skipped        *EnrichmentSkipped
	)
	if q.Enrich {
		skipped = eligibility
		if skipped == nil {
			info.Attempted = true
			enrichCh = make(chan enrichOutcome, 1)
			enrichLaunched = time.Now()
			go func() {
				candidates, skipped := e.enricher.Enrich(ctx, q, req.Principal)
				enrichCh <- enrichOutcome{candidates: candidates, skipped: skipped}
			}()
			slog.Debug("Search stage", "stage", "external_searching", "query", q.Text)
		}
	}

	lo, err := awaitWithin(ctx, localCh, time.Time{})
	if err != nil {
		lo.err = fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	metrics.SearchStageDuration.WithLabelValues("local").Observe(lo.elapsed.Seconds())

	var (
		external   []Candidate
		externalMs *int64
	)
	if info.Attempted {
		eo, err := awaitWithin(ctx, enrichCh, enrichLaunched.Add(e.enricher.Timeout()))
		if err != nil {
			// The abandoned call finishes on its own; its result is dropped
			eo.skipped = &EnrichmentSkipped{Reason: SkipTimeout, Err: err}
		}
		elapsed := time.Since(enrichLaunched)
		ms := elapsed.Milliseconds()
		externalMs = &ms
		metrics.SearchStageDuration.WithLabelValues("external").Observe(elapsed.Seconds())

		external = eo.candidates
		skipped = eo.skipped
	}

	if q.Enrich {
		outcome := "completed"
		if skipped != nil {
			outcome = string(skipped.Reason)
			info.Skipped = skipped.Reason
			slog.Warn("Enrichment skipped", "reason", skipped.Reason, "query", q.Text, "error", skipped.Err)
		}
		metrics.EnrichmentOutcomesTotal.WithLabelValues(outcome).Inc()
	}

	enrichCompleted := info.Attempted && skipped == nil

	if lo.err != nil {
		if enrichCompleted {
			slog.Warn("Catalog search failed, serving provider results only", "query", q.Text, "error", lo.err)
			rs := e.assemble(q, nil, external, info, lo.elapsed, externalMs, start)
			recordOutcome("degraded_external_only")
			return rs, nil
		}

		// A bypassed read may still have a usable entry
		if req.Refresh {
			if rs, ok := e.cached(ctx, key, start); ok {
				rs.Metadata.Enrichment = cachedEnrichment(info, rs.Metadata.Enrichment, enrich)
				slog.Warn("Catalog search failed, serving cached results", "query", q.Text, "error", lo.err)
				recordOutcome("cache_fallback")
				return rs, nil
			}
		}

		slog.Error("Search failed", "query", q.Text, "error", lo.err)
		recordOutcome("failed")
		return nil, lo.err
	}

	slog.Debug("Search stage", "stage", "merging", "query", q.Text, "local", len(lo.candidates), "external", len(external))
	rs := e.assemble(q, lo.candidates, external, info, lo.elapsed, externalMs, start)

	// Only complete orchestrations are cached; a degraded answer would
	// otherwise outlive the failure that caused it
	if !enrich || enrichCompleted {
		slog.Debug("Search stage", "stage", "cache_writing", "query", q.Text)
		e.cache.Put(ctx, key, *rs, rs.HasExternal())
	}

	metrics.SearchStageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	recordOutcome("responded")
	return rs, nil
}

func (e *Engine) assemble(q SearchQuery, local, external []Candidate, info EnrichmentInfo, localElapsed time.Duration, externalMs *int64, start time.Time) *ResultSet {
	mergeStart := time.Now()
	results, counts := Merge(local, external, q.Limit)
	metrics.SearchStageDuration.WithLabelValues("merge").Observe(time.Since(mergeStart).Seconds())

	return &ResultSet{
		Results: results,
		Metadata: Metadata{
			Total: len(results),
			Query: q.Text,
			ProcessingTime: ProcessingTime{
				LocalMs:    localElapsed.Milliseconds(),
				ExternalMs: externalMs,
				TotalMs:    time.Since(start).Milliseconds(),
			},
			Sources:    counts,
			Enrichment: info,
		},
	}
}

// cached returns a copy of a live cache entry marked as cached
func (e *Engine) cached(ctx context.Context, key string, start time.Time) (*ResultSet, bool) {
	entry, ok := e.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	rs := entry.Value
	if rs.Results == nil {
		rs.Results = []Result{}
	}
	rs.Metadata.Cached = true
	rs.Metadata.ProcessingTime = ProcessingTime{TotalMs: time.Since(start).Milliseconds()}
	return &rs, true
}

// cachedEnrichment describes enrichment for the caller of a cache hit. The
// stored entry only speaks for the request that wrote it.
func cachedEnrichment(current, stored EnrichmentInfo, enrich bool) EnrichmentInfo {
	if enrich {
		current.Attempted = stored.Attempted
	}
	return current
}

// awaitWithin waits for a value on ch until deadline passes or ctx ends. A
// zero deadline waits on ctx alone.
func awaitWithin[T any](ctx context.Context, ch <-chan T, deadline time.Time) (T, error) {
	var zero T

	var expired <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case v := <-ch:
		return v, nil
	case <-expired:
		return zero, errAwaitDeadline
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func recordOutcome(state string) {
	metrics.SearchOutcomesTotal.WithLabelValues(state).Inc()
}
