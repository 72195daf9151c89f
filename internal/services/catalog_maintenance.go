package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"musicez/internal/models"
	"musicez/internal/repositories"
)

// ReindexStats summarizes a reindex run
type ReindexStats struct {
	Scanned int64
	Updated int64
}

// ReindexSongs recomputes the search index of every song and writes back
// the ones that changed, with at most workers writes in flight
func ReindexSongs(ctx context.Context, repo repositories.SongRepository, batchSize, workers int) (ReindexStats, error) {
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var scanned, updated atomic.Int64
	iterErr := repo.Each(gctx, batchSize, func(song *models.Song) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		if n := scanned.Add(1); n%10000 == 0 {
			slog.Info("Reindex progress", "scanned", n, "updated", updated.Load())
		}
		if !song.RefreshSearchIndex() {
			return nil
		}
		g.Go(func() error {
			if err := repo.UpdateSearchIndex(gctx, song); err != nil {
				return fmt.Errorf("song %s: %w", song.ID.Hex(), err)
			}
			updated.Add(1)
			return nil
		})
		return nil
	})

	// Writes already queued must finish before reporting
	writeErr := g.Wait()

	stats := ReindexStats{Scanned: scanned.Load(), Updated: updated.Load()}
	if writeErr != nil {
		return stats, fmt.Errorf("failed to update search index: %w", writeErr)
	}
	if iterErr != nil {
		return stats, iterErr
	}
	return stats, nil
}

// ImportResult is the outcome of one reference in a batch import
type ImportResult struct {
	Ref     string
	Song    *models.Song
	Created bool
	Err     error
}

// ImportMany imports refs with bounded concurrency. Failures are reported
// per reference and never stop the batch. Results keep the input order.
func (s *ImportService) ImportMany(ctx context.Context, refs []string, workers int) []ImportResult {
	if workers < 1 {
		workers = 1
	}

	results := make([]ImportResult, len(refs))
	var g errgroup.Group
	g.SetLimit(workers)

	var failed atomic.Int64
	for i, ref := range refs {
		g.Go(func() error {
			song, created, err := s.Import(ctx, ref)
			results[i] = ImportResult{Ref: ref, Song: song, Created: created, Err: err}
			if err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Batch import finished", "total", len(refs), "failed", failed.Load())
	return results
}
