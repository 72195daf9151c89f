package search

import (
	"sort"

	"musicez/internal/scoring"
)

type ranked struct {
	result Result
	key    string
	sortID string
}

// Merge deduplicates local and external candidates by identity key, ranks
// them and truncates to limit. When a song is found in both sources the
// catalog record wins, is tagged merged and takes the better score.
// The output depends only on the inputs.
func Merge(local, external []Candidate, limit int) ([]Result, SourceCounts) {
	localBest := bestByKey(local)
	externalBest := bestByKey(external)

	entries := make([]ranked, 0, len(localBest)+len(externalBest))
	for key, c := range localBest {
		r := c.Track.toResult()
		r.Similarity = scoring.Clamp(c.Score)
		r.Source = SourceLocal

		if ext, ok := externalBest[key]; ok {
			r.Source = SourceMerged
			if s := scoring.Clamp(ext.Score); s > r.Similarity {
				r.Similarity = s
			}
			attachExternal(&r, ext.Track.toResult())
		}
		entries = append(entries, ranked{result: r, key: key, sortID: c.Track.SortID()})
	}

	for key, c := range externalBest {
		if _, ok := localBest[key]; ok {
			continue
		}
		r := c.Track.toResult()
		r.Similarity = scoring.Clamp(c.Score)
		r.Source = SourceExternal
		entries = append(entries, ranked{result: r, key: key, sortID: c.Track.SortID()})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]

		// Primary sort: similarity
		if a.result.Similarity != b.result.Similarity {
			return a.result.Similarity > b.result.Similarity
		}

		// Catalog-backed results before provider-only ones
		if pa, pb := provenanceRank(a.result.Source), provenanceRank(b.result.Source); pa != pb {
			return pa < pb
		}

		if a.result.Popularity != b.result.Popularity {
			return a.result.Popularity > b.result.Popularity
		}

		// Keys are unique after dedup, which makes the order total
		if a.key != b.key {
			return a.key < b.key
		}
		return a.sortID < b.sortID
	})

	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	results := make([]Result, len(entries))
	var counts SourceCounts
	for i, e := range entries {
		results[i] = e.result
		switch e.result.Source {
		case SourceLocal:
			counts.Local++
		case SourceExternal:
			counts.External++
		case SourceMerged:
			counts.Merged++
		}
	}
	return results, counts
}

// bestByKey keeps one candidate per identity key: the higher score, then
// the higher popularity, then the smaller sort ID
func bestByKey(candidates []Candidate) map[string]Candidate {
	best := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		if c.Track == nil {
			continue
		}
		key := identityKey(c.Track.Title(), c.Track.Artist())
		current, ok := best[key]
		if !ok || better(c, current) {
			best[key] = c
		}
	}
	return best
}

func better(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Track.Popularity() != b.Track.Popularity() {
		return a.Track.Popularity() > b.Track.Popularity()
	}
	return a.Track.SortID() < b.Track.SortID()
}

func provenanceRank(s Source) int {
	if s == SourceExternal {
		return 1
	}
	return 0
}

// attachExternal fills provider fields the catalog record lacks
func attachExternal(r *Result, ext Result) {
	if r.SpotifyID == "" {
		r.SpotifyID = ext.SpotifyID
	}
	if r.PreviewURL == "" {
		r.PreviewURL = ext.PreviewURL
	}
	if r.ExternalURL == "" {
		r.ExternalURL = ext.ExternalURL
	}
	if r.ImageURL == "" {
		r.ImageURL = ext.ImageURL
	}
}
