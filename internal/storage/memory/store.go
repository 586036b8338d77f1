// Package memory keeps crawl output in process memory for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
)

// Store implements crawler.Store with maps keyed by natural key. The first
// write of a key wins; later writes of the same key are ignored.
type Store struct {
	mu      sync.RWMutex
	urls    map[crawler.URLKey]crawler.URLRecord
	pitches map[crawler.PitchKey]crawler.PitchStat
	closed  bool
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		urls:    make(map[crawler.URLKey]crawler.URLRecord),
		pitches: make(map[crawler.PitchKey]crawler.PitchStat),
	}
}

// InsertURLs stores records whose key is new and returns how many were added.
func (s *Store) InsertURLs(_ context.Context, records []crawler.URLRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}
	var inserted int64
	for _, rec := range records {
		if _, ok := s.urls[rec.Key()]; ok {
			continue
		}
		s.urls[rec.Key()] = rec
		inserted++
	}
	return inserted, nil
}

// InsertPitchStats stores rows whose key is new and returns how many were added.
func (s *Store) InsertPitchStats(_ context.Context, stats []crawler.PitchStat) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}
	var inserted int64
	for _, st := range stats {
		if _, ok := s.pitches[st.Key()]; ok {
			continue
		}
		s.pitches[st.Key()] = st
		inserted++
	}
	return inserted, nil
}

// SelectURLs returns the records of one month ordered by game then pitcher.
func (s *Store) SelectURLs(_ context.Context, year, month string) ([]crawler.URLRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	var out []crawler.URLRecord
	for _, rec := range s.urls {
		if rec.Year == year && rec.Month == month {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GameID != out[j].GameID {
			return out[i].GameID < out[j].GameID
		}
		return out[i].PitcherID < out[j].PitcherID
	})
	return out, nil
}

// PitchStats returns a snapshot of every stored pitch row.
func (s *Store) PitchStats() []crawler.PitchStat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.PitchStat, 0, len(s.pitches))
	for _, st := range s.pitches {
		out = append(out, st)
	}
	return out
}

// Counts returns the number of rows in urls and full_pitches.
func (s *Store) Counts() (urls, pitches int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls), len(s.pitches)
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
