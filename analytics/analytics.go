// Package analytics owns three independent aggregate datasets. Each is
// fetched and cached on its own, with an isolated failure domain: one
// dataset's error never affects another's data.
package analytics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mkline/civicsync/civic"
	"github.com/mkline/civicsync/transport"
)

type dataset[T any] struct {
	data    []T
	loading bool
	err     error
}

// Store owns the analytics snapshots.
type Store struct {
	mu sync.RWMutex
	tc *transport.Client

	categories dataset[civic.CategoryCount]
	daily      dataset[civic.DailyCount]
	mostVoted  dataset[civic.CategoryMax]

	log *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.log = logger }
}

// New creates an analytics store talking through tc.
func New(tc *transport.Client, opts ...Option) *Store {
	s := &Store{tc: tc}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	return s
}

// FetchCategoryCounts fetches the per-category issue count aggregate.
func (s *Store) FetchCategoryCounts(ctx context.Context) ([]civic.CategoryCount, error) {
	s.mu.Lock()
	s.categories.loading = true
	s.mu.Unlock()

	var rows []civic.CategoryCount
	err := s.tc.GetJSON(ctx, "/api/analytics/category-count", nil, &rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories.loading = false
	if err != nil {
		s.categories.err = err
		return nil, err
	}
	s.categories.data = rows
	s.categories.err = nil
	return rows, nil
}

// FetchDailySubmissions fetches the submissions-per-day aggregate.
func (s *Store) FetchDailySubmissions(ctx context.Context) ([]civic.DailyCount, error) {
	s.mu.Lock()
	s.daily.loading = true
	s.mu.Unlock()

	var rows []civic.DailyCount
	err := s.tc.GetJSON(ctx, "/api/analytics/daily-submissions", nil, &rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily.loading = false
	if err != nil {
		s.daily.err = err
		return nil, err
	}
	s.daily.data = rows
	s.daily.err = nil
	return rows, nil
}

// FetchMostVoted fetches the most-voted-per-category aggregate.
func (s *Store) FetchMostVoted(ctx context.Context) ([]civic.CategoryMax, error) {
	s.mu.Lock()
	s.mostVoted.loading = true
	s.mu.Unlock()

	var rows []civic.CategoryMax
	err := s.tc.GetJSON(ctx, "/api/analytics/most-voted", nil, &rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mostVoted.loading = false
	if err != nil {
		s.mostVoted.err = err
		return nil, err
	}
	s.mostVoted.data = rows
	s.mostVoted.err = nil
	return rows, nil
}

// CategoryCounts returns the cached per-category counts.
func (s *Store) CategoryCounts() []civic.CategoryCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]civic.CategoryCount, len(s.categories.data))
	copy(out, s.categories.data)
	return out
}

// DailySubmissions returns the cached daily submission counts.
func (s *Store) DailySubmissions() []civic.DailyCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]civic.DailyCount, len(s.daily.data))
	copy(out, s.daily.data)
	return out
}

// MostVoted returns the cached most-voted-per-category rows.
func (s *Store) MostVoted() []civic.CategoryMax {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]civic.CategoryMax, len(s.mostVoted.data))
	copy(out, s.mostVoted.data)
	return out
}

// Loading reports whether any dataset fetch is in flight. Used to gate a
// single combined spinner.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categories.loading || s.daily.loading || s.mostVoted.loading
}

// Ready reports whether all three datasets are populated and none is
// loading. One dataset's error does not fail another; Ready simply stays
// false until every dataset has data.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.categories.loading && !s.daily.loading && !s.mostVoted.loading &&
		len(s.categories.data) > 0 && len(s.daily.data) > 0 && len(s.mostVoted.data) > 0
}
