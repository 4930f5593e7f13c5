package memory

import (
	"context"
	"sort"
	"sync"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/storage"
)

// IssuancePointStore is an in-memory implementation of storage.IssuancePointStore.
type IssuancePointStore struct {
	mu     sync.RWMutex
	points []domain.IssuancePoint
}

// NewIssuancePointStore creates a new in-memory analytics timeseries store.
func NewIssuancePointStore() *IssuancePointStore {
	return &IssuancePointStore{}
}

// InsertBulk adds multiple points.
func (s *IssuancePointStore) InsertBulk(_ context.Context, points []*domain.IssuancePoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		s.points = append(s.points, *p)
	}
	return nil
}

// GetByTimeRange retrieves points of a kind within [startMs, endMs] (inclusive).
func (s *IssuancePointStore) GetByTimeRange(_ context.Context, kind domain.Kind, startMs, endMs int64) ([]*domain.IssuancePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IssuancePoint
	for i := range s.points {
		p := s.points[i]
		if p.Kind == kind && p.IssuedAtMs >= startMs && p.IssuedAtMs <= endMs {
			pCopy := p
			result = append(result, &pCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].IssuedAtMs < result[j].IssuedAtMs
	})

	return result, nil
}

// Summary aggregates points of a kind within [startMs, endMs] (inclusive).
func (s *IssuancePointStore) Summary(_ context.Context, kind domain.Kind, startMs, endMs int64) (*domain.IssuanceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &domain.IssuanceSummary{Kind: kind}
	var total int64

	for i := range s.points {
		p := s.points[i]
		if p.Kind != kind || p.IssuedAtMs < startMs || p.IssuedAtMs > endMs {
			continue
		}

		if summary.Count == 0 || p.Score < summary.MinScore {
			summary.MinScore = p.Score
		}
		if summary.Count == 0 || p.Score > summary.MaxScore {
			summary.MaxScore = p.Score
		}
		if p.Degraded {
			summary.DegradedCount++
		}
		total += int64(p.Score)
		summary.Count++
	}

	if summary.Count > 0 {
		summary.MeanScore = float64(total) / float64(summary.Count)
	}
	return summary, nil
}

// Verify interface compliance at compile time.
var _ storage.IssuancePointStore = (*IssuancePointStore)(nil)
