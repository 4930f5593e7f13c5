package memory

import (
	"context"
	"sort"
	"sync"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/storage"
)

// IssuanceStore is an in-memory implementation of storage.IssuanceStore.
type IssuanceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.IssuanceRecord // keyed by issuance id
}

// NewIssuanceStore creates a new in-memory issuance journal.
func NewIssuanceStore() *IssuanceStore {
	return &IssuanceStore{
		data: make(map[string]*domain.IssuanceRecord),
	}
}

// Insert adds a new issuance. Returns ErrDuplicateKey if issuance_id exists.
func (s *IssuanceStore) Insert(_ context.Context, rec *domain.IssuanceRecord) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rec.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	recCopy := *rec
	s.data[rec.ID] = &recCopy
	return nil
}

// GetByID retrieves an issuance by its ID. Returns ErrNotFound if not exists.
func (s *IssuanceStore) GetByID(_ context.Context, id string) (*domain.IssuanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *rec
	return &recCopy, nil
}

// GetBySubject retrieves issuances for a subject, most recent first.
func (s *IssuanceStore) GetBySubject(_ context.Context, subject string, limit int) ([]*domain.IssuanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IssuanceRecord
	for _, rec := range s.data {
		if rec.Subject == subject {
			recCopy := *rec
			result = append(result, &recCopy)
		}
	}

	// Sort by issued_at DESC, id DESC for a stable order
	sort.Slice(result, func(i, j int) bool {
		if result[i].IssuedAt != result[j].IssuedAt {
			return result[i].IssuedAt > result[j].IssuedAt
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByTimeRange retrieves issuances issued within [start, end] (inclusive).
func (s *IssuanceStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.IssuanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IssuanceRecord
	for _, rec := range s.data {
		if rec.IssuedAt >= start && rec.IssuedAt <= end {
			recCopy := *rec
			result = append(result, &recCopy)
		}
	}

	// Sort by issued_at ASC, id ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].IssuedAt != result[j].IssuedAt {
			return result[i].IssuedAt < result[j].IssuedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// GetLatest retrieves the most recent issuance of a kind for a subject.
func (s *IssuanceStore) GetLatest(_ context.Context, subject string, kind domain.Kind) (*domain.IssuanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.IssuanceRecord
	for _, rec := range s.data {
		if rec.Subject != subject || rec.Kind != kind {
			continue
		}
		if latest == nil || rec.IssuedAt > latest.IssuedAt ||
			(rec.IssuedAt == latest.IssuedAt && rec.ID > latest.ID) {
			latest = rec
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}
	recCopy := *latest
	return &recCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.IssuanceStore = (*IssuanceStore)(nil)
