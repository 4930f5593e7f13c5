package storage

import (
	"context"

	"credit-attestor/internal/domain"
)

// IssuanceStore provides access to the attestation issuance journal.
type IssuanceStore interface {
	// Insert adds a new issuance. Returns ErrDuplicateKey if issuance_id exists.
	Insert(ctx context.Context, rec *domain.IssuanceRecord) error

	// GetByID retrieves an issuance by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.IssuanceRecord, error)

	// GetBySubject retrieves issuances for a subject, most recent first,
	// capped at limit (limit <= 0 means no cap).
	GetBySubject(ctx context.Context, subject string, limit int) ([]*domain.IssuanceRecord, error)

	// GetByTimeRange retrieves issuances issued within [start, end] (inclusive),
	// ordered by issued_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.IssuanceRecord, error)

	// GetLatest retrieves the most recent issuance of a kind for a subject.
	// Returns ErrNotFound if the subject has none.
	GetLatest(ctx context.Context, subject string, kind domain.Kind) (*domain.IssuanceRecord, error)
}

// IssuancePointStore provides access to the issuance_points analytics timeseries.
type IssuancePointStore interface {
	// InsertBulk adds multiple points.
	InsertBulk(ctx context.Context, points []*domain.IssuancePoint) error

	// GetByTimeRange retrieves points of a kind within [startMs, endMs]
	// (inclusive), ordered by issued_at ASC.
	GetByTimeRange(ctx context.Context, kind domain.Kind, startMs, endMs int64) ([]*domain.IssuancePoint, error)

	// Summary aggregates points of a kind within [startMs, endMs] (inclusive).
	// A range with no points yields a zero-count summary, not an error.
	Summary(ctx context.Context, kind domain.Kind, startMs, endMs int64) (*domain.IssuanceSummary, error)
}
