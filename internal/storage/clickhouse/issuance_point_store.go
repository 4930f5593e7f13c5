package clickhouse

import (
	"context"
	"fmt"
	"math"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/storage"
)

// IssuancePointStore implements storage.IssuancePointStore using ClickHouse.
type IssuancePointStore struct {
	conn *Conn
}

// NewIssuancePointStore creates a new IssuancePointStore.
func NewIssuancePointStore(conn *Conn) *IssuancePointStore {
	return &IssuancePointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.IssuancePointStore = (*IssuancePointStore)(nil)

// InsertBulk adds multiple points.
func (s *IssuancePointStore) InsertBulk(ctx context.Context, points []*domain.IssuancePoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO issuance_points (
			kind, score, classification, degraded, duration_ms, issued_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		var degraded uint8
		if p.Degraded {
			degraded = 1
		}
		err = batch.Append(
			string(p.Kind), int32(p.Score), p.Classification,
			degraded, uint32(p.DurationMs), uint64(p.IssuedAtMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves points of a kind within [startMs, endMs] (inclusive).
func (s *IssuancePointStore) GetByTimeRange(ctx context.Context, kind domain.Kind, startMs, endMs int64) ([]*domain.IssuancePoint, error) {
	query := `
		SELECT kind, score, classification, degraded, duration_ms, issued_at_ms
		FROM issuance_points
		WHERE kind = ? AND issued_at_ms >= ? AND issued_at_ms <= ?
		ORDER BY issued_at_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, string(kind), uint64(startMs), uint64(endMs))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var points []*domain.IssuancePoint
	for rows.Next() {
		var p domain.IssuancePoint
		var kindStr string
		var score int32
		var degraded uint8
		var durationMs uint32
		var issuedAtMs uint64

		err := rows.Scan(&kindStr, &score, &p.Classification, &degraded, &durationMs, &issuedAtMs)
		if err != nil {
			return nil, fmt.Errorf("scan issuance point row: %w", err)
		}

		p.Kind = domain.Kind(kindStr)
		p.Score = int(score)
		p.Degraded = degraded != 0
		p.DurationMs = int64(durationMs)
		p.IssuedAtMs = int64(issuedAtMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issuance point rows: %w", err)
	}

	return points, nil
}

// Summary aggregates points of a kind within [startMs, endMs] (inclusive).
func (s *IssuancePointStore) Summary(ctx context.Context, kind domain.Kind, startMs, endMs int64) (*domain.IssuanceSummary, error) {
	query := `
		SELECT count(), avg(score), min(score), max(score), countIf(degraded = 1)
		FROM issuance_points
		WHERE kind = ? AND issued_at_ms >= ? AND issued_at_ms <= ?
	`

	var count, degradedCount uint64
	var mean float64
	var minScore, maxScore int32

	row := s.conn.QueryRow(ctx, query, string(kind), uint64(startMs), uint64(endMs))
	if err := row.Scan(&count, &mean, &minScore, &maxScore, &degradedCount); err != nil {
		return nil, fmt.Errorf("scan issuance summary: %w", err)
	}

	if count == 0 {
		return &domain.IssuanceSummary{Kind: kind}, nil
	}
	if math.IsNaN(mean) {
		mean = 0
	}

	return &domain.IssuanceSummary{
		Kind:          kind,
		Count:         int64(count),
		MeanScore:     mean,
		MinScore:      int(minScore),
		MaxScore:      int(maxScore),
		DegradedCount: int64(degradedCount),
	}, nil
}
