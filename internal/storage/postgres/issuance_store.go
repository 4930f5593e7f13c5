package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/storage"
)

// IssuanceStore implements storage.IssuanceStore using PostgreSQL.
type IssuanceStore struct {
	pool *Pool
}

// NewIssuanceStore creates a new IssuanceStore.
func NewIssuanceStore(pool *Pool) *IssuanceStore {
	return &IssuanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IssuanceStore = (*IssuanceStore)(nil)

const issuanceColumns = `
	issuance_id, kind, subject, score, classification, policy_version,
	input_hash, proof_uri, signer, signature, issued_at, expiry
`

// Insert adds a new issuance. Returns ErrDuplicateKey if issuance_id exists.
func (s *IssuanceStore) Insert(ctx context.Context, rec *domain.IssuanceRecord) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO issuances (` + issuanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		string(rec.Kind),
		rec.Subject,
		rec.Score,
		rec.Classification,
		rec.PolicyVersion,
		rec.InputHash,
		rec.ProofURI,
		rec.Signer,
		rec.Signature,
		rec.IssuedAt,
		rec.Expiry,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert issuance: %w", err)
	}
	return nil
}

// GetByID retrieves an issuance by its ID. Returns ErrNotFound if not exists.
func (s *IssuanceStore) GetByID(ctx context.Context, id string) (*domain.IssuanceRecord, error) {
	query := `SELECT ` + issuanceColumns + ` FROM issuances WHERE issuance_id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	rec, err := scanIssuance(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get issuance by id: %w", err)
	}
	return rec, nil
}

// GetBySubject retrieves issuances for a subject, most recent first.
func (s *IssuanceStore) GetBySubject(ctx context.Context, subject string, limit int) ([]*domain.IssuanceRecord, error) {
	query := `
		SELECT ` + issuanceColumns + `
		FROM issuances
		WHERE subject = $1
		ORDER BY issued_at DESC, issuance_id DESC
	`
	args := []any{subject}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get issuances by subject: %w", err)
	}
	defer rows.Close()

	return scanIssuances(rows)
}

// GetByTimeRange retrieves issuances issued within [start, end] (inclusive).
func (s *IssuanceStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.IssuanceRecord, error) {
	query := `
		SELECT ` + issuanceColumns + `
		FROM issuances
		WHERE issued_at >= $1 AND issued_at <= $2
		ORDER BY issued_at ASC, issuance_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get issuances by time range: %w", err)
	}
	defer rows.Close()

	return scanIssuances(rows)
}

// GetLatest retrieves the most recent issuance of a kind for a subject.
func (s *IssuanceStore) GetLatest(ctx context.Context, subject string, kind domain.Kind) (*domain.IssuanceRecord, error) {
	query := `
		SELECT ` + issuanceColumns + `
		FROM issuances
		WHERE subject = $1 AND kind = $2
		ORDER BY issued_at DESC, issuance_id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, subject, string(kind))
	rec, err := scanIssuance(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest issuance: %w", err)
	}
	return rec, nil
}

// scanIssuance scans a single row into an IssuanceRecord.
func scanIssuance(row pgx.Row) (*domain.IssuanceRecord, error) {
	var rec domain.IssuanceRecord
	var kindStr string

	err := row.Scan(
		&rec.ID,
		&kindStr,
		&rec.Subject,
		&rec.Score,
		&rec.Classification,
		&rec.PolicyVersion,
		&rec.InputHash,
		&rec.ProofURI,
		&rec.Signer,
		&rec.Signature,
		&rec.IssuedAt,
		&rec.Expiry,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = domain.Kind(kindStr)
	return &rec, nil
}

// scanIssuances scans multiple rows into a slice of IssuanceRecord.
func scanIssuances(rows pgx.Rows) ([]*domain.IssuanceRecord, error) {
	var records []*domain.IssuanceRecord

	for rows.Next() {
		rec, err := scanIssuance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issuance row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issuance rows: %w", err)
	}

	return records, nil
}
