package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/storage"
)

func testIssuance(id, subject string, issuedAt int64) *domain.IssuanceRecord {
	return &domain.IssuanceRecord{
		ID:             id,
		Kind:           domain.KindPCS,
		Subject:        subject,
		Score:          742,
		Classification: domain.TierPlatinum,
		PolicyVersion:  "2025.1",
		InputHash:      "0x4fabc",
		ProofURI:       "ipfs://QmTest",
		Signer:         "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Signature:      "0xdeadbeef",
		IssuedAt:       issuedAt,
		Expiry:         issuedAt + 3600,
	}
}

func TestIssuanceStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIssuanceStore(pool)
	ctx := context.Background()

	rec := testIssuance("issuance-001", "0xWallet1", 1_756_100_000)

	err := store.Insert(ctx, rec)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "issuance-001")
	require.NoError(t, err)

	assert.Equal(t, rec.ID, retrieved.ID)
	assert.Equal(t, rec.Kind, retrieved.Kind)
	assert.Equal(t, rec.Subject, retrieved.Subject)
	assert.Equal(t, rec.Score, retrieved.Score)
	assert.Equal(t, rec.Classification, retrieved.Classification)
	assert.Equal(t, rec.PolicyVersion, retrieved.PolicyVersion)
	assert.Equal(t, rec.InputHash, retrieved.InputHash)
	assert.Equal(t, rec.ProofURI, retrieved.ProofURI)
	assert.Equal(t, rec.Signer, retrieved.Signer)
	assert.Equal(t, rec.Signature, retrieved.Signature)
	assert.Equal(t, rec.IssuedAt, retrieved.IssuedAt)
	assert.Equal(t, rec.Expiry, retrieved.Expiry)
}

func TestIssuanceStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIssuanceStore(pool)
	ctx := context.Background()

	rec := testIssuance("issuance-dup", "0xWallet1", 1_756_100_000)

	err := store.Insert(ctx, rec)
	require.NoError(t, err)

	err = store.Insert(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestIssuanceStore_InsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIssuanceStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.IssuanceRecord{}), storage.ErrInvalidInput)
}

func TestIssuanceStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIssuanceStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIssuanceStore_GetBySubject(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIssuanceStore(pool)
	ctx := context.Background()

	records := []*domain.IssuanceRecord{
		testIssuance("issuance-1", "0xShared", 1000),
		testIssuance("issuance-2", "0xShared", 3000),
		testIssuance("issuance-3", "0xOther", 2000),
		testIssuance("issuance-4", "0xShared", 2000),
	}
	for _, rec := range records {
		require.NoError(t, store.Insert(ctx, rec))
	}

	result, err := store.GetBySubject(ctx, "0xShared", 0)
	require.NoError(t, err)
	require.Len(t, result, 3)

	// Most recent first
	assert.Equal(t, "issuance-2", result[0].ID)
	assert.Equal(t, "issuance-4", result[1].ID)
	assert.Equal(t, "issuance-1", result[2].ID)

	capped, err := store.GetBySubject(ctx, "0xShared", 2)
	require.NoError(t, err)
	require.Len(t, capped, 2)
	assert.Equal(t, "issuance-2", capped[0].ID)
}

func TestIssuanceStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIssuanceStore(pool)
	ctx := context.Background()

	for i, ts := range []int64{1000, 2000, 3000, 4000} {
		rec := testIssuance(fmt.Sprintf("issuance-%d", i+1), "0xWallet1", ts)
		require.NoError(t, store.Insert(ctx, rec))
	}

	result, err := store.GetByTimeRange(ctx, 2000, 3000)
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, "issuance-2", result[0].ID)
	assert.Equal(t, "issuance-3", result[1].ID)
}

func TestIssuanceStore_GetLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIssuanceStore(pool)
	ctx := context.Background()

	older := testIssuance("issuance-old", "0xWallet1", 1000)
	newer := testIssuance("issuance-new", "0xWallet1", 5000)
	prs := testIssuance("issuance-prs", "0xWallet1", 9000)
	prs.Kind = domain.KindPRS
	prs.Classification = domain.BandLow

	for _, rec := range []*domain.IssuanceRecord{older, newer, prs} {
		require.NoError(t, store.Insert(ctx, rec))
	}

	got, err := store.GetLatest(ctx, "0xWallet1", domain.KindPCS)
	require.NoError(t, err)
	assert.Equal(t, "issuance-new", got.ID)

	got, err = store.GetLatest(ctx, "0xWallet1", domain.KindPRS)
	require.NoError(t, err)
	assert.Equal(t, "issuance-prs", got.ID)

	_, err = store.GetLatest(ctx, "0xNobody", domain.KindPCS)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
