package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/storage"
)

func testRecord(id, subject string, issuedAt int64) *domain.IssuanceRecord {
	return &domain.IssuanceRecord{
		ID:             id,
		Kind:           domain.KindPCS,
		Subject:        subject,
		Score:          742,
		Classification: domain.TierPlatinum,
		PolicyVersion:  "2025.1",
		InputHash:      "0xabc",
		Signer:         "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Signature:      "0xsig",
		IssuedAt:       issuedAt,
		Expiry:         issuedAt + 3600,
	}
}

func TestIssuanceStore_InsertAndGet(t *testing.T) {
	store := NewIssuanceStore()
	ctx := context.Background()

	rec := testRecord("iss-1", "0xwallet", 1000)

	err := store.Insert(ctx, rec)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "iss-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.Subject != rec.Subject {
		t.Errorf("Subject mismatch: got %s, want %s", got.Subject, rec.Subject)
	}
	if got.Score != rec.Score {
		t.Errorf("Score mismatch: got %d, want %d", got.Score, rec.Score)
	}
	if got.Kind != domain.KindPCS {
		t.Errorf("Kind mismatch: got %s", got.Kind)
	}
}

func TestIssuanceStore_DuplicateKey(t *testing.T) {
	store := NewIssuanceStore()
	ctx := context.Background()

	rec := testRecord("iss-1", "0xwallet", 1000)

	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, rec)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestIssuanceStore_NotFound(t *testing.T) {
	store := NewIssuanceStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestIssuanceStore_InvalidInput(t *testing.T) {
	store := NewIssuanceStore()
	ctx := context.Background()

	err := store.Insert(ctx, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	err = store.Insert(ctx, &domain.IssuanceRecord{ID: ""})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty ID, got %v", err)
	}
}

func TestIssuanceStore_GetBySubject(t *testing.T) {
	store := NewIssuanceStore()
	ctx := context.Background()

	records := []*domain.IssuanceRecord{
		testRecord("iss-1", "0xwallet", 1000),
		testRecord("iss-2", "0xwallet", 3000),
		testRecord("iss-3", "0xother", 2000),
		testRecord("iss-4", "0xwallet", 2000),
	}
	for _, rec := range records {
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetBySubject(ctx, "0xwallet", 0)
	if err != nil {
		t.Fatalf("GetBySubject failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(result))
	}

	// Most recent first
	wantOrder := []string{"iss-2", "iss-4", "iss-1"}
	for i, want := range wantOrder {
		if result[i].ID != want {
			t.Errorf("result[%d].ID = %s, want %s", i, result[i].ID, want)
		}
	}

	// Limit caps the result
	capped, err := store.GetBySubject(ctx, "0xwallet", 2)
	if err != nil {
		t.Fatalf("GetBySubject with limit failed: %v", err)
	}
	if len(capped) != 2 || capped[0].ID != "iss-2" {
		t.Errorf("Expected top 2 newest, got %d starting with %s", len(capped), capped[0].ID)
	}
}

func TestIssuanceStore_GetByTimeRange(t *testing.T) {
	store := NewIssuanceStore()
	ctx := context.Background()

	for i, ts := range []int64{1000, 2000, 3000, 4000} {
		rec := testRecord(fmt.Sprintf("iss-%d", i+1), "0xwallet", ts)
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByTimeRange(ctx, 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(result))
	}
	if result[0].ID != "iss-2" || result[1].ID != "iss-3" {
		t.Errorf("Wrong order: got %s, %s", result[0].ID, result[1].ID)
	}
}

func TestIssuanceStore_GetLatest(t *testing.T) {
	store := NewIssuanceStore()
	ctx := context.Background()

	first := testRecord("iss-1", "0xwallet", 1000)
	second := testRecord("iss-2", "0xwallet", 5000)
	prs := testRecord("iss-3", "0xwallet", 9000)
	prs.Kind = domain.KindPRS

	for _, rec := range []*domain.IssuanceRecord{first, second, prs} {
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetLatest(ctx, "0xwallet", domain.KindPCS)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if got.ID != "iss-2" {
		t.Errorf("Expected iss-2 (newest PCS), got %s", got.ID)
	}

	_, err = store.GetLatest(ctx, "0xnobody", domain.KindPCS)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestIssuanceStore_ReturnsCopies(t *testing.T) {
	store := NewIssuanceStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testRecord("iss-1", "0xwallet", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "iss-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	got.Score = -1

	again, err := store.GetByID(ctx, "iss-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.Score != 742 {
		t.Errorf("Store leaked a mutable reference: score = %d", again.Score)
	}
}

func TestIssuanceStore_ConcurrentInserts(t *testing.T) {
	store := NewIssuanceStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rec := testRecord(fmt.Sprintf("iss-%d", id), "0xwallet", int64(id*1000))
			if err := store.Insert(ctx, rec); err != nil {
				t.Errorf("Insert failed: %v", err)
			}
		}(i)
	}

	wg.Wait()

	all, err := store.GetBySubject(ctx, "0xwallet", 0)
	if err != nil {
		t.Fatalf("GetBySubject failed: %v", err)
	}
	if len(all) != numGoroutines {
		t.Errorf("Expected %d records, got %d", numGoroutines, len(all))
	}
}
