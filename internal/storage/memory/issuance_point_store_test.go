package memory

import (
	"context"
	"errors"
	"testing"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/storage"
)

func testPoints() []*domain.IssuancePoint {
	return []*domain.IssuancePoint{
		{Kind: domain.KindPCS, Score: 300, Classification: domain.TierSilver, IssuedAtMs: 1000},
		{Kind: domain.KindPCS, Score: 900, Classification: domain.TierDiamond, IssuedAtMs: 2000},
		{Kind: domain.KindPCS, Score: 600, Classification: domain.TierGold, Degraded: true, IssuedAtMs: 3000},
		{Kind: domain.KindPRS, Score: 82, Classification: domain.BandCritical, IssuedAtMs: 2500},
	}
}

func TestIssuancePointStore_InsertAndQuery(t *testing.T) {
	store := NewIssuancePointStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, testPoints()); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, domain.KindPCS, 1000, 2500)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 PCS points, got %d", len(result))
	}
	if result[0].IssuedAtMs != 1000 || result[1].IssuedAtMs != 2000 {
		t.Errorf("Wrong order: %d, %d", result[0].IssuedAtMs, result[1].IssuedAtMs)
	}
}

func TestIssuancePointStore_InsertBulkEmpty(t *testing.T) {
	store := NewIssuancePointStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, nil); err != nil {
		t.Errorf("Empty insert should be a no-op, got %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.IssuancePoint{nil})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil point, got %v", err)
	}
}

func TestIssuancePointStore_Summary(t *testing.T) {
	store := NewIssuancePointStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, testPoints()); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	summary, err := store.Summary(ctx, domain.KindPCS, 0, 10_000)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	if summary.Count != 3 {
		t.Errorf("Count = %d, want 3", summary.Count)
	}
	if summary.MinScore != 300 || summary.MaxScore != 900 {
		t.Errorf("Min/Max = %d/%d, want 300/900", summary.MinScore, summary.MaxScore)
	}
	if summary.MeanScore != 600 {
		t.Errorf("MeanScore = %f, want 600", summary.MeanScore)
	}
	if summary.DegradedCount != 1 {
		t.Errorf("DegradedCount = %d, want 1", summary.DegradedCount)
	}
}

func TestIssuancePointStore_SummaryEmptyRange(t *testing.T) {
	store := NewIssuancePointStore()
	ctx := context.Background()

	summary, err := store.Summary(ctx, domain.KindPRS, 0, 10_000)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.Count != 0 || summary.MeanScore != 0 {
		t.Errorf("Empty range should yield zero summary, got %+v", summary)
	}
	if summary.Kind != domain.KindPRS {
		t.Errorf("Kind = %s, want PRS", summary.Kind)
	}
}
