package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

func TestUserStore_InsertBulkAndGet(t *testing.T) {
	store := NewUserStore()
	ctx := context.Background()

	users := []*domain.User{
		{Address: "0xalice", TotalVolume: decimal.NewFromInt(1000), Classification: domain.UserWhale},
		{Address: "0xbob", Classification: domain.UserRegular},
	}
	if err := store.InsertBulk(ctx, users); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "0xalice")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.Classification != domain.UserWhale {
		t.Errorf("Classification mismatch: got %q", got.Classification)
	}
	if !got.TotalVolume.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("TotalVolume mismatch: got %s", got.TotalVolume)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}
}

func TestUserStore_DuplicateAddress(t *testing.T) {
	store := NewUserStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.User{{Address: "0xalice"}}); err != nil {
		t.Fatalf("First InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.User{{Address: "0xalice"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}
