package memory

import (
	"context"
	"errors"
	"testing"

	"defi-analytics/internal/domain"
	"defi-analytics/internal/storage"
)

func TestContractStore_InsertBulkAndGet(t *testing.T) {
	store := NewContractStore()
	ctx := context.Background()

	contracts := []*domain.Contract{
		{Address: "0xabc", Chain: "ethereum", ProtocolID: 1, Active: true},
		{Address: "0xabc", Chain: "polygon", ProtocolID: 1, Active: true},
	}

	if err := store.InsertBulk(ctx, contracts); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByAddressChain(ctx, "0xabc", "polygon")
	if err != nil {
		t.Fatalf("GetByAddressChain failed: %v", err)
	}
	if got.Chain != "polygon" {
		t.Errorf("Chain mismatch: got %q", got.Chain)
	}
}

func TestContractStore_GetByAddress_Oldest(t *testing.T) {
	store := NewContractStore()
	ctx := context.Background()

	contracts := []*domain.Contract{
		{Address: "0xabc", Chain: "ethereum", ProtocolID: 1},
		{Address: "0xabc", Chain: "polygon", ProtocolID: 1},
	}
	if err := store.InsertBulk(ctx, contracts); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	// Oldest row wins: the first inserted contract has the lowest id
	if got.Chain != "ethereum" {
		t.Errorf("Expected oldest contract (ethereum), got %q", got.Chain)
	}
}

func TestContractStore_InsertBulk_DuplicateAtomicity(t *testing.T) {
	store := NewContractStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.Contract{
		{Address: "0x1", Chain: "ethereum", ProtocolID: 1},
	}); err != nil {
		t.Fatalf("First InsertBulk failed: %v", err)
	}

	// Second batch holds one new and one duplicate row; the whole batch
	// must be rejected, leaving the new row unwritten.
	err := store.InsertBulk(ctx, []*domain.Contract{
		{Address: "0x2", Chain: "ethereum", ProtocolID: 1},
		{Address: "0x1", Chain: "ethereum", ProtocolID: 1},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1 after rejected batch, got %d", count)
	}

	if _, err := store.GetByAddressChain(ctx, "0x2", "ethereum"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected 0x2 unwritten, got err=%v", err)
	}
}

func TestContractStore_InsertBulk_IntraBatchDuplicate(t *testing.T) {
	store := NewContractStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.Contract{
		{Address: "0x1", Chain: "ethereum", ProtocolID: 1},
		{Address: "0x1", Chain: "ethereum", ProtocolID: 1},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
}
