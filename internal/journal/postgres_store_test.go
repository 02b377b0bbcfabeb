package journal

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestPostgresStoreLifecycle(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	key := "test-key-" + time.Now().Format("150405.000000")
	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := Record{
		Account:   "0x0000000000000000000000000000000000000001",
		Amount:    "1000000",
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Save(ctx, key, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec.Status = StatusConfirmed
	rec.DepositTx = "0xdead"
	rec.BlockNumber = 77
	if err := store.Save(ctx, key, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Status != StatusConfirmed || got.BlockNumber != 77 || got.Amount != "1000000" {
		t.Fatalf("unexpected record: %#v", got)
	}

	missing, err := store.Get(ctx, key+"-missing")
	if err != nil || missing != nil {
		t.Fatalf("expected no record, got %#v, %v", missing, err)
	}
}
