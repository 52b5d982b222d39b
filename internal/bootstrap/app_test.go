package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"pcos-backend/internal/shared/storage/kv"
)

func TestCloseStopsMemoryStore(t *testing.T) {
	store := kv.NewMemoryStore()
	app := &App{KV: store}

	app.Close()

	// The sweep loop is gone but the store still answers reads.
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Fatalf("get after close: %v", err)
	}
	if err := store.SetTTL(context.Background(), "k", "v", time.Minute); err != nil {
		t.Fatalf("set after close: %v", err)
	}

	// Close is idempotent, both on the app and the store.
	app.Close()
	store.Close()
}
