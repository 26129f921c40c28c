package tierq_test

import (
	"context"
	"testing"

	"github.com/fieldmotion/tierq"
)

// runUpdateStoreTests exercises the UpdateStore contract against any
// implementation. Each backend test file calls it with its own factory.
func runUpdateStoreTests(t *testing.T, factory func(t *testing.T) tierq.UpdateStore) {
	t.Run("MarkAndQuery", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		key := tierq.RegionKey{Region: "berlin", Depth: 2}

		flagged, err := store.NeedsUpdate(ctx, key)
		if err != nil {
			t.Fatalf("NeedsUpdate failed: %v", err)
		}
		if flagged {
			t.Fatal("expected a fresh store to have no flags")
		}

		if err := store.MarkNeedsUpdate(ctx, key); err != nil {
			t.Fatalf("MarkNeedsUpdate failed: %v", err)
		}
		flagged, err = store.NeedsUpdate(ctx, key)
		if err != nil {
			t.Fatalf("NeedsUpdate failed: %v", err)
		}
		if !flagged {
			t.Fatal("expected the key to be flagged after marking")
		}

		if err := store.ClearNeedsUpdate(ctx, key); err != nil {
			t.Fatalf("ClearNeedsUpdate failed: %v", err)
		}
		flagged, err = store.NeedsUpdate(ctx, key)
		if err != nil {
			t.Fatalf("NeedsUpdate failed: %v", err)
		}
		if flagged {
			t.Fatal("expected the flag to be cleared")
		}
	})

	t.Run("MarkIsIdempotent", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		key := tierq.RegionKey{Region: "hamburg", Depth: 1}

		if err := store.MarkNeedsUpdate(ctx, key); err != nil {
			t.Fatalf("MarkNeedsUpdate failed: %v", err)
		}
		if err := store.MarkNeedsUpdate(ctx, key); err != nil {
			t.Fatalf("expected marking twice to succeed, got: %v", err)
		}

		keys, err := store.ListNeedsUpdate(ctx)
		if err != nil {
			t.Fatalf("ListNeedsUpdate failed: %v", err)
		}
		if len(keys) != 1 {
			t.Fatalf("expected 1 flagged key, got %d", len(keys))
		}
	})

	t.Run("ClearAbsentIsNoop", func(t *testing.T) {
		store := factory(t)
		key := tierq.RegionKey{Region: "munich", Depth: 0}

		if err := store.ClearNeedsUpdate(context.Background(), key); err != nil {
			t.Fatalf("expected clearing an absent flag to succeed, got: %v", err)
		}
	})

	t.Run("ListOrdersFinestDepthFirst", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()

		for _, key := range []tierq.RegionKey{
			{Region: "munich", Depth: 0},
			{Region: "hamburg", Depth: 2},
			{Region: "berlin", Depth: 1},
			{Region: "berlin", Depth: 2},
		} {
			if err := store.MarkNeedsUpdate(ctx, key); err != nil {
				t.Fatalf("MarkNeedsUpdate failed: %v", err)
			}
		}

		keys, err := store.ListNeedsUpdate(ctx)
		if err != nil {
			t.Fatalf("ListNeedsUpdate failed: %v", err)
		}
		want := []tierq.RegionKey{
			{Region: "berlin", Depth: 2},
			{Region: "hamburg", Depth: 2},
			{Region: "berlin", Depth: 1},
			{Region: "munich", Depth: 0},
		}
		if len(keys) != len(want) {
			t.Fatalf("expected %d keys, got %d", len(want), len(keys))
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Fatalf("expected keys[%d] = %s, got %s", i, want[i], keys[i])
			}
		}
	})

	t.Run("ValidatesKey", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()

		if err := store.MarkNeedsUpdate(ctx, tierq.RegionKey{Region: "", Depth: 0}); err == nil {
			t.Fatal("expected an error for an empty region")
		}
		if err := store.MarkNeedsUpdate(ctx, tierq.RegionKey{Region: "berlin", Depth: 3}); err == nil {
			t.Fatal("expected an error for a depth beyond the finest level")
		}
		if _, err := store.NeedsUpdate(ctx, tierq.RegionKey{Region: "berlin", Depth: -1}); err == nil {
			t.Fatal("expected an error for a negative depth")
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		store := factory(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		key := tierq.RegionKey{Region: "berlin", Depth: 2}
		if err := store.MarkNeedsUpdate(ctx, key); err == nil {
			t.Fatal("expected MarkNeedsUpdate to fail with a canceled context")
		}
		if _, err := store.ListNeedsUpdate(ctx); err == nil {
			t.Fatal("expected ListNeedsUpdate to fail with a canceled context")
		}
	})
}

func TestInMemoryUpdateStore(t *testing.T) {
	runUpdateStoreTests(t, func(t *testing.T) tierq.UpdateStore {
		store := tierq.NewInMemoryUpdateStore()
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestInMemoryUpdateStoreClosed(t *testing.T) {
	store := tierq.NewInMemoryUpdateStore()
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("expected closing twice to succeed, got: %v", err)
	}

	ctx := context.Background()
	key := tierq.RegionKey{Region: "berlin", Depth: 2}
	if err := store.MarkNeedsUpdate(ctx, key); err == nil {
		t.Fatal("expected MarkNeedsUpdate to fail on a closed store")
	}
	if _, err := store.NeedsUpdate(ctx, key); err == nil {
		t.Fatal("expected NeedsUpdate to fail on a closed store")
	}
	if _, err := store.ListNeedsUpdate(ctx); err == nil {
		t.Fatal("expected ListNeedsUpdate to fail on a closed store")
	}
}
