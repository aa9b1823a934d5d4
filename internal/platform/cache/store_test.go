package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStore_GetSetRoundtrip(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute, 0)
	ctx := context.Background()

	if _, ok := store.Get(ctx, "missing"); ok {
		t.Fatalf("expected miss for absent key")
	}

	store.Set(ctx, "player:spidey", 42)
	got, ok := store.Get(ctx, "player:spidey")
	if !ok {
		t.Fatalf("expected hit after set")
	}
	if got.(int) != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestStore_ExpiredEntryIsMiss(t *testing.T) {
	t.Parallel()

	store := NewStore(10*time.Millisecond, 0)
	ctx := context.Background()

	store.Set(ctx, "key", "value")
	time.Sleep(30 * time.Millisecond)

	if _, ok := store.Get(ctx, "key"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if store.Len() != 0 {
		t.Fatalf("expected lazy delete to drop entry, len=%d", store.Len())
	}
}

func TestStore_BoundedEviction(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		store.Set(ctx, fmt.Sprintf("key-%d", i), i)
	}

	if store.Len() > 3 {
		t.Fatalf("expected at most 3 entries, got %d", store.Len())
	}
}

func TestStore_OverwriteDoesNotEvict(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute, 2)
	ctx := context.Background()

	store.Set(ctx, "a", 1)
	store.Set(ctx, "b", 2)
	store.Set(ctx, "a", 3)

	if store.Len() != 2 {
		t.Fatalf("expected 2 entries after overwrite, got %d", store.Len())
	}
	got, ok := store.Get(ctx, "b")
	if !ok || got.(int) != 2 {
		t.Fatalf("expected b to survive overwrite of a")
	}
}

func TestStore_DeletePrefix(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute, 0)
	ctx := context.Background()

	store.Set(ctx, "reviews:player:a", 1)
	store.Set(ctx, "reviews:player:b", 2)
	store.Set(ctx, "player:a", 3)

	store.DeletePrefix(ctx, "reviews:")

	if _, ok := store.Get(ctx, "reviews:player:a"); ok {
		t.Fatalf("expected prefixed entry to be deleted")
	}
	if _, ok := store.Get(ctx, "player:a"); !ok {
		t.Fatalf("expected unrelated entry to survive")
	}
}

func TestStore_GetOrLoadDeduplicatesLoads(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute, 0)
	ctx := context.Background()

	var loads atomic.Int32
	release := make(chan struct{})

	loader := func(context.Context) (any, error) {
		loads.Add(1)
		<-release
		return "loaded", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := store.GetOrLoad(ctx, "shared", loader)
			if err != nil {
				t.Errorf("load: %v", err)
				return
			}
			results[i] = value
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := loads.Load(); got != 1 {
		t.Fatalf("expected a single load, got %d", got)
	}
	for i, value := range results {
		if value != "loaded" {
			t.Fatalf("caller %d got %v", i, value)
		}
	}

	// Subsequent calls are cache hits, no loader run.
	if _, err := store.GetOrLoad(ctx, "shared", func(context.Context) (any, error) {
		t.Fatal("loader should not run on hit")
		return nil, nil
	}); err != nil {
		t.Fatalf("get after load: %v", err)
	}
}

func TestStore_GetOrLoadErrorNotCached(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute, 0)
	ctx := context.Background()

	wantErr := fmt.Errorf("backend down")
	if _, err := store.GetOrLoad(ctx, "key", func(context.Context) (any, error) {
		return nil, wantErr
	}); err == nil {
		t.Fatalf("expected load error")
	}

	if store.Len() != 0 {
		t.Fatalf("expected failed load to leave cache empty")
	}
}
