package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrreviews/mrr/internal/domain/user"
	"github.com/mrreviews/mrr/internal/platform/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.json")
	return NewStore(path, logging.NewNop())
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	want := State{
		User: user.User{
			TelegramID: 42,
			FirstName:  "Peter",
			Username:   "spidey",
			PlayerID:   7,
		},
		Token: "relay-token",
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, want)
	}
	if !got.LoggedIn() {
		t.Fatalf("expected loaded state to be logged in")
	}
}

func TestStore_MissingFileIsLoggedOut(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	state, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.LoggedIn() {
		t.Fatalf("expected zero state for missing file")
	}
}

func TestStore_CorruptFileDiscarded(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store := NewStore(path, logging.NewNop())
	state, err := store.Load()
	if err != nil {
		t.Fatalf("expected corrupt file to load as logged out, got %v", err)
	}
	if state.LoggedIn() {
		t.Fatalf("expected zero state for corrupt file")
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.Save(State{User: user.User{TelegramID: 1, FirstName: "a"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.LoggedIn() {
		t.Fatalf("expected cleared session")
	}
}

func TestStore_WatchSeesExternalChange(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.Save(State{User: user.User{TelegramID: 1, FirstName: "a"}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	updates := store.Watch(ctx, 20*time.Millisecond)

	// Filesystem mtime can be coarse; make sure the rewrite lands in a
	// different tick.
	time.Sleep(50 * time.Millisecond)
	if err := store.Save(State{User: user.User{TelegramID: 2, FirstName: "b"}}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case state := <-updates:
		if state.User.TelegramID != 2 {
			t.Fatalf("expected updated state, got %+v", state)
		}
	case <-ctx.Done():
		t.Fatalf("watch never delivered the update")
	}

	cancel()
	for range updates {
	}
}
