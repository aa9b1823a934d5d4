package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrreviews/mrr/external/mrrapi"
	"github.com/mrreviews/mrr/internal/config"
	"github.com/mrreviews/mrr/internal/domain/user"
	"github.com/mrreviews/mrr/internal/platform/logging"
	"github.com/mrreviews/mrr/internal/session"
)

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()

	logger := logging.NewNop()
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"), logger)

	return &appEnv{
		cfg: config.Config{
			SessionWatchInterval: 20 * time.Millisecond,
		},
		logger:   logger,
		client:   mrrapi.NewClient(mrrapi.ClientConfig{BaseURL: "http://localhost:1", Logger: logger}),
		sessions: store,
	}
}

func TestApplySessionState_TogglesClientIdentity(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	_, ok := e.client.Session()
	require.False(t, ok)

	e.applySessionState(session.State{
		User:  user.User{TelegramID: 42, Username: "spidey"},
		Token: "relay-token",
	})
	require.True(t, e.state.LoggedIn())

	got, ok := e.client.Session()
	require.True(t, ok)
	require.Equal(t, int64(42), got.TelegramID)
	require.Equal(t, "relay-token", got.Token)

	e.applySessionState(session.State{})
	require.False(t, e.state.LoggedIn())
	_, ok = e.client.Session()
	require.False(t, ok)
}

func TestSessionWatch_ExternalLoginReachesClient(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := e.sessions.Watch(ctx, e.cfg.SessionWatchInterval)

	// Another process logs in.
	require.NoError(t, e.sessions.Save(session.State{
		User:  user.User{TelegramID: 7},
		Token: "tok",
	}))

	select {
	case state := <-changes:
		e.applySessionState(state)
	case <-time.After(2 * time.Second):
		t.Fatal("session change not observed")
	}

	got, ok := e.client.Session()
	require.True(t, ok)
	require.Equal(t, int64(7), got.TelegramID)
}
