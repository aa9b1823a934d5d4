package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mrreviews/mrr/external/mrrapi"
	"github.com/mrreviews/mrr/internal/config"
	"github.com/mrreviews/mrr/internal/platform/logging"
	"github.com/mrreviews/mrr/internal/platform/resilience"
	"github.com/mrreviews/mrr/internal/session"
)

const usageText = `mrr - Marvel Rivals Reviews client

Usage:
  mrr <command> [flags] [args]

Commands:
  search       search players by nickname prefix (add -interactive for live mode)
  player       show a player profile with their latest reviews
  reviews      list reviews for a player
  mine         list reviews written by the logged-in user
  review-add   submit a review
  link         link a player to the logged-in user
  leaderboard  rank players by average grade
  warm         prefetch players into the local cache
  login        exchange a Telegram login payload for a session
  logout       drop the stored session
  whoami       show the current session
  admin        moderation commands (list, list-user, delete-player, delete-review, rename)

Run "mrr <command> -h" for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	command := os.Args[1]
	args := os.Args[2:]

	env, err := newAppEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mrr: %v\n", err)
		os.Exit(1)
	}
	defer env.logger.Sync()

	ctx := context.Background()

	var runErr error
	switch command {
	case "search":
		runErr = env.runSearch(ctx, args)
	case "player":
		runErr = env.runPlayer(ctx, args)
	case "reviews":
		runErr = env.runReviews(ctx, args)
	case "mine":
		runErr = env.runMine(ctx, args)
	case "review-add":
		runErr = env.runReviewAdd(ctx, args)
	case "link":
		runErr = env.runLink(ctx, args)
	case "leaderboard":
		runErr = env.runLeaderboard(ctx, args)
	case "warm":
		runErr = env.runWarm(ctx, args)
	case "login":
		runErr = env.runLogin(ctx, args)
	case "logout":
		runErr = env.runLogout(ctx, args)
	case "whoami":
		runErr = env.runWhoami(ctx, args)
	case "admin":
		runErr = env.runAdmin(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "mrr: unknown command %q\n\n%s", command, usageText)
		os.Exit(2)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "mrr: %v\n", runErr)
		os.Exit(1)
	}
}

type appEnv struct {
	cfg      config.Config
	logger   *logging.Logger
	client   *mrrapi.Client
	sessions *session.Store
	state    session.State
}

func newAppEnv() (*appEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.NewConsole(cfg.LogLevel)
	logging.SetDefault(logger)

	sessions := session.NewStore(cfg.SessionFile, logger)
	state, err := sessions.Load()
	if err != nil {
		return nil, err
	}

	scheme := mrrapi.AuthSchemeHeader
	if cfg.AuthScheme == "bearer" {
		scheme = mrrapi.AuthSchemeBearer
	}

	client := mrrapi.NewClient(mrrapi.ClientConfig{
		BaseURL:    cfg.APIBaseURL,
		AuthScheme: scheme,
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.CircuitEnabled,
			FailureThreshold: cfg.CircuitFailureCount,
			OpenTimeout:      cfg.CircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.CircuitHalfOpenMaxReq,
		},
		TraceEnabled:    cfg.TraceEnabled,
		PlayerCacheTTL:  cfg.PlayerCacheTTL,
		ReviewCacheTTL:  cfg.ReviewCacheTTL,
		UserCacheTTL:    cfg.UserCacheTTL,
		CacheMaxEntries: cfg.CacheMaxEntries,
	})

	if state.LoggedIn() {
		client.SetSession(mrrapi.Session{
			TelegramID: state.User.TelegramID,
			Token:      state.Token,
		})
	}

	return &appEnv{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		sessions: sessions,
		state:    state,
	}, nil
}

// applySessionState mirrors an external login or logout into the running
// process, the cross-tab storage-event analogue.
func (e *appEnv) applySessionState(state session.State) {
	e.state = state
	if state.LoggedIn() {
		e.client.SetSession(mrrapi.Session{
			TelegramID: state.User.TelegramID,
			Token:      state.Token,
		})
		e.logger.Info("session updated externally", "telegram_id", state.User.TelegramID)
		return
	}
	e.client.ClearSession()
	e.logger.Info("session cleared externally")
}

func (e *appEnv) requireLogin() error {
	if !e.state.LoggedIn() {
		return fmt.Errorf("not logged in, run \"mrr login\" first")
	}
	return nil
}

func commandContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}
