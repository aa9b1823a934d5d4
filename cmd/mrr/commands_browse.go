package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mrreviews/mrr/internal/usecase"
)

func (e *appEnv) runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	page := fs.Int("page", 0, "result page")
	interactive := fs.Bool("interactive", false, "read queries from stdin, search as you type")
	if err := fs.Parse(args); err != nil {
		return err
	}

	browse, err := usecase.NewBrowseService(e.client, usecase.BrowseConfig{
		Limit:          e.cfg.SearchLimit,
		DebounceDelay:  e.cfg.DebounceDelay,
		RequestTimeout: e.cfg.HTTPTimeout,
	}, func(result usecase.SearchResult) {
		if result.Err != nil {
			fmt.Fprintf(os.Stderr, "search %q failed: %v\n", result.Query, result.Err)
			return
		}
		fmt.Printf("-- %q --\n", result.Query)
		printPlayerPage(result.Players)
	}, e.logger)
	if err != nil {
		return err
	}
	defer browse.Close()

	if *interactive {
		return e.interactiveSearch(ctx, browse)
	}

	query := strings.Join(fs.Args(), " ")
	ctx, cancel := commandContext(ctx, e.cfg.HTTPTimeout)
	defer cancel()

	// The search endpoint has no paging; only the recent listing does.
	if strings.TrimSpace(query) == "" {
		result, err := e.client.ListRecentPlayers(ctx, *page, e.cfg.SearchLimit)
		if err != nil {
			return err
		}
		printPlayerPage(result)
		return nil
	}

	result, err := browse.Search(ctx, query)
	if err != nil {
		return err
	}
	printPlayerPage(result)
	return nil
}

// interactiveSearch feeds each stdin line through the debouncer, so holding
// down a key or pasting does not flood the backend. It also watches the
// session file so a login or logout done elsewhere takes effect mid-session,
// like a storage event reaching another browser tab.
func (e *appEnv) interactiveSearch(ctx context.Context, browse *usecase.BrowseService) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "type to search, empty line lists recent players, ctrl-d quits")

	sessionChanges := e.sessions.Watch(ctx, e.cfg.SessionWatchInterval)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-sessionChanges:
			if !ok {
				sessionChanges = nil
				continue
			}
			e.applySessionState(state)
		case line, ok := <-lines:
			if !ok {
				// Let a pending debounced search land before quitting.
				waitCtx, cancel := context.WithTimeout(ctx, e.cfg.DebounceDelay+e.cfg.HTTPTimeout)
				_ = browse.Wait(waitCtx)
				cancel()
				return nil
			}
			browse.OnQueryChange(line)
		}
	}
}

func (e *appEnv) runPlayer(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("player", flag.ContinueOnError)
	reviewLimit := fs.Int("reviews", 5, "how many recent reviews to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mrr player <nick>")
	}

	browse, err := usecase.NewBrowseService(e.client, usecase.BrowseConfig{
		Limit:          e.cfg.SearchLimit,
		DebounceDelay:  e.cfg.DebounceDelay,
		RequestTimeout: e.cfg.HTTPTimeout,
	}, func(usecase.SearchResult) {}, e.logger)
	if err != nil {
		return err
	}
	defer browse.Close()

	ctx, cancel := commandContext(ctx, e.cfg.HTTPTimeout)
	defer cancel()

	profile, err := browse.Profile(ctx, fs.Arg(0), *reviewLimit)
	if err != nil {
		return err
	}

	printPlayer(profile.Player)
	fmt.Println()
	printReviewPage(profile.Reviews)
	return nil
}

func (e *appEnv) runReviews(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reviews", flag.ContinueOnError)
	page := fs.Int("page", 0, "result page")
	limit := fs.Int("limit", 10, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mrr reviews <nick>")
	}

	ctx, cancel := commandContext(ctx, e.cfg.HTTPTimeout)
	defer cancel()

	result, err := e.client.ReviewsByPlayer(ctx, fs.Arg(0), *page, *limit)
	if err != nil {
		return err
	}
	printReviewPage(result)
	return nil
}

func (e *appEnv) runMine(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mine", flag.ContinueOnError)
	page := fs.Int("page", 0, "result page")
	limit := fs.Int("limit", 10, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.requireLogin(); err != nil {
		return err
	}

	ctx, cancel := commandContext(ctx, e.cfg.HTTPTimeout)
	defer cancel()

	result, err := e.client.ReviewsByUser(ctx, *page, *limit)
	if err != nil {
		return err
	}
	printReviewPage(result)
	return nil
}

func (e *appEnv) runLeaderboard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("leaderboard", flag.ContinueOnError)
	size := fs.Int("n", 10, "how many players to show")
	minReviews := fs.Int("min-reviews", 1, "minimum review count to qualify")
	if err := fs.Parse(args); err != nil {
		return err
	}

	board, err := usecase.NewLeaderboardService(e.client, e.logger)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(ctx, 2*time.Minute)
	defer cancel()

	entries, err := board.Top(ctx, *size, *minReviews)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		fmt.Printf("%3d. %-24s grade %.2f  rank %.1f  reviews %d\n",
			entry.Position,
			entry.Player.NickName,
			entry.Player.AvgGrade,
			entry.Player.AvgRank,
			entry.Player.ReviewCount,
		)
	}
	return nil
}

func (e *appEnv) runWarm(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("warm", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: mrr warm <nick> [nick...]")
	}

	prefetch, err := usecase.NewPrefetchService(e.client, e.logger)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(ctx, 2*time.Minute)
	defer cancel()

	result, err := prefetch.Warm(ctx, fs.Args())
	if err != nil {
		return err
	}
	fmt.Printf("warmed %d/%d players (%d missing, %d failed) in %dms\n",
		result.Warmed, result.Requested, result.Missing, result.Failed, result.DurationMs)
	return nil
}
