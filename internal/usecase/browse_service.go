package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mrreviews/mrr/external/mrrapi"
	"github.com/mrreviews/mrr/internal/domain/player"
	"github.com/mrreviews/mrr/internal/domain/review"
	"github.com/mrreviews/mrr/internal/platform/debounce"
	"github.com/mrreviews/mrr/internal/platform/logging"
)

// PlayerDirectory is the slice of the API client the browse flows need.
type PlayerDirectory interface {
	SearchPlayers(ctx context.Context, query string, limit int) (mrrapi.Page[player.Player], error)
	GetPlayerByNick(ctx context.Context, nick string) (*player.Player, error)
	ReviewsByPlayer(ctx context.Context, nick string, page, limit int) (mrrapi.Page[review.Review], error)
}

// SearchResult is delivered for every search that ran to completion while
// still being the latest query.
type SearchResult struct {
	Query   string
	Players mrrapi.Page[player.Player]
	Err     error
}

// PlayerProfile bundles a player with their first page of reviews.
type PlayerProfile struct {
	Player  player.Player
	Reviews mrrapi.Page[review.Review]
}

// BrowseService drives the search-as-you-type flow: keystrokes go through a
// debouncer so only the settled query hits the backend, and a result for a
// superseded query is dropped instead of delivered out of order.
type BrowseService struct {
	directory PlayerDirectory
	logger    *logging.Logger
	limit     int
	timeout   time.Duration
	onResult  func(SearchResult)
	debouncer *debounce.Debouncer[string]
}

type BrowseConfig struct {
	// Limit is the page size for search results.
	Limit int
	// DebounceDelay is how long a query must stay unchanged before it fires.
	DebounceDelay time.Duration
	// RequestTimeout bounds each search request.
	RequestTimeout time.Duration
}

func NewBrowseService(directory PlayerDirectory, cfg BrowseConfig, onResult func(SearchResult), logger *logging.Logger) (*BrowseService, error) {
	if directory == nil {
		return nil, fmt.Errorf("%w: player directory is required", ErrInvalidInput)
	}
	if onResult == nil {
		return nil, fmt.Errorf("%w: result callback is required", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 12
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	s := &BrowseService{
		directory: directory,
		logger:    logger,
		limit:     cfg.Limit,
		timeout:   cfg.RequestTimeout,
		onResult:  onResult,
	}
	s.debouncer = debounce.New(cfg.DebounceDelay, s.runSearch)
	return s, nil
}

// OnQueryChange records a keystroke. Rapid successive calls collapse into a
// single backend search for the final value.
func (s *BrowseService) OnQueryChange(query string) {
	s.debouncer.Trigger(strings.TrimSpace(query))
}

// Close stops any pending debounced search.
func (s *BrowseService) Close() {
	s.debouncer.Stop()
}

// Wait blocks until no debounced search is scheduled or in flight, or ctx is
// done. It lets callers drain the pipeline before shutting down.
func (s *BrowseService) Wait(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for s.debouncer.Pending() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Search runs one search immediately, bypassing the debouncer. An empty query
// falls back to the recent-players listing, matching SearchPlayers.
func (s *BrowseService) Search(ctx context.Context, query string) (mrrapi.Page[player.Player], error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.BrowseService.Search")
	defer span.End()

	return s.directory.SearchPlayers(ctx, strings.TrimSpace(query), s.limit)
}

// Profile loads a player together with their first page of reviews.
func (s *BrowseService) Profile(ctx context.Context, nick string, reviewLimit int) (PlayerProfile, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.BrowseService.Profile")
	defer span.End()

	nick = strings.TrimSpace(nick)
	if nick == "" {
		return PlayerProfile{}, fmt.Errorf("%w: nickname is required", ErrInvalidInput)
	}
	if reviewLimit <= 0 {
		reviewLimit = s.limit
	}

	p, err := s.directory.GetPlayerByNick(ctx, nick)
	if err != nil {
		return PlayerProfile{}, err
	}
	if p == nil {
		return PlayerProfile{}, fmt.Errorf("%w: player %s", ErrNotFound, nick)
	}

	reviews, err := s.directory.ReviewsByPlayer(ctx, p.NickName, 0, reviewLimit)
	if err != nil {
		return PlayerProfile{}, err
	}

	return PlayerProfile{Player: *p, Reviews: reviews}, nil
}

func (s *BrowseService) runSearch(query string, stale func() bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	page, err := s.directory.SearchPlayers(ctx, query, s.limit)
	if stale() {
		// A newer keystroke arrived while this request was in flight.
		s.logger.Debug("dropping stale search result", "query", query)
		return
	}
	if err != nil {
		s.onResult(SearchResult{Query: query, Err: err})
		return
	}
	s.onResult(SearchResult{Query: query, Players: page})
}
