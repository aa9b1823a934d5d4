package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/mrreviews/mrr/external/mrrapi"
	"github.com/mrreviews/mrr/internal/domain/player"
	"github.com/mrreviews/mrr/internal/platform/logging"
)

const (
	defaultLeaderboardPageSize = 50
	defaultLeaderboardWorkers  = 4
	maxLeaderboardPages        = 40
)

// PlayerLister pages through the full player directory.
type PlayerLister interface {
	ListRecentPlayers(ctx context.Context, page, limit int) (mrrapi.Page[player.Player], error)
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Position int
	Player   player.Player
}

// LeaderboardService aggregates the whole directory into a grade ranking. The
// backend has no ranking endpoint, so pages are fetched concurrently and
// sorted client side.
type LeaderboardService struct {
	lister   PlayerLister
	logger   *logging.Logger
	pageSize int
	workers  int
}

func NewLeaderboardService(lister PlayerLister, logger *logging.Logger) (*LeaderboardService, error) {
	if lister == nil {
		return nil, fmt.Errorf("%w: player lister is required", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LeaderboardService{
		lister:   lister,
		logger:   logger,
		pageSize: defaultLeaderboardPageSize,
		workers:  defaultLeaderboardWorkers,
	}, nil
}

// Top returns the n best-rated players with at least minReviews reviews.
// Ordering is average grade, then review count, then nickname.
func (s *LeaderboardService) Top(ctx context.Context, n, minReviews int) ([]LeaderboardEntry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.Top")
	defer span.End()

	if n <= 0 {
		return nil, fmt.Errorf("%w: leaderboard size must be > 0", ErrInvalidInput)
	}
	if minReviews < 0 {
		minReviews = 0
	}

	first, err := s.lister.ListRecentPlayers(ctx, 0, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetch first player page: %w", err)
	}

	players := first.Items
	totalPages := first.TotalPages
	if totalPages > maxLeaderboardPages {
		s.logger.WarnContext(ctx, "player directory larger than leaderboard scan window, truncating",
			"total_pages", totalPages,
			"scanned_pages", maxLeaderboardPages,
		)
		totalPages = maxLeaderboardPages
	}

	if totalPages > 1 {
		fetchers := pool.NewWithResults[[]player.Player]().
			WithContext(ctx).
			WithMaxGoroutines(s.workers).
			WithCancelOnError()
		for page := 1; page < totalPages; page++ {
			page := page
			fetchers.Go(func(ctx context.Context) ([]player.Player, error) {
				result, err := s.lister.ListRecentPlayers(ctx, page, s.pageSize)
				if err != nil {
					return nil, fmt.Errorf("fetch player page %d: %w", page, err)
				}
				return result.Items, nil
			})
		}

		pages, err := fetchers.Wait()
		if err != nil {
			return nil, err
		}
		for _, items := range pages {
			players = append(players, items...)
		}
	}

	ranked := make([]player.Player, 0, len(players))
	for _, p := range players {
		if p.ReviewCount < minReviews {
			continue
		}
		ranked = append(ranked, p)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AvgGrade != ranked[j].AvgGrade {
			return ranked[i].AvgGrade > ranked[j].AvgGrade
		}
		if ranked[i].ReviewCount != ranked[j].ReviewCount {
			return ranked[i].ReviewCount > ranked[j].ReviewCount
		}
		return strings.ToLower(ranked[i].NickName) < strings.ToLower(ranked[j].NickName)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	entries := make([]LeaderboardEntry, len(ranked))
	for i, p := range ranked {
		entries[i] = LeaderboardEntry{Position: i + 1, Player: p}
	}
	return entries, nil
}
