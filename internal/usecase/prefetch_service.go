package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/mrreviews/mrr/internal/platform/logging"
)

const defaultPrefetchWorkers = 4

type warmPool interface {
	Submit(task func()) error
	Release()
}

// PrefetchResult summarizes one cache warming run.
type PrefetchResult struct {
	Requested  int
	Warmed     int
	Missing    int
	Failed     int
	DurationMs int64
}

// PrefetchService warms the client caches for a set of player nicknames so
// the first interactive lookup is served locally. Misses (unknown nicks) are
// counted, not treated as failures.
type PrefetchService struct {
	directory    PlayerDirectory
	logger       *logging.Logger
	workerCount  int
	reviewsLimit int
	newPool      func(size int) (warmPool, error)
}

func NewPrefetchService(directory PlayerDirectory, logger *logging.Logger) (*PrefetchService, error) {
	if directory == nil {
		return nil, fmt.Errorf("%w: player directory is required", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PrefetchService{
		directory:    directory,
		logger:       logger,
		workerCount:  defaultPrefetchWorkers,
		reviewsLimit: 10,
		newPool: func(size int) (warmPool, error) {
			return ants.NewPool(size)
		},
	}, nil
}

// Warm fetches each player and their first reviews page through the caching
// client.
func (s *PrefetchService) Warm(ctx context.Context, nicks []string) (PrefetchResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PrefetchService.Warm")
	defer span.End()

	targets := make([]string, 0, len(nicks))
	seen := make(map[string]struct{}, len(nicks))
	for _, nick := range nicks {
		nick = strings.TrimSpace(nick)
		if nick == "" {
			continue
		}
		key := strings.ToLower(nick)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		targets = append(targets, nick)
	}
	if len(targets) == 0 {
		return PrefetchResult{}, fmt.Errorf("%w: no nicknames to warm", ErrInvalidInput)
	}

	workerCount := s.workerCount
	if workerCount > len(targets) {
		workerCount = len(targets)
	}

	pool, err := s.newPool(workerCount)
	if err != nil {
		return PrefetchResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	start := time.Now()
	var warmed, missing, failed atomic.Int32

	var workers sync.WaitGroup
	for _, nick := range targets {
		nick := nick
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			p, err := s.directory.GetPlayerByNick(ctx, nick)
			if err != nil {
				failed.Add(1)
				s.logger.WarnContext(ctx, "prefetch player failed", "nick", nick, "error", err)
				return
			}
			if p == nil {
				missing.Add(1)
				return
			}

			if _, err := s.directory.ReviewsByPlayer(ctx, p.NickName, 0, s.reviewsLimit); err != nil {
				failed.Add(1)
				s.logger.WarnContext(ctx, "prefetch reviews failed", "nick", nick, "error", err)
				return
			}
			warmed.Add(1)
		}); err != nil {
			workers.Done()
			// Tasks already submitted keep running; drain them before
			// returning so they never outlive this call.
			workers.Wait()
			return PrefetchResult{}, fmt.Errorf("submit warm task: %w", err)
		}
	}
	workers.Wait()

	result := PrefetchResult{
		Requested:  len(targets),
		Warmed:     int(warmed.Load()),
		Missing:    int(missing.Load()),
		Failed:     int(failed.Load()),
		DurationMs: time.Since(start).Milliseconds(),
	}
	s.logger.InfoContext(ctx, "cache warm finished",
		"requested", result.Requested,
		"warmed", result.Warmed,
		"missing", result.Missing,
		"failed", result.Failed,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}
