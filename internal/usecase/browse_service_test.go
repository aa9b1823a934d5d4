package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrreviews/mrr/external/mrrapi"
	"github.com/mrreviews/mrr/internal/domain/player"
	"github.com/mrreviews/mrr/internal/domain/review"
	"github.com/mrreviews/mrr/internal/platform/logging"
)

type fakeDirectory struct {
	mu       sync.Mutex
	searches []string
	players  map[string]player.Player
	reviews  map[string][]review.Review
	delay    time.Duration

	searchErr  error
	playerErr  error
	reviewsErr error
}

func (f *fakeDirectory) SearchPlayers(ctx context.Context, query string, limit int) (mrrapi.Page[player.Player], error) {
	f.mu.Lock()
	f.searches = append(f.searches, query)
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return mrrapi.Page[player.Player]{}, ctx.Err()
		}
	}
	if f.searchErr != nil {
		return mrrapi.Page[player.Player]{}, f.searchErr
	}

	items := make([]player.Player, 0)
	for _, p := range f.players {
		if query == "" || strings.HasPrefix(strings.ToLower(p.NickName), strings.ToLower(query)) {
			items = append(items, p)
		}
	}
	return mrrapi.Page[player.Player]{Items: items}.Normalize(), nil
}

func (f *fakeDirectory) GetPlayerByNick(ctx context.Context, nick string) (*player.Player, error) {
	if f.playerErr != nil {
		return nil, f.playerErr
	}
	p, ok := f.players[strings.ToLower(nick)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeDirectory) ReviewsByPlayer(ctx context.Context, nick string, page, limit int) (mrrapi.Page[review.Review], error) {
	if f.reviewsErr != nil {
		return mrrapi.Page[review.Review]{}, f.reviewsErr
	}
	return mrrapi.Page[review.Review]{Items: f.reviews[strings.ToLower(nick)]}.Normalize(), nil
}

func (f *fakeDirectory) searchLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

func TestBrowseService_BurstCollapsesToOneSearch(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		players: map[string]player.Player{
			"spidey": {ID: 1, NickName: "Spidey"},
		},
	}

	results := make(chan SearchResult, 4)
	browse, err := NewBrowseService(directory, BrowseConfig{
		Limit:         10,
		DebounceDelay: 30 * time.Millisecond,
	}, func(r SearchResult) { results <- r }, logging.NewNop())
	require.NoError(t, err)
	defer browse.Close()

	for _, q := range []string{"s", "sp", "spi", "spid"} {
		browse.OnQueryChange(q)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case result := <-results:
		require.NoError(t, result.Err)
		require.Equal(t, "spid", result.Query)
		require.Len(t, result.Players.Items, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no search result delivered")
	}

	require.Equal(t, []string{"spid"}, directory.searchLog())
}

func TestBrowseService_StaleResultDropped(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		players: map[string]player.Player{"storm": {ID: 2, NickName: "Storm"}},
		delay:   80 * time.Millisecond,
	}

	results := make(chan SearchResult, 4)
	browse, err := NewBrowseService(directory, BrowseConfig{
		Limit:         10,
		DebounceDelay: 10 * time.Millisecond,
	}, func(r SearchResult) { results <- r }, logging.NewNop())
	require.NoError(t, err)
	defer browse.Close()

	browse.OnQueryChange("st")
	// Let the first search start, then supersede it mid-flight.
	time.Sleep(40 * time.Millisecond)
	browse.OnQueryChange("storm")

	var delivered []string
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case result := <-results:
			require.NoError(t, result.Err)
			delivered = append(delivered, result.Query)
			if result.Query == "storm" {
				break loop
			}
		case <-deadline:
			t.Fatal("final search result never delivered")
		}
	}

	require.Equal(t, []string{"storm"}, delivered, "superseded query must not be delivered")
	require.Equal(t, []string{"st", "storm"}, directory.searchLog())
}

func TestBrowseService_WaitDrainsPendingSearch(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		players: map[string]player.Player{"spidey": {ID: 1, NickName: "Spidey"}},
		delay:   40 * time.Millisecond,
	}

	results := make(chan SearchResult, 1)
	browse, err := NewBrowseService(directory, BrowseConfig{
		Limit:         10,
		DebounceDelay: 20 * time.Millisecond,
	}, func(r SearchResult) { results <- r }, logging.NewNop())
	require.NoError(t, err)
	defer browse.Close()

	browse.OnQueryChange("spidey")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, browse.Wait(ctx))

	select {
	case result := <-results:
		require.NoError(t, result.Err)
		require.Equal(t, "spidey", result.Query)
	default:
		t.Fatal("Wait returned before the debounced search was delivered")
	}
}

func TestBrowseService_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{delay: 500 * time.Millisecond}
	browse, err := NewBrowseService(directory, BrowseConfig{DebounceDelay: time.Millisecond},
		func(SearchResult) {}, logging.NewNop())
	require.NoError(t, err)
	defer browse.Close()

	browse.OnQueryChange("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, browse.Wait(ctx), context.DeadlineExceeded)
}

func TestBrowseService_SearchErrorDelivered(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{searchErr: errors.New("backend down")}
	results := make(chan SearchResult, 1)
	browse, err := NewBrowseService(directory, BrowseConfig{DebounceDelay: 5 * time.Millisecond},
		func(r SearchResult) { results <- r }, logging.NewNop())
	require.NoError(t, err)
	defer browse.Close()

	browse.OnQueryChange("x")

	select {
	case result := <-results:
		require.Error(t, result.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("error result never delivered")
	}
}

func TestBrowseService_Profile(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		players: map[string]player.Player{"spidey": {ID: 1, NickName: "Spidey", ReviewCount: 2}},
		reviews: map[string][]review.Review{
			"spidey": {{ID: 10, PlayerNick: "Spidey", Grade: 5}, {ID: 11, PlayerNick: "Spidey", Grade: 4}},
		},
	}

	browse, err := NewBrowseService(directory, BrowseConfig{}, func(SearchResult) {}, logging.NewNop())
	require.NoError(t, err)
	defer browse.Close()

	profile, err := browse.Profile(context.Background(), "Spidey", 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), profile.Player.ID)
	require.Len(t, profile.Reviews.Items, 2)

	_, err = browse.Profile(context.Background(), "ghost", 10)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = browse.Profile(context.Background(), "   ", 10)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestBrowseService_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewBrowseService(nil, BrowseConfig{}, func(SearchResult) {}, logging.NewNop())
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewBrowseService(&fakeDirectory{}, BrowseConfig{}, nil, logging.NewNop())
	require.ErrorIs(t, err, ErrInvalidInput)
}
