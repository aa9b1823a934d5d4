package mrrapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	crerr "github.com/cockroachdb/errors"

	"github.com/mrreviews/mrr/internal/domain/review"
)

const (
	anonymousAuthor   = "Anonymous"
	unknownPlayerNick = "Unknown Player"
)

// reviewDTO is the backend wire shape. Which of the author/player fields is
// populated depends on the endpoint; mapping collapses them.
type reviewDTO struct {
	ID         int64   `json:"id"`
	Review     string  `json:"review"`
	Created    string  `json:"created"`
	Grade      int     `json:"grade"`
	Rank       int     `json:"rank"`
	Image      *string `json:"image"`
	UserNick   string  `json:"userNick"`
	PlayerNick string  `json:"playerNick"`
	Player     *struct {
		NickName string `json:"nickName"`
	} `json:"player"`
	Owner *struct {
		UserName string `json:"userName"`
	} `json:"owner"`
}

func (d reviewDTO) toDomain() review.Review {
	out := review.Review{
		ID:        d.ID,
		Comment:   d.Review,
		CreatedAt: d.Created,
		Grade:     d.Grade,
		Rank:      d.Rank,
	}
	if d.Image != nil {
		out.ScreenshotURL = *d.Image
	}

	out.Author = strings.TrimSpace(d.UserNick)
	if out.Author == "" && d.Owner != nil {
		out.Author = strings.TrimSpace(d.Owner.UserName)
	}
	if out.Author == "" {
		out.Author = anonymousAuthor
	}

	out.PlayerNick = strings.TrimSpace(d.PlayerNick)
	if out.PlayerNick == "" && d.Player != nil {
		out.PlayerNick = strings.TrimSpace(d.Player.NickName)
	}
	if out.PlayerNick == "" {
		out.PlayerNick = unknownPlayerNick
	}

	return out
}

// ReviewsByPlayer lists reviews left on a player, newest first. Results are
// cached per (nick, page, limit) for the short review TTL.
func (c *Client) ReviewsByPlayer(ctx context.Context, playerNick string, page, limit int) (Page[review.Review], error) {
	ctx, span := startSpan(ctx, "mrrapi.ReviewsByPlayer")
	defer span.End()

	key := fmt.Sprintf("reviews:player:%s:%d:%d", strings.ToLower(strings.TrimSpace(playerNick)), page, limit)
	if cached, ok := c.reviews.Get(ctx, key); ok {
		if p, ok := cached.(Page[review.Review]); ok {
			return p, nil
		}
	}

	params := pageParams(page, limit)
	raw, err := c.getJSON(ctx, "/api/reviews/nick/"+url.PathEscape(playerNick), params, nil)
	if err != nil {
		return Page[review.Review]{}, err
	}

	result, err := decodeReviewPage(raw, page, limit)
	if err != nil {
		return Page[review.Review]{}, err
	}
	c.reviews.Set(ctx, key, result)
	return result, nil
}

// ReviewsByUser lists the reviews the logged-in user has written.
func (c *Client) ReviewsByUser(ctx context.Context, page, limit int) (Page[review.Review], error) {
	ctx, span := startSpan(ctx, "mrrapi.ReviewsByUser")
	defer span.End()

	if _, ok := c.Session(); !ok {
		return Page[review.Review]{}, ErrNoSession
	}

	raw, err := c.getJSON(ctx, "/api/reviews/user", pageParams(page, limit), nil)
	if err != nil {
		return Page[review.Review]{}, err
	}
	return decodeReviewPage(raw, page, limit)
}

// ReviewsOnPlayer lists reviews received by a player the user owns.
func (c *Client) ReviewsOnPlayer(ctx context.Context, playerID int64, page, limit int) (Page[review.Review], error) {
	ctx, span := startSpan(ctx, "mrrapi.ReviewsOnPlayer")
	defer span.End()

	if _, ok := c.Session(); !ok {
		return Page[review.Review]{}, ErrNoSession
	}
	if playerID <= 0 {
		return Page[review.Review]{}, crerr.New("player id is required")
	}

	path := "/api/reviews/player/" + strconv.FormatInt(playerID, 10)
	raw, err := c.getJSON(ctx, path, pageParams(page, limit), nil)
	if err != nil {
		return Page[review.Review]{}, err
	}
	return decodeReviewPage(raw, page, limit)
}

// AddReview posts a review and returns the created review id. The per-player
// cooldown is enforced server-side; a violation surfaces as an *APIError
// whose next-allowed date CooldownDate can extract.
func (c *Client) AddReview(ctx context.Context, input review.AddReviewInput) (int64, error) {
	ctx, span := startSpan(ctx, "mrrapi.AddReview")
	defer span.End()

	if _, ok := c.Session(); !ok {
		return 0, ErrNoSession
	}
	if err := c.validate.StructCtx(ctx, input); err != nil {
		return 0, crerr.Wrap(err, "validate review")
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := c.sendJSON(ctx, "POST", "/api/reviews", nil, input, &created); err != nil {
		return 0, err
	}

	// Cached review pages and the player's aggregates are stale now.
	c.reviews.DeletePrefix(ctx, "reviews:")
	c.players.DeletePrefix(ctx, "player:")

	return created.ID, nil
}

func decodeReviewPage(raw []byte, fallbackPage, limit int) (Page[review.Review], error) {
	dtoPage, err := decodePage[reviewDTO](raw, fallbackPage, limit)
	if err != nil {
		return Page[review.Review]{}, err
	}

	out := Page[review.Review]{
		CurrentPage:   dtoPage.CurrentPage,
		TotalPages:    dtoPage.TotalPages,
		TotalElements: dtoPage.TotalElements,
		Limit:         dtoPage.Limit,
		Items:         make([]review.Review, 0, len(dtoPage.Items)),
	}
	for _, dto := range dtoPage.Items {
		out.Items = append(out.Items, dto.toDomain())
	}
	return out, nil
}

func pageParams(page, limit int) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return params
}
