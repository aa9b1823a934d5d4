package mrrapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mrreviews/mrr/internal/domain/player"
	"github.com/mrreviews/mrr/internal/domain/review"
)

// AdminReviewsQuery filters the moderation listing. Empty fields match all.
type AdminReviewsQuery struct {
	PlayerNick string
	Owner      string
	Page       int
	Limit      int
}

// AdminReviews lists reviews for moderation, optionally filtered by player
// nickname and review author.
func (c *Client) AdminReviews(ctx context.Context, q AdminReviewsQuery) (Page[review.Review], error) {
	ctx, span := startSpan(ctx, "mrrapi.AdminReviews")
	defer span.End()

	params := pageParams(q.Page, q.Limit)
	if strings.TrimSpace(q.PlayerNick) != "" {
		params.Set("nick", q.PlayerNick)
	}
	if strings.TrimSpace(q.Owner) != "" {
		params.Set("owner", q.Owner)
	}

	raw, err := c.getJSON(ctx, "/api/admin/reviews", params, nil)
	if err != nil {
		return Page[review.Review]{}, err
	}
	return decodeReviewPage(raw, q.Page, q.Limit)
}

// AdminReviewsByUser lists all reviews written by a specific user.
func (c *Client) AdminReviewsByUser(ctx context.Context, userID int64, page, limit int) (Page[review.Review], error) {
	ctx, span := startSpan(ctx, "mrrapi.AdminReviewsByUser")
	defer span.End()

	path := "/api/admin/reviews/user/" + strconv.FormatInt(userID, 10)
	raw, err := c.getJSON(ctx, path, pageParams(page, limit), nil)
	if err != nil {
		return Page[review.Review]{}, err
	}
	return decodeReviewPage(raw, page, limit)
}

// DeletePlayer removes a player and their reviews.
func (c *Client) DeletePlayer(ctx context.Context, nick string) error {
	ctx, span := startSpan(ctx, "mrrapi.DeletePlayer")
	defer span.End()

	err := c.sendJSON(ctx, "DELETE", "/api/admin/players/"+url.PathEscape(nick), nil, nil, nil)
	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, nick)
		}
		return err
	}

	c.players.Delete(ctx, playerCacheKey(nick))
	c.reviews.DeletePrefix(ctx, "reviews:player:"+strings.ToLower(strings.TrimSpace(nick)))
	return nil
}

// DeleteReview removes a single review.
func (c *Client) DeleteReview(ctx context.Context, id int64) error {
	ctx, span := startSpan(ctx, "mrrapi.DeleteReview")
	defer span.End()

	err := c.sendJSON(ctx, "DELETE", "/api/admin/reviews/"+strconv.FormatInt(id, 10), nil, nil, nil)
	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("%w: id=%d", ErrReviewNotFound, id)
		}
		return err
	}

	c.reviews.DeletePrefix(ctx, "reviews:")
	return nil
}

// RenamePlayer changes a player's nickname while preserving their reviews.
func (c *Client) RenamePlayer(ctx context.Context, oldNick, newNick string) (player.Player, error) {
	ctx, span := startSpan(ctx, "mrrapi.RenamePlayer")
	defer span.End()

	var dto playerDTO
	err := c.sendJSON(ctx, "PATCH", "/api/admin/players/"+url.PathEscape(oldNick), nil,
		map[string]string{"nickName": newNick}, &dto)
	if err != nil {
		if IsNotFound(err) {
			return player.Player{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, oldNick)
		}
		if IsConflict(err) {
			return player.Player{}, fmt.Errorf("%w: %s", ErrPlayerAlreadyExists, newNick)
		}
		return player.Player{}, err
	}

	c.players.Delete(ctx, playerCacheKey(oldNick))
	c.players.Delete(ctx, playerCacheKey(newNick))
	return dto.toDomain(), nil
}
