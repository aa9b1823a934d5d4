package mrrapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	crerr "github.com/cockroachdb/errors"

	"github.com/mrreviews/mrr/internal/domain/player"
	"github.com/mrreviews/mrr/internal/domain/user"
)

type userDTO struct {
	TelegramID int64      `json:"telegramId"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Username   string     `json:"userName"`
	PhotoURL   string     `json:"photoUrl"`
	PlayerDto  *playerDTO `json:"playerDto"`
	Player     *playerDTO `json:"player"`
}

func (d userDTO) toDomain() user.User {
	out := user.User{
		TelegramID: d.TelegramID,
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		Username:   d.Username,
		PhotoURL:   d.PhotoURL,
	}
	if linked := d.linkedPlayer(); linked != nil {
		out.PlayerID = linked.ID
	}
	return out
}

// linkedPlayer resolves the two field names the backend has used for the
// linked-player payload, and collapses a present-but-all-null player to nil.
func (d userDTO) linkedPlayer() *playerDTO {
	dto := d.PlayerDto
	if dto == nil {
		dto = d.Player
	}
	if dto == nil || dto.empty() {
		return nil
	}
	return dto
}

// CurrentUser fetches the backend record for the logged-in Telegram identity.
func (c *Client) CurrentUser(ctx context.Context) (user.User, error) {
	ctx, span := startSpan(ctx, "mrrapi.CurrentUser")
	defer span.End()

	if _, ok := c.Session(); !ok {
		return user.User{}, ErrNoSession
	}

	var dto userDTO
	if _, err := c.getJSON(ctx, "/api/users", nil, &dto); err != nil {
		return user.User{}, err
	}
	return dto.toDomain(), nil
}

// LinkedPlayer returns the player linked to the logged-in user, or nil when
// none is linked. The backend occasionally returns a linked-player object
// with every field null; that is collapsed to "not linked" and logged so the
// upstream inconsistency stays visible.
func (c *Client) LinkedPlayer(ctx context.Context) (*player.Player, error) {
	ctx, span := startSpan(ctx, "mrrapi.LinkedPlayer")
	defer span.End()

	session, ok := c.Session()
	if !ok {
		return nil, ErrNoSession
	}

	key := fmt.Sprintf("user:linked:%d", session.TelegramID)
	if cached, ok := c.users.Get(ctx, key); ok {
		if p, ok := cached.(player.Player); ok {
			return &p, nil
		}
	}

	var dto userDTO
	if _, err := c.getJSON(ctx, "/api/users", nil, &dto); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	raw := dto.PlayerDto
	if raw == nil {
		raw = dto.Player
	}
	linked := dto.linkedPlayer()
	if raw != nil && linked == nil {
		c.logger.WarnContext(ctx, "backend returned linked player with all fields null, treating as unlinked",
			"telegram_id", session.TelegramID,
		)
	}
	if linked == nil {
		return nil, nil
	}

	result := linked.toDomain()
	c.users.Set(ctx, key, result)
	return &result, nil
}

// LinkPlayer attaches a player to the logged-in user.
func (c *Client) LinkPlayer(ctx context.Context, playerID int64) (user.User, error) {
	ctx, span := startSpan(ctx, "mrrapi.LinkPlayer")
	defer span.End()

	session, ok := c.Session()
	if !ok {
		return user.User{}, ErrNoSession
	}
	if playerID <= 0 {
		return user.User{}, crerr.New("player id is required")
	}

	params := url.Values{}
	params.Set("playerId", strconv.FormatInt(playerID, 10))

	var dto userDTO
	if err := c.sendJSON(ctx, "PATCH", "/api/users", params, nil, &dto); err != nil {
		return user.User{}, err
	}

	c.users.Delete(ctx, fmt.Sprintf("user:linked:%d", session.TelegramID))
	return dto.toDomain(), nil
}

// CreateUser registers a Telegram identity with the backend on first login.
func (c *Client) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	ctx, span := startSpan(ctx, "mrrapi.CreateUser")
	defer span.End()

	if err := u.Validate(); err != nil {
		return user.User{}, crerr.Wrap(err, "validate user")
	}

	var dto userDTO
	if err := c.sendJSON(ctx, "POST", "/api/users", nil, u, &dto); err != nil {
		return user.User{}, err
	}
	return dto.toDomain(), nil
}
