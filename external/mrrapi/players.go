package mrrapi

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"

	"github.com/mrreviews/mrr/internal/domain/player"
)

// parsedFloat tolerates the backend's two encodings for aggregate metrics:
// a bare number, or a {"parsedValue": n} envelope some endpoints emit.
type parsedFloat struct {
	Value float64
}

func (p *parsedFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		p.Value = 0
		return nil
	}
	if data[0] == '{' {
		var env struct {
			ParsedValue float64 `json:"parsedValue"`
		}
		if err := sonic.Unmarshal(data, &env); err != nil {
			return err
		}
		p.Value = env.ParsedValue
		return nil
	}
	return sonic.Unmarshal(data, &p.Value)
}

type playerDTO struct {
	ID          int64       `json:"id"`
	NickName    string      `json:"nickName"`
	Avatar      string      `json:"avatar"`
	AvgGrade    parsedFloat `json:"avgGrade"`
	AvgRank     parsedFloat `json:"avgRank"`
	ReviewCount int         `json:"reviewCount"`
}

func (d playerDTO) toDomain() player.Player {
	return player.Player{
		ID:          d.ID,
		NickName:    d.NickName,
		AvatarURL:   d.Avatar,
		AvgGrade:    d.AvgGrade.Value,
		AvgRank:     d.AvgRank.Value,
		ReviewCount: d.ReviewCount,
	}
}

func (d playerDTO) empty() bool {
	return d.ID == 0 && strings.TrimSpace(d.NickName) == ""
}

func playerCacheKey(nick string) string {
	return "player:" + strings.ToLower(strings.TrimSpace(nick))
}

// CreateOrGetPlayerByName posts a new player and falls back to a nickname
// lookup when the backend reports a conflict. Nicknames are unique, so two
// calls with the same name resolve to the same player.
func (c *Client) CreateOrGetPlayerByName(ctx context.Context, nickName string) (player.Player, error) {
	ctx, span := startSpan(ctx, "mrrapi.CreateOrGetPlayerByName")
	defer span.End()

	var dto playerDTO
	err := c.sendJSON(ctx, "POST", "/api/players", nil, map[string]string{"nickName": nickName}, &dto)
	if err == nil {
		created := dto.toDomain()
		c.players.Set(ctx, playerCacheKey(created.NickName), created)
		return created, nil
	}
	if !IsConflict(err) {
		return player.Player{}, err
	}

	existing, lookupErr := c.GetPlayerByNick(ctx, nickName)
	if lookupErr != nil {
		return player.Player{}, lookupErr
	}
	if existing == nil {
		// Conflict but nothing found by nick: surface the original error.
		return player.Player{}, err
	}
	return *existing, nil
}

// GetPlayerByNick looks a player up by the natural key. A missing player is a
// valid outcome and returns (nil, nil) so callers can branch into their
// create-first flow. Hits are cached.
func (c *Client) GetPlayerByNick(ctx context.Context, nick string) (*player.Player, error) {
	ctx, span := startSpan(ctx, "mrrapi.GetPlayerByNick")
	defer span.End()

	key := playerCacheKey(nick)
	if cached, ok := c.players.Get(ctx, key); ok {
		if p, ok := cached.(player.Player); ok {
			return &p, nil
		}
	}

	var dto playerDTO
	if _, err := c.getJSON(ctx, "/api/players/nick/"+url.PathEscape(nick), nil, &dto); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if dto.empty() {
		return nil, nil
	}

	found := dto.toDomain()
	c.players.Set(ctx, key, found)
	return &found, nil
}

// SearchPlayers matches nicknames against a partial query. An empty query
// falls back to the recent-players listing.
func (c *Client) SearchPlayers(ctx context.Context, query string, limit int) (Page[player.Player], error) {
	if strings.TrimSpace(query) == "" {
		return c.ListRecentPlayers(ctx, 0, limit)
	}

	ctx, span := startSpan(ctx, "mrrapi.SearchPlayers")
	defer span.End()

	params := url.Values{}
	params.Set("nick", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	raw, err := c.getJSON(ctx, "/api/players/search", params, nil)
	if err != nil {
		return Page[player.Player]{}, err
	}
	return decodePlayerPage(raw, 0, limit)
}

// ListRecentPlayers returns players ordered by creation freshness.
func (c *Client) ListRecentPlayers(ctx context.Context, page, limit int) (Page[player.Player], error) {
	ctx, span := startSpan(ctx, "mrrapi.ListRecentPlayers")
	defer span.End()

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	raw, err := c.getJSON(ctx, "/api/players", params, nil)
	if err != nil {
		return Page[player.Player]{}, err
	}
	return decodePlayerPage(raw, page, limit)
}

// ListAllPlayers fetches the unfiltered player listing in one call.
func (c *Client) ListAllPlayers(ctx context.Context) ([]player.Player, error) {
	ctx, span := startSpan(ctx, "mrrapi.ListAllPlayers")
	defer span.End()

	raw, err := c.getJSON(ctx, "/api/players", nil, nil)
	if err != nil {
		return nil, err
	}
	page, err := decodePlayerPage(raw, 0, 0)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func decodePlayerPage(raw []byte, fallbackPage, limit int) (Page[player.Player], error) {
	dtoPage, err := decodePage[playerDTO](raw, fallbackPage, limit)
	if err != nil {
		return Page[player.Player]{}, err
	}

	out := Page[player.Player]{
		CurrentPage:   dtoPage.CurrentPage,
		TotalPages:    dtoPage.TotalPages,
		TotalElements: dtoPage.TotalElements,
		Limit:         dtoPage.Limit,
		Items:         make([]player.Player, 0, len(dtoPage.Items)),
	}
	for _, dto := range dtoPage.Items {
		out.Items = append(out.Items, dto.toDomain())
	}
	return out, nil
}
