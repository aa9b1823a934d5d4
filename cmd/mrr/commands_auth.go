package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	sonic "github.com/bytedance/sonic"

	"github.com/mrreviews/mrr/external/mrrapi"
	"github.com/mrreviews/mrr/internal/domain/player"
	"github.com/mrreviews/mrr/internal/domain/review"
	"github.com/mrreviews/mrr/internal/domain/user"
	"github.com/mrreviews/mrr/internal/session"
)

func (e *appEnv) runReviewAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("review-add", flag.ContinueOnError)
	nick := fs.String("nick", "", "player nickname (created if unknown)")
	playerID := fs.Int64("player-id", 0, "player id, alternative to -nick")
	grade := fs.Int("grade", 0, "grade 1-5")
	rankName := fs.String("rank", "", "observed rank (Bronze..Eternity+)")
	comment := fs.String("comment", "", "review text")
	image := fs.String("image", "", "screenshot URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.requireLogin(); err != nil {
		return err
	}

	ctx, cancel := commandContext(ctx, e.cfg.HTTPTimeout)
	defer cancel()

	targetID := *playerID
	if targetID == 0 {
		if strings.TrimSpace(*nick) == "" {
			return fmt.Errorf("either -nick or -player-id is required")
		}
		target, err := e.client.CreateOrGetPlayerByName(ctx, *nick)
		if err != nil {
			return err
		}
		targetID = target.ID
	}

	rank := int(player.RankBronze)
	if strings.TrimSpace(*rankName) != "" {
		parsed, err := player.ParseRank(*rankName)
		if err != nil {
			return err
		}
		rank = int(parsed)
	}

	id, err := e.client.AddReview(ctx, review.AddReviewInput{
		PlayerID:      targetID,
		Rank:          rank,
		Grade:         *grade,
		Comment:       *comment,
		ScreenshotURL: *image,
	})
	if err != nil {
		if date, ok := mrrapi.CooldownDate(err); ok {
			return fmt.Errorf("review rejected, next review for this player allowed on %s", date.Format("2006-01-02"))
		}
		return err
	}

	fmt.Printf("review %d submitted for player %d\n", id, targetID)
	return nil
}

func (e *appEnv) runLink(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("link", flag.ContinueOnError)
	playerID := fs.Int64("player-id", 0, "player id to link")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.requireLogin(); err != nil {
		return err
	}
	if *playerID <= 0 {
		return fmt.Errorf("-player-id is required")
	}

	ctx, cancel := commandContext(ctx, e.cfg.HTTPTimeout)
	defer cancel()

	linked, err := e.client.LinkPlayer(ctx, *playerID)
	if err != nil {
		return err
	}

	e.state.User = linked
	if err := e.sessions.Save(e.state); err != nil {
		return err
	}
	fmt.Printf("linked player %d to %s\n", *playerID, linked.DisplayName())
	return nil
}

// runLogin exchanges a Telegram login-widget payload for a relay token and
// persists the session. The payload is the JSON object the widget hands to
// its callback, saved to a file or piped on stdin.
func (e *appEnv) runLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	payloadPath := fs.String("payload", "-", "path to the widget payload JSON, - for stdin")
	relayURL := fs.String("relay", "http://localhost:8090", "login relay base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var raw []byte
	var err error
	if *payloadPath == "-" {
		raw, err = io.ReadAll(io.LimitReader(os.Stdin, 64<<10))
	} else {
		raw, err = os.ReadFile(*payloadPath)
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	ctx, cancel := commandContext(ctx, e.cfg.HTTPTimeout)
	defer cancel()

	endpoint := strings.TrimRight(*relayURL, "/") + "/api/auth/telegram"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("call relay: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read relay response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay rejected login: %s", strings.TrimSpace(string(body)))
	}

	var auth struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
	if err := sonic.Unmarshal(body, &auth); err != nil {
		return fmt.Errorf("decode relay response: %w", err)
	}

	e.state = session.State{User: auth.User, Token: auth.Token}
	if err := e.sessions.Save(e.state); err != nil {
		return err
	}
	e.client.SetSession(mrrapi.Session{TelegramID: auth.User.TelegramID, Token: auth.Token})

	// First login registers the identity with the reviews backend. An
	// already-registered user is not an error.
	if _, err := e.client.CreateUser(ctx, auth.User); err != nil && !mrrapi.IsConflict(err) {
		e.logger.Warn("register user with backend failed", "error", err)
	}

	fmt.Printf("logged in as %s (telegram id %d)\n", auth.User.DisplayName(), auth.User.TelegramID)
	return nil
}

func (e *appEnv) runLogout(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := e.sessions.Clear(); err != nil {
		return err
	}
	e.client.ClearSession()
	fmt.Println("logged out")
	return nil
}

func (e *appEnv) runWhoami(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !e.state.LoggedIn() {
		fmt.Println("not logged in")
		return nil
	}

	fmt.Printf("%s (telegram id %d)\n", e.state.User.DisplayName(), e.state.User.TelegramID)
	if e.cfg.IsAdmin(e.state.User.TelegramID) {
		fmt.Println("role: admin")
	}

	ctx, cancel := commandContext(ctx, e.cfg.HTTPTimeout)
	defer cancel()

	linked, err := e.client.LinkedPlayer(ctx)
	if err != nil {
		e.logger.Warn("fetch linked player failed", "error", err)
		return nil
	}
	if linked == nil {
		fmt.Println("linked player: none")
		return nil
	}
	fmt.Printf("linked player: %s (grade %.2f over %d reviews)\n",
		linked.NickName, linked.AvgGrade, linked.ReviewCount)
	return nil
}
