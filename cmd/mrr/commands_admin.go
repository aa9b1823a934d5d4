package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/mrreviews/mrr/external/mrrapi"
	"github.com/mrreviews/mrr/internal/usecase"
)

const adminUsage = `usage: mrr admin <subcommand>

Subcommands:
  list           list reviews for moderation (-nick, -owner, -page, -limit)
  list-user      list reviews written by a user: mrr admin list-user <telegram-id>
  delete-player  remove a player and their reviews: mrr admin delete-player <nick>
  delete-review  remove one review: mrr admin delete-review <id>
  rename         rename a player: mrr admin rename <old-nick> <new-nick>
`

func (e *appEnv) runAdmin(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(adminUsage)
	}
	if err := e.requireLogin(); err != nil {
		return err
	}

	admin, err := usecase.NewAdminService(e.client, e.cfg.AdminTelegramIDs, e.logger)
	if err != nil {
		return err
	}
	actorID := e.state.User.TelegramID

	ctx, cancel := commandContext(ctx, e.cfg.HTTPTimeout)
	defer cancel()

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("admin list", flag.ContinueOnError)
		nick := fs.String("nick", "", "filter by player nickname")
		owner := fs.String("owner", "", "filter by review author")
		page := fs.Int("page", 0, "result page")
		limit := fs.Int("limit", 20, "page size")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		result, err := admin.ListReviews(ctx, actorID, mrrapi.AdminReviewsQuery{
			PlayerNick: *nick,
			Owner:      *owner,
			Page:       *page,
			Limit:      *limit,
		})
		if err != nil {
			return err
		}
		printReviewPage(result)
		return nil

	case "list-user":
		fs := flag.NewFlagSet("admin list-user", flag.ContinueOnError)
		page := fs.Int("page", 0, "result page")
		limit := fs.Int("limit", 20, "page size")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("usage: mrr admin list-user <telegram-id>")
		}
		userID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram id %q", fs.Arg(0))
		}

		result, err := admin.ListReviewsByUser(ctx, actorID, userID, *page, *limit)
		if err != nil {
			return err
		}
		printReviewPage(result)
		return nil

	case "delete-player":
		if len(args) != 2 {
			return fmt.Errorf("usage: mrr admin delete-player <nick>")
		}
		if err := admin.RemovePlayer(ctx, actorID, args[1]); err != nil {
			return err
		}
		fmt.Printf("player %s deleted\n", args[1])
		return nil

	case "delete-review":
		if len(args) != 2 {
			return fmt.Errorf("usage: mrr admin delete-review <id>")
		}
		reviewID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid review id %q", args[1])
		}
		if err := admin.RemoveReview(ctx, actorID, reviewID); err != nil {
			return err
		}
		fmt.Printf("review %d deleted\n", reviewID)
		return nil

	case "rename":
		if len(args) != 3 {
			return fmt.Errorf("usage: mrr admin rename <old-nick> <new-nick>")
		}
		renamed, err := admin.RenamePlayer(ctx, actorID, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("player renamed to %s\n", renamed.NickName)
		return nil

	default:
		return fmt.Errorf("unknown admin subcommand %q\n\n%s", args[0], adminUsage)
	}
}
