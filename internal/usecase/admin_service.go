package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrreviews/mrr/external/mrrapi"
	"github.com/mrreviews/mrr/internal/domain/player"
	"github.com/mrreviews/mrr/internal/domain/review"
	"github.com/mrreviews/mrr/internal/platform/logging"
)

// Moderator is the slice of the API client the admin flows need.
type Moderator interface {
	AdminReviews(ctx context.Context, q mrrapi.AdminReviewsQuery) (mrrapi.Page[review.Review], error)
	AdminReviewsByUser(ctx context.Context, userID int64, page, limit int) (mrrapi.Page[review.Review], error)
	DeletePlayer(ctx context.Context, nick string) error
	DeleteReview(ctx context.Context, id int64) error
	RenamePlayer(ctx context.Context, oldNick, newNick string) (player.Player, error)
}

// AdminService gates moderation operations behind a Telegram-id allowlist.
// The backend enforces its own admin check too; this keeps obvious mistakes
// local instead of round-tripping for a 403.
type AdminService struct {
	moderator Moderator
	logger    *logging.Logger
	allowlist map[int64]struct{}
}

func NewAdminService(moderator Moderator, adminIDs []int64, logger *logging.Logger) (*AdminService, error) {
	if moderator == nil {
		return nil, fmt.Errorf("%w: moderator client is required", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}

	allowlist := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		allowlist[id] = struct{}{}
	}

	return &AdminService{
		moderator: moderator,
		logger:    logger,
		allowlist: allowlist,
	}, nil
}

// Authorize reports whether the actor may run moderation commands.
func (s *AdminService) Authorize(actorID int64) error {
	if actorID <= 0 {
		return fmt.Errorf("%w: log in first", ErrUnauthorized)
	}
	if _, ok := s.allowlist[actorID]; !ok {
		return fmt.Errorf("%w: telegram id %d is not an admin", ErrForbidden, actorID)
	}
	return nil
}

func (s *AdminService) ListReviews(ctx context.Context, actorID int64, q mrrapi.AdminReviewsQuery) (mrrapi.Page[review.Review], error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.ListReviews")
	defer span.End()

	if err := s.Authorize(actorID); err != nil {
		return mrrapi.Page[review.Review]{}, err
	}
	return s.moderator.AdminReviews(ctx, q)
}

func (s *AdminService) ListReviewsByUser(ctx context.Context, actorID, userID int64, page, limit int) (mrrapi.Page[review.Review], error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.ListReviewsByUser")
	defer span.End()

	if err := s.Authorize(actorID); err != nil {
		return mrrapi.Page[review.Review]{}, err
	}
	if userID <= 0 {
		return mrrapi.Page[review.Review]{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.moderator.AdminReviewsByUser(ctx, userID, page, limit)
}

func (s *AdminService) RemovePlayer(ctx context.Context, actorID int64, nick string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.RemovePlayer")
	defer span.End()

	if err := s.Authorize(actorID); err != nil {
		return err
	}
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return fmt.Errorf("%w: nickname is required", ErrInvalidInput)
	}

	if err := s.moderator.DeletePlayer(ctx, nick); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "player removed", "nick", nick, "actor_id", actorID)
	return nil
}

func (s *AdminService) RemoveReview(ctx context.Context, actorID, reviewID int64) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.RemoveReview")
	defer span.End()

	if err := s.Authorize(actorID); err != nil {
		return err
	}
	if reviewID <= 0 {
		return fmt.Errorf("%w: review id is required", ErrInvalidInput)
	}

	if err := s.moderator.DeleteReview(ctx, reviewID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "review removed", "review_id", reviewID, "actor_id", actorID)
	return nil
}

func (s *AdminService) RenamePlayer(ctx context.Context, actorID int64, oldNick, newNick string) (player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.RenamePlayer")
	defer span.End()

	if err := s.Authorize(actorID); err != nil {
		return player.Player{}, err
	}
	oldNick = strings.TrimSpace(oldNick)
	newNick = strings.TrimSpace(newNick)
	if oldNick == "" || newNick == "" {
		return player.Player{}, fmt.Errorf("%w: old and new nicknames are required", ErrInvalidInput)
	}
	if strings.EqualFold(oldNick, newNick) {
		return player.Player{}, fmt.Errorf("%w: new nickname matches the old one", ErrInvalidInput)
	}

	renamed, err := s.moderator.RenamePlayer(ctx, oldNick, newNick)
	if err != nil {
		return player.Player{}, err
	}
	s.logger.InfoContext(ctx, "player renamed",
		"old_nick", oldNick,
		"new_nick", renamed.NickName,
		"actor_id", actorID,
	)
	return renamed, nil
}
