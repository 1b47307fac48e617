package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
)

type commentRepository interface {
	Create(ctx context.Context, comment models.Comment) (*models.Comment, error)
	List(ctx context.Context, date string) ([]models.Comment, error)
	Delete(ctx context.Context, id string) error
	DeleteByDate(ctx context.Context, date string) (int64, error)
}

// CommentService manages guestbook comments.
type CommentService struct {
	repo      commentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(repo commentRepository, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CommentService{repo: repo, validator: validate, logger: logger}
}

// Create stores a comment. Anyone may sign the guestbook.
func (s *CommentService) Create(ctx context.Context, req dto.CreateCommentRequest) (*models.Comment, error) {
	req.AuthorName = strings.TrimSpace(req.AuthorName)
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "memory_date, author_name and content are required")
	}
	comment, err := s.repo.Create(ctx, models.Comment{
		MemoryDate: req.MemoryDate,
		AuthorName: req.AuthorName,
		AvatarSeed: AvatarSeed(req.AuthorName),
		Content:    req.Content,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}
	return comment, nil
}

// List returns comments, optionally for one date.
func (s *CommentService) List(ctx context.Context, date string) ([]models.Comment, error) {
	comments, err := s.repo.List(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// Delete removes one comment.
func (s *CommentService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comment")
	}
	return nil
}

// DeleteByDate removes every comment filed under date.
func (s *CommentService) DeleteByDate(ctx context.Context, actor *models.JWTClaims, date string) (int64, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if date == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	n, err := s.repo.DeleteByDate(ctx, date)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comments")
	}
	s.logger.Debug("comments cleared", zap.String("date", date), zap.Int64("deleted", n))
	return n, nil
}

// AvatarSeed is the upper-cased first letter of name.
func AvatarSeed(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}
