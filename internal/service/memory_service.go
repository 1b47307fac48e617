package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
)

const memoryCachePattern = "love-timeline:memories:*"

type memoryRepository interface {
	CreateBatch(ctx context.Context, items []models.NewMemory) ([]models.Memory, error)
	List(ctx context.Context, filter models.MemoryFilter) ([]models.Memory, error)
	Delete(ctx context.Context, id string) (*string, error)
	MediaURLs(ctx context.Context, ids []string) ([]string, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	IncrementLikes(ctx context.Context, id string) (int, error)
	DecrementLikes(ctx context.Context, id string) (int, error)
}

// BlobRemover deletes stored objects referenced by public URLs.
type BlobRemover interface {
	KeyFromURL(rawURL string) (string, bool)
	Remove(ctx context.Context, keys []string) error
}

// MemoryService is the persistence API for timeline memories.
type MemoryService struct {
	repo      memoryRepository
	blobs     BlobRemover
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMemoryService constructs the service. cache may be nil.
func NewMemoryService(repo memoryRepository, blobs BlobRemover, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *MemoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MemoryService{repo: repo, blobs: blobs, cache: cache, validator: validate, logger: logger}
}

// CreateRecords inserts every row in one transaction. Only admins may write.
func (s *MemoryService) CreateRecords(ctx context.Context, actor *models.JWTClaims, reqs []dto.CreateMemoryRequest) ([]models.Memory, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can add memories")
	}
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one memory is required")
	}

	items := make([]models.NewMemory, 0, len(reqs))
	for _, req := range reqs {
		if err := s.validator.Struct(req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid memory payload")
		}
		items = append(items, models.NewMemory{
			UserID:   actor.UserID,
			Date:     req.Date,
			Type:     req.Type,
			MediaURL: req.MediaURL,
			Content:  req.Content,
			Metadata: req.Metadata,
		})
	}

	created, err := s.repo.CreateBatch(ctx, items)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create memories")
	}
	author := actor.Author()
	for i := range created {
		created[i].Author = author
	}
	s.invalidate(ctx)
	return created, nil
}

// List returns memories newest first, served from cache when possible.
func (s *MemoryService) List(ctx context.Context, query dto.MemoryQuery) ([]models.Memory, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid memory filter")
	}
	key := Key("memories", query.Date, query.From, query.To, query.Type)
	var cached []models.Memory
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	records, err := s.repo.List(ctx, query.Filter())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list memories")
	}
	if records == nil {
		records = []models.Memory{}
	}
	_ = s.cache.Set(ctx, key, records, 0)
	return records, nil
}

// Delete removes one memory and then its blob. A blob that cannot be removed
// is logged and left behind.
func (s *MemoryService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	mediaURL, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "memory not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete memory")
	}
	s.invalidate(ctx)

	if mediaURL != nil && s.blobs != nil {
		if key, ok := s.blobs.KeyFromURL(*mediaURL); ok {
			if err := s.blobs.Remove(ctx, []string{key}); err != nil {
				s.logger.Warn("failed to remove blob", zap.String("memory_id", id), zap.String("key", key), zap.Error(err))
			}
		}
	}
	return nil
}

// BatchDelete removes blobs first and aborts if storage refuses, then deletes rows.
func (s *MemoryService) BatchDelete(ctx context.Context, actor *models.JWTClaims, req dto.BatchDeleteRequest) (*dto.BatchDeleteResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "ids are required")
	}

	urls, err := s.repo.MediaURLs(ctx, req.IDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve media")
	}
	keys := make([]string, 0, len(urls))
	if s.blobs != nil {
		for _, u := range urls {
			if key, ok := s.blobs.KeyFromURL(u); ok {
				keys = append(keys, key)
			}
		}
		if len(keys) > 0 {
			if err := s.blobs.Remove(ctx, keys); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete files from storage")
			}
		}
	}

	deleted, err := s.repo.DeleteMany(ctx, req.IDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete memories")
	}
	s.invalidate(ctx)
	return &dto.BatchDeleteResponse{Deleted: deleted, BlobsRemoved: len(keys)}, nil
}

// Like increments the counter of id.
func (s *MemoryService) Like(ctx context.Context, id string) (int, error) {
	return s.adjust(ctx, id, s.repo.IncrementLikes)
}

// Unlike decrements the counter of id, floored at zero.
func (s *MemoryService) Unlike(ctx context.Context, id string) (int, error) {
	return s.adjust(ctx, id, s.repo.DecrementLikes)
}

func (s *MemoryService) adjust(ctx context.Context, id string, fn func(context.Context, string) (int, error)) (int, error) {
	likes, err := fn(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "memory not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update likes")
	}
	s.invalidate(ctx)
	return likes, nil
}

func (s *MemoryService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, memoryCachePattern)
}
