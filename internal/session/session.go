package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
	"github.com/noah-isme/love-timeline-api/internal/timeline"
	"github.com/noah-isme/love-timeline-api/internal/upload"
)

var (
	// ErrFilesRequired is returned for media submissions without files.
	ErrFilesRequired = errors.New("at least one file is required for media memories")
	// ErrInvalidMemory is returned for malformed submissions.
	ErrInvalidMemory = errors.New("invalid memory submission")
)

// AddMemoryInput is one form submission.
type AddMemoryInput struct {
	Date     string
	Type     models.MemoryType
	Content  string
	Metadata models.Metadata
	Files    []upload.File
}

// AddMemoryResult reports what became visible right away.
type AddMemoryResult struct {
	Item    upload.Item     `json:"item"`
	Records []models.Memory `json:"records"`
}

// PreviewURLFunc returns a url that serves file index of a queued item.
type PreviewURLFunc func(viewerID, itemID string, index int) (string, error)

// Session is one viewer's optimistic store plus their upload queue.
type Session struct {
	viewer   *models.JWTClaims
	store    *timeline.Store
	queue    *upload.Queue
	preview  PreviewURLFunc
	logger   *zap.Logger
	lastSeen time.Time
}

// Viewer returns the claims the session acts as.
func (s *Session) Viewer() *models.JWTClaims { return s.viewer }

// Store exposes the working set.
func (s *Session) Store() *timeline.Store { return s.store }

// Queue exposes the upload queue.
func (s *Session) Queue() *upload.Queue { return s.queue }

// AddMemory shows the submission immediately and queues the real work.
// Media submissions become one placeholder per file, all sharing a fresh
// batch id; notes get a random style stamped into their metadata.
func (s *Session) AddMemory(in AddMemoryInput) (*AddMemoryResult, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMemory, in.Type)
	}
	if _, err := time.Parse(models.DateLayout, in.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidMemory)
	}
	if in.Type == models.MemoryNote && in.Content == "" {
		return nil, fmt.Errorf("%w: a note needs content", ErrInvalidMemory)
	}
	if in.Type != models.MemoryNote && len(in.Files) == 0 {
		return nil, ErrFilesRequired
	}

	meta := in.Metadata.Clone()
	meta[models.MetaBatchID] = uuid.NewString()
	if in.Type == models.MemoryNote && meta.StyleID() == "" {
		meta[models.MetaStyleID] = timeline.RandomNoteStyleID()
	}

	itemID := uuid.NewString()
	base := models.Memory{
		UserID: s.viewer.UserID,
		Date:   in.Date,
		Type:   in.Type,
		Author: s.viewer.Author(),
	}
	if in.Content != "" {
		content := in.Content
		base.Content = &content
	}

	var records []models.Memory
	if in.Type == models.MemoryNote {
		rec := base
		rec.Metadata = meta.Clone()
		records = append(records, s.store.AddOptimistic(rec))
	} else {
		for i, f := range in.Files {
			rec := base
			rec.Metadata = upload.Metadata(meta, f.Name, len(f.Data), f.ContentType)
			if s.preview != nil {
				url, err := s.preview(s.viewer.UserID, itemID, i)
				if err != nil {
					s.logger.Warn("preview url unavailable", zap.String("item_id", itemID), zap.Error(err))
				} else {
					rec.MediaURL = &url
				}
			}
			records = append(records, s.store.AddOptimistic(rec))
		}
	}

	item, err := s.queue.Enqueue(upload.Payload{
		ID:       itemID,
		Files:    in.Files,
		Date:     in.Date,
		Type:     in.Type,
		Content:  in.Content,
		Metadata: meta,
	})
	if err != nil {
		for _, rec := range records {
			_ = s.store.DeleteOptimistic(rec.ID)
		}
		return nil, err
	}
	return &AddMemoryResult{Item: item, Records: records}, nil
}

func (s *Session) onCompleted(ctx context.Context, item upload.Item) {
	if err := s.store.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after upload failed", zap.String("item_id", item.ID), zap.Error(err))
	}
}

func (s *Session) close() {
	s.queue.Stop()
	s.store.Close()
}

// MemoryWriter persists rows on behalf of an actor.
type MemoryWriter interface {
	CreateRecords(ctx context.Context, actor *models.JWTClaims, reqs []dto.CreateMemoryRequest) ([]models.Memory, error)
}
