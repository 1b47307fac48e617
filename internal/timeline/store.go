package timeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
	"github.com/noah-isme/love-timeline-api/pkg/debounce"
)

// TempPrefix marks records that exist only locally.
const TempPrefix = "temp-"

// ErrRecordNotFound is returned when an id is not in the working set.
var ErrRecordNotFound = errors.New("memory not in working set")

// Like confirmation outcomes.
const (
	LikeConfirmed = "confirmed"
	LikeSkipped   = "skipped"
	LikeFailed    = "failed"
)

// MemorySource is the authoritative memory API.
type MemorySource interface {
	List(ctx context.Context, query dto.MemoryQuery) ([]models.Memory, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
	Like(ctx context.Context, id string) (int, error)
	Unlike(ctx context.Context, id string) (int, error)
}

// CommentSource is the authoritative comment API.
type CommentSource interface {
	List(ctx context.Context, date string) ([]models.Comment, error)
	DeleteByDate(ctx context.Context, actor *models.JWTClaims, date string) (int64, error)
}

// LikeLedger durably remembers what a viewer liked.
type LikeLedger interface {
	SetLiked(ctx context.Context, viewerID, memoryID string, liked bool) error
	Liked(ctx context.Context, viewerID string) (map[string]bool, error)
}

// LikeMetrics observes debounced like confirmations.
type LikeMetrics interface {
	ObserveLikeConfirmation(result string)
}

// StoreConfig wires a Store.
type StoreConfig struct {
	Viewer       *models.JWTClaims
	LikeDebounce time.Duration
	BatchWindow  time.Duration
	Metrics      LikeMetrics
	Logger       *zap.Logger
}

// Snapshot is a consistent copy of the working set.
type Snapshot struct {
	ActiveDate string           `json:"active_date"`
	Records    []models.Memory  `json:"records"`
	Comments   []models.Comment `json:"comments"`
	Liked      map[string]bool  `json:"liked"`
}

// Store is a viewer's working set of memories. Mutations apply locally first
// and are persisted in the background. A failed background write is logged
// and left as is; the next Refresh replaces everything.
type Store struct {
	memories  MemorySource
	comments  CommentSource
	ledger    LikeLedger
	viewer    *models.JWTClaims
	window    time.Duration
	metrics   LikeMetrics
	logger    *zap.SugaredLogger
	debouncer *debounce.Debouncer
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	mu         sync.RWMutex
	records    []models.Memory
	notes      []models.Comment
	liked      map[string]bool
	confirmed  map[string]bool
	loaded     bool
	closed     bool
	activeDate string
}

// NewStore builds an empty store; call Refresh to load it.
func NewStore(memories MemorySource, comments CommentSource, ledger LikeLedger, cfg StoreConfig) *Store {
	if cfg.LikeDebounce <= 0 {
		cfg.LikeDebounce = time.Second
	}
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = DefaultBatchWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		memories:  memories,
		comments:  comments,
		ledger:    ledger,
		viewer:    cfg.Viewer,
		window:    cfg.BatchWindow,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.Sugar(),
		debouncer: debounce.New(cfg.LikeDebounce),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		liked:     map[string]bool{},
		confirmed: map[string]bool{},
	}
}

func (s *Store) viewerID() string {
	if s.viewer == nil {
		return ""
	}
	return s.viewer.UserID
}

// Refresh replaces the working set with the authoritative data. The like
// ledger is read on the first load only; after that the in-memory flags are
// authoritative and toggles still waiting for confirmation are overlaid on
// the server counters.
func (s *Store) Refresh(ctx context.Context) error {
	records, err := s.memories.List(ctx, dto.MemoryQuery{})
	if err != nil {
		return err
	}
	comments, err := s.comments.List(ctx, "")
	if err != nil {
		return err
	}

	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()

	var liked map[string]bool
	if !loaded && s.ledger != nil {
		if liked, err = s.ledger.Liked(ctx, s.viewerID()); err != nil {
			s.logger.Warnw("like ledger unavailable", "viewer", s.viewerID(), "error", err)
			liked = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.loaded = true
		for id, v := range liked {
			if _, touched := s.liked[id]; !touched {
				s.liked[id] = v
				s.confirmed[id] = v
			}
		}
	}
	for i := range records {
		id := records[i].ID
		if s.liked[id] == s.confirmed[id] {
			continue
		}
		if s.liked[id] {
			records[i].Likes++
		} else if records[i].Likes > 0 {
			records[i].Likes--
		}
	}
	s.records = records
	s.notes = comments
	if s.activeDate == "" && len(records) > 0 {
		s.activeDate = records[0].Date
	}
	return nil
}

// AddOptimistic prepends rec, assigning a placeholder id when it has none,
// and moves the active date to rec's date.
func (s *Store) AddOptimistic(rec models.Memory) models.Memory {
	if rec.ID == "" {
		rec.ID = TempPrefix + uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if rec.Metadata == nil {
		rec.Metadata = models.Metadata{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]models.Memory{rec}, s.records...)
	s.activeDate = rec.Date
	return rec
}

// DeleteOptimistic removes id immediately. When it was the last record of its
// date that date's comments go too. Server-side deletes run in the background.
func (s *Store) DeleteOptimistic(id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.records {
		if s.records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrRecordNotFound
	}
	date := s.records[idx].Date
	s.records = append(s.records[:idx:idx], s.records[idx+1:]...)

	emptied := true
	for _, r := range s.records {
		if r.Date == date {
			emptied = false
			break
		}
	}
	if emptied {
		kept := s.notes[:0:0]
		for _, c := range s.notes {
			if c.MemoryDate != date {
				kept = append(kept, c)
			}
		}
		s.notes = kept
	}
	delete(s.liked, id)
	delete(s.confirmed, id)
	s.mu.Unlock()

	s.debouncer.Cancel(id)

	if !strings.HasPrefix(id, TempPrefix) {
		s.background(func(ctx context.Context) {
			if err := s.memories.Delete(ctx, s.viewer, id); err != nil {
				s.logger.Warnw("background memory delete failed", "memory_id", id, "error", err)
				return
			}
			s.refreshQuietly(ctx)
		})
	}
	if emptied {
		s.background(func(ctx context.Context) {
			if _, err := s.comments.DeleteByDate(ctx, s.viewer, date); err != nil {
				s.logger.Warnw("background comment cleanup failed", "date", date, "error", err)
			}
		})
	}
	return nil
}

// LikeOptimistic bumps the counter once per viewer and schedules a debounced
// confirmation. It returns the local counter.
func (s *Store) LikeOptimistic(id string) (int, error) {
	return s.toggle(id, true)
}

// UnlikeOptimistic reverses a like; the counter never drops below zero.
func (s *Store) UnlikeOptimistic(id string) (int, error) {
	return s.toggle(id, false)
}

func (s *Store) toggle(id string, like bool) (int, error) {
	s.mu.Lock()
	rec := s.findLocked(id)
	if rec == nil {
		s.mu.Unlock()
		return 0, ErrRecordNotFound
	}
	if s.liked[id] == like {
		likes := rec.Likes
		s.mu.Unlock()
		return likes, nil
	}
	if like {
		rec.Likes++
	} else if rec.Likes > 0 {
		rec.Likes--
	}
	s.liked[id] = like
	likes := rec.Likes
	s.mu.Unlock()

	if s.ledger != nil {
		if err := s.ledger.SetLiked(s.ctx, s.viewerID(), id, like); err != nil {
			s.logger.Warnw("like ledger write failed", "memory_id", id, "error", err)
		}
	}
	s.debouncer.Debounce(id, func() {
		s.background(func(ctx context.Context) { s.confirmLike(ctx, id) })
	})
	return likes, nil
}

// confirmLike sends the final toggle state unless the server already has it.
func (s *Store) confirmLike(ctx context.Context, id string) {
	s.mu.RLock()
	final := s.liked[id]
	confirmed := s.confirmed[id]
	s.mu.RUnlock()

	if final == confirmed || strings.HasPrefix(id, TempPrefix) {
		s.observeLike(LikeSkipped)
		return
	}

	var err error
	if final {
		_, err = s.memories.Like(ctx, id)
	} else {
		_, err = s.memories.Unlike(ctx, id)
	}
	if err != nil {
		s.observeLike(LikeFailed)
		s.logger.Warnw("like confirmation failed", "memory_id", id, "liked", final, "error", err)
		return
	}
	s.mu.Lock()
	s.confirmed[id] = final
	s.mu.Unlock()
	s.observeLike(LikeConfirmed)
	s.refreshQuietly(ctx)
}

func (s *Store) observeLike(result string) {
	if s.metrics != nil {
		s.metrics.ObserveLikeConfirmation(result)
	}
}

func (s *Store) refreshQuietly(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warnw("timeline refresh failed", "viewer", s.viewerID(), "error", err)
	}
}

// background runs fn detached from the caller; Close waits for it. Work
// scheduled after Close has started waiting is dropped.
func (s *Store) background(fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.bg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.bg.Done()
		fn(s.ctx)
	}()
}

func (s *Store) findLocked(id string) *models.Memory {
	for i := range s.records {
		if s.records[i].ID == id {
			return &s.records[i]
		}
	}
	return nil
}

// Snapshot copies the working set.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	liked := make(map[string]bool, len(s.liked))
	for k, v := range s.liked {
		if v {
			liked[k] = true
		}
	}
	return Snapshot{
		ActiveDate: s.activeDate,
		Records:    append([]models.Memory(nil), s.records...),
		Comments:   append([]models.Comment(nil), s.notes...),
		Liked:      liked,
	}
}

// Project renders the current working set.
func (s *Store) Project() []DateBucket {
	snap := s.Snapshot()
	return Project(snap.Records, snap.Comments, ProjectOptions{BatchWindow: s.window, Liked: snap.Liked})
}

// ActiveDate returns the date being browsed.
func (s *Store) ActiveDate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeDate
}

// SetActiveDate changes the date being browsed.
func (s *Store) SetActiveDate(date string) {
	s.mu.Lock()
	s.activeDate = date
	s.mu.Unlock()
}

// Close flushes pending like confirmations and waits for background work.
func (s *Store) Close() {
	s.debouncer.Flush()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.debouncer.Stop()
	s.bg.Wait()
	s.cancel()
}
