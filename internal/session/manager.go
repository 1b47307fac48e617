package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
	"github.com/noah-isme/love-timeline-api/internal/timeline"
	"github.com/noah-isme/love-timeline-api/internal/upload"
	"github.com/noah-isme/love-timeline-api/pkg/config"
)

// ErrClosed is returned once the manager has shut down.
var ErrClosed = errors.New("session manager closed")

// Memories is everything a session needs from the memory service.
type Memories interface {
	timeline.MemorySource
	MemoryWriter
}

// Metrics is the subset of the metrics service sessions report to.
type Metrics interface {
	upload.Metrics
	timeline.LikeMetrics
	AddSessions(delta int)
}

// Deps wires a Manager.
type Deps struct {
	Memories Memories
	Comments timeline.CommentSource
	Ledger   timeline.LikeLedger
	Blobs    upload.BlobStore
	Preview  PreviewURLFunc
	Metrics  Metrics
	Logger   *zap.Logger
	Upload   config.UploadConfig
	Timeline config.TimelineConfig
}

// Manager keeps one Session per viewer, created on first use and evicted
// after sitting idle with an empty queue.
type Manager struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager constructs a manager.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Timeline.SessionIdleTTL <= 0 {
		deps.Timeline.SessionIdleTTL = 2 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:     deps,
		logger:   deps.Logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the idle janitor until Shutdown.
func (m *Manager) Start() {
	interval := m.deps.Timeline.SessionIdleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.EvictIdle()
			}
		}
	}()
}

// Get returns the viewer's session, creating and loading it when needed.
func (m *Manager) Get(ctx context.Context, viewer *models.JWTClaims) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := m.sessions[viewer.UserID]; ok {
		s.lastSeen = m.now()
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s := m.build(viewer)
	if err := s.store.Refresh(ctx); err != nil {
		s.close()
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		s.close()
		return nil, ErrClosed
	}
	if existing, ok := m.sessions[viewer.UserID]; ok {
		// lost a race with a concurrent Get
		s.close()
		existing.lastSeen = m.now()
		return existing, nil
	}
	m.sessions[viewer.UserID] = s
	if m.deps.Metrics != nil {
		m.deps.Metrics.AddSessions(1)
	}
	m.logger.Info("session opened", zap.String("viewer", viewer.UserID))
	return s, nil
}

// Lookup returns an already open session without creating one.
func (m *Manager) Lookup(viewerID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[viewerID]
	return s, ok
}

func (m *Manager) build(viewer *models.JWTClaims) *Session {
	s := &Session{
		viewer:   viewer,
		preview:  m.deps.Preview,
		logger:   m.logger.With(zap.String("viewer", viewer.UserID)),
		lastSeen: m.now(),
	}

	var likeMetrics timeline.LikeMetrics
	var uploadMetrics upload.Metrics
	if m.deps.Metrics != nil {
		likeMetrics = m.deps.Metrics
		uploadMetrics = m.deps.Metrics
	}

	s.store = timeline.NewStore(m.deps.Memories, m.deps.Comments, m.deps.Ledger, timeline.StoreConfig{
		Viewer:       viewer,
		LikeDebounce: m.deps.Timeline.LikeDebounce,
		BatchWindow:  m.deps.Timeline.BatchWindow,
		Metrics:      likeMetrics,
		Logger:       s.logger,
	})

	writer := upload.RecordWriterFunc(func(ctx context.Context, reqs []dto.CreateMemoryRequest) ([]models.Memory, error) {
		return m.deps.Memories.CreateRecords(ctx, viewer, reqs)
	})
	s.queue = upload.NewQueue(m.deps.Blobs, writer, upload.Config{
		FileTimeout:    m.deps.Upload.FileTimeout,
		CompletedGrace: m.deps.Upload.CompletedGrace,
		MaxDimension:   m.deps.Upload.MaxDimension,
		JPEGQuality:    m.deps.Upload.JPEGQuality,
		BufferSize:     m.deps.Upload.BufferSize,
		OnCompleted:    s.onCompleted,
		Metrics:        uploadMetrics,
		Logger:         s.logger,
	})
	// queues outlive the janitor context so Shutdown can wait on in-flight items
	s.queue.Start(context.Background())
	return s
}

// EvictIdle closes sessions unused for longer than the idle TTL whose queues
// have nothing left to do.
func (m *Manager) EvictIdle() int {
	cutoff := m.now().Add(-m.deps.Timeline.SessionIdleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) && s.queue.Active() == 0 {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
		m.logger.Info("session evicted", zap.String("viewer", s.viewer.UserID))
	}
	if m.deps.Metrics != nil && len(idle) > 0 {
		m.deps.Metrics.AddSessions(-len(idle))
	}
	return len(idle)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops the janitor and closes every session. In-flight uploads are
// allowed to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	for _, s := range sessions {
		s.close()
	}
	if m.deps.Metrics != nil && len(sessions) > 0 {
		m.deps.Metrics.AddSessions(-len(sessions))
	}
}
