package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
	"github.com/noah-isme/love-timeline-api/pkg/jobs"
)

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

var (
	// ErrItemNotFound is returned for unknown item ids.
	ErrItemNotFound = errors.New("queue item not found")
	// ErrNotDismissable is returned when dismissing an item that is still in flight.
	ErrNotDismissable = errors.New("only completed or failed items can be dismissed")
	// ErrQueueStopped is returned by Enqueue after Stop.
	ErrQueueStopped = errors.New("upload queue stopped")
	// ErrDuplicateItem is returned when a caller-supplied id is already queued.
	ErrDuplicateItem = errors.New("queue item already exists")
)

// File is a local blob waiting to be uploaded.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileInfo describes a queued file without its bytes.
type FileInfo struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Payload is what a caller submits to create one or more memories. ID is
// optional; callers that need the item id up front may supply a unique one.
type Payload struct {
	ID       string
	Files    []File
	Date     string
	Type     models.MemoryType
	Content  string
	Metadata models.Metadata
}

// Item is a snapshot of a queued unit of work.
type Item struct {
	ID        string            `json:"id"`
	Files     []FileInfo        `json:"files"`
	Date      string            `json:"date"`
	Type      models.MemoryType `json:"type"`
	Content   string            `json:"content,omitempty"`
	Metadata  models.Metadata   `json:"metadata,omitempty"`
	Status    Status            `json:"status"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BlobStore is the storage side of the pipeline.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// RecordWriter persists memory rows in one call.
type RecordWriter interface {
	CreateRecords(ctx context.Context, reqs []dto.CreateMemoryRequest) ([]models.Memory, error)
}

// RecordWriterFunc adapts a function to RecordWriter.
type RecordWriterFunc func(ctx context.Context, reqs []dto.CreateMemoryRequest) ([]models.Memory, error)

// CreateRecords implements RecordWriter.
func (f RecordWriterFunc) CreateRecords(ctx context.Context, reqs []dto.CreateMemoryRequest) ([]models.Memory, error) {
	return f(ctx, reqs)
}

// Metrics receives pipeline observations.
type Metrics interface {
	ObserveUploadItem(memoryType, status string, duration time.Duration)
	ObserveUploadFile(outcome string)
	ObserveCompression(before, after int)
	AddQueueDepth(delta int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveUploadItem(string, string, time.Duration) {}
func (nopMetrics) ObserveUploadFile(string)                        {}
func (nopMetrics) ObserveCompression(int, int)                     {}
func (nopMetrics) AddQueueDepth(int)                               {}

// Config tunes a Queue.
type Config struct {
	FileTimeout    time.Duration
	CompletedGrace time.Duration
	MaxDimension   int
	JPEGQuality    int
	BufferSize     int
	// OnCompleted runs after an item completes, before its removal is scheduled.
	OnCompleted func(ctx context.Context, item Item)
	Metrics     Metrics
	Logger      *zap.Logger
}

type entry struct {
	item  Item
	files []File
}

// Queue serializes background creation of memories. Items are drained by a
// single worker, oldest pending first, so at most one is uploading at a time.
type Queue struct {
	store      BlobStore
	records    RecordWriter
	compressor *Compressor
	cfg        Config
	logger     *zap.Logger
	metrics    Metrics
	worker     *jobs.Queue
	now        func() time.Time

	mu      sync.Mutex
	entries []*entry
	timers  map[string]*time.Timer
	stopped bool
}

// NewQueue builds an idle queue; call Start before enqueueing.
func NewQueue(store BlobStore, records RecordWriter, cfg Config) *Queue {
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = 30 * time.Second
	}
	if cfg.CompletedGrace <= 0 {
		cfg.CompletedGrace = 5 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}

	q := &Queue{
		store:      store,
		records:    records,
		compressor: NewCompressor(cfg.MaxDimension, cfg.JPEGQuality),
		cfg:        cfg,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		now:        time.Now,
		timers:     make(map[string]*time.Timer),
	}
	q.worker = jobs.NewQueue("upload", q.drainOne, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.BufferSize,
		Logger:     cfg.Logger,
	})
	return q
}

// Start begins draining.
func (q *Queue) Start(ctx context.Context) {
	q.worker.Start(ctx)
}

// Stop halts future scheduling. An item already uploading is allowed to
// finish; pending items stay pending.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	q.worker.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	pending := 0
	for _, e := range q.entries {
		if e.item.Status == StatusPending {
			pending++
		}
	}
	q.metrics.AddQueueDepth(-pending)
}

// Enqueue appends a pending item. The queue does not reject non-note
// payloads without files; they complete with zero records.
func (q *Queue) Enqueue(p Payload) (Item, error) {
	now := q.now().UTC()
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	e := &entry{
		item: Item{
			ID:        id,
			Date:      p.Date,
			Type:      p.Type,
			Content:   p.Content,
			Metadata:  p.Metadata,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		files: p.Files,
	}
	e.item.Files = make([]FileInfo, len(p.Files))
	for i, f := range p.Files {
		e.item.Files[i] = FileInfo{Name: f.Name, ContentType: f.ContentType, Size: len(f.Data)}
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return Item{}, ErrQueueStopped
	}
	if q.findLocked(id) != nil {
		q.mu.Unlock()
		return Item{}, ErrDuplicateItem
	}
	q.entries = append(q.entries, e)
	snapshot := e.item.clone()
	q.mu.Unlock()

	if err := q.worker.Enqueue(jobs.Job{ID: snapshot.ID, Type: string(p.Type)}); err != nil {
		q.mu.Lock()
		q.removeLocked(snapshot.ID)
		q.mu.Unlock()
		return Item{}, ErrQueueStopped
	}
	q.metrics.AddQueueDepth(1)
	return snapshot, nil
}

// Items returns a snapshot of every visible item in insertion order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.item.clone()
	}
	return out
}

// Active counts items that are pending or uploading.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.entries {
		if e.item.Status == StatusPending || e.item.Status == StatusUploading {
			n++
		}
	}
	return n
}

// Get returns one item.
func (q *Queue) Get(id string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e := q.findLocked(id); e != nil {
		return e.item.clone(), true
	}
	return Item{}, false
}

// Dismiss removes a completed or failed item.
func (q *Queue) Dismiss(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.findLocked(id)
	if e == nil {
		return ErrItemNotFound
	}
	if e.item.Status != StatusCompleted && e.item.Status != StatusError {
		return ErrNotDismissable
	}
	q.removeLocked(id)
	return nil
}

// File returns a queued file for local preview while it is still held.
func (q *Queue) File(id string, index int) (File, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.findLocked(id)
	if e == nil || index < 0 || index >= len(e.files) {
		return File{}, false
	}
	return e.files[index], true
}

// drainOne is the worker handler: each job is one scheduling tick that takes
// the oldest pending item.
func (q *Queue) drainOne(ctx context.Context, _ jobs.Job) error {
	q.mu.Lock()
	var e *entry
	for _, candidate := range q.entries {
		if candidate.item.Status == StatusPending {
			e = candidate
			break
		}
	}
	if e == nil {
		q.mu.Unlock()
		return nil
	}
	q.setStatusLocked(e, StatusUploading, "")
	item := e.item.clone()
	files := e.files
	q.mu.Unlock()
	q.metrics.AddQueueDepth(-1)

	start := q.now()
	err := q.process(ctx, item, files)
	elapsed := q.now().Sub(start)

	if err != nil {
		q.mu.Lock()
		q.setStatusLocked(e, StatusError, err.Error())
		q.mu.Unlock()
		q.metrics.ObserveUploadItem(string(item.Type), string(StatusError), elapsed)
		return err
	}

	q.mu.Lock()
	q.setStatusLocked(e, StatusCompleted, "")
	done := e.item.clone()
	q.mu.Unlock()
	q.metrics.ObserveUploadItem(string(item.Type), string(StatusCompleted), elapsed)

	if q.cfg.OnCompleted != nil {
		q.cfg.OnCompleted(ctx, done)
	}
	q.scheduleRemoval(done.ID)
	return nil
}

func (q *Queue) scheduleRemoval(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.timers[id] = time.AfterFunc(q.cfg.CompletedGrace, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if e := q.findLocked(id); e != nil && e.item.Status == StatusCompleted {
			q.removeLocked(id)
		}
		delete(q.timers, id)
	})
}

// setStatusLocked only moves forward along pending -> uploading -> completed|error.
func (q *Queue) setStatusLocked(e *entry, next Status, errMsg string) {
	switch {
	case e.item.Status == StatusPending && next == StatusUploading:
	case e.item.Status == StatusUploading && (next == StatusCompleted || next == StatusError):
	default:
		q.logger.Error("illegal queue transition", zap.String("item_id", e.item.ID), zap.String("from", string(e.item.Status)), zap.String("to", string(next)))
		return
	}
	e.item.Status = next
	e.item.Error = errMsg
	e.item.UpdatedAt = q.now().UTC()
	if next == StatusCompleted || next == StatusError {
		// bytes are only needed for previews until the item settles
		e.files = nil
	}
}

func (q *Queue) findLocked(id string) *entry {
	for _, e := range q.entries {
		if e.item.ID == id {
			return e
		}
	}
	return nil
}

func (q *Queue) removeLocked(id string) {
	for i, e := range q.entries {
		if e.item.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
}

func (it Item) clone() Item {
	out := it
	out.Files = append([]FileInfo(nil), it.Files...)
	if it.Metadata != nil {
		out.Metadata = it.Metadata.Clone()
	}
	return out
}
