package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
	"github.com/noah-isme/love-timeline-api/internal/timeline"
	"github.com/noah-isme/love-timeline-api/internal/upload"
	"github.com/noah-isme/love-timeline-api/pkg/config"
)

type fakeMemories struct {
	mu      sync.Mutex
	rows    []models.Memory
	actors  []string
	release chan struct{}
}

func (f *fakeMemories) List(ctx context.Context, query dto.MemoryQuery) ([]models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Memory(nil), f.rows...), nil
}

func (f *fakeMemories) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	return nil
}

func (f *fakeMemories) Like(ctx context.Context, id string) (int, error)   { return 1, nil }
func (f *fakeMemories) Unlike(ctx context.Context, id string) (int, error) { return 0, nil }

func (f *fakeMemories) CreateRecords(ctx context.Context, actor *models.JWTClaims, reqs []dto.CreateMemoryRequest) ([]models.Memory, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actors = append(f.actors, actor.UserID)
	var out []models.Memory
	for _, r := range reqs {
		m := models.Memory{
			ID:        fmt.Sprintf("srv-%d", len(f.rows)+1),
			UserID:    actor.UserID,
			Date:      r.Date,
			Type:      r.Type,
			MediaURL:  r.MediaURL,
			Content:   r.Content,
			Metadata:  r.Metadata,
			CreatedAt: time.Now(),
		}
		f.rows = append([]models.Memory{m}, f.rows...)
		out = append(out, m)
	}
	return out, nil
}

type noComments struct{}

func (noComments) List(ctx context.Context, date string) ([]models.Comment, error) { return nil, nil }
func (noComments) DeleteByDate(ctx context.Context, actor *models.JWTClaims, date string) (int64, error) {
	return 0, nil
}

type okBlobs struct{}

func (okBlobs) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}
func (okBlobs) PublicURL(key string) string { return "https://cdn.test/" + key }

var admin = &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, DisplayName: "Ana"}

func newManager(t *testing.T, mem *fakeMemories) *Manager {
	t.Helper()
	m := NewManager(Deps{
		Memories: mem,
		Comments: noComments{},
		Blobs:    okBlobs{},
		Preview: func(viewerID, itemID string, index int) (string, error) {
			return fmt.Sprintf("/preview/%s/%d", itemID, index), nil
		},
		Upload:   config.UploadConfig{CompletedGrace: time.Hour},
		Timeline: config.TimelineConfig{LikeDebounce: 10 * time.Millisecond, SessionIdleTTL: time.Minute},
	})
	t.Cleanup(m.Shutdown)
	return m
}

func TestAddNoteIsVisibleBeforePersistence(t *testing.T) {
	mem := &fakeMemories{release: make(chan struct{}), rows: []models.Memory{
		{ID: "old", Date: "2025-05-01", Type: models.MemoryNote, CreatedAt: time.Now().Add(-time.Hour)},
	}}
	m := newManager(t, mem)

	s, err := m.Get(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01", s.Store().ActiveDate())

	res, err := s.AddMemory(AddMemoryInput{Date: "2025-06-01", Type: models.MemoryNote, Content: "Happy New Year"})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.True(t, strings.HasPrefix(rec.ID, timeline.TempPrefix))
	assert.NotEmpty(t, rec.Metadata.BatchID())
	assert.NotEmpty(t, rec.Metadata.StyleID())
	assert.Equal(t, "Ana", rec.Author.Name)
	assert.Equal(t, "2025-06-01", s.Store().ActiveDate())
	assert.Equal(t, rec.ID, s.Store().Snapshot().Records[0].ID)

	close(mem.release)
	require.Eventually(t, func() bool {
		it, ok := s.Queue().Get(res.Item.ID)
		return ok && it.Status == upload.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		recs := s.Store().Snapshot().Records
		return len(recs) == 2 && recs[0].ID == "srv-2"
	}, 2*time.Second, 5*time.Millisecond)
	snap := s.Store().Snapshot()
	assert.Nil(t, snap.Records[0].MediaURL)
	assert.Equal(t, "Happy New Year", snap.Records[0].ContentText())
	assert.Equal(t, []string{"u1"}, mem.actors)
}

func TestAddPhotosCreatesPlaceholderPerFile(t *testing.T) {
	mem := &fakeMemories{release: make(chan struct{})}
	m := newManager(t, mem)
	s, err := m.Get(context.Background(), admin)
	require.NoError(t, err)

	res, err := s.AddMemory(AddMemoryInput{
		Date: "2025-06-01",
		Type: models.MemoryPDF,
		Files: []upload.File{
			{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("a")},
			{Name: "b.pdf", ContentType: "application/pdf", Data: []byte("b")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	batch := res.Records[0].Metadata.BatchID()
	assert.Equal(t, batch, res.Records[1].Metadata.BatchID())
	assert.Equal(t, fmt.Sprintf("/preview/%s/1", res.Item.ID), *res.Records[1].MediaURL)
	assert.Equal(t, "b.pdf", res.Records[1].Metadata[models.MetaOriginalFilename])

	f, ok := s.Queue().File(res.Item.ID, 1)
	require.True(t, ok)
	assert.Equal(t, "b.pdf", f.Name)
	close(mem.release)
}

func TestAddMemoryValidation(t *testing.T) {
	m := newManager(t, &fakeMemories{})
	s, err := m.Get(context.Background(), admin)
	require.NoError(t, err)

	_, err = s.AddMemory(AddMemoryInput{Date: "2025-06-01", Type: models.MemoryPhoto})
	assert.ErrorIs(t, err, ErrFilesRequired)
	_, err = s.AddMemory(AddMemoryInput{Date: "June 1", Type: models.MemoryNote, Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidMemory)
	_, err = s.AddMemory(AddMemoryInput{Date: "2025-06-01", Type: "sticker", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidMemory)
	_, err = s.AddMemory(AddMemoryInput{Date: "2025-06-01", Type: models.MemoryNote})
	assert.ErrorIs(t, err, ErrInvalidMemory)
	assert.Empty(t, s.Store().Snapshot().Records)
}

func TestManagerReusesAndEvictsSessions(t *testing.T) {
	m := newManager(t, &fakeMemories{})
	clock := time.Now()
	m.now = func() time.Time { return clock }

	first, err := m.Get(context.Background(), admin)
	require.NoError(t, err)
	again, err := m.Get(context.Background(), admin)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, m.Len())
	looked, ok := m.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, first, looked)

	assert.Zero(t, m.EvictIdle())
	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, m.EvictIdle())
	assert.Zero(t, m.Len())

	m.Shutdown()
	_, err = m.Get(context.Background(), admin)
	assert.ErrorIs(t, err, ErrClosed)
}
