package timeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
)

type stubMemories struct {
	mu        sync.Mutex
	rows      []models.Memory
	deleted   []string
	likeCalls []string
	deleteErr error
	listErr   error
}

func (s *stubMemories) List(ctx context.Context, query dto.MemoryQuery) ([]models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.Memory(nil), s.rows...), nil
}

func (s *stubMemories) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, r := range s.rows {
		if r.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			break
		}
	}
	return nil
}

func (s *stubMemories) adjust(id string, delta int, call string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.likeCalls = append(s.likeCalls, call+":"+id)
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows[i].Likes += delta
			if s.rows[i].Likes < 0 {
				s.rows[i].Likes = 0
			}
			return s.rows[i].Likes, nil
		}
	}
	return 0, errors.New("not found")
}

func (s *stubMemories) Like(ctx context.Context, id string) (int, error) {
	return s.adjust(id, 1, "like")
}

func (s *stubMemories) Unlike(ctx context.Context, id string) (int, error) {
	return s.adjust(id, -1, "unlike")
}

func (s *stubMemories) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.likeCalls...)
}

func (s *stubMemories) deletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

type stubComments struct {
	mu          sync.Mutex
	rows        []models.Comment
	deletedDays []string
}

func (s *stubComments) List(ctx context.Context, date string) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Comment(nil), s.rows...), nil
}

func (s *stubComments) DeleteByDate(ctx context.Context, actor *models.JWTClaims, date string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedDays = append(s.deletedDays, date)
	return 1, nil
}

func (s *stubComments) days() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletedDays...)
}

type memLedger struct {
	mu    sync.Mutex
	liked map[string]bool
}

func (l *memLedger) SetLiked(ctx context.Context, viewerID, memoryID string, liked bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.liked == nil {
		l.liked = map[string]bool{}
	}
	if liked {
		l.liked[memoryID] = true
	} else {
		delete(l.liked, memoryID)
	}
	return nil
}

func (l *memLedger) Liked(ctx context.Context, viewerID string) (map[string]bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[string]bool{}
	for k, v := range l.liked {
		out[k] = v
	}
	return out, nil
}

type countingMetrics struct {
	mu      sync.Mutex
	results []string
}

func (m *countingMetrics) ObserveLikeConfirmation(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

var viewer = &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, DisplayName: "Ana"}

func newTestStore(t *testing.T, mem *stubMemories, com *stubComments, ledger LikeLedger, cfg StoreConfig) *Store {
	t.Helper()
	cfg.Viewer = viewer
	if cfg.LikeDebounce == 0 {
		cfg.LikeDebounce = 30 * time.Millisecond
	}
	s := NewStore(mem, com, ledger, cfg)
	require.NoError(t, s.Refresh(context.Background()))
	t.Cleanup(s.Close)
	return s
}

func seedRows() []models.Memory {
	return []models.Memory{
		{ID: "m2", Date: "2025-05-01", CreatedAt: base, Type: models.MemoryNote, Content: ptr("b"), Likes: 1},
		{ID: "m1", Date: "2025-05-01", CreatedAt: base.Add(-time.Hour), Type: models.MemoryNote, Content: ptr("a")},
		{ID: "m0", Date: "2025-04-01", CreatedAt: base.Add(-48 * time.Hour), Type: models.MemoryNote, Content: ptr("z")},
	}
}

func TestAddOptimisticSwitchesActiveDate(t *testing.T) {
	s := newTestStore(t, &stubMemories{rows: seedRows()}, &stubComments{}, nil, StoreConfig{})
	assert.Equal(t, "2025-05-01", s.ActiveDate())

	rec := s.AddOptimistic(models.Memory{Date: "2025-06-01", Type: models.MemoryNote, Content: ptr("new")})

	assert.True(t, strings.HasPrefix(rec.ID, TempPrefix))
	assert.Equal(t, "2025-06-01", s.ActiveDate())
	snap := s.Snapshot()
	require.NotEmpty(t, snap.Records)
	assert.Equal(t, rec.ID, snap.Records[0].ID)

	buckets := s.Project()
	assert.Equal(t, "2025-06-01", buckets[0].Date)
}

func TestDeleteOptimisticIsImmediateRegardlessOfNetwork(t *testing.T) {
	mem := &stubMemories{rows: seedRows(), deleteErr: errors.New("offline")}
	s := newTestStore(t, mem, &stubComments{}, nil, StoreConfig{})

	require.NoError(t, s.DeleteOptimistic("m1"))
	for _, r := range s.Snapshot().Records {
		assert.NotEqual(t, "m1", r.ID)
	}

	require.Eventually(t, func() bool { return len(mem.deletedIDs()) == 1 }, time.Second, 5*time.Millisecond)
	// a failed delete is not rolled back
	for _, r := range s.Snapshot().Records {
		assert.NotEqual(t, "m1", r.ID)
	}
	assert.ErrorIs(t, s.DeleteOptimistic("missing"), ErrRecordNotFound)
}

func TestDeleteLastRecordOfDateClearsComments(t *testing.T) {
	com := &stubComments{rows: []models.Comment{
		{ID: "c1", MemoryDate: "2025-04-01"},
		{ID: "c2", MemoryDate: "2025-05-01"},
	}}
	mem := &stubMemories{rows: seedRows(), deleteErr: errors.New("offline")}
	s := newTestStore(t, mem, com, nil, StoreConfig{})

	require.NoError(t, s.DeleteOptimistic("m0"))
	snap := s.Snapshot()
	require.Len(t, snap.Comments, 1)
	assert.Equal(t, "c2", snap.Comments[0].ID)
	require.Eventually(t, func() bool { return len(com.days()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"2025-04-01"}, com.days())

	require.NoError(t, s.DeleteOptimistic("m1"))
	s.Close()
	assert.Equal(t, []string{"2025-04-01"}, com.days())
}

func TestDeletePlaceholderStaysLocal(t *testing.T) {
	mem := &stubMemories{rows: seedRows()}
	s := newTestStore(t, mem, &stubComments{}, nil, StoreConfig{})

	rec := s.AddOptimistic(models.Memory{Date: "2025-05-01", Type: models.MemoryNote})
	require.NoError(t, s.DeleteOptimistic(rec.ID))
	s.Close()
	assert.Empty(t, mem.deletedIDs())
}

func TestRapidTogglesCollapseToOneCall(t *testing.T) {
	mem := &stubMemories{rows: seedRows()}
	ledger := &memLedger{}
	metrics := &countingMetrics{}
	s := newTestStore(t, mem, &stubComments{}, ledger, StoreConfig{Metrics: metrics})

	likes, err := s.LikeOptimistic("m1")
	require.NoError(t, err)
	assert.Equal(t, 1, likes)
	_, err = s.UnlikeOptimistic("m1")
	require.NoError(t, err)
	likes, err = s.LikeOptimistic("m1")
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	require.Eventually(t, func() bool { return len(mem.calls()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"like:m1"}, mem.calls())
	assert.True(t, s.Snapshot().Liked["m1"])

	liked, _ := ledger.Liked(context.Background(), "u1")
	assert.True(t, liked["m1"])
}

func TestToggleBackToConfirmedStateSkipsNetwork(t *testing.T) {
	mem := &stubMemories{rows: seedRows()}
	metrics := &countingMetrics{}
	s := newTestStore(t, mem, &stubComments{}, &memLedger{}, StoreConfig{Metrics: metrics})

	_, err := s.LikeOptimistic("m2")
	require.NoError(t, err)
	likes, err := s.UnlikeOptimistic("m2")
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	require.Eventually(t, func() bool {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		return len(metrics.results) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{LikeSkipped}, metrics.results)
	assert.Empty(t, mem.calls())
}

func TestLikesNeverNegative(t *testing.T) {
	s := newTestStore(t, &stubMemories{rows: seedRows()}, &stubComments{}, nil, StoreConfig{LikeDebounce: time.Hour})

	ops := []bool{false, false, true, false, false, true, true, false}
	for _, like := range ops {
		var (
			likes int
			err   error
		)
		if like {
			likes, err = s.LikeOptimistic("m1")
		} else {
			likes, err = s.UnlikeOptimistic("m1")
		}
		require.NoError(t, err)
		assert.GreaterOrEqual(t, likes, 0)
	}
	_, err := s.LikeOptimistic("nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepeatedLikeIsNoop(t *testing.T) {
	s := newTestStore(t, &stubMemories{rows: seedRows()}, &stubComments{}, nil, StoreConfig{LikeDebounce: time.Hour})

	first, err := s.LikeOptimistic("m2")
	require.NoError(t, err)
	second, err := s.LikeOptimistic("m2")
	require.NoError(t, err)
	assert.Equal(t, 2, first)
	assert.Equal(t, first, second)
}

func TestLikedFlagSurvivesNewStore(t *testing.T) {
	mem := &stubMemories{rows: seedRows()}
	ledger := &memLedger{}
	s := newTestStore(t, mem, &stubComments{}, ledger, StoreConfig{})
	_, err := s.LikeOptimistic("m0")
	require.NoError(t, err)
	s.Close()

	again := newTestStore(t, mem, &stubComments{}, ledger, StoreConfig{LikeDebounce: time.Hour})
	assert.True(t, again.Snapshot().Liked["m0"])

	likes, err := again.LikeOptimistic("m0")
	require.NoError(t, err)
	assert.Equal(t, 1, likes)
}

func TestRefreshReplacesOptimisticEntries(t *testing.T) {
	mem := &stubMemories{rows: seedRows()}
	s := newTestStore(t, mem, &stubComments{}, nil, StoreConfig{})
	s.AddOptimistic(models.Memory{Date: "2025-06-01", Type: models.MemoryNote})
	require.Len(t, s.Snapshot().Records, 4)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Len(t, s.Snapshot().Records, 3)

	mem.listErr = errors.New("down")
	assert.Error(t, s.Refresh(context.Background()))
	assert.Len(t, s.Snapshot().Records, 3)

	s.SetActiveDate("2025-04-01")
	assert.Equal(t, "2025-04-01", s.ActiveDate())
}

func likesOf(s *Store, id string) int {
	for _, r := range s.Snapshot().Records {
		if r.ID == id {
			return r.Likes
		}
	}
	return -1
}

func TestRefreshInsideDebounceWindowStillConfirms(t *testing.T) {
	mem := &stubMemories{rows: seedRows()}
	metrics := &countingMetrics{}
	s := newTestStore(t, mem, &stubComments{}, &memLedger{}, StoreConfig{LikeDebounce: 80 * time.Millisecond, Metrics: metrics})

	likes, err := s.LikeOptimistic("m1")
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 1, likesOf(s, "m1"))
	assert.True(t, s.Snapshot().Liked["m1"])

	require.Eventually(t, func() bool { return len(mem.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"like:m1"}, mem.calls())
	require.Eventually(t, func() bool {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		return len(metrics.results) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{LikeConfirmed}, metrics.results)
	require.Eventually(t, func() bool { return likesOf(s, "m1") == 1 }, time.Second, 5*time.Millisecond)
}

func TestLikesOnTwoRecordsBothConfirm(t *testing.T) {
	mem := &stubMemories{rows: seedRows()}
	s := newTestStore(t, mem, &stubComments{}, &memLedger{}, StoreConfig{LikeDebounce: 50 * time.Millisecond})

	_, err := s.LikeOptimistic("m0")
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = s.LikeOptimistic("m1")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(mem.calls()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"like:m0", "like:m1"}, mem.calls())
	require.Eventually(t, func() bool {
		return likesOf(s, "m0") == 1 && likesOf(s, "m1") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBackgroundAfterCloseIsDropped(t *testing.T) {
	s := newTestStore(t, &stubMemories{rows: seedRows()}, &stubComments{}, nil, StoreConfig{})
	s.Close()

	ran := make(chan struct{}, 1)
	s.background(func(ctx context.Context) { ran <- struct{}{} })
	select {
	case <-ran:
		t.Fatal("background work ran after Close")
	case <-time.After(20 * time.Millisecond):
	}
}
