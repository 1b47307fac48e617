package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
)

type mapCache struct {
	data     map[string][]byte
	ttls     map[string]time.Duration
	patterns []string
	getErr   error
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.getErr != nil {
		return c.getErr
	}
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.ttls[key] = ttl
	return nil
}

func (c *mapCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	return nil
}

func TestCacheServiceHitAndMiss(t *testing.T) {
	repo := newMapCache()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()

	var out []string
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "k", []string{"a", "b"}, 0))
	assert.Equal(t, 5*time.Minute, repo.ttls["k"])

	hit, err = svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, out)

	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.CacheHits)
	assert.EqualValues(t, 1, snap.CacheMisses)

	require.NoError(t, svc.Invalidate(ctx, "love-timeline:memories:*"))
	assert.Equal(t, []string{"love-timeline:memories:*"}, repo.patterns)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newMapCache()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var out string
	hit, err := svc.Get(context.Background(), "k", &out)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMapCache()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	assert.False(t, svc.Enabled())

	require.NoError(t, svc.Set(context.Background(), "k", "v", 0))
	assert.Empty(t, repo.data)

	var nilSvc *CacheService
	hit, err := nilSvc.Get(context.Background(), "k", new(string))
	assert.False(t, hit)
	assert.NoError(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "love-timeline:memories:-:2025-06-01", Key("memories", "", "2025-06-01"))
}
