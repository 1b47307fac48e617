package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// LikeRepository remembers which memories a viewer has liked. The backend
// counter carries no viewer identity, so this ledger is what keeps a viewer
// from liking twice across sessions. Entries live in one Redis set per viewer;
// without Redis they are kept in process memory.
type LikeRepository struct {
	client *redis.Client

	mu    sync.RWMutex
	local map[string]map[string]struct{}
}

// NewLikeRepository constructs the ledger.
func NewLikeRepository(client *redis.Client) *LikeRepository {
	return &LikeRepository{client: client, local: make(map[string]map[string]struct{})}
}

func likeKey(viewerID string) string {
	return "likes:" + viewerID
}

// SetLiked records or clears the liked flag.
func (r *LikeRepository) SetLiked(ctx context.Context, viewerID, memoryID string, liked bool) error {
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		set := r.local[viewerID]
		if set == nil {
			set = make(map[string]struct{})
			r.local[viewerID] = set
		}
		if liked {
			set[memoryID] = struct{}{}
		} else {
			delete(set, memoryID)
		}
		return nil
	}

	var err error
	if liked {
		err = r.client.SAdd(ctx, likeKey(viewerID), memoryID).Err()
	} else {
		err = r.client.SRem(ctx, likeKey(viewerID), memoryID).Err()
	}
	if err != nil {
		return fmt.Errorf("redis like ledger %s: %w", viewerID, err)
	}
	return nil
}

// Liked returns the set of memory ids the viewer has liked.
func (r *LikeRepository) Liked(ctx context.Context, viewerID string) (map[string]bool, error) {
	out := make(map[string]bool)
	if r.client == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for id := range r.local[viewerID] {
			out[id] = true
		}
		return out, nil
	}

	ids, err := r.client.SMembers(ctx, likeKey(viewerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis like ledger %s: %w", viewerID, err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
