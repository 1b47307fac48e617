package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
)

type stubCommentRepo struct {
	rows []models.Comment
}

func (r *stubCommentRepo) Create(ctx context.Context, c models.Comment) (*models.Comment, error) {
	c.ID = "c-1"
	c.CreatedAt = time.Now()
	r.rows = append(r.rows, c)
	return &c, nil
}

func (r *stubCommentRepo) List(ctx context.Context, date string) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range r.rows {
		if date == "" || c.MemoryDate == date {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubCommentRepo) Delete(ctx context.Context, id string) error {
	for i, c := range r.rows {
		if c.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *stubCommentRepo) DeleteByDate(ctx context.Context, date string) (int64, error) {
	kept := r.rows[:0]
	var n int64
	for _, c := range r.rows {
		if c.MemoryDate == date {
			n++
			continue
		}
		kept = append(kept, c)
	}
	r.rows = kept
	return n, nil
}

func TestCommentServiceCreateDerivesAvatarSeed(t *testing.T) {
	repo := &stubCommentRepo{}
	svc := NewCommentService(repo, nil, nil)

	c, err := svc.Create(context.Background(), dto.CreateCommentRequest{MemoryDate: "2025-02-14", AuthorName: "  sari ", Content: "so sweet"})
	require.NoError(t, err)
	assert.Equal(t, "S", c.AvatarSeed)
	assert.Equal(t, "sari", c.AuthorName)

	_, err = svc.Create(context.Background(), dto.CreateCommentRequest{MemoryDate: "2025-02-14", AuthorName: "x", Content: "   "})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCommentServiceDeleteRequiresActor(t *testing.T) {
	repo := &stubCommentRepo{rows: []models.Comment{{ID: "c-1", MemoryDate: "2025-02-14"}, {ID: "c-2", MemoryDate: "2025-02-14"}}}
	svc := NewCommentService(repo, nil, nil)
	ctx := context.Background()
	actor := &models.JWTClaims{UserID: "u"}

	assert.ErrorIs(t, svc.Delete(ctx, nil, "c-1"), appErrors.ErrUnauthorized)
	require.NoError(t, svc.Delete(ctx, actor, "c-1"))
	assert.ErrorIs(t, svc.Delete(ctx, actor, "c-1"), appErrors.ErrNotFound)

	n, err := svc.DeleteByDate(ctx, actor, "2025-02-14")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestAvatarSeed(t *testing.T) {
	assert.Equal(t, "É", AvatarSeed("élise"))
	assert.Equal(t, "?", AvatarSeed(""))
}
