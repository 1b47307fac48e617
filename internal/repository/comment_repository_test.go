package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/love-timeline-api/internal/models"
)

var commentRowColumns = []string{"id", "memory_date", "author_name", "avatar_seed", "content", "created_at"}

func TestCommentRepositoryCreateAndList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO comments")).
		WithArgs("2025-02-14", "Sari", "S", "so sweet").
		WillReturnRows(sqlmock.NewRows(commentRowColumns).AddRow("c-1", "2025-02-14", "Sari", "S", "so sweet", now))
	created, err := repo.Create(context.Background(), models.Comment{MemoryDate: "2025-02-14", AuthorName: "Sari", AvatarSeed: "S", Content: "so sweet"})
	require.NoError(t, err)
	assert.Equal(t, "c-1", created.ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM comments WHERE memory_date = $1")).
		WithArgs("2025-02-14").
		WillReturnRows(sqlmock.NewRows(commentRowColumns).AddRow("c-1", "2025-02-14", "Sari", "S", "so sweet", now))
	list, err := repo.List(context.Background(), "2025-02-14")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM comments WHERE id = $1")).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "c-1"), sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM comments WHERE memory_date = $1")).
		WithArgs("2025-02-14").
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.DeleteByDate(context.Background(), "2025-02-14")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
