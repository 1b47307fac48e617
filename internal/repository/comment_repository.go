package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/love-timeline-api/internal/models"
)

const commentColumns = `id, memory_date::text AS memory_date, author_name, avatar_seed, content, created_at`

// CommentRepository persists guestbook comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment and returns the stored row.
func (r *CommentRepository) Create(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	query := `INSERT INTO comments (memory_date, author_name, avatar_seed, content)
	VALUES ($1, $2, $3, $4) RETURNING ` + commentColumns
	var out models.Comment
	if err := r.db.GetContext(ctx, &out, query, comment.MemoryDate, comment.AuthorName, comment.AvatarSeed, comment.Content); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &out, nil
}

// List returns comments oldest first, optionally for one date.
func (r *CommentRepository) List(ctx context.Context, date string) ([]models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments`
	args := []interface{}{}
	if date != "" {
		query += ` WHERE memory_date = $1`
		args = append(args, date)
	}
	query += ` ORDER BY created_at ASC`

	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, args...); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Delete removes one comment.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check comment delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByDate removes every comment filed under date.
func (r *CommentRepository) DeleteByDate(ctx context.Context, date string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE memory_date = $1`, date)
	if err != nil {
		return 0, fmt.Errorf("delete comments by date: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check comment delete rows: %w", err)
	}
	return affected, nil
}
