package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/love-timeline-api/internal/models"
)

const memoryColumns = `m.id, m.user_id, m.date::text AS date, m.created_at, m.type, m.media_url, m.content, m.likes, m.metadata,
       COALESCE(u.display_name, u.email) AS author_name, u.avatar_url AS author_avatar`

const memoryReturning = `RETURNING id, user_id, date::text AS date, created_at, type, media_url, content, likes, metadata`

// MemoryRepository persists timeline memories.
type MemoryRepository struct {
	db *sqlx.DB
}

// NewMemoryRepository constructs the repository.
func NewMemoryRepository(db *sqlx.DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// Create inserts one memory row.
func (r *MemoryRepository) Create(ctx context.Context, in models.NewMemory) (*models.Memory, error) {
	created, err := r.CreateBatch(ctx, []models.NewMemory{in})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

// CreateBatch inserts all rows in one transaction and bumps each author's
// contribution counter.
func (r *MemoryRepository) CreateBatch(ctx context.Context, items []models.NewMemory) ([]models.Memory, error) {
	if len(items) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin memory batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO memories (user_id, date, type, media_url, content, metadata)
	VALUES ($1, $2, $3, $4, $5, $6) ` + memoryReturning

	created := make([]models.Memory, 0, len(items))
	perUser := make(map[string]int)
	for _, item := range items {
		meta := item.Metadata
		if meta == nil {
			meta = models.Metadata{}
		}
		var m models.Memory
		if err := tx.QueryRowxContext(ctx, insert, item.UserID, item.Date, item.Type, item.MediaURL, item.Content, meta).StructScan(&m); err != nil {
			return nil, fmt.Errorf("insert memory: %w", err)
		}
		created = append(created, m)
		perUser[item.UserID]++
	}

	for userID, n := range perUser {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET contributions = contributions + $2 WHERE id = $1`, userID, n); err != nil {
			return nil, fmt.Errorf("update contributions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit memory batch: %w", err)
	}
	return created, nil
}

// GetByID returns one memory with its author joined.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories m LEFT JOIN users u ON u.id = m.user_id WHERE m.id = $1`
	var m models.Memory
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		return nil, err
	}
	m.ResolveAuthor()
	return &m, nil
}

// List returns memories newest first.
func (r *MemoryRepository) List(ctx context.Context, filter models.MemoryFilter) ([]models.Memory, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + memoryColumns + ` FROM memories m LEFT JOIN users u ON u.id = m.user_id`)
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)

	if filter.Date != "" {
		args = append(args, filter.Date)
		conditions = append(conditions, fmt.Sprintf("m.date = $%d", len(args)))
	}
	if filter.From != "" {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("m.date >= $%d", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("m.date <= $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("m.type = $%d", len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY m.created_at DESC")

	var records []models.Memory
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	for i := range records {
		records[i].ResolveAuthor()
	}
	return records, nil
}

// Delete removes one memory and returns its media url, if any.
func (r *MemoryRepository) Delete(ctx context.Context, id string) (*string, error) {
	var mediaURL *string
	if err := r.db.GetContext(ctx, &mediaURL, `DELETE FROM memories WHERE id = $1 RETURNING media_url`, id); err != nil {
		return nil, err
	}
	return mediaURL, nil
}

// MediaURLs returns the non-null media urls of the given memories.
func (r *MemoryRepository) MediaURLs(ctx context.Context, ids []string) ([]string, error) {
	var urls []string
	const query = `SELECT media_url FROM memories WHERE id = ANY($1) AND media_url IS NOT NULL`
	if err := r.db.SelectContext(ctx, &urls, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select media urls: %w", err)
	}
	return urls, nil
}

// DeleteMany removes the given memories and reports how many rows went away.
func (r *MemoryRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check memory delete rows: %w", err)
	}
	return affected, nil
}

// IncrementLikes atomically adds one like and returns the new count.
func (r *MemoryRepository) IncrementLikes(ctx context.Context, id string) (int, error) {
	return r.adjustLikes(ctx, `UPDATE memories SET likes = likes + 1 WHERE id = $1 RETURNING likes`, id)
}

// DecrementLikes atomically removes one like, never going below zero.
func (r *MemoryRepository) DecrementLikes(ctx context.Context, id string) (int, error) {
	return r.adjustLikes(ctx, `UPDATE memories SET likes = GREATEST(likes - 1, 0) WHERE id = $1 RETURNING likes`, id)
}

func (r *MemoryRepository) adjustLikes(ctx context.Context, query, id string) (int, error) {
	var likes int
	if err := r.db.GetContext(ctx, &likes, query, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("adjust likes: %w", err)
	}
	return likes, nil
}
