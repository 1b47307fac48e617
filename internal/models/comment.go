package models

import "time"

// Comment is a guestbook entry attached to a calendar date.
type Comment struct {
	ID         string    `db:"id" json:"id"`
	MemoryDate string    `db:"memory_date" json:"memory_date"`
	AuthorName string    `db:"author_name" json:"author_name"`
	AvatarSeed string    `db:"avatar_seed" json:"avatar_seed"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
