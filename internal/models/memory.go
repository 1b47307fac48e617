package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the day-granularity layout memories are filed under.
const DateLayout = "2006-01-02"

// MemoryType enumerates the kinds of captured items.
type MemoryType string

const (
	MemoryPhoto MemoryType = "photo"
	MemoryVideo MemoryType = "video"
	MemoryNote  MemoryType = "note"
	MemoryAudio MemoryType = "audio"
	MemoryPDF   MemoryType = "pdf"
)

// Valid reports whether t is one of the known memory types.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryPhoto, MemoryVideo, MemoryNote, MemoryAudio, MemoryPDF:
		return true
	}
	return false
}

// Folder returns the storage folder blobs of type t are kept under.
func (t MemoryType) Folder() string {
	switch t {
	case MemoryPDF:
		return "pdfs"
	case MemoryVideo:
		return "videos"
	case MemoryAudio:
		return "audios"
	default:
		return "photos"
	}
}

// Well-known metadata keys.
const (
	MetaBatchID          = "batchId"
	MetaStyleID          = "styleId"
	MetaOriginalFilename = "original_filename"
	MetaSize             = "size"
	MetaMimeType         = "mime_type"
)

// Metadata is the open attribute bag stored as jsonb.
type Metadata map[string]interface{}

// Value implements driver.Valuer. The JSON is returned as a string because
// lib/pq would otherwise send []byte as bytea.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
	out := Metadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
	}
	*m = out
	return nil
}

// Clone returns a shallow copy that can be extended without touching m.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+3)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m Metadata) str(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// BatchID returns the batch correlation id, or "" when absent.
func (m Metadata) BatchID() string { return m.str(MetaBatchID) }

// StyleID returns the note style override, or "" when absent.
func (m Metadata) StyleID() string { return m.str(MetaStyleID) }

// Author is the denormalized display identity attached to a memory.
type Author struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Memory is a single dated item on the timeline.
type Memory struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Date      string     `db:"date" json:"date"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Type      MemoryType `db:"type" json:"type"`
	MediaURL  *string    `db:"media_url" json:"media_url"`
	Content   *string    `db:"content" json:"content"`
	Likes     int        `db:"likes" json:"likes"`
	Metadata  Metadata   `db:"metadata" json:"metadata"`

	AuthorName   *string `db:"author_name" json:"-"`
	AuthorAvatar *string `db:"author_avatar" json:"-"`
	Author       *Author `db:"-" json:"author,omitempty"`
}

// ResolveAuthor fills Author from the joined profile columns when unset.
func (m *Memory) ResolveAuthor() {
	if m.Author != nil || m.AuthorName == nil {
		return
	}
	m.Author = &Author{Name: *m.AuthorName}
	if m.AuthorAvatar != nil {
		m.Author.AvatarURL = *m.AuthorAvatar
	}
}

// ContentText returns the caption or "".
func (m *Memory) ContentText() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// MediaURLText returns the media url or "".
func (m *Memory) MediaURLText() string {
	if m.MediaURL == nil {
		return ""
	}
	return *m.MediaURL
}

// AuthorDisplayName returns the author name or "".
func (m *Memory) AuthorDisplayName() string {
	if m.Author != nil {
		return m.Author.Name
	}
	if m.AuthorName != nil {
		return *m.AuthorName
	}
	return ""
}

// NewMemory is the persistence payload for one row.
type NewMemory struct {
	UserID   string
	Date     string
	Type     MemoryType
	MediaURL *string
	Content  *string
	Metadata Metadata
}

// MemoryFilter narrows memory listings.
type MemoryFilter struct {
	Date string
	From string
	To   string
	Type MemoryType
}
