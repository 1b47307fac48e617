package dto

import "github.com/noah-isme/love-timeline-api/internal/models"

// CreateMemoryRequest is one row of a memory create call.
type CreateMemoryRequest struct {
	Date     string            `json:"date" validate:"required,datetime=2006-01-02"`
	Type     models.MemoryType `json:"type" validate:"required,oneof=photo video note audio pdf"`
	MediaURL *string           `json:"media_url" validate:"omitempty,max=2048"`
	Content  *string           `json:"content" validate:"omitempty,max=5000"`
	Metadata models.Metadata   `json:"metadata"`
}

// MemoryQuery captures listing filters from the query string.
type MemoryQuery struct {
	Date string `form:"date" validate:"omitempty,datetime=2006-01-02"`
	From string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Type string `form:"type" validate:"omitempty,oneof=photo video note audio pdf"`
}

// Filter converts the query into a repository filter.
func (q MemoryQuery) Filter() models.MemoryFilter {
	return models.MemoryFilter{Date: q.Date, From: q.From, To: q.To, Type: models.MemoryType(q.Type)}
}

// BatchDeleteRequest removes several memories at once.
type BatchDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// BatchDeleteResponse reports what a batch delete removed.
type BatchDeleteResponse struct {
	Deleted      int64 `json:"deleted"`
	BlobsRemoved int   `json:"blobs_removed"`
}

// LikeResponse carries the authoritative counter after a like call.
type LikeResponse struct {
	ID    string `json:"id"`
	Likes int    `json:"likes"`
}
