package dto

// CreateCommentRequest is a guestbook entry submission.
type CreateCommentRequest struct {
	MemoryDate string `json:"memory_date" validate:"required,datetime=2006-01-02"`
	AuthorName string `json:"author_name" validate:"required,max=80"`
	Content    string `json:"content" validate:"required,max=2000"`
}
