package dto

// EnqueueForm holds the non-file fields of a multipart add-memory submission.
type EnqueueForm struct {
	Date     string `form:"date" validate:"required,datetime=2006-01-02"`
	Type     string `form:"type" validate:"required,oneof=photo video note audio pdf"`
	Content  string `form:"content" validate:"max=5000"`
	Metadata string `form:"metadata" validate:"omitempty,json"`
}

// ActiveDateRequest switches the date a viewer is browsing.
type ActiveDateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// ProjectionQuery selects the slice of the projection to return.
type ProjectionQuery struct {
	Date string `form:"date" validate:"omitempty,datetime=2006-01-02"`
}

// ExportQuery selects the export encoding.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
