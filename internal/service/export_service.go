package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/love-timeline-api/internal/timeline"
	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
	"github.com/noah-isme/love-timeline-api/pkg/export"
)

var exportHeaders = []string{"date", "time", "type", "author", "content", "media", "likes", "comments"}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered export ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders a projected timeline as CSV or PDF.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers get the defaults.
func NewExportService(logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Export renders buckets in the requested format.
func (s *ExportService) Export(buckets []timeline.DateBucket, rawFormat string) (*ExportResult, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}

	dataset := BuildDataset(buckets)
	var payload []byte
	switch format {
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset, "Our Timeline")
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.logger.Error("export render failed", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("love-timeline-%s.%s", s.now().UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}

// BuildDataset flattens buckets into one row per visual item. The comment
// count of a day is repeated on each of its rows.
func BuildDataset(buckets []timeline.DateBucket) export.Dataset {
	data := export.Dataset{Headers: exportHeaders}
	for _, b := range buckets {
		comments := strconv.Itoa(len(b.Comments))
		for _, item := range b.Items {
			author := ""
			if item.Author != nil {
				author = item.Author.Name
			}
			data.Rows = append(data.Rows, map[string]string{
				"date":     b.Date,
				"time":     item.CreatedAt.UTC().Format("15:04"),
				"type":     string(item.Type),
				"author":   author,
				"content":  item.Content,
				"media":    strings.Join(item.MediaURLs, " "),
				"likes":    strconv.Itoa(item.Likes),
				"comments": comments,
			})
		}
	}
	return data
}
