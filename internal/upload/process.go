package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/love-timeline-api/internal/dto"
	"github.com/noah-isme/love-timeline-api/internal/models"
)

// ErrUploadTimeout marks a file whose upload lost the race against FileTimeout.
var ErrUploadTimeout = errors.New("upload timed out")

// Outcome labels mirrored by the metrics service.
const (
	fileUploaded = "uploaded"
	fileFailed   = "failed"
	fileTimeout  = "timeout"
)

type fileResult struct {
	index       int
	url         string
	contentType string
	size        int
	err         error
}

func (q *Queue) process(ctx context.Context, item Item, files []File) error {
	if item.Type == models.MemoryNote {
		return q.persist(ctx, []dto.CreateMemoryRequest{q.request(item, nil, nil)})
	}
	if len(files) == 0 {
		return nil
	}

	results := q.uploadAll(ctx, item, files)

	var (
		reqs     []dto.CreateMemoryRequest
		firstErr error
	)
	for _, r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			q.logger.Warn("file upload failed",
				zap.String("item_id", item.ID),
				zap.String("file", files[r.index].Name),
				zap.Error(r.err),
			)
			continue
		}
		f := files[r.index]
		url := r.url
		req := q.request(item, &url, Metadata(item.Metadata, f.Name, r.size, r.contentType))
		reqs = append(reqs, req)
	}
	if len(reqs) == 0 {
		return fmt.Errorf("All file uploads failed. Last error: %s", firstErr.Error())
	}
	return q.persist(ctx, reqs)
}

// uploadAll settles every file independently; one failure never aborts siblings.
// Results keep the input order.
func (q *Queue) uploadAll(ctx context.Context, item Item, files []File) []fileResult {
	results := make([]fileResult, len(files))
	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = q.uploadOne(ctx, item.Type, i, files[i])
		}(i)
	}
	wg.Wait()
	return results
}

func (q *Queue) uploadOne(ctx context.Context, memoryType models.MemoryType, index int, f File) fileResult {
	data, contentType, compressed := q.compressor.Prepare(f)
	if compressed {
		q.metrics.ObserveCompression(len(f.Data), len(data))
	}
	key := StorageKey(memoryType, f.Name, contentType, compressed, q.now())

	uploadCtx, cancel := context.WithTimeout(ctx, q.cfg.FileTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- q.store.Upload(uploadCtx, key, data, contentType)
	}()

	var err error
	select {
	case err = <-done:
	case <-uploadCtx.Done():
		err = uploadCtx.Err()
	}
	if err != nil && errors.Is(uploadCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w (%s)", ErrUploadTimeout, formatTimeout(q.cfg.FileTimeout))
	}
	if err != nil {
		if errors.Is(err, ErrUploadTimeout) {
			q.metrics.ObserveUploadFile(fileTimeout)
		} else {
			q.metrics.ObserveUploadFile(fileFailed)
		}
		return fileResult{index: index, err: err}
	}
	q.metrics.ObserveUploadFile(fileUploaded)
	return fileResult{index: index, url: q.store.PublicURL(key), contentType: contentType, size: len(data)}
}

func (q *Queue) persist(ctx context.Context, reqs []dto.CreateMemoryRequest) error {
	created, err := q.records.CreateRecords(ctx, reqs)
	if err != nil {
		return fmt.Errorf("DB: %s", err.Error())
	}
	q.logger.Debug("memories persisted", zap.Int("count", len(created)))
	return nil
}

func (q *Queue) request(item Item, mediaURL *string, meta models.Metadata) dto.CreateMemoryRequest {
	if meta == nil {
		meta = item.Metadata.Clone()
	}
	var content *string
	if item.Content != "" {
		c := item.Content
		content = &c
	}
	return dto.CreateMemoryRequest{
		Date:     item.Date,
		Type:     item.Type,
		MediaURL: mediaURL,
		Content:  content,
		Metadata: meta,
	}
}

// Metadata merges the per-file attributes into a copy of base. size and
// contentType describe the bytes that were stored, after compression.
func Metadata(base models.Metadata, name string, size int, contentType string) models.Metadata {
	out := base.Clone()
	if out == nil {
		out = models.Metadata{}
	}
	out[models.MetaOriginalFilename] = name
	out[models.MetaSize] = size
	out[models.MetaMimeType] = contentType
	return out
}

func formatTimeout(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
