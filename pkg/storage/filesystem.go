package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrInvalidKey is returned for keys that are empty or escape the bucket.
var ErrInvalidKey = errors.New("invalid storage key")

// LocalStorage is a blob store keeping objects on disk under one bucket
// directory and addressing them by public URL.
type LocalStorage struct {
	baseDir    string
	bucket     string
	publicBase string
}

// NewLocalStorage ensures the bucket directory exists and returns a handle.
func NewLocalStorage(baseDir, bucket, publicBaseURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./media"
	}
	if bucket == "" {
		bucket = "LoveTimelineMedias"
	}
	root := filepath.Join(baseDir, bucket)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket directory: %w", err)
	}
	return &LocalStorage{
		baseDir:    root,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Bucket returns the bucket name embedded in public URLs.
func (s *LocalStorage) Bucket() string {
	return s.bucket
}

// Upload writes data under key. The write goes through a temp file so readers
// never observe a partial object. contentType is advisory; objects are sniffed
// when served.
func (s *LocalStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create object file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write object %s (%s): %w", key, contentType, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close object file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit object: %w", err)
	}
	return nil
}

// PublicURL returns the dereferenceable URL for key.
func (s *LocalStorage) PublicURL(key string) string {
	return s.publicBase + "/" + s.bucket + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL extracts the object key from a URL produced by PublicURL. It
// matches on the bucket segment so URLs minted under an older base still resolve.
func (s *LocalStorage) KeyFromURL(rawURL string) (string, bool) {
	marker := s.bucket + "/"
	idx := strings.Index(rawURL, marker)
	if idx < 0 {
		return "", false
	}
	key := rawURL[idx+len(marker):]
	if q := strings.IndexAny(key, "?#"); q >= 0 {
		key = key[:q]
	}
	if key == "" {
		return "", false
	}
	return key, true
}

// Remove deletes the given objects. Missing objects are not an error.
func (s *LocalStorage) Remove(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := s.resolve(key)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("delete object %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Open returns a read-only handle for the object along with its sniffed MIME type.
func (s *LocalStorage) Open(key string) (*os.File, string, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}
	mtype, err := mimetype.DetectFile(target)
	if err != nil {
		return nil, "", fmt.Errorf("open object: %w", err)
	}
	file, err := os.Open(target)
	if err != nil {
		return nil, "", fmt.Errorf("open object: %w", err)
	}
	return file, mtype.String(), nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(cleaned)), nil
}
