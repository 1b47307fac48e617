package upload

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/love-timeline-api/internal/models"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// StorageKey builds {folder}/{unixMillis}-{random}-{sanitizedName}.{ext}.
// When the bytes were re-encoded the extension follows the new content type.
func StorageKey(memoryType models.MemoryType, name, contentType string, compressed bool, now time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if compressed {
		ext = "jpg"
	}
	if ext == "" {
		if m := mimetype.Lookup(contentType); m != nil {
			ext = strings.TrimPrefix(m.Extension(), ".")
		}
	}
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%d-%s-%s.%s", memoryType.Folder(), now.UnixMilli(), randomSuffix(6), sanitize(base), ext)
}

func sanitize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

func randomSuffix(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return fmt.Sprintf("%d", time.Now().UnixNano())
		}
		out[i] = suffixAlphabet[idx.Int64()]
	}
	return string(out)
}
