package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PreviewRef identifies one not-yet-uploaded file held by a viewer's queue.
type PreviewRef struct {
	ViewerID  string
	ItemID    string
	Index     int
	ExpiresAt time.Time
}

// PreviewSigner mints short-lived tokens so queued files can be previewed
// from plain <img> tags that cannot carry an Authorization header.
type PreviewSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewPreviewSigner constructs a signer with the provided secret and TTL.
func NewPreviewSigner(secret string, ttl time.Duration) *PreviewSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &PreviewSigner{secret: []byte(secret), ttl: ttl}
}

// Sign returns a token referencing file index of a queue item.
func (s *PreviewSigner) Sign(viewerID, itemID string, index int) (string, time.Time, error) {
	if viewerID == "" || itemID == "" || index < 0 {
		return "", time.Time{}, fmt.Errorf("viewer, item and index required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	payload := strings.Join([]string{viewerID, itemID, strconv.Itoa(index), strconv.FormatInt(expiresAt.Unix(), 10)}, "|")
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + s.sign(encoded), expiresAt, nil
}

// Verify checks the signature and expiry of token.
func (s *PreviewSigner) Verify(token string) (PreviewRef, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok {
		return PreviewRef{}, fmt.Errorf("invalid token format")
	}
	if !hmac.Equal([]byte(s.sign(encoded)), []byte(signature)) {
		return PreviewRef{}, fmt.Errorf("invalid token signature")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return PreviewRef{}, fmt.Errorf("decode token: %w", err)
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 {
		return PreviewRef{}, fmt.Errorf("invalid token payload")
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil {
		return PreviewRef{}, fmt.Errorf("invalid file index")
	}
	exp, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return PreviewRef{}, fmt.Errorf("invalid timestamp")
	}
	ref := PreviewRef{ViewerID: parts[0], ItemID: parts[1], Index: index, ExpiresAt: time.Unix(exp, 0)}
	if time.Now().After(ref.ExpiresAt) {
		return PreviewRef{}, fmt.Errorf("token expired")
	}
	return ref, nil
}

func (s *PreviewSigner) sign(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
