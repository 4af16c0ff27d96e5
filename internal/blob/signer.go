// Package blob mediates access to the object store holding receipt files.
// Raw bytes never pass through the application server: the server only
// mints time-limited signed URLs and the browser talks to the store
// directly.
package blob

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DownloadTTL bounds the lifetime of signed GET URLs handed to clients.
	DownloadTTL = 3600 * time.Second
	// UploadTTL bounds the lifetime of signed PUT URLs. An upload ticket is
	// cheap to re-issue, so this stays short.
	UploadTTL = 15 * time.Minute
)

// Signer issues capability URLs against the object store.
type Signer interface {
	// SignUpload returns a signed PUT URL for one client-directed upload of
	// the given content type.
	SignUpload(ctx context.Context, key, contentType string) (string, error)

	// SignDownload returns a signed GET URL valid for expiry.
	SignDownload(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// NewKey mints an opaque, non-guessable object key for an uploaded file.
// The original filename is kept as a suffix so downloads carry a sensible
// name, sanitized to a safe character set.
func NewKey(filename string) string {
	return "receipts/" + uuid.NewString() + "/" + sanitizeFilename(filename)
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "file"
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	mapped = strings.Trim(mapped, ".-")
	if mapped == "" {
		return "file"
	}
	return mapped
}
