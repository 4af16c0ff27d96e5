package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"
)

// MemorySigner is an in-process Signer for development and tests. It mints
// well-formed, deterministic https URLs without touching any object store.
type MemorySigner struct {
	// BaseURL defaults to https://blob.invalid when empty.
	BaseURL string
	// Secret seeds the fake signature so URLs look capability-bearing.
	Secret string
	// Err, when set, makes every signing call fail. Tests use this to
	// exercise the degraded read path.
	Err error
}

func (m *MemorySigner) SignUpload(ctx context.Context, key, contentType string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.signed(key, url.Values{
		"method":       {"PUT"},
		"content-type": {contentType},
	}), nil
}

func (m *MemorySigner) SignDownload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.signed(key, url.Values{
		"method":  {"GET"},
		"expires": {fmt.Sprintf("%d", int64(expiry.Seconds()))},
	}), nil
}

func (m *MemorySigner) signed(key string, params url.Values) string {
	base := m.BaseURL
	if base == "" {
		base = "https://blob.invalid"
	}
	mac := hmac.New(sha256.New, []byte(m.Secret))
	mac.Write([]byte(key))
	mac.Write([]byte(params.Encode()))
	params.Set("sig", hex.EncodeToString(mac.Sum(nil))[:32])
	return base + "/" + key + "?" + params.Encode()
}
