package blob

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"scontrini/internal/cache"
	"scontrini/internal/core"
)

// signConcurrency bounds how many presign calls a single listing fans out.
const signConcurrency = 8

// WithSignedDownloadURL replaces a stored object key with a fresh signed
// download URL at read time. Rows without an attachment, and rows that
// already carry an absolute URL, pass through unchanged. A signing failure
// is logged and the original row returned: a listing must never fail
// because one attachment could not be signed.
func WithSignedDownloadURL(ctx context.Context, signer Signer, e core.Expense) core.Expense {
	if e.FileURL == nil {
		return e
	}
	if isAbsoluteURL(*e.FileURL) {
		return e
	}

	signed, err := signer.SignDownload(ctx, *e.FileURL, DownloadTTL)
	if err != nil {
		slog.WarnContext(ctx, "Failed to sign download URL, returning stored key",
			"file_key", *e.FileURL,
			"expense_id", e.ID,
			"error", err)
		return e
	}

	e.FileURL = &signed
	return e
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Presenter applies the signed-URL transform on read paths, caching signed
// URLs for a fraction of their lifetime so hot listings do not re-sign the
// same keys over and over.
type Presenter struct {
	signer Signer
	urls   *cache.LRUCache[string]
}

func NewPresenter(signer Signer) *Presenter {
	// Cache entries expire well before the signed URL itself does, so a
	// cached URL always has usable life left when handed out.
	return &Presenter{
		signer: signer,
		urls:   cache.NewLRUCache[string](1024, DownloadTTL/4),
	}
}

// Sign returns e with its stored key swapped for a signed download URL.
func (p *Presenter) Sign(ctx context.Context, e core.Expense) core.Expense {
	if e.FileURL == nil || isAbsoluteURL(*e.FileURL) {
		return e
	}

	key := *e.FileURL
	if signed, ok := p.urls.Get(key); ok {
		e.FileURL = &signed
		return e
	}

	signed := WithSignedDownloadURL(ctx, p.signer, e)
	if signed.FileURL != nil && *signed.FileURL != key {
		p.urls.Set(key, *signed.FileURL)
	}
	return signed
}

// SignAll applies Sign to every row, fanning presign calls out with a
// bounded group. Row order is preserved.
func (p *Presenter) SignAll(ctx context.Context, items []core.Expense) []core.Expense {
	out := make([]core.Expense, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for i, e := range items {
		g.Go(func() error {
			out[i] = p.Sign(gctx, e)
			return nil
		})
	}
	// Workers never return errors; degraded rows pass through unchanged.
	_ = g.Wait()

	return out
}

// Invalidate drops a cached signed URL, used when a row's stored key
// changes.
func (p *Presenter) Invalidate(key string) {
	p.urls.Delete(key)
}

// URLCache exposes the cache for registration with a cleanup manager.
func (p *Presenter) URLCache() interface{ CleanExpired() int } {
	return p.urls
}

// Compile-time interface checks.
var (
	_ Signer = (*S3Signer)(nil)
	_ Signer = (*MemorySigner)(nil)
)
