package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"scontrini/internal/core"
)

// UploadAPI is the slice of the API the uploader needs beyond the raw
// blob PUT: signing and the commit patch.
type UploadAPI interface {
	SignUpload(ctx context.Context, filename, contentType string) (SignedUpload, error)
	Patch(ctx context.Context, id int64, patch core.UpdateExpense) (core.Expense, error)
}

// Uploader runs the three-step receipt upload:
//
//  1. ask the API to sign an upload, receiving a one-time PUT URL and the
//     object key
//  2. PUT the file bytes straight to the blob store
//  3. patch the expense with the object key
//
// Each step runs only after the previous one succeeded; a failed PUT
// never leaves a dangling key on the expense.
type Uploader struct {
	api  UploadAPI
	http *http.Client
}

func NewUploader(api UploadAPI) *Uploader {
	return &Uploader{
		api: api,
		// Receipts can be photos on slow uplinks.
		http: &http.Client{Timeout: 2 * time.Minute},
	}
}

// NewUploaderWithHTTPClient is for tests and custom transports.
func NewUploaderWithHTTPClient(api UploadAPI, hc *http.Client) *Uploader {
	return &Uploader{api: api, http: hc}
}

// AttachReceipt uploads content and binds it to the expense, returning
// the patched row.
func (u *Uploader) AttachReceipt(ctx context.Context, expenseID int64, filename, contentType string, content io.Reader) (core.Expense, error) {
	signed, err := u.api.SignUpload(ctx, filename, contentType)
	if err != nil {
		return core.Expense{}, fmt.Errorf("signing upload: %w", err)
	}

	if err := u.put(ctx, signed.UploadURL, contentType, content); err != nil {
		return core.Expense{}, fmt.Errorf("uploading %q: %w", filename, err)
	}

	slog.InfoContext(ctx, "Receipt uploaded, committing key",
		"expense_id", expenseID, "file_key", signed.Key)

	patched, err := u.api.Patch(ctx, expenseID, core.UpdateExpense{FileKey: &signed.Key})
	if err != nil {
		return core.Expense{}, fmt.Errorf("committing file key: %w", err)
	}
	return patched, nil
}

func (u *Uploader) put(ctx context.Context, url, contentType string, content io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, content)
	if err != nil {
		return err
	}
	// The signature covers the content type; it must match what was signed.
	req.Header.Set("Content-Type", contentType)

	resp, err := u.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Message: "blob store rejected upload"}
	}
	return nil
}
