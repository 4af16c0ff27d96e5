// Package client is the Go consumer of the expense API: a thin HTTP
// client, an optimistic snapshot cache, a mutation coordinator that keeps
// the cache honest across failures, and the three-step receipt upload.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scontrini/internal/core"
)

// HTTPError is a non-2xx response from the API, carrying the decoded
// error envelope when one was present.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api returned %d", e.Status)
}

// IsRejection reports whether err is a 4xx response, meaning the server
// refused the mutation and the optimistic state must be rolled back.
func IsRejection(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	return he.Status >= 400 && he.Status < 500
}

// SignedUpload is the server's answer to an upload-sign request.
type SignedUpload struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// Client talks to the expense API over JSON.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithHTTPClient is for tests and callers that need custom transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) List(ctx context.Context) ([]core.Expense, error) {
	var out struct {
		Expenses []core.Expense `json:"expenses"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/expenses", nil, &out); err != nil {
		return nil, err
	}
	return out.Expenses, nil
}

func (c *Client) Get(ctx context.Context, id int64) (core.Expense, error) {
	var out struct {
		Expense core.Expense `json:"expense"`
	}
	path := fmt.Sprintf("/api/expenses/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return core.Expense{}, err
	}
	return out.Expense, nil
}

func (c *Client) Create(ctx context.Context, in core.CreateExpense) (core.Expense, error) {
	var out struct {
		Expense core.Expense `json:"expense"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/expenses", in, &out); err != nil {
		return core.Expense{}, err
	}
	return out.Expense, nil
}

func (c *Client) Patch(ctx context.Context, id int64, patch core.UpdateExpense) (core.Expense, error) {
	var out struct {
		Expense core.Expense `json:"expense"`
	}
	path := fmt.Sprintf("/api/expenses/%d", id)
	if err := c.do(ctx, http.MethodPatch, path, patch, &out); err != nil {
		return core.Expense{}, err
	}
	return out.Expense, nil
}

func (c *Client) Delete(ctx context.Context, id int64) (core.Expense, error) {
	var out struct {
		Deleted core.Expense `json:"deleted"`
	}
	path := fmt.Sprintf("/api/expenses/%d", id)
	if err := c.do(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return core.Expense{}, err
	}
	return out.Deleted, nil
}

func (c *Client) SignUpload(ctx context.Context, filename, contentType string) (SignedUpload, error) {
	in := map[string]string{"filename": filename, "type": contentType}
	var out SignedUpload
	if err := c.do(ctx, http.MethodPost, "/api/upload/sign", in, &out); err != nil {
		return SignedUpload{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope)
		return &HTTPError{Status: resp.StatusCode, Message: envelope.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
