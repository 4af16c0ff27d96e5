package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scontrini/internal/core"
)

type fakeUploadAPI struct {
	signUploadErr error
	signedURL     string
	key           string

	patchCalls int
	patched    core.UpdateExpense
}

func (f *fakeUploadAPI) SignUpload(ctx context.Context, filename, contentType string) (SignedUpload, error) {
	if f.signUploadErr != nil {
		return SignedUpload{}, f.signUploadErr
	}
	return SignedUpload{UploadURL: f.signedURL, Key: f.key}, nil
}

func (f *fakeUploadAPI) Patch(ctx context.Context, id int64, patch core.UpdateExpense) (core.Expense, error) {
	f.patchCalls++
	f.patched = patch
	return patch.Apply(core.Expense{ID: id, Title: "Spesa", Amount: 100}), nil
}

func TestAttachReceiptHappyPath(t *testing.T) {
	var gotBody string
	var gotContentType string
	blobServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("blob store got %s, want PUT", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer blobServer.Close()

	api := &fakeUploadAPI{signedURL: blobServer.URL + "/receipts/x/ricevuta.pdf?sig=abc", key: "receipts/x/ricevuta.pdf"}
	u := NewUploaderWithHTTPClient(api, blobServer.Client())

	patched, err := u.AttachReceipt(context.Background(), 1, "ricevuta.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	if gotBody != "%PDF-1.4" {
		t.Fatalf("blob store received %q", gotBody)
	}
	if gotContentType != "application/pdf" {
		t.Fatalf("content type %q not forwarded", gotContentType)
	}
	if api.patchCalls != 1 {
		t.Fatalf("patch dispatched %d times, want 1", api.patchCalls)
	}
	if api.patched.FileKey == nil || *api.patched.FileKey != "receipts/x/ricevuta.pdf" {
		t.Fatalf("patch carried wrong key: %+v", api.patched)
	}
	if patched.FileURL == nil || *patched.FileURL != "receipts/x/ricevuta.pdf" {
		t.Fatalf("unexpected patched row: %+v", patched)
	}
}

func TestAttachReceiptPutFailureSkipsCommit(t *testing.T) {
	blobServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer blobServer.Close()

	api := &fakeUploadAPI{signedURL: blobServer.URL + "/receipts/x/f.pdf", key: "receipts/x/f.pdf"}
	u := NewUploaderWithHTTPClient(api, blobServer.Client())

	_, err := u.AttachReceipt(context.Background(), 1, "f.pdf", "application/pdf", strings.NewReader("data"))
	if err == nil {
		t.Fatal("expected upload failure")
	}
	if api.patchCalls != 0 {
		t.Fatalf("commit patch dispatched after failed PUT: %d calls", api.patchCalls)
	}
}

func TestAttachReceiptSignFailureSkipsEverything(t *testing.T) {
	putCalls := 0
	blobServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		putCalls++
	}))
	defer blobServer.Close()

	api := &fakeUploadAPI{signUploadErr: errors.New("sign endpoint down")}
	u := NewUploaderWithHTTPClient(api, blobServer.Client())

	_, err := u.AttachReceipt(context.Background(), 1, "f.pdf", "application/pdf", strings.NewReader("data"))
	if err == nil {
		t.Fatal("expected signing failure")
	}
	if putCalls != 0 || api.patchCalls != 0 {
		t.Fatalf("later steps ran after sign failure: puts=%d patches=%d", putCalls, api.patchCalls)
	}
}
