package http

import (
	"log/slog"
	"net/http"
	"strings"

	"scontrini/internal/blob"
)

// handleSignUpload hands the client a presigned PUT URL plus the object
// key it must patch onto the expense once the direct upload succeeds.
func (s *Server) handleSignUpload(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Filename    string `json:"filename"`
		ContentType string `json:"type"`
	}
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(in.Filename) == "" {
		respondError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if in.ContentType == "" {
		in.ContentType = "application/octet-stream"
	}

	key := blob.NewKey(in.Filename)
	uploadURL, err := s.signer.SignUpload(r.Context(), key, in.ContentType)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to sign upload URL",
			"file_key", key, "error", err)
		respondError(w, http.StatusBadGateway, "could not sign upload")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"uploadUrl": uploadURL,
		"key":       key,
	})
}
