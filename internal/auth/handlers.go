package auth

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handlers serves the OAuth2 boundary routes: login redirect, callback
// exchange, logout and the current-user endpoint.
type Handlers struct {
	provider Provider
	// frontendURL is where the browser lands after login and logout.
	frontendURL string
}

func NewHandlers(provider Provider, frontendURL string) *Handlers {
	if frontendURL == "" {
		frontendURL = "/"
	}
	return &Handlers{provider: provider, frontendURL: frontendURL}
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state := newState()
	setStateCookie(w, state)
	http.Redirect(w, r, h.provider.LoginURL(state), http.StatusFound)
}

func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	want := stateFromCookie(r)
	got := r.URL.Query().Get("state")
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		slog.WarnContext(ctx, "OAuth callback with bad state")
		writeAuthError(w, http.StatusBadRequest, "invalid state")
		return
	}
	clearStateCookie(w)

	code := r.URL.Query().Get("code")
	if code == "" {
		writeAuthError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := h.provider.HandleCallback(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "OAuth code exchange failed", "error", err)
		writeAuthError(w, http.StatusBadGateway, "authentication failed")
		return
	}

	setSessionCookie(w, token)
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	if url := h.provider.LogoutURL(); url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		writeAuthError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.provider.Profile(r.Context(), token)
	if err != nil {
		slog.WarnContext(r.Context(), "Profile lookup failed", "error", err)
		writeAuthError(w, http.StatusUnauthorized, "session expired")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// RequireAuth gates a handler behind a valid session. A nil provider
// disables authentication entirely (local development).
func RequireAuth(provider Provider) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if provider == nil {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			if sessionToken(r) == "" {
				writeAuthError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next(w, r)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
