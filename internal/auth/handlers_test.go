package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeProvider struct {
	callbackToken string
	callbackErr   error
	profileUser   User
	profileErr    error
	logoutURL     string
}

func (f *fakeProvider) LoginURL(state string) string {
	return "https://issuer.example/auth?state=" + state
}

func (f *fakeProvider) HandleCallback(_ context.Context, code string) (string, error) {
	if f.callbackErr != nil {
		return "", f.callbackErr
	}
	return f.callbackToken, nil
}

func (f *fakeProvider) Profile(_ context.Context, token string) (User, error) {
	if f.profileErr != nil {
		return User{}, f.profileErr
	}
	return f.profileUser, nil
}

func (f *fakeProvider) LogoutURL() string { return f.logoutURL }

func TestLoginRedirectsWithState(t *testing.T) {
	h := NewHandlers(&fakeProvider{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}

	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://issuer.example/auth?state=") {
		t.Fatalf("unexpected redirect target %q", loc)
	}

	var state string
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookie {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatal("state cookie not set")
	}
	if !strings.HasSuffix(loc, state) {
		t.Fatalf("redirect state %q does not match cookie %q", loc, state)
	}
}

func TestCallbackRejectsMismatchedState(t *testing.T) {
	h := NewHandlers(&fakeProvider{callbackToken: "tok"}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc&state=evil", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "good"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCallbackSetsSessionAndRedirects(t *testing.T) {
	h := NewHandlers(&fakeProvider{callbackToken: "tok-123"}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc&state=good", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "good"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}

	var session string
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			session = c.Value
		}
	}
	if session != "tok-123" {
		t.Fatalf("session cookie = %q, want tok-123", session)
	}
}

func TestCallbackRedirectsToFrontend(t *testing.T) {
	h := NewHandlers(&fakeProvider{callbackToken: "tok"}, "https://app.example")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc&state=good", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "good"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://app.example" {
		t.Fatalf("redirected to %q, want the frontend URL", loc)
	}
}

func TestLogoutFallsBackToFrontend(t *testing.T) {
	h := NewHandlers(&fakeProvider{}, "https://app.example")

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://app.example" {
		t.Fatalf("redirected to %q, want the frontend URL", loc)
	}
}

func TestCallbackExchangeFailure(t *testing.T) {
	h := NewHandlers(&fakeProvider{callbackErr: errors.New("issuer down")}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc&state=good", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "good"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestMeReturnsProfile(t *testing.T) {
	h := NewHandlers(&fakeProvider{profileUser: User{ID: "u1", Email: "mario@example.com", Name: "Mario"}}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mario@example.com") {
		t.Fatalf("profile missing from body: %s", rec.Body.String())
	}
}

func TestMeWithoutSession(t *testing.T) {
	h := NewHandlers(&fakeProvider{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	next := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}

	t.Run("nil provider passes through", func(t *testing.T) {
		guarded := RequireAuth(nil)(next)
		rec := httptest.NewRecorder()
		guarded(rec, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("no session is rejected", func(t *testing.T) {
		guarded := RequireAuth(&fakeProvider{})(next)
		rec := httptest.NewRecorder()
		guarded(rec, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("session is admitted", func(t *testing.T) {
		guarded := RequireAuth(&fakeProvider{})(next)
		req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "tok"})
		rec := httptest.NewRecorder()
		guarded(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})
}

func TestLogoutClearsSession(t *testing.T) {
	h := NewHandlers(&fakeProvider{logoutURL: "https://issuer.example/logout"}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if rec.Header().Get("Location") != "https://issuer.example/logout" {
		t.Fatalf("unexpected redirect %q", rec.Header().Get("Location"))
	}

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("session cookie not cleared")
	}
}
