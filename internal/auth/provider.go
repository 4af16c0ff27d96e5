// Package auth delegates authentication to an external OAuth2 identity
// provider. The app never sees credentials: it redirects the browser to
// the provider, exchanges the callback code for a token, and keeps the
// token in an HTTP-only session cookie.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// User is the profile subset the API exposes at /api/auth/me.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Provider is the identity-provider boundary. The OAuth2 implementation
// talks to a real issuer; tests plug in a fake.
type Provider interface {
	// LoginURL returns the provider's authorization page for the given
	// anti-CSRF state.
	LoginURL(state string) string
	// HandleCallback exchanges the authorization code for an access token.
	HandleCallback(ctx context.Context, code string) (string, error)
	// Profile fetches the user behind an access token.
	Profile(ctx context.Context, accessToken string) (User, error)
	// LogoutURL returns the provider's logout endpoint, or empty when the
	// provider has none.
	LogoutURL() string
}

// OAuth2Provider implements Provider against a standard authorization-code
// issuer (Kinde-style endpoint layout).
type OAuth2Provider struct {
	oauth      oauth2.Config
	profileURL string
	logoutURL  string
	httpClient *http.Client
}

func NewOAuth2Provider(issuerURL, clientID, clientSecret, redirectURL string) *OAuth2Provider {
	issuer := strings.TrimRight(issuerURL, "/")
	return &OAuth2Provider{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  issuer + "/oauth2/auth",
				TokenURL: issuer + "/oauth2/token",
			},
		},
		profileURL: issuer + "/oauth2/user_profile",
		logoutURL:  issuer + "/logout",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *OAuth2Provider) LoginURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *OAuth2Provider) HandleCallback(ctx context.Context, code string) (string, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	return token.AccessToken, nil
}

func (p *OAuth2Provider) Profile(ctx context.Context, accessToken string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("fetching user profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return User{}, fmt.Errorf("profile endpoint returned %d: %s", resp.StatusCode, body)
	}

	var raw struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return User{}, fmt.Errorf("decoding user profile: %w", err)
	}

	name := raw.Name
	if name == "" {
		name = strings.TrimSpace(raw.FirstName + " " + raw.LastName)
	}
	return User{ID: raw.ID, Email: raw.Email, Name: name}, nil
}

func (p *OAuth2Provider) LogoutURL() string {
	return p.logoutURL
}

var _ Provider = (*OAuth2Provider)(nil)
