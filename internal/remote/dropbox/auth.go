package dropbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/kalyan02/blogdkr/internal/token"
)

// Endpoint is the Dropbox OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://www.dropbox.com/oauth2/authorize",
	TokenURL: "https://api.dropboxapi.com/oauth2/token",
}

// TokenProvider supplies a valid bearer credential on demand. Refresh and
// expiry handling are opaque to callers.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Authenticator implements the OAuth2 authorization-code flow against
// Dropbox and serves refreshed access tokens from encrypted storage.
type Authenticator struct {
	cfg     *oauth2.Config
	storage *token.Storage

	mu     sync.Mutex
	source oauth2.TokenSource
	last   string // last persisted access token, to avoid rewrites
}

// NewAuthenticator builds an Authenticator for the given app credentials.
func NewAuthenticator(appKey, appSecret, redirectURI string, storage *token.Storage) *Authenticator {
	return &Authenticator{
		cfg: &oauth2.Config{
			ClientID:     appKey,
			ClientSecret: appSecret,
			RedirectURL:  redirectURI,
			Endpoint:     Endpoint,
		},
		storage: storage,
	}
}

// AuthorizeURL returns the URL the user visits to grant access, plus the
// state nonce to verify on callback. token_access_type=offline asks
// Dropbox for a refresh token.
func (a *Authenticator) AuthorizeURL() (url, state string) {
	state = uuid.NewString()
	url = a.cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("token_access_type", "offline"))
	return url, state
}

// Exchange trades an authorization code for tokens and persists them.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	tok, err := a.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := a.storage.Save(tok); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	a.mu.Lock()
	a.source = nil // force rebuild from the fresh token
	a.mu.Unlock()
	return nil
}

// AccessToken returns a valid access token, refreshing and re-persisting
// it when expired.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.source == nil {
		stored, err := a.storage.Load()
		if err != nil {
			return "", fmt.Errorf("load stored token: %w", err)
		}
		a.source = a.cfg.TokenSource(ctx, stored)
		a.last = stored.AccessToken
	}

	tok, err := a.source.Token()
	if err != nil {
		return "", fmt.Errorf("obtain access token: %w", err)
	}

	if tok.AccessToken != a.last {
		if err := a.storage.Save(tok); err != nil {
			return "", fmt.Errorf("persist refreshed token: %w", err)
		}
		a.last = tok.AccessToken
	}
	return tok.AccessToken, nil
}
