package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"linktrack/internal/config"
)

// ErrNotAuthenticated is returned when no saved tokens exist or the
// saved token can no longer be refreshed. The user must re-run auth.
var ErrNotAuthenticated = errors.New("not authenticated: run 'linktrack auth' first")

// refreshLeeway refreshes tokens this long before their actual expiry
// to avoid using a token that dies mid-request.
const refreshLeeway = 5 * time.Minute

// StoredToken is the persisted OAuth token plus profile info fetched at
// authorization time.
type StoredToken struct {
	oauth2.Token
	UserID    string `json:"user_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	PersonURN string `json:"person_urn,omitempty"`
}

// TokenStore persists tokens as JSON at a fixed path.
type TokenStore struct {
	path string
}

// NewTokenStore creates a token store backed by the given file path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load reads the saved token. Returns (nil, nil) if no token has been
// saved yet.
func (ts *TokenStore) Load() (*StoredToken, error) {
	data, err := os.ReadFile(ts.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil // Not authenticated yet
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var t StoredToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &t, nil
}

// Save writes the token to disk, readable only by the current user.
func (ts *TokenStore) Save(t *StoredToken) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(ts.path, data, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// Authenticator runs the OAuth2 authorization-code flow against
// LinkedIn and hands out valid access tokens, refreshing as needed.
type Authenticator struct {
	oauth   *oauth2.Config
	apiBase string
	tokens  *TokenStore
	client  *http.Client
}

// NewAuthenticator wires an authenticator from config and credentials.
func NewAuthenticator(api config.APIConfig, creds *config.Credentials, tokens *TokenStore) *Authenticator {
	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       creds.ScopeList(),
			Endpoint: oauth2.Endpoint{
				AuthURL:   api.AuthURL,
				TokenURL:  api.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBase: api.BaseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// callbackResult carries the outcome of the OAuth redirect.
type callbackResult struct {
	code  string
	state string
	err   string
}

// Authorize runs the full authorization flow: it starts a local
// callback server on the redirect URI's port, announces the
// authorization URL (the caller shows it to the user), waits for the
// redirect, exchanges the code, fetches the user's profile, and saves
// the resulting token.
func (a *Authenticator) Authorize(ctx context.Context, announce func(authURL string)) (*StoredToken, error) {
	redirect, err := url.Parse(a.oauth.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URI: %w", err)
	}
	port := redirect.Port()
	if port == "" {
		port = "8000"
	}

	state := uuid.New().String()
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := callbackResult{
			code:  q.Get("code"),
			state: q.Get("state"),
			err:   q.Get("error"),
		}
		w.Header().Set("Content-Type", "text/html")
		if res.err != "" {
			fmt.Fprint(w, "<html><body><h2>Authorization failed. You can close this tab.</h2></body></html>")
		} else {
			fmt.Fprint(w, "<html><body><h2>Authorization successful! You can close this tab.</h2></body></html>")
		}
		select {
		case results <- res:
		default:
		}
	})

	listener, err := net.Listen("tcp", "localhost:"+port)
	if err != nil {
		return nil, fmt.Errorf("starting callback server on port %s: %w", port, err)
	}
	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer server.Close()

	announce(a.oauth.AuthCodeURL(state))

	var res callbackResult
	select {
	case res = <-results:
	case <-time.After(2 * time.Minute):
		return nil, fmt.Errorf("timed out waiting for authorization callback")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.err != "" {
		return nil, fmt.Errorf("authorization failed: %s", res.err)
	}
	if res.code == "" {
		return nil, fmt.Errorf("no authorization code received")
	}
	if res.state != state {
		return nil, fmt.Errorf("state mismatch in authorization callback")
	}

	token, err := a.oauth.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	stored := &StoredToken{Token: *token}
	if err := a.fetchUserInfo(ctx, stored); err != nil {
		return nil, err
	}

	if err := a.tokens.Save(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// ValidToken loads the saved token, refreshing it if it expires within
// the leeway window, and returns it. Returns ErrNotAuthenticated when
// no usable token exists.
func (a *Authenticator) ValidToken(ctx context.Context) (*StoredToken, error) {
	stored, err := a.tokens.Load()
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrNotAuthenticated
	}

	if time.Until(stored.Expiry) > refreshLeeway {
		return stored, nil
	}

	if stored.RefreshToken == "" {
		return nil, fmt.Errorf("access token expired and no refresh token available: %w", ErrNotAuthenticated)
	}

	refreshed, err := a.oauth.TokenSource(ctx, &stored.Token).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}

	// Preserve the profile info captured at authorization time.
	stored.Token = *refreshed
	if err := a.tokens.Save(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// fetchUserInfo fills in the profile fields from the OpenID Connect
// userinfo endpoint.
func (a *Authenticator) fetchUserInfo(ctx context.Context, t *StoredToken) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBase+"/v2/userinfo", nil)
	if err != nil {
		return fmt.Errorf("building userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching user info: HTTP %d", resp.StatusCode)
	}

	var info struct {
		Sub  string `json:"sub"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("decoding user info: %w", err)
	}

	t.UserID = info.Sub
	t.UserName = info.Name
	t.PersonURN = "urn:li:person:" + info.Sub
	return nil
}
