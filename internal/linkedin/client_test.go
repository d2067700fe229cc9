package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"linktrack/internal/config"
	"linktrack/internal/tracker"
)

// newTestAuth creates an authenticator with a saved, non-expired token
// so ValidToken never hits the network.
func newTestAuth(t *testing.T, baseURL string) *Authenticator {
	t.Helper()

	store := NewTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
	tok := &StoredToken{
		Token: oauth2.Token{
			AccessToken: "test-access-token",
			TokenType:   "Bearer",
			Expiry:      time.Now().Add(time.Hour),
		},
		UserID:    "abc123",
		UserName:  "Test User",
		PersonURN: "urn:li:person:abc123",
	}
	if err := store.Save(tok); err != nil {
		t.Fatalf("saving test token: %v", err)
	}

	api := config.APIConfig{BaseURL: baseURL, Version: "202504"}
	creds := &config.Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8000/callback",
		Scopes:       "openid,w_member_social",
	}
	return NewAuthenticator(api, creds, store)
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	auth := newTestAuth(t, server.URL)
	return NewClient(config.APIConfig{BaseURL: server.URL, Version: "202504"}, auth), server
}

func TestClient_PublishText(t *testing.T) {
	var gotPayload map[string]any
	var gotHeaders http.Header

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/posts" {
			t.Errorf("path = %q, want /rest/posts", r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.Header().Set("x-restli-id", "urn:li:share:7000000000000000001")
		w.WriteHeader(http.StatusCreated)
	}))

	urn, err := client.PublishText(context.Background(), "Hello from tests", tracker.VisibilityPublic)
	if err != nil {
		t.Fatalf("PublishText() error = %v", err)
	}
	if urn != "urn:li:share:7000000000000000001" {
		t.Errorf("urn = %q, want the x-restli-id value", urn)
	}

	if gotPayload["author"] != "urn:li:person:abc123" {
		t.Errorf("author = %v, want the person urn", gotPayload["author"])
	}
	if gotPayload["commentary"] != "Hello from tests" {
		t.Errorf("commentary = %v", gotPayload["commentary"])
	}
	if gotPayload["visibility"] != "PUBLIC" {
		t.Errorf("visibility = %v, want PUBLIC", gotPayload["visibility"])
	}
	if gotPayload["lifecycleState"] != "PUBLISHED" {
		t.Errorf("lifecycleState = %v, want PUBLISHED", gotPayload["lifecycleState"])
	}
	if _, hasContent := gotPayload["content"]; hasContent {
		t.Error("text post payload carries a content attachment")
	}

	if got := gotHeaders.Get("Authorization"); got != "Bearer test-access-token" {
		t.Errorf("Authorization = %q", got)
	}
	if got := gotHeaders.Get("LinkedIn-Version"); got != "202504" {
		t.Errorf("LinkedIn-Version = %q, want 202504", got)
	}
	if got := gotHeaders.Get("X-Restli-Protocol-Version"); got != "2.0.0" {
		t.Errorf("X-Restli-Protocol-Version = %q, want 2.0.0", got)
	}
}

func TestClient_PublishArticle(t *testing.T) {
	var gotPayload map[string]any

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.Header().Set("x-restli-id", "urn:li:share:7000000000000000002")
		w.WriteHeader(http.StatusCreated)
	}))

	_, err := client.PublishArticle(context.Background(),
		"Read this", "https://example.com/why-go", "Why Go", tracker.VisibilityConnections)
	if err != nil {
		t.Fatalf("PublishArticle() error = %v", err)
	}

	content, ok := gotPayload["content"].(map[string]any)
	if !ok {
		t.Fatalf("payload has no content attachment: %v", gotPayload)
	}
	article, ok := content["article"].(map[string]any)
	if !ok {
		t.Fatalf("content has no article: %v", content)
	}
	if article["source"] != "https://example.com/why-go" {
		t.Errorf("article source = %v", article["source"])
	}
	if article["title"] != "Why Go" {
		t.Errorf("article title = %v", article["title"])
	}
}

func TestClient_PublishText_Errors(t *testing.T) {
	t.Run("non-201 becomes a PublishError", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"unprocessable"}`, http.StatusUnprocessableEntity)
		}))

		_, err := client.PublishText(context.Background(), "bad", tracker.VisibilityPublic)
		var perr *tracker.PublishError
		if !errors.As(err, &perr) {
			t.Fatalf("error = %v, want *tracker.PublishError", err)
		}
		if perr.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("StatusCode = %d, want 422", perr.StatusCode)
		}
	})

	t.Run("missing restli id header", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))

		_, err := client.PublishText(context.Background(), "hi", tracker.VisibilityPublic)
		var perr *tracker.PublishError
		if !errors.As(err, &perr) {
			t.Fatalf("error = %v, want *tracker.PublishError", err)
		}
	})
}

func TestClient_ListRecentPosts(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "author" {
			t.Errorf("q = %q, want author", got)
		}
		if got := r.URL.Query().Get("author"); got != "urn:li:person:abc123" {
			t.Errorf("author = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"elements": []map[string]any{
				{
					"id":          "urn:li:share:1",
					"author":      "urn:li:person:abc123",
					"commentary":  "First post",
					"visibility":  "PUBLIC",
					"publishedAt": int64(1754913600000),
				},
				{
					"id":         "urn:li:share:2",
					"author":     "urn:li:person:abc123",
					"commentary": "Draft-created post",
					"visibility": "PUBLIC",
					"createdAt":  int64(1754913700000),
				},
			},
		})
	}))

	posts, err := client.ListRecentPosts(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecentPosts() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("len(posts) = %d, want 2", len(posts))
	}
	if posts[0].URN != "urn:li:share:1" || posts[0].Text != "First post" {
		t.Errorf("posts[0] = %+v", posts[0])
	}
	if posts[0].PublishedAt.IsZero() {
		t.Error("publishedAt not mapped")
	}
	// createdAt is the fallback when publishedAt is absent.
	if posts[1].PublishedAt.IsZero() {
		t.Error("createdAt fallback not mapped")
	}
}

func TestClient_DeletePost(t *testing.T) {
	t.Run("deletes on 204", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("method = %q, want DELETE", r.Method)
			}
			w.WriteHeader(http.StatusNoContent)
		}))

		if err := client.DeletePost(context.Background(), "urn:li:share:1"); err != nil {
			t.Errorf("DeletePost() error = %v", err)
		}
	})

	t.Run("propagates failure status", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not yours", http.StatusForbidden)
		}))

		if err := client.DeletePost(context.Background(), "urn:li:share:1"); err == nil {
			t.Error("DeletePost() on 403 succeeded, want error")
		}
	})
}

func TestTokenStore(t *testing.T) {
	t.Run("missing file returns nil without error", func(t *testing.T) {
		store := NewTokenStore(filepath.Join(t.TempDir(), "tokens.json"))

		tok, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if tok != nil {
			t.Errorf("Load() = %+v, want nil", tok)
		}
	})

	t.Run("round trip preserves profile fields", func(t *testing.T) {
		store := NewTokenStore(filepath.Join(t.TempDir(), "tokens.json"))

		saved := &StoredToken{
			Token: oauth2.Token{
				AccessToken:  "at",
				RefreshToken: "rt",
				Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
			},
			UserID:    "abc",
			UserName:  "Test User",
			PersonURN: "urn:li:person:abc",
		}
		if err := store.Save(saved); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got == nil {
			t.Fatal("Load() = nil after Save")
		}
		if got.AccessToken != "at" || got.RefreshToken != "rt" {
			t.Errorf("token fields = %q/%q", got.AccessToken, got.RefreshToken)
		}
		if got.PersonURN != "urn:li:person:abc" {
			t.Errorf("PersonURN = %q", got.PersonURN)
		}
	})
}

func TestAuthenticator_ValidToken(t *testing.T) {
	t.Run("no saved token returns ErrNotAuthenticated", func(t *testing.T) {
		store := NewTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
		auth := NewAuthenticator(config.APIConfig{BaseURL: "http://unused"}, &config.Credentials{}, store)

		_, err := auth.ValidToken(context.Background())
		if !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("ValidToken() error = %v, want ErrNotAuthenticated", err)
		}
	})

	t.Run("fresh token is returned without refresh", func(t *testing.T) {
		auth := newTestAuth(t, "http://unused")

		tok, err := auth.ValidToken(context.Background())
		if err != nil {
			t.Fatalf("ValidToken() error = %v", err)
		}
		if tok.AccessToken != "test-access-token" {
			t.Errorf("AccessToken = %q", tok.AccessToken)
		}
	})

	t.Run("expired token without refresh token fails", func(t *testing.T) {
		store := NewTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
		if err := store.Save(&StoredToken{
			Token: oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)},
		}); err != nil {
			t.Fatal(err)
		}
		auth := NewAuthenticator(config.APIConfig{BaseURL: "http://unused"}, &config.Credentials{}, store)

		_, err := auth.ValidToken(context.Background())
		if !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("ValidToken() error = %v, want ErrNotAuthenticated", err)
		}
	})
}

func TestAnalyticsClient_FetchPostMetrics(t *testing.T) {
	t.Run("aggregates daily counts per metric type", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rest/memberCreatorPostAnalytics" {
				t.Errorf("path = %q", r.URL.Path)
			}
			// Two daily buckets per metric type; values keyed off the type
			// so each counter is distinguishable.
			var base int64
			switch r.URL.Query().Get("queryType") {
			case "IMPRESSION":
				base = 100
			case "REACTION":
				base = 10
			case "COMMENT":
				base = 5
			case "SHARE":
				base = 2
			case "CLICK":
				base = 1
			}
			json.NewEncoder(w).Encode(map[string]any{
				"elements": []map[string]any{{"count": base}, {"count": base}},
			})
		}))
		t.Cleanup(server.Close)

		auth := newTestAuth(t, server.URL)
		client := NewAnalyticsClient(config.APIConfig{BaseURL: server.URL, Version: "202504"}, auth)

		m, err := client.FetchPostMetrics(context.Background(), "urn:li:share:1", 30)
		if err != nil {
			t.Fatalf("FetchPostMetrics() error = %v", err)
		}
		if m == nil {
			t.Fatal("FetchPostMetrics() = nil, want metrics")
		}
		if m.Impressions != 200 || m.Reactions != 20 || m.Comments != 10 || m.Shares != 4 || m.Clicks != 2 {
			t.Errorf("metrics = %+v, want sums of both buckets", m)
		}
	})

	t.Run("access denial returns nil nil", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no product access", http.StatusForbidden)
		}))
		t.Cleanup(server.Close)

		auth := newTestAuth(t, server.URL)
		client := NewAnalyticsClient(config.APIConfig{BaseURL: server.URL, Version: "202504"}, auth)

		m, err := client.FetchPostMetrics(context.Background(), "urn:li:share:1", 30)
		if err != nil {
			t.Fatalf("FetchPostMetrics() error = %v", err)
		}
		if m != nil {
			t.Errorf("metrics = %+v, want nil on access denial", m)
		}
	})
}

func TestAnalyticsClient_CheckAccess(t *testing.T) {
	t.Run("200 means access", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"elements": []any{}})
		}))
		t.Cleanup(server.Close)

		auth := newTestAuth(t, server.URL)
		client := NewAnalyticsClient(config.APIConfig{BaseURL: server.URL, Version: "202504"}, auth)

		if !client.CheckAccess(context.Background()) {
			t.Error("CheckAccess() = false, want true")
		}
	})

	t.Run("403 means no access", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "denied", http.StatusForbidden)
		}))
		t.Cleanup(server.Close)

		auth := newTestAuth(t, server.URL)
		client := NewAnalyticsClient(config.APIConfig{BaseURL: server.URL, Version: "202504"}, auth)

		if client.CheckAccess(context.Background()) {
			t.Error("CheckAccess() = true, want false")
		}
	})
}
