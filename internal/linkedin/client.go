package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"linktrack/internal/config"
	"linktrack/internal/tracker"
)

// Client is a thin wrapper over the LinkedIn /rest/posts API. It
// implements tracker.Publisher.
type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string // LinkedIn-Version header value
	auth       *Authenticator
}

// NewClient creates a posts API client.
func NewClient(api config.APIConfig, auth *Authenticator) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    api.BaseURL,
		version:    api.Version,
		auth:       auth,
	}
}

func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	req.Header.Set("LinkedIn-Version", c.version)
}

// PublishText creates a plain text post on the authenticated user's
// profile and returns the new post's URN.
func (c *Client) PublishText(ctx context.Context, text string, visibility tracker.Visibility) (string, error) {
	return c.createPost(ctx, text, visibility, nil)
}

// PublishArticle creates a post with a link attachment. LinkedIn
// derives the preview from the URL's Open Graph tags; title overrides
// the derived title when non-empty.
func (c *Client) PublishArticle(ctx context.Context, text, articleURL, title string, visibility tracker.Visibility) (string, error) {
	article := map[string]any{"source": articleURL}
	if title != "" {
		article["title"] = title
	}
	return c.createPost(ctx, text, visibility, map[string]any{"article": article})
}

// createPost issues the POST /rest/posts call shared by text and
// article posts. Any non-201 response becomes a *tracker.PublishError.
func (c *Client) createPost(ctx context.Context, text string, visibility tracker.Visibility, content map[string]any) (string, error) {
	token, err := c.auth.ValidToken(ctx)
	if err != nil {
		return "", &tracker.PublishError{Message: err.Error()}
	}

	payload := map[string]any{
		"author":     token.PersonURN,
		"commentary": text,
		"visibility": string(visibility),
		"distribution": map[string]any{
			"feedDistribution":               "MAIN_FEED",
			"targetEntities":                 []any{},
			"thirdPartyDistributionChannels": []any{},
		},
		"lifecycleState":            "PUBLISHED",
		"isReshareDisabledByAuthor": false,
	}
	if content != nil {
		payload["content"] = content
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &tracker.PublishError{Message: "encoding payload: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/posts", bytes.NewReader(body))
	if err != nil {
		return "", &tracker.PublishError{Message: err.Error()}
	}
	c.setHeaders(req, token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &tracker.PublishError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &tracker.PublishError{StatusCode: resp.StatusCode, Message: string(text)}
	}

	urn := resp.Header.Get("x-restli-id")
	if urn == "" {
		return "", &tracker.PublishError{Message: "response missing x-restli-id header"}
	}
	return urn, nil
}

// RemotePost is a post retrieved from the user's LinkedIn profile.
type RemotePost struct {
	URN         string
	Author      string
	Text        string
	Visibility  string
	PublishedAt time.Time
}

// ListRecentPosts retrieves the authenticated user's most recent posts,
// newest first.
func (c *Client) ListRecentPosts(ctx context.Context, count int) ([]RemotePost, error) {
	token, err := c.auth.ValidToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("author", token.PersonURN)
	params.Set("q", "author")
	params.Set("count", strconv.Itoa(count))
	params.Set("sortBy", "LAST_MODIFIED")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/rest/posts?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building list request: %w", err)
	}
	c.setHeaders(req, token.AccessToken)
	req.Header.Set("X-RestLi-Method", "FINDER")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing posts: HTTP %d", resp.StatusCode)
	}

	var data struct {
		Elements []struct {
			ID          string `json:"id"`
			Author      string `json:"author"`
			Commentary  string `json:"commentary"`
			Visibility  string `json:"visibility"`
			PublishedAt int64  `json:"publishedAt"`
			CreatedAt   int64  `json:"createdAt"`
		} `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding posts response: %w", err)
	}

	posts := make([]RemotePost, 0, len(data.Elements))
	for _, e := range data.Elements {
		ms := e.PublishedAt
		if ms == 0 {
			ms = e.CreatedAt
		}
		var published time.Time
		if ms != 0 {
			published = time.UnixMilli(ms)
		}
		posts = append(posts, RemotePost{
			URN:         e.ID,
			Author:      e.Author,
			Text:        e.Commentary,
			Visibility:  e.Visibility,
			PublishedAt: published,
		})
	}
	return posts, nil
}

// DeletePost removes a post by URN.
func (c *Client) DeletePost(ctx context.Context, urn string) error {
	token, err := c.auth.ValidToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/rest/posts/"+url.PathEscape(urn), nil)
	if err != nil {
		return fmt.Errorf("building delete request: %w", err)
	}
	c.setHeaders(req, token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("deleting post: HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

// Compile-time check that Client implements tracker.Publisher
var _ tracker.Publisher = (*Client)(nil)
