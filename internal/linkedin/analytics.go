package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"linktrack/internal/config"
	"linktrack/internal/tracker"
)

// metricTypes are the queryTypes requested per post from the
// memberCreatorPostAnalytics API.
var metricTypes = []string{"IMPRESSION", "REACTION", "COMMENT", "SHARE", "CLICK"}

// AnalyticsClient fetches engagement metrics from the LinkedIn
// memberCreatorPostAnalytics API. Access requires the Community
// Management API product; without it every call is denied and the
// caller falls back to manual metric entry. Implements
// tracker.AnalyticsSource.
type AnalyticsClient struct {
	httpClient *http.Client
	baseURL    string
	version    string
	auth       *Authenticator
}

// NewAnalyticsClient creates an analytics API client.
func NewAnalyticsClient(api config.APIConfig, auth *Authenticator) *AnalyticsClient {
	return &AnalyticsClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    api.BaseURL,
		version:    api.Version,
		auth:       auth,
	}
}

// dateRange renders the Rest-li date range literal for the given window.
func dateRange(start, end time.Time) string {
	return fmt.Sprintf("(start:(day:%d,month:%d,year:%d),end:(day:%d,month:%d,year:%d))",
		start.Day(), int(start.Month()), start.Year(),
		end.Day(), int(end.Month()), end.Year())
}

// CheckAccess probes the analytics API with a minimal query and reports
// whether it is usable with the current credentials.
func (c *AnalyticsClient) CheckAccess(ctx context.Context) bool {
	token, err := c.auth.ValidToken(ctx)
	if err != nil {
		return false
	}

	end := time.Now()
	params := url.Values{}
	params.Set("q", "me")
	params.Set("queryType", "IMPRESSION")
	params.Set("aggregation", "DAILY")
	params.Set("dateRange", dateRange(end.AddDate(0, 0, -7), end))

	resp, err := c.get(ctx, token, params)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// FetchPostMetrics aggregates the metric types for one post over the
// last daysBack days. Returns (nil, nil) when the API denies access.
func (c *AnalyticsClient) FetchPostMetrics(ctx context.Context, urn string, daysBack int) (*tracker.PostMetrics, error) {
	token, err := c.auth.ValidToken(ctx)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	window := dateRange(end.AddDate(0, 0, -daysBack), end)

	var m tracker.PostMetrics
	for _, metricType := range metricTypes {
		params := url.Values{}
		params.Set("q", "entity")
		params.Set("entity", fmt.Sprintf("(share:%s)", urn))
		params.Set("queryType", metricType)
		params.Set("aggregation", "DAILY")
		params.Set("dateRange", window)

		resp, err := c.get(ctx, token, params)
		if err != nil {
			return nil, fmt.Errorf("fetching %s for %s: %w", metricType, urn, err)
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			resp.Body.Close()
			return nil, nil // No API access
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetching %s for %s: HTTP %d", metricType, urn, resp.StatusCode)
		}

		var data struct {
			Elements []struct {
				Count int64 `json:"count"`
			} `json:"elements"`
		}
		err = json.NewDecoder(resp.Body).Decode(&data)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding %s response: %w", metricType, err)
		}

		var total int64
		for _, e := range data.Elements {
			total += e.Count
		}

		switch metricType {
		case "IMPRESSION":
			m.Impressions = total
		case "REACTION":
			m.Reactions = total
		case "COMMENT":
			m.Comments = total
		case "SHARE":
			m.Shares = total
		case "CLICK":
			m.Clicks = total
		}
	}

	return &m, nil
}

func (c *AnalyticsClient) get(ctx context.Context, token *StoredToken, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/rest/memberCreatorPostAnalytics?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building analytics request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	req.Header.Set("LinkedIn-Version", c.version)

	return c.httpClient.Do(req)
}

// Compile-time check that AnalyticsClient implements tracker.AnalyticsSource
var _ tracker.AnalyticsSource = (*AnalyticsClient)(nil)
