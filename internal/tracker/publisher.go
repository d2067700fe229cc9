package tracker

import "context"

// Publisher creates posts on the remote platform. Implementations
// return the platform-assigned URN on success and a *PublishError on
// any failure.
type Publisher interface {
	// PublishText creates a plain text post.
	PublishText(ctx context.Context, text string, visibility Visibility) (string, error)

	// PublishArticle creates a post with a link attachment. title may be
	// empty, in which case the platform derives one from the URL.
	PublishArticle(ctx context.Context, text, articleURL, title string, visibility Visibility) (string, error)
}

// AnalyticsSource fetches engagement metrics from the remote platform.
type AnalyticsSource interface {
	// CheckAccess reports whether the analytics API is reachable with
	// the current credentials.
	CheckAccess(ctx context.Context) bool

	// FetchPostMetrics aggregates metrics for one post over the last
	// daysBack days. Returns (nil, nil) when the API denies access —
	// the caller falls back to manual metric entry.
	FetchPostMetrics(ctx context.Context, urn string, daysBack int) (*PostMetrics, error)
}
