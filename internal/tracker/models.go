package tracker

import "time"

// Visibility controls who can see a post on LinkedIn.
type Visibility string

const (
	VisibilityPublic      Visibility = "PUBLIC"
	VisibilityConnections Visibility = "CONNECTIONS"
	VisibilityLoggedIn    Visibility = "LOGGED_IN"
)

// ValidVisibility reports whether v is one of the accepted visibility values.
func ValidVisibility(v Visibility) bool {
	switch v {
	case VisibilityPublic, VisibilityConnections, VisibilityLoggedIn:
		return true
	}
	return false
}

// ScheduleStatus is the lifecycle state of a scheduled post.
// pending is the only non-terminal state.
type ScheduleStatus string

const (
	StatusPending   ScheduleStatus = "pending"
	StatusPublished ScheduleStatus = "published"
	StatusFailed    ScheduleStatus = "failed"
)

// Category is a user-defined label grouping content by topic or channel.
// Categories are created lazily on first use and never deleted.
type Category struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Post is a published item already live on LinkedIn, tracked locally
// so its metrics can be aggregated by category.
type Post struct {
	ID             int64
	URN            string // LinkedIn's unique identity for the post
	Category       string // Category name, empty if uncategorized
	ContentPreview string // First 200 runes of the content
	ArticleURL     string
	Visibility     Visibility
	PostedAt       time.Time
	CreatedAt      time.Time
}

// MetricsSnapshot is one immutable, timestamped measurement of a post's
// engagement counters. Snapshots are append-only; the latest snapshot by
// FetchedAt is the current value for all aggregate views.
type MetricsSnapshot struct {
	ID            int64
	PostID        int64
	FetchedAt     time.Time
	Impressions   int64
	Reactions     int64
	Comments      int64
	Shares        int64
	Clicks        int64
	ProfileViews  int64
	FollowerGains int64
}

// ScheduledPost is content queued for future publication.
// CategoryName is a plain string, not a foreign key — the category is
// resolved to a row only at publish time.
type ScheduledPost struct {
	ID           int64
	Content      string
	CategoryName string
	ArticleURL   string
	Visibility   Visibility
	ScheduledFor time.Time
	Status       ScheduleStatus
	URN          string // set only when status is published
	ErrorMessage string // set only when status is failed
	CreatedAt    time.Time
}

// CategoryCount pairs a category with the number of posts tracked under it.
type CategoryCount struct {
	ID        int64
	Name      string
	PostCount int64
	CreatedAt time.Time
}

// CategoryStats is the per-category rollup computed from each post's
// latest metrics snapshot. Averages are per tracked post, engagement
// rate is (reactions+comments+shares)/impressions*100.
type CategoryStats struct {
	Category         string
	PostCount        int64
	TotalImpressions int64
	TotalReactions   int64
	TotalComments    int64
	TotalShares      int64
	TotalClicks      int64
	AvgImpressions   float64
	AvgReactions     float64
	AvgComments      float64
	EngagementRate   float64
}

// PostWithMetrics joins a post with its latest snapshot. Metrics is nil
// when the post has no snapshot yet.
type PostWithMetrics struct {
	Post
	Metrics          *MetricsSnapshot
	MetricsFetchedAt time.Time
}

// PostMetrics is a set of engagement counters fetched from an external
// analytics source for a single post.
type PostMetrics struct {
	Impressions int64
	Reactions   int64
	Comments    int64
	Shares      int64
	Clicks      int64
}
