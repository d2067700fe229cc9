package tracker

import "time"

// SavePostParams describes a post to track locally.
type SavePostParams struct {
	URN            string
	CategoryName   string
	ContentPreview string // truncated to 200 runes on save
	ArticleURL     string
	Visibility     Visibility
}

// SaveMetricsParams identifies a post by either its local ID or its URN
// (ID takes precedence when both are set) and carries the counters for
// a new snapshot.
type SaveMetricsParams struct {
	PostID        int64
	URN           string
	Impressions   int64
	Reactions     int64
	Comments      int64
	Shares        int64
	Clicks        int64
	ProfileViews  int64
	FollowerGains int64
}

// ScheduleParams describes content queued for future publication.
type ScheduleParams struct {
	Content      string
	CategoryName string
	ArticleURL   string
	Visibility   Visibility
	ScheduledFor time.Time
}

// Store provides durable storage for categories, posts, metrics
// snapshots, and scheduled posts. Every method is a single
// transaction-scoped unit of work; compound operations that must be
// atomic have dedicated methods (MarkPublishedAndTrack).
type Store interface {
	// GetOrCreateCategory looks a category up by its unique name,
	// inserting it if absent. Safe under repeated calls with the same name.
	GetOrCreateCategory(name string) (int64, error)

	// SavePost resolves (or creates) the category and inserts a tracked
	// post with posted_at set to the current time. Returns
	// ErrDuplicateURN if the URN is already tracked.
	SavePost(p SavePostParams) (int64, error)

	// ListPosts returns tracked posts joined with their category names,
	// newest posted_at first.
	ListPosts(limit int) ([]*Post, error)

	// ListCategories returns every category with its post count,
	// ordered by post count descending.
	ListCategories() ([]*CategoryCount, error)

	// SaveMetrics appends a metrics snapshot for the identified post.
	// Returns ErrPostNotFound if no matching post exists.
	SaveMetrics(p SaveMetricsParams) (int64, error)

	// LatestMetrics returns the most recent snapshot for the post with
	// the given URN, or nil if the post has no snapshots or is unknown.
	LatestMetrics(urn string) (*MetricsSnapshot, error)

	// CategoryStats computes the per-category rollup from each post's
	// latest snapshot, ordered by total impressions descending. Empty
	// categories are included with zero counts.
	CategoryStats() ([]*CategoryStats, error)

	// PostsWithMetrics returns posts joined with their latest snapshot
	// (nil where none exists), optionally filtered to one category,
	// newest posted_at first.
	PostsWithMetrics(categoryName string, limit int) ([]*PostWithMetrics, error)

	// SchedulePost queues content for future publication. The category
	// is not resolved until publish time.
	SchedulePost(p ScheduleParams) (int64, error)

	// DuePosts returns pending scheduled posts with scheduled_for <= now,
	// earliest deadline first.
	DuePosts(now time.Time) ([]*ScheduledPost, error)

	// MarkPublished transitions a pending scheduled post to published,
	// recording the URN returned by the platform. Returns ErrNotPending
	// if the row is already terminal.
	MarkPublished(id int64, urn string) error

	// MarkFailed transitions a pending scheduled post to failed,
	// recording the error message verbatim. Returns ErrNotPending if
	// the row is already terminal.
	MarkFailed(id int64, errorMessage string) error

	// MarkPublishedAndTrack performs the publish bookkeeping as one
	// transaction: transitions the schedule row to published and inserts
	// the mirroring tracked post. Returns the new post's ID.
	MarkPublishedAndTrack(id int64, urn string) (int64, error)

	// UnreconciledPublished returns published scheduled posts whose URN
	// has no matching tracked post (a crash artifact from older
	// two-write flows, repairable by re-inserting the post).
	UnreconciledPublished() ([]*ScheduledPost, error)

	// ListScheduled returns scheduled posts ordered by scheduled_for.
	// When includeDone is false, only pending items are returned.
	ListScheduled(includeDone bool) ([]*ScheduledPost, error)

	// DeleteScheduled removes a scheduled post only while it is still
	// pending. Returns false if the row is absent or already terminal.
	DeleteScheduled(id int64) (bool, error)

	// BackupTo writes a complete snapshot of the store to destPath.
	BackupTo(destPath string) error

	// Close closes the underlying database.
	Close() error
}
