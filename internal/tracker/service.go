package tracker

import (
	"context"
	"fmt"
	"strings"
)

// Service is the orchestration layer that coordinates the store and the
// remote collaborators to perform the high-level operations needed by
// the CLI. It holds no state of its own.
type Service struct {
	store     Store
	publisher Publisher
	analytics AnalyticsSource
	logger    Logger
	clock     Clock
}

// NewService creates a new Service with the provided dependencies.
// publisher and analytics may be nil for store-only commands.
func NewService(store Store, publisher Publisher, analytics AnalyticsSource, logger Logger, clock Clock) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		analytics: analytics,
		logger:    logger,
		clock:     clock,
	}
}

// CreatePost publishes a post immediately and tracks it locally under
// the given category. Returns the remote URN and the local post ID.
func (s *Service) CreatePost(ctx context.Context, text, category, articleURL, title string, visibility Visibility) (string, int64, error) {
	if strings.TrimSpace(text) == "" {
		return "", 0, fmt.Errorf("post text is empty")
	}
	if !ValidVisibility(visibility) {
		return "", 0, fmt.Errorf("invalid visibility %q", visibility)
	}

	var (
		urn string
		err error
	)
	if articleURL != "" {
		urn, err = s.publisher.PublishArticle(ctx, text, articleURL, title, visibility)
	} else {
		urn, err = s.publisher.PublishText(ctx, text, visibility)
	}
	if err != nil {
		return "", 0, err
	}

	postID, err := s.store.SavePost(SavePostParams{
		URN:            urn,
		CategoryName:   category,
		ContentPreview: text,
		ArticleURL:     articleURL,
		Visibility:     visibility,
	})
	if err != nil {
		// The remote post exists; surface the bookkeeping failure with
		// the URN so the user can track it manually.
		return urn, 0, fmt.Errorf("post published as %s but local tracking failed: %w", urn, err)
	}

	s.logger.Info("post created", "urn", urn, "post_id", postID, "category", category)
	return urn, postID, nil
}

// TrackPost imports an existing remote post by URN, assigning it a
// category. Returns ErrDuplicateURN if the URN is already tracked.
func (s *Service) TrackPost(p SavePostParams) (int64, error) {
	if p.URN == "" {
		return 0, fmt.Errorf("urn is required")
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	postID, err := s.store.SavePost(p)
	if err != nil {
		return 0, err
	}
	s.logger.Info("post tracked", "urn", p.URN, "post_id", postID, "category", p.CategoryName)
	return postID, nil
}

// ListPosts returns tracked posts, newest first.
func (s *Service) ListPosts(limit int) ([]*Post, error) {
	return s.store.ListPosts(limit)
}

// ListCategories returns categories with post counts.
func (s *Service) ListCategories() ([]*CategoryCount, error) {
	return s.store.ListCategories()
}

// LogMetrics appends a metrics snapshot for a tracked post. Returns
// ErrPostNotFound when the identified post is unknown.
func (s *Service) LogMetrics(p SaveMetricsParams) (int64, error) {
	if p.PostID == 0 && p.URN == "" {
		return 0, fmt.Errorf("either a post ID or a URN is required")
	}
	return s.store.SaveMetrics(p)
}

// LatestMetrics returns the most recent snapshot for a post, or nil.
func (s *Service) LatestMetrics(urn string) (*MetricsSnapshot, error) {
	return s.store.LatestMetrics(urn)
}

// Stats computes per-category performance from latest snapshots.
func (s *Service) Stats() ([]*CategoryStats, error) {
	return s.store.CategoryStats()
}

// Detail returns per-post metrics, optionally filtered by category.
func (s *Service) Detail(category string, limit int) ([]*PostWithMetrics, error) {
	return s.store.PostsWithMetrics(category, limit)
}

// Schedule queues content for future publication. The category is
// resolved only when the post is published.
func (s *Service) Schedule(p ScheduleParams) (int64, error) {
	if strings.TrimSpace(p.Content) == "" {
		return 0, fmt.Errorf("content is empty")
	}
	if p.CategoryName == "" {
		return 0, fmt.Errorf("category is required")
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if !ValidVisibility(p.Visibility) {
		return 0, fmt.Errorf("invalid visibility %q", p.Visibility)
	}
	id, err := s.store.SchedulePost(p)
	if err != nil {
		return 0, err
	}
	s.logger.Info("post scheduled", "schedule_id", id, "scheduled_for", p.ScheduledFor, "category", p.CategoryName)
	return id, nil
}

// ListScheduled returns queued posts; includeDone adds terminal rows.
func (s *Service) ListScheduled(includeDone bool) ([]*ScheduledPost, error) {
	return s.store.ListScheduled(includeDone)
}

// Cancel deletes a scheduled post while it is still pending. Returns
// false if the item is absent or already published/failed.
func (s *Service) Cancel(id int64) (bool, error) {
	ok, err := s.store.DeleteScheduled(id)
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info("scheduled post cancelled", "schedule_id", id)
	}
	return ok, nil
}

// CollectResult reports the outcome of a bulk metrics collection run.
type CollectResult struct {
	Collected int
	Attempted int
}

// Collect fetches analytics from the remote API for every tracked post
// and stores a snapshot per successful fetch. Returns
// ErrNoAnalyticsAccess when the API rejects the current credentials;
// individual per-post failures are logged and skipped.
func (s *Service) Collect(ctx context.Context, daysBack int) (CollectResult, error) {
	var res CollectResult

	if !s.analytics.CheckAccess(ctx) {
		return res, ErrNoAnalyticsAccess
	}

	posts, err := s.store.ListPosts(100)
	if err != nil {
		return res, fmt.Errorf("listing posts: %w", err)
	}

	for _, p := range posts {
		res.Attempted++
		m, err := s.analytics.FetchPostMetrics(ctx, p.URN, daysBack)
		if err != nil {
			s.logger.Warn("analytics fetch failed", "urn", p.URN, "error", err)
			continue
		}
		if m == nil {
			s.logger.Warn("analytics access denied for post", "urn", p.URN)
			continue
		}
		if _, err := s.store.SaveMetrics(SaveMetricsParams{
			URN:         p.URN,
			Impressions: m.Impressions,
			Reactions:   m.Reactions,
			Comments:    m.Comments,
			Shares:      m.Shares,
			Clicks:      m.Clicks,
		}); err != nil {
			s.logger.Warn("saving collected metrics failed", "urn", p.URN, "error", err)
			continue
		}
		res.Collected++
	}

	s.logger.Info("metrics collection finished", "collected", res.Collected, "attempted", res.Attempted)
	return res, nil
}
