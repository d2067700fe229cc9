package database

import (
	"database/sql"
	"fmt"

	"linktrack/internal/tracker"
)

// latestSnapshotJoin selects the most recent snapshot per post: a
// MAX(fetched_at) grouping joined back to the snapshot table by
// equality. This keeps metrics_snapshots purely append-only — no
// mutable "current metrics" column — while still giving each post a
// single current value.
const latestSnapshotJoin = `
	SELECT ms1.*
	FROM metrics_snapshots ms1
	INNER JOIN (
		SELECT post_id, MAX(fetched_at) AS max_fetched
		FROM metrics_snapshots
		GROUP BY post_id
	) ms2 ON ms1.post_id = ms2.post_id AND ms1.fetched_at = ms2.max_fetched`

// CategoryStats aggregates each post's latest snapshot up to its
// category. Every category appears, including those with no posts or no
// metrics (left-join semantics, zero counts). Averages are rounded to
// one decimal place, the engagement rate to two; both are defined as 0
// when their denominator is 0. Ordered by total impressions descending.
func (s *Store) CategoryStats() ([]*tracker.CategoryStats, error) {
	rows, err := s.db.Query(`
		SELECT
			c.name AS category,
			COUNT(DISTINCT p.id) AS post_count,
			COALESCE(SUM(latest.impressions), 0) AS total_impressions,
			COALESCE(SUM(latest.reactions), 0) AS total_reactions,
			COALESCE(SUM(latest.comments), 0) AS total_comments,
			COALESCE(SUM(latest.shares), 0) AS total_shares,
			COALESCE(SUM(latest.clicks), 0) AS total_clicks,
			CASE WHEN COUNT(DISTINCT p.id) > 0
			     THEN ROUND(CAST(COALESCE(SUM(latest.impressions), 0) AS FLOAT) / COUNT(DISTINCT p.id), 1)
			     ELSE 0 END AS avg_impressions,
			CASE WHEN COUNT(DISTINCT p.id) > 0
			     THEN ROUND(CAST(COALESCE(SUM(latest.reactions), 0) AS FLOAT) / COUNT(DISTINCT p.id), 1)
			     ELSE 0 END AS avg_reactions,
			CASE WHEN COUNT(DISTINCT p.id) > 0
			     THEN ROUND(CAST(COALESCE(SUM(latest.comments), 0) AS FLOAT) / COUNT(DISTINCT p.id), 1)
			     ELSE 0 END AS avg_comments,
			CASE WHEN COALESCE(SUM(latest.impressions), 0) > 0
			     THEN ROUND(
			        CAST(COALESCE(SUM(latest.reactions), 0) + COALESCE(SUM(latest.comments), 0) + COALESCE(SUM(latest.shares), 0) AS FLOAT)
			        / COALESCE(SUM(latest.impressions), 0) * 100, 2)
			     ELSE 0 END AS engagement_rate
		FROM categories c
		LEFT JOIN posts p ON c.id = p.category_id
		LEFT JOIN (`+latestSnapshotJoin+`
		) latest ON p.id = latest.post_id
		GROUP BY c.id
		ORDER BY total_impressions DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying category stats: %w", err)
	}
	defer rows.Close()

	var result []*tracker.CategoryStats
	for rows.Next() {
		var cs tracker.CategoryStats
		if err := rows.Scan(&cs.Category, &cs.PostCount,
			&cs.TotalImpressions, &cs.TotalReactions, &cs.TotalComments,
			&cs.TotalShares, &cs.TotalClicks,
			&cs.AvgImpressions, &cs.AvgReactions, &cs.AvgComments,
			&cs.EngagementRate); err != nil {
			return nil, fmt.Errorf("scanning category stats: %w", err)
		}
		result = append(result, &cs)
	}
	return result, rows.Err()
}

// PostsWithMetrics returns posts joined with their latest snapshot
// (Metrics is nil where a post has none), optionally filtered to one
// category, newest posted_at first, capped at limit.
func (s *Store) PostsWithMetrics(categoryName string, limit int) ([]*tracker.PostWithMetrics, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT p.id, p.linkedin_urn, COALESCE(c.name, ''), COALESCE(p.content_preview, ''),
		       COALESCE(p.article_url, ''), p.visibility, p.posted_at, p.created_at,
		       latest.impressions, latest.reactions, latest.comments,
		       latest.shares, latest.clicks, latest.fetched_at
		FROM posts p
		LEFT JOIN categories c ON p.category_id = c.id
		LEFT JOIN (` + latestSnapshotJoin + `
		) latest ON p.id = latest.post_id`

	args := []any{}
	if categoryName != "" {
		query += ` WHERE c.name = ?`
		args = append(args, categoryName)
	}
	query += ` ORDER BY p.posted_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying posts with metrics: %w", err)
	}
	defer rows.Close()

	var result []*tracker.PostWithMetrics
	for rows.Next() {
		var pm tracker.PostWithMetrics
		var visibility, postedAt, createdAt string
		var impressions, reactions, comments, shares, clicks sql.NullInt64
		var fetchedAt sql.NullString

		if err := rows.Scan(&pm.ID, &pm.URN, &pm.Category, &pm.ContentPreview,
			&pm.ArticleURL, &visibility, &postedAt, &createdAt,
			&impressions, &reactions, &comments, &shares, &clicks, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scanning post with metrics: %w", err)
		}

		pm.Visibility = tracker.Visibility(visibility)
		pm.PostedAt = parseStoredTime(postedAt)
		pm.CreatedAt = parseStoredTime(createdAt)

		if fetchedAt.Valid {
			pm.Metrics = &tracker.MetricsSnapshot{
				PostID:      pm.ID,
				FetchedAt:   parseStoredTime(fetchedAt.String),
				Impressions: impressions.Int64,
				Reactions:   reactions.Int64,
				Comments:    comments.Int64,
				Shares:      shares.Int64,
				Clicks:      clicks.Int64,
			}
			pm.MetricsFetchedAt = pm.Metrics.FetchedAt
		}
		result = append(result, &pm)
	}
	return result, rows.Err()
}
