package tracker

import (
	"context"
	"errors"
	"fmt"
)

// Engine advances due scheduled posts to a terminal state. It holds no
// state of its own — the store's pending rows are the work queue, and
// each invocation makes exactly one publish attempt per due item, with
// no retries. When to invoke it is the caller's responsibility (one-off
// command or cron trigger).
type Engine struct {
	store     Store
	publisher Publisher
	logger    Logger
	clock     Clock
}

// NewEngine creates a scheduling engine with the provided dependencies.
func NewEngine(store Store, publisher Publisher, logger Logger, clock Clock) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
		logger:    logger,
		clock:     clock,
	}
}

// PublishDuePosts fetches all pending scheduled posts whose time has
// arrived and attempts to publish each one, earliest deadline first.
// A successful attempt transitions the schedule row to published and
// inserts the mirroring tracked post in the same transaction; a failed
// attempt records the error and moves on — one item's failure never
// aborts the batch. Returns the number published and failed.
func (e *Engine) PublishDuePosts(ctx context.Context) (published, failed int, err error) {
	// Repair any published rows left without a tracked post by older
	// versions that wrote the two records separately.
	if n, rerr := e.Reconcile(); rerr != nil {
		e.logger.Warn("reconciliation failed", "error", rerr)
	} else if n > 0 {
		e.logger.Info("reconciled published posts", "count", n)
	}

	due, err := e.store.DuePosts(e.clock.Now())
	if err != nil {
		return 0, 0, fmt.Errorf("fetching due posts: %w", err)
	}

	for _, item := range due {
		urn, perr := e.publishOne(ctx, item)
		if perr != nil {
			e.logger.Error("publish attempt failed", "schedule_id", item.ID, "error", perr)
			if merr := e.store.MarkFailed(item.ID, perr.Error()); merr != nil {
				return published, failed, fmt.Errorf("marking schedule %d failed: %w", item.ID, merr)
			}
			failed++
			continue
		}

		postID, merr := e.store.MarkPublishedAndTrack(item.ID, urn)
		if merr != nil {
			// The remote post exists but local bookkeeping failed; the
			// next run's reconciliation pass cannot help here because
			// the schedule row is still pending, so surface the error.
			return published, failed, fmt.Errorf("recording published schedule %d: %w", item.ID, merr)
		}

		e.logger.Info("scheduled post published",
			"schedule_id", item.ID, "post_id", postID, "urn", urn, "category", item.CategoryName)
		published++
	}

	return published, failed, nil
}

// publishOne makes a single publish attempt for a due item, choosing an
// article post when an article URL is present.
func (e *Engine) publishOne(ctx context.Context, item *ScheduledPost) (string, error) {
	if item.ArticleURL != "" {
		return e.publisher.PublishArticle(ctx, item.Content, item.ArticleURL, "", item.Visibility)
	}
	return e.publisher.PublishText(ctx, item.Content, item.Visibility)
}

// Reconcile re-creates tracked posts for published schedule rows whose
// URN has no matching posts row. Returns the number repaired.
func (e *Engine) Reconcile() (int, error) {
	orphans, err := e.store.UnreconciledPublished()
	if err != nil {
		return 0, fmt.Errorf("finding unreconciled posts: %w", err)
	}

	repaired := 0
	for _, item := range orphans {
		_, err := e.store.SavePost(SavePostParams{
			URN:            item.URN,
			CategoryName:   item.CategoryName,
			ContentPreview: item.Content,
			ArticleURL:     item.ArticleURL,
			Visibility:     item.Visibility,
		})
		if errors.Is(err, ErrDuplicateURN) {
			continue
		}
		if err != nil {
			return repaired, fmt.Errorf("re-tracking published schedule %d: %w", item.ID, err)
		}
		repaired++
	}
	return repaired, nil
}
