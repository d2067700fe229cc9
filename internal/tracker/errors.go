package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrPostNotFound is returned when metrics are logged against an
	// unknown URN or post ID. This is a normal negative result the
	// caller is expected to branch on, not a fatal condition.
	ErrPostNotFound = errors.New("post not found")

	// ErrDuplicateURN is returned when saving a post whose URN is
	// already tracked. Re-tracking is rejected, not merged.
	ErrDuplicateURN = errors.New("post with this URN is already tracked")

	// ErrNotPending is returned when a terminal transition (published or
	// failed) is attempted on a scheduled post that is no longer pending.
	ErrNotPending = errors.New("scheduled post is not pending")

	// ErrNotConfigured is returned when an operation requires LinkedIn
	// credentials that are missing from the environment.
	ErrNotConfigured = errors.New("missing credentials")

	// ErrNoAnalyticsAccess is returned by bulk collection when the
	// analytics API rejects the current credentials. Metrics can still
	// be logged manually.
	ErrNoAnalyticsAccess = errors.New("no analytics API access")
)

// PublishError reports a failed remote publish attempt. The scheduling
// engine treats every cause uniformly — auth failure, rate limit,
// validation error all mark the item failed with Message stored verbatim.
type PublishError struct {
	StatusCode int
	Message    string
}

func (e *PublishError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("publish failed (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return "publish failed: " + e.Message
}
