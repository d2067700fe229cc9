package tracker_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"linktrack/internal/database"
	"linktrack/internal/tracker"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

// fakePublisher hands out sequential URNs, or fails URNs listed in failing.
type fakePublisher struct {
	next    int
	failing map[string]bool // content -> should fail
	calls   []string
}

func (p *fakePublisher) publish(text string) (string, error) {
	p.calls = append(p.calls, text)
	if p.failing[text] {
		return "", &tracker.PublishError{StatusCode: 422, Message: "rejected: " + text}
	}
	p.next++
	return fmt.Sprintf("urn:li:share:%d", p.next), nil
}

func (p *fakePublisher) PublishText(_ context.Context, text string, _ tracker.Visibility) (string, error) {
	return p.publish(text)
}

func (p *fakePublisher) PublishArticle(_ context.Context, text, _, _ string, _ tracker.Visibility) (string, error) {
	return p.publish("article:" + text)
}

func newEngineTest(t *testing.T) (*tracker.Engine, *database.Store, *fakePublisher, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	store, err := database.OpenWithClock(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pub := &fakePublisher{failing: map[string]bool{}}
	engine := tracker.NewEngine(store, pub, tracker.NewNopLogger(), clock)
	return engine, store, pub, clock
}

func TestEngine_PublishDuePosts(t *testing.T) {
	t.Run("publishes a past-due item and tracks the post", func(t *testing.T) {
		engine, store, _, clock := newEngineTest(t)

		_, err := store.SchedulePost(tracker.ScheduleParams{
			Content:      "Hello",
			CategoryName: "Eng",
			Visibility:   tracker.VisibilityPublic,
			ScheduledFor: clock.Now().Add(-time.Hour),
		})
		if err != nil {
			t.Fatalf("SchedulePost() error = %v", err)
		}

		published, failed, err := engine.PublishDuePosts(context.Background())
		if err != nil {
			t.Fatalf("PublishDuePosts() error = %v", err)
		}
		if published != 1 || failed != 0 {
			t.Errorf("(published, failed) = (%d, %d), want (1, 0)", published, failed)
		}

		items, err := store.ListScheduled(true)
		if err != nil {
			t.Fatal(err)
		}
		if items[0].Status != tracker.StatusPublished {
			t.Errorf("Status = %q, want published", items[0].Status)
		}
		if items[0].URN == "" {
			t.Error("URN is empty after publish")
		}

		posts, err := store.ListPosts(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(posts) != 1 {
			t.Fatalf("len(posts) = %d, want 1", len(posts))
		}
		if posts[0].URN != items[0].URN {
			t.Errorf("post URN = %q, want %q", posts[0].URN, items[0].URN)
		}
		if posts[0].Category != "Eng" {
			t.Errorf("Category = %q, want Eng", posts[0].Category)
		}
	})

	t.Run("future items are left alone", func(t *testing.T) {
		engine, store, pub, clock := newEngineTest(t)

		if _, err := store.SchedulePost(tracker.ScheduleParams{
			Content:      "tomorrow",
			CategoryName: "Eng",
			Visibility:   tracker.VisibilityPublic,
			ScheduledFor: clock.Now().Add(24 * time.Hour),
		}); err != nil {
			t.Fatal(err)
		}

		published, failed, err := engine.PublishDuePosts(context.Background())
		if err != nil {
			t.Fatalf("PublishDuePosts() error = %v", err)
		}
		if published != 0 || failed != 0 {
			t.Errorf("(published, failed) = (%d, %d), want (0, 0)", published, failed)
		}
		if len(pub.calls) != 0 {
			t.Errorf("publisher was called %d times for a future item", len(pub.calls))
		}
	})

	t.Run("one failure never aborts the batch", func(t *testing.T) {
		engine, store, _, clock := newEngineTest(t)

		for i, content := range []string{"first", "bad", "third"} {
			if _, err := store.SchedulePost(tracker.ScheduleParams{
				Content:      content,
				CategoryName: "Eng",
				Visibility:   tracker.VisibilityPublic,
				ScheduledFor: clock.Now().Add(time.Duration(i-3) * time.Hour),
			}); err != nil {
				t.Fatal(err)
			}
		}
		// Rebuild the engine with a publisher that rejects "bad".
		failingPub := &fakePublisher{failing: map[string]bool{"bad": true}}
		engine = tracker.NewEngine(store, failingPub, tracker.NewNopLogger(), clock)

		published, failed, err := engine.PublishDuePosts(context.Background())
		if err != nil {
			t.Fatalf("PublishDuePosts() error = %v", err)
		}
		if published != 2 || failed != 1 {
			t.Errorf("(published, failed) = (%d, %d), want (2, 1)", published, failed)
		}

		items, err := store.ListScheduled(true)
		if err != nil {
			t.Fatal(err)
		}
		for _, item := range items {
			if item.Content == "bad" {
				if item.Status != tracker.StatusFailed {
					t.Errorf("bad item status = %q, want failed", item.Status)
				}
				if item.ErrorMessage == "" {
					t.Error("bad item has no error message")
				}
			} else if item.Status != tracker.StatusPublished {
				t.Errorf("%q status = %q, want published", item.Content, item.Status)
			}
		}
	})

	t.Run("article posts go through the article path", func(t *testing.T) {
		engine, store, pub, clock := newEngineTest(t)

		if _, err := store.SchedulePost(tracker.ScheduleParams{
			Content:      "read this",
			CategoryName: "Eng",
			ArticleURL:   "https://example.com/why-go",
			Visibility:   tracker.VisibilityPublic,
			ScheduledFor: clock.Now().Add(-time.Minute),
		}); err != nil {
			t.Fatal(err)
		}

		if _, _, err := engine.PublishDuePosts(context.Background()); err != nil {
			t.Fatalf("PublishDuePosts() error = %v", err)
		}
		if len(pub.calls) != 1 || pub.calls[0] != "article:read this" {
			t.Errorf("publisher calls = %v, want the article path", pub.calls)
		}
	})

	t.Run("failed items are never retried", func(t *testing.T) {
		engine, store, _, clock := newEngineTest(t)

		failingPub := &fakePublisher{failing: map[string]bool{"doomed": true}}
		engine = tracker.NewEngine(store, failingPub, tracker.NewNopLogger(), clock)

		if _, err := store.SchedulePost(tracker.ScheduleParams{
			Content:      "doomed",
			CategoryName: "Eng",
			Visibility:   tracker.VisibilityPublic,
			ScheduledFor: clock.Now().Add(-time.Minute),
		}); err != nil {
			t.Fatal(err)
		}

		if _, _, err := engine.PublishDuePosts(context.Background()); err != nil {
			t.Fatal(err)
		}
		published, failed, err := engine.PublishDuePosts(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if published != 0 || failed != 0 {
			t.Errorf("second run (published, failed) = (%d, %d), want (0, 0)", published, failed)
		}
		if len(failingPub.calls) != 1 {
			t.Errorf("publisher called %d times, want 1 (no retry)", len(failingPub.calls))
		}
	})
}

func TestEngine_Reconcile(t *testing.T) {
	engine, store, _, clock := newEngineTest(t)

	// Manufacture the gap: a published schedule row with no tracked post,
	// as an interrupted two-write flow would have left behind.
	id, err := store.SchedulePost(tracker.ScheduleParams{
		Content:      "orphaned",
		CategoryName: "Eng",
		Visibility:   tracker.VisibilityPublic,
		ScheduledFor: clock.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkPublished(id, "urn:li:share:777"); err != nil {
		t.Fatal(err)
	}

	repaired, err := engine.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if repaired != 1 {
		t.Errorf("repaired = %d, want 1", repaired)
	}

	posts, err := store.ListPosts(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].URN != "urn:li:share:777" {
		t.Fatalf("posts = %+v, want the re-tracked orphan", posts)
	}
	if posts[0].Category != "Eng" {
		t.Errorf("Category = %q, want Eng", posts[0].Category)
	}

	// A second pass finds nothing to repair.
	repaired, err = engine.Reconcile()
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}
	if repaired != 0 {
		t.Errorf("second pass repaired = %d, want 0", repaired)
	}
}

func TestEngine_PublishDuePosts_RunsReconcileFirst(t *testing.T) {
	engine, store, _, clock := newEngineTest(t)

	id, err := store.SchedulePost(tracker.ScheduleParams{
		Content:      "orphaned",
		CategoryName: "Eng",
		Visibility:   tracker.VisibilityPublic,
		ScheduledFor: clock.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkPublished(id, "urn:li:share:777"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := engine.PublishDuePosts(context.Background()); err != nil {
		t.Fatalf("PublishDuePosts() error = %v", err)
	}

	posts, err := store.ListPosts(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Errorf("len(posts) = %d, want the orphan repaired during the run", len(posts))
	}
}

func TestPublishError_Error(t *testing.T) {
	var err error = &tracker.PublishError{StatusCode: 429, Message: "slow down"}
	want := "publish failed (HTTP 429): slow down"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var perr *tracker.PublishError
	if !errors.As(err, &perr) {
		t.Error("errors.As failed to match *PublishError")
	}
}
