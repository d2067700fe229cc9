package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"linktrack/internal/database/migrations"
	"linktrack/internal/tracker"

	"github.com/mattn/go-sqlite3" // also registers the SQLite driver
)

// timeLayout is the storage format for all timestamps. Fixed-width UTC
// so that lexicographic comparison of stored values matches
// chronological order — due-post selection and latest-snapshot lookups
// both depend on this.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements the tracker.Store interface using SQLite.
type Store struct {
	db    *sql.DB
	path  string
	clock tracker.Clock
}

// Open opens (creating if necessary) the SQLite database at path and
// brings the schema up to date. path can be ":memory:" for tests.
// Schema initialization is idempotent: opening an existing store never
// alters or drops existing rows.
func Open(path string) (*Store, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &Store{db: db, path: path, clock: tracker.RealClock{}}, nil
}

// OpenWithClock is Open with an injected clock, for deterministic
// timestamps in tests.
func OpenWithClock(path string, clock tracker.Clock) (*Store, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	s.clock = clock
	return s, nil
}

// OpenConnection opens and configures a SQLite connection with the
// appropriate PRAGMAs, without touching the schema.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: PRAGMAs are per-connection, and ":memory:" gives
	// every pooled connection its own empty database otherwise.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (s *Store) formatNow() string {
	return s.clock.Now().UTC().Format(timeLayout)
}

func parseStoredTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// truncatePreview caps a content preview at 200 runes.
func truncatePreview(text string) string {
	r := []rune(text)
	if len(r) > 200 {
		return string(r[:200])
	}
	return text
}

// nullable maps an empty string to SQL NULL.
func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Category operations

// GetOrCreateCategory looks up a category by name, inserting it if
// absent. Idempotent by the name uniqueness constraint: a concurrent
// insert of the same name loses the race and falls back to the lookup.
func (s *Store) GetOrCreateCategory(name string) (int64, error) {
	id, err := s.findCategory(s.db, name)
	if err != nil {
		return 0, err
	}
	if id != 0 {
		return id, nil
	}

	res, err := s.db.Exec(
		"INSERT INTO categories (name, created_at) VALUES (?, ?)",
		name, s.formatNow(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return s.findCategory(s.db, name)
		}
		return 0, fmt.Errorf("inserting category: %w", err)
	}

	categoryID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading category id: %w", err)
	}
	return categoryID, nil
}

// querier is the subset of *sql.DB and *sql.Tx used by shared helpers.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (s *Store) findCategory(q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRow("SELECT id FROM categories WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil // Not found
	}
	if err != nil {
		return 0, fmt.Errorf("finding category by name: %w", err)
	}
	return id, nil
}

func (s *Store) getOrCreateCategoryIn(q querier, name string) (int64, error) {
	id, err := s.findCategory(q, name)
	if err != nil || id != 0 {
		return id, err
	}
	res, err := q.Exec(
		"INSERT INTO categories (name, created_at) VALUES (?, ?)",
		name, s.formatNow(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting category: %w", err)
	}
	return res.LastInsertId()
}

// ListCategories returns every category with its post count, most
// posts first.
func (s *Store) ListCategories() ([]*tracker.CategoryCount, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.name, COUNT(p.id), c.created_at
		FROM categories c
		LEFT JOIN posts p ON c.id = p.category_id
		GROUP BY c.id
		ORDER BY COUNT(p.id) DESC, c.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var result []*tracker.CategoryCount
	for rows.Next() {
		var c tracker.CategoryCount
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.PostCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		c.CreatedAt = parseStoredTime(createdAt)
		result = append(result, &c)
	}
	return result, rows.Err()
}

// Post operations

// SavePost resolves the category and inserts a tracked post. The
// content preview is truncated to 200 runes and posted_at is set to the
// current time. Returns tracker.ErrDuplicateURN if the URN exists.
func (s *Store) SavePost(p tracker.SavePostParams) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	postID, err := s.savePostIn(tx, p)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return postID, nil
}

func (s *Store) savePostIn(q querier, p tracker.SavePostParams) (int64, error) {
	var categoryID sql.NullInt64
	if p.CategoryName != "" {
		id, err := s.getOrCreateCategoryIn(q, p.CategoryName)
		if err != nil {
			return 0, err
		}
		categoryID = sql.NullInt64{Int64: id, Valid: true}
	}

	visibility := p.Visibility
	if visibility == "" {
		visibility = tracker.VisibilityPublic
	}

	now := s.formatNow()
	res, err := q.Exec(`
		INSERT INTO posts (linkedin_urn, category_id, content_preview, article_url, visibility, posted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.URN, categoryID, truncatePreview(p.ContentPreview), nullable(p.ArticleURL),
		string(visibility), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("saving post %s: %w", p.URN, tracker.ErrDuplicateURN)
		}
		return 0, fmt.Errorf("inserting post: %w", err)
	}
	return res.LastInsertId()
}

// ListPosts returns tracked posts with their category names, newest
// posted_at first.
func (s *Store) ListPosts(limit int) ([]*tracker.Post, error) {
	if limit <= 0 {
		limit = -1 // SQLite: LIMIT -1 means no limit
	}
	rows, err := s.db.Query(`
		SELECT p.id, p.linkedin_urn, COALESCE(c.name, ''), COALESCE(p.content_preview, ''),
		       COALESCE(p.article_url, ''), p.visibility, p.posted_at, p.created_at
		FROM posts p
		LEFT JOIN categories c ON p.category_id = c.id
		ORDER BY p.posted_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	var result []*tracker.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanPost(rows *sql.Rows) (*tracker.Post, error) {
	var p tracker.Post
	var visibility, postedAt, createdAt string
	if err := rows.Scan(&p.ID, &p.URN, &p.Category, &p.ContentPreview,
		&p.ArticleURL, &visibility, &postedAt, &createdAt); err != nil {
		return nil, fmt.Errorf("scanning post: %w", err)
	}
	p.Visibility = tracker.Visibility(visibility)
	p.PostedAt = parseStoredTime(postedAt)
	p.CreatedAt = parseStoredTime(createdAt)
	return &p, nil
}

// Metrics operations

// SaveMetrics appends a snapshot for the post identified by ID or URN
// (ID wins when both are set). Returns tracker.ErrPostNotFound when no
// matching post exists — a normal negative result, not a failure.
func (s *Store) SaveMetrics(p tracker.SaveMetricsParams) (int64, error) {
	var (
		postID int64
		err    error
	)
	switch {
	case p.PostID != 0:
		err = s.db.QueryRow("SELECT id FROM posts WHERE id = ?", p.PostID).Scan(&postID)
	case p.URN != "":
		err = s.db.QueryRow("SELECT id FROM posts WHERE linkedin_urn = ?", p.URN).Scan(&postID)
	default:
		return 0, tracker.ErrPostNotFound
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, tracker.ErrPostNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolving post for metrics: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO metrics_snapshots
		       (post_id, fetched_at, impressions, reactions, comments, shares, clicks, profile_views, follower_gains)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		postID, s.formatNow(), p.Impressions, p.Reactions, p.Comments,
		p.Shares, p.Clicks, p.ProfileViews, p.FollowerGains,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting metrics snapshot: %w", err)
	}
	return res.LastInsertId()
}

// LatestMetrics returns the most recent snapshot by fetched_at for the
// post with the given URN, or nil if there is none.
func (s *Store) LatestMetrics(urn string) (*tracker.MetricsSnapshot, error) {
	row := s.db.QueryRow(`
		SELECT ms.id, ms.post_id, ms.fetched_at, ms.impressions, ms.reactions,
		       ms.comments, ms.shares, ms.clicks, ms.profile_views, ms.follower_gains
		FROM metrics_snapshots ms
		JOIN posts p ON ms.post_id = p.id
		WHERE p.linkedin_urn = ?
		ORDER BY ms.fetched_at DESC
		LIMIT 1`, urn)

	var m tracker.MetricsSnapshot
	var fetchedAt string
	err := row.Scan(&m.ID, &m.PostID, &fetchedAt, &m.Impressions, &m.Reactions,
		&m.Comments, &m.Shares, &m.Clicks, &m.ProfileViews, &m.FollowerGains)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest metrics: %w", err)
	}
	m.FetchedAt = parseStoredTime(fetchedAt)
	return &m, nil
}

// Scheduling operations

// SchedulePost queues content for future publication. The category
// name is stored as-is; it is resolved to a category row at publish time.
func (s *Store) SchedulePost(p tracker.ScheduleParams) (int64, error) {
	visibility := p.Visibility
	if visibility == "" {
		visibility = tracker.VisibilityPublic
	}

	res, err := s.db.Exec(`
		INSERT INTO scheduled_posts (content, category_name, article_url, visibility, scheduled_for, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?)`,
		p.Content, p.CategoryName, nullable(p.ArticleURL), string(visibility),
		p.ScheduledFor.UTC().Format(timeLayout), s.formatNow(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting scheduled post: %w", err)
	}
	return res.LastInsertId()
}

const scheduledColumns = `id, content, category_name, COALESCE(article_url, ''), visibility,
		scheduled_for, status, COALESCE(linkedin_urn, ''), COALESCE(error_message, ''), created_at`

// DuePosts returns pending scheduled posts whose scheduled_for has
// arrived, earliest deadline first.
func (s *Store) DuePosts(now time.Time) ([]*tracker.ScheduledPost, error) {
	rows, err := s.db.Query(`
		SELECT `+scheduledColumns+`
		FROM scheduled_posts
		WHERE status = 'pending' AND scheduled_for <= ?
		ORDER BY scheduled_for ASC`,
		now.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("finding due posts: %w", err)
	}
	defer rows.Close()
	return collectScheduled(rows)
}

// ListScheduled returns scheduled posts ordered by scheduled_for.
// Terminal rows are included only when includeDone is true.
func (s *Store) ListScheduled(includeDone bool) ([]*tracker.ScheduledPost, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_posts`
	if !includeDone {
		query += ` WHERE status = 'pending'`
	}
	query += ` ORDER BY scheduled_for ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled posts: %w", err)
	}
	defer rows.Close()
	return collectScheduled(rows)
}

func collectScheduled(rows *sql.Rows) ([]*tracker.ScheduledPost, error) {
	var result []*tracker.ScheduledPost
	for rows.Next() {
		var sp tracker.ScheduledPost
		var visibility, status, scheduledFor, createdAt string
		if err := rows.Scan(&sp.ID, &sp.Content, &sp.CategoryName, &sp.ArticleURL,
			&visibility, &scheduledFor, &status, &sp.URN, &sp.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning scheduled post: %w", err)
		}
		sp.Visibility = tracker.Visibility(visibility)
		sp.Status = tracker.ScheduleStatus(status)
		sp.ScheduledFor = parseStoredTime(scheduledFor)
		sp.CreatedAt = parseStoredTime(createdAt)
		result = append(result, &sp)
	}
	return result, rows.Err()
}

// MarkPublished transitions a pending scheduled post to published.
// The transition is guarded: a row that is absent or already terminal
// returns tracker.ErrNotPending and nothing is written.
func (s *Store) MarkPublished(id int64, urn string) error {
	res, err := s.db.Exec(
		"UPDATE scheduled_posts SET status = 'published', linkedin_urn = ? WHERE id = ? AND status = 'pending'",
		urn, id)
	if err != nil {
		return fmt.Errorf("marking published: %w", err)
	}
	return requireOneRow(res, id)
}

// MarkFailed transitions a pending scheduled post to failed, storing
// the error message verbatim. Guarded like MarkPublished.
func (s *Store) MarkFailed(id int64, errorMessage string) error {
	res, err := s.db.Exec(
		"UPDATE scheduled_posts SET status = 'failed', error_message = ? WHERE id = ? AND status = 'pending'",
		errorMessage, id)
	if err != nil {
		return fmt.Errorf("marking failed: %w", err)
	}
	return requireOneRow(res, id)
}

func requireOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("scheduled post %d: %w", id, tracker.ErrNotPending)
	}
	return nil
}

// MarkPublishedAndTrack performs the publish bookkeeping in a single
// transaction: the schedule row's terminal transition and the insert of
// the mirroring tracked post either both happen or neither does, so a
// published schedule row can never be observed without its post.
func (s *Store) MarkPublishedAndTrack(id int64, urn string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"UPDATE scheduled_posts SET status = 'published', linkedin_urn = ? WHERE id = ? AND status = 'pending'",
		urn, id)
	if err != nil {
		return 0, fmt.Errorf("marking published: %w", err)
	}
	if err := requireOneRow(res, id); err != nil {
		return 0, err
	}

	var content, categoryName, articleURL, visibility string
	err = tx.QueryRow(
		"SELECT content, category_name, COALESCE(article_url, ''), visibility FROM scheduled_posts WHERE id = ?",
		id).Scan(&content, &categoryName, &articleURL, &visibility)
	if err != nil {
		return 0, fmt.Errorf("loading scheduled post %d: %w", id, err)
	}

	postID, err := s.savePostIn(tx, tracker.SavePostParams{
		URN:            urn,
		CategoryName:   categoryName,
		ContentPreview: content,
		ArticleURL:     articleURL,
		Visibility:     tracker.Visibility(visibility),
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return postID, nil
}

// UnreconciledPublished returns published schedule rows whose URN has
// no matching tracked post. These are crash artifacts from flows that
// wrote the two records separately; re-inserting the post keyed on the
// stored URN repairs them.
func (s *Store) UnreconciledPublished() ([]*tracker.ScheduledPost, error) {
	rows, err := s.db.Query(`
		SELECT sp.id, sp.content, sp.category_name, COALESCE(sp.article_url, ''), sp.visibility,
		       sp.scheduled_for, sp.status, COALESCE(sp.linkedin_urn, ''), COALESCE(sp.error_message, ''), sp.created_at
		FROM scheduled_posts sp
		LEFT JOIN posts p ON p.linkedin_urn = sp.linkedin_urn
		WHERE sp.status = 'published' AND sp.linkedin_urn IS NOT NULL AND p.id IS NULL
		ORDER BY sp.scheduled_for ASC`)
	if err != nil {
		return nil, fmt.Errorf("finding unreconciled posts: %w", err)
	}
	defer rows.Close()
	return collectScheduled(rows)
}

// DeleteScheduled removes a scheduled post only while it is pending.
// Returns false if the row is absent or already terminal.
func (s *Store) DeleteScheduled(id int64) (bool, error) {
	res, err := s.db.Exec(
		"DELETE FROM scheduled_posts WHERE id = ? AND status = 'pending'", id)
	if err != nil {
		return false, fmt.Errorf("deleting scheduled post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *Store) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that Store implements the tracker.Store interface
var _ tracker.Store = (*Store)(nil)
