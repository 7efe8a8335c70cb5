package clipstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/soundscene/pulse/internal/domain/model"
)

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS clips (
    id            TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL,
    genre         TEXT NOT NULL,
    tags_json     TEXT NOT NULL DEFAULT '[]',
    created_at    TEXT NOT NULL,
    like_count    INTEGER NOT NULL DEFAULT 0,
    comment_count INTEGER NOT NULL DEFAULT 0,
    share_count   INTEGER NOT NULL DEFAULT 0,
    deleted_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_clips_genre ON clips(genre);
`

// SQLiteStore implements Store backed by SQLite in WAL mode.
type SQLiteStore struct {
	db *sql.DB
}

// dsn builds a connection string that applies the pragmas on every pooled
// connection. A plain db.Exec("PRAGMA ...") reaches only one connection, so
// the rest of the pool would run without a busy timeout and concurrent
// writes would surface SQLITE_BUSY.
func dsn(path string) string {
	return "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)"
}

// Open initializes or connects to the clip database and applies the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return res, nil
}

// Put inserts or replaces a clip's metadata, preserving existing counters.
func (s *SQLiteStore) Put(ctx context.Context, clip *model.Clip) error {
	tagsJSON, err := json.Marshal(clip.NormalizedTags())
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	var deletedAt any
	if clip.DeletedAt != nil {
		deletedAt = clip.DeletedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.execWithRetry(ctx,
		`INSERT INTO clips (
            id, owner_id, title, duration_ms, genre, tags_json, created_at,
            like_count, comment_count, share_count, deleted_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            owner_id = excluded.owner_id,
            title = excluded.title,
            duration_ms = excluded.duration_ms,
            genre = excluded.genre,
            tags_json = excluded.tags_json,
            deleted_at = excluded.deleted_at`,
		clip.ID,
		clip.OwnerID,
		clip.Title,
		clip.Duration.Milliseconds(),
		string(clip.Genre),
		string(tagsJSON),
		clip.CreatedAt.UTC().Format(time.RFC3339Nano),
		clip.LikeCount,
		clip.CommentCount,
		clip.ShareCount,
		deletedAt,
	)
	return err
}

const clipColumns = `id, owner_id, title, duration_ms, genre, tags_json, created_at,
    like_count, comment_count, share_count, deleted_at`

func scanClip(row interface{ Scan(...any) error }) (model.Clip, error) {
	var (
		c          model.Clip
		durationMS int64
		genre      string
		tagsJSON   string
		createdAt  string
		deletedAt  sql.NullString
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &durationMS, &genre, &tagsJSON,
		&createdAt, &c.LikeCount, &c.CommentCount, &c.ShareCount, &deletedAt); err != nil {
		return model.Clip{}, err
	}

	c.Duration = time.Duration(durationMS) * time.Millisecond
	c.Genre = model.Genre(genre)

	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		return model.Clip{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return model.Clip{}, fmt.Errorf("parse created_at: %w", err)
	}
	c.CreatedAt = ts

	if deletedAt.Valid {
		dt, err := time.Parse(time.RFC3339Nano, deletedAt.String)
		if err != nil {
			return model.Clip{}, fmt.Errorf("parse deleted_at: %w", err)
		}
		c.DeletedAt = &dt
	}
	return c, nil
}

// Get returns one live clip by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Clip, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE id = ? AND deleted_at IS NULL`, id)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Clip{}, ErrNotFound
	}
	if err != nil {
		return model.Clip{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return clip, nil
}

// GetMany returns live clips for the given ids, skipping unknown ones.
func (s *SQLiteStore) GetMany(ctx context.Context, ids []string) ([]model.Clip, error) {
	if len(ids) == 0 {
		return []model.Clip{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE id IN (`+placeholders+`) AND deleted_at IS NULL`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	return collectClips(rows)
}

// List returns every live clip.
func (s *SQLiteStore) List(ctx context.Context) ([]model.Clip, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	return collectClips(rows)
}

func collectClips(rows *sql.Rows) ([]model.Clip, error) {
	out := []model.Clip{}
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		out = append(out, clip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return out, nil
}

// Increment atomically bumps one counter in a single UPDATE statement; the
// read-modify-write happens inside SQLite, so concurrent likes on the same
// clip serialize without lost updates.
func (s *SQLiteStore) Increment(ctx context.Context, clipID string, kind model.EngagementKind) error {
	var column string
	switch kind {
	case model.KindLike:
		column = "like_count"
	case model.KindComment:
		column = "comment_count"
	case model.KindShare:
		column = "share_count"
	default:
		return model.ErrUnknownKind
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE clips SET `+column+` = `+column+` + 1 WHERE id = ? AND deleted_at IS NULL`,
		clipID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCounts overwrites a clip's counters; used by ledger replay only.
func (s *SQLiteStore) SetCounts(ctx context.Context, clipID string, likes, comments, shares int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE clips SET like_count = ?, comment_count = ?, share_count = ? WHERE id = ?`,
		likes, comments, shares, clipID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDeleted records an upstream soft delete.
func (s *SQLiteStore) MarkDeleted(ctx context.Context, clipID string, at time.Time) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE clips SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		at.UTC().Format(time.RFC3339Nano), clipID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of live clips.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clips WHERE deleted_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return n, nil
}
