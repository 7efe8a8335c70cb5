package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/soundscene/pulse/internal/domain/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS engagement_events (
    seq      INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id TEXT NOT NULL UNIQUE,
    clip_id  TEXT NOT NULL,
    actor_id TEXT NOT NULL,
    kind     TEXT NOT NULL,
    ts       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_clip ON engagement_events(clip_id);
CREATE INDEX IF NOT EXISTS idx_events_ts ON engagement_events(ts);
`

// SQLiteLedger implements Ledger backed by SQLite. It may share a database
// file with the clip store; each adapter owns its own connection and tables.
type SQLiteLedger struct {
	db *sql.DB
}

// dsn applies the pragmas on every pooled connection; db.Exec("PRAGMA ...")
// would only configure the single connection that happens to run it.
func dsn(path string) string {
	return "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)"
}

// Open initializes or connects to the ledger database and applies the schema.
func Open(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Append records one immutable event.
func (l *SQLiteLedger) Append(ctx context.Context, ev *model.EngagementEvent) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO engagement_events (event_id, clip_id, actor_id, kind, ts)
         VALUES (?, ?, ?, ?, ?)`,
		ev.EventID, ev.ClipID, ev.ActorID, string(ev.Kind),
		ev.TS.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// CountsFor aggregates event totals for a clip.
func (l *SQLiteLedger) CountsFor(ctx context.Context, clipID string) (Counts, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM engagement_events WHERE clip_id = ? GROUP BY kind`,
		clipID)
	if err != nil {
		return Counts{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return Counts{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		switch model.EngagementKind(kind) {
		case model.KindLike:
			c.Likes = n
		case model.KindComment:
			c.Comments = n
		case model.KindShare:
			c.Shares = n
		}
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return c, nil
}

// Replay streams events with TS at or after since, in append order.
func (l *SQLiteLedger) Replay(ctx context.Context, since time.Time, fn func(ev *model.EngagementEvent) error) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT event_id, clip_id, actor_id, kind, ts FROM engagement_events
         WHERE ts >= ? ORDER BY seq`,
		since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev model.EngagementEvent
		var kind, ts string
		if err := rows.Scan(&ev.EventID, &ev.ClipID, &ev.ActorID, &kind, &ts); err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		ev.Kind = model.EngagementKind(kind)
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fmt.Errorf("parse event ts: %w", err)
		}
		ev.TS = parsed

		if err := fn(&ev); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Len returns the number of recorded events.
func (l *SQLiteLedger) Len(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM engagement_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return n, nil
}
