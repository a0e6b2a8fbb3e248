// Package sqlite provides SQLite-backed implementations of the track cache
// and feature log ports.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously
)

// Adapter implements ports.TrackCache and ports.FeatureLog.
type Adapter struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ ports.TrackCache = (*Adapter)(nil)
	_ ports.FeatureLog = (*Adapter)(nil)
)

// NewAdapter opens the database at storagePath and runs the schema migration.
func NewAdapter(storagePath string) (*Adapter, error) {
	dsn := storagePath
	inMemory := strings.Contains(storagePath, ":memory:")
	if !inMemory {
		dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite adapter: open db: %w", err)
	}
	if inMemory {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite adapter: ping db: %w", err)
	}

	adapter := &Adapter{db: db, now: time.Now}
	if err := adapter.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite adapter: migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// GetTrack returns a cached track fetched no longer than maxAge ago. A
// non-positive maxAge disables expiry. Missing and stale rows both report
// domain.ErrNotFound.
func (a *Adapter) GetTrack(ctx context.Context, trackID string, maxAge time.Duration) (domain.Track, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, title, artist, album, preview_url, fetched_at
		FROM tracks
		WHERE id = ?
	`, trackID)

	var (
		t         domain.Track
		album     sql.NullString
		preview   sql.NullString
		fetchedAt int64
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Artist, &album, &preview, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Track{}, domain.ErrNotFound
		}
		return domain.Track{}, fmt.Errorf("sqlite adapter: load track: %w", err)
	}

	if maxAge > 0 && a.now().Sub(time.Unix(0, fetchedAt)) > maxAge {
		return domain.Track{}, domain.ErrNotFound
	}

	t.Album = album.String
	t.PreviewURL = preview.String
	return t, nil
}

// SaveTrack upserts a catalog lookup and resets its age.
func (a *Adapter) SaveTrack(ctx context.Context, t domain.Track) error {
	if t.ID == "" {
		return errors.New("sqlite adapter: save track: empty id")
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO tracks (id, title, artist, album, preview_url, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			artist=excluded.artist,
			album=excluded.album,
			preview_url=excluded.preview_url,
			fetched_at=excluded.fetched_at;
	`, t.ID, t.Title, t.Artist, t.Album, t.PreviewURL, a.now().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite adapter: save track %s: %w", t.ID, err)
	}
	return nil
}

// RecordFeatures appends one computed feature vector.
func (a *Adapter) RecordFeatures(ctx context.Context, e ports.FeatureLogEntry) error {
	vector, err := json.Marshal(e.Vector)
	if err != nil {
		return fmt.Errorf("sqlite adapter: encode vector: %w", err)
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = a.now()
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO feature_log (request_id, track_id, vector, preview_available, fallback, label, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.RequestID, e.TrackID, string(vector), e.PreviewAvailable, e.Fallback, e.Label, createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite adapter: record features: %w", err)
	}
	return nil
}

// RecentFeatures returns up to limit entries for trackID, newest first.
func (a *Adapter) RecentFeatures(ctx context.Context, trackID string, limit int) ([]ports.FeatureLogEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT request_id, track_id, vector, preview_available, fallback, label, created_at
		FROM feature_log
		WHERE track_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, trackID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite adapter: query features: %w", err)
	}
	defer rows.Close()

	entries := []ports.FeatureLogEntry{}
	for rows.Next() {
		var (
			e         ports.FeatureLogEntry
			vector    string
			createdAt int64
		)
		if err := rows.Scan(&e.RequestID, &e.TrackID, &vector, &e.PreviewAvailable, &e.Fallback, &e.Label, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite adapter: scan feature row: %w", err)
		}
		if err := json.Unmarshal([]byte(vector), &e.Vector); err != nil {
			return nil, fmt.Errorf("sqlite adapter: decode vector: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite adapter: iterate feature rows: %w", err)
	}

	return entries, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT,
		preview_url TEXT,
		fetched_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feature_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		track_id TEXT NOT NULL,
		vector TEXT NOT NULL,
		preview_available INTEGER NOT NULL,
		fallback INTEGER NOT NULL,
		label INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_feature_log_track ON feature_log(track_id, created_at);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}

	// Older databases predate the album column.
	if _, err := a.db.Exec("ALTER TABLE tracks ADD COLUMN album TEXT"); err != nil {
		if !isDuplicateColumnError(err) {
			return err
		}
	}

	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}
