package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages media item persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS media_items (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    title TEXT NOT NULL,
    kind TEXT NOT NULL,
    container TEXT,
    video_codec TEXT,
    audio_codec TEXT,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    duration REAL NOT NULL DEFAULT 0,
    bit_rate INTEGER NOT NULL DEFAULT 0,
    size INTEGER NOT NULL DEFAULT 0,
    fingerprint TEXT,
    scanned_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_media_items_fingerprint ON media_items(fingerprint);
`

// Open initializes or connects to the media database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply media schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put inserts or replaces a media item record.
func (s *Store) Put(ctx context.Context, item *MediaItem) error {
	if item == nil {
		return errors.New("media item is nil")
	}
	if item.ScannedAt.IsZero() {
		item.ScannedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO media_items (
            id, path, title, kind, container, video_codec, audio_codec,
            width, height, duration, bit_rate, size, fingerprint, scanned_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Path,
		item.Title,
		string(item.Kind),
		item.Container,
		item.VideoCodec,
		item.AudioCodec,
		item.Width,
		item.Height,
		item.Duration,
		item.BitRate,
		item.Size,
		item.Fingerprint,
		item.ScannedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put media item: %w", err)
	}
	return nil
}

// GetByID fetches a media item by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media_items WHERE id = ?`, id)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media item: %w", err)
	}
	return item, nil
}

// FindByFingerprint returns the first item matching a content fingerprint.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*MediaItem, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+mediaColumns+` FROM media_items WHERE fingerprint = ? ORDER BY id LIMIT 1`,
		fingerprint,
	)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return item, nil
}

// List returns all media items ordered by title.
func (s *Store) List(ctx context.Context) ([]*MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mediaColumns+` FROM media_items ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove deletes a media item by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete media item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const mediaColumns = "id, path, title, kind, container, video_codec, audio_codec, width, height, duration, bit_rate, size, fingerprint, scanned_at"

func scanMediaItem(scanner interface{ Scan(dest ...any) error }) (*MediaItem, error) {
	var (
		id          string
		path        string
		title       string
		kind        string
		container   sql.NullString
		videoCodec  sql.NullString
		audioCodec  sql.NullString
		width       int
		height      int
		duration    float64
		bitRate     int64
		size        int64
		fingerprint sql.NullString
		scannedRaw  string
	)
	if err := scanner.Scan(
		&id, &path, &title, &kind, &container, &videoCodec, &audioCodec,
		&width, &height, &duration, &bitRate, &size, &fingerprint, &scannedRaw,
	); err != nil {
		return nil, err
	}

	item := &MediaItem{
		ID:          id,
		Path:        path,
		Title:       title,
		Kind:        ParseKind(kind),
		Container:   container.String,
		VideoCodec:  videoCodec.String,
		AudioCodec:  audioCodec.String,
		Width:       width,
		Height:      height,
		Duration:    duration,
		BitRate:     bitRate,
		Size:        size,
		Fingerprint: fingerprint.String,
	}
	if scanned, err := time.Parse(time.RFC3339Nano, scannedRaw); err == nil {
		item.ScannedAt = scanned
	}
	return item, nil
}
