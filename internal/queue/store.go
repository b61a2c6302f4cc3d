package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"squish/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS transcode_jobs (
    id TEXT PRIMARY KEY,
    media_id TEXT NOT NULL,
    preset_name TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    progress REAL NOT NULL DEFAULT 0,
    chosen_path TEXT,
    output_path TEXT,
    error_message TEXT,
    retry_count INTEGER NOT NULL DEFAULT 0,
    queued_at TEXT NOT NULL,
    started_at TEXT,
    ended_at TEXT,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcode_jobs_status ON transcode_jobs(status);
CREATE INDEX IF NOT EXISTS idx_transcode_jobs_media ON transcode_jobs(media_id);
`

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.QueueDBPath())
}

// OpenPath opens the job database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
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
		return nil, fmt.Errorf("apply job schema: %w", err)
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

// NewJob inserts a queued job for a media item and preset.
func (s *Store) NewJob(ctx context.Context, mediaID, presetName string, priority int) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transcode_jobs (
            id, media_id, preset_name, priority, status, progress,
            retry_count, queued_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		id,
		mediaID,
		presetName,
		priority,
		StatusQueued,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM transcode_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_jobs
         SET media_id = ?, preset_name = ?, priority = ?, status = ?, progress = ?,
             chosen_path = ?, output_path = ?, error_message = ?, retry_count = ?,
             queued_at = ?, started_at = ?, ended_at = ?, updated_at = ?
         WHERE id = ?`,
		job.MediaID,
		job.PresetName,
		job.Priority,
		job.Status,
		job.Progress,
		nullableString(job.ChosenPath),
		nullableString(job.OutputPath),
		nullableString(job.ErrorMessage),
		job.RetryCount,
		job.QueuedAt.Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.EndedAt),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress fraction. Progress writes come
// from the encode supervisor's reader goroutine and must not clobber status
// transitions made by the scheduler.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress float64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_jobs SET progress = ?, updated_at = ? WHERE id = ?`,
		progress,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// NextQueued returns the admissible queued job with the highest priority,
// ties broken by queue time. Jobs whose media item already has an active job
// are skipped so a single file is never encoded twice concurrently.
func (s *Store) NextQueued(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM transcode_jobs
         WHERE status = ?
           AND media_id NOT IN (
               SELECT media_id FROM transcode_jobs WHERE status IN (?, ?)
           )
         ORDER BY priority DESC, queued_at ASC
         LIMIT 1`,
		StatusQueued,
		StatusRunning,
		StatusPaused,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued job: %w", err)
	}
	return job, nil
}

// CountActive returns the number of jobs occupying a concurrency slot.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM transcode_jobs WHERE status IN (?, ?)`,
		StatusRunning,
		StatusPaused,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// ActiveForMedia reports whether a media item already has a running or
// paused job.
func (s *Store) ActiveForMedia(ctx context.Context, mediaID string) (bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM transcode_jobs WHERE media_id = ? AND status IN (?, ?)`,
		mediaID,
		StatusRunning,
		StatusPaused,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("count active for media: %w", err)
	}
	return count > 0, nil
}

// List returns jobs filtered by status set, or all jobs when no status is
// provided. Queued jobs surface in admission order ahead of everything else.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM transcode_jobs`
	orderClause := ` ORDER BY
        CASE status WHEN 'running' THEN 0 WHEN 'paused' THEN 1 WHEN 'queued' THEN 2 ELSE 3 END,
        priority DESC, queued_at ASC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ResetStuckActive returns jobs left running or paused by a previous daemon
// process back to queued. Called once at startup before admission begins.
func (s *Store) ResetStuckActive(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_jobs
         SET status = ?, progress = 0, chosen_path = NULL, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusRunning,
		StatusPaused,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM transcode_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcode_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearFinished removes completed, failed, and cancelled jobs.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM transcode_jobs WHERE status IN (?, ?, ?)`,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear finished jobs: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, media_id, preset_name, priority, status, progress, chosen_path, output_path, error_message, retry_count, queued_at, started_at, ended_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		mediaID      string
		presetName   string
		priority     int
		statusStr    string
		progress     float64
		chosenPath   sql.NullString
		outputPath   sql.NullString
		errorMessage sql.NullString
		retryCount   int
		queuedRaw    string
		startedRaw   sql.NullString
		endedRaw     sql.NullString
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&mediaID,
		&presetName,
		&priority,
		&statusStr,
		&progress,
		&chosenPath,
		&outputPath,
		&errorMessage,
		&retryCount,
		&queuedRaw,
		&startedRaw,
		&endedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		MediaID:      mediaID,
		PresetName:   presetName,
		Priority:     priority,
		Status:       Status(statusStr),
		Progress:     progress,
		ChosenPath:   chosenPath.String,
		OutputPath:   outputPath.String,
		ErrorMessage: errorMessage.String,
		RetryCount:   retryCount,
	}
	if queued, err := time.Parse(time.RFC3339Nano, queuedRaw); err == nil {
		job.QueuedAt = queued
	}
	if startedRaw.Valid {
		if started, err := time.Parse(time.RFC3339Nano, startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if endedRaw.Valid {
		if ended, err := time.Parse(time.RFC3339Nano, endedRaw.String); err == nil {
			job.EndedAt = &ended
		}
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
