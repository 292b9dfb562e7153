package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"sprocket/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the job database location.
func (s *Store) Path() string {
	return s.path
}

// Put inserts a new job record.
func (s *Store) Put(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.ID == "" {
		return errors.New("job id is empty")
	}

	paramsJSON, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = StatusQueued
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, operation, input_path, output_path, parameters_json,
            status, progress, error_message, depends_on, workflow, profile,
            created_at, updated_at, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Operation,
		job.InputPath,
		job.OutputPath,
		string(paramsJSON),
		job.Status,
		job.Progress,
		nullableString(job.ErrorMessage),
		nullableString(job.DependsOn),
		nullableString(job.Workflow),
		nullableString(job.Profile),
		job.CreatedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier. Returns nil when no job exists.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), ordered by submission time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
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

// CompareAndSetStatus transitions a job from expected to next in a single
// atomic statement. It reports whether the transition was applied; a false
// return means another writer already moved the job. Transitions to running
// record started_at, transitions to a terminal status record finished_at,
// and completion forces progress to 100.
func (s *Store) CompareAndSetStatus(ctx context.Context, id string, expected, next Status) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var (
		res sql.Result
		err error
	)
	switch {
	case next == StatusRunning:
		res, err = s.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			next, now, now, id, expected)
	case next == StatusCompleted:
		res, err = s.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, progress = 100, finished_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			next, now, now, id, expected)
	case next.Terminal():
		res, err = s.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, finished_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			next, now, now, id, expected)
	default:
		res, err = s.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			next, now, id, expected)
	}
	if err != nil {
		return false, fmt.Errorf("compare and set status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// FinishWithError atomically moves a job from expected to a terminal failed
// or cancelled status, recording the error text. Progress stays frozen at
// its last value.
func (s *Store) FinishWithError(ctx context.Context, id string, expected, next Status, message string) (bool, error) {
	if next != StatusFailed && next != StatusCancelled {
		return false, fmt.Errorf("finish with error: %s is not an error status", next)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		next, nullableString(message), now, now, id, expected)
	if err != nil {
		return false, fmt.Errorf("finish with error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateProgress records execution progress for a running job. Updates are
// monotonic: a value below the stored progress is ignored, as is any update
// after the job left the running state. Values are clamped to [0, 100).
func (s *Store) UpdateProgress(ctx context.Context, id string, percent float64) error {
	if percent < 0 {
		percent = 0
	}
	if percent >= 100 {
		percent = 99.9
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress = ?, updated_at = ?
         WHERE id = ? AND status = ? AND progress <= ?`,
		percent, time.Now().UTC().Format(time.RFC3339Nano), id, StatusRunning, percent)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
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

// Dependents returns jobs whose input chains off the given job's output.
func (s *Store) Dependents(ctx context.Context, id string) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE depends_on = ? ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("query dependents: %w", err)
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

// FailDependents marks every still-queued job chained (directly or
// transitively) off the given job as failed with a dependency reason. The
// affected jobs never reach the pending queue.
func (s *Store) FailDependents(ctx context.Context, id, reason string) (int, error) {
	failed := 0
	frontier := []string{id}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]

		dependents, err := s.Dependents(ctx, next)
		if err != nil {
			return failed, err
		}
		for _, dep := range dependents {
			ok, err := s.FinishWithError(ctx, dep.ID, StatusQueued, StatusFailed, reason)
			if err != nil {
				return failed, err
			}
			if ok {
				failed++
			}
			frontier = append(frontier, dep.ID)
		}
	}
	return failed, nil
}

// RetryFailed moves failed jobs back to queued for reprocessing and returns
// the jobs that were reset. When no ids are given, every failed job is
// retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) ([]*Job, error) {
	candidates, err := s.List(ctx, StatusFailed)
	if err != nil {
		return nil, err
	}
	selected := candidates
	if len(ids) > 0 {
		wanted := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			wanted[id] = struct{}{}
		}
		selected = selected[:0]
		for _, job := range candidates {
			if _, ok := wanted[job.ID]; ok {
				selected = append(selected, job)
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var retried []*Job
	for _, job := range selected {
		res, err := s.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, progress = 0, error_message = NULL,
                started_at = NULL, finished_at = NULL, updated_at = ?
             WHERE id = ? AND status = ?`,
			StatusQueued, now, job.ID, StatusFailed)
		if err != nil {
			return retried, fmt.Errorf("retry job %s: %w", job.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return retried, fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			refreshed, err := s.GetByID(ctx, job.ID)
			if err != nil {
				return retried, err
			}
			if refreshed != nil {
				retried = append(retried, refreshed)
			}
		}
	}
	return retried, nil
}

// ClearCompleted removes completed jobs from the database.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes failed and cancelled jobs from the database.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status IN (?, ?)`, StatusFailed, StatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, operation, input_path, output_path, parameters_json, status, progress, error_message, depends_on, workflow, profile, created_at, updated_at, started_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id          string
		operation   string
		inputPath   string
		outputPath  string
		paramsJSON  sql.NullString
		statusStr   string
		progress    sql.NullFloat64
		errMessage  sql.NullString
		dependsOn   sql.NullString
		workflow    sql.NullString
		profile     sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&operation,
		&inputPath,
		&outputPath,
		&paramsJSON,
		&statusStr,
		&progress,
		&errMessage,
		&dependsOn,
		&workflow,
		&profile,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		Operation:    Operation(operation),
		InputPath:    inputPath,
		OutputPath:   outputPath,
		Status:       Status(statusStr),
		Progress:     progress.Float64,
		ErrorMessage: errMessage.String,
		DependsOn:    dependsOn.String,
		Workflow:     workflow.String,
		Profile:      profile.String,
	}

	if paramsJSON.Valid && paramsJSON.String != "" {
		if err := json.Unmarshal([]byte(paramsJSON.String), &job.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters: %w", err)
		}
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
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

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
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
