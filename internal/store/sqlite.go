package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harishchavandke01/FaceClear/internal/model"
)

// SQLite keeps jobs in a SQLite database. The table is recreated on open, so
// the backend never carries jobs across restarts; an in-memory DSN is the
// default.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func OpenSQLite(dsn string, logger *slog.Logger) (*SQLite, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: ":memory:" databases are per connection, and it
	// serializes writers without relying on SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`DROP TABLE IF EXISTS jobs`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("drop jobs table: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE jobs (
  id TEXT PRIMARY KEY,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  status TEXT NOT NULL,
  progress INTEGER NOT NULL DEFAULT 0,
  message TEXT NOT NULL DEFAULT '',
  upload_name TEXT NOT NULL,
  result_locator TEXT,
  error_kind TEXT,
  error_message TEXT,
  error_trace TEXT
);
`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}
	return &SQLite{db: db, logger: logger, now: time.Now}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Create(ctx context.Context, id, uploadName string) (model.Job, error) {
	job := newJob(id, uploadName, s.now)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, created_at, updated_at, status, progress, message, upload_name)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		job.ID,
		job.CreatedAt.UnixMilli(),
		job.UpdatedAt.UnixMilli(),
		string(job.Status),
		job.Progress,
		job.Message,
		job.UploadName,
	)
	if err != nil {
		return model.Job{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Job{}, err
	}
	if n == 0 {
		return model.Job{}, model.ErrDuplicateID
	}
	// Round-trip timestamps through the stored precision so Get and Create
	// agree.
	job.CreatedAt = time.UnixMilli(job.CreatedAt.UnixMilli()).UTC()
	job.UpdatedAt = job.CreatedAt
	return job, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (model.Job, error) {
	return getJob(ctx, s.db, id)
}

func (s *SQLite) Update(ctx context.Context, id string, patch model.JobPatch) {
	if err := s.update(ctx, id, patch); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Warn("update for unknown job", "job_id", id)
			return
		}
		s.logger.Error("job update failed", "job_id", id, "error", err)
	}
}

func (s *SQLite) update(ctx context.Context, id string, patch model.JobPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	job, err := getJob(ctx, tx, id)
	if err != nil {
		return err
	}
	if !patch.Apply(&job, s.now().UTC()) {
		s.logger.Warn("job update rejected", "job_id", id, "status", job.Status)
		return nil
	}

	var kind, message, trace sql.NullString
	if job.Error != nil {
		kind = sql.NullString{String: string(job.Error.Kind), Valid: true}
		message = sql.NullString{String: job.Error.Message, Valid: true}
		trace = sql.NullString{String: job.Error.Trace, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs
         SET updated_at = ?,
             status = ?,
             progress = ?,
             message = ?,
             result_locator = ?,
             error_kind = ?,
             error_message = ?,
             error_trace = ?
         WHERE id = ?`,
		job.UpdatedAt.UnixMilli(),
		string(job.Status),
		job.Progress,
		job.Message,
		nullableString(job.ResultLocator),
		kind,
		message,
		trace,
		id,
	); err != nil {
		return err
	}
	return tx.Commit()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getJob(ctx context.Context, q queryRower, id string) (model.Job, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, status, progress, message, upload_name,
            result_locator, error_kind, error_message, error_trace
       FROM jobs WHERE id = ?`, id,
	)
	var (
		jid, statusStr, message, uploadName string
		createdMs, updatedMs                int64
		progress                            int
		locator, errKind, errMsg, errTrace  sql.NullString
	)
	if err := row.Scan(&jid, &createdMs, &updatedMs, &statusStr, &progress, &message, &uploadName,
		&locator, &errKind, &errMsg, &errTrace); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Job{}, model.ErrNotFound
		}
		return model.Job{}, err
	}
	job := model.Job{
		ID:         jid,
		CreatedAt:  time.UnixMilli(createdMs).UTC(),
		UpdatedAt:  time.UnixMilli(updatedMs).UTC(),
		Status:     model.JobStatus(statusStr),
		Progress:   progress,
		Message:    message,
		UploadName: uploadName,
	}
	if locator.Valid {
		job.ResultLocator = locator.String
	}
	if errKind.Valid {
		job.Error = &model.ErrorDetail{
			Kind:    model.ErrorKind(errKind.String),
			Message: errMsg.String,
			Trace:   errTrace.String,
		}
	}
	return job, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
