package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// JobRun is the bookkeeping record of one job execution.
type JobRun struct {
	RunID          string
	JobName        string
	Correlation    string
	Status         RunStatus
	StartedAt      time.Time
	FinishedAt     time.Time
	RowsRead       int64
	RowsWritten    int64
	ObjectsWritten int64
	Error          string
}

var ErrRunNotFound = errors.New("run not found")

// StartRun inserts r with status RUNNING.
func (s *Store) StartRun(ctx context.Context, r JobRun) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := s.exec(ctx, `INSERT INTO job_runs
		(run_id, job_name, correlation, status, started_at, finished_at, rows_read, rows_written, objects_written, error)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, 0, '')`,
		r.RunID, r.JobName, r.Correlation, string(RunRunning), r.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("catalog: start run %s: %w", r.RunID, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// FinishRun records the final status and counters of r.
func (s *Store) FinishRun(ctx context.Context, r JobRun) error {
	return s.finishRun(ctx, s.db, r)
}

func (s *Store) finishRun(ctx context.Context, ex execer, r JobRun) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	res, err := ex.ExecContext(ctx, s.rebind(`UPDATE job_runs SET status = ?, finished_at = ?, rows_read = ?, rows_written = ?, objects_written = ?, error = ?
		WHERE run_id = ?`),
		string(r.Status), r.FinishedAt.UnixMilli(), r.RowsRead, r.RowsWritten, r.ObjectsWritten, r.Error, r.RunID)
	if err != nil {
		return fmt.Errorf("catalog: finish run %s: %w", r.RunID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, r.RunID)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (JobRun, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT run_id, job_name, correlation, status, started_at, finished_at,
		rows_read, rows_written, objects_written, error FROM job_runs WHERE run_id = ?`), runID)
	var (
		r                 JobRun
		status            string
		started, finished int64
	)
	err := row.Scan(&r.RunID, &r.JobName, &r.Correlation, &status, &started, &finished,
		&r.RowsRead, &r.RowsWritten, &r.ObjectsWritten, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return JobRun{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return JobRun{}, err
	}
	r.Status = RunStatus(status)
	r.StartedAt = time.UnixMilli(started).UTC()
	if finished > 0 {
		r.FinishedAt = time.UnixMilli(finished).UTC()
	}
	return r, nil
}
