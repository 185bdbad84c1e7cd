package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wdm0006/dynframe/pkg/catalog"
)

// Stats are the counters stored with a finished run.
type Stats struct {
	RowsRead       int64
	RowsWritten    int64
	ObjectsWritten int64
}

// Job tracks one run. Bookmarks gathered while reading are held until Commit.
type Job struct {
	Name        string
	RunID       string
	Correlation string
	Started     time.Time

	catalog *catalog.Store
	metrics *Metrics
	log     *slog.Logger
	pending []catalog.Bookmark
	done    bool
}

// Init starts a run. When store is non-nil a RUNNING run record is inserted.
func Init(ctx context.Context, args Args, store *catalog.Store, m *Metrics, log *slog.Logger) (*Job, error) {
	if log == nil {
		log = slog.Default()
	}
	j := &Job{
		Name:        args["JOB_NAME"],
		RunID:       uuid.NewString(),
		Correlation: CorrelationID(args),
		Started:     time.Now().UTC(),
		catalog:     store,
		metrics:     m,
	}
	j.log = log.With("run_id", j.RunID)
	if store != nil {
		if err := store.StartRun(ctx, catalog.JobRun{RunID: j.RunID, JobName: j.Name, Correlation: j.Correlation, StartedAt: j.Started}); err != nil {
			return nil, err
		}
	}
	j.log.Info("job initialised", "correlation", j.Correlation)
	return j, nil
}

// Track queues bookmarks to persist on Commit.
func (j *Job) Track(bms []catalog.Bookmark) {
	for _, b := range bms {
		b.RunID = j.RunID
		j.pending = append(j.pending, b)
	}
}

// Commit persists pending bookmarks and marks the run SUCCEEDED in one
// transaction, then pushes metrics. Calls after the first are no-ops; a
// failed Commit leaves the job open for Fail.
func (j *Job) Commit(ctx context.Context, st Stats) error {
	if j.done {
		return nil
	}
	if j.catalog != nil {
		if err := j.catalog.CommitRun(ctx, j.pending, j.record(catalog.RunSucceeded, st, "")); err != nil {
			return err
		}
	}
	j.done = true
	j.pending = nil
	if j.metrics != nil {
		j.metrics.Finished(string(catalog.RunSucceeded))
		if err := j.metrics.Push(ctx, j.RunID); err != nil {
			j.log.Warn("metrics push failed", "err", err)
		}
	}
	j.log.Info("job committed", "rows_read", st.RowsRead, "rows_written", st.RowsWritten,
		"objects_written", st.ObjectsWritten, "elapsed", time.Since(j.Started).String())
	return nil
}

// Fail marks the run FAILED and drops pending bookmarks so the objects are
// read again next time. It does nothing after Commit.
func (j *Job) Fail(ctx context.Context, st Stats, cause error) error {
	if j.done {
		return nil
	}
	j.done = true
	j.pending = nil
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	var err error
	if j.catalog != nil {
		err = j.catalog.FinishRun(ctx, j.record(catalog.RunFailed, st, msg))
	}
	if j.metrics != nil {
		j.metrics.Finished(string(catalog.RunFailed))
		err = errors.Join(err, j.metrics.Push(ctx, j.RunID))
	}
	j.log.Error("job failed", "err", msg)
	return err
}

func (j *Job) record(status catalog.RunStatus, st Stats, msg string) catalog.JobRun {
	return catalog.JobRun{
		RunID:          j.RunID,
		JobName:        j.Name,
		Correlation:    j.Correlation,
		Status:         status,
		FinishedAt:     time.Now().UTC(),
		RowsRead:       st.RowsRead,
		RowsWritten:    st.RowsWritten,
		ObjectsWritten: st.ObjectsWritten,
		Error:          msg,
	}
}
