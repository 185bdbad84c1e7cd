package job

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdm0006/dynframe/pkg/catalog"
)

func testArgs() Args {
	return Args{"JOB_NAME": "green-job", "dag_name": "taxi", "task_id": "green", "correlation_id": "c-9"}
}

func TestJobCommitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, err := catalog.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer st.Close()

	j, err := Init(ctx, testArgs(), st, nil, nil)
	require.NoError(t, err)
	assert.Len(t, j.RunID, 36)
	assert.Equal(t, "taxi.green c-9", j.Correlation)

	j.Track([]catalog.Bookmark{{JobName: "green-job", TransformationCtx: "datasource0", Fingerprint: "f1", URI: "file:///a.csv"}})
	require.NoError(t, j.Commit(ctx, Stats{RowsRead: 1, RowsWritten: 1, ObjectsWritten: 1}))
	require.NoError(t, j.Commit(ctx, Stats{}))
	require.NoError(t, j.Fail(ctx, Stats{}, errors.New("late")))

	run, err := st.GetRun(ctx, j.RunID)
	require.NoError(t, err)
	assert.Equal(t, catalog.RunSucceeded, run.Status)
	assert.Equal(t, int64(1), run.RowsRead)

	seen, err := st.Bookmarks(ctx, "green-job", "datasource0")
	require.NoError(t, err)
	assert.Contains(t, seen, "f1")
}

func TestFinishRecordsFailedCommit(t *testing.T) {
	ctx := context.Background()
	st, err := catalog.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer st.Close()

	j, err := Init(ctx, testArgs(), st, nil, nil)
	require.NoError(t, err)
	j.Track([]catalog.Bookmark{{JobName: "green-job", TransformationCtx: "datasource0", Fingerprint: "f1"}})

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = finish(cancelled, j, Stats{RowsRead: 3}, j.log)
	require.ErrorIs(t, err, context.Canceled)

	run, err := st.GetRun(ctx, j.RunID)
	require.NoError(t, err)
	assert.Equal(t, catalog.RunFailed, run.Status)
	assert.Equal(t, int64(3), run.RowsRead)
	assert.Contains(t, run.Error, "commit")

	seen, err := st.Bookmarks(ctx, "green-job", "datasource0")
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestJobFailDropsBookmarks(t *testing.T) {
	ctx := context.Background()
	st, err := catalog.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer st.Close()

	m := NewMetrics("green-job", "")
	j, err := Init(ctx, testArgs(), st, m, nil)
	require.NoError(t, err)
	j.Track([]catalog.Bookmark{{JobName: "green-job", TransformationCtx: "datasource0", Fingerprint: "f1"}})
	require.NoError(t, j.Fail(ctx, Stats{RowsRead: 3}, errors.New("sink: boom")))
	require.NoError(t, j.Commit(ctx, Stats{}))

	run, err := st.GetRun(ctx, j.RunID)
	require.NoError(t, err)
	assert.Equal(t, catalog.RunFailed, run.Status)
	assert.Equal(t, "sink: boom", run.Error)

	seen, err := st.Bookmarks(ctx, "green-job", "datasource0")
	require.NoError(t, err)
	assert.Empty(t, seen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("FAILED")))
}

func TestJobWithoutCatalog(t *testing.T) {
	j, err := Init(context.Background(), testArgs(), nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, j.Commit(context.Background(), Stats{}))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics("green-job", "")
	m.Stage("apply_mapping", 10, 19, 20*time.Millisecond)
	m.Stage("apply_mapping", 12, 19, 20*time.Millisecond)
	m.CastFailures("fare_amount", 2)
	m.CastFailures("fare_amount", 1)
	m.DroppedField()
	m.ObjectsWritten(3)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.rows.WithLabelValues("apply_mapping")))
	assert.Equal(t, 19.0, testutil.ToFloat64(m.columns.WithLabelValues("apply_mapping")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.casts.WithLabelValues("fare_amount")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.objects))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))

	require.NoError(t, m.Push(context.Background(), "run-1"))
}

func TestMetricsPush(t *testing.T) {
	var (
		method, path string
		body         []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics("green-job", srv.URL)
	m.ObjectsWritten(1)
	require.NoError(t, m.Push(context.Background(), "run-1"))
	assert.Equal(t, http.MethodPut, method)
	assert.True(t, strings.HasPrefix(path, "/metrics/job/green-job/run_id/run-1"), path)
	assert.NotEmpty(t, body)
}
