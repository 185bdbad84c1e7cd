package job

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOptions(t *testing.T) {
	argv := []string{"script.py", "--JOB_NAME", "green", "--dag_name=taxi", "--task_id", "t1",
		"--correlation_id", "abc", "--extra", "--dag_name", "taxi2", "positional"}
	args, err := ResolveOptions(argv, Required)
	require.NoError(t, err)
	assert.Equal(t, "green", args["JOB_NAME"])
	assert.Equal(t, "taxi2", args["dag_name"])
	assert.Equal(t, "t1", args["task_id"])
	assert.Equal(t, "", args["extra"])
	assert.Equal(t, "fallback", args.Get("bucket", "fallback"))
}

func TestResolveOptionsMissing(t *testing.T) {
	_, err := ResolveOptions([]string{"--JOB_NAME", "green", "--task_id="}, Required)
	require.ErrorIs(t, err, ErrMissingArgument)
	assert.Contains(t, err.Error(), "correlation_id, dag_name, task_id")

	_, err = ResolveOptions([]string{"--correlation_id", "--dag_name", "d"}, []string{"correlation_id"})
	assert.ErrorIs(t, err, ErrMissingArgument)
}

func TestCorrelationID(t *testing.T) {
	args := Args{"JOB_NAME": "j", "dag_name": "taxi", "task_id": "green", "correlation_id": "42"}
	assert.Equal(t, "taxi.green 42", CorrelationID(args))

	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, args).Info("started")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "taxi.green 42", line["correlation_id"])
	assert.Equal(t, "j", line["job_name"])
	assert.Equal(t, "started", line["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}
