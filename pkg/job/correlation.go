package job

import (
	"io"
	"log/slog"
)

// CorrelationID formats "<dag_name>.<task_id> <correlation_id>".
func CorrelationID(args Args) string {
	return args["dag_name"] + "." + args["task_id"] + " " + args["correlation_id"]
}

// NewLogger returns a JSON logger tagged with the job name and correlation id.
func NewLogger(w io.Writer, level slog.Level, args Args) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("job_name", args["JOB_NAME"], "correlation_id", CorrelationID(args))
}

// ParseLevel maps debug, info, warn and error to a slog level; anything else
// is info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
