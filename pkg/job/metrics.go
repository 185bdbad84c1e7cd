package job

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics collects per-run counters in a private registry so each run pushes
// only its own series.
type Metrics struct {
	reg      *prometheus.Registry
	job      string
	gateway  string
	rows     *prometheus.GaugeVec
	columns  *prometheus.GaugeVec
	duration *prometheus.HistogramVec
	casts    *prometheus.CounterVec
	dropped  prometheus.Counter
	objects  prometheus.Counter
	runs     *prometheus.CounterVec
}

func NewMetrics(job, gateway string) *Metrics {
	m := &Metrics{
		reg:     prometheus.NewRegistry(),
		job:     job,
		gateway: gateway,
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dynframe_stage_rows",
			Help: "Rows in the frame produced by each stage.",
		}, []string{"stage"}),
		columns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dynframe_stage_columns",
			Help: "Top-level columns in the frame produced by each stage.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dynframe_stage_duration_seconds",
			Help:    "Wall time of each stage.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		casts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynframe_cast_failures_total",
			Help: "Values that could not be cast to their target type.",
		}, []string{"column"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dynframe_dropped_fields_total",
			Help: "Fields removed because every value was null.",
		}),
		objects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dynframe_objects_written_total",
			Help: "Objects written by the sink.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynframe_runs_total",
			Help: "Finished runs by status.",
		}, []string{"status"}),
	}
	m.reg.MustRegister(m.rows, m.columns, m.duration, m.casts, m.dropped, m.objects, m.runs)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Stage records the output size and duration of one stage.
func (m *Metrics) Stage(stage string, rows, cols int, elapsed time.Duration) {
	m.rows.WithLabelValues(stage).Set(float64(rows))
	m.columns.WithLabelValues(stage).Set(float64(cols))
	m.duration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) CastFailures(column string, n int) { m.casts.WithLabelValues(column).Add(float64(n)) }
func (m *Metrics) DroppedField()                     { m.dropped.Inc() }
func (m *Metrics) ObjectsWritten(n int)              { m.objects.Add(float64(n)) }
func (m *Metrics) Finished(status string)            { m.runs.WithLabelValues(status).Inc() }

// Push sends the registry to the Pushgateway, grouped by run id. It is a no-op
// without a gateway.
func (m *Metrics) Push(ctx context.Context, runID string) error {
	if m.gateway == "" {
		return nil
	}
	err := push.New(m.gateway, m.job).
		Grouping("run_id", runID).
		Gatherer(m.reg).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("metrics push: %w", err)
	}
	return nil
}
