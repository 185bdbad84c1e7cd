package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/wdm0006/dynframe/pkg/catalog"
	"github.com/wdm0006/dynframe/pkg/dynframe"
	"github.com/wdm0006/dynframe/pkg/objstore"
	"github.com/wdm0006/dynframe/pkg/sink"
	"github.com/wdm0006/dynframe/pkg/transform/dropnull"
	"github.com/wdm0006/dynframe/pkg/transform/mapping"
	"github.com/wdm0006/dynframe/pkg/transform/resolve"
	"github.com/wdm0006/dynframe/pkg/transform/steps"
)

// Deps are the resources a run reads from and writes to.
type Deps struct {
	Objects objstore.Store
	Catalog *catalog.Store
	Logger  *slog.Logger
	// Metrics defaults to a fresh registry pushing to the configured gateway.
	Metrics *Metrics
}

// Result summarises a committed run.
type Result struct {
	RunID       string
	RowsRead    int
	RowsWritten int
	Skipped     int
	Objects     []string
	Schema      dynframe.Schema
}

// Run executes the job: read the source table, map columns, run the cleaning
// steps, resolve choices, drop null fields, write the sink and commit. Any
// stage error marks the run failed and is returned.
func Run(ctx context.Context, cfg Config, args Args, deps Deps) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Catalog == nil || deps.Objects == nil {
		return nil, errors.New("job needs a catalog and an object store")
	}
	log := deps.Logger
	if log == nil {
		log = NewLogger(io.Discard, slog.LevelInfo, args)
	}
	m := deps.Metrics
	if m == nil {
		m = NewMetrics(args["JOB_NAME"], cfg.Metrics.Pushgateway)
	}

	j, err := Init(ctx, args, deps.Catalog, m, log)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	log = log.With("run_id", j.RunID)
	res := &Result{RunID: j.RunID}
	var st Stats
	if err := execute(ctx, cfg, j, deps, m, log, res, &st); err != nil {
		if ferr := j.Fail(context.WithoutCancel(ctx), st, err); ferr != nil {
			log.Warn("recording failure", "err", ferr)
		}
		return nil, err
	}
	if err := finish(ctx, j, st, log); err != nil {
		return nil, err
	}
	return res, nil
}

// finish commits j, recording a failed run when the commit does not go
// through.
func finish(ctx context.Context, j *Job, st Stats, log *slog.Logger) error {
	err := j.Commit(ctx, st)
	if err == nil {
		return nil
	}
	err = fmt.Errorf("commit: %w", err)
	if ferr := j.Fail(context.WithoutCancel(ctx), st, err); ferr != nil {
		log.Warn("recording failure", "err", ferr)
	}
	return err
}

func execute(ctx context.Context, cfg Config, j *Job, deps Deps, m *Metrics, log *slog.Logger, res *Result, st *Stats) error {
	rd := &catalog.Reader{
		Catalog:   deps.Catalog,
		Objects:   deps.Objects,
		JobName:   j.Name,
		Bookmarks: cfg.bookmarksEnabled(),
		RunID:     j.RunID,
		Logger:    log,
	}
	start := time.Now()
	load, err := rd.FromCatalog(ctx, cfg.Source.Database, cfg.Source.Table, cfg.Source.TransformationCtx)
	if err != nil {
		return fmt.Errorf("read %s.%s: %w", cfg.Source.Database, cfg.Source.Table, err)
	}
	j.Track(load.Pending)
	res.RowsRead = load.Frame.Rows()
	res.Skipped = load.Skipped
	st.RowsRead = int64(load.Frame.Rows())
	m.Stage("from_catalog", load.Frame.Rows(), load.Frame.Cols(), time.Since(start))
	log.Info("source loaded", "database", cfg.Source.Database, "table", cfg.Source.Table,
		"transformation_ctx", cfg.Source.TransformationCtx, "rows", load.Frame.Rows(),
		"objects", load.Objects, "skipped_objects", load.Skipped)

	p, err := Pipeline(cfg, m, log)
	if err != nil {
		return err
	}
	out, err := p.Run(ctx, load.Frame)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	res.Schema = out.Schema()

	opts := cfg.Sink.Options
	opts.RunID = j.RunID
	w := &sink.Writer{Store: deps.Objects, Options: opts}
	start = time.Now()
	uris, err := w.Write(ctx, out, cfg.Sink.Path)
	if err != nil {
		return fmt.Errorf("write %s: %w", cfg.Sink.Path, err)
	}
	m.Stage("write", out.Rows(), out.Cols(), time.Since(start))
	m.ObjectsWritten(len(uris))
	res.Objects = uris
	res.RowsWritten = out.Rows()
	st.RowsWritten = int64(out.Rows())
	st.ObjectsWritten = int64(len(uris))
	log.Info("sink written", "path", cfg.Sink.Path, "format", opts.Format, "objects", len(uris), "rows", out.Rows())
	return nil
}

// Pipeline assembles the transform chain described by cfg: ApplyMapping, the
// configured cleaning steps, ResolveChoice and DropNullFields.
func Pipeline(cfg Config, m *Metrics, log *slog.Logger) (*dynframe.Pipeline, error) {
	ms, err := cfg.mappings()
	if err != nil {
		return nil, err
	}
	policy, err := mapping.ParseCastPolicy(cfg.CastPolicy)
	if err != nil {
		return nil, err
	}
	cleaning, err := steps.Build(cfg.Steps)
	if err != nil {
		return nil, err
	}
	p := dynframe.NewPipeline().Add(&mapping.ApplyMapping{
		Mappings: ms,
		Policy:   policy,
		OnCastFailure: func(target string, failed int) {
			m.CastFailures(target, failed)
			log.Warn("values could not be cast", "column", target, "count", failed)
		},
	})
	for _, t := range cleaning {
		p.Add(t)
	}
	p.Add(&resolve.ResolveChoice{Choice: cfg.Choice, Specs: cfg.Resolve})
	p.Add(&dropnull.DropNullFields{OnDrop: func(path string) {
		m.DroppedField()
		log.Info("dropped null field", "field", path)
	}})
	p.Observe(func(step string, _, out *dynframe.Frame, elapsed time.Duration) {
		m.Stage(step, out.Rows(), out.Cols(), elapsed)
		log.Info("stage finished", "stage", step, "rows", out.Rows(), "columns", out.Cols(), "elapsed", elapsed.String())
	})
	return p, nil
}
