// Command transform-green reads the cataloged green trip table, maps and
// cleans its columns and writes Parquet under s3://<bucket>/data/transformed/green.
//
//	transform-green --JOB_NAME green --dag_name taxi --task_id green \
//	    --correlation_id 1234 --bucket lake [--config job.yaml] \
//	    [--catalog-dsn postgres://...] [--job-bookmark-option job-bookmark-enable]
//
// Exit status is 0 after commit, 1 when a stage fails and 2 for missing
// arguments or an invalid config.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/wdm0006/dynframe/pkg/catalog"
	"github.com/wdm0006/dynframe/pkg/job"
	"github.com/wdm0006/dynframe/pkg/objstore"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	for _, a := range argv {
		if a == "--version" {
			fmt.Fprintln(stdout, "transform-green", version)
			return 0
		}
	}
	args, err := job.ResolveOptions(argv, job.Required)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	cfg, err := job.LoadConfig(args["config"])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	cfg.Override(args)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	log := job.NewLogger(stderr, job.ParseLevel(cfg.LogLevel), args)

	objects, err := objstore.Default(ctx, cfg.S3)
	if err != nil {
		log.Error("object store", "err", err)
		return 1
	}
	store, err := catalog.Open(ctx, cfg.Catalog.DSN)
	if err != nil {
		log.Error("catalog", "err", err)
		return 1
	}
	defer store.Close()

	res, err := job.Run(ctx, cfg, args, job.Deps{Objects: objects, Catalog: store, Logger: log})
	if err != nil {
		log.Error("job aborted", "err", err)
		return 1
	}
	fmt.Fprintf(stdout, "run %s: %d rows read, %d rows written, %d objects\n",
		res.RunID, res.RowsRead, res.RowsWritten, len(res.Objects))
	return 0
}
