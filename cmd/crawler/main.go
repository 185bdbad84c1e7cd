// Command crawler infers a table definition from the objects under a location
// and stores it in the catalog.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wdm0006/dynframe/pkg/catalog"
	"github.com/wdm0006/dynframe/pkg/job"
	"github.com/wdm0006/dynframe/pkg/objstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("crawler", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "job config (JSON, YAML or TOML) providing catalog.dsn and s3 settings")
		dsn        = fs.String("catalog-dsn", "", "catalog DSN; overrides the config")
		database   = fs.String("database", "default", "catalog database")
		table      = fs.String("table", "", "table name")
		location   = fs.String("location", "", "s3:// or file:// prefix holding the objects")
		format     = fs.String("format", "", "csv, json or parquet; guessed from object names when empty")
		header     = fs.Bool("header", true, "csv objects start with a header row")
		delimiter  = fs.String("delimiter", "", "csv delimiter; sniffed when empty")
		sample     = fs.Int("sample-rows", 100, "rows sampled per object")
		maxObjects = fs.Int("max-objects", 10, "objects sampled")
		verbose    = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if *table == "" || *location == "" {
		fmt.Fprintln(stderr, "-table and -location are required")
		return 2
	}
	cfg, err := job.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if *dsn != "" {
		cfg.Catalog.DSN = *dsn
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

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

	c := &catalog.Crawler{Catalog: store, Objects: objects, SampleRows: *sample, MaxObjects: *maxObjects, Logger: log}
	t, err := c.Crawl(ctx, catalog.CrawlRequest{
		Database: *database,
		Table:    *table,
		Location: *location,
		Format:   *format,
		Options:  catalog.FormatOptions{Header: *header, Delimiter: *delimiter},
	})
	if err != nil {
		log.Error("crawl failed", "err", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		log.Error("encode", "err", err)
		return 1
	}
	return 0
}
