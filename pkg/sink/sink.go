// Package sink writes frames to object storage as part files.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wdm0006/dynframe/pkg/dynframe"
	"github.com/wdm0006/dynframe/pkg/io/csvio"
	"github.com/wdm0006/dynframe/pkg/io/ioutils"
	"github.com/wdm0006/dynframe/pkg/io/jsonlio"
	"github.com/wdm0006/dynframe/pkg/io/parquetio"
	"github.com/wdm0006/dynframe/pkg/objstore"
)

var ErrNoColumns = errors.New("frame has rows but no columns")

// DefaultPartition names the directory for null partition values.
const DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

type Options struct {
	// Format is parquet (default), csv or json (JSON lines).
	Format string `json:"format" yaml:"format" toml:"format"`
	// Compression is the parquet codec (snappy default) or, for csv and
	// json, none or gzip.
	Compression string `json:"compression" yaml:"compression" toml:"compression"`
	// MaxRowsPerFile splits output into several parts; 0 writes one part per
	// partition.
	MaxRowsPerFile int `json:"max_rows_per_file" yaml:"max_rows_per_file" toml:"max_rows_per_file"`
	// PartitionKeys writes key=value/ prefixes; the key columns are removed
	// from the files.
	PartitionKeys []string `json:"partition_keys" yaml:"partition_keys" toml:"partition_keys"`
	// Concurrency bounds parallel part uploads (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
	// SuccessMarker writes an empty _SUCCESS object after all parts.
	SuccessMarker bool `json:"success_marker" yaml:"success_marker" toml:"success_marker"`
	// RunID is embedded in part names; a random one is used when empty.
	RunID string `json:"-" yaml:"-" toml:"-"`
	// TempDir stages encoded parts before upload.
	TempDir string `json:"-" yaml:"-" toml:"-"`
}

type Writer struct {
	Store   objstore.Store
	Options Options
}

type part struct {
	index int
	dir   string // partition prefix, may be empty
	frame *dynframe.Frame
}

// Write encodes f into parts under dest and uploads them. It returns the
// object URIs in part order. A frame without rows writes nothing.
func (w *Writer) Write(ctx context.Context, f *dynframe.Frame, dest string) ([]string, error) {
	opt := w.Options
	format := strings.ToLower(opt.Format)
	if format == "" {
		format = "parquet"
	}
	ext, err := extension(format, opt.Compression)
	if err != nil {
		return nil, err
	}
	if _, err := objstore.ParseURI(dest); err != nil {
		return nil, err
	}
	if f.Rows() == 0 {
		return nil, nil
	}
	if f.Cols() == 0 {
		return nil, ErrNoColumns
	}
	runID := opt.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	parts, err := split(f, opt.PartitionKeys, opt.MaxRowsPerFile)
	if err != nil {
		return nil, err
	}
	tmp, err := os.MkdirTemp(opt.TempDir, "sink-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	limit := opt.Concurrency
	if limit <= 0 {
		limit = 4
	}
	uris := make([]string, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, p := range parts {
		p := p
		name :=fmt.Sprintf("part-%05d-%s%s", p.index, runID, ext)
		elems := []string{name}
		if p.dir != "" {
			elems = []string{p.dir, name}
		}
		uri, err := objstore.Join(dest, elems...)
		if err != nil {
			return nil, err
		}
		uris[p.index] = uri
		g.Go(func() error {
			local := filepath.Join(tmp, name)
			if err := encode(local, p.frame, format, opt.Compression); err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}
			return upload(gctx, w.Store, local, uri)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if opt.SuccessMarker {
		marker, err := objstore.Join(dest, "_SUCCESS")
		if err != nil {
			return nil, err
		}
		if err := w.Store.Put(ctx, marker, strings.NewReader(""), 0); err != nil {
			return nil, err
		}
	}
	return uris, nil
}

func extension(format, compression string) (string, error) {
	c := strings.ToLower(compression)
	switch format {
	case "parquet":
		if infix := parquetio.CodecExt(compression); infix != "" {
			return "." + infix + ".parquet", nil
		}
		return ".parquet", nil
	case "csv", "json":
		switch c {
		case "", "none", "uncompressed":
			return "." + format, nil
		case "gzip", "gz":
			return "." + format + ".gz", nil
		}
		return "", fmt.Errorf("%s: unsupported compression %q", format, compression)
	}
	return "", fmt.Errorf("unsupported format %q", format)
}

// split groups rows by partition values, in order of first appearance, and
// cuts every group into chunks of at most maxRows.
func split(f *dynframe.Frame, keys []string, maxRows int) ([]part, error) {
	type group struct {
		dir  string
		rows []int
	}
	var groups []*group
	if len(keys) == 0 {
		rows := make([]int, f.Rows())
		for i := range rows {
			rows[i] = i
		}
		groups = []*group{{rows: rows}}
	} else {
		cols := make([]dynframe.Column, len(keys))
		for i, k := range keys {
			c, ok := f.ColumnByName(k)
			if !ok {
				return nil, fmt.Errorf("partition key %s: %w", k, dynframe.ErrUnknownColumn)
			}
			if c.Kind() == dynframe.KindStruct || c.Kind() == dynframe.KindChoice {
				return nil, fmt.Errorf("partition key %s: %s columns cannot partition", k, c.Kind())
			}
			cols[i] = c
		}
		byDir := map[string]*group{}
		for r := 0; r < f.Rows(); r++ {
			segs := make([]string, len(keys))
			for i, c := range cols {
				segs[i] = keys[i] + "=" + partitionValue(c.Value(r))
			}
			dir := strings.Join(segs, "/")
			g, ok := byDir[dir]
			if !ok {
				g = &group{dir: dir}
				byDir[dir] = g
				groups = append(groups, g)
			}
			g.rows = append(g.rows, r)
		}
		f = f.Drop(keys...)
		if f.Cols() == 0 {
			return nil, ErrNoColumns
		}
	}

	var parts []part
	for _, g := range groups {
		step := maxRows
		if step <= 0 {
			step = len(g.rows)
		}
		for start := 0; start < len(g.rows); start += step {
			end := start + step
			if end > len(g.rows) {
				end = len(g.rows)
			}
			pf, err := f.Take(g.rows[start:end])
			if err != nil {
				return nil, err
			}
			parts = append(parts, part{index: len(parts), dir: g.dir, frame: pf})
		}
	}
	return parts, nil
}

func partitionValue(v any) string {
	if v == nil {
		return DefaultPartition
	}
	s, ok := dynframe.Convert(v, dynframe.KindString)
	if !ok || s.(string) == "" {
		return DefaultPartition
	}
	return url.PathEscape(s.(string))
}

func encode(path string, f *dynframe.Frame, format, compression string) error {
	if format == "parquet" {
		return parquetio.WriteAll(path, f, parquetio.WriterOptions{Compression: compression})
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w, err := ioutils.Compress(file, compression)
	if err != nil {
		_ = file.Close()
		return err
	}
	if format == "csv" {
		err = csvio.Write(w, f, csvio.WriterOptions{})
	} else {
		err = jsonlio.Write(w, f)
	}
	if closeErr := w.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func upload(ctx context.Context, st objstore.Store, local, uri string) error {
	file, err := os.Open(local)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}
	if err := st.Put(ctx, uri, io.NewSectionReader(file, 0, info.Size()), info.Size()); err != nil {
		return fmt.Errorf("upload %s: %w", uri, err)
	}
	return nil
}
