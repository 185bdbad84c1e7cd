package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/wdm0006/dynframe/pkg/dynframe"
	"github.com/wdm0006/dynframe/pkg/objstore"
	"github.com/wdm0006/dynframe/pkg/sink"
)

// Reader loads catalog tables into frames, optionally skipping objects already
// recorded by a job bookmark.
type Reader struct {
	Catalog *Store
	Objects objstore.Store
	// JobName scopes bookmarks. Bookmarks are ignored when it is empty.
	JobName   string
	Bookmarks bool
	RunID     string
	Logger    *slog.Logger
}

// Load is the result of reading a table.
type Load struct {
	Table Table
	Frame *dynframe.Frame
	// Pending holds one bookmark per object read; they are recorded only
	// when the job commits.
	Pending []Bookmark
	Objects int
	Skipped int
}

// FromCatalog reads every object under the table location into one frame with
// the catalog schema, partition key columns appended.
func (r *Reader) FromCatalog(ctx context.Context, database, table, transformationCtx string) (*Load, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	t, err := r.Catalog.GetTable(ctx, database, table)
	if err != nil {
		return nil, err
	}
	schema, err := t.Schema()
	if err != nil {
		return nil, err
	}
	partSchema, err := partitionSchema(t, schema)
	if err != nil {
		return nil, err
	}
	objs, err := r.Objects.List(ctx, t.Location)
	if err != nil {
		return nil, err
	}

	var seen map[string]struct{}
	useBookmarks := r.Bookmarks && r.JobName != "" && transformationCtx != ""
	if useBookmarks {
		if seen, err = r.Catalog.Bookmarks(ctx, r.JobName, transformationCtx); err != nil {
			return nil, err
		}
	}
	load := &Load{Table: t}
	var todo []objstore.Object
	for _, o := range objs {
		fp := Fingerprint(o)
		if _, ok := seen[fp]; ok {
			load.Skipped++
			continue
		}
		todo = append(todo, o)
		if useBookmarks {
			load.Pending = append(load.Pending, Bookmark{
				JobName:           r.JobName,
				TransformationCtx: transformationCtx,
				Fingerprint:       fp,
				URI:               o.URI,
				RunID:             r.RunID,
				ProcessedAt:       time.Now().UTC(),
			})
		}
	}
	load.Objects = len(todo)

	full := dynframe.Schema{Columns: append(append([]dynframe.ColumnSchema(nil), schema.Columns...), partSchema.Columns...)}
	src := &objectSource{ctx: ctx, store: r.Objects, table: t, schema: schema, parts: partSchema, objects: todo, log: log}
	if load.Frame, err = dynframe.Collect(ctx, full, src); err != nil {
		return nil, err
	}
	log.Info("read table", "database", database, "table", table, "objects", load.Objects,
		"skipped", load.Skipped, "rows", load.Frame.Rows())
	return load, nil
}

// partitionSchema skips keys that are also data columns.
func partitionSchema(t Table, data dynframe.Schema) (dynframe.Schema, error) {
	var s dynframe.Schema
	for _, c := range t.PartitionKeys {
		if _, ok := data.Lookup(c.Name); ok {
			continue
		}
		cs, err := dynframe.ParseType(c.Name, c.Type)
		if err != nil {
			return dynframe.Schema{}, fmt.Errorf("partition key %s: %w", c.Name, err)
		}
		s.Columns = append(s.Columns, cs)
	}
	return s, nil
}

// objectSource decodes one object per chunk.
type objectSource struct {
	ctx     context.Context
	store   objstore.Store
	table   Table
	schema  dynframe.Schema
	parts   dynframe.Schema
	objects []objstore.Object
	log     *slog.Logger
}

func (s *objectSource) Next() (*dynframe.Frame, error) {
	if len(s.objects) == 0 {
		return nil, io.EOF
	}
	o := s.objects[0]
	s.objects = s.objects[1:]
	_, f, err := decodeObject(s.ctx, s.store, o, s.table.Format, s.table.Options, &s.schema, 0, s.log)
	if err != nil {
		return nil, err
	}
	if len(s.parts.Columns) == 0 {
		return f, nil
	}
	values := map[string]string{}
	for _, kv := range partitionValues(s.table.Location, o) {
		values[kv[0]] = kv[1]
	}
	for _, cs := range s.parts.Columns {
		col, err := constantColumn(cs, f.Rows(), values[cs.Name])
		if err != nil {
			return nil, err
		}
		if f, err = f.WithColumn(col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// constantColumn repeats a partition value parsed from its directory name.
func constantColumn(cs dynframe.ColumnSchema, n int, raw string) (dynframe.Column, error) {
	col := dynframe.NewColumn(cs, n)
	if raw == "" || raw == sink.DefaultPartition {
		return col, nil
	}
	if c, ok := col.(*dynframe.ChoiceColumn); ok {
		for r := 0; r < n; r++ {
			c.SetText(r, raw)
		}
		return c, nil
	}
	v, ok := dynframe.ParseText(cs.Type, raw)
	if !ok {
		return col, nil
	}
	for r := 0; r < n; r++ {
		if err := dynframe.SetValue(col, r, v); err != nil {
			return nil, err
		}
	}
	return col, nil
}
