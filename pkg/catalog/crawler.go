package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/wdm0006/dynframe/pkg/dynframe"
	"github.com/wdm0006/dynframe/pkg/objstore"
	"github.com/wdm0006/dynframe/pkg/profile"
	"github.com/wdm0006/dynframe/pkg/sink"
)

var ErrNoObjects = errors.New("no objects under location")

// Crawler infers table definitions from the objects under a location and
// registers them in the catalog.
type Crawler struct {
	Catalog *Store
	Objects objstore.Store
	// SampleRows bounds the rows inspected per object (default 100).
	SampleRows int
	// MaxObjects bounds the objects sampled (default 10).
	MaxObjects int
	Logger     *slog.Logger
}

// CrawlRequest names the table to create or refresh.
type CrawlRequest struct {
	Database string
	Table    string
	Location string
	// Format is csv, json or parquet; empty guesses from object keys.
	Format  string
	Options FormatOptions
}

// Crawl samples objects, merges their schemas and stores the table. A column
// seen with several kinds becomes a choice; long and double widen to double;
// a column with no values is a string. JSON objects become structs whose
// fields merge the same way.
func (c *Crawler) Crawl(ctx context.Context, req CrawlRequest) (Table, error) {
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	objs, err := c.Objects.List(ctx, req.Location)
	if err != nil {
		return Table{}, err
	}
	if len(objs) == 0 {
		return Table{}, fmt.Errorf("%w: %s", ErrNoObjects, req.Location)
	}
	format := req.Format
	if format == "" {
		format = FormatOf(objs[0].Key)
		if format == "" {
			return Table{}, fmt.Errorf("cannot guess format of %s; set it explicitly", objs[0].URI)
		}
	}
	limit := c.MaxObjects
	if limit <= 0 {
		limit = 10
	}
	if len(objs) > limit {
		objs = objs[:limit]
	}
	sample := c.SampleRows
	if sample <= 0 {
		sample = 100
	}
	if format == "csv" && !req.Options.Header {
		log.Warn("crawling csv without header; columns are named col_<n>", "location", req.Location)
	}

	m := newMerger()
	parts := newMerger()
	for _, o := range objs {
		schema, f, err := decodeObject(ctx, c.Objects, o, format, req.Options, nil, sample, log)
		if err != nil {
			return Table{}, err
		}
		prof := profile.Of(f, 0)
		for _, cs := range schema.Columns {
			cp, _ := prof.Column(cs.Name)
			m.add(cs, cp)
		}
		for _, kv := range partitionValues(req.Location, o) {
			obs := dynframe.NewObserver()
			obs.ObserveText(kv[1])
			var cp *profile.ColumnProfile
			if kv[1] != "" {
				cp = &profile.ColumnProfile{Name: kv[0], Count: 1}
			}
			parts.add(obs.Column(kv[0]), cp)
		}
		log.Debug("crawled object", "uri", o.URI, "rows", f.Rows(), "columns", len(schema.Columns))
	}

	t := Table{
		Database:      req.Database,
		Name:          req.Table,
		Location:      req.Location,
		Format:        format,
		Options:       req.Options,
		Columns:       ColumnsOf(m.schema()),
		PartitionKeys: ColumnsOf(parts.schema()),
	}
	if err := c.Catalog.PutTable(ctx, t); err != nil {
		return Table{}, err
	}
	log.Info("crawled table", "database", t.Database, "table", t.Name, "format", t.Format,
		"objects", len(objs), "columns", len(t.Columns), "partition_keys", len(t.PartitionKeys))
	return t, nil
}

// merger unions column kinds across objects, keeping first-seen column order.
// Struct columns merge field by field.
type merger struct {
	order  []string
	kinds  map[string]map[dynframe.Kind]bool
	fields map[string]*merger
}

func newMerger() *merger {
	return &merger{kinds: map[string]map[dynframe.Kind]bool{}, fields: map[string]*merger{}}
}

// add records cs. cp is its profile in the sampled object; a column without
// values registers its name only.
func (m *merger) add(cs dynframe.ColumnSchema, cp *profile.ColumnProfile) {
	ks, ok := m.kinds[cs.Name]
	if !ok {
		ks = map[dynframe.Kind]bool{}
		m.kinds[cs.Name] = ks
		m.order = append(m.order, cs.Name)
	}
	if cp == nil || cp.Count == 0 {
		return
	}
	switch cs.Type {
	case dynframe.KindChoice:
		for _, f := range cs.Fields {
			if fp := cp.Field(f.Name); fp == nil || fp.Count > 0 {
				ks[f.Type] = true
			}
		}
	case dynframe.KindStruct:
		ks[dynframe.KindStruct] = true
		sub, ok := m.fields[cs.Name]
		if !ok {
			sub = newMerger()
			m.fields[cs.Name] = sub
		}
		for _, f := range cs.Fields {
			sub.add(f, cp.Field(f.Name))
		}
	default:
		ks[cs.Type] = true
	}
}

func (m *merger) schema() dynframe.Schema {
	var s dynframe.Schema
	for _, name := range m.order {
		s.Columns = append(s.Columns, m.column(name))
	}
	return s
}

func (m *merger) column(name string) dynframe.ColumnSchema {
	var nested dynframe.Schema
	if sub, ok := m.fields[name]; ok {
		nested = sub.schema()
	}
	kinds := dynframe.WidenKinds(m.kinds[name], len(nested.Columns) > 0)
	if len(kinds) == 1 && kinds[0] == dynframe.KindStruct {
		return dynframe.ColumnSchema{Name: name, Type: dynframe.KindStruct, Nullable: true, Fields: nested.Columns}
	}
	return dynframe.ScalarColumn(name, kinds)
}

// partitionValues extracts key=value directory segments between the table
// location and the object name.
func partitionValues(location string, o objstore.Object) [][2]string {
	loc, err := objstore.ParseURI(location)
	if err != nil {
		return nil
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(o.Key, loc.Key), "/")
	segs := strings.Split(rel, "/")
	var out [][2]string
	for _, seg := range segs[:len(segs)-1] {
		k, v, ok := strings.Cut(seg, "=")
		if !ok || k == "" {
			continue
		}
		if u, err := url.PathUnescape(v); err == nil {
			v = u
		}
		if v == sink.DefaultPartition {
			v = ""
		}
		out = append(out, [2]string{NormalizeName(k), v})
	}
	return out
}
