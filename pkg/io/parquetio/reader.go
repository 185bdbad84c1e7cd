package parquetio

import (
	"errors"
	"fmt"
	"io"

	parquet "github.com/segmentio/parquet-go"

	df "github.com/wdm0006/dynframe/pkg/dynframe"
)

// Reader decodes Parquet files into Frames. Groups become struct columns.
type Reader struct {
	file   *parquet.File
	input  io.ReaderAt
	schema df.Schema
	paths  [][]string // path per parquet leaf column
}

// OpenReader opens a Parquet file of the given size and derives the frame
// schema from the file's own schema.
func OpenReader(r io.ReaderAt, size int64) (*Reader, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("parquet open: %w", err)
	}
	rd := &Reader{file: pf, input: r, paths: pf.Schema().Columns()}
	for _, fld := range pf.Schema().Fields() {
		rd.schema.Columns = append(rd.schema.Columns, columnOf(fld.Name(), fld))
	}
	return rd, nil
}

func columnOf(name string, n parquet.Node) df.ColumnSchema {
	if n.Leaf() {
		return df.ColumnSchema{Name: name, Type: kindOf(n.Type().Kind()), Nullable: n.Optional()}
	}
	cs := df.ColumnSchema{Name: name, Type: df.KindStruct, Nullable: n.Optional()}
	for _, f := range n.Fields() {
		cs.Fields = append(cs.Fields, columnOf(f.Name(), f))
	}
	return cs
}

func kindOf(k parquet.Kind) df.Kind {
	switch k {
	case parquet.Boolean:
		return df.KindBool
	case parquet.Int32, parquet.Int64:
		return df.KindInt
	case parquet.Float, parquet.Double:
		return df.KindFloat
	default:
		return df.KindString
	}
}

func (r *Reader) Schema() df.Schema { return r.schema }

// NumRows reports the row count recorded in the file footer.
func (r *Reader) NumRows() int64 { return r.file.NumRows() }

// ReadAll reads every row into a frame using schema, which may come from the
// catalog. Columns of schema that are absent from the file stay null.
func (r *Reader) ReadAll(schema df.Schema) (*df.Frame, error) {
	f := df.NewFrame(schema)
	pr := parquet.NewReader(r.input, r.file.Schema())
	defer func() { _ = pr.Close() }()
	buf := make([]parquet.Row, 1024)
	for {
		n, err := pr.ReadRows(buf)
		for i := 0; i < n; i++ {
			f.AppendNullRow()
			if err := r.setRow(f, f.Rows()-1, buf[i]); err != nil {
				return nil, err
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return f, nil
}

func (r *Reader) setRow(f *df.Frame, row int, values parquet.Row) error {
	var nested map[string]map[string]any
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		ci := v.Column()
		if ci < 0 || ci >= len(r.paths) {
			continue
		}
		path := r.paths[ci]
		cs, ok := f.Schema().Lookup(path[0])
		if !ok {
			continue
		}
		raw := rawValue(v)
		if len(path) > 1 {
			if nested == nil {
				nested = map[string]map[string]any{}
			}
			m, ok := nested[path[0]]
			if !ok {
				m = map[string]any{}
				nested[path[0]] = m
			}
			for _, seg := range path[1 : len(path)-1] {
				child, ok := m[seg].(map[string]any)
				if !ok {
					child = map[string]any{}
					m[seg] = child
				}
				m = child
			}
			m[path[len(path)-1]] = raw
			continue
		}
		if cs.Type == df.KindChoice {
			if err := f.SetCell(row, cs.Name, raw); err != nil {
				return err
			}
			continue
		}
		if x, ok := df.Convert(raw, cs.Type); ok {
			if err := f.SetCell(row, cs.Name, x); err != nil {
				return err
			}
		}
	}
	for name, m := range nested {
		cs, _ := f.Schema().Lookup(name)
		switch cs.Type {
		case df.KindStruct:
			if err := f.SetCell(row, name, m); err != nil {
				return err
			}
		case df.KindString:
			if x, ok := df.Convert(m, df.KindString); ok {
				if err := f.SetCell(row, name, x); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func rawValue(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return string(v.ByteArray())
	}
}

// InferSchema samples up to sampleRows rows and widens column kinds the same
// way the text readers do. Because Parquet is typed, this only differs from
// Schema when string columns hold numbers.
func (r *Reader) InferSchema(sampleRows int) (df.Schema, error) {
	if sampleRows <= 0 {
		sampleRows = 100
	}
	full, err := r.ReadAll(r.schema)
	if err != nil {
		return df.Schema{}, err
	}
	out := df.Schema{Columns: make([]df.ColumnSchema, len(r.schema.Columns))}
	for i, cs := range r.schema.Columns {
		if cs.Type == df.KindStruct {
			out.Columns[i] = cs
			continue
		}
		col, _ := full.ColumnByName(cs.Name)
		o := df.NewObserver()
		for row := 0; row < full.Rows() && row < sampleRows; row++ {
			if s, ok := col.Value(row).(string); ok {
				o.ObserveText(s)
			} else {
				o.ObserveValue(col.Value(row))
			}
		}
		out.Columns[i] = o.Column(cs.Name)
		if len(o.Kinds()) == 0 {
			out.Columns[i] = cs
		}
	}
	return out, nil
}
