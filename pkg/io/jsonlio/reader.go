package jsonlio

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"

	df "github.com/wdm0006/dynframe/pkg/dynframe"
)

type ReaderOptions struct {
	SampleRows int
	// NormalizeKey, when set, rewrites every object key as it is decoded,
	// nested ones included.
	NormalizeKey func(string) string
}

type Reader struct {
	dec *json.Decoder
	opt ReaderOptions
	buf []map[string]any
}

func NewReader(r io.Reader, opt ReaderOptions) *Reader {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()
	return &Reader{dec: dec, opt: opt}
}

// InferSchema samples records and infers one column per key. Keys are sorted
// so repeated crawls produce the same column order.
func (r *Reader) InferSchema() (df.Schema, error) {
	max := r.opt.SampleRows
	if max <= 0 {
		max = 100
	}
	obs := map[string]*df.Observer{}
	for len(r.buf) < max {
		var m map[string]any
		if err := r.dec.Decode(&m); err != nil {
			if err == io.EOF {
				break
			}
			return df.Schema{}, err
		}
		m = r.normalize(m)
		r.buf = append(r.buf, m)
		for k, v := range m {
			o, ok := obs[k]
			if !ok {
				o = df.NewObserver()
				obs[k] = o
			}
			o.ObserveValue(v)
		}
	}
	keys := make([]string, 0, len(obs))
	for k := range obs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	schema := df.Schema{Columns: make([]df.ColumnSchema, len(keys))}
	for i, k := range keys {
		schema.Columns[i] = obs[k].Column(k)
	}
	return schema, nil
}

func (r *Reader) ReadAll(schema df.Schema) (*df.Frame, error) {
	f := df.NewFrame(schema)
	// drain buffer
	for len(r.buf) > 0 {
		m := r.buf[0]
		r.buf = r.buf[1:]
		f.AppendNullRow()
		setRowFromMap(f, f.Rows()-1, m)
	}
	// continue decoding
	for {
		var m map[string]any
		if err := r.dec.Decode(&m); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		f.AppendNullRow()
		setRowFromMap(f, f.Rows()-1, r.normalize(m))
	}
	return f, nil
}

func (r *Reader) normalize(m map[string]any) map[string]any {
	out, _ := r.value(m).(map[string]any)
	return out
}

// value rewrites keys and turns json.Number into int64 or float64, so that
// integers beyond 2^53 survive.
func (r *Reader) value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, fv := range t {
			if r.opt.NormalizeKey != nil {
				k = r.opt.NormalizeKey(k)
			}
			out[k] = r.value(fv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, ev := range t {
			out[i] = r.value(ev)
		}
		return out
	case json.Number:
		if x, ok := df.NumberValue(t); ok {
			return x
		}
		return t.String()
	default:
		return v
	}
}

// setRowFromMap casts decoded JSON values to the column kinds. Values that do
// not fit are left null.
func setRowFromMap(f *df.Frame, row int, m map[string]any) {
	for _, cs := range f.Schema().Columns {
		v, ok := m[cs.Name]
		if !ok || v == nil {
			continue
		}
		switch cs.Type {
		case df.KindChoice:
			_ = f.SetCell(row, cs.Name, v)
		case df.KindStruct:
			if _, ok := v.(map[string]any); ok {
				_ = f.SetCell(row, cs.Name, v)
			}
		case df.KindString:
			switch t := v.(type) {
			case string:
				_ = f.SetCell(row, cs.Name, t)
			default:
				// fallback to JSON encoding
				b, _ := json.Marshal(t)
				_ = f.SetCell(row, cs.Name, string(b))
			}
		default:
			if x, ok := df.Convert(v, cs.Type); ok {
				_ = f.SetCell(row, cs.Name, x)
			}
		}
	}
}
