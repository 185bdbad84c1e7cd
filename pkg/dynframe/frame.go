package dynframe

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownColumn = errors.New("unknown column")

// Schema describes the logical shape of a dataset.
type Schema struct {
	Columns []ColumnSchema
}

// ColumnSchema describes one column. Fields holds struct members or, for a
// choice column, one entry per observed kind.
type ColumnSchema struct {
	Name     string
	Type     Kind
	Nullable bool
	Fields   []ColumnSchema
}

// Names returns the top-level column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, cs := range s.Columns {
		names[i] = cs.Name
	}
	return names
}

// Lookup finds a top-level column by name.
func (s Schema) Lookup(name string) (ColumnSchema, bool) {
	for _, cs := range s.Columns {
		if cs.Name == name {
			return cs, true
		}
	}
	return ColumnSchema{}, false
}

// Frame is a columnar container for semi-structured tabular data. Transforms
// treat frames as immutable and return new frames; untouched columns may be
// shared between the input and the output.
type Frame struct {
	schema Schema
	cols   []Column
	index  map[string]int // name -> col index
	nrows  int
}

func NewFrame(s Schema) *Frame {
	f := &Frame{schema: s, cols: make([]Column, len(s.Columns)), index: make(map[string]int)}
	for i, cs := range s.Columns {
		f.cols[i] = NewColumn(cs, 0)
		f.index[cs.Name] = i
	}
	return f
}

// FromColumns assembles a frame from existing columns of equal length.
func FromColumns(cols ...Column) (*Frame, error) {
	f := &Frame{cols: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := f.index[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate column: %s", c.Name())
		}
		if i == 0 {
			f.nrows = c.Len()
		} else if c.Len() != f.nrows {
			return nil, fmt.Errorf("column %s has %d rows, want %d", c.Name(), c.Len(), f.nrows)
		}
		f.index[c.Name()] = i
		f.schema.Columns = append(f.schema.Columns, c.Schema())
	}
	return f, nil
}

// Empty returns a frame with the given row count and no columns.
func Empty(rows int) *Frame {
	return &Frame{index: map[string]int{}, nrows: rows}
}

func (f *Frame) Schema() Schema    { return f.schema }
func (f *Frame) Rows() int         { return f.nrows }
func (f *Frame) Cols() int         { return len(f.cols) }
func (f *Frame) Columns() []Column { return f.cols }

func (f *Frame) ColumnByName(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Value returns the value of a single cell, nil when null or unknown.
func (f *Frame) Value(row int, name string) any {
	c, ok := f.ColumnByName(name)
	if !ok {
		return nil
	}
	return c.Value(row)
}

// Record returns row r as a map, omitting null cells.
func (f *Frame) Record(r int) map[string]any {
	m := make(map[string]any, len(f.cols))
	for _, c := range f.cols {
		if v := c.Value(r); v != nil {
			m[c.Name()] = v
		}
	}
	return m
}

// WithColumn returns a new frame where col replaces the column of the same
// name, or is appended when no such column exists.
func (f *Frame) WithColumn(col Column) (*Frame, error) {
	if col.Len() != f.nrows && (len(f.cols) > 0 || f.nrows > 0) {
		return nil, fmt.Errorf("column %s has %d rows, want %d", col.Name(), col.Len(), f.nrows)
	}
	cols := append([]Column(nil), f.cols...)
	if i, ok := f.index[col.Name()]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return FromColumns(cols...)
}

// Drop returns a new frame without the named columns. The row count is kept
// even when every column is dropped.
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	var cols []Column
	for _, c := range f.cols {
		if _, ok := drop[c.Name()]; !ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return Empty(f.nrows)
	}
	out, _ := FromColumns(cols...)
	return out
}

// Select returns a new frame holding only the named columns, in that order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, ok := f.ColumnByName(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, n)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return Empty(f.nrows), nil
	}
	return FromColumns(cols...)
}

// Take returns a new frame holding the given rows, in that order.
func (f *Frame) Take(rows []int) (*Frame, error) {
	if len(f.cols) == 0 {
		return Empty(len(rows)), nil
	}
	out := NewFrame(f.schema)
	for i, r := range rows {
		if r < 0 || r >= f.nrows {
			return nil, fmt.Errorf("row %d out of range [0,%d)", r, f.nrows)
		}
		out.AppendNullRow()
		for c, col := range f.cols {
			if err := setValue(out.cols[c], i, col.Value(r)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Slice returns rows [start, end) as a new frame.
func (f *Frame) Slice(start, end int) (*Frame, error) {
	if start < 0 || end > f.nrows || start > end {
		return nil, fmt.Errorf("slice [%d,%d) out of range [0,%d)", start, end, f.nrows)
	}
	rows := make([]int, 0, end-start)
	for r := start; r < end; r++ {
		rows = append(rows, r)
	}
	return f.Take(rows)
}

// Clone deep-copies the frame.
func (f *Frame) Clone() *Frame {
	if len(f.cols) == 0 {
		return Empty(f.nrows)
	}
	cols := make([]Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.Clone()
	}
	out, _ := FromColumns(cols...)
	return out
}

// AppendNullRow appends a row with all-null values.
func (f *Frame) AppendNullRow() {
	for _, c := range f.cols {
		c.AppendNull()
	}
	f.nrows++
}

// SetCell sets a single cell value by name (row must exist).
func (f *Frame) SetCell(row int, name string, v any) error {
	i, ok := f.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	return setValue(f.cols[i], row, v)
}

// SetText parses a raw text cell according to the column kind. Empty or
// unparseable text leaves the cell null, as the CSV readers expect.
func (f *Frame) SetText(row int, name, raw string) error {
	i, ok := f.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	switch col := f.cols[i].(type) {
	case *ChoiceColumn:
		col.SetText(row, raw)
	case *StructColumn:
		return fmt.Errorf("column %s: struct cells cannot be parsed from text", name)
	default:
		if v, ok := ParseText(col.Kind(), raw); ok {
			return setValue(col, row, v)
		}
	}
	return nil
}

// SetValue stores v at row of c, converting between the numeric Go types.
// A nil v sets the cell null.
func SetValue(c Column, row int, v any) error { return setValue(c, row, v) }

func setValue(c Column, row int, v any) error {
	if v == nil {
		c.SetNull(row)
		return nil
	}
	switch col := c.(type) {
	case *BoolColumn:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("column %s expects bool", col.Name())
		}
		col.Set(row, b)
	case *IntColumn:
		switch t := v.(type) {
		case int:
			col.Set(row, int64(t))
		case int32:
			col.Set(row, int64(t))
		case int64:
			col.Set(row, t)
		case float64:
			col.Set(row, int64(t))
		default:
			return fmt.Errorf("column %s expects int/int64", col.Name())
		}
	case *FloatColumn:
		switch t := v.(type) {
		case float32:
			col.Set(row, float64(t))
		case float64:
			col.Set(row, t)
		case int:
			col.Set(row, float64(t))
		case int64:
			col.Set(row, float64(t))
		default:
			return fmt.Errorf("column %s expects float64", col.Name())
		}
	case *StringColumn:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("column %s expects string", col.Name())
		}
		col.Set(row, s)
	case *TimeColumn:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("column %s expects time.Time", col.Name())
		}
		col.Set(row, t)
	case *StructColumn:
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("column %s expects map[string]any", col.Name())
		}
		return col.set(row, m)
	case *ChoiceColumn:
		return col.Set(row, v)
	default:
		return fmt.Errorf("unknown column kind")
	}
	return nil
}
