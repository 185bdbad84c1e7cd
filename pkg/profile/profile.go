// Package profile collects per-column statistics over frames. Null counts
// drive field pruning; the remaining stats feed run summaries.
package profile

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type NumStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Sum float64 `json:"sum"`
}

type BoolStats struct {
	True  int `json:"true"`
	False int `json:"false"`
}

type StringStats struct {
	TopK  int            `json:"-"`
	Freqs map[string]int `json:"top,omitempty"`
}

// ColumnProfile accumulates stats for one column. Count is the number of
// non-null cells. Fields holds struct members or choice branches.
type ColumnProfile struct {
	Name   string           `json:"name"`
	Kind   dynframe.Kind    `json:"-"`
	Count  int              `json:"count"`
	Nulls  int              `json:"nulls"`
	Num    *NumStats        `json:"num,omitempty"`
	Bool   *BoolStats       `json:"bool,omitempty"`
	Str    *StringStats     `json:"str,omitempty"`
	Fields []*ColumnProfile `json:"fields,omitempty"`
}

// Field returns the profile of a struct member or choice branch, or nil.
func (cp *ColumnProfile) Field(name string) *ColumnProfile {
	for _, f := range cp.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AllNull reports whether at least one row was seen and every cell was null.
func (cp *ColumnProfile) AllNull() bool {
	return cp.Count == 0 && cp.Nulls > 0
}

type Collector struct {
	cols  []*ColumnProfile
	index map[string]int
	topK  int
	rows  int
}

func newProfile(cs dynframe.ColumnSchema, topK int) *ColumnProfile {
	cp := &ColumnProfile{Name: cs.Name, Kind: cs.Type}
	switch cs.Type {
	case dynframe.KindFloat, dynframe.KindInt:
		cp.Num = &NumStats{Min: math.Inf(1), Max: math.Inf(-1)}
	case dynframe.KindBool:
		cp.Bool = &BoolStats{}
	case dynframe.KindString, dynframe.KindTime:
		cp.Str = &StringStats{TopK: topK, Freqs: make(map[string]int)}
	case dynframe.KindStruct, dynframe.KindChoice:
		for _, f := range cs.Fields {
			cp.Fields = append(cp.Fields, newProfile(f, topK))
		}
	}
	return cp
}

// NewCollector prepares profiles for every column of schema. topK bounds the
// string frequencies kept in reports; 0 disables frequency tracking.
func NewCollector(schema dynframe.Schema, topK int) *Collector {
	c := &Collector{index: make(map[string]int), topK: topK}
	for i, cs := range schema.Columns {
		c.cols = append(c.cols, newProfile(cs, topK))
		c.index[cs.Name] = i
	}
	return c
}

// Of profiles a single frame.
func Of(f *dynframe.Frame, topK int) *Collector {
	c := NewCollector(f.Schema(), topK)
	c.ConsumeFrame(f)
	return c
}

// ConsumeFrame adds f's rows. Columns missing from the collector's schema are
// ignored, so chunks of a stream can be fed one by one.
func (c *Collector) ConsumeFrame(f *dynframe.Frame) {
	c.rows += f.Rows()
	for _, col := range f.Columns() {
		idx, ok := c.index[col.Name()]
		if !ok {
			continue
		}
		c.cols[idx].consume(col, c.topK)
	}
}

func (cp *ColumnProfile) consume(col dynframe.Column, topK int) {
	n := col.Len()
	for i := 0; i < n; i++ {
		if col.IsNull(i) {
			cp.Nulls++
		} else {
			cp.Count++
		}
	}
	switch c := col.(type) {
	case *dynframe.FloatColumn:
		for i := 0; i < n; i++ {
			if v, ok := c.Get(i); ok {
				cp.Num.add(v)
			}
		}
	case *dynframe.IntColumn:
		for i := 0; i < n; i++ {
			if v, ok := c.Get(i); ok {
				cp.Num.add(float64(v))
			}
		}
	case *dynframe.BoolColumn:
		for i := 0; i < n; i++ {
			v, ok := c.Get(i)
			switch {
			case !ok:
			case v:
				cp.Bool.True++
			default:
				cp.Bool.False++
			}
		}
	case *dynframe.StringColumn:
		if topK <= 0 {
			return
		}
		for i := 0; i < n; i++ {
			if v, ok := c.Get(i); ok {
				cp.Str.Freqs[v]++
			}
		}
	case *dynframe.TimeColumn:
		if topK <= 0 {
			return
		}
		for i := 0; i < n; i++ {
			if v, ok := c.Get(i); ok {
				cp.Str.Freqs[v.String()]++
			}
		}
	case *dynframe.StructColumn:
		cp.consumeChildren(c.Fields(), topK)
	case *dynframe.ChoiceColumn:
		cp.consumeChildren(c.Branches(), topK)
	}
}

func (cp *ColumnProfile) consumeChildren(children []dynframe.Column, topK int) {
	for _, child := range children {
		for _, fp := range cp.Fields {
			if fp.Name == child.Name() {
				fp.consume(child, topK)
				break
			}
		}
	}
}

func (s *NumStats) add(v float64) {
	if v < s.Min {
		s.Min = v
	}
	if v > s.Max {
		s.Max = v
	}
	s.Sum += v
}

// Rows is the number of rows consumed.
func (c *Collector) Rows() int { return c.rows }

// Columns returns the profiles in schema order.
func (c *Collector) Columns() []*ColumnProfile { return c.cols }

func (c *Collector) Column(name string) (*ColumnProfile, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.cols[i], true
}

// NullCount counts null cells of a single column.
func NullCount(col dynframe.Column) int {
	n := 0
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			n++
		}
	}
	return n
}

// AllNull reports whether col has rows and all of them are null.
func AllNull(col dynframe.Column) bool {
	return col.Len() > 0 && NullCount(col) == col.Len()
}

func (c *Collector) ReportText() string {
	var b strings.Builder
	b.WriteString("Profile Summary\n")
	for _, cp := range c.cols {
		cp.writeText(&b, "", c.topK)
	}
	return b.String()
}

func (cp *ColumnProfile) writeText(b *strings.Builder, indent string, topK int) {
	fmt.Fprintf(b, "%s- %s (%v): count=%d nulls=%d", indent, cp.Name, cp.Kind, cp.Count, cp.Nulls)
	switch {
	case cp.Num != nil:
		mean := 0.0
		if cp.Count > 0 {
			mean = cp.Num.Sum / float64(cp.Count)
		}
		if cp.Count > 0 {
			fmt.Fprintf(b, " min=%.6g max=%.6g mean=%.6g", cp.Num.Min, cp.Num.Max, mean)
		}
		b.WriteString("\n")
	case cp.Bool != nil:
		fmt.Fprintf(b, " true=%d false=%d\n", cp.Bool.True, cp.Bool.False)
	default:
		b.WriteString("\n")
	}
	if cp.Str != nil && len(cp.Str.Freqs) > 0 {
		for _, e := range top(cp.Str.Freqs, topK) {
			fmt.Fprintf(b, "%s  * %q: %d\n", indent, e.k, e.v)
		}
	}
	for _, f := range cp.Fields {
		f.writeText(b, indent+"  ", topK)
	}
}

type kv struct {
	k string
	v int
}

func top(freqs map[string]int, n int) []kv {
	arr := make([]kv, 0, len(freqs))
	for k, v := range freqs {
		arr = append(arr, kv{k, v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].v != arr[j].v {
			return arr[i].v > arr[j].v
		}
		return arr[i].k < arr[j].k
	})
	if n <= 0 || n > len(arr) {
		n = len(arr)
	}
	return arr[:n]
}

type JSONProfile struct {
	Rows    int          `json:"rows"`
	Columns []JSONColumn `json:"columns"`
}

type JSONColumn struct {
	Name   string         `json:"name"`
	Kind   string         `json:"kind"`
	Count  int            `json:"count"`
	Nulls  int            `json:"nulls"`
	Num    *NumStats      `json:"num,omitempty"`
	Bool   *BoolStats     `json:"bool,omitempty"`
	Top    map[string]int `json:"top,omitempty"`
	Fields []JSONColumn   `json:"fields,omitempty"`
}

func (c *Collector) ReportJSON() JSONProfile {
	out := JSONProfile{Rows: c.rows, Columns: make([]JSONColumn, 0, len(c.cols))}
	for _, cp := range c.cols {
		out.Columns = append(out.Columns, cp.json(c.topK))
	}
	return out
}

func (cp *ColumnProfile) json(topK int) JSONColumn {
	jc := JSONColumn{Name: cp.Name, Kind: cp.Kind.String(), Count: cp.Count, Nulls: cp.Nulls, Bool: cp.Bool}
	if cp.Num != nil && cp.Count > 0 {
		jc.Num = cp.Num
	}
	if cp.Str != nil && len(cp.Str.Freqs) > 0 {
		jc.Top = make(map[string]int)
		for _, e := range top(cp.Str.Freqs, topK) {
			jc.Top[e.k] = e.v
		}
	}
	for _, f := range cp.Fields {
		jc.Fields = append(jc.Fields, f.json(topK))
	}
	return jc
}
