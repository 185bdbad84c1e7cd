// Package outliers clamps numeric columns to a range.
package outliers

import (
	"context"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type Cap struct {
	Column string
	Min    *float64
	Max    *float64
}

func (t *Cap) Name() string { return "cap_range" }

func (t *Cap) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return f, nil
	}
	switch c := col.(type) {
	case *dynframe.FloatColumn:
		out := c.Clone().(*dynframe.FloatColumn)
		for i := 0; i < out.Len(); i++ {
			v, ok := out.Get(i)
			if !ok {
				continue
			}
			if t.Min != nil && v < *t.Min {
				v = *t.Min
			}
			if t.Max != nil && v > *t.Max {
				v = *t.Max
			}
			out.Set(i, v)
		}
		return f.WithColumn(out)
	case *dynframe.IntColumn:
		out := c.Clone().(*dynframe.IntColumn)
		for i := 0; i < out.Len(); i++ {
			v, ok := out.Get(i)
			if !ok {
				continue
			}
			if t.Min != nil && float64(v) < *t.Min {
				v = int64(*t.Min)
			}
			if t.Max != nil && float64(v) > *t.Max {
				v = int64(*t.Max)
			}
			out.Set(i, v)
		}
		return f.WithColumn(out)
	}
	return f, nil
}
