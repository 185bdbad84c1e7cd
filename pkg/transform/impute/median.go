package impute

import (
	"context"
	"sort"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type Median struct{ Column string }

func (t *Median) Name() string { return "impute_median" }

func (t *Median) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return f, nil
	}
	switch c := col.(type) {
	case *dynframe.FloatColumn:
		vals := make([]float64, 0, c.Len())
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			return f, nil
		}
		sort.Float64s(vals)
		mid := len(vals) / 2
		med := vals[mid]
		if len(vals)%2 == 0 {
			med = (vals[mid-1] + vals[mid]) / 2
		}
		return fill(f, c, med)
	case *dynframe.IntColumn:
		vals := make([]int64, 0, c.Len())
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			return f, nil
		}
		sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
		mid := len(vals) / 2
		med := vals[mid]
		if len(vals)%2 == 0 {
			med = (vals[mid-1] + vals[mid]) / 2
		}
		return fill(f, c, med)
	}
	return f, nil
}
