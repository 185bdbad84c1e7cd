package impute

import (
	"context"
	"math"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type Mean struct{ Column string }

func (t *Mean) Name() string { return "impute_mean" }

func (t *Mean) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return f, nil
	}
	switch c := col.(type) {
	case *dynframe.FloatColumn:
		var sum float64
		var n int
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			return f, nil
		}
		return fill(f, c, sum/float64(n))
	case *dynframe.IntColumn:
		var sum int64
		var n int
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			return f, nil
		}
		return fill(f, c, int64(math.Round(float64(sum)/float64(n))))
	}
	return f, nil
}
