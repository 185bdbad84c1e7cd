package validate

import (
	"context"
	"fmt"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type Range struct {
	Column string
	Min    *float64
	Max    *float64
}

func (t *Range) Name() string { return "validate_range" }

func (t *Range) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return f, nil
	}
	var bad int
	check := func(v float64) {
		if (t.Min != nil && v < *t.Min) || (t.Max != nil && v > *t.Max) {
			bad++
		}
	}
	switch c := col.(type) {
	case *dynframe.FloatColumn:
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				check(v)
			}
		}
	case *dynframe.IntColumn:
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				check(float64(v))
			}
		}
	}
	if bad > 0 {
		return nil, fmt.Errorf("%w: column %s has %d out-of-range values", ErrInvalid, t.Column, bad)
	}
	return f, nil
}
