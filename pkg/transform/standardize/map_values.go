package standardize

import (
	"context"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type MapValues struct {
	Column string
	Map    map[string]string
}

func (t *MapValues) Name() string { return "map_values" }

func (t *MapValues) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	return mapStrings(f, t.Column, func(v string) string {
		if nv, ok := t.Map[v]; ok {
			return nv
		}
		return v
	})
}
