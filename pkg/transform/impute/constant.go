package impute

import (
	"context"
	"fmt"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type Constant struct {
	Column string
	// Value is converted to the column kind.
	Value any
}

func (t *Constant) Name() string { return "impute_constant" }

func (t *Constant) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return f, nil
	}
	switch col.Kind() {
	case dynframe.KindStruct, dynframe.KindChoice:
		return nil, fmt.Errorf("column %s: cannot impute %s values", t.Column, col.Kind())
	}
	v, ok := dynframe.Convert(t.Value, col.Kind())
	if !ok || v == nil {
		return nil, fmt.Errorf("column %s: value %v is not a %s", t.Column, t.Value, col.Kind())
	}
	return fill(f, col, v)
}
