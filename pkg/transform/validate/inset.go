package validate

import (
	"context"
	"fmt"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

// InSet requires every non-null value, rendered as a string, to be one of Values.
type InSet struct {
	Column string
	Values map[string]struct{}
}

func NewInSet(col string, vals []string) *InSet {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return &InSet{Column: col, Values: m}
}

func (t *InSet) Name() string { return "validate_in" }

func (t *InSet) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return f, nil
	}
	switch col.Kind() {
	case dynframe.KindStruct, dynframe.KindChoice:
		return f, nil
	}
	var bad int
	for i := 0; i < col.Len(); i++ {
		v := col.Value(i)
		if v == nil {
			continue
		}
		s, _ := dynframe.Convert(v, dynframe.KindString)
		if _, ok := t.Values[s.(string)]; !ok {
			bad++
		}
	}
	if bad > 0 {
		return nil, fmt.Errorf("%w: column %s has %d values outside allowed set", ErrInvalid, t.Column, bad)
	}
	return f, nil
}
