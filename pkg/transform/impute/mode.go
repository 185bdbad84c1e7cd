package impute

import (
	"context"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

// Mode fills nulls with the most frequent value. Ties go to the value that
// reached the top count first.
type Mode struct{ Column string }

func (t *Mode) Name() string { return "impute_mode" }

func (t *Mode) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return f, nil
	}
	switch col.Kind() {
	case dynframe.KindStruct, dynframe.KindChoice:
		return f, nil
	}
	counts := map[any]int{}
	var best any
	var bestc int
	for i := 0; i < col.Len(); i++ {
		v := col.Value(i)
		if v == nil {
			continue
		}
		counts[v]++
		if counts[v] > bestc {
			bestc = counts[v]
			best = v
		}
	}
	if best == nil {
		return f, nil
	}
	return fill(f, col, best)
}
