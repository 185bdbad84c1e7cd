// Package dropnull prunes fields that hold no values.
package dropnull

import (
	"context"

	"github.com/wdm0006/dynframe/pkg/dynframe"
	"github.com/wdm0006/dynframe/pkg/profile"
)

// DropNullFields removes every column that is null in all rows. Struct fields
// are pruned the same way and a struct left without fields is removed. Rows
// are never dropped, and a frame without rows keeps its schema.
type DropNullFields struct {
	// OnDrop, when set, receives the dotted path of each removed field.
	OnDrop func(path string)
}

func (t *DropNullFields) Name() string { return "drop_null_fields" }

func (t *DropNullFields) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	if f.Rows() == 0 {
		return f, nil
	}
	prof := profile.Of(f, 0)
	var keep []dynframe.Column
	for _, c := range f.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cp, _ := prof.Column(c.Name())
		if out, ok := t.prune(c, cp, c.Name()); ok {
			keep = append(keep, out)
		}
	}
	if len(keep) == len(f.Columns()) && sameColumns(keep, f.Columns()) {
		return f, nil
	}
	if len(keep) == 0 {
		return dynframe.Empty(f.Rows()), nil
	}
	return dynframe.FromColumns(keep...)
}

// prune returns the column to keep, or false when it must be removed.
func (t *DropNullFields) prune(c dynframe.Column, cp *profile.ColumnProfile, path string) (dynframe.Column, bool) {
	if cp != nil && cp.AllNull() {
		t.dropped(path)
		return nil, false
	}
	sc, ok := c.(*dynframe.StructColumn)
	if !ok || cp == nil {
		return c, true
	}
	var fields []dynframe.Column
	changed := false
	for _, fc := range sc.Fields() {
		out, keep := t.prune(fc, cp.Field(fc.Name()), path+"."+fc.Name())
		if !keep {
			changed = true
			continue
		}
		fields = append(fields, out)
		if out != fc {
			changed = true
		}
	}
	if !changed {
		return c, true
	}
	if len(fields) == 0 {
		t.dropped(path)
		return nil, false
	}
	nulls := make([]bool, sc.Len())
	for i := range nulls {
		nulls[i] = sc.IsNull(i)
	}
	return dynframe.NewStructColumn(sc.Name(), fields, nulls), true
}

func (t *DropNullFields) dropped(path string) {
	if t.OnDrop != nil {
		t.OnDrop(path)
	}
}

func sameColumns(a, b []dynframe.Column) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
