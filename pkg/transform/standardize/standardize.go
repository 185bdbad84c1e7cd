// Package standardize normalises string columns.
package standardize

import "github.com/wdm0006/dynframe/pkg/dynframe"

// mapStrings applies fn to every non-null value of a string column. Columns of
// other kinds are left alone.
func mapStrings(f *dynframe.Frame, name string, fn func(string) string) (*dynframe.Frame, error) {
	col, ok := f.ColumnByName(name)
	if !ok {
		return f, nil
	}
	sc, ok := col.(*dynframe.StringColumn)
	if !ok {
		return f, nil
	}
	out := sc.Clone().(*dynframe.StringColumn)
	for i := 0; i < out.Len(); i++ {
		if v, ok := out.Get(i); ok {
			out.Set(i, fn(v))
		}
	}
	return f.WithColumn(out)
}
