// Package impute fills null cells of a column.
package impute

import "github.com/wdm0006/dynframe/pkg/dynframe"

// fill returns f with col replaced by a copy whose null cells hold v.
func fill(f *dynframe.Frame, col dynframe.Column, v any) (*dynframe.Frame, error) {
	out := col.Clone()
	for i := 0; i < out.Len(); i++ {
		if !out.IsNull(i) {
			continue
		}
		if err := dynframe.SetValue(out, i, v); err != nil {
			return nil, err
		}
	}
	return f.WithColumn(out)
}
