package csvio

import (
	"encoding/csv"
	"io"

	df "github.com/wdm0006/dynframe/pkg/dynframe"
)

type WriterOptions struct {
	Delimiter rune // default ','
	NoHeader  bool
}

// Write writes a Frame as CSV with a header row. Struct values are written as
// JSON objects; choice values use their string form.
func Write(w io.Writer, f *df.Frame, opt WriterOptions) error {
	cw := csv.NewWriter(w)
	if opt.Delimiter != 0 {
		cw.Comma = opt.Delimiter
	}

	cols := f.Columns()
	if !opt.NoHeader {
		hdr := make([]string, len(cols))
		for i, c := range cols {
			hdr[i] = c.Name()
		}
		if err := cw.Write(hdr); err != nil {
			return err
		}
	}

	row := make([]string, len(cols))
	for r := 0; r < f.Rows(); r++ {
		for c, col := range cols {
			row[c] = ""
			v := col.Value(r)
			if v == nil {
				continue
			}
			if s, ok := df.Convert(v, df.KindString); ok {
				row[c] = s.(string)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
