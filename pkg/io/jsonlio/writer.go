package jsonlio

import (
	"bufio"
	"encoding/json"
	"io"

	df "github.com/wdm0006/dynframe/pkg/dynframe"
)

// Write encodes one JSON object per row. Null cells are omitted and structs
// become nested objects.
func Write(out io.Writer, f *df.Frame) error {
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for r := 0; r < f.Rows(); r++ {
		if err := enc.Encode(f.Record(r)); err != nil {
			return err
		}
	}
	return w.Flush()
}
