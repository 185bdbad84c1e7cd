package parquetio

import (
	"path/filepath"
	"testing"

	df "github.com/wdm0006/dynframe/pkg/dynframe"
)

func makeFrame(rows int) *df.Frame {
	s := df.Schema{Columns: []df.ColumnSchema{{Name: "a", Type: df.KindFloat, Nullable: true}, {Name: "b", Type: df.KindInt, Nullable: true}}}
	f := df.NewFrame(s)
	for i := 0; i < rows; i++ {
		f.AppendNullRow()
		_ = f.SetCell(i, "a", float64(i%100))
		_ = f.SetCell(i, "b", int64(i%10))
	}
	return f
}

func BenchmarkParquetWrite(b *testing.B) {
	f := makeFrame(50000)
	path := filepath.Join(b.TempDir(), "bench.parquet")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = WriteAll(path, f, WriterOptions{})
	}
}
