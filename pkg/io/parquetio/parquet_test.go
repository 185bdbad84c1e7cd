package parquetio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	df "github.com/wdm0006/dynframe/pkg/dynframe"
)

func openWritten(t *testing.T, path string) *Reader {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fh.Close() })
	st, err := fh.Stat()
	require.NoError(t, err)
	r, err := OpenReader(fh, st.Size())
	require.NoError(t, err)
	return r
}

func TestWriteThenReadFlat(t *testing.T) {
	s := df.Schema{Columns: []df.ColumnSchema{
		{Name: "vendorid", Type: df.KindInt},
		{Name: "fare_amount", Type: df.KindFloat},
		{Name: "store_and_fwd_flag", Type: df.KindString},
		{Name: "pickup", Type: df.KindTime},
	}}
	f := df.NewFrame(s)
	for i := 0; i < 3; i++ {
		f.AppendNullRow()
		require.NoError(t, f.SetCell(i, "vendorid", int64(i+1)))
		require.NoError(t, f.SetCell(i, "fare_amount", 2.5*float64(i)))
	}
	require.NoError(t, f.SetCell(0, "store_and_fwd_flag", "N"))
	require.NoError(t, f.SetCell(2, "pickup", time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)))

	path := filepath.Join(t.TempDir(), "part-00000.snappy.parquet")
	require.NoError(t, WriteAll(path, f, WriterOptions{}))

	r := openWritten(t, path)
	assert.Equal(t, int64(3), r.NumRows())
	assert.Equal(t, []string{"vendorid", "fare_amount", "store_and_fwd_flag", "pickup"}, r.Schema().Names())

	out, err := r.ReadAll(r.Schema())
	require.NoError(t, err)
	require.Equal(t, 3, out.Rows())
	assert.Equal(t, int64(3), out.Value(2, "vendorid"))
	assert.Equal(t, 5.0, out.Value(2, "fare_amount"))
	assert.Equal(t, "N", out.Value(0, "store_and_fwd_flag"))
	assert.Nil(t, out.Value(1, "store_and_fwd_flag"))
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), out.Value(2, "pickup"))
}

func TestWriteStructColumn(t *testing.T) {
	s := df.Schema{Columns: []df.ColumnSchema{
		{Name: "ratecodeid", Type: df.KindStruct, Fields: []df.ColumnSchema{
			{Name: "long", Type: df.KindInt}, {Name: "string", Type: df.KindString},
		}},
	}}
	f := df.NewFrame(s)
	f.AppendNullRow()
	f.AppendNullRow()
	require.NoError(t, f.SetCell(0, "ratecodeid", map[string]any{"long": int64(1)}))
	require.NoError(t, f.SetCell(1, "ratecodeid", map[string]any{"string": "N/A"}))

	path := filepath.Join(t.TempDir(), "nested.parquet")
	require.NoError(t, WriteAll(path, f, WriterOptions{Compression: "gzip"}))

	r := openWritten(t, path)
	assert.Equal(t, []string{"ratecodeid"}, r.Schema().Names())
	assert.Equal(t, "struct<long:long,string:string>", df.TypeString(r.Schema().Columns[0]))
	out, err := r.ReadAll(r.Schema())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"long": int64(1), "string": nil}, out.Value(0, "ratecodeid"))
	assert.Equal(t, map[string]any{"long": nil, "string": "N/A"}, out.Value(1, "ratecodeid"))

	inferred, err := r.InferSchema(10)
	require.NoError(t, err)
	assert.Equal(t, r.Schema(), inferred)
}

func TestReadNestedStruct(t *testing.T) {
	cs, err := df.ParseType("pickup", "struct<zone:long,meta:struct<flag:string>>")
	require.NoError(t, err)
	f := df.NewFrame(df.Schema{Columns: []df.ColumnSchema{cs}})
	f.AppendNullRow()
	f.AppendNullRow()
	require.NoError(t, f.SetCell(0, "pickup", map[string]any{"zone": int64(74), "meta": map[string]any{"flag": "N"}}))

	path := filepath.Join(t.TempDir(), "deep.parquet")
	require.NoError(t, WriteAll(path, f, WriterOptions{}))

	r := openWritten(t, path)
	assert.Equal(t, "struct<zone:long,meta:struct<flag:string>>", df.TypeString(r.Schema().Columns[0]))
	out, err := r.ReadAll(r.Schema())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"zone": int64(74), "meta": map[string]any{"flag": "N"}}, out.Value(0, "pickup"))
	assert.Nil(t, out.Value(1, "pickup"))
}

func TestSchemaJSONRejectsChoice(t *testing.T) {
	cs, err := df.ParseType("x", "choice<long,string>")
	require.NoError(t, err)
	_, err = SchemaJSON(df.Schema{Columns: []df.ColumnSchema{cs}})
	assert.Error(t, err)
	_, err = codec("lz4-raw")
	assert.Error(t, err)
}
