package dropnull

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

func TestDropsOnlyAllNullColumns(t *testing.T) {
	vendor := dynframe.NewIntColumn("vendorid", 2)
	vendor.Set(0, 2)
	ehail := dynframe.NewStringColumn("ehail_fee", 2)
	tip := dynframe.NewFloatColumn("tip_amount", 2)
	tip.Set(1, 1.5)
	in, err := dynframe.FromColumns(vendor, ehail, tip)
	require.NoError(t, err)

	var dropped []string
	out, err := (&DropNullFields{OnDrop: func(p string) { dropped = append(dropped, p) }}).Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"vendorid", "tip_amount"}, out.Schema().Names())
	assert.Equal(t, 2, out.Rows())
	assert.Equal(t, []string{"ehail_fee"}, dropped)
	assert.Equal(t, 3, in.Cols())
}

func TestStructFieldsArePruned(t *testing.T) {
	long := dynframe.NewIntColumn("long", 2)
	long.Set(0, 1)
	str := dynframe.NewStringColumn("string", 2)
	rate := dynframe.NewStructColumn("ratecodeid", []dynframe.Column{long, str}, nil)

	empty := dynframe.NewStructColumn("meta", []dynframe.Column{dynframe.NewStringColumn("a", 2)}, []bool{false, false})
	in, err := dynframe.FromColumns(rate, empty)
	require.NoError(t, err)

	out, err := (&DropNullFields{}).Apply(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, []string{"ratecodeid"}, out.Schema().Names())
	assert.Equal(t, "struct<long:long>", dynframe.TypeString(out.Schema().Columns[0]))
	assert.Equal(t, map[string]any{"long": int64(1)}, out.Value(0, "ratecodeid"))
	assert.Nil(t, out.Value(1, "ratecodeid"))
}

func TestEmptyFrameKeepsSchema(t *testing.T) {
	s := dynframe.Schema{Columns: []dynframe.ColumnSchema{
		{Name: "a", Type: dynframe.KindInt, Nullable: true},
		{Name: "b", Type: dynframe.KindString, Nullable: true},
	}}
	in := dynframe.NewFrame(s)
	out, err := (&DropNullFields{}).Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Schema().Names())
}

func TestAllColumnsNull(t *testing.T) {
	in, err := dynframe.FromColumns(dynframe.NewIntColumn("a", 3))
	require.NoError(t, err)
	out, err := (&DropNullFields{}).Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Cols())
	assert.Equal(t, 3, out.Rows())
}

func TestUnchangedFrameReturnedAsIs(t *testing.T) {
	a := dynframe.NewIntColumn("a", 1)
	a.Set(0, 1)
	in, err := dynframe.FromColumns(a)
	require.NoError(t, err)
	out, err := (&DropNullFields{}).Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, in, out)
}
