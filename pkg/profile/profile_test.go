package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

func sampleFrame(t *testing.T) *dynframe.Frame {
	t.Helper()
	fare := dynframe.NewFloatColumn("fare_amount", 3)
	fare.Set(0, 10)
	fare.Set(2, 4)
	flag := dynframe.NewStringColumn("store_and_fwd_flag", 3)
	flag.Set(0, "N")
	flag.Set(1, "N")
	flag.Set(2, "Y")
	ehail := dynframe.NewStringColumn("ehail_fee", 3)
	rate := dynframe.NewChoiceColumn("ratecodeid", []dynframe.Kind{dynframe.KindInt, dynframe.KindString}, 3)
	require.NoError(t, rate.Set(0, int64(1)))
	require.NoError(t, rate.Set(1, "x"))
	f, err := dynframe.FromColumns(fare, flag, ehail, rate)
	require.NoError(t, err)
	return f
}

func TestCollectorCounts(t *testing.T) {
	c := Of(sampleFrame(t), 2)
	assert.Equal(t, 3, c.Rows())

	fare, ok := c.Column("fare_amount")
	require.True(t, ok)
	assert.Equal(t, 2, fare.Count)
	assert.Equal(t, 1, fare.Nulls)
	assert.Equal(t, 4.0, fare.Num.Min)
	assert.Equal(t, 10.0, fare.Num.Max)

	ehail, _ := c.Column("ehail_fee")
	assert.True(t, ehail.AllNull())
	assert.False(t, fare.AllNull())

	rate, _ := c.Column("ratecodeid")
	assert.Equal(t, 2, rate.Count)
	require.Len(t, rate.Fields, 2)
	assert.Equal(t, 1, rate.Fields[0].Count)
	assert.Equal(t, 1, rate.Fields[1].Count)
}

func TestCollectorAcrossChunks(t *testing.T) {
	f := sampleFrame(t)
	c := NewCollector(f.Schema(), 0)
	c.ConsumeFrame(f)
	c.ConsumeFrame(f)
	ehail, _ := c.Column("ehail_fee")
	assert.Equal(t, 6, ehail.Nulls)
	assert.Equal(t, 6, c.Rows())
}

func TestAllNull(t *testing.T) {
	col := dynframe.NewIntColumn("extra", 2)
	assert.True(t, AllNull(col))
	col.Set(1, 3)
	assert.False(t, AllNull(col))
	assert.Equal(t, 1, NullCount(col))
	assert.False(t, AllNull(dynframe.NewIntColumn("empty", 0)))
}

func TestReports(t *testing.T) {
	c := Of(sampleFrame(t), 1)
	txt := c.ReportText()
	assert.True(t, strings.HasPrefix(txt, "Profile Summary\n"))
	assert.Contains(t, txt, `"N": 2`)
	assert.NotContains(t, txt, `"Y": 1`)

	js := c.ReportJSON()
	require.Len(t, js.Columns, 4)
	assert.Equal(t, "double", js.Columns[0].Kind)
	assert.Equal(t, map[string]int{"N": 2}, js.Columns[1].Top)
	assert.Len(t, js.Columns[3].Fields, 2)
}
