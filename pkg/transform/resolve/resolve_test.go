package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

func mixedFrame(t *testing.T) *dynframe.Frame {
	t.Helper()
	rate := dynframe.NewChoiceColumn("ratecodeid", []dynframe.Kind{dynframe.KindInt, dynframe.KindString}, 3)
	require.NoError(t, rate.Set(0, int64(1)))
	require.NoError(t, rate.Set(1, "99x"))
	fare := dynframe.NewFloatColumn("fare_amount", 3)
	fare.Set(0, 5)
	f, err := dynframe.FromColumns(rate, fare)
	require.NoError(t, err)
	return f
}

func TestMakeStructByDefault(t *testing.T) {
	in := mixedFrame(t)
	out, err := (&ResolveChoice{}).Apply(context.Background(), in)
	require.NoError(t, err)

	for _, cs := range out.Schema().Columns {
		assert.NotEqual(t, dynframe.KindChoice, cs.Type, cs.Name)
	}
	cs, ok := out.Schema().Lookup("ratecodeid")
	require.True(t, ok)
	require.Equal(t, dynframe.KindStruct, cs.Type)
	require.Len(t, cs.Fields, 2)
	assert.Equal(t, "long", cs.Fields[0].Name)
	assert.Equal(t, "string", cs.Fields[1].Name)

	assert.Equal(t, map[string]any{"long": int64(1), "string": nil}, out.Value(0, "ratecodeid"))
	assert.Equal(t, map[string]any{"long": nil, "string": "99x"}, out.Value(1, "ratecodeid"))
	assert.Nil(t, out.Value(2, "ratecodeid"))

	assert.Equal(t, dynframe.KindChoice, in.Schema().Columns[0].Type)
	assert.Equal(t, 5.0, out.Value(0, "fare_amount"))
}

func TestNestedChoiceInsideStruct(t *testing.T) {
	inner := dynframe.NewChoiceColumn("code", []dynframe.Kind{dynframe.KindInt, dynframe.KindString}, 1)
	require.NoError(t, inner.Set(0, "A"))
	parent := dynframe.NewStructColumn("meta", []dynframe.Column{inner}, nil)
	in, err := dynframe.FromColumns(parent)
	require.NoError(t, err)

	out, err := (&ResolveChoice{}).Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "struct<code:struct<long:long,string:string>>", dynframe.TypeString(out.Schema().Columns[0]))
}

func TestSpecActions(t *testing.T) {
	ctx := context.Background()
	in := mixedFrame(t)

	out, err := (&ResolveChoice{Specs: []Spec{{Path: "ratecodeid", Action: "make_cols"}}}).Apply(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"ratecodeid_long", "ratecodeid_string", "fare_amount"}, out.Schema().Names())
	assert.Equal(t, "99x", out.Value(1, "ratecodeid_string"))

	out, err = (&ResolveChoice{Specs: []Spec{{Path: "ratecodeid", Action: "cast:long"}}}).Apply(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, dynframe.KindInt, out.Schema().Columns[0].Type)
	assert.Equal(t, int64(1), out.Value(0, "ratecodeid"))
	assert.Nil(t, out.Value(1, "ratecodeid"))

	out, err = (&ResolveChoice{Choice: "project:string"}).Apply(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, dynframe.KindString, out.Schema().Columns[0].Type)
	assert.Nil(t, out.Value(0, "ratecodeid"))
	assert.Equal(t, "99x", out.Value(1, "ratecodeid"))
}

func TestSpecErrors(t *testing.T) {
	ctx := context.Background()
	in := mixedFrame(t)
	_, err := (&ResolveChoice{Specs: []Spec{{Path: "nope", Action: "make_cols"}}}).Apply(ctx, in)
	assert.ErrorIs(t, err, dynframe.ErrUnknownColumn)

	_, err = (&ResolveChoice{Choice: "explode"}).Apply(ctx, in)
	assert.Error(t, err)

	_, err = ParseAction("cast:varint")
	assert.ErrorIs(t, err, dynframe.ErrUnknownType)
}

func TestActionString(t *testing.T) {
	for _, s := range []string{"make_struct", "make_cols", "cast:long", "project:string"} {
		a, err := ParseAction(s)
		require.NoError(t, err)
		assert.Equal(t, s, a.String())
	}
}
