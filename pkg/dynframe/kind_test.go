package dynframe

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeRoundTrip(t *testing.T) {
	for _, typ := range []string{
		"long",
		"double",
		"choice<long,string>",
		"struct<long:long,string:string>",
		"struct<a:choice<long,double>,b:timestamp>",
	} {
		cs, err := ParseType("c", typ)
		require.NoError(t, err, typ)
		assert.Equal(t, typ, TypeString(cs))
	}
}

func TestParseTypeRejectsUnknown(t *testing.T) {
	_, err := ParseType("c", "geometry")
	assert.ErrorIs(t, err, ErrUnknownType)
	_, err = ParseType("c", "choice<long>")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestConvert(t *testing.T) {
	cases := []struct {
		in   any
		to   Kind
		want any
		ok   bool
	}{
		{"42", KindInt, int64(42), true},
		{"4.0", KindInt, int64(4), true},
		{"abc", KindInt, nil, false},
		{12.9, KindInt, int64(12), true},
		{int64(3), KindFloat, 3.0, true},
		{int64(3), KindString, "3", true},
		{2.5, KindString, "2.5", true},
		{"Y", KindBool, nil, false},
		{"true", KindBool, true, true},
		{"2019-01-01 00:10:16", KindTime, time.Date(2019, 1, 1, 0, 10, 16, 0, time.UTC), true},
		{nil, KindInt, nil, true},
	}
	for _, c := range cases {
		got, ok := Convert(c.in, c.to)
		assert.Equal(t, c.ok, ok, "%v -> %s", c.in, c.to)
		if c.ok {
			assert.Equal(t, c.want, got, "%v -> %s", c.in, c.to)
		}
	}
}

func TestObserverInfersChoice(t *testing.T) {
	o := NewObserver()
	for _, v := range []string{"1", "2", "", "N/A"} {
		o.ObserveText(v)
	}
	cs := o.Column("ratecodeid")
	assert.Equal(t, "choice<long,string>", TypeString(cs))

	widen := NewObserver()
	widen.ObserveText("1")
	widen.ObserveText("1.5")
	assert.Equal(t, KindFloat, widen.Column("x").Type)

	empty := NewObserver()
	empty.ObserveText("")
	assert.Equal(t, KindString, empty.Column("ehail_fee").Type)
}

func TestObserverNestedObjects(t *testing.T) {
	o := NewObserver()
	o.ObserveValue(map[string]any{"zone": int64(74), "flag": "N"})
	o.ObserveValue(map[string]any{"zone": "unknown", "fee": nil})
	o.ObserveValue(nil)
	assert.Equal(t, "struct<fee:string,flag:string,zone:choice<long,string>>", TypeString(o.Column("pickup")))

	mixed := NewObserver()
	mixed.ObserveValue(map[string]any{"a": int64(1)})
	mixed.ObserveValue(int64(3))
	assert.Equal(t, "choice<long,string>", TypeString(mixed.Column("extra")))

	bare := NewObserver()
	bare.ObserveValue(map[string]any{})
	assert.Equal(t, KindString, bare.Column("extra").Type)
}

func TestJSONNumbers(t *testing.T) {
	o := NewObserver()
	o.ObserveValue(json.Number("9007199254740993"))
	assert.Equal(t, KindInt, o.Column("id").Type)

	v, ok := Convert(json.Number("9007199254740993"), KindInt)
	require.True(t, ok)
	assert.Equal(t, int64(9007199254740993), v)

	v, ok = Convert(json.Number("2.5"), KindFloat)
	require.True(t, ok)
	assert.Equal(t, 2.5, v)

	_, ok = Convert(json.Number("abc"), KindInt)
	assert.False(t, ok)

	o = NewObserver()
	o.ObserveValue(1.0)
	assert.Equal(t, KindFloat, o.Column("fare").Type)
}

func TestConvertRejectsOutOfRangeFloats(t *testing.T) {
	_, ok := Convert(math.Pow(2, 63), KindInt)
	assert.False(t, ok)
	_, ok = Convert(math.Inf(1), KindInt)
	assert.False(t, ok)
	v, ok := Convert(-math.Pow(2, 63), KindInt)
	require.True(t, ok)
	assert.Equal(t, int64(math.MinInt64), v)
}
