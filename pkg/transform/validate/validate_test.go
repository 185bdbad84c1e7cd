package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

func ptr(v float64) *float64 { return &v }

func TestInSet(t *testing.T) {
	flag := dynframe.NewStringColumn("store_and_fwd_flag", 3)
	flag.Set(0, "N")
	flag.Set(1, "Y")
	pay := dynframe.NewIntColumn("payment_type", 3)
	pay.Set(0, 1)
	pay.Set(2, 5)
	f, err := dynframe.FromColumns(flag, pay)
	require.NoError(t, err)
	ctx := context.Background()

	out, err := NewInSet("store_and_fwd_flag", []string{"Y", "N"}).Apply(ctx, f)
	require.NoError(t, err)
	assert.Same(t, f, out)

	_, err = NewInSet("payment_type", []string{"1", "2", "3", "4"}).Apply(ctx, f)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRange(t *testing.T) {
	fare := dynframe.NewFloatColumn("fare_amount", 2)
	fare.Set(0, 5)
	fare.Set(1, -3)
	f, err := dynframe.FromColumns(fare)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = (&Range{Column: "fare_amount", Min: ptr(0)}).Apply(ctx, f)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = (&Range{Column: "fare_amount", Min: ptr(-10), Max: ptr(10)}).Apply(ctx, f)
	assert.NoError(t, err)
}
