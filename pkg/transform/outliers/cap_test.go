package outliers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

func TestCap(t *testing.T) {
	dist := dynframe.NewFloatColumn("trip_distance", 3)
	dist.Set(0, -1)
	dist.Set(1, 250)
	count := dynframe.NewIntColumn("passenger_count", 3)
	count.Set(0, 12)
	f, err := dynframe.FromColumns(dist, count)
	require.NoError(t, err)
	lo, hi := 0.0, 100.0
	maxPassengers := 9.0

	out, err := (&Cap{Column: "trip_distance", Min: &lo, Max: &hi}).Apply(context.Background(), f)
	require.NoError(t, err)
	out, err = (&Cap{Column: "passenger_count", Max: &maxPassengers}).Apply(context.Background(), out)
	require.NoError(t, err)

	assert.Equal(t, 0.0, out.Value(0, "trip_distance"))
	assert.Equal(t, 100.0, out.Value(1, "trip_distance"))
	assert.Nil(t, out.Value(2, "trip_distance"))
	assert.Equal(t, int64(9), out.Value(0, "passenger_count"))
	assert.Equal(t, -1.0, f.Value(0, "trip_distance"))
}
