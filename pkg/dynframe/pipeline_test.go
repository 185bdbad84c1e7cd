package dynframe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	df "github.com/wdm0006/dynframe/pkg/dynframe"
)

func addConst(name string, v int64) df.Transform {
	return df.TransformFunc{StepName: name, Fn: func(ctx context.Context, f *df.Frame) (*df.Frame, error) {
		c := df.NewIntColumn(name, f.Rows())
		for i := 0; i < f.Rows(); i++ {
			c.Set(i, v)
		}
		return f.WithColumn(c)
	}}
}

func TestPipelineRunsStepsInOrder(t *testing.T) {
	f := df.Empty(2)
	var seen []string
	p := df.NewPipeline().Add(addConst("a", 1)).Add(addConst("b", 2)).
		Observe(func(step string, in, out *df.Frame, _ time.Duration) {
			seen = append(seen, step)
			assert.Equal(t, in.Cols()+1, out.Cols())
		})
	out, err := p.Run(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, []string{"a", "b"}, p.Steps())
	assert.Equal(t, int64(2), out.Value(1, "b"))
	assert.Equal(t, 0, f.Cols())
}

func TestPipelineWrapsStepError(t *testing.T) {
	boom := errors.New("boom")
	p := df.NewPipeline().Add(df.TransformFunc{StepName: "explode", Fn: func(context.Context, *df.Frame) (*df.Frame, error) {
		return nil, boom
	}})
	_, err := p.Run(context.Background(), df.Empty(0))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "explode")
}

func TestPipelineStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := df.NewPipeline().Add(addConst("a", 1)).Run(ctx, df.Empty(1))
	assert.ErrorIs(t, err, context.Canceled)
}
