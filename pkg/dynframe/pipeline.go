package dynframe

import (
	"context"
	"fmt"
	"time"
)

// Transform is a step applied to a Frame. Implementations must not mutate
// their input; they return a new Frame.
type Transform interface {
	Name() string
	Apply(ctx context.Context, f *Frame) (*Frame, error)
}

// StepObserver is notified after each successful step.
type StepObserver func(step string, in, out *Frame, elapsed time.Duration)

// Pipeline composes a sequence of Transforms.
type Pipeline struct {
	steps     []Transform
	observers []StepObserver
}

func NewPipeline() *Pipeline { return &Pipeline{} }

func (p *Pipeline) Add(t Transform) *Pipeline {
	p.steps = append(p.steps, t)
	return p
}

// Observe registers fn to run after every step.
func (p *Pipeline) Observe(fn StepObserver) *Pipeline {
	p.observers = append(p.observers, fn)
	return p
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, t := range p.steps {
		names[i] = t.Name()
	}
	return names
}

func (p *Pipeline) Run(ctx context.Context, f *Frame) (*Frame, error) {
	cur := f
	for _, t := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		out, err := t.Apply(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name(), err)
		}
		for _, fn := range p.observers {
			fn(t.Name(), cur, out, time.Since(start))
		}
		cur = out
	}
	return cur, nil
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc struct {
	StepName string
	Fn       func(ctx context.Context, f *Frame) (*Frame, error)
}

func (t TransformFunc) Name() string { return t.StepName }
func (t TransformFunc) Apply(ctx context.Context, f *Frame) (*Frame, error) {
	return t.Fn(ctx, f)
}
