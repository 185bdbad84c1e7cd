package dynframe

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ChunkSource yields frames in chunks until io.EOF.
type ChunkSource interface {
	Next() (*Frame, error)
}

// ChunkSink consumes frames, typically writing them out.
type ChunkSink interface {
	Write(*Frame) error
	Close() error
}

// RunStream pulls chunks from src, applies the pipeline, and writes to sink.
// Only row-local pipelines are safe to stream; dataset-wide steps such as
// null-field pruning need Collect first.
func RunStream(ctx context.Context, p *Pipeline, src ChunkSource, sink ChunkSink) error {
	defer func() { _ = sink.Close() }()
	for {
		f, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		out, err := p.Run(ctx, f)
		if err != nil {
			return err
		}
		if err := sink.Write(out); err != nil {
			return err
		}
	}
}

// Collect drains src into a single frame with the schema s.
func Collect(ctx context.Context, s Schema, src ChunkSource) (*Frame, error) {
	frames := []*Frame{NewFrame(s)}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return Concat(frames...)
}

// Concat appends frames that share the first frame's schema.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return Empty(0), nil
	}
	schema := frames[0].Schema()
	out := NewFrame(schema)
	for _, f := range frames {
		if err := sameSchema(schema, f.Schema()); err != nil {
			return nil, err
		}
		base := out.Rows()
		for r := 0; r < f.Rows(); r++ {
			out.AppendNullRow()
			for _, c := range f.Columns() {
				if err := out.SetCell(base+r, c.Name(), c.Value(r)); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func sameSchema(a, b Schema) error {
	if len(a.Columns) != len(b.Columns) {
		return fmt.Errorf("schema mismatch: %d columns vs %d", len(a.Columns), len(b.Columns))
	}
	for i := range a.Columns {
		if a.Columns[i].Name != b.Columns[i].Name || TypeString(a.Columns[i]) != TypeString(b.Columns[i]) {
			return fmt.Errorf("schema mismatch at column %d: %s %s vs %s %s", i,
				a.Columns[i].Name, TypeString(a.Columns[i]), b.Columns[i].Name, TypeString(b.Columns[i]))
		}
	}
	return nil
}
