// Package steps builds cleaning transforms from configuration. A step is a
// single-key object naming the operation:
//
//	steps:
//	  - trim: {column: store_and_fwd_flag}
//	  - cap_range: {column: trip_distance, min: 0, max: 500}
package steps

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wdm0006/dynframe/pkg/dynframe"
	imp "github.com/wdm0006/dynframe/pkg/transform/impute"
	outl "github.com/wdm0006/dynframe/pkg/transform/outliers"
	std "github.com/wdm0006/dynframe/pkg/transform/standardize"
	val "github.com/wdm0006/dynframe/pkg/transform/validate"
)

var ErrUnknownStep = errors.New("unknown step")

// Args is the union of every step's parameters.
type Args struct {
	Column  string            `json:"column" yaml:"column" toml:"column"`
	Value   any               `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
	Pattern string            `json:"pattern,omitempty" yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	Replace string            `json:"replace,omitempty" yaml:"replace,omitempty" toml:"replace,omitempty"`
	Map     map[string]string `json:"map,omitempty" yaml:"map,omitempty" toml:"map,omitempty"`
	Values  []string          `json:"values,omitempty" yaml:"values,omitempty" toml:"values,omitempty"`
	Min     *float64          `json:"min,omitempty" yaml:"min,omitempty" toml:"min,omitempty"`
	Max     *float64          `json:"max,omitempty" yaml:"max,omitempty" toml:"max,omitempty"`
}

// Step maps one operation name to its arguments.
type Step map[string]Args

type builder func(Args) (dynframe.Transform, error)

var registry = map[string]builder{
	"trim":  func(a Args) (dynframe.Transform, error) { return &std.Trim{Column: a.Column}, nil },
	"lower": func(a Args) (dynframe.Transform, error) { return &std.Lower{Column: a.Column}, nil },
	"regex_replace": func(a Args) (dynframe.Transform, error) {
		return std.NewRegexReplace(a.Column, a.Pattern, a.Replace)
	},
	"map_values": func(a Args) (dynframe.Transform, error) {
		return &std.MapValues{Column: a.Column, Map: a.Map}, nil
	},
	"impute_constant": func(a Args) (dynframe.Transform, error) {
		if a.Value == nil {
			return nil, errors.New("value is required")
		}
		return &imp.Constant{Column: a.Column, Value: a.Value}, nil
	},
	"impute_mean":   func(a Args) (dynframe.Transform, error) { return &imp.Mean{Column: a.Column}, nil },
	"impute_median": func(a Args) (dynframe.Transform, error) { return &imp.Median{Column: a.Column}, nil },
	"impute_mode":   func(a Args) (dynframe.Transform, error) { return &imp.Mode{Column: a.Column}, nil },
	"validate_in": func(a Args) (dynframe.Transform, error) {
		return val.NewInSet(a.Column, a.Values), nil
	},
	"validate_range": func(a Args) (dynframe.Transform, error) {
		return &val.Range{Column: a.Column, Min: a.Min, Max: a.Max}, nil
	},
	"cap_range": func(a Args) (dynframe.Transform, error) {
		return &outl.Cap{Column: a.Column, Min: a.Min, Max: a.Max}, nil
	},
}

// Names lists the supported operations.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build converts configured steps to transforms in order.
func Build(steps []Step) ([]dynframe.Transform, error) {
	var out []dynframe.Transform
	for i, s := range steps {
		ops := make([]string, 0, len(s))
		for op := range s {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			b, ok := registry[op]
			if !ok {
				return nil, fmt.Errorf("step %d: %w %q", i, ErrUnknownStep, op)
			}
			a := s[op]
			if a.Column == "" {
				return nil, fmt.Errorf("step %d (%s): column is required", i, op)
			}
			t, err := b(a)
			if err != nil {
				return nil, fmt.Errorf("step %d (%s): %w", i, op, err)
			}
			out = append(out, t)
		}
	}
	return out, nil
}
