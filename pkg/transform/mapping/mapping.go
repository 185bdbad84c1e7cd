// Package mapping renames, projects and casts frame columns.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

var (
	ErrUnknownType = dynframe.ErrUnknownType
	ErrCast        = errors.New("cast failed")
)

// Mapping moves column Source (read as SourceType) to Target, cast to TargetType.
type Mapping struct {
	Source     string `json:"source" yaml:"source" toml:"source"`
	SourceType string `json:"source_type" yaml:"source_type" toml:"source_type"`
	Target     string `json:"target" yaml:"target" toml:"target"`
	TargetType string `json:"target_type" yaml:"target_type" toml:"target_type"`
}

func (m Mapping) String() string {
	return fmt.Sprintf("(%s, %s, %s, %s)", m.Source, m.SourceType, m.Target, m.TargetType)
}

// Validate checks both type names and that the names are set.
func (m Mapping) Validate() error {
	if m.Source == "" || m.Target == "" {
		return fmt.Errorf("mapping %s: empty column name", m)
	}
	if _, err := dynframe.ParseType(m.Source, m.SourceType); err != nil {
		return fmt.Errorf("mapping %s: source: %w", m, err)
	}
	if _, err := dynframe.ParseType(m.Target, m.TargetType); err != nil {
		return fmt.Errorf("mapping %s: target: %w", m, err)
	}
	return nil
}

// ParseMappings builds mappings from (source, source type, target, target
// type) tuples.
func ParseMappings(tuples [][4]string) ([]Mapping, error) {
	out := make([]Mapping, 0, len(tuples))
	for _, t := range tuples {
		m := Mapping{Source: t[0], SourceType: t[1], Target: t[2], TargetType: t[3]}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := checkTargets(out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkTargets(ms []Mapping) error {
	seen := make(map[string]struct{}, len(ms))
	for _, m := range ms {
		if _, dup := seen[m.Target]; dup {
			return fmt.Errorf("duplicate target column: %s", m.Target)
		}
		seen[m.Target] = struct{}{}
	}
	return nil
}

// CastPolicy decides what happens to a value that cannot be cast.
type CastPolicy int

const (
	// CastNull stores null.
	CastNull CastPolicy = iota
	// CastFail aborts the transform with ErrCast.
	CastFail
	// CastKeep keeps the original value; the target becomes a choice column.
	CastKeep
)

// ParseCastPolicy accepts "null", "fail" and "keep".
func ParseCastPolicy(s string) (CastPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null":
		return CastNull, nil
	case "fail", "error":
		return CastFail, nil
	case "keep", "choice":
		return CastKeep, nil
	}
	return CastNull, fmt.Errorf("unknown cast policy %q", s)
}

// ApplyMapping produces a frame whose schema is exactly the mapping targets,
// in order. Unlisted columns are dropped and a missing source yields an
// all-null column of the target type.
type ApplyMapping struct {
	Mappings []Mapping
	Policy   CastPolicy
	// OnCastFailure, when set, is called once per target with the number of
	// values that could not be cast.
	OnCastFailure func(target string, failed int)
}

func (t *ApplyMapping) Name() string { return "apply_mapping" }

func (t *ApplyMapping) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	if err := checkTargets(t.Mappings); err != nil {
		return nil, err
	}
	cols := make([]dynframe.Column, 0, len(t.Mappings))
	for _, m := range t.Mappings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target, err := dynframe.ParseType(m.Target, m.TargetType)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", m, err)
		}
		if _, err := dynframe.ParseType(m.Source, m.SourceType); err != nil {
			return nil, fmt.Errorf("mapping %s: %w", m, err)
		}
		src, ok := lookup(f, m.Source)
		if !ok {
			cols = append(cols, dynframe.NewColumn(target, f.Rows()))
			continue
		}
		if passThroughChoice(src, m) {
			cols = append(cols, src.Renamed(m.Target))
			continue
		}
		col, failed, err := t.cast(src, target)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", m, err)
		}
		if failed > 0 && t.OnCastFailure != nil {
			t.OnCastFailure(m.Target, failed)
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return dynframe.Empty(f.Rows()), nil
	}
	return dynframe.FromColumns(cols...)
}

// lookup matches exactly first, then case-insensitively; catalog column names
// are lower case while source headers often are not.
func lookup(f *dynframe.Frame, name string) (dynframe.Column, bool) {
	if c, ok := f.ColumnByName(name); ok {
		return c, true
	}
	for _, c := range f.Columns() {
		if strings.EqualFold(c.Name(), name) {
			return c, true
		}
	}
	return nil, false
}

// passThroughChoice reports an identity-typed mapping over a choice column.
// Such columns keep every observed kind so that choice resolution can run
// afterwards.
func passThroughChoice(src dynframe.Column, m Mapping) bool {
	if src.Kind() != dynframe.KindChoice {
		return false
	}
	st, err1 := dynframe.ParseType(m.Source, m.SourceType)
	tt, err2 := dynframe.ParseType(m.Target, m.TargetType)
	if err1 != nil || err2 != nil {
		return false
	}
	return tt.Type != dynframe.KindChoice && st.Type == tt.Type
}

func (t *ApplyMapping) cast(src dynframe.Column, target dynframe.ColumnSchema) (dynframe.Column, int, error) {
	srcSchema := src.Schema()
	srcSchema.Name = target.Name
	if dynframe.TypeString(srcSchema) == dynframe.TypeString(target) {
		return src.Renamed(target.Name), 0, nil
	}
	if target.Type == dynframe.KindStruct {
		sc, ok := src.(*dynframe.StructColumn)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s to %s", ErrCast, dynframe.TypeString(src.Schema()), dynframe.TypeString(target))
		}
		return t.castStruct(sc, target)
	}

	n := src.Len()
	converted := make([]any, n)
	var failedRows []int
	for i := 0; i < n; i++ {
		v := src.Value(i)
		if v == nil {
			continue
		}
		cv, ok := castValue(v, target)
		if !ok {
			if t.Policy == CastFail {
				return nil, 0, fmt.Errorf("%w: row %d value %v to %s", ErrCast, i, v, dynframe.TypeString(target))
			}
			failedRows = append(failedRows, i)
			continue
		}
		converted[i] = cv
	}

	if t.Policy == CastKeep && len(failedRows) > 0 && target.Type != dynframe.KindChoice {
		target = keepSchema(target, src, failedRows)
		for _, i := range failedRows {
			converted[i] = keptValue(src.Value(i))
		}
	}

	out := dynframe.NewColumn(target, n)
	frame, err := dynframe.FromColumns(out)
	if err != nil {
		return nil, 0, err
	}
	for i, v := range converted {
		if v == nil {
			continue
		}
		if err := frame.SetCell(i, target.Name, v); err != nil {
			return nil, 0, err
		}
	}
	return out, len(failedRows), nil
}

// castStruct casts field by field. Target fields the source lacks are null
// and source fields the target does not name are dropped.
func (t *ApplyMapping) castStruct(src *dynframe.StructColumn, target dynframe.ColumnSchema) (dynframe.Column, int, error) {
	n := src.Len()
	fields := make([]dynframe.Column, 0, len(target.Fields))
	failed := 0
	for _, fs := range target.Fields {
		fc, ok := src.Field(fs.Name)
		if !ok {
			fields = append(fields, dynframe.NewColumn(fs, n))
			continue
		}
		out, k, err := t.cast(fc, fs)
		if err != nil {
			return nil, 0, fmt.Errorf("field %s: %w", fs.Name, err)
		}
		fields = append(fields, out)
		failed += k
	}
	nulls := make([]bool, n)
	for i := range nulls {
		nulls[i] = src.IsNull(i)
	}
	return dynframe.NewStructColumn(target.Name, fields, nulls), failed, nil
}

func castValue(v any, target dynframe.ColumnSchema) (any, bool) {
	if target.Type == dynframe.KindChoice {
		for _, f := range target.Fields {
			if dynframe.KindOf(v) == f.Type {
				return v, true
			}
		}
		for _, f := range target.Fields {
			if cv, ok := dynframe.Convert(v, f.Type); ok {
				return cv, true
			}
		}
		return nil, false
	}
	return dynframe.Convert(v, target.Type)
}

func keptValue(v any) any {
	if _, ok := v.(map[string]any); ok {
		s, _ := dynframe.Convert(v, dynframe.KindString)
		return s
	}
	return v
}

// keepSchema widens target into a choice over the target kind and the kinds
// of the values that failed to cast.
func keepSchema(target dynframe.ColumnSchema, src dynframe.Column, failed []int) dynframe.ColumnSchema {
	kinds := map[dynframe.Kind]bool{target.Type: true}
	for _, i := range failed {
		k := dynframe.KindOf(keptValue(src.Value(i)))
		if k == dynframe.KindInvalid {
			k = dynframe.KindString
		}
		kinds[k] = true
	}
	sorted := make([]dynframe.Kind, 0, len(kinds))
	for k := range kinds {
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	cs := dynframe.ColumnSchema{Name: target.Name, Type: dynframe.KindChoice, Nullable: true}
	for _, k := range sorted {
		cs.Fields = append(cs.Fields, dynframe.ColumnSchema{Name: k.String(), Type: k, Nullable: true})
	}
	return cs
}
