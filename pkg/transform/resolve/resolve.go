// Package resolve removes choice columns from a frame.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type actionKind int

const (
	makeStruct actionKind = iota
	makeCols
	castTo
	project
)

// Action is a parsed resolution action.
type Action struct {
	kind actionKind
	typ  dynframe.Kind
}

// ParseAction accepts "make_struct", "make_cols", "cast:<type>" and
// "project:<type>".
func ParseAction(s string) (Action, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	switch strings.ToLower(name) {
	case "", "make_struct":
		return Action{kind: makeStruct}, nil
	case "make_cols":
		return Action{kind: makeCols}, nil
	case "cast", "project":
		k, err := dynframe.ParseKind(arg)
		if err != nil {
			return Action{}, fmt.Errorf("action %q: %w", s, err)
		}
		if strings.EqualFold(name, "cast") {
			return Action{kind: castTo, typ: k}, nil
		}
		return Action{kind: project, typ: k}, nil
	}
	return Action{}, fmt.Errorf("unknown resolve action %q", s)
}

func (a Action) String() string {
	switch a.kind {
	case makeCols:
		return "make_cols"
	case castTo:
		return "cast:" + a.typ.String()
	case project:
		return "project:" + a.typ.String()
	default:
		return "make_struct"
	}
}

// Spec overrides the action for one column. Path is the column name, with
// dots addressing struct fields.
type Spec struct {
	Path   string `json:"path" yaml:"path" toml:"path"`
	Action string `json:"action" yaml:"action" toml:"action"`
}

// ResolveChoice rewrites every choice column. Columns without a Spec use
// Choice, which defaults to make_struct: the column becomes a struct with one
// field per observed kind, named by the kind, holding the value only in the
// matching field. A null choice becomes a null struct.
type ResolveChoice struct {
	Choice string
	Specs  []Spec
}

func (t *ResolveChoice) Name() string { return "resolve_choice" }

func (t *ResolveChoice) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	def, err := ParseAction(t.Choice)
	if err != nil {
		return nil, err
	}
	specs := make(map[string]Action, len(t.Specs))
	for _, s := range t.Specs {
		a, err := ParseAction(s.Action)
		if err != nil {
			return nil, fmt.Errorf("spec %s: %w", s.Path, err)
		}
		if !hasPath(f.Schema().Columns, s.Path) {
			return nil, fmt.Errorf("spec %s: %w", s.Path, dynframe.ErrUnknownColumn)
		}
		specs[s.Path] = a
	}
	r := resolver{def: def, specs: specs}
	var cols []dynframe.Column
	for _, c := range f.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := r.column(c, c.Name())
		if err != nil {
			return nil, err
		}
		cols = append(cols, out...)
	}
	if len(cols) == 0 {
		return dynframe.Empty(f.Rows()), nil
	}
	return dynframe.FromColumns(cols...)
}

func hasPath(cols []dynframe.ColumnSchema, path string) bool {
	head, rest, nested := strings.Cut(path, ".")
	for _, cs := range cols {
		if cs.Name != head {
			continue
		}
		if !nested {
			return true
		}
		return cs.Type == dynframe.KindStruct && hasPath(cs.Fields, rest)
	}
	return false
}

type resolver struct {
	def   Action
	specs map[string]Action
}

// column returns the replacement for c; make_cols may return several columns.
func (r resolver) column(c dynframe.Column, path string) ([]dynframe.Column, error) {
	switch col := c.(type) {
	case *dynframe.StructColumn:
		var fields []dynframe.Column
		changed := false
		for _, fc := range col.Fields() {
			out, err := r.column(fc, path+"."+fc.Name())
			if err != nil {
				return nil, err
			}
			if len(out) != 1 || out[0] != fc {
				changed = true
			}
			fields = append(fields, out...)
		}
		if !changed {
			return []dynframe.Column{c}, nil
		}
		nulls := make([]bool, col.Len())
		for i := range nulls {
			nulls[i] = col.IsNull(i)
		}
		return []dynframe.Column{dynframe.NewStructColumn(col.Name(), fields, nulls)}, nil
	case *dynframe.ChoiceColumn:
		a, ok := r.specs[path]
		if !ok {
			a = r.def
		}
		return apply(col, a)
	default:
		return []dynframe.Column{c}, nil
	}
}

func apply(c *dynframe.ChoiceColumn, a Action) ([]dynframe.Column, error) {
	switch a.kind {
	case makeCols:
		out := make([]dynframe.Column, 0, len(c.Branches()))
		for _, b := range c.Branches() {
			out = append(out, b.Renamed(c.Name()+"_"+b.Kind().String()))
		}
		return out, nil
	case project:
		if b, ok := c.Branch(a.typ); ok {
			return []dynframe.Column{b.Renamed(c.Name())}, nil
		}
		return []dynframe.Column{dynframe.NewColumn(dynframe.ColumnSchema{Name: c.Name(), Type: a.typ, Nullable: true}, c.Len())}, nil
	case castTo:
		return castChoice(c, a.typ)
	default:
		return []dynframe.Column{toStruct(c)}, nil
	}
}

func toStruct(c *dynframe.ChoiceColumn) *dynframe.StructColumn {
	nulls := make([]bool, c.Len())
	for i := range nulls {
		nulls[i] = c.IsNull(i)
	}
	return dynframe.NewStructColumn(c.Name(), c.Branches(), nulls)
}

func castChoice(c *dynframe.ChoiceColumn, k dynframe.Kind) ([]dynframe.Column, error) {
	out := dynframe.NewColumn(dynframe.ColumnSchema{Name: c.Name(), Type: k, Nullable: true}, c.Len())
	f, err := dynframe.FromColumns(out)
	if err != nil {
		return nil, err
	}
	for i := 0; i < c.Len(); i++ {
		v, ok := dynframe.Convert(c.Value(i), k)
		if !ok || v == nil {
			continue
		}
		if err := f.SetCell(i, c.Name(), v); err != nil {
			return nil, err
		}
	}
	return []dynframe.Column{out}, nil
}
