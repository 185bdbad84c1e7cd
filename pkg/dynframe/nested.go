package dynframe

import "fmt"

// StructColumn holds named child columns of equal length plus a row-level
// null mask. A null struct row has every child null as well.
type StructColumn struct {
	name   string
	fields []Column
	index  map[string]int
	nulls  []bool
}

// NewStructColumn builds a struct over fields. nulls may be nil, in which case
// a row is null only when every field is null.
func NewStructColumn(name string, fields []Column, nulls []bool) *StructColumn {
	n := 0
	if len(fields) > 0 {
		n = fields[0].Len()
	}
	if nulls == nil {
		nulls = make([]bool, n)
		for i := 0; i < n; i++ {
			nulls[i] = true
			for _, f := range fields {
				if !f.IsNull(i) {
					nulls[i] = false
					break
				}
			}
		}
	}
	c := &StructColumn{name: name, fields: fields, index: make(map[string]int, len(fields)), nulls: nulls}
	for i, f := range fields {
		c.index[f.Name()] = i
	}
	return c
}

func (c *StructColumn) Name() string      { return c.name }
func (c *StructColumn) Kind() Kind        { return KindStruct }
func (c *StructColumn) Len() int          { return len(c.nulls) }
func (c *StructColumn) IsNull(i int) bool { return c.nulls[i] }
func (c *StructColumn) Fields() []Column  { return c.fields }

func (c *StructColumn) SetNull(i int) {
	c.nulls[i] = true
	for _, f := range c.fields {
		f.SetNull(i)
	}
}

func (c *StructColumn) AppendNull() {
	c.nulls = append(c.nulls, true)
	for _, f := range c.fields {
		f.AppendNull()
	}
}

// Field returns the named child column.
func (c *StructColumn) Field(name string) (Column, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.fields[i], true
}

// Value returns a map of field name to value, or nil for a null row.
func (c *StructColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	m := make(map[string]any, len(c.fields))
	for _, f := range c.fields {
		m[f.Name()] = f.Value(i)
	}
	return m
}

func (c *StructColumn) Schema() ColumnSchema {
	cs := ColumnSchema{Name: c.name, Type: KindStruct, Nullable: true, Fields: make([]ColumnSchema, len(c.fields))}
	for i, f := range c.fields {
		cs.Fields[i] = f.Schema()
	}
	return cs
}

func (c *StructColumn) Clone() Column {
	fields := make([]Column, len(c.fields))
	for i, f := range c.fields {
		fields[i] = f.Clone()
	}
	return NewStructColumn(c.name, fields, append([]bool(nil), c.nulls...))
}

func (c *StructColumn) Renamed(name string) Column {
	return NewStructColumn(name, c.fields, c.nulls)
}

// set replaces row i with m. Keys the struct lacks are ignored and values
// that do not convert to the field kind stay null.
func (c *StructColumn) set(i int, m map[string]any) error {
	for _, f := range c.fields {
		f.SetNull(i)
	}
	for k, v := range m {
		f, ok := c.Field(k)
		if !ok || v == nil {
			continue
		}
		switch fc := f.(type) {
		case *StructColumn:
			if mm, ok := v.(map[string]any); ok {
				_ = fc.set(i, mm)
			}
		case *ChoiceColumn:
			_ = fc.Set(i, v)
		default:
			if cv, ok := Convert(v, f.Kind()); ok {
				_ = setValue(f, i, cv)
			}
		}
	}
	c.nulls[i] = false
	return nil
}

// ChoiceColumn holds values observed with more than one physical kind. Each
// row stores its value in exactly one branch; the other branches are null.
type ChoiceColumn struct {
	name     string
	branches []Column
	tags     []int // branch index per row, -1 when null
}

// NewChoiceColumn creates a choice column of n null rows with one branch per kind.
func NewChoiceColumn(name string, kinds []Kind, n int) *ChoiceColumn {
	c := &ChoiceColumn{name: name, branches: make([]Column, len(kinds)), tags: make([]int, n)}
	for i, k := range kinds {
		c.branches[i] = NewColumn(ColumnSchema{Name: k.String(), Type: k, Nullable: true}, n)
	}
	for i := range c.tags {
		c.tags[i] = -1
	}
	return c
}

func (c *ChoiceColumn) Name() string       { return c.name }
func (c *ChoiceColumn) Kind() Kind         { return KindChoice }
func (c *ChoiceColumn) Len() int           { return len(c.tags) }
func (c *ChoiceColumn) IsNull(i int) bool  { return c.tags[i] < 0 }
func (c *ChoiceColumn) Branches() []Column { return c.branches }

// Tag returns the branch index populated at row i, or -1 for null.
func (c *ChoiceColumn) Tag(i int) int { return c.tags[i] }

// Kinds lists the observed kinds in branch order.
func (c *ChoiceColumn) Kinds() []Kind {
	kinds := make([]Kind, len(c.branches))
	for i, b := range c.branches {
		kinds[i] = b.Kind()
	}
	return kinds
}

// Branch returns the branch holding values of kind k.
func (c *ChoiceColumn) Branch(k Kind) (Column, bool) {
	for _, b := range c.branches {
		if b.Kind() == k {
			return b, true
		}
	}
	return nil, false
}

func (c *ChoiceColumn) SetNull(i int) {
	if t := c.tags[i]; t >= 0 {
		c.branches[t].SetNull(i)
	}
	c.tags[i] = -1
}

func (c *ChoiceColumn) AppendNull() {
	c.tags = append(c.tags, -1)
	for _, b := range c.branches {
		b.AppendNull()
	}
}

func (c *ChoiceColumn) Value(i int) any {
	t := c.tags[i]
	if t < 0 {
		return nil
	}
	return c.branches[t].Value(i)
}

func (c *ChoiceColumn) Schema() ColumnSchema {
	cs := ColumnSchema{Name: c.name, Type: KindChoice, Nullable: true, Fields: make([]ColumnSchema, len(c.branches))}
	for i, b := range c.branches {
		cs.Fields[i] = b.Schema()
	}
	return cs
}

func (c *ChoiceColumn) Clone() Column {
	branches := make([]Column, len(c.branches))
	for i, b := range c.branches {
		branches[i] = b.Clone()
	}
	return &ChoiceColumn{name: c.name, branches: branches, tags: append([]int(nil), c.tags...)}
}

func (c *ChoiceColumn) Renamed(name string) Column {
	return &ChoiceColumn{name: name, branches: c.branches, tags: c.tags}
}

// Set stores v in the branch matching its Go type. Integral floats fall back
// to the long branch and any value falls back to the string branch.
func (c *ChoiceColumn) Set(i int, v any) error {
	if v == nil {
		c.SetNull(i)
		return nil
	}
	k := KindOf(v)
	for _, cand := range fallbackKinds(k, v) {
		for t, b := range c.branches {
			if b.Kind() != cand {
				continue
			}
			cv, ok := Convert(v, cand)
			if !ok {
				continue
			}
			c.SetNull(i)
			if err := setValue(b, i, cv); err != nil {
				return err
			}
			c.tags[i] = t
			return nil
		}
	}
	return fmt.Errorf("column %s has no branch for %T", c.name, v)
}

// SetText parses raw into the first branch that accepts it, trying the
// narrowest kinds first.
func (c *ChoiceColumn) SetText(i int, raw string) bool {
	for _, k := range textPriority {
		if _, ok := c.Branch(k); !ok {
			continue
		}
		v, ok := ParseText(k, raw)
		if !ok {
			continue
		}
		return c.Set(i, v) == nil
	}
	return false
}

func fallbackKinds(k Kind, v any) []Kind {
	switch k {
	case KindFloat:
		if f, _ := v.(float64); f == float64(int64(f)) {
			return []Kind{KindFloat, KindInt, KindString}
		}
		return []Kind{KindFloat, KindString}
	case KindInt:
		return []Kind{KindInt, KindFloat, KindString}
	case KindString:
		return []Kind{KindString}
	default:
		return []Kind{k, KindString}
	}
}
