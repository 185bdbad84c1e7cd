package dynframe

import (
	"encoding/json"
	"sort"
)

// Observer accumulates the kinds seen for one column while sampling. Objects
// are tracked per key so nested fields get their own kinds.
type Observer struct {
	counts map[Kind]int
	fields map[string]*Observer
}

func NewObserver() *Observer { return &Observer{counts: map[Kind]int{}} }

// ObserveText records the narrowest kind that parses raw. Empty cells are ignored.
func (o *Observer) ObserveText(raw string) {
	if k := GuessText(raw); k != KindInvalid {
		o.counts[k]++
	}
}

// ObserveValue records the kind of a decoded value (JSON, Parquet).
func (o *Observer) ObserveValue(v any) {
	switch t := v.(type) {
	case nil:
		return
	case string:
		// JSON strings stay strings; numbers inside quotes are not reinterpreted.
		if t == "" {
			return
		}
		o.counts[KindString]++
	case json.Number:
		o.counts[KindOf(t)]++
	case map[string]any:
		o.counts[KindStruct]++
		if o.fields == nil {
			o.fields = map[string]*Observer{}
		}
		for k, fv := range t {
			fo, ok := o.fields[k]
			if !ok {
				fo = NewObserver()
				o.fields[k] = fo
			}
			fo.ObserveValue(fv)
		}
	default:
		if k := KindOf(v); k != KindInvalid {
			o.counts[k]++
		} else {
			o.counts[KindString]++
		}
	}
}

// Kinds returns the observed kinds after widening long+double to double.
// Objects seen next to scalars count as strings; they are stored JSON encoded.
func (o *Observer) Kinds() []Kind {
	seen := map[Kind]bool{}
	for k, n := range o.counts {
		if n > 0 {
			seen[k] = true
		}
	}
	return widen(seen, len(o.fields) > 0)
}

func widen(seen map[Kind]bool, hasFields bool) []Kind {
	if seen[KindStruct] && (len(seen) > 1 || !hasFields) {
		delete(seen, KindStruct)
		seen[KindString] = true
	}
	if seen[KindInt] && seen[KindFloat] {
		delete(seen, KindInt)
	}
	kinds := make([]Kind, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Column returns the inferred schema: a scalar when one kind was seen, string
// when nothing was, a struct for objects and a choice otherwise. Struct
// fields are sorted by name.
func (o *Observer) Column(name string) ColumnSchema {
	kinds := o.Kinds()
	if len(kinds) == 1 && kinds[0] == KindStruct {
		cs := ColumnSchema{Name: name, Type: KindStruct, Nullable: true}
		keys := make([]string, 0, len(o.fields))
		for k := range o.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cs.Fields = append(cs.Fields, o.fields[k].Column(k))
		}
		return cs
	}
	return ScalarColumn(name, kinds)
}

// ScalarColumn builds a column over non-struct kinds: string for none, the
// kind itself for one and a choice for several.
func ScalarColumn(name string, kinds []Kind) ColumnSchema {
	switch len(kinds) {
	case 0:
		return ColumnSchema{Name: name, Type: KindString, Nullable: true}
	case 1:
		return ColumnSchema{Name: name, Type: kinds[0], Nullable: true}
	}
	cs := ColumnSchema{Name: name, Type: KindChoice, Nullable: true}
	for _, k := range kinds {
		cs.Fields = append(cs.Fields, ColumnSchema{Name: k.String(), Type: k, Nullable: true})
	}
	return cs
}

// WidenKinds applies the observer's widening rules to a kind set. hasFields
// reports whether the struct kind, if present, has any fields.
func WidenKinds(seen map[Kind]bool, hasFields bool) []Kind {
	cp := make(map[Kind]bool, len(seen))
	for k, v := range seen {
		if v {
			cp[k] = true
		}
	}
	return widen(cp, hasFields)
}
