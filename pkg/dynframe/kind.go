package dynframe

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind enumerates supported logical types.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
	KindStruct
	KindChoice
)

var ErrUnknownType = errors.New("unknown type")

// String returns the catalog name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindInt:
		return "long"
	case KindFloat:
		return "double"
	case KindString:
		return "string"
	case KindTime:
		return "timestamp"
	case KindStruct:
		return "struct"
	case KindChoice:
		return "choice"
	default:
		return "invalid"
	}
}

// ParseKind maps a scalar type name (and common SQL/Hive aliases) to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bool", "boolean":
		return KindBool, nil
	case "long", "int", "integer", "bigint", "smallint", "tinyint", "short", "byte":
		return KindInt, nil
	case "double", "float", "decimal", "real", "numeric":
		return KindFloat, nil
	case "string", "varchar", "char", "text":
		return KindString, nil
	case "timestamp", "datetime", "date":
		return KindTime, nil
	default:
		return KindInvalid, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
}

// TypeString renders a column type the way the catalog stores it, e.g.
// "long", "choice<long,string>" or "struct<long:long,string:string>".
func TypeString(cs ColumnSchema) string {
	switch cs.Type {
	case KindChoice:
		parts := make([]string, len(cs.Fields))
		for i, f := range cs.Fields {
			parts[i] = f.Type.String()
		}
		return "choice<" + strings.Join(parts, ",") + ">"
	case KindStruct:
		parts := make([]string, len(cs.Fields))
		for i, f := range cs.Fields {
			parts[i] = f.Name + ":" + TypeString(f)
		}
		return "struct<" + strings.Join(parts, ",") + ">"
	default:
		return cs.Type.String()
	}
}

// ParseType is the inverse of TypeString.
func ParseType(name, typ string) (ColumnSchema, error) {
	typ = strings.TrimSpace(typ)
	lower := strings.ToLower(typ)
	switch {
	case strings.HasPrefix(lower, "choice<") && strings.HasSuffix(lower, ">"):
		inner := typ[len("choice<") : len(typ)-1]
		cs := ColumnSchema{Name: name, Type: KindChoice, Nullable: true}
		for _, part := range splitTop(inner) {
			k, err := ParseKind(part)
			if err != nil {
				return ColumnSchema{}, err
			}
			cs.Fields = append(cs.Fields, ColumnSchema{Name: k.String(), Type: k, Nullable: true})
		}
		if len(cs.Fields) < 2 {
			return ColumnSchema{}, fmt.Errorf("%w: choice needs two kinds: %q", ErrUnknownType, typ)
		}
		return cs, nil
	case strings.HasPrefix(lower, "struct<") && strings.HasSuffix(lower, ">"):
		inner := typ[len("struct<") : len(typ)-1]
		cs := ColumnSchema{Name: name, Type: KindStruct, Nullable: true}
		for _, part := range splitTop(inner) {
			fname, ftyp, ok := strings.Cut(part, ":")
			if !ok {
				return ColumnSchema{}, fmt.Errorf("%w: struct field %q", ErrUnknownType, part)
			}
			f, err := ParseType(strings.TrimSpace(fname), ftyp)
			if err != nil {
				return ColumnSchema{}, err
			}
			cs.Fields = append(cs.Fields, f)
		}
		return cs, nil
	default:
		k, err := ParseKind(typ)
		if err != nil {
			return ColumnSchema{}, err
		}
		return ColumnSchema{Name: name, Type: k, Nullable: true}, nil
	}
}

// splitTop splits on commas that are not nested inside angle brackets.
func splitTop(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// KindOf reports the Kind a Go value would be stored as.
func KindOf(v any) Kind {
	switch t := v.(type) {
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return KindInt
		}
		return KindFloat
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return KindInt
	case float32, float64:
		return KindFloat
	case string:
		return KindString
	case time.Time:
		return KindTime
	case map[string]any:
		return KindStruct
	default:
		return KindInvalid
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// textPriority is the order used when guessing the kind of a raw text value.
var textPriority = []Kind{KindInt, KindFloat, KindBool, KindTime, KindString}

// ParseText parses a raw text cell as kind k. Empty cells never parse.
func ParseText(k Kind, raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	switch k {
	case KindInt:
		x, err := strconv.ParseInt(s, 10, 64)
		return x, err == nil
	case KindFloat:
		x, err := strconv.ParseFloat(s, 64)
		return x, err == nil
	case KindBool:
		x, err := strconv.ParseBool(strings.ToLower(s))
		return x, err == nil
	case KindTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return nil, false
	case KindString:
		return s, true
	default:
		return nil, false
	}
}

// GuessText returns the narrowest kind that parses raw, or KindInvalid for an
// empty cell.
func GuessText(raw string) Kind {
	for _, k := range textPriority {
		if _, ok := ParseText(k, raw); ok {
			return k
		}
	}
	return KindInvalid
}

// Convert casts v to kind k. It reports false when the value cannot be
// represented; nil converts to nil.
func Convert(v any, k Kind) (any, bool) {
	if v == nil {
		return nil, true
	}
	if n, ok := v.(json.Number); ok {
		x, ok := NumberValue(n)
		if !ok {
			return nil, false
		}
		v = x
	}
	switch k {
	case KindInt:
		switch t := v.(type) {
		case int:
			return int64(t), true
		case int8:
			return int64(t), true
		case int16:
			return int64(t), true
		case int32:
			return int64(t), true
		case int64:
			return t, true
		case uint8:
			return int64(t), true
		case uint16:
			return int64(t), true
		case uint32:
			return int64(t), true
		case float32:
			return floatToInt(float64(t))
		case float64:
			return floatToInt(t)
		case bool:
			if t {
				return int64(1), true
			}
			return int64(0), true
		case string:
			if x, ok := ParseText(KindInt, t); ok {
				return x, true
			}
			if x, ok := ParseText(KindFloat, t); ok {
				return floatToInt(x.(float64))
			}
		}
	case KindFloat:
		switch t := v.(type) {
		case float32:
			return float64(t), true
		case float64:
			return t, true
		case bool:
			if t {
				return 1.0, true
			}
			return 0.0, true
		case string:
			return ParseText(KindFloat, t)
		default:
			if x, ok := Convert(v, KindInt); ok && KindOf(v) == KindInt {
				return float64(x.(int64)), true
			}
		}
	case KindString:
		switch t := v.(type) {
		case string:
			return t, true
		case bool:
			return strconv.FormatBool(t), true
		case float32:
			return strconv.FormatFloat(float64(t), 'f', -1, 32), true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case time.Time:
			return t.Format(time.RFC3339Nano), true
		case map[string]any:
			b, err := json.Marshal(t)
			return string(b), err == nil
		default:
			if x, ok := Convert(v, KindInt); ok && KindOf(v) == KindInt {
				return strconv.FormatInt(x.(int64), 10), true
			}
		}
	case KindBool:
		switch t := v.(type) {
		case bool:
			return t, true
		case string:
			return ParseText(KindBool, t)
		case float32:
			return t != 0, true
		case float64:
			return t != 0, true
		default:
			if x, ok := Convert(v, KindInt); ok && KindOf(v) == KindInt {
				return x.(int64) != 0, true
			}
		}
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return t, true
		case string:
			return ParseText(KindTime, t)
		case int64:
			return time.Unix(t, 0).UTC(), true
		}
	}
	return nil, false
}

// NumberValue converts a decoded JSON number to int64 when it is integral and
// fits, and to float64 otherwise.
func NumberValue(n json.Number) (any, bool) {
	if x, err := n.Int64(); err == nil {
		return x, true
	}
	x, err := n.Float64()
	if err != nil {
		return nil, false
	}
	return x, true
}

func floatToInt(f float64) (any, bool) {
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, false
	}
	return int64(f), true
}
