package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/wdm0006/dynframe/pkg/dynframe"
	"github.com/wdm0006/dynframe/pkg/io/csvio"
	"github.com/wdm0006/dynframe/pkg/io/ioutils"
	"github.com/wdm0006/dynframe/pkg/io/jsonlio"
	"github.com/wdm0006/dynframe/pkg/io/parquetio"
	"github.com/wdm0006/dynframe/pkg/objstore"
)

// NormalizeName maps a raw header or key to a catalog column name: NFC,
// trimmed, lower case, with whitespace runs collapsed to underscores.
func NormalizeName(raw string) string {
	s := norm.NFC.String(strings.TrimPrefix(raw, "\ufeff"))
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), "_")
}

// FormatOf guesses the format from an object key.
func FormatOf(key string) string {
	switch path.Ext(ioutils.StripCompressionExt(key)) {
	case ".csv", ".tsv", ".txt":
		return "csv"
	case ".json", ".jsonl", ".ndjson":
		return "json"
	case ".parquet", ".parq":
		return "parquet"
	}
	return ""
}

func delimiter(opt FormatOptions) rune {
	switch opt.Delimiter {
	case "":
		return 0
	case `\t`, "tab":
		return '\t'
	}
	return []rune(opt.Delimiter)[0]
}

// decodeObject reads one object. With a nil target the schema is inferred from
// up to sample rows; otherwise the result has exactly the target columns.
func decodeObject(ctx context.Context, st objstore.Store, o objstore.Object, format string, opt FormatOptions, target *dynframe.Schema, sample int, log *slog.Logger) (dynframe.Schema, *dynframe.Frame, error) {
	rc, err := st.Open(ctx, o.URI)
	if err != nil {
		return dynframe.Schema{}, nil, err
	}
	var (
		schema dynframe.Schema
		f      *dynframe.Frame
	)
	switch format {
	case "parquet":
		schema, f, err = decodeParquet(rc, sample)
	case "csv", "json":
		var r io.ReadCloser
		if r, err = ioutils.Decompress(rc, o.Key); err != nil {
			return dynframe.Schema{}, nil, err
		}
		defer r.Close()
		if format == "csv" {
			var warn string
			schema, f, warn, err = decodeCSV(r, opt, target != nil, sample)
			if warn != "" {
				log.Warn("malformed csv records", "uri", o.URI, "counts", warn)
			}
		} else {
			schema, f, err = decodeJSON(r, target, sample)
		}
	default:
		_ = rc.Close()
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return dynframe.Schema{}, nil, fmt.Errorf("%s: %w", o.URI, err)
	}
	if target == nil {
		return schema, f, nil
	}
	if f, err = conform(f, *target); err != nil {
		return dynframe.Schema{}, nil, fmt.Errorf("%s: %w", o.URI, err)
	}
	return *target, f, nil
}

// decodeCSV infers column names (and kinds unless asText is set, in which case
// every column is read as string for later conversion).
func decodeCSV(r io.Reader, opt FormatOptions, asText bool, sample int) (dynframe.Schema, *dynframe.Frame, string, error) {
	cr := csvio.NewReader(r, csvio.ReaderOptions{HasHeader: opt.Header, Delimiter: delimiter(opt), SampleRows: sample})
	schema, _, err := cr.InferSchema()
	if err == io.EOF {
		return dynframe.Schema{}, dynframe.Empty(0), "", nil
	}
	if err != nil {
		return dynframe.Schema{}, nil, "", err
	}
	for i := range schema.Columns {
		schema.Columns[i].Name = NormalizeName(schema.Columns[i].Name)
		if asText {
			schema.Columns[i] = dynframe.ColumnSchema{Name: schema.Columns[i].Name, Type: dynframe.KindString, Nullable: true}
		}
	}
	if err := uniqueNames(schema); err != nil {
		return dynframe.Schema{}, nil, "", err
	}
	f, err := cr.ReadAll(schema)
	return schema, f, cr.Warnings(), err
}

func decodeJSON(r io.Reader, target *dynframe.Schema, sample int) (dynframe.Schema, *dynframe.Frame, error) {
	jr := jsonlio.NewReader(r, jsonlio.ReaderOptions{SampleRows: sample, NormalizeKey: NormalizeName})
	if target != nil {
		f, err := jr.ReadAll(*target)
		return *target, f, err
	}
	schema, err := jr.InferSchema()
	if err != nil {
		return dynframe.Schema{}, nil, err
	}
	f, err := jr.ReadAll(schema)
	return schema, f, err
}

// decodeParquet spools rc to a temp file since the reader needs random access.
func decodeParquet(rc io.ReadCloser, sample int) (dynframe.Schema, *dynframe.Frame, error) {
	defer rc.Close()
	tmp, err := os.CreateTemp("", "catalog-*.parquet")
	if err != nil {
		return dynframe.Schema{}, nil, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	size, err := io.Copy(tmp, rc)
	if err != nil {
		return dynframe.Schema{}, nil, err
	}
	pr, err := parquetio.OpenReader(tmp, size)
	if err != nil {
		return dynframe.Schema{}, nil, err
	}
	schema, err := pr.InferSchema(sample)
	if err != nil {
		return dynframe.Schema{}, nil, err
	}
	f, err := pr.ReadAll(pr.Schema())
	if err != nil {
		return dynframe.Schema{}, nil, err
	}
	if f.Cols() == 0 {
		return schema, f, nil
	}
	cols := make([]dynframe.Column, f.Cols())
	for i, c := range f.Columns() {
		schema.Columns[i].Name = NormalizeName(schema.Columns[i].Name)
		cols[i] = c.Renamed(schema.Columns[i].Name)
	}
	if err := uniqueNames(schema); err != nil {
		return dynframe.Schema{}, nil, err
	}
	f, err = dynframe.FromColumns(cols...)
	return schema, f, err
}

func uniqueNames(s dynframe.Schema) error {
	seen := map[string]bool{}
	for _, cs := range s.Columns {
		if seen[cs.Name] {
			return fmt.Errorf("duplicate column %q after normalisation", cs.Name)
		}
		seen[cs.Name] = true
	}
	return nil
}

// conform returns a frame with exactly the columns of s, in order. Columns are
// matched by name and values converted to the catalog kind; values that do not
// fit, and columns the object lacks, are null.
func conform(f *dynframe.Frame, s dynframe.Schema) (*dynframe.Frame, error) {
	out := dynframe.NewFrame(s)
	for r := 0; r < f.Rows(); r++ {
		out.AppendNullRow()
	}
	for _, cs := range s.Columns {
		src, ok := f.ColumnByName(cs.Name)
		if !ok {
			continue
		}
		dst, _ := out.ColumnByName(cs.Name)
		for r := 0; r < f.Rows(); r++ {
			if v := src.Value(r); v != nil {
				setConverted(dst, r, v)
			}
		}
	}
	return out, nil
}

func setConverted(dst dynframe.Column, row int, v any) {
	switch c := dst.(type) {
	case *dynframe.ChoiceColumn:
		if s, ok := v.(string); ok {
			c.SetText(row, s)
			return
		}
		_ = c.Set(row, v)
	case *dynframe.StructColumn:
		if _, ok := v.(map[string]any); ok {
			_ = dynframe.SetValue(c, row, v)
		}
	default:
		if cv, ok := dynframe.Convert(v, dst.Kind()); ok {
			_ = dynframe.SetValue(dst, row, cv)
		}
	}
}
