package parquetio

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pq "github.com/xitongsys/parquet-go/parquet"
	pw "github.com/xitongsys/parquet-go/writer"
	local "github.com/xitongsys/parquet-go-source/local"

	df "github.com/wdm0006/dynframe/pkg/dynframe"
)

type jsonField struct {
	Tag    string      `json:"Tag"`
	Fields []jsonField `json:"Fields,omitempty"`
}

// SchemaJSON builds the JSON schema understood by the parquet-go JSONWriter.
// Choice columns must be resolved before writing.
func SchemaJSON(s df.Schema) (string, error) {
	root := jsonField{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for _, cs := range s.Columns {
		fld, err := fieldFor(cs)
		if err != nil {
			return "", err
		}
		root.Fields = append(root.Fields, fld)
	}
	b, err := json.Marshal(root)
	return string(b), err
}

func fieldFor(cs df.ColumnSchema) (jsonField, error) {
	tag := "name=" + cs.Name + ", repetitiontype=OPTIONAL"
	switch cs.Type {
	case df.KindFloat:
		return jsonField{Tag: tag + ", type=DOUBLE"}, nil
	case df.KindInt:
		return jsonField{Tag: tag + ", type=INT64"}, nil
	case df.KindBool:
		return jsonField{Tag: tag + ", type=BOOLEAN"}, nil
	case df.KindString:
		return jsonField{Tag: tag + ", type=BYTE_ARRAY, convertedtype=UTF8"}, nil
	case df.KindTime:
		return jsonField{Tag: tag + ", type=INT64, convertedtype=TIMESTAMP_MILLIS"}, nil
	case df.KindStruct:
		g := jsonField{Tag: tag}
		for _, fs := range cs.Fields {
			sub, err := fieldFor(fs)
			if err != nil {
				return jsonField{}, err
			}
			g.Fields = append(g.Fields, sub)
		}
		if len(g.Fields) == 0 {
			return jsonField{}, fmt.Errorf("parquet: struct %s has no fields", cs.Name)
		}
		return g, nil
	default:
		return jsonField{}, fmt.Errorf("parquet: column %s has unsupported type %s", cs.Name, df.TypeString(cs))
	}
}

// WriterOptions configures the Parquet writer.
type WriterOptions struct {
	Compression string // snappy (default), gzip, zstd, none
	Parallelism int64
}

func codec(name string) (pq.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return pq.CompressionCodec_SNAPPY, nil
	case "gzip":
		return pq.CompressionCodec_GZIP, nil
	case "zstd":
		return pq.CompressionCodec_ZSTD, nil
	case "none", "uncompressed":
		return pq.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("parquet: unsupported compression %q", name)
	}
}

// CodecExt returns the file name infix for a compression codec ("snappy").
func CodecExt(name string) string {
	switch strings.ToLower(name) {
	case "":
		return "snappy"
	case "none", "uncompressed":
		return ""
	default:
		return strings.ToLower(name)
	}
}

// WriteAll writes a Frame to a Parquet file using parquet-go JSONWriter.
func WriteAll(path string, f *df.Frame, opt WriterOptions) (err error) {
	schema, err := SchemaJSON(f.Schema())
	if err != nil {
		return err
	}
	cc, err := codec(opt.Compression)
	if err != nil {
		return err
	}
	np := opt.Parallelism
	if np <= 0 {
		np = 4
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	writer, err := pw.NewJSONWriter(schema, fw, np)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer init: %w", err)
	}
	writer.CompressionType = cc
	defer func() {
		if stopErr := writer.WriteStop(); stopErr != nil && err == nil {
			err = fmt.Errorf("parquet write stop: %w", stopErr)
		}
		if closeErr := fw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	for r := 0; r < f.Rows(); r++ {
		rec := make(map[string]any, f.Cols())
		for _, col := range f.Columns() {
			if v := jsonValue(col.Value(r)); v != nil {
				rec[col.Name()] = v
			}
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("parquet encode row %d: %w", r, err)
		}
		if err := writer.Write(string(b)); err != nil {
			return fmt.Errorf("parquet write row: %w", err)
		}
	}
	return nil
}

// jsonValue converts a cell value to the JSON representation the schema expects.
func jsonValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, fv := range t {
			if x := jsonValue(fv); x != nil {
				out[k] = x
			}
		}
		return out
	default:
		return v
	}
}
