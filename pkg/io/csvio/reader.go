package csvio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	df "github.com/wdm0006/dynframe/pkg/dynframe"
)

type ReaderOptions struct {
	HasHeader  bool
	Delimiter  rune // 0 = sniff, default ','
	SampleRows int  // for inference; default 100
	Strict     bool // if true, error on short/long records
}

type Reader struct {
	r   *csv.Reader
	opt ReaderOptions
	buf [][]string
	// header is consumed once, by InferSchema or ReadAll
	headerRead bool
	header     []string
	// repair/warning counters
	shortRecords int
	longRecords  int
}

// NewReader constructs a Reader over r. When opt.Delimiter is 0 the
// delimiter and quoting mode are sniffed from the first 4KiB.
func NewReader(r io.Reader, opt ReaderOptions) *Reader {
	br := bufio.NewReader(r)
	delim, lazy := opt.Delimiter, false
	if delim == 0 {
		delim, lazy = sniffDelimiterAndQuotes(br)
	}
	rr := csv.NewReader(br)
	rr.Comma = delim
	rr.LazyQuotes = lazy
	rr.FieldsPerRecord = -1
	return &Reader{r: rr, opt: opt}
}

// Header returns the header row (BOM stripped), reading it if necessary.
func (r *Reader) Header() ([]string, error) {
	if r.headerRead || !r.opt.HasHeader {
		return r.header, nil
	}
	rec, err := r.r.Read()
	if err != nil {
		return nil, err
	}
	r.headerRead = true
	r.header = make([]string, len(rec))
	for i := range rec {
		r.header[i] = strings.ToValidUTF8(rec[i], "?")
	}
	if len(r.header) > 0 {
		r.header[0] = strings.TrimPrefix(r.header[0], "\ufeff")
	}
	return r.header, nil
}

// InferSchema reads header (if present) and samples rows to determine column
// kinds. Columns observed with incompatible kinds become choice columns.
func (r *Reader) InferSchema() (df.Schema, []string, error) {
	names, err := r.Header()
	if err != nil {
		return df.Schema{}, nil, err
	}
	max := r.opt.SampleRows
	if max <= 0 {
		max = 100
	}
	var sample [][]string
	for i := 0; i < max; i++ {
		rec, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return df.Schema{}, nil, err
		}
		sample = append(sample, append([]string(nil), rec...))
	}
	if names == nil {
		ncol := 0
		for _, rec := range sample {
			if len(rec) > ncol {
				ncol = len(rec)
			}
		}
		names = make([]string, ncol)
		for i := range names {
			names[i] = "col_" + strconv.Itoa(i)
		}
	}
	obs := make([]*df.Observer, len(names))
	for i := range obs {
		obs[i] = df.NewObserver()
	}
	for _, rec := range sample {
		for i := 0; i < len(rec) && i < len(obs); i++ {
			obs[i].ObserveText(rec[i])
		}
	}
	schema := df.Schema{Columns: make([]df.ColumnSchema, len(names))}
	for i := range names {
		schema.Columns[i] = obs[i].Column(names[i])
	}
	// retain sampled rows for subsequent ReadAll
	r.buf = append(r.buf, sample...)
	return schema, names, nil
}

// ReadAll loads the rest of the CSV into a Frame. Fields are matched to
// schema columns by position.
func (r *Reader) ReadAll(schema df.Schema) (*df.Frame, error) {
	if _, err := r.Header(); err != nil && err != io.EOF {
		return nil, err
	}
	f := df.NewFrame(schema)
	// drain buffered records from inference (if any)
	for len(r.buf) > 0 {
		rec := r.buf[0]
		r.buf = r.buf[1:]
		if err := r.appendRecord(f, schema, rec); err != nil {
			return nil, err
		}
	}
	for {
		rec, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := r.appendRecord(f, schema, rec); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (r *Reader) appendRecord(f *df.Frame, schema df.Schema, rec []string) error {
	// append a null row then set non-empty values
	f.AppendNullRow()
	row := f.Rows() - 1
	if len(rec) > len(schema.Columns) {
		r.longRecords++
		if r.opt.Strict {
			return fmt.Errorf("csv long record at row %d: need %d fields, got %d", row, len(schema.Columns), len(rec))
		}
	}
	for i, cs := range schema.Columns {
		if i >= len(rec) {
			r.shortRecords++
			if r.opt.Strict {
				return fmt.Errorf("csv short record at row %d: need %d fields, got %d", row, len(schema.Columns), len(rec))
			}
			break
		}
		val := strings.ToValidUTF8(rec[i], "?")
		if err := f.SetText(row, cs.Name, val); err != nil {
			return err
		}
	}
	return nil
}

func sniffDelimiterAndQuotes(br *bufio.Reader) (rune, bool) {
	sample, _ := br.Peek(4096)
	if len(sample) == 0 {
		return ',', false
	}
	candidates := []byte{',', '\t', ';', '|'}
	best := byte(',')
	bestCount := 0
	for _, c := range candidates {
		cnt := 0
		for _, b := range sample {
			if b == c {
				cnt++
			}
		}
		if cnt > bestCount {
			bestCount = cnt
			best = c
		}
	}
	// naive quote heuristic: odd quote counts usually mean stray quotes
	quoteCount := 0
	for _, b := range sample {
		if b == '"' {
			quoteCount++
		}
	}
	return rune(best), quoteCount%2 != 0
}

// Warnings returns a summary string of any repairs/mismatches encountered.
func (r *Reader) Warnings() string {
	if r.shortRecords == 0 && r.longRecords == 0 {
		return ""
	}
	parts := []string{}
	if r.shortRecords > 0 {
		parts = append(parts, fmt.Sprintf("short_records=%d", r.shortRecords))
	}
	if r.longRecords > 0 {
		parts = append(parts, fmt.Sprintf("long_records=%d", r.longRecords))
	}
	return strings.Join(parts, ", ")
}
