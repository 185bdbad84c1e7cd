// Package catalog keeps table definitions, job bookmarks and run records in a
// SQL database, and loads cataloged tables into frames.
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

var ErrTableNotFound = errors.New("table not found")

// Column is a catalog column with its type string, e.g. "long" or
// "choice<long,string>".
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FormatOptions describe how objects of a table are decoded.
type FormatOptions struct {
	Delimiter   string `json:"delimiter,omitempty"`
	Header      bool   `json:"header,omitempty"`
	Compression string `json:"compression,omitempty"`
}

type Table struct {
	Database      string
	Name          string
	Location      string
	Format        string // csv, json or parquet
	Options       FormatOptions
	Columns       []Column
	PartitionKeys []Column
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Schema parses the column types into a frame schema.
func (t Table) Schema() (dynframe.Schema, error) {
	var s dynframe.Schema
	for _, c := range t.Columns {
		cs, err := dynframe.ParseType(c.Name, c.Type)
		if err != nil {
			return dynframe.Schema{}, fmt.Errorf("table %s.%s column %s: %w", t.Database, t.Name, c.Name, err)
		}
		s.Columns = append(s.Columns, cs)
	}
	return s, nil
}

// ColumnsOf renders a frame schema as catalog columns.
func ColumnsOf(s dynframe.Schema) []Column {
	out := make([]Column, len(s.Columns))
	for i, cs := range s.Columns {
		out[i] = Column{Name: cs.Name, Type: dynframe.TypeString(cs)}
	}
	return out
}

func (t Table) validate() error {
	if t.Database == "" || t.Name == "" {
		return errors.New("table needs a database and a name")
	}
	if t.Location == "" {
		return fmt.Errorf("table %s.%s: empty location", t.Database, t.Name)
	}
	switch t.Format {
	case "csv", "json", "parquet":
	default:
		return fmt.Errorf("table %s.%s: unsupported format %q", t.Database, t.Name, t.Format)
	}
	_, err := t.Schema()
	return err
}
