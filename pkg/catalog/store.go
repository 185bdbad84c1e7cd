package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store is the SQL-backed catalog. Two drivers are supported: "sqlite"
// (modernc.org/sqlite) and "pgx" (PostgreSQL).
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to dsn. postgres:// and postgresql:// DSNs use pgx; anything
// else is a SQLite file, optionally prefixed with sqlite://.
func Open(ctx context.Context, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("catalog: DSN must not be empty")
	}
	driver := "sqlite"
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driver = "pgx"
	case strings.HasPrefix(dsn, "sqlite://"):
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if driver == "sqlite" {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db, driver: driver}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Driver returns "sqlite" or "pgx".
func (s *Store) Driver() string { return s.driver }

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS catalog_tables (
		database_name  TEXT NOT NULL,
		table_name     TEXT NOT NULL,
		location       TEXT NOT NULL,
		format         TEXT NOT NULL,
		options        TEXT NOT NULL,
		columns        TEXT NOT NULL,
		partition_keys TEXT NOT NULL,
		created_at     BIGINT NOT NULL,
		updated_at     BIGINT NOT NULL,
		PRIMARY KEY (database_name, table_name)
	)`,
	`CREATE TABLE IF NOT EXISTS job_bookmarks (
		job_name           TEXT NOT NULL,
		transformation_ctx TEXT NOT NULL,
		fingerprint        TEXT NOT NULL,
		object_uri         TEXT NOT NULL,
		run_id             TEXT NOT NULL,
		processed_at       BIGINT NOT NULL,
		PRIMARY KEY (job_name, transformation_ctx, fingerprint)
	)`,
	`CREATE TABLE IF NOT EXISTS job_runs (
		run_id          TEXT PRIMARY KEY,
		job_name        TEXT NOT NULL,
		correlation     TEXT NOT NULL,
		status          TEXT NOT NULL,
		started_at      BIGINT NOT NULL,
		finished_at     BIGINT NOT NULL,
		rows_read       BIGINT NOT NULL,
		rows_written    BIGINT NOT NULL,
		objects_written BIGINT NOT NULL,
		error           TEXT NOT NULL
	)`,
}

// Migrate creates the catalog tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("catalog: migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (s *Store) rebind(q string) string {
	if s.driver != "pgx" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(q), args...)
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(q), args...)
}

const tableColumns = `database_name, table_name, location, format, options, columns, partition_keys, created_at, updated_at`

// PutTable creates or replaces a table definition. CreatedAt is preserved on
// replace.
func (s *Store) PutTable(ctx context.Context, t Table) error {
	if err := t.validate(); err != nil {
		return err
	}
	opts, err := json.Marshal(t.Options)
	if err != nil {
		return err
	}
	cols, err := json.Marshal(t.Columns)
	if err != nil {
		return err
	}
	if t.PartitionKeys == nil {
		t.PartitionKeys = []Column{}
	}
	parts, err := json.Marshal(t.PartitionKeys)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	_, err = s.exec(ctx, `INSERT INTO catalog_tables (`+tableColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (database_name, table_name) DO UPDATE SET
			location = excluded.location,
			format = excluded.format,
			options = excluded.options,
			columns = excluded.columns,
			partition_keys = excluded.partition_keys,
			updated_at = excluded.updated_at`,
		t.Database, t.Name, t.Location, t.Format, string(opts), string(cols), string(parts),
		t.CreatedAt.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("catalog: put %s.%s: %w", t.Database, t.Name, err)
	}
	return nil
}

// GetTable returns ErrTableNotFound when database.name is not cataloged.
func (s *Store) GetTable(ctx context.Context, database, name string) (Table, error) {
	rows, err := s.query(ctx, `SELECT `+tableColumns+` FROM catalog_tables WHERE database_name = ? AND table_name = ?`, database, name)
	if err != nil {
		return Table{}, fmt.Errorf("catalog: get %s.%s: %w", database, name, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Table{}, err
		}
		return Table{}, fmt.Errorf("%w: %s.%s", ErrTableNotFound, database, name)
	}
	return scanTable(rows)
}

// ListTables returns the tables of database ordered by name.
func (s *Store) ListTables(ctx context.Context, database string) ([]Table, error) {
	rows, err := s.query(ctx, `SELECT `+tableColumns+` FROM catalog_tables WHERE database_name = ? ORDER BY table_name`, database)
	if err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", database, err)
	}
	defer rows.Close()
	var out []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTable(ctx context.Context, database, name string) error {
	res, err := s.exec(ctx, `DELETE FROM catalog_tables WHERE database_name = ? AND table_name = ?`, database, name)
	if err != nil {
		return fmt.Errorf("catalog: delete %s.%s: %w", database, name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s.%s", ErrTableNotFound, database, name)
	}
	return nil
}

func scanTable(rows *sql.Rows) (Table, error) {
	var (
		t                    Table
		opts, cols, parts    string
		createdAt, updatedAt int64
	)
	if err := rows.Scan(&t.Database, &t.Name, &t.Location, &t.Format, &opts, &cols, &parts, &createdAt, &updatedAt); err != nil {
		return Table{}, err
	}
	if err := json.Unmarshal([]byte(opts), &t.Options); err != nil {
		return Table{}, fmt.Errorf("catalog: %s.%s options: %w", t.Database, t.Name, err)
	}
	if err := json.Unmarshal([]byte(cols), &t.Columns); err != nil {
		return Table{}, fmt.Errorf("catalog: %s.%s columns: %w", t.Database, t.Name, err)
	}
	if err := json.Unmarshal([]byte(parts), &t.PartitionKeys); err != nil {
		return Table{}, fmt.Errorf("catalog: %s.%s partition keys: %w", t.Database, t.Name, err)
	}
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return t, nil
}
