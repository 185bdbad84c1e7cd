package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/wdm0006/dynframe/pkg/objstore"
)

// Bookmark marks one object as processed by a job for a transformation context.
type Bookmark struct {
	JobName           string
	TransformationCtx string
	Fingerprint       string
	URI               string
	RunID             string
	ProcessedAt       time.Time
}

// Fingerprint identifies an object version by key, size and etag. Rewriting
// an object under the same key yields a new fingerprint.
func Fingerprint(o objstore.Object) string {
	h := xxh3.New()
	_, _ = h.WriteString(o.Key)
	_, _ = h.WriteString("\x00" + strconv.FormatInt(o.Size, 10))
	_, _ = h.WriteString("\x00" + o.ETag)
	if o.ETag == "" {
		_, _ = h.WriteString("\x00" + strconv.FormatInt(o.Modified.UnixNano(), 10))
	}
	sum := h.Sum128()
	return fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo)
}

// Bookmarks returns the fingerprints already processed.
func (s *Store) Bookmarks(ctx context.Context, job, transformationCtx string) (map[string]struct{}, error) {
	rows, err := s.query(ctx, `SELECT fingerprint FROM job_bookmarks WHERE job_name = ? AND transformation_ctx = ?`, job, transformationCtx)
	if err != nil {
		return nil, fmt.Errorf("catalog: bookmarks %s/%s: %w", job, transformationCtx, err)
	}
	defer rows.Close()
	seen := map[string]struct{}{}
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		seen[fp] = struct{}{}
	}
	return seen, rows.Err()
}

// CommitBookmarks stores bms in one transaction.
func (s *Store) CommitBookmarks(ctx context.Context, bms []Bookmark) error {
	if len(bms) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := s.insertBookmarks(ctx, tx, bms); err != nil {
		return err
	}
	return tx.Commit()
}

// CommitRun stores bms and the final state of r in one transaction, so a run
// is never left RUNNING with its bookmarks persisted.
func (s *Store) CommitRun(ctx context.Context, bms []Bookmark, r JobRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := s.insertBookmarks(ctx, tx, bms); err != nil {
		return err
	}
	if err := s.finishRun(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) insertBookmarks(ctx context.Context, tx *sql.Tx, bms []Bookmark) error {
	if len(bms) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO job_bookmarks
		(job_name, transformation_ctx, fingerprint, object_uri, run_id, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_name, transformation_ctx, fingerprint) DO NOTHING`))
	if err != nil {
		return fmt.Errorf("catalog: prepare bookmarks: %w", err)
	}
	defer stmt.Close()
	for _, b := range bms {
		at := b.ProcessedAt
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, b.JobName, b.TransformationCtx, b.Fingerprint, b.URI, b.RunID, at.UnixMilli()); err != nil {
			return fmt.Errorf("catalog: bookmark %s: %w", b.URI, err)
		}
	}
	return nil
}

// ResetBookmarks forgets everything job has processed, so the next run reads
// every object again.
func (s *Store) ResetBookmarks(ctx context.Context, job string) error {
	_, err := s.exec(ctx, `DELETE FROM job_bookmarks WHERE job_name = ?`, job)
	return err
}
