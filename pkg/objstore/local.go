package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Local stores objects as files.
type Local struct{}

func (Local) path(uri string) (string, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	if loc.Scheme != "file" {
		return "", fmt.Errorf("%w: local store got %s", ErrUnsupportedScheme, loc.Scheme)
	}
	return filepath.FromSlash(loc.Key), nil
}

// List walks prefix recursively. A prefix naming a single file lists that file.
func (l Local) List(ctx context.Context, prefix string) ([]Object, error) {
	root, err := l.path(prefix)
	if err != nil {
		return nil, err
	}
	var out []Object
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && hidden(filepath.ToSlash(p)) {
				return filepath.SkipDir
			}
			return nil
		}
		key := filepath.ToSlash(p)
		if hidden(key) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Object{
			URI:      Location{Scheme: "file", Key: key}.String(),
			Key:      key,
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
		})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (l Local) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	p, err := l.path(uri)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (l Local) Put(_ context.Context, uri string, r io.ReadSeeker, _ int64) error {
	p, err := l.path(uri)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}
