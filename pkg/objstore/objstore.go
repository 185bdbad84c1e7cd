// Package objstore addresses object storage by URI. s3:// locations are served
// by the AWS SDK, file:// and bare paths by the local filesystem.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Object describes one stored object.
type Object struct {
	URI      string
	Key      string
	Size     int64
	ETag     string
	Modified time.Time
}

// Store lists, reads and writes objects.
type Store interface {
	// List returns the objects under prefix in lexical key order.
	List(ctx context.Context, prefix string) ([]Object, error)
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
	// Put stores size bytes read from r at uri.
	Put(ctx context.Context, uri string, r io.ReadSeeker, size int64) error
}

// Location is a parsed object URI.
type Location struct {
	Scheme string // "s3" or "file"
	Bucket string // empty for file
	Key    string // object key, or absolute path for file
}

// ParseURI accepts s3://bucket/key, file:///abs/path and plain paths.
func ParseURI(raw string) (Location, error) {
	if raw == "" {
		return Location{}, errors.New("empty location")
	}
	if !strings.Contains(raw, "://") {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return Location{}, err
		}
		return Location{Scheme: "file", Key: filepath.ToSlash(abs)}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse %q: %w", raw, err)
	}
	switch u.Scheme {
	case "s3", "s3a", "s3n":
		if u.Host == "" {
			return Location{}, fmt.Errorf("%q: missing bucket", raw)
		}
		return Location{Scheme: "s3", Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
	case "file":
		return Location{Scheme: "file", Key: u.Path}, nil
	default:
		return Location{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

func (l Location) String() string {
	if l.Scheme == "s3" {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return "file://" + l.Key
}

// Join appends path elements to the key.
func (l Location) Join(elem ...string) Location {
	parts := append([]string{l.Key}, elem...)
	l.Key = path.Join(parts...)
	if l.Scheme == "s3" {
		l.Key = strings.TrimPrefix(l.Key, "/")
	}
	return l
}

// Join is a convenience for ParseURI(base).Join(elem...).String().
func Join(base string, elem ...string) (string, error) {
	loc, err := ParseURI(base)
	if err != nil {
		return "", err
	}
	return loc.Join(elem...).String(), nil
}

// hidden reports keys that data readers skip: marker files and dot/underscore
// files such as _SUCCESS.
func hidden(key string) bool {
	base := path.Base(key)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") || strings.HasSuffix(key, "/")
}

// hiddenBelow reports whether any segment of key after prefix is hidden, so
// objects under _temporary/ or .staging/ are skipped like the files in them.
func hiddenBelow(prefix, key string) bool {
	if strings.HasSuffix(key, "/") {
		return true
	}
	for _, seg := range strings.Split(strings.TrimPrefix(key, prefix), "/") {
		if strings.HasPrefix(seg, ".") || strings.HasPrefix(seg, "_") {
			return true
		}
	}
	return false
}

// Mux dispatches to a Store by URI scheme.
type Mux struct {
	stores map[string]Store
}

func NewMux() *Mux { return &Mux{stores: map[string]Store{}} }

// Handle registers s for scheme ("s3" or "file").
func (m *Mux) Handle(scheme string, s Store) *Mux {
	m.stores[scheme] = s
	return m
}

func (m *Mux) storeFor(uri string) (Store, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	s, ok := m.stores[loc.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: no store for %s", ErrUnsupportedScheme, loc.Scheme)
	}
	return s, nil
}

func (m *Mux) List(ctx context.Context, prefix string) ([]Object, error) {
	s, err := m.storeFor(prefix)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, prefix)
}

func (m *Mux) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	s, err := m.storeFor(uri)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, uri)
}

func (m *Mux) Put(ctx context.Context, uri string, r io.ReadSeeker, size int64) error {
	s, err := m.storeFor(uri)
	if err != nil {
		return err
	}
	return s.Put(ctx, uri, r, size)
}
