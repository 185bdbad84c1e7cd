package ioutils

import (
	"bufio"
	"compress/gzip"
	"errors"
	"io"
	"path"
	"strings"
)

// Decompress wraps rc with a gzip reader when name ends in .gz or the stream
// starts with the gzip magic. Closing the result closes rc.
func Decompress(rc io.ReadCloser, name string) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	gz := path.Ext(name) == ".gz"
	if !gz {
		b, err := br.Peek(2)
		gz = err == nil && len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
	}
	if !gz {
		return readCloser{Reader: br, closeFn: rc.Close}, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return readCloser{Reader: zr, closeFn: func() error { _ = zr.Close(); return rc.Close() }}, nil
}

// Compress wraps w for the named codec ("", "none" or "gzip"). Closing the
// result flushes the codec and closes w.
func Compress(w io.WriteCloser, codec string) (io.WriteCloser, error) {
	switch strings.ToLower(codec) {
	case "", "none", "uncompressed":
		return writeCloser{Writer: bufio.NewWriter(w), closeFn: w.Close}, nil
	case "gzip", "gz":
		zw := gzip.NewWriter(w)
		return writeCloser{Writer: zw, closeFn: func() error {
			if err := zw.Close(); err != nil {
				_ = w.Close()
				return err
			}
			return w.Close()
		}}, nil
	default:
		return nil, errors.New("unsupported compression: " + codec)
	}
}

// StripCompressionExt removes a trailing .gz from name.
func StripCompressionExt(name string) string {
	return strings.TrimSuffix(name, ".gz")
}

type readCloser struct {
	io.Reader
	closeFn func() error
}

func (r readCloser) Close() error {
	if r.closeFn != nil {
		return r.closeFn()
	}
	return errors.New("no closeFn")
}

type writeCloser struct {
	io.Writer
	closeFn func() error
}

func (w writeCloser) Close() error {
	if bw, ok := w.Writer.(*bufio.Writer); ok {
		if err := bw.Flush(); err != nil {
			_ = w.closeFn()
			return err
		}
	}
	if w.closeFn != nil {
		return w.closeFn()
	}
	return errors.New("no closeFn")
}
