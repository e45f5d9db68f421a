// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Alberto Avidad Fernandez (Oficina de Software Libre de la Diputacion de Granada)

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrNoFile is returned before touching the filesystem when nothing was picked.
var ErrNoFile = errors.New("no file selected")

type Kind int

const (
	KindOpen Kind = iota
	KindRead
	KindTooLarge
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindRead:
		return "read"
	case KindTooLarge:
		return "too large"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is an ingestion failure for a selected file.
type Error struct {
	Name string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// File is a picked file. The zero value means no selection.
type File struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// FromPath builds a File whose display name is the base of path.
func FromPath(path string) File {
	path = strings.TrimSpace(path)
	if path == "" {
		return File{}
	}
	return File{Name: filepath.Base(path), Path: path}
}

func (f File) IsZero() bool {
	return strings.TrimSpace(f.Path) == ""
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var openFile = func(path string) (io.ReadCloser, os.FileInfo, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, nil, err
	}
	return fh, st, nil
}

type Reader struct {
	// MaxBytes caps the file size; zero or negative disables the cap.
	MaxBytes int64
}

func NewReader(maxBytes int64) *Reader {
	return &Reader{MaxBytes: maxBytes}
}

// Read loads the whole file as text. A leading UTF-8 BOM is dropped and
// invalid byte sequences become U+FFFD.
func (r *Reader) Read(ctx context.Context, f File) (string, error) {
	if f.IsZero() {
		return "", ErrNoFile
	}
	name := f.Name
	if name == "" {
		name = filepath.Base(f.Path)
	}
	if err := ctx.Err(); err != nil {
		return "", &Error{Name: name, Kind: KindCancelled, Err: err}
	}

	fh, st, err := openFile(f.Path)
	if err != nil {
		return "", &Error{Name: name, Kind: KindOpen, Err: err}
	}
	defer fh.Close()

	if st != nil && st.IsDir() {
		return "", &Error{Name: name, Kind: KindOpen, Err: errors.New("is a directory")}
	}
	if r.MaxBytes > 0 && st != nil && st.Size() > r.MaxBytes {
		return "", &Error{Name: name, Kind: KindTooLarge, Err: errors.Errorf("file is %d bytes, limit is %d", st.Size(), r.MaxBytes)}
	}

	src := io.Reader(fh)
	if r.MaxBytes > 0 {
		// Stat may lie for pipes and special files.
		src = io.LimitReader(fh, r.MaxBytes+1)
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return "", &Error{Name: name, Kind: KindRead, Err: errors.Wrap(err, "read")}
	}
	if r.MaxBytes > 0 && int64(len(raw)) > r.MaxBytes {
		return "", &Error{Name: name, Kind: KindTooLarge, Err: errors.Errorf("file exceeds limit of %d bytes", r.MaxBytes)}
	}
	if err := ctx.Err(); err != nil {
		return "", &Error{Name: name, Kind: KindCancelled, Err: err}
	}
	return decodeText(raw), nil
}

func decodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), "�")
}
