// Copyright 2025 The go-hpk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hpk

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Walker iterates the entries of an archive depth-first, starting at the
// synthetic root directory. Entries are obtained with Next until it
// returns io.EOF, the same way [archive/tar.Reader] signals the end.
//
// If the archive is wrapped under whole-archive compression the walker
// inflates it into a temporary file at open time; Close removes it.
type Walker struct {
	path       string
	f          *os.File
	tmpDir     string
	compressed bool
	header     *Header

	// Fragments holds one row of Header.FragmentsPerFile fragments per
	// filesystem entry. Row 0 is the root directory.
	Fragments [][]Fragment

	// Residuals are the fragments of the header's residual table. Their
	// semantics are unknown; they are preserved on read and never written.
	Residuals []Fragment

	start *DirEntry
	stack []*dirList
}

type dirList struct {
	entries []*DirEntry
}

func (l *dirList) next() *DirEntry {
	if len(l.entries) == 0 {
		return nil
	}
	e := l.entries[0]
	l.entries = l.entries[1:]
	return e
}

// Walk opens an archive for iteration. The caller must Close the walker.
func Walk(path string) (*Walker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening archive: %w", errHpk, err)
	}

	w := &Walker{path: path, f: f, start: newRootEntry()}
	if err := w.open(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Walker) open() error {
	c, err := DetectCompression(w.f)
	if err != nil {
		return err
	}
	if c.IsCompressed() {
		if err := w.inflateToTemp(); err != nil {
			return err
		}
		w.compressed = true
	}

	hdr, err := readHeader(w.f)
	if err != nil {
		return err
	}
	w.header = hdr

	data := make([]byte, hdr.FragmentedFilesystemLength)
	if _, err := w.f.Seek(hdr.FragmentedFilesystemOffset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	if _, err := io.ReadFull(w.f, data); err != nil {
		return fmt.Errorf("%w: reading fragment table: %w", errHpk, err)
	}

	table := bytes.NewReader(data)
	w.Fragments = make([][]Fragment, 0, hdr.FilesystemEntries())
	for i := 0; i < hdr.FilesystemEntries(); i++ {
		row, err := readFragments(table, int(hdr.FragmentsPerFile))
		if err != nil {
			return err
		}
		w.Fragments = append(w.Fragments, row)
	}

	residualData := make([]byte, hdr.FragmentsResidualCount*fragmentSize)
	if _, err := w.f.Seek(hdr.FragmentsResidualOffset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	if _, err := io.ReadFull(w.f, residualData); err != nil {
		return fmt.Errorf("%w: reading residual fragments: %w", errHpk, err)
	}
	w.Residuals, err = readFragments(bytes.NewReader(residualData), int(hdr.FragmentsResidualCount))
	return err
}

// inflateToTemp decodes the whole archive into a walker-owned temporary
// file and reopens that.
func (w *Walker) inflateToTemp() error {
	tmpDir, err := os.MkdirTemp("", "hpk")
	if err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	w.tmpDir = tmpDir
	tmpFile := filepath.Join(tmpDir, filepath.Base(w.path))

	fi, err := w.f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	r := NewFragmentedReader(w.f, []Fragment{{Offset: 0, Length: fi.Size()}})

	out, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	if _, err := Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}

	f, err := os.Open(tmpFile)
	if err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	w.f.Close()
	w.f = f
	return nil
}

// Close releases the archive handle and removes the temporary copy of a
// compressed archive, if any.
func (w *Walker) Close() error {
	var err error
	if w.f != nil {
		err = w.f.Close()
	}
	if w.tmpDir != "" {
		if rmErr := os.RemoveAll(w.tmpDir); err == nil {
			err = rmErr
		}
	}
	return err
}

// Path returns the path the archive was opened from.
func (w *Walker) Path() string { return w.path }

// IsCompressed reports whether the archive was wrapped under whole-archive
// compression.
func (w *Walker) IsCompressed() bool { return w.compressed }

// Header returns the parsed archive header.
func (w *Walker) Header() *Header { return w.header }

// Next returns the next entry in depth-first order, directories before
// their contents. It returns io.EOF after the last entry. A non-EOF error
// relates to the entry being decoded; iteration may continue past it.
func (w *Walker) Next() (*DirEntry, error) {
	if e := w.start; e != nil {
		w.start = nil
		return w.handleEntry(e)
	}
	for len(w.stack) > 0 {
		e := w.stack[len(w.stack)-1].next()
		if e == nil {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		return w.handleEntry(e)
	}
	return nil, io.EOF
}

func (w *Walker) handleEntry(e *DirEntry) (*DirEntry, error) {
	if e.IsDir() {
		if err := w.push(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// push reads the directory's fragment and parses its packed entries.
func (w *Walker) push(dir *DirEntry) error {
	if dir.index >= len(w.Fragments) {
		return ErrInvalidFragmentIndex
	}
	fragment := w.Fragments[dir.index][0]

	data := make([]byte, fragment.Length)
	if _, err := w.f.Seek(fragment.Offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	if _, err := io.ReadFull(w.f, data); err != nil {
		return fmt.Errorf("%w: reading directory: %w", errHpk, err)
	}

	var list dirList
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		entry, err := readDirEntry(r, dir.path, dir.depth+1)
		if err != nil {
			return err
		}
		if entry.index >= len(w.Fragments) {
			return ErrInvalidFragmentIndex
		}
		list.entries = append(list.entries, entry)
	}
	w.stack = append(w.stack, &list)
	return nil
}

// ReadFile hands op a fresh FragmentedReader over the entry's fragment
// row. The reader borrows the walker's file handle and must not outlive
// the callback. Directory entries are a no-op.
func (w *Walker) ReadFile(entry *DirEntry, op func(*FragmentedReader) error) error {
	if entry.IsDir() {
		return nil
	}
	if entry.index >= len(w.Fragments) {
		return ErrInvalidFragmentIndex
	}
	return op(NewFragmentedReader(w.f, w.Fragments[entry.index]))
}
