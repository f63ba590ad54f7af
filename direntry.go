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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path"
	"unicode/utf8"
)

type entryKind uint32

const (
	kindFile entryKind = 0
	kindDir  entryKind = 1
)

// Only the low bit of the on-disk kind field is meaningful.
func entryKindFromValue(v uint32) entryKind {
	return entryKind(v & 1)
}

// DirEntry is one entry of a directory payload. The synthetic root entry
// has index 0, depth 0 and an empty path.
type DirEntry struct {
	path  string
	kind  entryKind
	index int
	depth int
}

// Path returns the slash-separated path of the entry relative to the
// archive root.
func (e *DirEntry) Path() string { return e.path }

// Name returns the base name of the entry.
func (e *DirEntry) Name() string {
	if e.path == "" {
		return ""
	}
	return path.Base(e.path)
}

// Index returns the zero-based fragment table row of the entry.
func (e *DirEntry) Index() int { return e.index }

// Depth returns the depth of the entry below the root directory.
func (e *DirEntry) Depth() int { return e.depth }

// IsDir reports whether the entry is a directory.
func (e *DirEntry) IsDir() bool { return e.kind == kindDir }

func newRootEntry() *DirEntry {
	return &DirEntry{kind: kindDir}
}

func newDirEntry(p string, index, depth int) *DirEntry {
	return &DirEntry{path: p, kind: kindDir, index: index, depth: depth}
}

func newFileEntry(p string, index, depth int) *DirEntry {
	return &DirEntry{path: p, kind: kindFile, index: index, depth: depth}
}

// readDirEntry parses one entry from a directory payload. The index is
// one-based on the wire; index 0 is reserved as "no fragment".
func readDirEntry(r io.Reader, parent string, depth int) (*DirEntry, error) {
	var fixed [10]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, fmt.Errorf("%w: reading dir entry: %w", errHpk, err)
	}
	wireIndex := binary.LittleEndian.Uint32(fixed[0:4])
	if wireIndex == 0 {
		return nil, ErrInvalidFragmentIndex
	}
	kind := entryKindFromValue(binary.LittleEndian.Uint32(fixed[4:8]))
	nameLen := binary.LittleEndian.Uint16(fixed[8:10])

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("%w: reading dir entry name: %w", errHpk, err)
	}
	if !utf8.Valid(name) {
		return nil, ErrInvalidDirEntryName
	}

	return &DirEntry{
		path:  path.Join(parent, string(name)),
		kind:  kind,
		index: int(wireIndex) - 1,
		depth: depth,
	}, nil
}

// write serialises the entry. The creator constructs entries with the
// wire index already one-based, so it is written as is.
func (e *DirEntry) write(w io.Writer) error {
	name := e.Name()
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("%w: %q", ErrInvalidDirEntryName, name)
	}
	buf := make([]byte, 10, 10+len(name))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.index))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(e.kind))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(len(name)))
	buf = append(buf, name...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: writing dir entry: %w", errHpk, err)
	}
	return nil
}
