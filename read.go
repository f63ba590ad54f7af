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
	"fmt"
	"io"
	"sort"
)

// fragmentState tracks one run of the backing source. endPos is the
// cumulative logical end of the run; limit counts the bytes remaining in
// it at the current read position.
type fragmentState struct {
	offset int64
	length int64
	endPos int64
	limit  int64
}

// FragmentedReader presents a list of byte runs over a shared seekable
// source as one logical stream. It implements [io.Reader] and [io.Seeker].
//
// The reader borrows the backing source for the scope of one file entry;
// two readers over the same source must not be interleaved because seeks
// on the source are stateful.
type FragmentedReader struct {
	inner     io.ReadSeeker
	length    int64
	pos       int64
	fragments []fragmentState
}

// NewFragmentedReader returns a reader over the given runs of inner.
func NewFragmentedReader(inner io.ReadSeeker, fragments []Fragment) *FragmentedReader {
	states := make([]fragmentState, 0, len(fragments))
	var end int64
	for _, f := range fragments {
		end += f.Length
		states = append(states, fragmentState{
			offset: f.Offset,
			length: f.Length,
			endPos: end,
			limit:  f.Length,
		})
	}
	return &FragmentedReader{
		inner:     inner,
		length:    end,
		fragments: states,
	}
}

// Len returns the total logical length of the stream.
func (r *FragmentedReader) Len() int64 { return r.length }

func (r *FragmentedReader) setPosition(pos int64) error {
	if r.pos == pos {
		return nil
	}

	limit := pos
	for i := range r.fragments {
		f := &r.fragments[i]
		n := min(f.length, limit)
		f.limit = f.length - n
		limit -= n

		// Read seeks itself when limit == length.
		if f.limit > 0 && f.limit != f.length {
			if _, err := r.inner.Seek(f.offset+n, io.SeekStart); err != nil {
				return err
			}
		}
	}
	r.pos = pos
	return nil
}

// Read reads from the run containing the current position, at most up to
// the run boundary. It returns io.EOF once all runs are exhausted.
func (r *FragmentedReader) Read(p []byte) (int, error) {
	current := sort.Search(len(r.fragments), func(i int) bool {
		return r.fragments[i].endPos > r.pos
	})
	if current >= len(r.fragments) {
		return 0, io.EOF
	}
	f := &r.fragments[current]

	// Nothing has been read from this run yet? seek to its start.
	if f.limit == f.length {
		if _, err := r.inner.Seek(f.offset, io.SeekStart); err != nil {
			return 0, err
		}
	}

	max := min(int64(len(p)), f.limit)
	n, err := r.inner.Read(p[:max])
	r.pos += int64(n)
	f.limit -= int64(n)
	return n, err
}

// Seek implements [io.Seeker]. Seeking to a negative or overflowing
// position fails.
func (r *FragmentedReader) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		if offset < 0 {
			return 0, fmt.Errorf("%w: invalid seek to a negative or overflowing position", errHpk)
		}
		return offset, r.setPosition(offset)
	case io.SeekEnd:
		base = r.length
	case io.SeekCurrent:
		base = r.pos
	default:
		return 0, fmt.Errorf("%w: unsupported seek mode %d", errHpk, whence)
	}

	pos := base + offset
	if (offset > 0 && pos < base) || pos < 0 {
		return 0, fmt.Errorf("%w: invalid seek to a negative or overflowing position", errHpk)
	}
	return pos, r.setPosition(pos)
}
