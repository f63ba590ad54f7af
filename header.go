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
	"errors"
	"fmt"
	"io"
)

var (
	// errHpk is the base error for all go-hpk errors.
	errHpk = errors.New("hpk")

	// ErrInvalidHeader indicates that the archive signature does not match.
	ErrInvalidHeader = fmt.Errorf("%w: invalid header", errHpk)

	// ErrInvalidFragmentIndex indicates a directory entry referring to the
	// reserved fragment index 0 or beyond the fragment table.
	ErrInvalidFragmentIndex = fmt.Errorf("%w: invalid fragment index", errHpk)

	// ErrInvalidDirEntryName indicates a directory entry name that is not
	// valid UTF-8.
	ErrInvalidDirEntryName = fmt.Errorf("%w: invalid dir entry name", errHpk)
)

// hpkSignature is the identifier at offset 0 of every archive.
var hpkSignature = [4]byte{'B', 'P', 'U', 'L'}

const (
	// HeaderLength is the fixed size of the archive header in bytes.
	HeaderLength = 36

	// fragmentSize is the size, in bytes, of how a Fragment appears in files.
	fragmentSize = 8
)

// Header is the fixed archive header at offset 0.
//
// The reserved fields are written as observed in retail archives
// (0xFFFFFFFF and 1) and ignored on read.
type Header struct {
	DataOffset                 uint32
	FragmentsPerFile           uint32
	reservedA                  uint32
	FragmentsResidualOffset    int64
	FragmentsResidualCount     int64
	reservedB                  uint32
	FragmentedFilesystemOffset int64
	FragmentedFilesystemLength int64
}

func newHeader(fsOffset, fsLength int64) *Header {
	return &Header{
		DataOffset:                 HeaderLength,
		FragmentsPerFile:           1,
		reservedA:                  0xFFFFFFFF,
		reservedB:                  1,
		FragmentedFilesystemOffset: fsOffset,
		FragmentedFilesystemLength: fsLength,
	}
}

func readHeader(r io.Reader) (*Header, error) {
	var buf [HeaderLength]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", errHpk, err)
	}
	if [4]byte(buf[0:4]) != hpkSignature {
		return nil, fmt.Errorf("%w: signature: %x", ErrInvalidHeader, buf[0:4])
	}
	return &Header{
		DataOffset:                 binary.LittleEndian.Uint32(buf[4:8]),
		FragmentsPerFile:           binary.LittleEndian.Uint32(buf[8:12]),
		reservedA:                  binary.LittleEndian.Uint32(buf[12:16]),
		FragmentsResidualOffset:    int64(binary.LittleEndian.Uint32(buf[16:20])),
		FragmentsResidualCount:     int64(binary.LittleEndian.Uint32(buf[20:24])),
		reservedB:                  binary.LittleEndian.Uint32(buf[24:28]),
		FragmentedFilesystemOffset: int64(binary.LittleEndian.Uint32(buf[28:32])),
		FragmentedFilesystemLength: int64(binary.LittleEndian.Uint32(buf[32:36])),
	}, nil
}

func (h *Header) write(w io.Writer) error {
	var buf [HeaderLength]byte
	copy(buf[0:4], hpkSignature[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.DataOffset)
	binary.LittleEndian.PutUint32(buf[8:12], h.FragmentsPerFile)
	binary.LittleEndian.PutUint32(buf[12:16], h.reservedA)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.FragmentsResidualOffset))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(h.FragmentsResidualCount))
	binary.LittleEndian.PutUint32(buf[24:28], h.reservedB)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(h.FragmentedFilesystemOffset))
	binary.LittleEndian.PutUint32(buf[32:36], uint32(h.FragmentedFilesystemLength))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("%w: writing header: %w", errHpk, err)
	}
	return nil
}

// FilesystemEntries returns the number of fragment rows in the table.
// Each row groups FragmentsPerFile fragments for one filesystem entry.
func (h *Header) FilesystemEntries() int {
	return int(h.FragmentedFilesystemLength / (fragmentSize * int64(h.FragmentsPerFile)))
}

// Fragment addresses a run of bytes in the archive file.
type Fragment struct {
	Offset int64
	Length int64
}

func readFragments(r io.Reader, n int) ([]Fragment, error) {
	fragments := make([]Fragment, 0, n)
	var buf [fragmentSize]byte
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("%w: reading fragment: %w", errHpk, err)
		}
		fragments = append(fragments, Fragment{
			Offset: int64(binary.LittleEndian.Uint32(buf[0:4])),
			Length: int64(binary.LittleEndian.Uint32(buf[4:8])),
		})
	}
	return fragments, nil
}

func (f Fragment) write(w io.Writer) error {
	var buf [fragmentSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.Offset))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(f.Length))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("%w: writing fragment: %w", errHpk, err)
	}
	return nil
}
