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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestHeaderWrite(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := newHeader(0x1234, 40).write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := []byte{
		'B', 'P', 'U', 'L',
		0x24, 0x00, 0x00, 0x00, // data_offset // 36
		0x01, 0x00, 0x00, 0x00, // fragments_per_file
		0xFF, 0xFF, 0xFF, 0xFF, // reserved
		0x00, 0x00, 0x00, 0x00, // fragments_residual_offset
		0x00, 0x00, 0x00, 0x00, // fragments_residual_count
		0x01, 0x00, 0x00, 0x00, // reserved
		0x34, 0x12, 0x00, 0x00, // fragmented_filesystem_offset
		0x28, 0x00, 0x00, 0x00, // fragmented_filesystem_length // 40
	}
	if diff := cmp.Diff(want, buf.Bytes()); diff != "" {
		t.Fatalf("header (-want, +got):\n%s", diff)
	}

	hdr, err := readHeader(&buf)
	if err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if diff := cmp.Diff(uint32(HeaderLength), hdr.DataOffset); diff != "" {
		t.Errorf("DataOffset (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(5, hdr.FilesystemEntries()); diff != "" {
		t.Errorf("FilesystemEntries (-want, +got):\n%s", diff)
	}
}

func TestReadHeaderInvalid(t *testing.T) {
	t.Parallel()

	input := make([]byte, HeaderLength)
	copy(input, "KPUL")

	_, err := readHeader(bytes.NewReader(input))
	if diff := cmp.Diff(ErrInvalidHeader, err, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("readHeader (-want, +got):\n%s", diff)
	}
}

func TestFragmentRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	want := []Fragment{{Offset: 36, Length: 2}, {Offset: 38, Length: 0}}
	for _, f := range want {
		if err := f.write(&buf); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	got, err := readFragments(&buf, len(want))
	if err != nil {
		t.Fatalf("readFragments: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fragments (-want, +got):\n%s", diff)
	}
}

func TestDirEntryRead(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   []byte
		parent  string
		want    *DirEntry
		wantErr error
	}{
		{
			name: "file entry",
			input: []byte{
				0x02, 0x00, 0x00, 0x00, // index // 2
				0x00, 0x00, 0x00, 0x00, // kind // file
				0x03, 0x00, // name_len
				's', 'i', 'x',
			},
			parent: "folder",
			want:   &DirEntry{path: "folder/six", kind: kindFile, index: 1, depth: 1},
		},
		{
			name: "dir entry",
			input: []byte{
				0x05, 0x00, 0x00, 0x00,
				0x01, 0x00, 0x00, 0x00, // kind // dir
				0x06, 0x00,
				'f', 'o', 'l', 'd', 'e', 'r',
			},
			want: &DirEntry{path: "folder", kind: kindDir, index: 4, depth: 1},
		},
		{
			name: "kind uses only the low bit",
			input: []byte{
				0x05, 0x00, 0x00, 0x00,
				0xFD, 0xFF, 0x00, 0x00,
				0x01, 0x00,
				'd',
			},
			want: &DirEntry{path: "d", kind: kindDir, index: 4, depth: 1},
		},
		{
			name: "index zero is reserved",
			input: []byte{
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x01, 0x00,
				'x',
			},
			wantErr: ErrInvalidFragmentIndex,
		},
		{
			name: "invalid utf-8 name",
			input: []byte{
				0x02, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x02, 0x00,
				0xFF, 0xFE,
			},
			wantErr: ErrInvalidDirEntryName,
		},
	}
	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := readDirEntry(bytes.NewReader(tc.input), tc.parent, 1)
			if diff := cmp.Diff(tc.wantErr, err, cmpopts.EquateErrors()); diff != "" {
				t.Fatalf("err (-want, +got):\n%s", diff)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff(tc.want, got, cmp.AllowUnexported(DirEntry{})); diff != "" {
				t.Errorf("entry (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestDirEntryWrite(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	entry := newFileEntry("folder/six", 2, 2)
	if err := entry.write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := []byte{
		0x02, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x03, 0x00,
		's', 'i', 'x',
	}
	if diff := cmp.Diff(want, buf.Bytes()); diff != "" {
		t.Errorf("entry (-want, +got):\n%s", diff)
	}

	// A directory payload's byte length is 10 + name_len per entry.
	if diff := cmp.Diff(10+len("six"), buf.Len()); diff != "" {
		t.Errorf("length (-want, +got):\n%s", diff)
	}
}
