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
)

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		codec Compression
		input []byte
	}{
		{"zlib", CompressionZlib, []byte("Hello World")},
		{"zlib repeated", CompressionZlib, bytes.Repeat([]byte("Hello World, "), 100)},
		{"lz4 repeated", CompressionLz4, bytes.Repeat([]byte("Hello World, "), 100)},
	}
	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var encoded bytes.Buffer
			if _, err := tc.codec.encodeChunk(&encoded, tc.input); err != nil {
				t.Fatalf("encodeChunk: %v", err)
			}

			var decoded bytes.Buffer
			n, err := tc.codec.decodeChunk(&decoded, encoded.Bytes(), int64(len(tc.input)))
			if err != nil {
				t.Fatalf("decodeChunk: %v", err)
			}
			if diff := cmp.Diff(int64(len(tc.input)), n); diff != "" {
				t.Errorf("decoded length (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.input, decoded.Bytes()); diff != "" {
				t.Errorf("decoded (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestReadCompression(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input string
		want  Compression
	}{
		{"ZLIB", CompressionZlib},
		{"LZ4 ", CompressionLz4},
		{"ZSTD", CompressionZstd},
		{"BPUL", CompressionNone},
		{"\x00\x00\x00\x00", CompressionNone},
	}
	for _, tc := range testCases {
		got, err := readCompression(bytes.NewReader([]byte(tc.input)))
		if err != nil {
			t.Fatalf("readCompression(%q): %v", tc.input, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("readCompression(%q) (-want, +got):\n%s", tc.input, diff)
		}
	}
}

func TestDetectCompressionRestoresPosition(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte("ZLIBxxxx"))
	c, err := DetectCompression(r)
	if err != nil {
		t.Fatalf("DetectCompression: %v", err)
	}
	if diff := cmp.Diff(CompressionZlib, c); diff != "" {
		t.Fatalf("codec (-want, +got):\n%s", diff)
	}

	head := make([]byte, 4)
	if _, err := r.Read(head); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff([]byte("ZLIB"), head); diff != "" {
		t.Errorf("position not restored (-want, +got):\n%s", diff)
	}
}

// A chunk that fails to decode is passed through verbatim: encoders write
// chunks raw when compression would not shrink them.
func TestDecompressStoredChunkFallback(t *testing.T) {
	t.Parallel()

	raw := []byte("stored chunk, not zlib data")

	var payload bytes.Buffer
	if _, err := writeCompressionHeader(&payload, CompressionZlib, uint32(len(raw)), DefaultChunkSize, []uint32{0}); err != nil {
		t.Fatalf("writeCompressionHeader: %v", err)
	}
	payload.Write(raw)

	var out bytes.Buffer
	n, err := decompress(CompressionZlib, int64(payload.Len()), bytes.NewReader(payload.Bytes()), &out)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if diff := cmp.Diff(int64(len(raw)), n); diff != "" {
		t.Errorf("written (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(raw, out.Bytes()); diff != "" {
		t.Errorf("output (-want, +got):\n%s", diff)
	}
}
