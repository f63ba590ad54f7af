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

// A 24-byte payload fits one default-sized chunk: the offset table holds
// the single offset 16.
func TestCompressSingleChunk(t *testing.T) {
	t.Parallel()

	input := []byte("Hello World, Hello World")

	var payload bytes.Buffer
	if _, err := Compress(NewCompressOptions(), bytes.NewReader(input), &payload); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	want := []byte{
		'Z', 'L', 'I', 'B',
		0x18, 0x00, 0x00, 0x00, // inflated_length // 24
		0x00, 0x80, 0x00, 0x00, // chunk_size // 32768
		0x10, 0x00, 0x00, 0x00, // offsets // [16]
	}
	if diff := cmp.Diff(want, payload.Bytes()[:16]); diff != "" {
		t.Fatalf("header (-want, +got):\n%s", diff)
	}

	hdr, err := ReadCompressionHeader(bytes.NewReader(payload.Bytes()), int64(payload.Len()))
	if err != nil {
		t.Fatalf("ReadCompressionHeader: %v", err)
	}
	if diff := cmp.Diff(uint32(24), hdr.InflatedLength); diff != "" {
		t.Errorf("InflatedLength (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(uint32(DefaultChunkSize), hdr.ChunkSize); diff != "" {
		t.Errorf("ChunkSize (-want, +got):\n%s", diff)
	}
	wantChunks := []Chunk{{Offset: 16, Length: int64(payload.Len()) - 16}}
	if diff := cmp.Diff(wantChunks, hdr.Chunks); diff != "" {
		t.Errorf("Chunks (-want, +got):\n%s", diff)
	}

	var out bytes.Buffer
	if _, err := decompress(hdr.Compressor, int64(payload.Len()), bytes.NewReader(payload.Bytes()), &out); err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if diff := cmp.Diff(input, out.Bytes()); diff != "" {
		t.Errorf("round trip (-want, +got):\n%s", diff)
	}
}

// An empty payload is written as a compression header without any chunks,
// the same behaviour as in a DLC file for Tropico 4.
func TestCompressEmpty(t *testing.T) {
	t.Parallel()

	var payload bytes.Buffer
	n, err := Compress(NewCompressOptions(), bytes.NewReader(nil), &payload)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if diff := cmp.Diff(int64(12), n); diff != "" {
		t.Fatalf("written (-want, +got):\n%s", diff)
	}

	want := []byte{
		'Z', 'L', 'I', 'B',
		0x00, 0x00, 0x00, 0x00, // inflated_length // 0
		0x00, 0x80, 0x00, 0x00, // chunk_size // 32768
	}
	if diff := cmp.Diff(want, payload.Bytes()); diff != "" {
		t.Fatalf("payload (-want, +got):\n%s", diff)
	}

	hdr, err := ReadCompressionHeader(bytes.NewReader(payload.Bytes()), int64(payload.Len()))
	if err != nil {
		t.Fatalf("ReadCompressionHeader: %v", err)
	}
	if diff := cmp.Diff(uint32(0), hdr.InflatedLength); diff != "" {
		t.Errorf("InflatedLength (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(0, len(hdr.Chunks)); diff != "" {
		t.Errorf("Chunks (-want, +got):\n%s", diff)
	}
}

// With N chunks the first offset is 12 + 4N: the table size is recovered
// from it without a count field.
func TestCompressMultiChunk(t *testing.T) {
	t.Parallel()

	input := bytes.Repeat([]byte("abcdefgh"), 64) // 512 bytes
	opts := &CompressOptions{ChunkSize: 200, Compressor: CompressionZlib}

	var payload bytes.Buffer
	if _, err := Compress(opts, bytes.NewReader(input), &payload); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	hdr, err := ReadCompressionHeader(bytes.NewReader(payload.Bytes()), int64(payload.Len()))
	if err != nil {
		t.Fatalf("ReadCompressionHeader: %v", err)
	}
	if diff := cmp.Diff(3, len(hdr.Chunks)); diff != "" {
		t.Fatalf("chunk count (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(uint32(512), hdr.InflatedLength); diff != "" {
		t.Errorf("InflatedLength (-want, +got):\n%s", diff)
	}

	// first chunk offset minus header size equals the offset table size
	if diff := cmp.Diff(int64(compressionHeaderSize+4*3), hdr.Chunks[0].Offset); diff != "" {
		t.Errorf("first offset (-want, +got):\n%s", diff)
	}

	// chunks tile the payload
	var total int64 = hdr.Chunks[0].Offset
	for i, chunk := range hdr.Chunks {
		if diff := cmp.Diff(total, chunk.Offset); diff != "" {
			t.Errorf("chunk %d offset (-want, +got):\n%s", i, diff)
		}
		total += chunk.Length
	}
	if diff := cmp.Diff(int64(payload.Len()), total); diff != "" {
		t.Errorf("payload end (-want, +got):\n%s", diff)
	}

	var out bytes.Buffer
	if _, err := decompress(hdr.Compressor, int64(payload.Len()), bytes.NewReader(payload.Bytes()), &out); err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if diff := cmp.Diff(input, out.Bytes()); diff != "" {
		t.Errorf("round trip (-want, +got):\n%s", diff)
	}
}

func TestCompressLz4RoundTrip(t *testing.T) {
	t.Parallel()

	input := bytes.Repeat([]byte("Hello World, "), 100)
	opts := &CompressOptions{ChunkSize: 256, Compressor: CompressionLz4}

	var payload bytes.Buffer
	if _, err := Compress(opts, bytes.NewReader(input), &payload); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	hdr, err := ReadCompressionHeader(bytes.NewReader(payload.Bytes()), int64(payload.Len()))
	if err != nil {
		t.Fatalf("ReadCompressionHeader: %v", err)
	}
	if diff := cmp.Diff(CompressionLz4, hdr.Compressor); diff != "" {
		t.Fatalf("compressor (-want, +got):\n%s", diff)
	}

	var out bytes.Buffer
	if _, err := decompress(hdr.Compressor, int64(payload.Len()), bytes.NewReader(payload.Bytes()), &out); err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if diff := cmp.Diff(input, out.Bytes()); diff != "" {
		t.Errorf("round trip (-want, +got):\n%s", diff)
	}
}
