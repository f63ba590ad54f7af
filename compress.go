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
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the chunk size used when compressing payloads.
const DefaultChunkSize = 32768

// CompressOptions selects the codec and chunking of a compressed payload.
type CompressOptions struct {
	ChunkSize  uint32
	Compressor Compression
}

// NewCompressOptions returns the defaults observed in retail archives:
// ZLIB with 32 KiB chunks.
func NewCompressOptions() *CompressOptions {
	return &CompressOptions{
		ChunkSize:  DefaultChunkSize,
		Compressor: CompressionZlib,
	}
}

// Compress encodes r into w as a chunked payload: a CompressionHeader
// followed by the codec-encoded chunks. It returns the total number of
// bytes written.
//
// If r yields no data at all the compression header is written without
// any chunks; Tropico 4 DLC files store empty files the same way.
func Compress(opts *CompressOptions, r io.Reader, w io.Writer) (int64, error) {
	var inflatedLength uint32
	var output bytes.Buffer
	var offsets []uint32

	chunk := make([]byte, opts.ChunkSize)
	for {
		n, err := io.ReadFull(r, chunk)
		if n == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				break
			}
			return 0, fmt.Errorf("%w: reading chunk: %w", errHpk, err)
		}
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("%w: reading chunk: %w", errHpk, err)
		}
		inflatedLength += uint32(n)

		offsets = append(offsets, uint32(output.Len()))
		if _, err := opts.Compressor.encodeChunk(&output, chunk[:n]); err != nil {
			return 0, err
		}
		if n < len(chunk) {
			break
		}
	}

	headerSize, err := writeCompressionHeader(w, opts.Compressor, inflatedLength, opts.ChunkSize, offsets)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, &output)
	if err != nil {
		return headerSize + n, fmt.Errorf("%w: writing chunks: %w", errHpk, err)
	}
	return headerSize + n, nil
}

// decompress reads a chunked payload of the given total length from r and
// writes the inflated data to w. A chunk that fails to decode is copied
// through verbatim: encoders write chunks raw when compression would not
// shrink them.
func decompress(c Compression, length int64, r io.Reader, w io.Writer) (int64, error) {
	hdr, err := ReadCompressionHeader(r, length)
	if err != nil {
		return 0, err
	}
	var written int64
	for _, chunk := range hdr.Chunks {
		buf := make([]byte, chunk.Length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return written, fmt.Errorf("%w: reading chunk: %w", errHpk, err)
		}
		n, err := c.decodeChunk(w, buf, int64(hdr.ChunkSize))
		if err != nil {
			// chunk seems to be not compressed
			m, err := w.Write(buf)
			written += int64(m)
			if err != nil {
				return written, fmt.Errorf("%w: writing chunk: %w", errHpk, err)
			}
			continue
		}
		written += n
	}
	return written, nil
}

// Copy writes the content of a file entry to w, transparently inflating
// chunked payloads. Stored payloads are copied as is.
func Copy(w io.Writer, r *FragmentedReader) (int64, error) {
	c, err := DetectCompression(r)
	if err != nil {
		return 0, err
	}
	if !c.IsCompressed() {
		n, err := io.Copy(w, r)
		if err != nil {
			return n, fmt.Errorf("%w: %w", errHpk, err)
		}
		return n, nil
	}
	return decompress(c, r.Len(), r, w)
}
