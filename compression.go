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

// Compression identifies the codec of a chunked payload.
type Compression uint8

const (
	// CompressionNone means the payload is stored uncompressed.
	CompressionNone Compression = iota

	// CompressionZlib is the `ZLIB` codec (deflate, best level).
	CompressionZlib

	// CompressionLz4 is the `LZ4 ` codec (raw block format, not frame).
	CompressionLz4

	// CompressionZstd is the `ZSTD` codec. Only decoding is supported;
	// no known title writes it through this tool.
	CompressionZstd
)

// Identifier tags are 4 bytes on the wire; note the trailing space of LZ4.
var (
	idZlib = [4]byte{'Z', 'L', 'I', 'B'}
	idLz4  = [4]byte{'L', 'Z', '4', ' '}
	idZstd = [4]byte{'Z', 'S', 'T', 'D'}
)

func (c Compression) String() string {
	switch c {
	case CompressionZlib:
		return "ZLIB"
	case CompressionLz4:
		return "LZ4"
	case CompressionZstd:
		return "ZSTD"
	default:
		return "None"
	}
}

// IsCompressed reports whether c names an actual codec.
func (c Compression) IsCompressed() bool {
	return c != CompressionNone
}

// readCompression consumes 4 bytes and returns the matching codec, or
// CompressionNone if the bytes are not a known tag.
func readCompression(r io.Reader) (Compression, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return CompressionNone, fmt.Errorf("%w: reading compression tag: %w", errHpk, err)
	}
	switch buf {
	case idZlib:
		return CompressionZlib, nil
	case idLz4:
		return CompressionLz4, nil
	case idZstd:
		return CompressionZstd, nil
	default:
		return CompressionNone, nil
	}
}

func (c Compression) writeIdentifier(w io.Writer) (int64, error) {
	var id [4]byte
	switch c {
	case CompressionZlib:
		id = idZlib
	case CompressionLz4:
		id = idLz4
	case CompressionZstd:
		id = idZstd
	default:
		return 0, nil
	}
	n, err := w.Write(id[:])
	if err != nil {
		return int64(n), fmt.Errorf("%w: writing compression tag: %w", errHpk, err)
	}
	return int64(n), nil
}

// DetectCompression peeks at the next 4 bytes of r and restores the read
// position. A short read means the payload is too small to carry a tag and
// is reported as CompressionNone.
func DetectCompression(r io.ReadSeeker) (Compression, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return CompressionNone, fmt.Errorf("%w: %w", errHpk, err)
	}
	c, err := readCompression(r)
	if err != nil {
		c = CompressionNone
	}
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return CompressionNone, fmt.Errorf("%w: %w", errHpk, err)
	}
	return c, nil
}

// Chunk addresses one codec-encoded chunk within a payload. Offset is
// relative to the payload start.
type Chunk struct {
	Offset int64
	Length int64
}

// CompressionHeader is the per-payload chunk index: identifier, inflated
// length, chunk size and the chunk offset table.
//
// The format stores no chunk count. The first offset doubles as one: the
// offset table ends where the first chunk starts, so an offset of 16 means
// a single chunk and (o1-16)/4 additional offsets follow otherwise. A
// payload that ends right after the fixed fields has no chunks at all;
// Tropico 4 DLC files store empty files that way.
type CompressionHeader struct {
	Compressor     Compression
	InflatedLength uint32
	ChunkSize      uint32
	Chunks         []Chunk
}

const compressionHeaderSize = 12

// ReadCompressionHeader parses a chunk index from r. The length argument
// is the total payload length; chunk lengths are derived from it and from
// the neighbouring offsets, iterating right to left.
func ReadCompressionHeader(r io.Reader, length int64) (*CompressionHeader, error) {
	compressor, err := readCompression(r)
	if err != nil {
		return nil, err
	}

	var fixed [8]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, fmt.Errorf("%w: reading compression header: %w", errHpk, err)
	}
	hdr := &CompressionHeader{
		Compressor:     compressor,
		InflatedLength: binary.LittleEndian.Uint32(fixed[0:4]),
		ChunkSize:      binary.LittleEndian.Uint32(fixed[4:8]),
	}

	var first [4]byte
	switch _, err := io.ReadFull(r, first[:]); {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// no offset table, no chunks
		return hdr, nil
	case err != nil:
		return nil, fmt.Errorf("%w: reading chunk offsets: %w", errHpk, err)
	}

	offsets := []int64{int64(binary.LittleEndian.Uint32(first[:]))}
	if offsets[0] != compressionHeaderSize+4 {
		n := (offsets[0] - (compressionHeaderSize + 4)) / 4
		var buf [4]byte
		for i := int64(0); i < n; i++ {
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, fmt.Errorf("%w: reading chunk offsets: %w", errHpk, err)
			}
			offsets = append(offsets, int64(binary.LittleEndian.Uint32(buf[:])))
		}
	}

	hdr.Chunks = make([]Chunk, len(offsets))
	remaining := length
	for i := len(offsets) - 1; i >= 0; i-- {
		hdr.Chunks[i] = Chunk{
			Offset: offsets[i],
			Length: remaining - offsets[i],
		}
		remaining -= hdr.Chunks[i].Length
	}
	return hdr, nil
}

// writeCompressionHeader emits the 12 fixed bytes and the offset table.
// The given offsets are relative to the chunk data region; they are
// rebased onto the payload start. Returns the full header size, 12 + 4N.
func writeCompressionHeader(w io.Writer, c Compression, inflatedLength, chunkSize uint32, offsets []uint32) (int64, error) {
	if _, err := c.writeIdentifier(w); err != nil {
		return 0, err
	}
	var fixed [8]byte
	binary.LittleEndian.PutUint32(fixed[0:4], inflatedLength)
	binary.LittleEndian.PutUint32(fixed[4:8], chunkSize)
	if _, err := w.Write(fixed[:]); err != nil {
		return 0, fmt.Errorf("%w: writing compression header: %w", errHpk, err)
	}

	tableSize := uint32(len(offsets)) * 4
	var buf [4]byte
	for _, off := range offsets {
		binary.LittleEndian.PutUint32(buf[:], compressionHeaderSize+tableSize+off)
		if _, err := w.Write(buf[:]); err != nil {
			return 0, fmt.Errorf("%w: writing chunk offsets: %w", errHpk, err)
		}
	}
	return int64(compressionHeaderSize + tableSize), nil
}
