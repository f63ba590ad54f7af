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
	"compress/zlib"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// encodeChunk compresses one contiguous chunk into w and returns the
// number of compressed bytes written.
//
// The LZ4 encoder may find a chunk incompressible and emit it verbatim;
// decoders handle that by falling back to a stored copy when a chunk
// fails to decode. Retail archives show the same quirk.
func (c Compression) encodeChunk(w io.Writer, chunk []byte) (int64, error) {
	switch c {
	case CompressionZlib:
		var buf bytes.Buffer
		enc, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if err != nil {
			return 0, fmt.Errorf("%w: zlib: %w", errHpk, err)
		}
		if _, err := enc.Write(chunk); err != nil {
			return 0, fmt.Errorf("%w: zlib: %w", errHpk, err)
		}
		if err := enc.Close(); err != nil {
			return 0, fmt.Errorf("%w: zlib: %w", errHpk, err)
		}
		n, err := io.Copy(w, &buf)
		if err != nil {
			return n, fmt.Errorf("%w: zlib: %w", errHpk, err)
		}
		return n, nil
	case CompressionLz4:
		var compressor lz4.Compressor
		dst := make([]byte, lz4.CompressBlockBound(len(chunk)))
		n, err := compressor.CompressBlock(chunk, dst)
		if err != nil {
			return 0, fmt.Errorf("%w: lz4: %w", errHpk, err)
		}
		if n == 0 {
			// incompressible, store the chunk as is
			written, err := w.Write(chunk)
			if err != nil {
				return int64(written), fmt.Errorf("%w: lz4: %w", errHpk, err)
			}
			return int64(written), nil
		}
		written, err := w.Write(dst[:n])
		if err != nil {
			return int64(written), fmt.Errorf("%w: lz4: %w", errHpk, err)
		}
		return int64(written), nil
	default:
		return 0, fmt.Errorf("%w: no encoder for %s", errHpk, c)
	}
}

// decodeChunk decompresses one chunk into w. The inflated argument is the
// chunk size declared by the compression header and bounds the output of
// block codecs that do not carry their own length.
func (c Compression) decodeChunk(w io.Writer, chunk []byte, inflated int64) (int64, error) {
	switch c {
	case CompressionZlib:
		dec, err := zlib.NewReader(bytes.NewReader(chunk))
		if err != nil {
			return 0, fmt.Errorf("%w: zlib: %w", errHpk, err)
		}
		defer dec.Close()
		n, err := io.Copy(w, dec)
		if err != nil {
			return n, fmt.Errorf("%w: zlib: %w", errHpk, err)
		}
		return n, nil
	case CompressionLz4:
		dst := make([]byte, inflated)
		n, err := lz4.UncompressBlock(chunk, dst)
		if err != nil {
			return 0, fmt.Errorf("%w: lz4: %w", errHpk, err)
		}
		written, err := w.Write(dst[:n])
		if err != nil {
			return int64(written), fmt.Errorf("%w: lz4: %w", errHpk, err)
		}
		return int64(written), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return 0, fmt.Errorf("%w: zstd: %w", errHpk, err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(chunk, nil)
		if err != nil {
			return 0, fmt.Errorf("%w: zstd: %w", errHpk, err)
		}
		written, err := w.Write(out)
		if err != nil {
			return int64(written), fmt.Errorf("%w: zstd: %w", errHpk, err)
		}
		return int64(written), nil
	default:
		return 0, fmt.Errorf("%w: no decoder for %s", errHpk, c)
	}
}
