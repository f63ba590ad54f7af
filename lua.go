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
	"encoding/binary"
	"io"
	"math"
)

// Victor Vran and Surviving Mars ship Lua 5.3 bytecode with two bytes
// removed from the sizeof section of the header so that a stock Lua
// interpreter rejects the file. Crippling removes the bytes, fixing puts
// them back.
var (
	luaValidHeader32 = []byte{
		0x1B, 0x4C, 0x75, 0x61, 0x53, 0x00,
		0x19, 0x93, 0x0D, 0x0A, 0x1A, 0x0A,
		0x04, 0x04, 0x04, 0x04, 0x08,
		0x78, 0x56, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x28, 0x77, 0x40,
	}
	luaValidHeader64 = []byte{
		0x1B, 0x4C, 0x75, 0x61, 0x53, 0x00,
		0x19, 0x93, 0x0D, 0x0A, 0x1A, 0x0A,
		0x04, 0x04, 0x04, 0x08, 0x08,
		0x78, 0x56, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x28, 0x77, 0x40,
	}
	luaCrippledHeader32 = []byte{
		0x1B, 0x4C, 0x75, 0x61, 0x53, 0x00,
		0x19, 0x93, 0x0D, 0x0A, 0x1A, 0x0A,
		0x04, 0x04, 0x08,
		0x78, 0x56, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x28, 0x77, 0x40,
	}
	luaCrippledHeader64 = []byte{
		0x1B, 0x4C, 0x75, 0x61, 0x53, 0x00,
		0x19, 0x93, 0x0D, 0x0A, 0x1A, 0x0A,
		0x04, 0x04, 0x08,
		0x78, 0x56, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x28, 0x77, 0x40,
	}
)

var (
	luaSig          = []byte{0x1B, 'L', 'u', 'a'}
	luaVersion53Fmt = []byte{0x53, 0x00}
	luacData        = []byte{0x19, 0x93, 0x0D, 0x0A, 0x1A, 0x0A}
)

const (
	luacInt = 0x5678
	luacNum = 370.5

	luaValidSizeofLen    = 5
	luaCrippledSizeofLen = 3
)

// matchLuaHeader structurally matches a Lua 5.3 bytecode header at the
// start of b: signature, version/format, conversion check data, sizeofLen
// opaque size bytes, then LUAC_INT as u32 or u64 and LUAC_NUM as f64.
// It returns the remainder after the header and whether the integer
// variant was 64-bit.
func matchLuaHeader(b []byte, sizeofLen int) (rest []byte, is64 bool, ok bool) {
	if !bytes.HasPrefix(b, luaSig) {
		return nil, false, false
	}
	b = b[len(luaSig):]
	if !bytes.HasPrefix(b, luaVersion53Fmt) {
		return nil, false, false
	}
	b = b[len(luaVersion53Fmt):]
	if !bytes.HasPrefix(b, luacData) {
		return nil, false, false
	}
	b = b[len(luacData):]
	if len(b) < sizeofLen {
		return nil, false, false
	}
	b = b[sizeofLen:]

	if len(b) >= 4+8 {
		if binary.LittleEndian.Uint32(b) == luacInt &&
			math.Float64frombits(binary.LittleEndian.Uint64(b[4:])) == luacNum {
			return b[4+8:], false, true
		}
	}
	if len(b) >= 8+8 {
		if binary.LittleEndian.Uint64(b) == luacInt &&
			math.Float64frombits(binary.LittleEndian.Uint64(b[8:])) == luacNum {
			return b[8+8:], true, true
		}
	}
	return nil, false, false
}

// luaCrippleReader rewrites a valid Lua 5.3 header to the crippled form on
// its first read and passes everything through afterwards.
type luaCrippleReader struct {
	inner io.Reader
	done  bool
}

// NewLuaCrippleReader returns a reader that removes two bytes from a
// leading valid Lua 5.3 bytecode header. Input without such a header is
// passed through unchanged.
func NewLuaCrippleReader(r io.Reader) io.Reader {
	return &luaCrippleReader{inner: r}
}

func (l *luaCrippleReader) Read(p []byte) (int, error) {
	if l.done {
		return l.inner.Read(p)
	}
	l.done = true

	tmp := make([]byte, len(p))
	n, err := l.inner.Read(tmp)
	if n == 0 {
		return 0, err
	}
	rest, is64, ok := matchLuaHeader(tmp[:n], luaValidSizeofLen)
	if !ok {
		return copy(p, tmp[:n]), err
	}
	hdr := luaCrippledHeader32
	if is64 {
		hdr = luaCrippledHeader64
	}
	m := copy(p, hdr)
	m += copy(p[m:], rest)
	return m, err
}

// luaFixWriter rewrites a crippled Lua 5.3 header to the valid form on its
// first write and passes everything through afterwards.
//
// The rewritten header is two bytes longer than the crippled input, but
// Write reports the pre-expansion count: a copy loop must see exactly as
// many bytes written as it handed in, and Go's write contract demands the
// same, so the two extra bytes are deliberately not acknowledged.
type luaFixWriter struct {
	inner io.Writer
	done  bool
}

// NewLuaFixWriter returns a writer that reinstates the two missing bytes
// of a leading crippled Lua 5.3 bytecode header. Output without such a
// header is passed through unchanged.
func NewLuaFixWriter(w io.Writer) io.Writer {
	return &luaFixWriter{inner: w}
}

func (l *luaFixWriter) Write(p []byte) (int, error) {
	if l.done {
		return l.inner.Write(p)
	}
	l.done = true

	rest, is64, ok := matchLuaHeader(p, luaCrippledSizeofLen)
	if !ok {
		return l.inner.Write(p)
	}
	hdr := luaValidHeader32
	if is64 {
		hdr = luaValidHeader64
	}
	n, err := l.inner.Write(hdr)
	if err != nil {
		return min(n, len(p)), err
	}
	n -= 2 // ignore the two additional bytes
	m, err := l.inner.Write(rest)
	return n + m, err
}
