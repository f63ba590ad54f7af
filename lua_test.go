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
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatchLuaHeader(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		input     []byte
		sizeofLen int
		want64    bool
		wantOK    bool
	}{
		{"valid 32", luaValidHeader32, luaValidSizeofLen, false, true},
		{"valid 64", luaValidHeader64, luaValidSizeofLen, true, true},
		{"crippled 32", luaCrippledHeader32, luaCrippledSizeofLen, false, true},
		{"crippled 64", luaCrippledHeader64, luaCrippledSizeofLen, true, true},
		{"crippled not valid", luaCrippledHeader64, luaValidSizeofLen, false, false},
		{"truncated", luaValidHeader64[:20], luaValidSizeofLen, false, false},
		{"plain text", []byte("print('hello')"), luaValidSizeofLen, false, false},
	}
	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rest, is64, ok := matchLuaHeader(tc.input, tc.sizeofLen)
			if diff := cmp.Diff(tc.wantOK, ok); diff != "" {
				t.Fatalf("ok (-want, +got):\n%s", diff)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tc.want64, is64); diff != "" {
				t.Errorf("is64 (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(0, len(rest)); diff != "" {
				t.Errorf("rest (-want, +got):\n%s", diff)
			}
		})
	}
}

// A 64-bit header shrinks to 31 bytes when crippled and the fix restores
// the original 33 bytes, with the copy counts lying accordingly.
func TestLuaHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	tail := []byte{0xCA, 0xFE, 0xCA, 0xFE}
	input := append(append([]byte{}, luaValidHeader64...), tail...)

	var crippled bytes.Buffer
	n, err := io.Copy(&crippled, NewLuaCrippleReader(bytes.NewReader(input)))
	if err != nil {
		t.Fatalf("io.Copy: %v", err)
	}
	if diff := cmp.Diff(int64(len(luaCrippledHeader64)+len(tail)), n); diff != "" {
		t.Fatalf("crippled count (-want, +got):\n%s", diff)
	}
	wantCrippled := append(append([]byte{}, luaCrippledHeader64...), tail...)
	if diff := cmp.Diff(wantCrippled, crippled.Bytes()); diff != "" {
		t.Fatalf("crippled (-want, +got):\n%s", diff)
	}

	var fixed bytes.Buffer
	n, err = io.Copy(NewLuaFixWriter(&fixed), bytes.NewReader(crippled.Bytes()))
	if err != nil {
		t.Fatalf("io.Copy: %v", err)
	}
	// The fix writer under-reports by the two reinstated bytes so that
	// copy loops stay in step with their input.
	if diff := cmp.Diff(int64(len(luaCrippledHeader64)+len(tail)), n); diff != "" {
		t.Fatalf("fixed count (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(input, fixed.Bytes()); diff != "" {
		t.Errorf("fixed (-want, +got):\n%s", diff)
	}
}

func TestLuaHeaderRoundTrip32(t *testing.T) {
	t.Parallel()

	tail := []byte{0x01, 0x02, 0x03}
	input := append(append([]byte{}, luaValidHeader32...), tail...)

	var crippled bytes.Buffer
	if _, err := io.Copy(&crippled, NewLuaCrippleReader(bytes.NewReader(input))); err != nil {
		t.Fatalf("io.Copy: %v", err)
	}
	wantCrippled := append(append([]byte{}, luaCrippledHeader32...), tail...)
	if diff := cmp.Diff(wantCrippled, crippled.Bytes()); diff != "" {
		t.Fatalf("crippled (-want, +got):\n%s", diff)
	}

	var fixed bytes.Buffer
	if _, err := io.Copy(NewLuaFixWriter(&fixed), bytes.NewReader(crippled.Bytes())); err != nil {
		t.Fatalf("io.Copy: %v", err)
	}
	if diff := cmp.Diff(input, fixed.Bytes()); diff != "" {
		t.Errorf("fixed (-want, +got):\n%s", diff)
	}
}

func TestLuaRewriterPassThrough(t *testing.T) {
	t.Parallel()

	input := []byte("-- plain lua source, no bytecode header")

	var out bytes.Buffer
	if _, err := io.Copy(&out, NewLuaCrippleReader(bytes.NewReader(input))); err != nil {
		t.Fatalf("io.Copy: %v", err)
	}
	if diff := cmp.Diff(input, out.Bytes()); diff != "" {
		t.Errorf("cripple pass-through (-want, +got):\n%s", diff)
	}

	out.Reset()
	if _, err := io.Copy(NewLuaFixWriter(&out), bytes.NewReader(input)); err != nil {
		t.Fatalf("io.Copy: %v", err)
	}
	if diff := cmp.Diff(input, out.Bytes()); diff != "" {
		t.Errorf("fix pass-through (-want, +got):\n%s", diff)
	}
}
