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

// Package hpk reads and writes the HPK archive container used by several
// Haemimont Games titles (Tropico 3-4, Grand Ages: Rome, Omerta, Victor
// Vran, Surviving Mars).
//
// An archive starts with a fixed 36-byte header, followed by the file and
// directory payloads, followed by a fragment table that addresses every
// payload as an (offset, length) run. File payloads may be chunk-compressed
// with ZLIB, LZ4 or ZSTD, and a finished archive may be wrapped once more
// under the same chunked compression scheme.
//
// Unless otherwise informed clients should not assume implementations in
// this package are safe for parallel execution. In particular, every
// FragmentedReader handed out by a Walker shares the walker's file handle.
package hpk
