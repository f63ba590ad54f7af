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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// filedatesName is the reserved file carrying modification times at
// depth 1 of the archive.
const filedatesName = "_filedates"

// ExtractOptions control archive extraction.
type ExtractOptions struct {
	// Paths filters the extracted members; empty means everything.
	Paths []glob.Glob

	// SkipFiledates extracts the _filedates file verbatim instead of
	// applying the stored modification times.
	SkipFiledates bool

	// FixLuaFiles reinstates the crippled Lua 5.3 bytecode headers of
	// Victor Vran's and Surviving Mars' .lua files.
	FixLuaFiles bool

	// OnEntry, if set, is called with the path of every extracted file.
	OnEntry func(path string)
}

// NewExtractOptions returns the default extraction options.
func NewExtractOptions() *ExtractOptions {
	return &ExtractOptions{}
}

// CompilePatterns compiles glob patterns for member filtering.
func CompilePatterns(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %w", errHpk, p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func (o *ExtractOptions) matches(p string) bool {
	if len(o.Paths) == 0 {
		return true
	}
	for _, g := range o.Paths {
		if g.Match(p) {
			return true
		}
	}
	return false
}

// Extract materialises the entries of the archive at file into dest.
// It aborts on the first hard error; partial output is left in place for
// the caller to clean up.
func Extract(opts *ExtractOptions, file, dest string) error {
	w, err := Walk(file)
	if err != nil {
		return err
	}
	defer w.Close()

	for {
		entry, err := w.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !opts.matches(entry.Path()) {
			continue
		}

		target := filepath.Join(dest, filepath.FromSlash(entry.Path()))
		if entry.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("%w: %w", errHpk, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("%w: %w", errHpk, err)
		}

		err = w.ReadFile(entry, func(r *FragmentedReader) error {
			if opts.OnEntry != nil {
				opts.OnEntry(target)
			}
			if !opts.SkipFiledates && entry.Depth() == 1 && entry.Path() == filedatesName {
				return processFiledates(dest, r)
			}
			return extractFile(opts, entry, target, r)
		})
		if err != nil {
			return err
		}
	}
}

func extractFile(opts *ExtractOptions, entry *DirEntry, target string, r *FragmentedReader) error {
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	defer out.Close()

	var w io.Writer = out
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(entry.Path()), "."))
	if opts.FixLuaFiles && ext == "lua" {
		w = NewLuaFixWriter(w)
	}
	if _, err := Copy(w, r); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	return nil
}

// processFiledates applies the modification times stored in a _filedates
// payload to the extracted files.
//
// Each line reads `relative/path=INTEGER`. The integer is a Windows file
// time, or a Windows file time divided by 2000 in the short format of
// Tropico 4 and Omerta; a value whose upshift by 2000 would overflow is
// already in tick form. Lines that don't parse are skipped.
func processFiledates(dest string, r *FragmentedReader) error {
	var buf bytes.Buffer
	if _, err := Copy(&buf, r); err != nil {
		return err
	}

	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		line := scanner.Text()
		eq := strings.LastIndexByte(line, '=')
		if eq < 0 {
			continue
		}
		val, err := strconv.ParseInt(line[eq+1:], 10, 64)
		if err != nil {
			continue
		}
		if val <= math.MaxInt64/2000 && val >= math.MinInt64/2000 {
			val *= 2000
		}
		unixSecs := val/windowsTicks - secToUnixEpoch
		mtime := time.Unix(unixSecs, 0)

		rel := line[:eq]
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if fileExists(target) {
			if err := os.Chtimes(target, mtime, mtime); err != nil {
				return fmt.Errorf("%w: %w", errHpk, err)
			}
			continue
		}

		// Grand Ages: Rome prefixes the paths with the basename of the
		// original hpk file; strip the first component and try again.
		if _, rest, ok := strings.Cut(rel, "/"); ok {
			target = filepath.Join(dest, filepath.FromSlash(rest))
			if fileExists(target) {
				if err := os.Chtimes(target, mtime, mtime); err != nil {
					return fmt.Errorf("%w: %w", errHpk, err)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	return nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
