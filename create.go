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
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// The Windows epoch starts 1601-01-01T00:00:00Z, secToUnixEpoch
	// seconds before the Unix epoch.
	secToUnixEpoch = 11_644_473_600
	windowsTicks   = 10_000_000
)

// FileDateFormat selects how modification times are stored in the
// _filedates file.
type FileDateFormat int

const (
	// FiledatesNone disables the _filedates file.
	FiledatesNone FileDateFormat = iota

	// FiledatesDefault stores Windows file times, as used by Tropico 3
	// and Grand Ages: Rome.
	FiledatesDefault

	// FiledatesShort stores Windows file times divided by 2000, as used
	// by Tropico 4 and Omerta. Tropico 5 and Victor Vran don't seem to
	// use the file anymore.
	FiledatesShort
)

// DefaultExtensions returns the file extensions that are chunk-compressed
// by default.
func DefaultExtensions() []string {
	return []string{"lst", "lua", "xml", "tga", "dds", "xtex", "bin", "csv"}
}

// CreateOptions control archive creation.
//
// Files whose lowercase extension is listed in Extensions are stored as
// chunked payloads; an empty slice disables per-file compression
// entirely. Compress additionally wraps the finished archive under one
// outer compression layer with the same codec settings.
type CreateOptions struct {
	Compress        bool
	CompressOptions CompressOptions
	CrippleLuaFiles bool
	Extensions      []string
	FiledateFormat  FileDateFormat
}

// NewCreateOptions returns the default creation options: ZLIB with 32 KiB
// chunks for the default extension set, no outer compression.
func NewCreateOptions() *CreateOptions {
	return &CreateOptions{
		CompressOptions: *NewCompressOptions(),
		Extensions:      DefaultExtensions(),
	}
}

// filedateValue converts a modification time for the _filedates file.
func (o *CreateOptions) filedateValue(p string) (int64, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errHpk, err)
	}
	ticks := (fi.ModTime().Unix() + secToUnixEpoch) * windowsTicks
	if o.FiledateFormat == FiledatesShort {
		return ticks / 2000, nil
	}
	return ticks, nil
}

// Create builds a new archive at file from the contents of dir.
//
// Entries are written contents-first with siblings in byte order of their
// names. A directory's serialised entries accumulate in a per-path buffer
// until the directory's own slot is reached, because child fragment
// indices are only known after the children are written. The root
// directory is serialised last but occupies fragment row 0.
func Create(opts *CreateOptions, dir, file string) error {
	c := &creator{
		opts:    opts,
		root:    dir,
		buffers: make(map[string]*bytes.Buffer),
	}

	var tmpFile string
	out := file
	if opts.Compress {
		tmpDir, err := os.MkdirTemp("", "hpk")
		if err != nil {
			return fmt.Errorf("%w: %w", errHpk, err)
		}
		defer os.RemoveAll(tmpDir)
		tmpFile = filepath.Join(tmpDir, filepath.Base(file))
		out = tmpFile
	}

	w, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("%w: creating archive: %w", errHpk, err)
	}
	defer w.Close()
	c.w = w

	if _, err := w.Seek(HeaderLength, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}

	if err := c.walkDir("", 0); err != nil {
		return err
	}

	fsOffset, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	fsLength := int64(len(c.fragments)) * fragmentSize
	for _, f := range c.fragments {
		if err := f.write(w); err != nil {
			return err
		}
	}

	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	if err := newHeader(fsOffset, fsLength).write(w); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}

	if opts.Compress {
		in, err := os.Open(tmpFile)
		if err != nil {
			return fmt.Errorf("%w: %w", errHpk, err)
		}
		defer in.Close()
		dst, err := os.Create(file)
		if err != nil {
			return fmt.Errorf("%w: creating archive: %w", errHpk, err)
		}
		defer dst.Close()
		if _, err := Compress(&opts.CompressOptions, in, dst); err != nil {
			return err
		}
		if err := dst.Close(); err != nil {
			return fmt.Errorf("%w: %w", errHpk, err)
		}
	}
	return nil
}

type creator struct {
	opts *CreateOptions
	root string
	w    *os.File

	fragments []Fragment

	// buffers accumulate serialised DirEntries keyed by the slash path of
	// their parent directory.
	buffers map[string]*bytes.Buffer

	filedates bytes.Buffer
}

// walkDir visits rel's children in sorted order, files and recursed
// subdirectories first, then serialises rel itself.
func (c *creator) walkDir(rel string, depth int) error {
	abs := filepath.Join(c.root, filepath.FromSlash(rel))
	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("%w: walking source: %w", errHpk, err)
	}
	for _, de := range entries {
		childRel := path.Join(rel, de.Name())
		switch {
		case de.IsDir():
			if err := c.walkDir(childRel, depth+1); err != nil {
				return err
			}
		case de.Type().IsRegular():
			if err := c.addFile(childRel, depth+1); err != nil {
				return err
			}
		}
	}
	return c.addDir(rel, depth)
}

func (c *creator) addFiledateLine(rel string) error {
	if c.opts.FiledateFormat == FiledatesNone {
		return nil
	}
	val, err := c.opts.filedateValue(filepath.Join(c.root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	fmt.Fprintf(&c.filedates, "%s=%d\n", rel, val)
	return nil
}

func (c *creator) addFile(rel string, depth int) error {
	if err := c.addFiledateLine(rel); err != nil {
		return err
	}

	fragment, err := c.writeFile(rel)
	if err != nil {
		return err
	}
	c.fragments = append(c.fragments, fragment)

	// One-based wire index, plus one for the root fragment that is
	// inserted at row 0 after the walk.
	entry := newFileEntry(rel, len(c.fragments)+1, depth)
	return entry.write(c.parentBuffer(rel))
}

func (c *creator) addDir(rel string, depth int) error {
	if depth > 0 {
		if err := c.addFiledateLine(rel); err != nil {
			return err
		}
	}

	buf := c.buffers[rel]
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	delete(c.buffers, rel)

	// The _filedates file lives at depth 1 in the root directory and is
	// appended right before the root is serialised.
	if depth == 0 && c.opts.FiledateFormat != FiledatesNone {
		pos, err := c.w.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("%w: %w", errHpk, err)
		}
		n, err := io.Copy(c.w, &c.filedates)
		if err != nil {
			return fmt.Errorf("%w: writing _filedates: %w", errHpk, err)
		}
		c.fragments = append(c.fragments, Fragment{Offset: pos, Length: n})
		entry := newFileEntry("_filedates", len(c.fragments)+1, 1)
		if err := entry.write(buf); err != nil {
			return err
		}
	}

	pos, err := c.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("%w: %w", errHpk, err)
	}
	n, err := io.Copy(c.w, buf)
	if err != nil {
		return fmt.Errorf("%w: writing directory: %w", errHpk, err)
	}
	fragment := Fragment{Offset: pos, Length: n}

	if depth > 0 {
		c.fragments = append(c.fragments, fragment)
		entry := newDirEntry(rel, len(c.fragments)+1, depth)
		return entry.write(c.parentBuffer(rel))
	}

	// root dir must be the first fragment
	c.fragments = slices.Insert(c.fragments, 0, fragment)
	return nil
}

func (c *creator) parentBuffer(rel string) *bytes.Buffer {
	parent := path.Dir(rel)
	if parent == "." {
		parent = ""
	}
	buf := c.buffers[parent]
	if buf == nil {
		buf = &bytes.Buffer{}
		c.buffers[parent] = buf
	}
	return buf
}

// writeFile appends the payload of one source file, optionally crippling
// its Lua header and compressing it in chunks.
func (c *creator) writeFile(rel string) (Fragment, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(rel), "."))
	compress := slices.Contains(c.opts.Extensions, ext)

	fin, err := os.Open(filepath.Join(c.root, filepath.FromSlash(rel)))
	if err != nil {
		return Fragment{}, fmt.Errorf("%w: %w", errHpk, err)
	}
	defer fin.Close()

	pos, err := c.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return Fragment{}, fmt.Errorf("%w: %w", errHpk, err)
	}

	var r io.Reader = fin
	if c.opts.CrippleLuaFiles && ext == "lua" {
		r = NewLuaCrippleReader(r)
	}

	var n int64
	if compress {
		n, err = Compress(&c.opts.CompressOptions, r, c.w)
	} else {
		n, err = io.Copy(c.w, r)
		if err != nil {
			err = fmt.Errorf("%w: %w", errHpk, err)
		}
	}
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{Offset: pos, Length: n}, nil
}
