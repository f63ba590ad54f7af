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

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"

	hpk "github.com/hpktools/go-hpk"
)

type list struct {
	file  string
	paths []string
}

func newListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List the content of a hpk archive",
		ArgsUsage: "<file> [paths...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("%w: expected <file> argument", ErrUsage)
			}
			cmd := &list{
				file:  c.Args().Get(0),
				paths: c.Args().Slice()[1:],
			}
			return cmd.Run()
		},
	}
}

func (l *list) Run() error {
	globs, err := hpk.CompilePatterns(l.paths)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	matches := func(path string) bool {
		if len(globs) == 0 {
			return true
		}
		for _, g := range globs {
			if g.Match(path) {
				return true
			}
		}
		return false
	}

	w, err := hpk.Walk(l.file)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHpk, err)
	}
	defer w.Close()

	tbl := table.New("path", "size", "compressed", "uncompressed")
	for {
		entry, err := w.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrHpk, err)
		}
		if entry.IsDir() || !matches(entry.Path()) {
			continue
		}

		var stored int64
		for _, f := range w.Fragments[entry.Index()] {
			stored += f.Length
		}

		compression := hpk.CompressionNone
		inflated := stored
		err = w.ReadFile(entry, func(r *hpk.FragmentedReader) error {
			c, err := hpk.DetectCompression(r)
			if err != nil || !c.IsCompressed() {
				return err
			}
			compression = c
			hdr, err := hpk.ReadCompressionHeader(r, r.Len())
			if err != nil {
				return err
			}
			inflated = int64(hdr.InflatedLength)
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrHpk, err)
		}

		tbl.AddRow(entry.Path(), stored, compression, inflated)
	}
	tbl.Print()

	return nil
}
