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

	"github.com/urfave/cli/v2"

	hpk "github.com/hpktools/go-hpk"
)

type debugPrint struct {
	file       string
	headerOnly bool
}

func newPrintCommand() *cli.Command {
	return &cli.Command{
		Name:      "debug-print",
		Aliases:   []string{"print"},
		Usage:     "Print debug information of a hpk archive",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:               "header-only",
				Usage:              "print only the header information",
				DisableDefaultText: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("%w: expected <file> argument", ErrUsage)
			}
			cmd := &debugPrint{
				file:       c.Args().Get(0),
				headerOnly: c.Bool("header-only"),
			}
			return cmd.Run()
		},
	}
}

func (d *debugPrint) Run() error {
	w, err := hpk.Walk(d.file)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHpk, err)
	}
	defer w.Close()

	fmt.Printf("reading file: %s\n", w.Path())
	if w.IsCompressed() {
		fmt.Println("file is compressed")
	}
	hdr := w.Header()
	fmt.Println("header:")
	fmt.Printf("  data_offset: 0x%X\n", hdr.DataOffset)
	fmt.Printf("  fragments_residual_offset: 0x%X\n", hdr.FragmentsResidualOffset)
	fmt.Printf("  fragments_residual_count: %d\n", hdr.FragmentsResidualCount)
	fmt.Printf("  fragments_per_file: %d\n", hdr.FragmentsPerFile)
	fmt.Printf("  fragmented_filesystem_offset: 0x%X\n", hdr.FragmentedFilesystemOffset)
	fmt.Printf("  fragmented_filesystem_length: %d\n", hdr.FragmentedFilesystemLength)
	fmt.Printf("filesystem entries: %d\n", hdr.FilesystemEntries())

	if d.headerOnly {
		return nil
	}

	fmt.Println("filesystem fragments:")
	for _, row := range w.Fragments {
		prefix := "- "
		if hdr.FragmentsPerFile == 1 {
			prefix = "  "
		}
		for _, f := range row {
			fmt.Printf("%s0x%-6X len: %d\n", prefix, f.Offset, f.Length)
			prefix = "  "
		}
	}
	if len(w.Residuals) > 0 {
		fmt.Println("residual fragments:")
		for _, f := range w.Residuals {
			fmt.Printf("  0x%-6X len: %d\n", f.Offset, f.Length)
		}
	}

	for {
		entry, err := w.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrHpk, err)
		}

		kind := "file:"
		if entry.IsDir() {
			kind = "dir: "
		}
		fmt.Printf("%s index=%d depth=%d %q\n", kind, entry.Index()+1, entry.Depth(), entry.Path())
		fragment := w.Fragments[entry.Index()][0]
		fmt.Printf(" fragment: 0x%X len: %d\n", fragment.Offset, fragment.Length)

		err = w.ReadFile(entry, func(r *hpk.FragmentedReader) error {
			if r.Len() == 0 {
				fmt.Println(" empty file")
				return nil
			}
			c, err := hpk.DetectCompression(r)
			if err != nil {
				return err
			}
			if !c.IsCompressed() {
				fmt.Println(" compressed: no")
				return nil
			}
			chdr, err := hpk.ReadCompressionHeader(r, r.Len())
			if err != nil {
				return err
			}
			fmt.Printf(" compressed: %s inflated_length=%d chunk_size=%d chunks=%d\n",
				chdr.Compressor, chdr.InflatedLength, chdr.ChunkSize, len(chdr.Chunks))
			prefix := "  chunks: "
			for _, chunk := range chdr.Chunks {
				fmt.Printf("%s0x%-6X len: %d\n", prefix, chunk.Offset, chunk.Length)
				prefix = "          "
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrHpk, err)
		}
	}
	return nil
}
