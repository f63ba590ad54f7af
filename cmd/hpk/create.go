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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	hpk "github.com/hpktools/go-hpk"
)

const filedateFmtHelp = "Format of the stored filedates.\n" +
	"   default: 'Windows file time' used by Tropico 3 and Grand Ages: Rome\n" +
	"   short: 'Windows file time / 2000' used by Tropico 4 and Omerta"

type create struct {
	dir  string
	file string

	compress       bool
	lz4            bool
	chunkSize      uint
	crippleLua     bool
	withFiledates  bool
	filedateFmt    string
	noCompressExts bool
	extensions     []string
}

func newCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a new hpk archive",
		ArgsUsage: "<dir> <file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:               "compress",
				Usage:              "compress the whole hpk file",
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "lz4",
				Usage:              "sets LZ4 as encoder",
				DisableDefaultText: true,
			},
			&cli.UintFlag{
				Name:  "chunk-size",
				Usage: "chunk size for compressed payloads",
				Value: hpk.DefaultChunkSize,
			},
			&cli.BoolFlag{
				Name:               "cripple-lua-files",
				Usage:              "cripple the bytecode header for Victor Vran or Surviving Mars",
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "with-filedates",
				Usage:              "store the last modification times in a _filedates file",
				DisableDefaultText: true,
			},
			&cli.StringFlag{
				Name:  "filedate-fmt",
				Usage: filedateFmtHelp,
				Value: "default",
			},
			&cli.BoolFlag{
				Name:               "dont-compress-files",
				Usage:              "no files are compressed; overrides --extensions",
				DisableDefaultText: true,
			},
			&cli.StringSliceFlag{
				Name:  "extensions",
				Usage: "file extensions to be compressed (default: lst,lua,xml,tga,dds,xtex,bin,csv)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("%w: expected <dir> and <file> arguments", ErrUsage)
			}
			cmd := &create{
				dir:            c.Args().Get(0),
				file:           c.Args().Get(1),
				compress:       c.Bool("compress"),
				lz4:            c.Bool("lz4"),
				chunkSize:      c.Uint("chunk-size"),
				crippleLua:     c.Bool("cripple-lua-files"),
				withFiledates:  c.Bool("with-filedates"),
				filedateFmt:    c.String("filedate-fmt"),
				noCompressExts: c.Bool("dont-compress-files"),
				extensions:     c.StringSlice("extensions"),
			}
			return cmd.Run()
		},
	}
}

func (c *create) Run() error {
	if fi, err := os.Stat(c.dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: not a valid directory: %q", ErrUsage, c.dir)
	}

	options := hpk.NewCreateOptions()
	options.Compress = c.compress
	options.CrippleLuaFiles = c.crippleLua
	if c.lz4 {
		options.CompressOptions.Compressor = hpk.CompressionLz4
	}
	if c.chunkSize > 0 {
		options.CompressOptions.ChunkSize = uint32(c.chunkSize)
	}
	if c.withFiledates {
		switch c.filedateFmt {
		case "default":
			options.FiledateFormat = hpk.FiledatesDefault
		case "short":
			options.FiledateFormat = hpk.FiledatesShort
		default:
			return fmt.Errorf("%w: unknown filedate format %q", ErrUsage, c.filedateFmt)
		}
	}
	if len(c.extensions) > 0 {
		options.Extensions = c.extensions
	}
	if c.noCompressExts {
		options.Extensions = nil
	}

	log.Infof("creating %s from %s", c.file, c.dir)
	if err := hpk.Create(options, c.dir, c.file); err != nil {
		return fmt.Errorf("%w: %w", ErrHpk, err)
	}
	return nil
}
