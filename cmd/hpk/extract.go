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
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	hpk "github.com/hpktools/go-hpk"
)

var errNotEmpty = errors.New("destination directory is not empty")

type extract struct {
	file  string
	dest  string
	paths []string

	ignoreFiledates bool
	fixLua          bool
	force           bool
	verbose         bool
}

func newExtractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract files from a hpk archive",
		ArgsUsage: "<file> <dest> [paths...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:               "ignore-filedates",
				Usage:              "skip processing of a _filedates file and just extract it",
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "fix-lua-files",
				Usage:              "fix the bytecode header of Victor Vran's or Surviving Mars' Lua files",
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "force",
				Usage:              "force extraction if destination folder is not empty",
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "verbose",
				Usage:              "verbosely list files processed",
				Aliases:            []string{"v"},
				DisableDefaultText: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("%w: expected <file> and <dest> arguments", ErrUsage)
			}
			cmd := &extract{
				file:            c.Args().Get(0),
				dest:            c.Args().Get(1),
				paths:           c.Args().Slice()[2:],
				ignoreFiledates: c.Bool("ignore-filedates"),
				fixLua:          c.Bool("fix-lua-files"),
				force:           c.Bool("force"),
				verbose:         c.Bool("verbose"),
			}
			return cmd.Run()
		},
	}
}

func (e *extract) Run() error {
	if e.verbose {
		log.SetLevel(log.InfoLevel)
	}
	if fi, err := os.Stat(e.file); err != nil || !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: not a valid file: %q", ErrUsage, e.file)
	}
	if !e.force && !dirEmpty(e.dest) {
		return fmt.Errorf("%w: %w", ErrHpk, errNotEmpty)
	}

	globs, err := hpk.CompilePatterns(e.paths)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	options := hpk.NewExtractOptions()
	options.Paths = globs
	options.SkipFiledates = e.ignoreFiledates
	options.FixLuaFiles = e.fixLua
	options.OnEntry = func(path string) {
		log.Info(path)
	}

	if err := hpk.Extract(options, e.file, e.dest); err != nil {
		return fmt.Errorf("%w: %w", ErrHpk, err)
	}
	return nil
}

func dirEmpty(path string) bool {
	d, err := os.Open(path)
	if err != nil {
		return true
	}
	defer d.Close()
	_, err = d.Readdirnames(1)
	return errors.Is(err, io.EOF)
}
