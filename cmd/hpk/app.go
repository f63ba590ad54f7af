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
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	// ExitCodeSuccess is the successful error code.
	ExitCodeSuccess int = iota

	// ExitCodeUsageError is the exit code for a usage error.
	ExitCodeUsageError

	// ExitCodeUnknownError is the exit code for an unknown error.
	ExitCodeUnknownError
)

// ErrHpk is the base error for the hpk CLI.
var ErrHpk = errors.New("hpk")

// ErrUsage indicates invalid arguments or flags.
var ErrUsage = errors.New("usage")

// must checks the error and panics if not nil.
func must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

func newHpkApp() *cli.App {
	return &cli.App{
		Name:  filepath.Base(os.Args[0]),
		Usage: "Create, list and extract hpk archives.",
		Description: "Tool for the hpk archives of Haemimont Games titles\n" +
			"(Tropico 3-4, Grand Ages: Rome, Omerta, Victor Vran, Surviving Mars).",
		Before: func(c *cli.Context) error {
			log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
			log.SetLevel(log.WarnLevel)
			return nil
		},
		Commands: []*cli.Command{
			newCreateCommand(),
			newExtractCommand(),
			newListCommand(),
			newPrintCommand(),
			newLicenseCommand(),
		},
		HideHelpCommand: true,
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}

			_ = must(fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", c.App.Name, err))
			if errors.Is(err, ErrUsage) {
				cli.OsExiter(ExitCodeUsageError)
				return
			}
			cli.OsExiter(ExitCodeUnknownError)
		},
	}
}

func main() {
	if err := newHpkApp().Run(os.Args); err != nil {
		os.Exit(ExitCodeUnknownError)
	}
}
