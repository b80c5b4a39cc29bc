// Copyright 2021 The ledger-signer Authors
// This file is part of the ledger-signer library.
//
// The ledger-signer library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ledger-signer library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ledger-signer library. If not, see <http://www.gnu.org/licenses/>.

package debug

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	colorable "github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/urfave/cli.v1"
)

var (
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	vmoduleFlag = cli.StringFlag{
		Name:  "vmodule",
		Usage: "Per-module verbosity: comma-separated list of <pattern>=<level> (e.g. usbwallet=5,proposal=4)",
		Value: "",
	}
	debugFlag = cli.BoolFlag{
		Name:  "debug",
		Usage: "Prepends log messages with call-site location (file and line number)",
	}
	consoleFormatFlag = cli.StringFlag{
		Name:  "consoleformat",
		Usage: "Write console logs as 'json' or 'term'",
	}
	consoleOutputFlag = cli.StringFlag{
		Name: "consoleoutput",
		Usage: "(stderr|stdout|split) By default, console output goes to stderr. " +
			"In stdout mode, write console logs to stdout (not stderr). " +
			"In split mode, write critical(warning, error, and critical) console logs to stderr " +
			"and non-critical (info, debug, and trace) to stdout",
	}
)

// Flags holds all command-line flags required for debugging.
var Flags = []cli.Flag{
	verbosityFlag, vmoduleFlag, debugFlag,
	consoleFormatFlag, consoleOutputFlag,
}

var glogger *log.GlogHandler

// StdoutStderrHandler sends warnings and worse to one handler and
// everything else to another.
type StdoutStderrHandler struct {
	stdoutHandler log.Handler
	stderrHandler log.Handler
}

func (h StdoutStderrHandler) Log(r *log.Record) error {
	switch r.Lvl {
	case log.LvlCrit, log.LvlError, log.LvlWarn:
		return h.stderrHandler.Log(r)
	default:
		return h.stdoutHandler.Log(r)
	}
}

func init() {
	glogger = log.NewGlogHandler(log.StreamHandler(io.Writer(os.Stderr), log.TerminalFormat(false)))
	glogger.Verbosity(log.LvlWarn)
	log.Root().SetHandler(glogger)
}

// Setup initializes logging based on the CLI flags. It should be called as
// early as possible in the program.
func Setup(ctx *cli.Context) error {
	ostream, err := CreateStreamHandler(ctx.GlobalString(consoleFormatFlag.Name), ctx.GlobalString(consoleOutputFlag.Name))
	if err != nil {
		return err
	}
	glogger = log.NewGlogHandler(ostream)

	log.PrintOrigins(ctx.GlobalBool(debugFlag.Name))
	glogger.Verbosity(log.Lvl(ctx.GlobalInt(verbosityFlag.Name)))
	if err := glogger.Vmodule(ctx.GlobalString(vmoduleFlag.Name)); err != nil {
		return err
	}
	log.Root().SetHandler(glogger)
	return nil
}

// CreateStreamHandler builds the console handler for the given format and
// output mode.
func CreateStreamHandler(consoleFormat string, consoleOutputMode string) (log.Handler, error) {
	format := func(f *os.File) (log.Format, error) {
		return consoleLogFormat(consoleFormat, useColor(f))
	}
	switch consoleOutputMode {
	case "", "stderr":
		f, err := format(os.Stderr)
		if err != nil {
			return nil, err
		}
		return log.StreamHandler(output(os.Stderr), f), nil
	case "stdout":
		f, err := format(os.Stdout)
		if err != nil {
			return nil, err
		}
		return log.StreamHandler(output(os.Stdout), f), nil
	case "split":
		outFormat, err := format(os.Stdout)
		if err != nil {
			return nil, err
		}
		errFormat, err := format(os.Stderr)
		if err != nil {
			return nil, err
		}
		return StdoutStderrHandler{
			stdoutHandler: log.StreamHandler(output(os.Stdout), outFormat),
			stderrHandler: log.StreamHandler(output(os.Stderr), errFormat),
		}, nil
	}
	return nil, fmt.Errorf("unexpected value for %q flag: %q", consoleOutputFlag.Name, consoleOutputMode)
}

func output(f *os.File) io.Writer {
	if useColor(f) {
		return colorable.NewColorable(f)
	}
	return f
}

func useColor(file *os.File) bool {
	return (isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())) && os.Getenv("TERM") != "dumb"
}

func consoleLogFormat(consoleFormat string, usecolor bool) (log.Format, error) {
	switch consoleFormat {
	case "json":
		return log.JSONFormat(), nil
	case "", "term":
		return log.TerminalFormat(usecolor), nil
	}
	return nil, fmt.Errorf("unexpected value for %q flag: %q", consoleFormatFlag.Name, consoleFormat)
}
