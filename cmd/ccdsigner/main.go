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

// ccdsigner signs account transactions and chain updates with a Ledger.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/ccd-wallet/ledger-signer/accounts/usbwallet"
	"github.com/ccd-wallet/ledger-signer/cmd/utils"
	"github.com/ccd-wallet/ledger-signer/internal/debug"
	"github.com/ccd-wallet/ledger-signer/internal/fileutils"
	"github.com/ccd-wallet/ledger-signer/metrics"
	"github.com/ccd-wallet/ledger-signer/signer"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/urfave/cli.v1"
)

var (
	// Git SHA1 commit hash of the release (set via linker flags)
	gitCommit = ""

	app = cli.NewApp()

	globalFlags = []cli.Flag{
		utils.ConfigFileFlag,
		utils.DataDirFlag,
		utils.CommandTimeoutFlag,
		utils.AuditLogFlag,
		utils.NoVerifyFlag,
	}
)

func init() {
	app.Name = "ccdsigner"
	app.Usage = "sign transactions and chain updates with a Ledger device"
	app.Version = "0.3.0"
	if gitCommit != "" {
		app.Version += "-" + gitCommit
	}
	app.Flags = append(append([]cli.Flag{}, globalFlags...), debug.Flags...)
	app.Commands = []cli.Command{
		inspectCommand,
		signCommand,
		deviceCommand,
		pubkeyCommand,
		updateCommand,
		proposalCommand,
		dumpConfigCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	app.Before = debug.Setup
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext is cancelled on interrupt so a pending device command is
// abandoned instead of blocking the process.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// openSession connects to the first Ledger and takes its session. The
// returned function releases the session and closes the device.
func openSession(ctx context.Context, cfg *ledgerConfig) (*usbwallet.Session, func()) {
	hub, err := usbwallet.NewLedgerHub(cfg.Device)
	utils.Check(err, "USB")
	device, err := hub.OpenFirst()
	utils.Check(err, "Failed to open Ledger")
	sess, err := device.Acquire(ctx)
	if err != nil {
		device.Close()
		utils.Fatalf("Failed to acquire Ledger: %v", err)
	}
	return sess, func() {
		sess.Release()
		if err := device.Close(); err != nil {
			log.Warn("Failed to close Ledger", "err", err)
		}
	}
}

// openAuditLog opens the configured audit log. Without one it returns a nil
// recorder, which records nothing.
func openAuditLog(cfg *ledgerConfig) *metrics.CSVRecorder {
	if cfg.AuditLog == "" {
		return nil
	}
	audit, err := metrics.OpenAuditLog(cfg.AuditLog)
	utils.Check(err, "Failed to open audit log")
	return audit
}

// writeOutput writes v as JSON to --out, or to standard output.
func writeOutput(ctx *cli.Context, v interface{}) error {
	out := ctx.String(utils.OutFileFlag.Name)
	if out == "" {
		return signer.WriteJSON(os.Stdout, v)
	}
	if err := fileutils.WriteFileAtomic(out, func(w io.Writer) error { return signer.WriteJSON(w, v) }); err != nil {
		return err
	}
	log.Info("Wrote output", "file", out)
	return nil
}
