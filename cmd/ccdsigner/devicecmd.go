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

package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ccd-wallet/ledger-signer/accounts"
	"github.com/ccd-wallet/ledger-signer/accounts/usbwallet"
	"github.com/ccd-wallet/ledger-signer/cmd/utils"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"
)

var (
	showFlag = cli.BoolFlag{
		Name:  "show",
		Usage: "Display the key on the device for the user to compare",
	}

	deviceCommand = cli.Command{
		Action:    deviceInfo,
		Name:      "device",
		Usage:     "List connected Ledger devices and the open application",
		ArgsUsage: "",
		Description: `
The device command lists the Ledger devices attached over USB and reports the
name and version of the application running on the first one.`,
	}

	pubkeyCommand = cli.Command{
		Action:    publicKey,
		Name:      "pubkey",
		Usage:     "Print the public key at a derivation path",
		ArgsUsage: "",
		Flags: []cli.Flag{
			utils.PathFlag,
			utils.IdentityFlag,
			utils.AccountFlag,
			utils.KeyFlag,
			utils.KeyTypeFlag,
			utils.KeyIndexFlag,
			showFlag,
		},
		Description: `
The pubkey command reads a public key from the device. Governance keys are
selected with --keytype and --keyindex, account keys with --identity,
--account and --key, any key with --path.`,
	}
)

func deviceInfo(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	hub, err := usbwallet.NewLedgerHub(cfg.Device)
	if err != nil {
		return err
	}
	devices, err := hub.Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return usbwallet.ErrNoDevice
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Path", "Product", "Serial"})
	for _, info := range devices {
		table.Append([]string{info.Path, info.Product, info.Serial})
	}
	table.Render()

	cctx, cancel := commandContext()
	defer cancel()
	sess, release := openSession(cctx, cfg)
	defer release()

	app, err := sess.AppAndVersion(cctx)
	if err != nil {
		return err
	}
	fmt.Printf("Application: %s %s\n", app.Name, app.Version)
	return nil
}

func publicKey(ctx *cli.Context) error {
	cfg := makeConfig(ctx)

	var (
		path accounts.DerivationPath
		err  error
	)
	if ctx.IsSet(utils.KeyTypeFlag.Name) || ctx.IsSet(utils.KeyIndexFlag.Name) {
		path, err = utils.GovernanceKeyPath(ctx)
	} else {
		path, err = utils.AccountKeyPath(ctx)
	}
	if err != nil {
		return err
	}

	cctx, cancel := commandContext()
	defer cancel()
	sess, release := openSession(cctx, cfg)
	defer release()

	show := ctx.Bool(showFlag.Name)
	if show {
		utils.Prompt("Compare the key shown on the Ledger and approve it")
	}
	pub, err := sess.PublicKey(cctx, path, show)
	if err != nil {
		return err
	}
	fmt.Printf("%v %s\n", path, hex.EncodeToString(pub))
	return nil
}
