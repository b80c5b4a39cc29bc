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
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/ccd-wallet/ledger-signer/accounts/usbwallet"
	"github.com/ccd-wallet/ledger-signer/cmd/utils"
	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/core/types"
	"github.com/ccd-wallet/ledger-signer/signer"
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"
)

var (
	dumpFlag = cli.BoolFlag{
		Name:  "dump",
		Usage: "Also print the decoded payload structure",
	}

	inspectCommand = cli.Command{
		Action:    inspect,
		Name:      "inspect",
		Usage:     "Show the encoding of a transaction without signing it",
		ArgsUsage: "",
		Flags:     []cli.Flag{utils.TxFileFlag, dumpFlag},
		Description: `
The inspect command decodes a transaction document and prints its fields,
the serialized header and payload, and the digest the device will sign.`,
	}

	signCommand = cli.Command{
		Action:    signTransaction,
		Name:      "sign",
		Usage:     "Sign an account transaction on the Ledger",
		ArgsUsage: "",
		Flags: []cli.Flag{
			utils.TxFileFlag,
			utils.PathFlag,
			utils.IdentityFlag,
			utils.AccountFlag,
			utils.KeyFlag,
			utils.CredentialFlag,
			utils.OutFileFlag,
		},
		Description: `
The sign command streams the transaction to the Ledger, waits for the user to
approve it on the device and writes the signed transaction, its block item
and hashes as JSON.`,
	}
)

func readTransaction(ctx *cli.Context) (*types.AccountTransaction, error) {
	file := ctx.String(utils.TxFileFlag.Name)
	if file == "" {
		return nil, fmt.Errorf("--%s is required", utils.TxFileFlag.Name)
	}
	blob, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	tx := new(types.AccountTransaction)
	if err := json.Unmarshal(blob, tx); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return tx, nil
}

func inspect(ctx *cli.Context) error {
	tx, err := readTransaction(ctx)
	if err != nil {
		return err
	}
	header, payload, err := tx.Encode()
	if err != nil {
		return err
	}
	digest := types.TransactionHash(header, payload)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.SetAutoWrapText(false)
	table.Append([]string{"Sender", tx.Sender.String()})
	table.Append([]string{"Nonce", strconv.FormatUint(tx.Nonce, 10)})
	table.Append([]string{"Energy", strconv.FormatUint(tx.EnergyAmount, 10)})
	table.Append([]string{"Expiry", time.Unix(int64(tx.Expiry), 0).UTC().Format(time.RFC3339)})
	table.Append([]string{"Kind", fmt.Sprintf("%v (%d)", tx.Kind(), uint16(tx.Kind()))})
	table.AppendBulk(payloadSummary(tx.Payload))
	if err := usbwallet.CheckSignable(tx.Payload); err != nil {
		table.Append([]string{"Ledger", "not signable"})
	}
	table.Append([]string{"Header", common.HexBytes(header).String()})
	table.Append([]string{"Payload", fmt.Sprintf("%d bytes", len(payload))})
	table.Append([]string{"Sign digest", digest.Hex()})
	table.Render()

	if ctx.Bool(dumpFlag.Name) {
		spew.Fdump(os.Stdout, tx.Payload)
	}
	return nil
}

// payloadSummary returns the table rows describing the amounts a payload
// moves.
func payloadSummary(p types.Payload) [][]string {
	switch p := p.(type) {
	case *types.SimpleTransfer:
		return [][]string{
			{"To", p.ToAddress.String()},
			{"Amount", p.Amount.String()},
		}
	case *types.TransferWithSchedule:
		rows := [][]string{{"To", p.ToAddress.String()}}
		if total, err := p.Schedule.Total(); err == nil {
			rows = append(rows, []string{"Total", total.String()})
		}
		for i, point := range p.Schedule {
			release := time.UnixMilli(int64(point.Timestamp)).UTC().Format(time.RFC3339)
			rows = append(rows, []string{fmt.Sprintf("Release %d", i), release + " " + point.Amount.String()})
		}
		return rows
	case *types.TransferToEncrypted:
		return [][]string{{"Amount", p.Amount.String()}}
	case *types.TransferToPublic:
		return [][]string{{"Amount", p.TransferAmount.String()}, {"Proof", fmt.Sprintf("%d bytes", len(p.Proof))}}
	case *types.AddBaker:
		return [][]string{{"Stake", p.BakingStake.String()}}
	case *types.UpdateBakerStake:
		return [][]string{{"Stake", p.Stake.String()}}
	}
	return nil
}

func signTransaction(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	tx, err := readTransaction(ctx)
	if err != nil {
		return err
	}
	path, err := utils.AccountKeyPath(ctx)
	if err != nil {
		return err
	}
	credential, err := utils.BoundedUint(ctx, utils.CredentialFlag.Name, math.MaxUint8)
	if err != nil {
		return err
	}
	opts := signer.Options{
		Credential: types.CredentialIndex(credential),
		Verify:     cfg.Verify,
	}
	if ctx.IsSet(utils.PathFlag.Name) && ctx.IsSet(utils.KeyFlag.Name) {
		v, err := utils.BoundedUint(ctx, utils.KeyFlag.Name, math.MaxUint8)
		if err != nil {
			return err
		}
		key := types.KeyIndex(v)
		opts.Key = &key
	}
	// Reject transactions the device cannot sign before asking for it.
	if err := usbwallet.CheckSignable(tx.Payload); err != nil {
		return err
	}

	cctx, cancel := commandContext()
	defer cancel()
	sess, release := openSession(cctx, cfg)
	defer release()

	audit := openAuditLog(cfg)
	defer audit.Close()

	utils.Prompt("Review the %v transaction on the Ledger and approve it", tx.Kind())
	stx, err := signer.SignAccountTransaction(cctx, sess, path, tx, opts)
	digest, _ := tx.SignDigest()
	if werr := audit.RecordSigning("transaction", tx.Kind(), path, digest, err); werr != nil {
		log.Warn("Failed to write audit log", "err", werr)
	}
	if err != nil {
		return err
	}
	log.Info("Transaction signed", "kind", tx.Kind(), "hash", stx.BlockItemHash())
	utils.Success("Signed %v with %v", tx.Kind(), path)
	return writeOutput(ctx, signer.NewExport(stx))
}
