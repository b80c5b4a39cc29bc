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

	"github.com/ccd-wallet/ledger-signer/cmd/utils"
	"github.com/ccd-wallet/ledger-signer/core/types"
	"github.com/ccd-wallet/ledger-signer/proposal"
	"github.com/ccd-wallet/ledger-signer/signer"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"gopkg.in/urfave/cli.v1"
)

var (
	authKeyFlag = cli.UintFlag{
		Name:  "authkey",
		Usage: "Index of the signing key among the chain's authorization keys",
	}
	proposalFlag = cli.StringFlag{
		Name:  "proposal",
		Usage: "Add the signature to this stored proposal instead of a file",
	}

	updateCommand = cli.Command{
		Name:  "update",
		Usage: "Sign chain parameter updates",
		Subcommands: []cli.Command{
			{
				Action:    signUpdate,
				Name:      "sign",
				Usage:     "Sign an update instruction with a governance key",
				ArgsUsage: "",
				Flags: []cli.Flag{
					utils.UpdateFileFlag,
					proposalFlag,
					utils.PathFlag,
					utils.KeyTypeFlag,
					utils.KeyIndexFlag,
					authKeyFlag,
					utils.OutFileFlag,
				},
				Description: `
Signs the update instruction read from --update, or the one held by the
stored proposal --proposal. Signatures for a proposal are added to the store,
otherwise the signed update is written as JSON.`,
			},
		},
	}
)

func readUpdate(file string) (*types.UpdateInstruction, error) {
	blob, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	update := new(types.UpdateInstruction)
	if err := json.Unmarshal(blob, update); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return update, nil
}

func signUpdate(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	path, err := utils.GovernanceKeyPath(ctx)
	if err != nil {
		return err
	}
	authKey, err := utils.BoundedUint(ctx, authKeyFlag.Name, math.MaxUint16)
	if err != nil {
		return err
	}
	index := uint16(authKey)

	var (
		update *types.UpdateInstruction
		store  *proposal.Store
		prop   *proposal.Proposal
	)
	switch {
	case ctx.IsSet(proposalFlag.Name):
		id, err := uuid.Parse(ctx.String(proposalFlag.Name))
		if err != nil {
			return err
		}
		if store, err = openStore(cfg); err != nil {
			return err
		}
		defer store.Close()
		if prop, err = store.Get(id); err != nil {
			return err
		}
		update = prop.Update
	case ctx.IsSet(utils.UpdateFileFlag.Name):
		if update, err = readUpdate(ctx.String(utils.UpdateFileFlag.Name)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("one of --%s or --%s is required", utils.UpdateFileFlag.Name, proposalFlag.Name)
	}

	cctx, cancel := commandContext()
	defer cancel()
	sess, release := openSession(cctx, cfg)
	defer release()

	audit := openAuditLog(cfg)
	defer audit.Close()

	utils.Prompt("Review the %v update on the Ledger and approve it", update.Payload.UpdateType())
	signed, err := signer.SignUpdateInstruction(cctx, sess, path, update, index, cfg.Verify)
	digest, _ := update.SignDigest()
	if werr := audit.RecordSigning("update", update.Payload.UpdateType(), path, digest, err); werr != nil {
		log.Warn("Failed to write audit log", "err", werr)
	}
	if err != nil {
		return err
	}
	utils.Success("Signed %v update with %v", update.Payload.UpdateType(), path)

	if prop != nil {
		if _, err := prop.Merge(signed); err != nil {
			return err
		}
		if err := store.Put(prop); err != nil {
			return err
		}
		log.Info("Signature added to proposal", "id", prop.ID, "signatures", len(prop.Update.Signatures), "threshold", prop.Threshold)
		return nil
	}
	export, err := signer.NewUpdateExport(signed)
	if err != nil {
		return err
	}
	return writeOutput(ctx, export)
}
