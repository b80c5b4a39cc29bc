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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ccd-wallet/ledger-signer/cmd/utils"
	"github.com/ccd-wallet/ledger-signer/internal/fileutils"
	"github.com/ccd-wallet/ledger-signer/proposal"
	"github.com/ccd-wallet/ledger-signer/signer"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"
)

var (
	thresholdFlag = cli.IntFlag{
		Name:  "threshold",
		Usage: "Number of authorization key signatures the update needs",
		Value: 1,
	}

	proposalCommand = cli.Command{
		Name:  "proposal",
		Usage: "Collect governance signatures on an update",
		Description: `
Proposals hold an update instruction while the governance key holders sign it,
each on their own Ledger. Signed copies are merged until the threshold is met
and the update can be exported for submission.`,
		Subcommands: []cli.Command{
			{
				Action:    createProposal,
				Name:      "create",
				Usage:     "Store a new proposal for an update instruction",
				ArgsUsage: "",
				Flags:     []cli.Flag{utils.UpdateFileFlag, thresholdFlag},
			},
			{
				Action:    listProposals,
				Name:      "list",
				Usage:     "List stored proposals",
				ArgsUsage: "",
			},
			{
				Action:    showProposal,
				Name:      "show",
				Usage:     "Print a proposal as JSON",
				ArgsUsage: "<id>",
			},
			{
				Action:    mergeProposal,
				Name:      "merge",
				Usage:     "Add the signatures of a signed copy of the update",
				ArgsUsage: "<id> <update file>",
			},
			{
				Action:    exportProposal,
				Name:      "export",
				Usage:     "Write the update with all collected signatures",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{utils.OutFileFlag},
			},
			{
				Action:    deleteProposal,
				Name:      "delete",
				Usage:     "Remove a proposal",
				ArgsUsage: "<id>",
			},
		},
	}
)

func openStore(cfg *ledgerConfig) (*proposal.Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("no data directory, set --%s", utils.DataDirFlag.Name)
	}
	if err := fileutils.EnsureDir(cfg.DataDir); err != nil {
		return nil, err
	}
	return proposal.Open(filepath.Join(cfg.DataDir, "proposals"))
}

// withProposal opens the store and loads the proposal named by the first
// argument.
func withProposal(ctx *cli.Context, fn func(*proposal.Store, *proposal.Proposal) error) error {
	if ctx.NArg() < 1 {
		return fmt.Errorf("missing proposal id")
	}
	id, err := uuid.Parse(ctx.Args().First())
	if err != nil {
		return err
	}
	store, err := openStore(makeConfig(ctx))
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := store.Get(id)
	if err != nil {
		return err
	}
	return fn(store, p)
}

func createProposal(ctx *cli.Context) error {
	file := ctx.String(utils.UpdateFileFlag.Name)
	if file == "" {
		return fmt.Errorf("--%s is required", utils.UpdateFileFlag.Name)
	}
	update, err := readUpdate(file)
	if err != nil {
		return err
	}
	p, err := proposal.New(update, ctx.Int(thresholdFlag.Name))
	if err != nil {
		return err
	}
	store, err := openStore(makeConfig(ctx))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Put(p); err != nil {
		return err
	}
	log.Info("Created proposal", "id", p.ID, "update", update.Payload.UpdateType(), "threshold", p.Threshold)
	fmt.Println(p.ID)
	return nil
}

func listProposals(ctx *cli.Context) error {
	store, err := openStore(makeConfig(ctx))
	if err != nil {
		return err
	}
	defer store.Close()

	proposals, err := store.List()
	if err != nil {
		return err
	}
	now := time.Now()
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Update", "Sequence", "Signatures", "Status", "Created"})
	for _, p := range proposals {
		status := string(p.Status)
		if p.Status == proposal.StatusOpen && p.Expired(now) {
			status = string(proposal.StatusExpired)
		}
		table.Append([]string{
			p.ID.String(),
			p.Update.Payload.UpdateType().String(),
			strconv.FormatUint(p.Update.Header.SequenceNumber, 10),
			fmt.Sprintf("%d/%d", len(p.Update.Signatures), p.Threshold),
			status,
			p.Created.Format(time.RFC3339),
		})
	}
	table.Render()
	return nil
}

func showProposal(ctx *cli.Context) error {
	return withProposal(ctx, func(_ *proposal.Store, p *proposal.Proposal) error {
		return signer.WriteJSON(os.Stdout, p)
	})
}

func mergeProposal(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return fmt.Errorf("usage: merge <id> <update file>")
	}
	other, err := readUpdate(ctx.Args().Get(1))
	if err != nil {
		return err
	}
	return withProposal(ctx, func(store *proposal.Store, p *proposal.Proposal) error {
		added, err := p.Merge(other)
		if err != nil {
			return err
		}
		if err := store.Put(p); err != nil {
			return err
		}
		log.Info("Merged signatures", "id", p.ID, "added", added, "signatures", len(p.Update.Signatures), "threshold", p.Threshold)
		if p.Ready() {
			utils.Success("Proposal %v has enough signatures", p.ID)
		}
		return nil
	})
}

func exportProposal(ctx *cli.Context) error {
	return withProposal(ctx, func(store *proposal.Store, p *proposal.Proposal) error {
		if !p.Ready() {
			return fmt.Errorf("proposal %v has %d of %d signatures", p.ID, len(p.Update.Signatures), p.Threshold)
		}
		if p.Expired(time.Now()) {
			p.Status = proposal.StatusExpired
			if err := store.Put(p); err != nil {
				return err
			}
			return fmt.Errorf("proposal %v timed out", p.ID)
		}
		export, err := signer.NewUpdateExport(p.Update)
		if err != nil {
			return err
		}
		if err := writeOutput(ctx, export); err != nil {
			return err
		}
		p.Status = proposal.StatusExported
		return store.Put(p)
	})
}

func deleteProposal(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return fmt.Errorf("missing proposal id")
	}
	id, err := uuid.Parse(ctx.Args().First())
	if err != nil {
		return err
	}
	store, err := openStore(makeConfig(ctx))
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Delete(id)
}
