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

package signer

import (
	"encoding/json"
	"io"

	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/core/types"
)

// Export is the document written after signing. It carries everything needed
// to submit the transaction and to track it on chain.
type Export struct {
	Transaction   *types.AccountTransaction         `json:"transaction"`
	Signatures    types.AccountTransactionSignature `json:"signatures"`
	SignDigest    common.Hash                       `json:"signDigest"`
	BlockItem     common.HexBytes                   `json:"blockItem"`
	BlockItemHash common.Hash                       `json:"blockItemHash"`
}

// NewExport collects the export document of a signed transaction.
func NewExport(stx *types.SignedAccountTransaction) *Export {
	return &Export{
		Transaction:   stx.Transaction(),
		Signatures:    stx.Signatures(),
		SignDigest:    stx.Hash(),
		BlockItem:     stx.BlockItem(),
		BlockItemHash: stx.BlockItemHash(),
	}
}

// UpdateExport is the document written after signing an update instruction.
type UpdateExport struct {
	Update        *types.UpdateInstruction `json:"update"`
	SignDigest    common.Hash              `json:"signDigest"`
	BlockItem     common.HexBytes          `json:"blockItem"`
	BlockItemHash common.Hash              `json:"blockItemHash"`
}

// NewUpdateExport collects the export document of an update instruction.
func NewUpdateExport(update *types.UpdateInstruction) (*UpdateExport, error) {
	digest, err := update.SignDigest()
	if err != nil {
		return nil, err
	}
	item, err := update.BlockItem()
	if err != nil {
		return nil, err
	}
	hash, err := update.BlockItemHash()
	if err != nil {
		return nil, err
	}
	return &UpdateExport{Update: update, SignDigest: digest, BlockItem: item, BlockItemHash: hash}, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
