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

package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/common/wire"
)

// txJSON is the document form of an account transaction.
type txJSON struct {
	Sender          *common.AccountAddress `json:"sender"`
	Nonce           uint64                 `json:"nonce,string"`
	EnergyAmount    uint64                 `json:"energyAmount,string"`
	Expiry          uint64                 `json:"expiry,string"`
	TransactionKind TransactionKind        `json:"transactionKind"`
	Payload         json.RawMessage        `json:"payload"`
}

// newPayload returns an empty payload of the given kind, or a RawPayload
// carrying the kind when no variant exists.
func newPayload(kind TransactionKind) Payload {
	switch kind {
	case KindSimpleTransfer:
		return new(SimpleTransfer)
	case KindTransferWithSchedule:
		return new(TransferWithSchedule)
	case KindTransferToEncrypted:
		return new(TransferToEncrypted)
	case KindTransferToPublic:
		return new(TransferToPublic)
	case KindAddBaker:
		return new(AddBaker)
	case KindRemoveBaker:
		return new(RemoveBaker)
	case KindUpdateBakerStake:
		return new(UpdateBakerStake)
	case KindUpdateBakerRestakeEarnings:
		return new(UpdateBakerRestakeEarnings)
	case KindUpdateBakerKeys:
		return new(UpdateBakerKeys)
	case KindRegisterData:
		return new(RegisterData)
	case KindConfigureBaker:
		return new(ConfigureBaker)
	case KindConfigureDelegation:
		return new(ConfigureDelegation)
	}
	return &RawPayload{Tag: kind}
}

// MarshalJSON encodes the transaction into its document form.
func (tx *AccountTransaction) MarshalJSON() ([]byte, error) {
	if tx.Payload == nil {
		return nil, missing("payload")
	}
	payload, err := json.Marshal(tx.Payload)
	if err != nil {
		return nil, err
	}
	sender := tx.Sender
	return json.Marshal(&txJSON{
		Sender:          &sender,
		Nonce:           tx.Nonce,
		EnergyAmount:    tx.EnergyAmount,
		Expiry:          tx.Expiry,
		TransactionKind: tx.Payload.Kind(),
		Payload:         payload,
	})
}

// UnmarshalJSON decodes a transaction document. The kind selects the payload
// variant.
func (tx *AccountTransaction) UnmarshalJSON(input []byte) error {
	var dec txJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return fmt.Errorf("%w: %v", wire.ErrMalformedInput, err)
	}
	if dec.Sender == nil {
		return missing("sender")
	}
	if len(dec.Payload) == 0 || string(dec.Payload) == "null" {
		return missing("payload")
	}
	payload := newPayload(dec.TransactionKind)
	if err := json.Unmarshal(dec.Payload, payload); err != nil {
		if errors.Is(err, wire.ErrMalformedInput) {
			return fmt.Errorf("%v payload: %w", dec.TransactionKind, err)
		}
		return fmt.Errorf("%w: %v payload: %v", wire.ErrMalformedInput, dec.TransactionKind, err)
	}
	*tx = AccountTransaction{
		Sender:       *dec.Sender,
		Nonce:        dec.Nonce,
		EnergyAmount: dec.EnergyAmount,
		Expiry:       dec.Expiry,
		Payload:      payload,
	}
	return nil
}

type updateJSON struct {
	Header     UpdateHeader                 `json:"header"`
	UpdateType UpdateType                   `json:"updateType"`
	Payload    json.RawMessage              `json:"payload"`
	Signatures []UpdateInstructionSignature `json:"signatures,omitempty"`
}

func newUpdatePayload(typ UpdateType) (UpdatePayload, error) {
	switch typ {
	case UpdateMicroGTUPerEuro:
		return new(MicroGTUPerEuro), nil
	case UpdateEuroPerEnergy:
		return new(EuroPerEnergy), nil
	case UpdateElectionDifficulty:
		return new(ElectionDifficulty), nil
	case UpdateFoundationAccount:
		return new(FoundationAccount), nil
	case UpdateMintDistribution:
		return new(MintDistribution), nil
	case UpdateTransactionFeeDistribution:
		return new(TransactionFeeDistribution), nil
	case UpdateGASRewards:
		return new(GASRewards), nil
	case UpdateProtocol:
		return new(ProtocolUpdate), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedTransactionKind, typ)
}

// MarshalJSON encodes the update instruction into its document form.
func (u *UpdateInstruction) MarshalJSON() ([]byte, error) {
	if u.Payload == nil {
		return nil, missing("update payload")
	}
	payload, err := json.Marshal(u.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&updateJSON{
		Header:     u.Header,
		UpdateType: u.Payload.UpdateType(),
		Payload:    payload,
		Signatures: u.Signatures,
	})
}

// UnmarshalJSON decodes an update instruction document.
func (u *UpdateInstruction) UnmarshalJSON(input []byte) error {
	var dec updateJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return fmt.Errorf("%w: %v", wire.ErrMalformedInput, err)
	}
	if len(dec.Payload) == 0 || string(dec.Payload) == "null" {
		return missing("update payload")
	}
	payload, err := newUpdatePayload(dec.UpdateType)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(dec.Payload, payload); err != nil {
		return fmt.Errorf("%w: %v update: %v", wire.ErrMalformedInput, dec.UpdateType, err)
	}
	*u = UpdateInstruction{Header: dec.Header, Payload: payload, Signatures: dec.Signatures}
	return nil
}
