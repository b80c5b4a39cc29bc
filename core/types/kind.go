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
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when a payload lacks a sub-field that must be
	// present before it can be serialized, such as a proof or a schedule.
	ErrMissingField = errors.New("missing field")

	// ErrUnsupportedTransactionKind is returned when no handler exists for the
	// kind of a transaction.
	ErrUnsupportedTransactionKind = errors.New("unsupported transaction kind")

	// ErrPayloadSizeMismatch is returned when a header announces a payload
	// length other than the payload it is joined with.
	ErrPayloadSizeMismatch = errors.New("payload size mismatch")

	// ErrDuplicateSignature is returned when a signature for the same key is
	// added twice.
	ErrDuplicateSignature = errors.New("duplicate signature")
)

// TransactionKind is the tag of an account transaction payload.
type TransactionKind uint16

const (
	KindDeployModule               TransactionKind = 0
	KindInitContract               TransactionKind = 1
	KindUpdateContract             TransactionKind = 2
	KindSimpleTransfer             TransactionKind = 3
	KindAddBaker                   TransactionKind = 4
	KindRemoveBaker                TransactionKind = 5
	KindUpdateBakerStake           TransactionKind = 6
	KindUpdateBakerRestakeEarnings TransactionKind = 7
	KindUpdateBakerKeys            TransactionKind = 8
	KindUpdateCredentialKeys       TransactionKind = 13
	KindTransferToEncrypted        TransactionKind = 17
	KindTransferToPublic           TransactionKind = 18
	KindTransferWithSchedule       TransactionKind = 19
	KindUpdateCredentials          TransactionKind = 20
	KindRegisterData               TransactionKind = 21
	KindConfigureBaker             TransactionKind = 25
	KindConfigureDelegation        TransactionKind = 26
)

var kindNames = map[TransactionKind]string{
	KindDeployModule:               "DeployModule",
	KindInitContract:               "InitContract",
	KindUpdateContract:             "UpdateContract",
	KindSimpleTransfer:             "SimpleTransfer",
	KindAddBaker:                   "AddBaker",
	KindRemoveBaker:                "RemoveBaker",
	KindUpdateBakerStake:           "UpdateBakerStake",
	KindUpdateBakerRestakeEarnings: "UpdateBakerRestakeEarnings",
	KindUpdateBakerKeys:            "UpdateBakerKeys",
	KindUpdateCredentialKeys:       "UpdateCredentialKeys",
	KindTransferToEncrypted:        "TransferToEncrypted",
	KindTransferToPublic:           "TransferToPublic",
	KindTransferWithSchedule:       "TransferWithSchedule",
	KindUpdateCredentials:          "UpdateCredentials",
	KindRegisterData:               "RegisterData",
	KindConfigureBaker:             "ConfigureBaker",
	KindConfigureDelegation:        "ConfigureDelegation",
}

func (k TransactionKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TransactionKind(%d)", uint16(k))
}

// UpdateType is the tag of a chain update instruction payload.
type UpdateType uint8

const (
	UpdateProtocol                   UpdateType = 1
	UpdateElectionDifficulty         UpdateType = 2
	UpdateEuroPerEnergy              UpdateType = 3
	UpdateMicroGTUPerEuro            UpdateType = 4
	UpdateFoundationAccount          UpdateType = 5
	UpdateMintDistribution           UpdateType = 6
	UpdateTransactionFeeDistribution UpdateType = 7
	UpdateGASRewards                 UpdateType = 8
)

var updateTypeNames = map[UpdateType]string{
	UpdateProtocol:                   "Protocol",
	UpdateElectionDifficulty:         "ElectionDifficulty",
	UpdateEuroPerEnergy:              "EuroPerEnergy",
	UpdateMicroGTUPerEuro:            "MicroGTUPerEuro",
	UpdateFoundationAccount:          "FoundationAccount",
	UpdateMintDistribution:           "MintDistribution",
	UpdateTransactionFeeDistribution: "TransactionFeeDistribution",
	UpdateGASRewards:                 "GASRewards",
}

func (t UpdateType) String() string {
	if name, ok := updateTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UpdateType(%d)", uint8(t))
}

// BlockItemKind is the first byte of every item submitted to the chain.
type BlockItemKind uint8

const (
	AccountTransactionItem   BlockItemKind = 0
	CredentialDeploymentItem BlockItemKind = 1
	UpdateInstructionItem    BlockItemKind = 2
)
