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

// This file contains the signing protocol of the Concordium application for
// Ledger hardware wallets.

package usbwallet

import (
	"context"
	"fmt"

	"github.com/ccd-wallet/ledger-signer/accounts"
	"github.com/ccd-wallet/ledger-signer/core/types"
)

// ledgerOpcode is an enumeration encoding the supported Ledger opcodes.
type ledgerOpcode byte

// ledgerParam1 is an enumeration encoding the supported Ledger parameters for
// specific opcodes. The same parameter values may be reused between opcodes.
type ledgerParam1 byte

// ledgerParam2 is an enumeration encoding the supported Ledger parameters for
// specific opcodes. The same parameter values may be reused between opcodes.
type ledgerParam2 byte

const (
	ledgerOpGetPublicKey             ledgerOpcode = 0x01 // Returns the public key for a given derivation path
	ledgerOpSignTransfer             ledgerOpcode = 0x02 // Signs a simple transfer
	ledgerOpSignTransferWithSchedule ledgerOpcode = 0x03 // Signs a transfer with a release schedule
	ledgerOpSignExchangeRate         ledgerOpcode = 0x06 // Signs a micro CCD per euro or euro per energy update
	ledgerOpSignTransferToEncrypted  ledgerOpcode = 0x11 // Signs a shielding transfer
	ledgerOpSignTransferToPublic     ledgerOpcode = 0x12 // Signs an unshielding transfer
	ledgerOpSignBakerKeys            ledgerOpcode = 0x13 // Signs add baker or update baker keys
	ledgerOpSignRemoveBaker          ledgerOpcode = 0x14 // Signs remove baker
	ledgerOpSignUpdateBakerStake     ledgerOpcode = 0x15 // Signs update baker stake
	ledgerOpSignUpdateBakerRestake   ledgerOpcode = 0x16 // Signs update baker restake earnings
	ledgerOpSignConfigureDelegation  ledgerOpcode = 0x17 // Signs configure delegation
	ledgerOpSignConfigureBaker       ledgerOpcode = 0x18 // Signs configure baker
	ledgerOpSignProtocolUpdate       ledgerOpcode = 0x21 // Signs a protocol update
	ledgerOpSignFeeDistribution      ledgerOpcode = 0x22 // Signs a transaction fee distribution update
	ledgerOpSignGASRewards           ledgerOpcode = 0x23 // Signs a GAS rewards update
	ledgerOpSignFoundationAccount    ledgerOpcode = 0x24 // Signs a foundation account update
	ledgerOpSignMintDistribution     ledgerOpcode = 0x25 // Signs a mint distribution update
	ledgerOpSignElectionDifficulty   ledgerOpcode = 0x26 // Signs an election difficulty update
	ledgerOpSignRegisterData         ledgerOpcode = 0x35 // Signs register data

	ledgerP1DirectlyFetchKey ledgerParam1 = 0x00 // Return the public key directly from the wallet
	ledgerP1ShowFetchKey     ledgerParam1 = 0x01 // Return the public key after showing it
	ledgerP1Initial          ledgerParam1 = 0x00 // Derivation path and header
	ledgerP1Continue         ledgerParam1 = 0x01 // Subsequent payload data
	ledgerP1Proof            ledgerParam1 = 0x02 // Proof bytes of a transfer to public

	ledgerP2Default         ledgerParam2 = 0x00
	ledgerP2AddBaker        ledgerParam2 = 0x00 // Baker keys of an add baker transaction
	ledgerP2UpdateBakerKeys ledgerParam2 = 0x01 // Baker keys of an update baker keys transaction

	// schedulePointsPerCommand is the number of release points the device
	// accepts per command.
	schedulePointsPerCommand = 15
)

// planner builds the command sequence for a serialized transaction.
type planner func(path []byte, header, payload []byte) *signingPlan

// singlePlan sends path || header || payload in one command.
//
//	CLA | INS | P1 | P2 | Lc  | Le
//	----+-----+----+----+-----+---
//	 E0 | ins | 00 | 00 | var | 40
func singlePlan(ins ledgerOpcode) planner {
	return func(path, header, payload []byte) *signingPlan {
		return &signingPlan{ins: ins, steps: []signingStep{
			{p1: ledgerP1Initial, data: concat(path, header, payload)},
		}}
	}
}

// continuationPlan sends path || header || kind first, then the rest of the
// payload in 255 byte commands.
//
//	CLA | INS | P1 | P2 | Lc  | Le
//	----+-----+----+----+-----+---
//	 E0 | ins | 00: path, header and kind
//	            01: payload chunk
//	               | p2 | var | 40 on the last chunk
func continuationPlan(ins ledgerOpcode, p2 ledgerParam2, kindLength int) planner {
	return func(path, header, payload []byte) *signingPlan {
		return &signingPlan{ins: ins, p2: p2, steps: []signingStep{
			{p1: ledgerP1Initial, data: concat(path, header, payload[:kindLength])},
			{p1: ledgerP1Continue, data: payload[kindLength:], chunk: MaxAPDUData},
		}}
	}
}

// schedulePlan sends the recipient and the point count with the header, then
// the release points in batches of 15.
//
//	CLA | INS | P1 | P2 | Lc  | Le
//	----+-----+----+----+-----+---
//	 E0 | 03  | 00: path, header, kind, recipient and point count
//	            01: up to 15 release points
//	               | 00 | var | 40 on the last batch
func schedulePlan(path, header, payload []byte) *signingPlan {
	return &signingPlan{ins: ledgerOpSignTransferWithSchedule, steps: []signingStep{
		{p1: ledgerP1Initial, data: concat(path, header, payload[:types.ScheduleBaseLength])},
		{p1: ledgerP1Continue, data: payload[types.ScheduleBaseLength:], chunk: schedulePointsPerCommand * types.SchedulePointLength},
	}}
}

// transferToPublicPlan sends the amounts with the proof length first so the
// device knows the proof size before it arrives.
//
//	CLA | INS | P1 | P2 | Lc  | Le
//	----+-----+----+----+-----+---
//	 E0 | 12  | 00: path, header and kind
//	            01: remaining amount, amount, index, proof length
//	            02: proof chunk
//	               | 00 | var | 40 on the last proof chunk
func transferToPublicPlan(path, header, payload []byte) *signingPlan {
	data := types.KindLength + types.TransferToPublicDataLength
	return &signingPlan{ins: ledgerOpSignTransferToPublic, steps: []signingStep{
		{p1: ledgerP1Initial, data: concat(path, header, payload[:types.KindLength])},
		{p1: ledgerP1Continue, data: payload[types.KindLength:data]},
		{p1: ledgerP1Proof, data: payload[data:], chunk: MaxAPDUData},
	}}
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, part := range parts {
		n += len(part)
	}
	out := make([]byte, 0, n)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}

// transactionPlanner selects the signing plan of a payload variant. Every
// signable variant has exactly one arm; anything else is unsupported.
func transactionPlanner(payload types.Payload) (planner, error) {
	if payload != nil && types.IsNilPayload(payload) {
		return nil, fmt.Errorf("%w: payload", types.ErrMissingField)
	}
	switch payload.(type) {
	case *types.SimpleTransfer:
		return singlePlan(ledgerOpSignTransfer), nil
	case *types.TransferWithSchedule:
		return schedulePlan, nil
	case *types.TransferToEncrypted:
		return singlePlan(ledgerOpSignTransferToEncrypted), nil
	case *types.TransferToPublic:
		return transferToPublicPlan, nil
	case *types.AddBaker:
		return continuationPlan(ledgerOpSignBakerKeys, ledgerP2AddBaker, types.KindLength), nil
	case *types.UpdateBakerKeys:
		return continuationPlan(ledgerOpSignBakerKeys, ledgerP2UpdateBakerKeys, types.KindLength), nil
	case *types.RemoveBaker:
		return singlePlan(ledgerOpSignRemoveBaker), nil
	case *types.UpdateBakerStake:
		return singlePlan(ledgerOpSignUpdateBakerStake), nil
	case *types.UpdateBakerRestakeEarnings:
		return singlePlan(ledgerOpSignUpdateBakerRestake), nil
	case *types.ConfigureDelegation:
		return singlePlan(ledgerOpSignConfigureDelegation), nil
	case *types.ConfigureBaker:
		return continuationPlan(ledgerOpSignConfigureBaker, ledgerP2Default, types.KindLength), nil
	case *types.RegisterData:
		return continuationPlan(ledgerOpSignRegisterData, ledgerP2Default, types.KindLength), nil
	case nil:
		return nil, fmt.Errorf("%w: transaction without payload", types.ErrUnsupportedTransactionKind)
	}
	return nil, fmt.Errorf("%w: %v", types.ErrUnsupportedTransactionKind, payload.Kind())
}

// CheckSignable returns ErrUnsupportedTransactionKind if the device has no
// signing flow for the payload, or ErrMissingField for a nil variant.
func CheckSignable(payload types.Payload) error {
	_, err := transactionPlanner(payload)
	return err
}

// SignableKinds lists the transaction kinds SignTransaction accepts.
func SignableKinds() []types.TransactionKind {
	return []types.TransactionKind{
		types.KindSimpleTransfer,
		types.KindTransferWithSchedule,
		types.KindTransferToEncrypted,
		types.KindTransferToPublic,
		types.KindAddBaker,
		types.KindUpdateBakerKeys,
		types.KindRemoveBaker,
		types.KindUpdateBakerStake,
		types.KindUpdateBakerRestakeEarnings,
		types.KindConfigureDelegation,
		types.KindConfigureBaker,
		types.KindRegisterData,
	}
}

// transactionPlan serializes tx and builds its command sequence. Nothing is
// serialized for unsupported kinds.
func transactionPlan(path accounts.DerivationPath, tx *types.AccountTransaction) (*signingPlan, error) {
	plan, err := transactionPlanner(tx.Payload)
	if err != nil {
		return nil, err
	}
	header, payload, err := tx.Encode()
	if err != nil {
		return nil, err
	}
	return plan(path.Bytes(), header, payload), nil
}

// SignTransaction streams tx to the device and waits for the user to confirm
// or deny it. It returns the signature over the transaction hash. On failure
// the session is discarded and no signature is returned.
func SignTransaction(ctx context.Context, sess *Session, path accounts.DerivationPath, tx *types.AccountTransaction) (types.Signature, error) {
	plan, err := transactionPlan(path, tx)
	if err != nil {
		return types.Signature{}, err
	}
	sess.device.log.Info("Requesting transaction signature from Ledger", "kind", tx.Kind(), "path", path)
	return newSigningSession(sess, plan.ins).run(ctx, plan)
}

func updatePlanner(payload types.UpdatePayload) (planner, error) {
	switch payload.(type) {
	case *types.MicroGTUPerEuro, *types.EuroPerEnergy:
		return singlePlan(ledgerOpSignExchangeRate), nil
	case *types.ProtocolUpdate:
		return continuationPlan(ledgerOpSignProtocolUpdate, ledgerP2Default, 1), nil
	case *types.TransactionFeeDistribution:
		return singlePlan(ledgerOpSignFeeDistribution), nil
	case *types.GASRewards:
		return singlePlan(ledgerOpSignGASRewards), nil
	case *types.FoundationAccount:
		return singlePlan(ledgerOpSignFoundationAccount), nil
	case *types.MintDistribution:
		return singlePlan(ledgerOpSignMintDistribution), nil
	case *types.ElectionDifficulty:
		return singlePlan(ledgerOpSignElectionDifficulty), nil
	case nil:
		return nil, fmt.Errorf("%w: update without payload", types.ErrUnsupportedTransactionKind)
	}
	return nil, fmt.Errorf("%w: %v", types.ErrUnsupportedTransactionKind, payload.UpdateType())
}

// SignUpdateInstruction streams a chain update to the device for signing with
// the governance key at path.
func SignUpdateInstruction(ctx context.Context, sess *Session, path accounts.DerivationPath, update *types.UpdateInstruction) (types.Signature, error) {
	plan, err := updatePlanner(update.Payload)
	if err != nil {
		return types.Signature{}, err
	}
	header, payload, err := update.Encode()
	if err != nil {
		return types.Signature{}, err
	}
	sess.device.log.Info("Requesting update signature from Ledger", "type", update.Payload.UpdateType(), "path", path)
	p := plan(path.Bytes(), header, payload)
	return newSigningSession(sess, p.ins).run(ctx, p)
}
