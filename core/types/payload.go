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
	"fmt"

	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/common/wire"
)

// Field widths of the payload layouts.
const (
	KindLength            = 2
	EncryptedAmountLength = 192
	MaxRegisteredData     = 256
	MaxCommission         = 100000 // parts per hundred thousand

	ElectionVerifyKeyLength    = 32
	SignatureVerifyKeyLength   = 32
	AggregationVerifyKeyLength = 96
	ProofLength                = 64

	// ScheduleBaseLength is the kind, recipient and point count preceding
	// the schedule points of a TransferWithSchedule payload.
	ScheduleBaseLength = KindLength + common.AddressLength + 2
	// SchedulePointLength is the size of one serialized release point.
	SchedulePointLength = 16
	// TransferToPublicDataLength is the remaining encrypted amount, the
	// amount, the index and the proof length that follow the kind of a
	// TransferToPublic payload.
	TransferToPublicDataLength = EncryptedAmountLength + 8 + 8 + 2
)

// Payload is the kind specific part of an account transaction. The set of
// implementations is closed: the kind of a transaction is always the kind of
// its payload, so tag and shape cannot disagree.
type Payload interface {
	// Kind returns the transaction kind tag of the payload.
	Kind() TransactionKind

	// Validate checks that every required field is present and well formed.
	Validate() error

	encode(w *wire.Writer)
}

// SerializePayload validates p and returns its wire encoding: the kind as a
// Word16 followed by the kind specific fields.
func SerializePayload(p Payload) ([]byte, error) {
	if IsNilPayload(p) {
		return nil, fmt.Errorf("%w: payload", ErrMissingField)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%v payload: %w", p.Kind(), err)
	}
	w := wire.NewWriter(64)
	w.Word16(uint16(p.Kind()))
	p.encode(w)
	return w.Output(), nil
}

// ConfirmPayload returns the payload of tx as a T, or
// ErrUnsupportedTransactionKind if the transaction carries another variant.
func ConfirmPayload[T Payload](tx *AccountTransaction) (T, error) {
	p, ok := tx.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: have %v", ErrUnsupportedTransactionKind, tx.Kind())
	}
	return p, nil
}

// IsNilPayload reports whether p is absent, either as a nil interface or as
// a nil pointer of one of the payload variants.
func IsNilPayload(p Payload) bool {
	switch v := p.(type) {
	case nil:
		return true
	case *SimpleTransfer:
		return v == nil
	case *TransferWithSchedule:
		return v == nil
	case *TransferToEncrypted:
		return v == nil
	case *TransferToPublic:
		return v == nil
	case *AddBaker:
		return v == nil
	case *RemoveBaker:
		return v == nil
	case *UpdateBakerStake:
		return v == nil
	case *UpdateBakerRestakeEarnings:
		return v == nil
	case *UpdateBakerKeys:
		return v == nil
	case *RegisterData:
		return v == nil
	case *ConfigureBaker:
		return v == nil
	case *ConfigureDelegation:
		return v == nil
	case *RawPayload:
		return v == nil
	}
	return false
}

func missing(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

func checkLength(name string, b []byte, n int) error {
	if len(b) == 0 {
		return missing(name)
	}
	if len(b) != n {
		return fmt.Errorf("%w: %s must be %d bytes, have %d", wire.ErrMalformedInput, name, n, len(b))
	}
	return nil
}

func checkCommission(name string, v uint32) error {
	if v > MaxCommission {
		return fmt.Errorf("%w: %s of %d exceeds %d", wire.ErrMalformedInput, name, v, MaxCommission)
	}
	return nil
}

// SimpleTransfer moves an amount to another account.
type SimpleTransfer struct {
	ToAddress common.AccountAddress `json:"toAddress"`
	Amount    common.Amount         `json:"amount"`
}

func (p *SimpleTransfer) Kind() TransactionKind { return KindSimpleTransfer }
func (p *SimpleTransfer) Validate() error       { return nil }

func (p *SimpleTransfer) encode(w *wire.Writer) {
	w.Bytes(p.ToAddress.Bytes()).Word64(uint64(p.Amount))
}

// TransferWithSchedule transfers an amount released over time.
type TransferWithSchedule struct {
	ToAddress common.AccountAddress `json:"toAddress"`
	Schedule  Schedule              `json:"schedule"`
}

func (p *TransferWithSchedule) Kind() TransactionKind { return KindTransferWithSchedule }
func (p *TransferWithSchedule) Validate() error       { return p.Schedule.Validate() }

func (p *TransferWithSchedule) encode(w *wire.Writer) {
	w.Bytes(p.ToAddress.Bytes()).Word16(uint16(len(p.Schedule)))
	for _, point := range p.Schedule {
		point.encode(w)
	}
}

// TransferToEncrypted shields part of the public balance.
type TransferToEncrypted struct {
	Amount common.Amount `json:"amount"`
}

func (p *TransferToEncrypted) Kind() TransactionKind { return KindTransferToEncrypted }
func (p *TransferToEncrypted) Validate() error       { return nil }

func (p *TransferToEncrypted) encode(w *wire.Writer) {
	w.Word64(uint64(p.Amount))
}

// TransferToPublic unshields part of the encrypted balance. The proof is
// produced by an external prover and is carried opaquely.
type TransferToPublic struct {
	RemainingEncryptedAmount common.HexBytes `json:"remainingEncryptedAmount"`
	TransferAmount           common.Amount   `json:"transferAmount"`
	Index                    uint64          `json:"index,string"`
	Proof                    common.HexBytes `json:"proof"`
}

func (p *TransferToPublic) Kind() TransactionKind { return KindTransferToPublic }

func (p *TransferToPublic) Validate() error {
	if err := checkLength("remaining encrypted amount", p.RemainingEncryptedAmount, EncryptedAmountLength); err != nil {
		return err
	}
	if len(p.Proof) == 0 {
		return missing("proof")
	}
	if len(p.Proof) > 0xffff {
		return fmt.Errorf("%w: proof of %d bytes", wire.ErrMalformedInput, len(p.Proof))
	}
	return nil
}

func (p *TransferToPublic) encode(w *wire.Writer) {
	w.FixedBytes(p.RemainingEncryptedAmount, EncryptedAmountLength).
		Word64(uint64(p.TransferAmount)).
		Word64(p.Index).
		LengthPrefixed16(p.Proof)
}

// BakerKeys holds the public keys of a baker together with the proofs of
// knowledge of the matching secret keys.
type BakerKeys struct {
	ElectionVerifyKey    common.HexBytes `json:"electionVerifyKey"`
	SignatureVerifyKey   common.HexBytes `json:"signatureVerifyKey"`
	AggregationVerifyKey common.HexBytes `json:"aggregationVerifyKey"`
	ProofSignature       common.HexBytes `json:"proofSignature"`
	ProofElection        common.HexBytes `json:"proofElection"`
	ProofAggregation     common.HexBytes `json:"proofAggregation"`
}

// BakerKeysLength is the encoded size of BakerKeys.
const BakerKeysLength = ElectionVerifyKeyLength + SignatureVerifyKeyLength + AggregationVerifyKeyLength + 3*ProofLength

func (k *BakerKeys) Validate() error {
	checks := []struct {
		name string
		b    []byte
		n    int
	}{
		{"election verify key", k.ElectionVerifyKey, ElectionVerifyKeyLength},
		{"signature verify key", k.SignatureVerifyKey, SignatureVerifyKeyLength},
		{"aggregation verify key", k.AggregationVerifyKey, AggregationVerifyKeyLength},
		{"signature proof", k.ProofSignature, ProofLength},
		{"election proof", k.ProofElection, ProofLength},
		{"aggregation proof", k.ProofAggregation, ProofLength},
	}
	for _, c := range checks {
		if err := checkLength(c.name, c.b, c.n); err != nil {
			return err
		}
	}
	return nil
}

// encode writes the keys in the order used by AddBaker and UpdateBakerKeys:
// all verify keys first, then all proofs.
func (k *BakerKeys) encode(w *wire.Writer) {
	w.FixedBytes(k.ElectionVerifyKey, ElectionVerifyKeyLength).
		FixedBytes(k.SignatureVerifyKey, SignatureVerifyKeyLength).
		FixedBytes(k.AggregationVerifyKey, AggregationVerifyKeyLength).
		FixedBytes(k.ProofSignature, ProofLength).
		FixedBytes(k.ProofElection, ProofLength).
		FixedBytes(k.ProofAggregation, ProofLength)
}

// encodeInterleaved writes every key followed by its proof, the order used by
// ConfigureBaker.
func (k *BakerKeys) encodeInterleaved(w *wire.Writer) {
	w.FixedBytes(k.ElectionVerifyKey, ElectionVerifyKeyLength).
		FixedBytes(k.ProofElection, ProofLength).
		FixedBytes(k.SignatureVerifyKey, SignatureVerifyKeyLength).
		FixedBytes(k.ProofSignature, ProofLength).
		FixedBytes(k.AggregationVerifyKey, AggregationVerifyKeyLength).
		FixedBytes(k.ProofAggregation, ProofLength)
}

// AddBaker registers the sender as a baker.
type AddBaker struct {
	BakerKeys
	BakingStake     common.Amount `json:"bakingStake"`
	RestakeEarnings bool          `json:"restakeEarnings"`
}

func (p *AddBaker) Kind() TransactionKind { return KindAddBaker }
func (p *AddBaker) Validate() error       { return p.BakerKeys.Validate() }

func (p *AddBaker) encode(w *wire.Writer) {
	p.BakerKeys.encode(w)
	w.Word64(uint64(p.BakingStake)).Bool(p.RestakeEarnings)
}

// RemoveBaker deregisters the sender as a baker.
type RemoveBaker struct{}

func (p *RemoveBaker) Kind() TransactionKind { return KindRemoveBaker }
func (p *RemoveBaker) Validate() error       { return nil }
func (p *RemoveBaker) encode(*wire.Writer)   {}

// UpdateBakerStake changes the staked amount of a baker.
type UpdateBakerStake struct {
	Stake common.Amount `json:"stake"`
}

func (p *UpdateBakerStake) Kind() TransactionKind { return KindUpdateBakerStake }
func (p *UpdateBakerStake) Validate() error       { return nil }
func (p *UpdateBakerStake) encode(w *wire.Writer) { w.Word64(uint64(p.Stake)) }

// UpdateBakerRestakeEarnings changes whether rewards are added to the stake.
type UpdateBakerRestakeEarnings struct {
	RestakeEarnings bool `json:"restakeEarnings"`
}

func (p *UpdateBakerRestakeEarnings) Kind() TransactionKind { return KindUpdateBakerRestakeEarnings }
func (p *UpdateBakerRestakeEarnings) Validate() error       { return nil }
func (p *UpdateBakerRestakeEarnings) encode(w *wire.Writer) { w.Bool(p.RestakeEarnings) }

// UpdateBakerKeys replaces the keys of a baker.
type UpdateBakerKeys struct {
	BakerKeys
}

func (p *UpdateBakerKeys) Kind() TransactionKind { return KindUpdateBakerKeys }
func (p *UpdateBakerKeys) Validate() error       { return p.BakerKeys.Validate() }
func (p *UpdateBakerKeys) encode(w *wire.Writer) { p.BakerKeys.encode(w) }

// RegisterData records arbitrary data on chain.
type RegisterData struct {
	Data common.HexBytes `json:"data"`
}

func (p *RegisterData) Kind() TransactionKind { return KindRegisterData }

func (p *RegisterData) Validate() error {
	if len(p.Data) == 0 {
		return missing("data")
	}
	if len(p.Data) > MaxRegisteredData {
		return fmt.Errorf("%w: %d bytes of data exceeds %d", wire.ErrMalformedInput, len(p.Data), MaxRegisteredData)
	}
	return nil
}

func (p *RegisterData) encode(w *wire.Writer) { w.LengthPrefixed16(p.Data) }

// OpenStatus controls whether a baker pool accepts delegators.
type OpenStatus uint8

const (
	OpenForAll       OpenStatus = 0
	ClosedForNew     OpenStatus = 1
	ClosedForAll     OpenStatus = 2
	maxOpenStatus               = ClosedForAll
)

// Bits of the ConfigureBaker bitmap.
const (
	bakerCapital = 1 << iota
	bakerRestakeEarnings
	bakerOpenForDelegation
	bakerKeys
	bakerMetadataURL
	bakerTransactionFeeCommission
	bakerBakingRewardCommission
	bakerFinalizationRewardCommission
	bakerSuspended
)

// MaxMetadataURLLength is the longest pool metadata URL accepted on chain.
const MaxMetadataURLLength = 2048

// ConfigureBaker adds, updates or removes a baker. Nil fields are left
// unchanged and are absent from the encoding.
type ConfigureBaker struct {
	Capital                      *common.Amount `json:"capital,omitempty"`
	RestakeEarnings              *bool          `json:"restakeEarnings,omitempty"`
	OpenForDelegation            *OpenStatus    `json:"openForDelegation,omitempty"`
	Keys                         *BakerKeys     `json:"keys,omitempty"`
	MetadataURL                  *string        `json:"metadataUrl,omitempty"`
	TransactionFeeCommission     *uint32        `json:"transactionFeeCommission,omitempty"`
	BakingRewardCommission       *uint32        `json:"bakingRewardCommission,omitempty"`
	FinalizationRewardCommission *uint32        `json:"finalizationRewardCommission,omitempty"`
	Suspended                    *bool          `json:"suspended,omitempty"`
}

func (p *ConfigureBaker) Kind() TransactionKind { return KindConfigureBaker }

// Bitmap returns the set of fields present in the payload.
func (p *ConfigureBaker) Bitmap() uint16 {
	var bitmap uint16
	set := func(present bool, bit uint16) {
		if present {
			bitmap |= bit
		}
	}
	set(p.Capital != nil, bakerCapital)
	set(p.RestakeEarnings != nil, bakerRestakeEarnings)
	set(p.OpenForDelegation != nil, bakerOpenForDelegation)
	set(p.Keys != nil, bakerKeys)
	set(p.MetadataURL != nil, bakerMetadataURL)
	set(p.TransactionFeeCommission != nil, bakerTransactionFeeCommission)
	set(p.BakingRewardCommission != nil, bakerBakingRewardCommission)
	set(p.FinalizationRewardCommission != nil, bakerFinalizationRewardCommission)
	set(p.Suspended != nil, bakerSuspended)
	return bitmap
}

func (p *ConfigureBaker) Validate() error {
	if p.Bitmap() == 0 {
		return missing("configure baker fields")
	}
	if p.OpenForDelegation != nil && *p.OpenForDelegation > maxOpenStatus {
		return fmt.Errorf("%w: open status %d", wire.ErrMalformedInput, *p.OpenForDelegation)
	}
	if p.Keys != nil {
		if err := p.Keys.Validate(); err != nil {
			return err
		}
	}
	if p.MetadataURL != nil && len(*p.MetadataURL) > MaxMetadataURLLength {
		return fmt.Errorf("%w: metadata url of %d bytes", wire.ErrMalformedInput, len(*p.MetadataURL))
	}
	commissions := []struct {
		name string
		v    *uint32
	}{
		{"transaction fee commission", p.TransactionFeeCommission},
		{"baking reward commission", p.BakingRewardCommission},
		{"finalization reward commission", p.FinalizationRewardCommission},
	}
	for _, c := range commissions {
		if c.v == nil {
			continue
		}
		if err := checkCommission(c.name, *c.v); err != nil {
			return err
		}
	}
	return nil
}

func (p *ConfigureBaker) encode(w *wire.Writer) {
	w.Word16(p.Bitmap())
	if p.Capital != nil {
		w.Word64(uint64(*p.Capital))
	}
	if p.RestakeEarnings != nil {
		w.Bool(*p.RestakeEarnings)
	}
	if p.OpenForDelegation != nil {
		w.Word8(uint8(*p.OpenForDelegation))
	}
	if p.Keys != nil {
		p.Keys.encodeInterleaved(w)
	}
	if p.MetadataURL != nil {
		w.LengthPrefixed16([]byte(*p.MetadataURL))
	}
	for _, v := range []*uint32{p.TransactionFeeCommission, p.BakingRewardCommission, p.FinalizationRewardCommission} {
		if v != nil {
			w.Word32(*v)
		}
	}
	if p.Suspended != nil {
		w.Bool(*p.Suspended)
	}
}

// DelegationTarget is either the passive pool or a specific baker pool.
type DelegationTarget struct {
	Passive bool   `json:"passive"`
	BakerID uint64 `json:"bakerId,string,omitempty"`
}

// Bits of the ConfigureDelegation bitmap.
const (
	delegationCapital = 1 << iota
	delegationRestakeEarnings
	delegationTarget
)

// ConfigureDelegation adds, updates or removes a delegation.
type ConfigureDelegation struct {
	Capital          *common.Amount    `json:"capital,omitempty"`
	RestakeEarnings  *bool             `json:"restakeEarnings,omitempty"`
	DelegationTarget *DelegationTarget `json:"delegationTarget,omitempty"`
}

func (p *ConfigureDelegation) Kind() TransactionKind { return KindConfigureDelegation }

// Bitmap returns the set of fields present in the payload.
func (p *ConfigureDelegation) Bitmap() uint16 {
	var bitmap uint16
	if p.Capital != nil {
		bitmap |= delegationCapital
	}
	if p.RestakeEarnings != nil {
		bitmap |= delegationRestakeEarnings
	}
	if p.DelegationTarget != nil {
		bitmap |= delegationTarget
	}
	return bitmap
}

func (p *ConfigureDelegation) Validate() error {
	if p.Bitmap() == 0 {
		return missing("configure delegation fields")
	}
	return nil
}

func (p *ConfigureDelegation) encode(w *wire.Writer) {
	w.Word16(p.Bitmap())
	if p.Capital != nil {
		w.Word64(uint64(*p.Capital))
	}
	if p.RestakeEarnings != nil {
		w.Bool(*p.RestakeEarnings)
	}
	if t := p.DelegationTarget; t != nil {
		if t.Passive {
			w.Word8(0)
		} else {
			w.Word8(1).Word64(t.BakerID)
		}
	}
}

// RawPayload carries an already encoded payload of a kind this wallet can
// transport and hash but not build or sign, such as a module deployment
// imported from another tool.
type RawPayload struct {
	Tag  TransactionKind `json:"-"`
	Data common.HexBytes `json:"data"`
}

func (p *RawPayload) Kind() TransactionKind { return p.Tag }
func (p *RawPayload) Validate() error       { return nil }
func (p *RawPayload) encode(w *wire.Writer) { w.Bytes(p.Data) }
