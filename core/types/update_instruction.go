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
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/common/wire"
)

// UpdateHeaderLength is the size of a serialized update instruction header.
const UpdateHeaderLength = 8 + 8 + 8 + 4

// UpdateHeader is the fixed size prefix of a chain update instruction.
// Times are unix seconds. An effective time of zero applies the update
// immediately.
type UpdateHeader struct {
	SequenceNumber uint64 `json:"sequenceNumber,string"`
	EffectiveTime  uint64 `json:"effectiveTime,string"`
	Timeout        uint64 `json:"timeout,string"`
}

// Validate requires the timeout to precede the effective time.
func (h *UpdateHeader) Validate() error {
	if h.EffectiveTime != 0 && h.Timeout >= h.EffectiveTime {
		return fmt.Errorf("%w: timeout %d is not before effective time %d", wire.ErrMalformedInput, h.Timeout, h.EffectiveTime)
	}
	return nil
}

func (h *UpdateHeader) serialize(payloadSize uint32) []byte {
	return wire.NewWriter(UpdateHeaderLength).
		Word64(h.SequenceNumber).
		Word64(h.EffectiveTime).
		Word64(h.Timeout).
		Word32(payloadSize).
		Expect(UpdateHeaderLength).
		Output()
}

// UpdatePayload is the type specific part of an update instruction.
type UpdatePayload interface {
	UpdateType() UpdateType
	Validate() error
	encode(w *wire.Writer)
}

func isNilUpdatePayload(p UpdatePayload) bool {
	switch v := p.(type) {
	case nil:
		return true
	case *MicroGTUPerEuro:
		return v == nil
	case *EuroPerEnergy:
		return v == nil
	case *ElectionDifficulty:
		return v == nil
	case *FoundationAccount:
		return v == nil
	case *MintDistribution:
		return v == nil
	case *TransactionFeeDistribution:
		return v == nil
	case *GASRewards:
		return v == nil
	case *ProtocolUpdate:
		return v == nil
	}
	return false
}

// SerializeUpdatePayload validates p and returns the update type followed
// by its fields.
func SerializeUpdatePayload(p UpdatePayload) ([]byte, error) {
	if isNilUpdatePayload(p) {
		return nil, missing("update payload")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%v update: %w", p.UpdateType(), err)
	}
	w := wire.NewWriter(64)
	w.Word8(uint8(p.UpdateType()))
	p.encode(w)
	return w.Output(), nil
}

// ExchangeRate is a positive rational number.
type ExchangeRate struct {
	Numerator   uint64 `json:"numerator,string"`
	Denominator uint64 `json:"denominator,string"`
}

func (r *ExchangeRate) Validate() error {
	if r.Numerator == 0 || r.Denominator == 0 {
		return fmt.Errorf("%w: exchange rate %d/%d", wire.ErrMalformedInput, r.Numerator, r.Denominator)
	}
	return nil
}

func (r *ExchangeRate) encode(w *wire.Writer) {
	w.Word64(r.Numerator).Word64(r.Denominator)
}

// MicroGTUPerEuro sets the micro CCD per euro exchange rate.
type MicroGTUPerEuro struct{ ExchangeRate }

func (p *MicroGTUPerEuro) UpdateType() UpdateType { return UpdateMicroGTUPerEuro }

// EuroPerEnergy sets the euro per energy exchange rate.
type EuroPerEnergy struct{ ExchangeRate }

func (p *EuroPerEnergy) UpdateType() UpdateType { return UpdateEuroPerEnergy }

// ElectionDifficulty sets the baker election difficulty in parts per hundred
// thousand.
type ElectionDifficulty struct {
	Difficulty uint32 `json:"electionDifficulty"`
}

func (p *ElectionDifficulty) UpdateType() UpdateType { return UpdateElectionDifficulty }

func (p *ElectionDifficulty) Validate() error {
	if p.Difficulty >= MaxCommission {
		return fmt.Errorf("%w: election difficulty %d", wire.ErrMalformedInput, p.Difficulty)
	}
	return nil
}

func (p *ElectionDifficulty) encode(w *wire.Writer) { w.Word32(p.Difficulty) }

// FoundationAccount moves the foundation account.
type FoundationAccount struct {
	Address common.AccountAddress `json:"address"`
}

func (p *FoundationAccount) UpdateType() UpdateType { return UpdateFoundationAccount }
func (p *FoundationAccount) Validate() error        { return nil }
func (p *FoundationAccount) encode(w *wire.Writer)  { w.Bytes(p.Address.Bytes()) }

// MintDistribution sets the mint rate per slot, mantissa * 10^-exponent, and
// the shares of minted CCD going to bakers and finalizers.
type MintDistribution struct {
	Mantissa           uint64 `json:"mantissa,string"`
	Exponent           uint8  `json:"exponent"`
	BakingReward       uint32 `json:"bakingReward"`
	FinalizationReward uint32 `json:"finalizationReward"`
}

func (p *MintDistribution) UpdateType() UpdateType { return UpdateMintDistribution }

func (p *MintDistribution) Validate() error {
	if uint64(p.BakingReward)+uint64(p.FinalizationReward) > MaxCommission {
		return fmt.Errorf("%w: mint shares %d + %d", wire.ErrMalformedInput, p.BakingReward, p.FinalizationReward)
	}
	return nil
}

func (p *MintDistribution) encode(w *wire.Writer) {
	w.Word64(p.Mantissa).Word8(p.Exponent).Word32(p.BakingReward).Word32(p.FinalizationReward)
}

// TransactionFeeDistribution sets the shares of transaction fees going to
// the baker and the GAS account.
type TransactionFeeDistribution struct {
	Baker      uint32 `json:"baker"`
	GASAccount uint32 `json:"gasAccount"`
}

func (p *TransactionFeeDistribution) UpdateType() UpdateType {
	return UpdateTransactionFeeDistribution
}

func (p *TransactionFeeDistribution) Validate() error {
	if uint64(p.Baker)+uint64(p.GASAccount) > MaxCommission {
		return fmt.Errorf("%w: fee shares %d + %d", wire.ErrMalformedInput, p.Baker, p.GASAccount)
	}
	return nil
}

func (p *TransactionFeeDistribution) encode(w *wire.Writer) {
	w.Word32(p.Baker).Word32(p.GASAccount)
}

// GASRewards sets the shares of the GAS account paid out per block.
type GASRewards struct {
	Baker             uint32 `json:"baker"`
	FinalizationProof uint32 `json:"finalizationProof"`
	AccountCreation   uint32 `json:"accountCreation"`
	ChainUpdate       uint32 `json:"chainUpdate"`
}

func (p *GASRewards) UpdateType() UpdateType { return UpdateGASRewards }

func (p *GASRewards) Validate() error {
	for name, v := range map[string]uint32{
		"baker":              p.Baker,
		"finalization proof": p.FinalizationProof,
		"account creation":   p.AccountCreation,
		"chain update":       p.ChainUpdate,
	} {
		if err := checkCommission(name+" reward", v); err != nil {
			return err
		}
	}
	return nil
}

func (p *GASRewards) encode(w *wire.Writer) {
	w.Word32(p.Baker).Word32(p.FinalizationProof).Word32(p.AccountCreation).Word32(p.ChainUpdate)
}

// ProtocolUpdate announces a new protocol version.
type ProtocolUpdate struct {
	Message           string          `json:"message"`
	SpecificationURL  string          `json:"specificationUrl"`
	SpecificationHash common.Hash     `json:"specificationHash"`
	AuxiliaryData     common.HexBytes `json:"auxiliaryData"`
}

func (p *ProtocolUpdate) UpdateType() UpdateType { return UpdateProtocol }

func (p *ProtocolUpdate) Validate() error {
	if p.Message == "" {
		return missing("protocol update message")
	}
	if p.SpecificationURL == "" {
		return missing("specification url")
	}
	return nil
}

// restLength is the byte count following the leading length field.
func (p *ProtocolUpdate) restLength() int {
	return 8 + len(p.Message) + 8 + len(p.SpecificationURL) + common.HashLength + len(p.AuxiliaryData)
}

func (p *ProtocolUpdate) encode(w *wire.Writer) {
	w.Word64(uint64(p.restLength())).
		LengthPrefixed64([]byte(p.Message)).
		LengthPrefixed64([]byte(p.SpecificationURL)).
		Bytes(p.SpecificationHash.Bytes()).
		Bytes(p.AuxiliaryData)
}

// DeserializeUpdatePayload decodes a payload produced by
// SerializeUpdatePayload.
func DeserializeUpdatePayload(b []byte) (UpdatePayload, error) {
	r := wire.NewReader(b)
	typ := UpdateType(r.Word8())
	if err := r.Err(); err != nil {
		return nil, err
	}

	var p UpdatePayload
	switch typ {
	case UpdateMicroGTUPerEuro:
		p = &MicroGTUPerEuro{ExchangeRate{Numerator: r.Word64(), Denominator: r.Word64()}}
	case UpdateEuroPerEnergy:
		p = &EuroPerEnergy{ExchangeRate{Numerator: r.Word64(), Denominator: r.Word64()}}
	case UpdateElectionDifficulty:
		p = &ElectionDifficulty{Difficulty: r.Word32()}
	case UpdateFoundationAccount:
		t := new(FoundationAccount)
		r.Fixed(t.Address[:])
		p = t
	case UpdateMintDistribution:
		p = &MintDistribution{
			Mantissa:           r.Word64(),
			Exponent:           r.Word8(),
			BakingReward:       r.Word32(),
			FinalizationReward: r.Word32(),
		}
	case UpdateTransactionFeeDistribution:
		p = &TransactionFeeDistribution{Baker: r.Word32(), GASAccount: r.Word32()}
	case UpdateGASRewards:
		p = &GASRewards{
			Baker:             r.Word32(),
			FinalizationProof: r.Word32(),
			AccountCreation:   r.Word32(),
			ChainUpdate:       r.Word32(),
		}
	case UpdateProtocol:
		rest := r.Word64()
		if r.Err() == nil && rest != uint64(r.Remaining()) {
			return nil, fmt.Errorf("%w: protocol update announces %d bytes, have %d", wire.ErrMalformedInput, rest, r.Remaining())
		}
		t := &ProtocolUpdate{
			Message:          string(r.LengthPrefixed64()),
			SpecificationURL: string(r.LengthPrefixed64()),
		}
		r.Fixed(t.SpecificationHash[:])
		t.AuxiliaryData = r.Rest()
		p = t
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTransactionKind, typ)
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("%v update: %w", typ, err)
	}
	return p, nil
}

// UpdateInstructionSignature is a signature by one of the authorization keys
// of the chain.
type UpdateInstructionSignature struct {
	AuthorizationKeyIndex uint16    `json:"authorizationKeyIndex"`
	Signature             Signature `json:"signature"`
}

// UpdateInstruction is a chain parameter update signed by a threshold of
// governance keys.
type UpdateInstruction struct {
	Header     UpdateHeader
	Payload    UpdatePayload
	Signatures []UpdateInstructionSignature
}

// Encode serializes the payload and the header built from its length.
func (u *UpdateInstruction) Encode() (header, payload []byte, err error) {
	if err := u.Header.Validate(); err != nil {
		return nil, nil, err
	}
	payload, err = SerializeUpdatePayload(u.Payload)
	if err != nil {
		return nil, nil, err
	}
	return u.Header.serialize(uint32(len(payload))), payload, nil
}

// SignDigest returns the SHA-256 digest of header || payload.
func (u *UpdateInstruction) SignDigest() (common.Hash, error) {
	header, payload, err := u.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return TransactionHash(header, payload), nil
}

// WithSignature returns a copy of u with sig added under the authorization
// key index. Signatures stay ordered by key index.
func (u *UpdateInstruction) WithSignature(index uint16, sig Signature) (*UpdateInstruction, error) {
	for _, s := range u.Signatures {
		if s.AuthorizationKeyIndex == index {
			return nil, fmt.Errorf("%w: authorization key %d", ErrDuplicateSignature, index)
		}
	}
	cpy := *u
	cpy.Signatures = make([]UpdateInstructionSignature, len(u.Signatures), len(u.Signatures)+1)
	copy(cpy.Signatures, u.Signatures)
	cpy.Signatures = append(cpy.Signatures, UpdateInstructionSignature{AuthorizationKeyIndex: index, Signature: sig})
	sort.Slice(cpy.Signatures, func(i, j int) bool {
		return cpy.Signatures[i].AuthorizationKeyIndex < cpy.Signatures[j].AuthorizationKeyIndex
	})
	return &cpy, nil
}

// BlockItem returns the encoding submitted to a node.
func (u *UpdateInstruction) BlockItem() ([]byte, error) {
	header, payload, err := u.Encode()
	if err != nil {
		return nil, err
	}
	sigs := make([]UpdateInstructionSignature, len(u.Signatures))
	copy(sigs, u.Signatures)
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].AuthorizationKeyIndex < sigs[j].AuthorizationKeyIndex })

	w := wire.NewWriter(1 + len(header) + len(payload) + 2 + len(sigs)*(4+SignatureLength))
	w.Word8(uint8(UpdateInstructionItem)).Bytes(header).Bytes(payload).Word16(uint16(len(sigs)))
	for _, s := range sigs {
		w.Word16(s.AuthorizationKeyIndex).LengthPrefixed16(s.Signature[:])
	}
	return w.Output(), nil
}

// BlockItemHash returns the SHA-256 digest of the block item.
func (u *UpdateInstruction) BlockItemHash() (common.Hash, error) {
	item, err := u.BlockItem()
	if err != nil {
		return common.Hash{}, err
	}
	sum := sha256.Sum256(item)
	return common.BytesToHash(sum[:]), nil
}
