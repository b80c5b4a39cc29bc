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

// DeserializePayload decodes a payload produced by SerializePayload. Kinds
// without a dedicated variant decode to a *RawPayload.
func DeserializePayload(b []byte) (Payload, error) {
	r := wire.NewReader(b)
	kind := TransactionKind(r.Word16())
	if err := r.Err(); err != nil {
		return nil, err
	}

	var p Payload
	switch kind {
	case KindSimpleTransfer:
		t := new(SimpleTransfer)
		r.Fixed(t.ToAddress[:])
		t.Amount = common.Amount(r.Word64())
		p = t
	case KindTransferWithSchedule:
		t := new(TransferWithSchedule)
		r.Fixed(t.ToAddress[:])
		n := int(r.Word16())
		if r.Err() == nil && n*SchedulePointLength > r.Remaining() {
			return nil, fmt.Errorf("%w: schedule of %d points in %d bytes", wire.ErrMalformedInput, n, r.Remaining())
		}
		t.Schedule = make(Schedule, n)
		for i := range t.Schedule {
			t.Schedule[i] = SchedulePoint{Timestamp: r.Word64(), Amount: common.Amount(r.Word64())}
		}
		p = t
	case KindTransferToEncrypted:
		p = &TransferToEncrypted{Amount: common.Amount(r.Word64())}
	case KindTransferToPublic:
		p = &TransferToPublic{
			RemainingEncryptedAmount: r.Bytes(EncryptedAmountLength),
			TransferAmount:           common.Amount(r.Word64()),
			Index:                    r.Word64(),
			Proof:                    r.LengthPrefixed16(),
		}
	case KindAddBaker:
		t := &AddBaker{BakerKeys: decodeBakerKeys(r)}
		t.BakingStake = common.Amount(r.Word64())
		t.RestakeEarnings = r.Bool()
		p = t
	case KindRemoveBaker:
		p = new(RemoveBaker)
	case KindUpdateBakerStake:
		p = &UpdateBakerStake{Stake: common.Amount(r.Word64())}
	case KindUpdateBakerRestakeEarnings:
		p = &UpdateBakerRestakeEarnings{RestakeEarnings: r.Bool()}
	case KindUpdateBakerKeys:
		p = &UpdateBakerKeys{BakerKeys: decodeBakerKeys(r)}
	case KindRegisterData:
		p = &RegisterData{Data: r.LengthPrefixed16()}
	case KindConfigureBaker:
		t, err := decodeConfigureBaker(r)
		if err != nil {
			return nil, err
		}
		p = t
	case KindConfigureDelegation:
		t, err := decodeConfigureDelegation(r)
		if err != nil {
			return nil, err
		}
		p = t
	default:
		p = &RawPayload{Tag: kind, Data: r.Rest()}
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("%v payload: %w", kind, err)
	}
	return p, nil
}

func decodeBakerKeys(r *wire.Reader) BakerKeys {
	return BakerKeys{
		ElectionVerifyKey:    r.Bytes(ElectionVerifyKeyLength),
		SignatureVerifyKey:   r.Bytes(SignatureVerifyKeyLength),
		AggregationVerifyKey: r.Bytes(AggregationVerifyKeyLength),
		ProofSignature:       r.Bytes(ProofLength),
		ProofElection:        r.Bytes(ProofLength),
		ProofAggregation:     r.Bytes(ProofLength),
	}
}

func decodeConfigureBaker(r *wire.Reader) (*ConfigureBaker, error) {
	p := new(ConfigureBaker)
	bitmap := r.Word16()
	if bitmap >= bakerSuspended<<1 {
		return nil, fmt.Errorf("%w: configure baker bitmap %#x", wire.ErrMalformedInput, bitmap)
	}
	if bitmap&bakerCapital != 0 {
		v := common.Amount(r.Word64())
		p.Capital = &v
	}
	if bitmap&bakerRestakeEarnings != 0 {
		v := r.Bool()
		p.RestakeEarnings = &v
	}
	if bitmap&bakerOpenForDelegation != 0 {
		v := OpenStatus(r.Word8())
		p.OpenForDelegation = &v
	}
	if bitmap&bakerKeys != 0 {
		k := &BakerKeys{}
		k.ElectionVerifyKey = r.Bytes(ElectionVerifyKeyLength)
		k.ProofElection = r.Bytes(ProofLength)
		k.SignatureVerifyKey = r.Bytes(SignatureVerifyKeyLength)
		k.ProofSignature = r.Bytes(ProofLength)
		k.AggregationVerifyKey = r.Bytes(AggregationVerifyKeyLength)
		k.ProofAggregation = r.Bytes(ProofLength)
		p.Keys = k
	}
	if bitmap&bakerMetadataURL != 0 {
		v := string(r.LengthPrefixed16())
		p.MetadataURL = &v
	}
	commissions := []struct {
		bit uint16
		dst **uint32
	}{
		{bakerTransactionFeeCommission, &p.TransactionFeeCommission},
		{bakerBakingRewardCommission, &p.BakingRewardCommission},
		{bakerFinalizationRewardCommission, &p.FinalizationRewardCommission},
	}
	for _, c := range commissions {
		if bitmap&c.bit != 0 {
			v := r.Word32()
			*c.dst = &v
		}
	}
	if bitmap&bakerSuspended != 0 {
		v := r.Bool()
		p.Suspended = &v
	}
	return p, nil
}

func decodeConfigureDelegation(r *wire.Reader) (*ConfigureDelegation, error) {
	p := new(ConfigureDelegation)
	bitmap := r.Word16()
	if bitmap >= delegationTarget<<1 {
		return nil, fmt.Errorf("%w: configure delegation bitmap %#x", wire.ErrMalformedInput, bitmap)
	}
	if bitmap&delegationCapital != 0 {
		v := common.Amount(r.Word64())
		p.Capital = &v
	}
	if bitmap&delegationRestakeEarnings != 0 {
		v := r.Bool()
		p.RestakeEarnings = &v
	}
	if bitmap&delegationTarget != 0 {
		t := new(DelegationTarget)
		switch tag := r.Word8(); tag {
		case 0:
			t.Passive = true
		case 1:
			t.BakerID = r.Word64()
		default:
			if r.Err() == nil {
				return nil, fmt.Errorf("%w: delegation target tag %d", wire.ErrMalformedInput, tag)
			}
		}
		p.DelegationTarget = t
	}
	return p, nil
}
