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
	"encoding/json"
	"testing"

	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/common/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUpdatePayloads() []UpdatePayload {
	return []UpdatePayload{
		&MicroGTUPerEuro{ExchangeRate{Numerator: 500000, Denominator: 1}},
		&EuroPerEnergy{ExchangeRate{Numerator: 1, Denominator: 50000}},
		&ElectionDifficulty{Difficulty: 25000},
		&FoundationAccount{Address: testRecipient},
		&MintDistribution{Mantissa: 7555368, Exponent: 16, BakingReward: 60000, FinalizationReward: 30000},
		&TransactionFeeDistribution{Baker: 45000, GASAccount: 45000},
		&GASRewards{Baker: 25000, FinalizationProof: 50, AccountCreation: 200, ChainUpdate: 50},
		&ProtocolUpdate{
			Message:           "P2",
			SpecificationURL:  "https://example.com/p2",
			SpecificationHash: common.Hash{0x01},
			AuxiliaryData:     common.HexBytes{0x0a, 0x0b},
		},
	}
}

func testUpdate(p UpdatePayload) *UpdateInstruction {
	return &UpdateInstruction{
		Header:  UpdateHeader{SequenceNumber: 4, EffectiveTime: 2000, Timeout: 1000},
		Payload: p,
	}
}

func TestUpdatePayloadRoundTrip(t *testing.T) {
	for _, p := range testUpdatePayloads() {
		t.Run(p.UpdateType().String(), func(t *testing.T) {
			encoded, err := SerializeUpdatePayload(p)
			require.NoError(t, err)
			assert.Equal(t, uint8(p.UpdateType()), encoded[0])

			decoded, err := DeserializeUpdatePayload(encoded)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestProtocolUpdateLayout(t *testing.T) {
	p := testUpdatePayloads()[7].(*ProtocolUpdate)
	encoded, err := SerializeUpdatePayload(p)
	require.NoError(t, err)

	r := wire.NewReader(encoded)
	assert.Equal(t, uint8(UpdateProtocol), r.Word8())
	assert.Equal(t, uint64(r.Remaining()-8), r.Word64())
	assert.Equal(t, []byte("P2"), r.LengthPrefixed64())
	assert.Equal(t, []byte("https://example.com/p2"), r.LengthPrefixed64())
	assert.Equal(t, p.SpecificationHash.Bytes(), r.Bytes(common.HashLength))
	assert.Equal(t, []byte{0x0a, 0x0b}, r.Rest())
}

func TestUpdateHeader(t *testing.T) {
	u := testUpdate(&ElectionDifficulty{Difficulty: 1})
	header, payload, err := u.Encode()
	require.NoError(t, err)
	require.Len(t, header, UpdateHeaderLength)
	assert.Equal(t, wire.EncodeWord64(4), header[:8])
	assert.Equal(t, wire.EncodeWord32(uint64(len(payload))), header[24:])

	digest, err := u.SignDigest()
	require.NoError(t, err)
	assert.Equal(t, TransactionHash(header, payload), digest)

	u.Header.Timeout = 2000
	_, _, err = u.Encode()
	assert.ErrorIs(t, err, wire.ErrMalformedInput)

	u.Header.EffectiveTime = 0
	_, _, err = u.Encode()
	assert.NoError(t, err)
}

func TestUpdatePayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload UpdatePayload
		err     error
	}{
		{"nil", nil, ErrMissingField},
		{"nil exchange rate", (*EuroPerEnergy)(nil), ErrMissingField},
		{"nil protocol update", (*ProtocolUpdate)(nil), ErrMissingField},
		{"zero denominator", &EuroPerEnergy{ExchangeRate{Numerator: 1}}, wire.ErrMalformedInput},
		{"difficulty", &ElectionDifficulty{Difficulty: MaxCommission}, wire.ErrMalformedInput},
		{"mint shares", &MintDistribution{BakingReward: 60000, FinalizationReward: 60000}, wire.ErrMalformedInput},
		{"fee shares", &TransactionFeeDistribution{Baker: 90000, GASAccount: 20000}, wire.ErrMalformedInput},
		{"gas reward", &GASRewards{Baker: MaxCommission + 1}, wire.ErrMalformedInput},
		{"protocol message", &ProtocolUpdate{SpecificationURL: "u"}, ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SerializeUpdatePayload(tt.payload)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestUpdateBlockItem(t *testing.T) {
	u := testUpdate(&FoundationAccount{Address: testRecipient})
	signed, err := u.WithSignature(5, Signature{0x05})
	require.NoError(t, err)
	signed, err = signed.WithSignature(2, Signature{0x02})
	require.NoError(t, err)
	assert.Empty(t, u.Signatures)

	_, err = signed.WithSignature(5, Signature{0x06})
	assert.ErrorIs(t, err, ErrDuplicateSignature)

	header, payload, err := signed.Encode()
	require.NoError(t, err)
	item, err := signed.BlockItem()
	require.NoError(t, err)

	r := wire.NewReader(item)
	assert.Equal(t, uint8(UpdateInstructionItem), r.Word8())
	assert.Equal(t, header, r.Bytes(UpdateHeaderLength))
	assert.Equal(t, payload, r.Bytes(len(payload)))
	assert.Equal(t, uint16(2), r.Word16())
	assert.Equal(t, uint16(2), r.Word16())
	assert.Equal(t, byte(0x02), r.LengthPrefixed16()[0])
	assert.Equal(t, uint16(5), r.Word16())
	assert.Equal(t, byte(0x05), r.LengthPrefixed16()[0])
	require.NoError(t, r.Finish())

	hash, err := signed.BlockItemHash()
	require.NoError(t, err)
	assert.Equal(t, common.Hash(sha256.Sum256(item)), hash)

	digest, err := u.SignDigest()
	require.NoError(t, err)
	signedDigest, err := signed.SignDigest()
	require.NoError(t, err)
	assert.Equal(t, digest, signedDigest)
}

func TestUpdateInstructionJSON(t *testing.T) {
	for _, p := range testUpdatePayloads() {
		u, err := testUpdate(p).WithSignature(1, Signature{0x01})
		require.NoError(t, err)
		enc, err := json.Marshal(u)
		require.NoError(t, err)

		var dec UpdateInstruction
		require.NoError(t, json.Unmarshal(enc, &dec), string(enc))
		assert.Equal(t, u, &dec)
	}

	var dec UpdateInstruction
	err := json.Unmarshal([]byte(`{"header": {}, "updateType": 99, "payload": {}}`), &dec)
	assert.ErrorIs(t, err, ErrUnsupportedTransactionKind)
}
