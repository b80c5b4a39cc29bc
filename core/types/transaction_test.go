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

var testSender = common.AccountAddress{0xaa, 0xbb}

func testTransaction(p Payload) *AccountTransaction {
	return &AccountTransaction{
		Sender:       testSender,
		Nonce:        7,
		EnergyAmount: 501,
		Expiry:       1700000000,
		Payload:      p,
	}
}

func TestHeaderLength(t *testing.T) {
	for _, p := range testPayloads() {
		header, payload, err := testTransaction(p).Encode()
		require.NoError(t, err, p.Kind().String())
		assert.Len(t, header, HeaderLength)
		assert.Len(t, header, 60)

		h, err := DecodeHeader(header)
		require.NoError(t, err)
		assert.Equal(t, uint32(len(payload)), h.PayloadSize)
		assert.Equal(t, testSender, h.Sender)
		assert.Equal(t, uint64(7), h.Nonce)
		assert.Equal(t, uint64(501), h.Energy)
		assert.Equal(t, uint64(1700000000), h.Expiry)
	}
}

func TestHeaderFieldOrder(t *testing.T) {
	header := SerializeHeader(testSender, 1, 2, 3, 4)
	assert.Equal(t, testSender.Bytes(), header[:32])
	assert.Equal(t, wire.EncodeWord64(1), header[32:40])
	assert.Equal(t, wire.EncodeWord64(2), header[40:48])
	assert.Equal(t, wire.EncodeWord32(3), header[48:52])
	assert.Equal(t, wire.EncodeWord64(4), header[52:60])
}

func TestTransactionHash(t *testing.T) {
	tx := testTransaction(&SimpleTransfer{ToAddress: testRecipient, Amount: 1000000})
	header, payload, err := tx.Encode()
	require.NoError(t, err)

	first := TransactionHash(header, payload)
	second := TransactionHash(header, payload)
	assert.Equal(t, first, second)

	joined, err := Assemble(header, payload)
	require.NoError(t, err)
	expected := sha256.Sum256(joined)
	assert.Equal(t, common.Hash(expected), first)

	digest, err := tx.SignDigest()
	require.NoError(t, err)
	assert.Equal(t, first, digest)

	for i := range payload {
		changed := append([]byte(nil), payload...)
		changed[i] ^= 0x01
		assert.NotEqual(t, first, TransactionHash(header, changed), "payload byte %d", i)
	}
	for i := range header {
		changed := append([]byte(nil), header...)
		changed[i] ^= 0x80
		assert.NotEqual(t, first, TransactionHash(changed, payload), "header byte %d", i)
	}
}

func TestAssembleSizeMismatch(t *testing.T) {
	header := SerializeHeader(testSender, 1, 1, 10, 1)
	_, err := Assemble(header, make([]byte, 9))
	assert.ErrorIs(t, err, ErrPayloadSizeMismatch)

	joined, err := Assemble(header, make([]byte, 10))
	require.NoError(t, err)
	assert.Len(t, joined, HeaderLength+10)

	_, err = Assemble(header[:59], nil)
	assert.ErrorIs(t, err, wire.ErrMalformedInput)
}

func TestEncodeRejectsInvalidPayload(t *testing.T) {
	_, _, err := testTransaction(&TransferToPublic{RemainingEncryptedAmount: filled(EncryptedAmountLength, 1)}).Encode()
	assert.ErrorIs(t, err, ErrMissingField)
	_, _, err = testTransaction(nil).Encode()
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestWithSignatureCopies(t *testing.T) {
	tx := testTransaction(&SimpleTransfer{ToAddress: testRecipient, Amount: 1})
	sig := Signature{0x01}

	signed, err := tx.WithSignature(0, 0, sig)
	require.NoError(t, err)
	tx.Nonce = 8
	assert.Equal(t, uint64(7), signed.Transaction().Nonce)

	digest, err := testTransaction(&SimpleTransfer{ToAddress: testRecipient, Amount: 1}).SignDigest()
	require.NoError(t, err)
	assert.Equal(t, digest, signed.Hash())

	more, err := signed.WithSignature(1, 2, Signature{0x02})
	require.NoError(t, err)
	assert.Equal(t, 1, signed.Signatures().Count())
	assert.Equal(t, 2, more.Signatures().Count())

	_, err = more.WithSignature(1, 2, Signature{0x03})
	assert.ErrorIs(t, err, ErrDuplicateSignature)
}

func TestBlockItemLayout(t *testing.T) {
	tx := testTransaction(&TransferToEncrypted{Amount: 9})
	header, payload, err := tx.Encode()
	require.NoError(t, err)

	signed, err := tx.WithSignature(1, 0, Signature{0xbb})
	require.NoError(t, err)
	signed, err = signed.WithSignature(0, 3, Signature{0xaa})
	require.NoError(t, err)

	item := signed.BlockItem()
	r := wire.NewReader(item)
	assert.Equal(t, uint8(AccountTransactionItem), r.Word8())
	assert.Equal(t, uint8(2), r.Word8())

	// Credential 0 comes first regardless of insertion order.
	assert.Equal(t, uint8(0), r.Word8())
	assert.Equal(t, uint8(1), r.Word8())
	assert.Equal(t, uint8(3), r.Word8())
	sig := r.LengthPrefixed16()
	assert.Equal(t, byte(0xaa), sig[0])
	assert.Len(t, sig, SignatureLength)

	assert.Equal(t, uint8(1), r.Word8())
	assert.Equal(t, uint8(1), r.Word8())
	assert.Equal(t, uint8(0), r.Word8())
	sig = r.LengthPrefixed16()
	assert.Equal(t, byte(0xbb), sig[0])

	assert.Equal(t, header, r.Bytes(HeaderLength))
	assert.Equal(t, payload, r.Rest())
	require.NoError(t, r.Finish())

	assert.Equal(t, common.Hash(sha256.Sum256(item)), signed.BlockItemHash())
}

func TestSignatureText(t *testing.T) {
	sig := Signature{0xde, 0xad}
	text, err := sig.MarshalText()
	require.NoError(t, err)

	var decoded Signature
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, sig, decoded)
	assert.ErrorIs(t, decoded.UnmarshalText([]byte("dead")), wire.ErrMalformedInput)

	_, err = SignatureFromBytes(make([]byte, 63))
	assert.ErrorIs(t, err, wire.ErrMalformedInput)
}

func TestTransactionJSON(t *testing.T) {
	for _, p := range testPayloads() {
		tx := testTransaction(p)
		enc, err := json.Marshal(tx)
		require.NoError(t, err)

		var dec AccountTransaction
		require.NoError(t, json.Unmarshal(enc, &dec), string(enc))
		assert.Equal(t, tx, &dec)
	}
}

func TestTransactionJSONDocument(t *testing.T) {
	sender := testSender.String()
	doc := `{
		"sender": "` + sender + `",
		"nonce": "12",
		"energyAmount": "501",
		"expiry": "1700000000",
		"transactionKind": 3,
		"payload": {"toAddress": "` + testRecipient.String() + `", "amount": "1000000"}
	}`
	var tx AccountTransaction
	require.NoError(t, json.Unmarshal([]byte(doc), &tx))
	assert.Equal(t, uint64(12), tx.Nonce)
	assert.Equal(t, &SimpleTransfer{ToAddress: testRecipient, Amount: 1000000}, tx.Payload)

	raw := `{"sender": "` + sender + `", "nonce": "1", "energyAmount": "1", "expiry": "1",
		"transactionKind": 0, "payload": {"data": "cafe"}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &tx))
	assert.Equal(t, &RawPayload{Tag: KindDeployModule, Data: common.HexBytes{0xca, 0xfe}}, tx.Payload)

	bad := `{"sender": "` + sender + `", "nonce": "1", "energyAmount": "1", "expiry": "1",
		"transactionKind": 21, "payload": {"data": "xyz"}}`
	assert.ErrorIs(t, json.Unmarshal([]byte(bad), &tx), wire.ErrMalformedInput)

	missingPayload := `{"sender": "` + sender + `", "nonce": "1", "energyAmount": "1", "expiry": "1", "transactionKind": 3}`
	assert.ErrorIs(t, json.Unmarshal([]byte(missingPayload), &tx), ErrMissingField)
}
