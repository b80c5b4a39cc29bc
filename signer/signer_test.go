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
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/ccd-wallet/ledger-signer/accounts"
	"github.com/ccd-wallet/ledger-signer/accounts/usbwallet"
	"github.com/ccd-wallet/ledger-signer/accounts/usbwallet/usbwallettest"
	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x42}, ed25519.SeedSize))

func testTx() *types.AccountTransaction {
	return &types.AccountTransaction{
		Sender:       common.AccountAddress{0x01},
		Nonce:        3,
		EnergyAmount: 501,
		Expiry:       1700000000,
		Payload:      &types.SimpleTransfer{ToAddress: common.AccountAddress{0x02}, Amount: 1000000},
	}
}

// deviceSigning answers like a device holding testKey.
func deviceSigning(digest common.Hash) *usbwallettest.MockTransport {
	sig := ed25519.Sign(testKey, digest.Bytes())
	pub := testKey.Public().(ed25519.PublicKey)
	return usbwallettest.NewMockTransport(usbwallettest.OK(sig), usbwallettest.OK(pub))
}

func session(t *testing.T, mock *usbwallettest.MockTransport) *usbwallet.Session {
	sess, err := usbwallettest.NewDevice(mock).Acquire(context.Background())
	require.NoError(t, err)
	t.Cleanup(sess.Release)
	return sess
}

func TestSignAccountTransaction(t *testing.T) {
	tx := testTx()
	digest, err := tx.SignDigest()
	require.NoError(t, err)

	mock := deviceSigning(digest)
	path := accounts.AccountPath(0, 0, 2)
	signed, err := SignAccountTransaction(context.Background(), session(t, mock), path, tx, Options{Verify: true})
	require.NoError(t, err)

	sigs := signed.Signatures()
	require.Contains(t, sigs, types.CredentialIndex(0))
	require.Contains(t, sigs[0], types.KeyIndex(2))
	assert.Equal(t, digest, signed.Hash())
	assert.Len(t, mock.Exchanges(), 2)
}

func TestSignAccountTransactionMismatch(t *testing.T) {
	tx := testTx()
	other := *tx
	other.Nonce = 4
	digest, err := other.SignDigest()
	require.NoError(t, err)

	key := types.KeyIndex(0)
	_, err = SignAccountTransaction(context.Background(), session(t, deviceSigning(digest)), accounts.AccountPath(0, 0, 0), tx, Options{Key: &key, Verify: true})
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestSignAccountTransactionNoVerify(t *testing.T) {
	mock := usbwallettest.NewMockTransport(usbwallettest.Signature(0x09))
	key := types.KeyIndex(5)
	signed, err := SignAccountTransaction(context.Background(), session(t, mock), accounts.GovernancePath(accounts.GovernanceRoot, 0), testTx(), Options{Credential: 1, Key: &key})
	require.NoError(t, err)
	assert.Equal(t, byte(0x09), signed.Signatures()[1][5][0])
	assert.Len(t, mock.Exchanges(), 1)
}

func TestSignAccountTransactionNeedsKeyIndex(t *testing.T) {
	mock := usbwallettest.NewMockTransport()
	_, err := SignAccountTransaction(context.Background(), session(t, mock), accounts.GovernancePath(accounts.GovernanceRoot, 0), testTx(), Options{})
	assert.Error(t, err)
	assert.Empty(t, mock.Exchanges())
}

func TestSignAccountTransactionRejected(t *testing.T) {
	mock := usbwallettest.NewMockTransport(usbwallettest.Status(usbwallet.StatusUserDeclined))
	signed, err := SignAccountTransaction(context.Background(), session(t, mock), accounts.AccountPath(0, 0, 0), testTx(), Options{})
	assert.ErrorIs(t, err, usbwallet.ErrDeviceRejected)
	assert.Nil(t, signed)
}

func TestSignUpdateInstruction(t *testing.T) {
	update := &types.UpdateInstruction{
		Header:  types.UpdateHeader{SequenceNumber: 9, EffectiveTime: 100, Timeout: 50},
		Payload: &types.ElectionDifficulty{Difficulty: 25000},
	}
	digest, err := update.SignDigest()
	require.NoError(t, err)

	path := accounts.GovernancePath(accounts.GovernanceLevel2, 3)
	signed, err := SignUpdateInstruction(context.Background(), session(t, deviceSigning(digest)), path, update, 3, true)
	require.NoError(t, err)
	require.Len(t, signed.Signatures, 1)
	assert.Equal(t, uint16(3), signed.Signatures[0].AuthorizationKeyIndex)
	assert.Empty(t, update.Signatures)

	export, err := NewUpdateExport(signed)
	require.NoError(t, err)
	assert.Equal(t, digest, export.SignDigest)
}

func TestExport(t *testing.T) {
	tx := testTx()
	signed, err := tx.WithSignature(0, 0, types.Signature{0x01})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewExport(signed)))

	var doc struct {
		Transaction   *types.AccountTransaction         `json:"transaction"`
		Signatures    types.AccountTransactionSignature `json:"signatures"`
		SignDigest    common.Hash                       `json:"signDigest"`
		BlockItem     common.HexBytes                   `json:"blockItem"`
		BlockItemHash common.Hash                       `json:"blockItemHash"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, tx, doc.Transaction)
	assert.Equal(t, signed.Signatures(), doc.Signatures)
	assert.Equal(t, signed.Hash(), doc.SignDigest)
	assert.Equal(t, common.HexBytes(signed.BlockItem()), doc.BlockItem)
	assert.Equal(t, signed.BlockItemHash(), doc.BlockItemHash)
}
