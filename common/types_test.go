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

package common

import (
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ccd-wallet/ledger-signer/common/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountAddressText(t *testing.T) {
	var addr AccountAddress
	for i := range addr {
		addr[i] = byte(i)
	}
	text := addr.String()
	parsed, err := ParseAccountAddress(text)
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	raw, err := json.Marshal(addr)
	require.NoError(t, err)
	var decoded AccountAddress
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, addr, decoded)
}

func TestAccountAddressMalformed(t *testing.T) {
	var addr AccountAddress
	good := addr.String()

	bad := []string{
		"",
		good[:len(good)-1],
		base58.CheckEncode(addr[:], 2),
		base58.CheckEncode(addr[:31], addressVersion),
	}
	for _, s := range bad {
		_, err := ParseAccountAddress(s)
		assert.ErrorIs(t, err, wire.ErrMalformedInput, s)
	}
}

func TestHashText(t *testing.T) {
	h := BytesToHash([]byte{1, 2, 3})
	assert.Equal(t, byte(3), h[31])
	parsed, err := HexToHash(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = HexToHash("abcd")
	assert.ErrorIs(t, err, wire.ErrMalformedInput)
}

func TestHexBytes(t *testing.T) {
	var b HexBytes
	require.NoError(t, json.Unmarshal([]byte(`"00ff"`), &b))
	assert.Equal(t, HexBytes{0x00, 0xff}, b)

	err := json.Unmarshal([]byte(`"0g"`), &b)
	assert.ErrorIs(t, err, wire.ErrMalformedInput)
}

func TestAmount(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
		err  bool
	}{
		{"1", 1000000, false},
		{"0.000001", 1, false},
		{"1.5", 1500000, false},
		{"18446744073709.551615", Amount(^uint64(0)), false},
		{"18446744073709.551616", 0, true},
		{"0.0000001", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCCD(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, wire.ErrMalformedInput, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "1.500000 CCD", Amount(1500000).String())

	raw, err := json.Marshal(Amount(42))
	require.NoError(t, err)
	assert.Equal(t, `"42"`, string(raw))
}
