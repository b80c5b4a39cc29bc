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
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ccd-wallet/ledger-signer/common/wire"
)

// Lengths of hashes and addresses in bytes.
const (
	// HashLength is the expected length of a transaction hash
	HashLength = 32
	// AddressLength is the expected length of an account address
	AddressLength = 32
)

// addressVersion is the base58check version byte of account addresses.
const addressVersion = 1

// Hash represents the 32 byte SHA-256 digest of arbitrary data.
type Hash [HashLength]byte

// BytesToHash sets b to hash. If b is larger than len(h), b will be cropped
// from the left.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HexToHash parses an unprefixed hex string holding exactly 32 bytes.
func HexToHash(s string) (Hash, error) {
	b, err := wire.DecodeHexFixed(s, HashLength)
	if err != nil {
		return Hash{}, err
	}
	return BytesToHash(b), nil
}

// Bytes gets the byte representation of the underlying hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the unprefixed hex form used by the chain tooling.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(input []byte) error {
	parsed, err := HexToHash(string(input))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// AccountAddress is the 32 byte address of an account on chain.
type AccountAddress [AddressLength]byte

// ParseAccountAddress decodes the base58check text form of an address.
func ParseAccountAddress(s string) (AccountAddress, error) {
	raw, version, err := base58.CheckDecode(s)
	if err != nil {
		return AccountAddress{}, fmt.Errorf("%w: account address %q: %v", wire.ErrMalformedInput, s, err)
	}
	if version != addressVersion {
		return AccountAddress{}, fmt.Errorf("%w: account address %q has version %d", wire.ErrMalformedInput, s, version)
	}
	if len(raw) != AddressLength {
		return AccountAddress{}, fmt.Errorf("%w: account address %q has %d bytes", wire.ErrMalformedInput, s, len(raw))
	}
	var addr AccountAddress
	copy(addr[:], raw)
	return addr, nil
}

// MustParseAccountAddress is like ParseAccountAddress but panics on error.
// Only meant for constants and tests.
func MustParseAccountAddress(s string) AccountAddress {
	addr, err := ParseAccountAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// Bytes gets the byte representation of the underlying address.
func (a AccountAddress) Bytes() []byte { return a[:] }

// String returns the base58check form.
func (a AccountAddress) String() string {
	return base58.CheckEncode(a[:], addressVersion)
}

// MarshalText implements encoding.TextMarshaler.
func (a AccountAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountAddress) UnmarshalText(input []byte) error {
	parsed, err := ParseAccountAddress(string(input))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// HexBytes marshals and unmarshals as unprefixed hex.
type HexBytes []byte

// MarshalText implements encoding.TextMarshaler.
func (b HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *HexBytes) UnmarshalText(input []byte) error {
	raw, err := wire.DecodeHex(string(input))
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

// String implements fmt.Stringer.
func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}
