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

// Package accounts identifies keys held by a hardware wallet.
package accounts

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ccd-wallet/ledger-signer/common/wire"
	gethaccounts "github.com/ethereum/go-ethereum/accounts"
)

// Path components shared by every key the wallet application manages.
const (
	Purpose  uint32 = 1105
	CoinType uint32 = 0

	subtreeAccounts   uint32 = 0
	subtreeGovernance uint32 = 1
	identityAccounts  uint32 = 2
	accountSignatures uint32 = 0
)

// hardenedOffset is the BIP-32 hardened key marker.
const hardenedOffset uint32 = 0x80000000

// MaxPathComponents is the deepest path the device application accepts.
const MaxPathComponents = 10

// GovernanceKeyType selects the level of a chain update authorization key.
type GovernanceKeyType uint32

const (
	GovernanceRoot   GovernanceKeyType = 0
	GovernanceLevel1 GovernanceKeyType = 1
	GovernanceLevel2 GovernanceKeyType = 2
)

// DerivationPath is the sequence of indices identifying one key on the
// device. Constructors copy their input so a path is never shared.
type DerivationPath []uint32

// NewDerivationPath validates and copies components into a path.
func NewDerivationPath(components ...uint32) (DerivationPath, error) {
	if len(components) == 0 || len(components) > MaxPathComponents {
		return nil, fmt.Errorf("%w: derivation path with %d components", wire.ErrMalformedInput, len(components))
	}
	return append(DerivationPath(nil), components...), nil
}

// ParseDerivationPath converts an absolute textual path such as
// "m/1105/0/0/0/2/0/0/0" into its components. Relative paths and hardened
// components are rejected: the device application hardens every component
// itself.
func ParseDerivationPath(s string) (DerivationPath, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "m/") {
		return nil, fmt.Errorf("%w: derivation path %q is not absolute", wire.ErrMalformedInput, s)
	}
	parsed, err := gethaccounts.ParseDerivationPath(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wire.ErrMalformedInput, err)
	}
	for i, component := range parsed {
		if component >= hardenedOffset {
			return nil, fmt.Errorf("%w: hardened component %d in derivation path %q", wire.ErrMalformedInput, i, s)
		}
	}
	return NewDerivationPath(parsed...)
}

// AccountPath returns the path of a signature key of an account credential.
func AccountPath(identity, account, signature uint32) DerivationPath {
	return DerivationPath{Purpose, CoinType, subtreeAccounts, identity, identityAccounts, account, accountSignatures, signature}
}

// GovernancePath returns the path of a chain update authorization key.
func GovernancePath(keyType GovernanceKeyType, index uint32) DerivationPath {
	return DerivationPath{Purpose, CoinType, subtreeGovernance, uint32(keyType), index}
}

// Bytes flattens the path into the device request prefix: the number of
// components as one byte followed by each component as big-endian uint32.
func (path DerivationPath) Bytes() []byte {
	if len(path) == 0 || len(path) > MaxPathComponents {
		panic(fmt.Sprintf("accounts: derivation path with %d components", len(path)))
	}
	buf := make([]byte, 1+4*len(path))
	buf[0] = byte(len(path))
	for i, component := range path {
		binary.BigEndian.PutUint32(buf[1+4*i:], component)
	}
	return buf
}

// String implements fmt.Stringer.
func (path DerivationPath) String() string {
	return gethaccounts.DerivationPath(path).String()
}
