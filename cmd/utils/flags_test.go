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

package utils

import (
	"flag"
	"testing"

	"github.com/ccd-wallet/ledger-signer/accounts"
	"github.com/ccd-wallet/ledger-signer/common/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/urfave/cli.v1"
)

func newTestContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range []cli.Flag{PathFlag, IdentityFlag, AccountFlag, KeyFlag, KeyTypeFlag, KeyIndexFlag} {
		f.Apply(set)
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestAccountKeyPath(t *testing.T) {
	path, err := AccountKeyPath(newTestContext(t, "--identity", "3", "--account", "1", "--key", "2"))
	require.NoError(t, err)
	assert.Equal(t, accounts.AccountPath(3, 1, 2), path)

	path, err = AccountKeyPath(newTestContext(t, "--path", "m/1105/0/0/4/2/0/0/0"))
	require.NoError(t, err)
	assert.Equal(t, accounts.AccountPath(4, 0, 0), path)
}

func TestKeyPathIndexOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		resolve func(*cli.Context) (accounts.DerivationPath, error)
		args    []string
	}{
		{"identity", AccountKeyPath, []string{"--identity", "4294967296"}},
		{"account", AccountKeyPath, []string{"--account", "4294967296"}},
		{"key", AccountKeyPath, []string{"--key", "4294967297"}},
		{"keyindex", GovernanceKeyPath, []string{"--keyindex", "4294967296"}},
		{"keytype", GovernanceKeyPath, []string{"--keytype", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := tt.resolve(newTestContext(t, tt.args...))
			assert.ErrorContains(t, err, "out of range")
			assert.Nil(t, path)
		})
	}
}

func TestGovernanceKeyPath(t *testing.T) {
	path, err := GovernanceKeyPath(newTestContext(t, "--keytype", "1", "--keyindex", "4294967295"))
	require.NoError(t, err)
	assert.Equal(t, accounts.GovernancePath(accounts.GovernanceLevel1, 4294967295), path)

	_, err = GovernanceKeyPath(newTestContext(t, "--path", "1105/0/1/0/0"))
	assert.ErrorIs(t, err, wire.ErrMalformedInput)
}
