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
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ccd-wallet/ledger-signer/accounts"
	"github.com/ccd-wallet/ledger-signer/accounts/usbwallet"
	"gopkg.in/urfave/cli.v1"
)

// These are all the command line flags shared by the commands.
var (
	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the proposal database",
		Value: DefaultDataDir(),
	}
	CommandTimeoutFlag = cli.DurationFlag{
		Name:  "device.timeout",
		Usage: "Time allowed for a single device command, including user confirmation",
		Value: usbwallet.DefaultConfig.CommandTimeout,
	}
	AuditLogFlag = cli.StringFlag{
		Name:  "auditlog",
		Usage: "Append every signing attempt to this CSV file",
	}
	NoVerifyFlag = cli.BoolFlag{
		Name:  "noverify",
		Usage: "Skip checking signatures against the public key of the device",
	}

	// Key selection
	PathFlag = cli.StringFlag{
		Name:  "path",
		Usage: "Full derivation path of the signing key (e.g. m/1105/0/0/0/2/0/0/0)",
	}
	IdentityFlag = cli.UintFlag{
		Name:  "identity",
		Usage: "Identity index of the account key",
	}
	AccountFlag = cli.UintFlag{
		Name:  "account",
		Usage: "Account index of the account key",
	}
	KeyFlag = cli.UintFlag{
		Name:  "key",
		Usage: "Signature key index within the credential",
	}
	CredentialFlag = cli.UintFlag{
		Name:  "credential",
		Usage: "Credential index the signing key belongs to",
	}
	KeyTypeFlag = cli.UintFlag{
		Name:  "keytype",
		Usage: "Governance key level: 0=root, 1=level 1, 2=level 2",
		Value: uint(accounts.GovernanceLevel2),
	}
	KeyIndexFlag = cli.UintFlag{
		Name:  "keyindex",
		Usage: "Index of the governance key on the device",
	}

	// Input and output
	TxFileFlag = cli.StringFlag{
		Name:  "tx",
		Usage: "JSON file holding the account transaction",
	}
	UpdateFileFlag = cli.StringFlag{
		Name:  "update",
		Usage: "JSON file holding the update instruction",
	}
	OutFileFlag = cli.StringFlag{
		Name:  "out",
		Usage: "Write the result to this file instead of standard output",
	}
)

// DefaultDataDir is the default data directory to use for the proposal
// database.
func DefaultDataDir() string {
	home := homeDir()
	if home == "" {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "LedgerSigner")
	case "windows":
		if appdata := os.Getenv("LOCALAPPDATA"); appdata != "" {
			return filepath.Join(appdata, "LedgerSigner")
		}
		return filepath.Join(home, "AppData", "Local", "LedgerSigner")
	default:
		return filepath.Join(home, ".ledger-signer")
	}
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return home
}

// BoundedUint returns the value of a uint flag, failing if it exceeds max.
func BoundedUint(ctx *cli.Context, name string, max uint64) (uint64, error) {
	v := uint64(ctx.Uint(name))
	if v > max {
		return 0, fmt.Errorf("--%s %d out of range, maximum is %d", name, v, max)
	}
	return v, nil
}

// AccountKeyPath resolves the signing key of an account transaction from
// either --path or --identity/--account/--key.
func AccountKeyPath(ctx *cli.Context) (accounts.DerivationPath, error) {
	if ctx.IsSet(PathFlag.Name) {
		return accounts.ParseDerivationPath(ctx.String(PathFlag.Name))
	}
	var indices [3]uint32
	for i, flag := range []cli.UintFlag{IdentityFlag, AccountFlag, KeyFlag} {
		v, err := BoundedUint(ctx, flag.Name, math.MaxUint32)
		if err != nil {
			return nil, err
		}
		indices[i] = uint32(v)
	}
	return accounts.AccountPath(indices[0], indices[1], indices[2]), nil
}

// GovernanceKeyPath resolves the signing key of an update instruction from
// either --path or --keytype/--keyindex.
func GovernanceKeyPath(ctx *cli.Context) (accounts.DerivationPath, error) {
	if ctx.IsSet(PathFlag.Name) {
		return accounts.ParseDerivationPath(ctx.String(PathFlag.Name))
	}
	keyType, err := BoundedUint(ctx, KeyTypeFlag.Name, uint64(accounts.GovernanceLevel2))
	if err != nil {
		return nil, err
	}
	index, err := BoundedUint(ctx, KeyIndexFlag.Name, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	return accounts.GovernancePath(accounts.GovernanceKeyType(keyType), uint32(index)), nil
}
