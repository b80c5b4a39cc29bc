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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/ccd-wallet/ledger-signer/accounts/usbwallet"
	"github.com/ccd-wallet/ledger-signer/cmd/utils"
	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"
)

var dumpConfigCommand = cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "",
	Description: `The dumpconfig command shows configuration values.`,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type ledgerConfig struct {
	DataDir  string
	AuditLog string
	Verify   bool
	Device   usbwallet.Config
}

func defaultConfig() ledgerConfig {
	return ledgerConfig{
		DataDir: utils.DefaultDataDir(),
		Verify:  true,
		Device:  usbwallet.DefaultConfig,
	}
}

func loadConfig(file string, cfg *ledgerConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	var lineErr *toml.LineError
	if errors.As(err, &lineErr) {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, then applies the flags on top.
func makeConfig(ctx *cli.Context) *ledgerConfig {
	cfg := defaultConfig()
	if file := ctx.GlobalString(utils.ConfigFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			utils.Fatalf("%v", err)
		}
	}
	if ctx.GlobalIsSet(utils.DataDirFlag.Name) {
		cfg.DataDir = ctx.GlobalString(utils.DataDirFlag.Name)
	}
	if ctx.GlobalIsSet(utils.AuditLogFlag.Name) {
		cfg.AuditLog = ctx.GlobalString(utils.AuditLogFlag.Name)
	}
	if ctx.GlobalIsSet(utils.CommandTimeoutFlag.Name) {
		cfg.Device.CommandTimeout = ctx.GlobalDuration(utils.CommandTimeoutFlag.Name)
	}
	if ctx.GlobalBool(utils.NoVerifyFlag.Name) {
		cfg.Verify = false
	}
	return &cfg
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	out, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.WriteString("# Note: this config doesn't contain the key paths, pass them as flags.\n\n")
	dump.Write(out)
	return nil
}
