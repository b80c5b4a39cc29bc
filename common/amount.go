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
	"fmt"
	"math/big"
	"strconv"

	"github.com/ccd-wallet/ledger-signer/common/wire"
	dec "github.com/shopspring/decimal"
)

// amountDecimals is the number of fractional CCD digits held by one micro
// unit.
const amountDecimals = 6

var maxAmount = dec.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// Amount is a quantity of CCD in micro units.
type Amount uint64

// ParseCCD parses a decimal CCD value such as "1.5" into micro units.
func ParseCCD(s string) (Amount, error) {
	value, err := dec.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q: %v", wire.ErrMalformedInput, s, err)
	}
	micro := value.Mul(dec.New(1, amountDecimals))
	if !micro.Equal(micro.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount %q has more than %d decimals", wire.ErrMalformedInput, s, amountDecimals)
	}
	if micro.IsNegative() || micro.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: amount %q out of range", wire.ErrMalformedInput, s)
	}
	return Amount(micro.BigInt().Uint64()), nil
}

// CCD returns the amount as a decimal CCD value.
func (a Amount) CCD() dec.Decimal {
	return dec.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -amountDecimals)
}

// String formats the amount in CCD with all six decimals.
func (a Amount) String() string {
	return a.CCD().StringFixed(amountDecimals) + " CCD"
}

// MarshalText encodes the amount as a decimal string of micro units.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(a), 10)), nil
}

// UnmarshalText decodes a decimal string of micro units.
func (a *Amount) UnmarshalText(input []byte) error {
	v, err := strconv.ParseUint(string(input), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: amount %q: %v", wire.ErrMalformedInput, input, err)
	}
	*a = Amount(v)
	return nil
}
