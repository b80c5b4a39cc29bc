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
	"fmt"

	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/common/wire"
)

// MaxSchedulePoints is the largest schedule the point count can describe.
const MaxSchedulePoints = 0xffff

// SchedulePoint releases Amount at Timestamp (unix milliseconds).
type SchedulePoint struct {
	Timestamp uint64        `json:"timestamp,string"`
	Amount    common.Amount `json:"amount"`
}

// Serialize returns the 16 byte encoding of the point.
func (p SchedulePoint) Serialize() []byte {
	w := wire.NewWriter(SchedulePointLength)
	p.encode(w)
	return w.Expect(SchedulePointLength).Output()
}

func (p SchedulePoint) encode(w *wire.Writer) {
	w.Word64(p.Timestamp).Word64(uint64(p.Amount))
}

// Schedule is an ordered list of release points.
type Schedule []SchedulePoint

// Validate requires a non-empty schedule of non-zero amounts with strictly
// increasing timestamps whose total fits in an amount.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return missing("schedule")
	}
	if len(s) > MaxSchedulePoints {
		return fmt.Errorf("%w: schedule of %d points", wire.ErrMalformedInput, len(s))
	}
	for i, p := range s {
		if p.Amount == 0 {
			return fmt.Errorf("%w: schedule point %d releases nothing", wire.ErrMalformedInput, i)
		}
		if i > 0 && p.Timestamp <= s[i-1].Timestamp {
			return fmt.Errorf("%w: schedule point %d is not after point %d", wire.ErrMalformedInput, i, i-1)
		}
	}
	if _, err := s.Total(); err != nil {
		return err
	}
	return nil
}

// Total returns the sum of all released amounts.
func (s Schedule) Total() (common.Amount, error) {
	var total common.Amount
	for _, p := range s {
		if total+p.Amount < total {
			return 0, fmt.Errorf("%w: schedule total overflows", wire.ErrMalformedInput)
		}
		total += p.Amount
	}
	return total, nil
}
