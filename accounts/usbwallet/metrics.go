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

package usbwallet

import "github.com/ethereum/go-ethereum/metrics"

var (
	exchangeMeter     = metrics.NewRegisteredMeter("ledger/exchanges", nil)
	sentBytesMeter    = metrics.NewRegisteredMeter("ledger/bytes/sent", nil)
	rejectedCounter   = metrics.NewRegisteredCounter("ledger/rejected", nil)
	failureCounter    = metrics.NewRegisteredCounter("ledger/failures", nil)
	signTimer         = metrics.NewRegisteredTimer("ledger/sign", nil)
	keyCacheHitsMeter = metrics.NewRegisteredMeter("ledger/keycache/hits", nil)
)
