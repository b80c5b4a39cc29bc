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

// Package usbwallet implements the Ledger transport and signing protocol of
// the Concordium application.
package usbwallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ccd-wallet/ledger-signer/common/wire"
)

// MaxAPDUData is the largest data field of a single command.
const MaxAPDUData = 255

const (
	ledgerCLA     = 0xe0
	dashboardCLA  = 0xb0
	statusCodeOK  = 0x9000
	statusCodeLen = 2
)

// Status words the device answers with.
const (
	StatusUserDeclined = 0x6985
	StatusDeviceLocked = 0x5515
	StatusInvalidINS   = 0x6d00
	StatusInvalidCLA   = 0x6e00
	StatusAppNotOpen   = 0x6e01
	StatusNoApp        = 0x6511
)

var (
	// ErrDeviceRejected is matched by every *StatusError: the device answered
	// a command with a status other than success.
	ErrDeviceRejected = errors.New("ledger: device rejected command")

	// ErrTransportFailure is returned on I/O errors, deadline expiry and
	// replies that cannot be parsed.
	ErrTransportFailure = errors.New("ledger: transport failure")

	// errReplyInvalidHeader is returned if the device replies with a
	// mismatching HID header. This usually means the device is in browser mode.
	errReplyInvalidHeader = fmt.Errorf("%w: invalid reply header", ErrTransportFailure)

	// errSessionClosed is returned when a released or discarded session is
	// used.
	errSessionClosed = fmt.Errorf("%w: session closed", ErrTransportFailure)
)

// APDU is a single command sent to the device.
type APDU struct {
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
	Data []byte
}

// Validate checks that the command fits in a single APDU.
func (a *APDU) Validate() error {
	if len(a.Data) > MaxAPDUData {
		return fmt.Errorf("%w: apdu data of %d bytes", wire.ErrMalformedInput, len(a.Data))
	}
	return nil
}

// Serialize returns CLA INS P1 P2 Lc data.
func (a *APDU) Serialize() []byte {
	return wire.NewWriter(5+len(a.Data)).
		Word8(a.CLA).Word8(a.INS).Word8(a.P1).Word8(a.P2).
		Word8(uint8(len(a.Data))).
		Bytes(a.Data).
		Output()
}

// Transport carries commands to a device. The reply is the response data
// followed by the two status bytes. Implementations are not safe for
// concurrent use; the Device serializes access.
type Transport interface {
	Exchange(ctx context.Context, apdu APDU) ([]byte, error)
	Close() error
}

// StatusError reports a status word other than success.
type StatusError struct {
	Code uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger: status %#04x (%s)", e.Code, e.Reason())
}

// Is makes every StatusError match ErrDeviceRejected.
func (e *StatusError) Is(target error) bool {
	return target == ErrDeviceRejected
}

// Reason describes the status word.
func (e *StatusError) Reason() string {
	switch e.Code {
	case StatusUserDeclined:
		return "declined by user"
	case StatusDeviceLocked:
		return "device locked"
	case StatusInvalidINS, StatusInvalidCLA, StatusAppNotOpen, StatusNoApp:
		return "Concordium app not open"
	}
	return "rejected"
}

// Declined reports whether the user refused the request on the device.
func (e *StatusError) Declined() bool { return e.Code == StatusUserDeclined }

// Locked reports whether the device needs to be unlocked first.
func (e *StatusError) Locked() bool { return e.Code == StatusDeviceLocked }

// WrongApp reports whether the Concordium app is not running.
func (e *StatusError) WrongApp() bool {
	switch e.Code {
	case StatusInvalidINS, StatusInvalidCLA, StatusAppNotOpen, StatusNoApp:
		return true
	}
	return false
}

// transportError wraps err in ErrTransportFailure unless it already is one.
func transportError(err error) error {
	if errors.Is(err, ErrTransportFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransportFailure, err)
}
