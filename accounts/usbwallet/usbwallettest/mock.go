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

// Package usbwallettest provides a scripted in-memory Ledger for tests.
package usbwallettest

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/ccd-wallet/ledger-signer/accounts/usbwallet"
)

// Reply is one scripted answer of the mock device.
type Reply struct {
	Data   []byte
	Status uint16 // Zero means success
	Err    error  // Returned instead of a reply
	Hang   bool   // Block until the exchange context is done
	Raw    []byte // Returned verbatim, without a status word
}

// OK is a successful reply carrying data.
func OK(data []byte) Reply { return Reply{Data: data} }

// Status is a reply carrying only the given status word.
func Status(code uint16) Reply { return Reply{Status: code} }

// Signature is a successful reply carrying a 64 byte signature filled with b.
func Signature(b byte) Reply {
	sig := make([]byte, 64)
	for i := range sig {
		sig[i] = b
	}
	return Reply{Data: sig}
}

// MockTransport implements usbwallet.Transport. Replies are consumed in
// order; once the script is exhausted every command succeeds with Default.
type MockTransport struct {
	Default Reply

	lock      sync.Mutex
	script    []Reply
	exchanges []usbwallet.APDU
	closed    bool
	handler   func(usbwallet.APDU) Reply
}

// NewMockTransport creates a mock answering with the given script.
func NewMockTransport(script ...Reply) *MockTransport {
	return &MockTransport{script: script}
}

// Push appends replies to the script.
func (m *MockTransport) Push(replies ...Reply) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.script = append(m.script, replies...)
}

// Handle answers commands with fn once the script is exhausted.
func (m *MockTransport) Handle(fn func(usbwallet.APDU) Reply) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.handler = fn
}

// Exchanges returns a copy of every command received so far.
func (m *MockTransport) Exchanges() []usbwallet.APDU {
	m.lock.Lock()
	defer m.lock.Unlock()

	out := make([]usbwallet.APDU, len(m.exchanges))
	copy(out, m.exchanges)
	return out
}

// Sent returns the concatenated data of every command received.
func (m *MockTransport) Sent() []byte {
	var out []byte
	for _, apdu := range m.Exchanges() {
		out = append(out, apdu.Data...)
	}
	return out
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closed
}

func (m *MockTransport) Exchange(ctx context.Context, apdu usbwallet.APDU) ([]byte, error) {
	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		return nil, errors.New("mock transport closed")
	}
	apdu.Data = append([]byte(nil), apdu.Data...)
	m.exchanges = append(m.exchanges, apdu)

	reply := m.Default
	switch {
	case len(m.script) > 0:
		reply, m.script = m.script[0], m.script[1:]
	case m.handler != nil:
		reply = m.handler(apdu)
	}
	m.lock.Unlock()

	switch {
	case reply.Hang:
		<-ctx.Done()
		return nil, ctx.Err()
	case reply.Err != nil:
		return nil, reply.Err
	case reply.Raw != nil:
		return reply.Raw, nil
	}
	status := reply.Status
	if status == 0 {
		status = 0x9000
	}
	return binary.BigEndian.AppendUint16(append([]byte(nil), reply.Data...), status), nil
}

func (m *MockTransport) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	return nil
}

// NewDevice wraps a mock transport in a device with default settings.
func NewDevice(m *MockTransport) *usbwallet.Device {
	device, err := usbwallet.NewDevice(m, usbwallet.DefaultConfig, nil)
	if err != nil {
		panic(err)
	}
	return device
}
