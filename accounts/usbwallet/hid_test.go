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

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHID is an in-memory device speaking the HID framing.
type fakeHID struct {
	asm      hidAssembler
	reads    bytes.Buffer
	commands [][]byte
	respond  func(command []byte) []byte
	block    chan struct{}
	frames   int // Reports of each reply delivered, all if zero
	closed   bool
}

func (f *fakeHID) Write(b []byte) (int, error) {
	if len(b) != hidReportSize {
		panic("report of wrong size")
	}
	done, err := f.asm.feed(b)
	if err != nil {
		return 0, err
	}
	if done {
		f.commands = append(f.commands, f.asm.message)
		for i, frame := range hidFrames(f.respond(f.asm.message)) {
			if f.frames > 0 && i >= f.frames {
				break
			}
			f.reads.Write(frame)
		}
		f.asm = hidAssembler{}
	}
	return len(b), nil
}

func (f *fakeHID) Read(b []byte) (int, error) {
	if f.block != nil {
		<-f.block
	}
	return f.reads.Read(b)
}

func (f *fakeHID) Close() error {
	f.closed = true
	return nil
}

func TestHIDFrames(t *testing.T) {
	message := bytes.Repeat([]byte{0xab}, 200)
	frames := hidFrames(message)

	// 2 length bytes plus the message, 59 payload bytes per report
	require.Len(t, frames, 4)
	for i, frame := range frames {
		assert.Len(t, frame, hidReportSize)
		assert.Equal(t, []byte{0x01, 0x01, 0x05}, frame[:3])
		assert.Equal(t, uint16(i), binary.BigEndian.Uint16(frame[3:5]))
	}
	assert.Equal(t, uint16(200), binary.BigEndian.Uint16(frames[0][5:7]))

	var asm hidAssembler
	for i, frame := range frames {
		done, err := asm.feed(frame)
		require.NoError(t, err)
		assert.Equal(t, i == len(frames)-1, done)
	}
	assert.Equal(t, message, asm.message)
}

func TestHIDAssemblerErrors(t *testing.T) {
	frames := hidFrames(make([]byte, 100))

	var asm hidAssembler
	bad := append([]byte(nil), frames[0]...)
	bad[2] = 0x02
	_, err := asm.feed(bad)
	assert.ErrorIs(t, err, errReplyInvalidHeader)
	assert.ErrorIs(t, err, ErrTransportFailure)

	asm = hidAssembler{}
	_, err = asm.feed(frames[1])
	assert.ErrorIs(t, err, ErrTransportFailure)

	asm = hidAssembler{}
	_, err = asm.feed(frames[0][:4])
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestHIDExchangeRoundTrip(t *testing.T) {
	reply := append(bytes.Repeat([]byte{0x5a}, 150), 0x90, 0x00)
	dev := &fakeHID{respond: func([]byte) []byte { return reply }}
	transport := newHIDTransport(dev, log.New())

	apdu := APDU{CLA: ledgerCLA, INS: 0x12, P1: 0x02, P2: 0x00, Data: bytes.Repeat([]byte{0x01}, MaxAPDUData)}
	got, err := transport.Exchange(context.Background(), apdu)
	require.NoError(t, err)
	assert.Equal(t, reply, got)

	require.Len(t, dev.commands, 1)
	command := dev.commands[0]
	assert.Equal(t, []byte{0xe0, 0x12, 0x02, 0x00, 0xff}, command[:5])
	assert.Equal(t, apdu.Data, command[5:])

	require.NoError(t, transport.Close())
	assert.True(t, dev.closed)
}

func TestHIDExchangeTimeoutPoisons(t *testing.T) {
	dev := &fakeHID{
		respond: func([]byte) []byte { return []byte{0x90, 0x00} },
		block:   make(chan struct{}),
	}
	defer close(dev.block)
	transport := newHIDTransport(dev, log.New())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := transport.Exchange(ctx, APDU{CLA: ledgerCLA, INS: 0x01})
	assert.ErrorIs(t, err, ErrTransportFailure)

	_, err = transport.Exchange(context.Background(), APDU{CLA: ledgerCLA, INS: 0x01})
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestHIDExchangeReadErrorPoisons(t *testing.T) {
	dev := &fakeHID{
		respond: func([]byte) []byte { return append(bytes.Repeat([]byte{0x5a}, 150), 0x90, 0x00) },
		frames:  1,
	}
	transport := newHIDTransport(dev, log.New())

	_, err := transport.Exchange(context.Background(), APDU{CLA: ledgerCLA, INS: 0x01})
	assert.ErrorIs(t, err, ErrTransportFailure)

	// The rest of the reply may still arrive, so nothing more is sent.
	dev.frames = 0
	_, err = transport.Exchange(context.Background(), APDU{CLA: ledgerCLA, INS: 0x01})
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.Len(t, dev.commands, 1)
}

func TestAPDUValidate(t *testing.T) {
	ok := APDU{Data: make([]byte, MaxAPDUData)}
	assert.NoError(t, ok.Validate())
	tooLong := APDU{Data: make([]byte, MaxAPDUData+1)}
	assert.Error(t, tooLong.Validate())
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code     uint16
		declined bool
		locked   bool
		wrongApp bool
	}{
		{StatusUserDeclined, true, false, false},
		{StatusDeviceLocked, false, true, false},
		{StatusInvalidCLA, false, false, true},
		{StatusInvalidINS, false, false, true},
		{StatusAppNotOpen, false, false, true},
		{StatusNoApp, false, false, true},
		{0x6a80, false, false, false},
	}
	for _, tt := range tests {
		err := &StatusError{Code: tt.code}
		assert.ErrorIs(t, err, ErrDeviceRejected)
		assert.NotErrorIs(t, err, ErrTransportFailure)
		assert.Equal(t, tt.declined, err.Declined())
		assert.Equal(t, tt.locked, err.Locked())
		assert.Equal(t, tt.wrongApp, err.WrongApp())
	}
	assert.Contains(t, (&StatusError{Code: StatusUserDeclined}).Error(), "0x6985")
}
