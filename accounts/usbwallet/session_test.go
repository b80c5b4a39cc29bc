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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport answers with the queued replies, then with a signature.
type scriptedTransport struct {
	replies [][]byte
	sent    []APDU
}

func (s *scriptedTransport) Exchange(ctx context.Context, apdu APDU) ([]byte, error) {
	s.sent = append(s.sent, apdu)
	if len(s.replies) > 0 {
		reply := s.replies[0]
		s.replies = s.replies[1:]
		return reply, nil
	}
	return append(bytes.Repeat([]byte{0x01}, 64), 0x90, 0x00), nil
}

func (s *scriptedTransport) Close() error { return nil }

func TestSigningPlanCommands(t *testing.T) {
	plan := &signingPlan{ins: ledgerOpSignRegisterData, p2: ledgerP2UpdateBakerKeys, steps: []signingStep{
		{p1: ledgerP1Initial, data: []byte{1, 2, 3}},
		{p1: ledgerP1Continue, data: make([]byte, 600), chunk: MaxAPDUData},
		{p1: ledgerP1Proof, data: make([]byte, 10)},
	}}
	cmds := plan.commands()
	require.Len(t, cmds, 5)
	assert.Equal(t, []byte{1, 2, 3}, cmds[0].Data)
	assert.Equal(t, []int{255, 255, 90}, []int{len(cmds[1].Data), len(cmds[2].Data), len(cmds[3].Data)})
	assert.Equal(t, byte(ledgerP1Proof), cmds[4].P1)
	for _, cmd := range cmds {
		assert.Equal(t, byte(0x35), cmd.INS)
		assert.Equal(t, byte(0x01), cmd.P2)
	}
}

func TestSigningSessionStates(t *testing.T) {
	transport := &scriptedTransport{}
	device, err := NewDevice(transport, DefaultConfig, nil)
	require.NoError(t, err)
	sess, err := device.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()

	plan := &signingPlan{ins: ledgerOpSignTransfer, steps: []signingStep{
		{p1: ledgerP1Initial, data: []byte{1}},
		{p1: ledgerP1Continue, data: make([]byte, 300), chunk: MaxAPDUData},
	}}
	signing := newSigningSession(sess, plan.ins)
	assert.Equal(t, stateIdle, signing.state)

	sig, err := signing.run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), sig[0])
	assert.Equal(t, stateComplete, signing.state)
	assert.Equal(t, 300, signing.offset)

	// A signing pass is one-shot.
	_, err = signing.run(context.Background(), plan)
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestSigningSessionFails(t *testing.T) {
	transport := &scriptedTransport{replies: [][]byte{{0x90, 0x00}, {0x69, 0x85}}}
	device, err := NewDevice(transport, DefaultConfig, nil)
	require.NoError(t, err)
	sess, err := device.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()

	plan := &signingPlan{ins: ledgerOpSignTransfer, steps: []signingStep{
		{p1: ledgerP1Initial, data: []byte{1}},
		{p1: ledgerP1Continue, data: make([]byte, 600), chunk: MaxAPDUData},
	}}
	signing := newSigningSession(sess, plan.ins)
	_, err = signing.run(context.Background(), plan)
	assert.ErrorIs(t, err, ErrDeviceRejected)
	assert.Equal(t, stateFailed, signing.state)
	assert.Len(t, transport.sent, 2)

	_, err = sess.Exchange(context.Background(), APDU{CLA: ledgerCLA})
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.Len(t, transport.sent, 2)
}
