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
	"context"
	"fmt"
	"time"

	"github.com/ccd-wallet/ledger-signer/common/wire"
	"github.com/ccd-wallet/ledger-signer/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// signingState is the progress of one signing pass.
type signingState int

const (
	stateIdle signingState = iota
	stateHeaderSent
	stateStreamingTail
	stateComplete
	stateFailed
)

func (s signingState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateHeaderSent:
		return "header sent"
	case stateStreamingTail:
		return "streaming tail"
	case stateComplete:
		return "complete"
	case stateFailed:
		return "failed"
	}
	return fmt.Sprintf("signingState(%d)", int(s))
}

// signingStep is a group of commands sharing P1. A step with a chunk size
// streams its data in commands of at most that many bytes, a step without
// one is a single command.
type signingStep struct {
	p1    ledgerParam1
	data  []byte
	chunk int
}

// signingPlan is the complete command sequence of one signature. The first
// step carries the derivation path and the header.
type signingPlan struct {
	ins   ledgerOpcode
	p2    ledgerParam2
	steps []signingStep
}

// commands expands the plan into the APDUs sent in order.
func (p *signingPlan) commands() []APDU {
	var cmds []APDU
	for _, step := range p.steps {
		chunks := [][]byte{step.data}
		if step.chunk > 0 {
			chunks = wire.Chunk(step.data, step.chunk)
		}
		for _, chunk := range chunks {
			cmds = append(cmds, APDU{CLA: ledgerCLA, INS: byte(p.ins), P1: byte(step.p1), P2: byte(p.p2), Data: chunk})
		}
	}
	return cmds
}

// signingSession drives a plan through the device:
//
//	Idle -> HeaderSent -> StreamingTail(offset) -> Complete
//
// Any failure moves it to Failed and discards the device session, since the
// device is left waiting for the rest of a transaction.
type signingSession struct {
	sess   *Session
	state  signingState
	offset int // Bytes of the tail streamed so far
	log    log.Logger
}

func newSigningSession(sess *Session, ins ledgerOpcode) *signingSession {
	return &signingSession{
		sess: sess,
		log:  sess.device.log.New("ins", fmt.Sprintf("%#02x", byte(ins))),
	}
}

func (s *signingSession) transition(next signingState) {
	s.log.Debug("Ledger signing state changed", "from", s.state, "to", next, "offset", s.offset)
	s.state = next
}

func (s *signingSession) fail(err error) error {
	s.transition(stateFailed)
	s.sess.discard(err)
	return err
}

// run sends every command of the plan and returns the signature carried by
// the final reply.
func (s *signingSession) run(ctx context.Context, plan *signingPlan) (types.Signature, error) {
	if s.state != stateIdle {
		return types.Signature{}, fmt.Errorf("%w: signing pass already used", ErrTransportFailure)
	}
	defer signTimer.UpdateSince(time.Now())

	var reply []byte
	for i, cmd := range plan.commands() {
		var err error
		if reply, err = s.sess.Exchange(ctx, cmd); err != nil {
			return types.Signature{}, s.fail(err)
		}
		if i == 0 {
			s.transition(stateHeaderSent)
			continue
		}
		s.offset += len(cmd.Data)
		if s.state != stateStreamingTail {
			s.transition(stateStreamingTail)
		}
		s.log.Trace("Ledger tail chunk acknowledged", "offset", s.offset)
	}
	if len(reply) < types.SignatureLength {
		return types.Signature{}, s.fail(fmt.Errorf("%w: reply of %d bytes lacks signature", ErrTransportFailure, len(reply)))
	}
	sig, _ := types.SignatureFromBytes(reply[:types.SignatureLength])
	s.transition(stateComplete)
	return sig, nil
}
