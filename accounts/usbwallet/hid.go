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
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
)

const hidReportSize = 64

// hidHeader is the channel ID and the APDU command tag. The 2 byte sequence
// index follows it in every report.
var hidHeader = []byte{0x01, 0x01, 0x05}

// hidTransport speaks the Ledger HID framing over a raw USB device.
//
// The common transport header is defined as follows:
//
//	Description                           | Length
//	--------------------------------------+----------
//	Communication channel ID (big endian) | 2 bytes
//	Command tag                           | 1 byte
//	Packet sequence index (big endian)    | 2 bytes
//	Payload                               | arbitrary
//
// The Communication channel ID allows commands multiplexing over the same
// physical link. It is not used for the time being, and should be set to 0101
// to avoid compatibility issues with implementations ignoring a leading 00 byte.
//
// The first report of a message carries the 2 byte message length before the
// payload. Commands and replies use the same framing.
type hidTransport struct {
	device io.ReadWriteCloser
	lock   sync.Mutex
	failed error // Set once an exchange failed or was abandoned mid-flight
	log    log.Logger
}

func newHIDTransport(device io.ReadWriteCloser, logger log.Logger) *hidTransport {
	return &hidTransport{device: device, log: logger}
}

// Exchange implements Transport. The blocking device I/O runs in its own
// goroutine so the context bounds the wait. An exchange that fails or is
// abandoned on cancellation leaves the reply stream out of sync, so the
// transport refuses all later exchanges.
func (t *hidTransport) Exchange(ctx context.Context, apdu APDU) ([]byte, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.failed != nil {
		return nil, t.failed
	}
	type result struct {
		reply []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := t.exchange(apdu.Serialize())
		done <- result{reply, err}
	}()
	select {
	case res := <-done:
		if res.err != nil {
			t.failed = fmt.Errorf("%w: failed exchange: %v", ErrTransportFailure, res.err)
			return nil, transportError(res.err)
		}
		return res.reply, nil
	case <-ctx.Done():
		t.failed = fmt.Errorf("%w: abandoned exchange: %v", ErrTransportFailure, ctx.Err())
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, ctx.Err())
	}
}

func (t *hidTransport) Close() error {
	return t.device.Close()
}

// exchange streams a serialized command to the device and reads back the
// reply including its status word.
func (t *hidTransport) exchange(command []byte) ([]byte, error) {
	for _, chunk := range hidFrames(command) {
		t.log.Trace("Data chunk sent to the Ledger", "chunk", hexutil.Bytes(chunk))
		if _, err := t.device.Write(chunk); err != nil {
			return nil, err
		}
	}
	// Stream the reply back from the wallet in 64 byte chunks
	var (
		asm   hidAssembler
		chunk = make([]byte, hidReportSize)
	)
	for {
		if _, err := io.ReadFull(t.device, chunk); err != nil {
			return nil, err
		}
		t.log.Trace("Data chunk received from the Ledger", "chunk", hexutil.Bytes(chunk))

		done, err := asm.feed(chunk)
		if err != nil {
			return nil, err
		}
		if done {
			return asm.message, nil
		}
	}
}

// hidFrames splits a message into 64 byte reports.
func hidFrames(message []byte) [][]byte {
	payload := make([]byte, 2, 2+len(message))
	binary.BigEndian.PutUint16(payload, uint16(len(message)))
	payload = append(payload, message...)

	var (
		frames [][]byte
		space  = hidReportSize - len(hidHeader) - 2
	)
	for i := 0; len(payload) > 0; i++ {
		frame := make([]byte, 0, hidReportSize)
		frame = append(frame, hidHeader...)
		frame = binary.BigEndian.AppendUint16(frame, uint16(i))

		n := space
		if n > len(payload) {
			n = len(payload)
		}
		frame = append(frame, payload[:n]...)
		payload = payload[n:]

		// Reports are fixed size, pad the last one
		frames = append(frames, frame[:hidReportSize])
	}
	return frames
}

// hidAssembler rebuilds a message from its reports.
type hidAssembler struct {
	message []byte
	length  int
	next    uint16
}

// feed consumes one report and reports whether the message is complete.
func (a *hidAssembler) feed(chunk []byte) (bool, error) {
	if len(chunk) < len(hidHeader)+2 {
		return false, fmt.Errorf("%w: short report of %d bytes", ErrTransportFailure, len(chunk))
	}
	if chunk[0] != hidHeader[0] || chunk[1] != hidHeader[1] || chunk[2] != hidHeader[2] {
		return false, errReplyInvalidHeader
	}
	if seq := binary.BigEndian.Uint16(chunk[3:5]); seq != a.next {
		return false, fmt.Errorf("%w: report %d out of sequence, want %d", ErrTransportFailure, seq, a.next)
	}
	payload := chunk[5:]
	if a.next == 0 {
		if len(payload) < 2 {
			return false, fmt.Errorf("%w: report lacks message length", ErrTransportFailure)
		}
		a.length = int(binary.BigEndian.Uint16(payload[:2]))
		a.message = make([]byte, 0, a.length)
		payload = payload[2:]
	}
	a.next++

	// Append to the message and stop when filled up
	left := a.length - len(a.message)
	if left > len(payload) {
		a.message = append(a.message, payload...)
		return false, nil
	}
	a.message = append(a.message, payload[:left]...)
	return true, nil
}
