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

package wire

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates a big-endian encoding. Width violations are programming
// errors and panic, so a Writer never holds a partially valid field.
type Writer struct {
	buf []byte
}

// NewWriter creates a writer with room for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Word8 appends a single byte.
func (w *Writer) Word8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

// Word16 appends v as 2 big-endian bytes.
func (w *Writer) Word16(v uint16) *Writer {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
	return w
}

// Word32 appends v as 4 big-endian bytes.
func (w *Writer) Word32(v uint32) *Writer {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	return w
}

// Word64 appends v as 8 big-endian bytes.
func (w *Writer) Word64(v uint64) *Writer {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
	return w
}

// Bool appends 1 for true and 0 for false.
func (w *Writer) Bool(v bool) *Writer {
	if v {
		return w.Word8(1)
	}
	return w.Word8(0)
}

// Bytes appends b verbatim.
func (w *Writer) Bytes(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// FixedBytes appends b, which must be exactly n bytes long.
func (w *Writer) FixedBytes(b []byte, n int) *Writer {
	if len(b) != n {
		panic(fmt.Sprintf("wire: fixed field of %d bytes given %d", n, len(b)))
	}
	return w.Bytes(b)
}

// LengthPrefixed16 appends the length of b as a Word16 followed by b.
func (w *Writer) LengthPrefixed16(b []byte) *Writer {
	checkWidth(uint64(len(b)), 16)
	return w.Word16(uint16(len(b))).Bytes(b)
}

// LengthPrefixed64 appends the length of b as a Word64 followed by b.
func (w *Writer) LengthPrefixed64(b []byte) *Writer {
	return w.Word64(uint64(len(b))).Bytes(b)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Expect panics unless exactly n bytes have been written.
func (w *Writer) Expect(n int) *Writer {
	if len(w.buf) != n {
		panic(fmt.Sprintf("wire: wrote %d bytes, declared %d", len(w.buf), n))
	}
	return w
}

// Output returns the encoding. The writer must not be used afterwards.
func (w *Writer) Output() []byte {
	return w.buf
}
