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

// Reader decodes a big-endian encoding. The first failure is sticky: all
// later reads return zero values and Err reports the failure.
type Reader struct {
	buf    []byte
	offset int
	err    error
}

// NewReader creates a reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.offset < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformedInput, n, r.offset, len(r.buf)-r.offset)
		return nil
	}
	b := r.buf[r.offset : r.offset+n]
	r.offset += n
	return b
}

// Word8 reads one byte.
func (r *Reader) Word8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

// Word16 reads a big-endian uint16.
func (r *Reader) Word16() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

// Word32 reads a big-endian uint32.
func (r *Reader) Word32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

// Word64 reads a big-endian uint64.
func (r *Reader) Word64() uint64 {
	if b := r.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

// Bool reads a byte that must be 0 or 1.
func (r *Reader) Bool() bool {
	v := r.Word8()
	if v > 1 && r.err == nil {
		r.err = fmt.Errorf("%w: invalid boolean %d at offset %d", ErrMalformedInput, v, r.offset-1)
	}
	return v == 1
}

// Bytes reads n bytes. The result is a copy.
func (r *Reader) Bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Fixed reads exactly len(dst) bytes into dst.
func (r *Reader) Fixed(dst []byte) {
	if b := r.take(len(dst)); b != nil {
		copy(dst, b)
	}
}

// LengthPrefixed16 reads a Word16 length followed by that many bytes.
func (r *Reader) LengthPrefixed16() []byte {
	return r.Bytes(int(r.Word16()))
}

// LengthPrefixed64 reads a Word64 length followed by that many bytes.
func (r *Reader) LengthPrefixed64() []byte {
	n := r.Word64()
	if n > uint64(r.Remaining()) {
		r.take(r.Remaining() + 1)
		return nil
	}
	return r.Bytes(int(n))
}

// Rest consumes and returns all remaining bytes.
func (r *Reader) Rest() []byte {
	return r.Bytes(r.Remaining())
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.offset
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.offset
}

// Err returns the first decoding failure.
func (r *Reader) Err() error {
	return r.err
}

// Finish returns the first decoding failure, or an error if unread bytes
// remain.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if rest := r.Remaining(); rest != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedInput, rest)
	}
	return nil
}
