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

// Package wire implements the fixed width big-endian encoding shared by the
// chain and the Ledger application.
package wire

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrMalformedInput is returned when a byte buffer or its textual form does
// not have the expected shape.
var ErrMalformedInput = errors.New("malformed input")

// EncodeWord8 encodes n as a single byte. Values that do not fit panic.
func EncodeWord8(n uint64) []byte {
	checkWidth(n, 8)
	return []byte{byte(n)}
}

// EncodeWord16 encodes n as 2 big-endian bytes. Values that do not fit panic.
func EncodeWord16(n uint64) []byte {
	checkWidth(n, 16)
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(n))
	return buf
}

// EncodeWord32 encodes n as 4 big-endian bytes. Values that do not fit panic.
func EncodeWord32(n uint64) []byte {
	checkWidth(n, 32)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	return buf
}

// EncodeWord64 encodes n as 8 big-endian bytes.
func EncodeWord64(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func checkWidth(n uint64, width uint) {
	if n>>width != 0 {
		panic(fmt.Sprintf("wire: value %d does not fit in %d bits", n, width))
	}
}

// DecodeHex decodes an unprefixed hex string.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return b, nil
}

// DecodeHexFixed decodes an unprefixed hex string that must hold exactly n
// bytes.
func DecodeHexFixed(s string, n int) ([]byte, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("%w: want %d bytes, have %d", ErrMalformedInput, n, len(b))
	}
	return b, nil
}

// Chunk splits b into consecutive sub-slices of at most size bytes. An empty
// input yields no chunks.
func Chunk(b []byte, size int) [][]byte {
	if size <= 0 {
		panic("wire: non-positive chunk size")
	}
	chunks := make([][]byte, 0, (len(b)+size-1)/size)
	for len(b) > 0 {
		n := size
		if n > len(b) {
			n = len(b)
		}
		chunks = append(chunks, b[:n])
		b = b[n:]
	}
	return chunks
}
