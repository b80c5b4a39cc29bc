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

package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/common/wire"
)

const (
	// HeaderLength is the size of a serialized account transaction header.
	HeaderLength = common.AddressLength + 8 + 8 + 4 + 8

	// SignatureLength is the size of an ed25519 signature.
	SignatureLength = 64

	payloadSizeOffset = common.AddressLength + 8 + 8
)

// AccountTransaction is an unsigned transaction sent from an account. The
// payload size field of the header is always derived from the serialized
// payload and never supplied by the caller.
type AccountTransaction struct {
	Sender       common.AccountAddress
	Nonce        uint64
	EnergyAmount uint64
	Expiry       uint64 // unix seconds
	Payload      Payload
}

// Kind returns the kind of the payload. A transaction without a payload
// reports kind 0.
func (tx *AccountTransaction) Kind() TransactionKind {
	if IsNilPayload(tx.Payload) {
		return 0
	}
	return tx.Payload.Kind()
}

// TransactionHeader is the fixed size prefix of an account transaction.
type TransactionHeader struct {
	Sender      common.AccountAddress
	Nonce       uint64
	Energy      uint64
	PayloadSize uint32
	Expiry      uint64
}

// Serialize returns the 60 byte header encoding.
func (h *TransactionHeader) Serialize() []byte {
	return SerializeHeader(h.Sender, h.Nonce, h.Energy, h.PayloadSize, h.Expiry)
}

// SerializeHeader encodes an account transaction header as
// sender || nonce || energy || payloadSize || expiry.
func SerializeHeader(sender common.AccountAddress, nonce, energy uint64, payloadSize uint32, expiry uint64) []byte {
	return wire.NewWriter(HeaderLength).
		Bytes(sender.Bytes()).
		Word64(nonce).
		Word64(energy).
		Word32(payloadSize).
		Word64(expiry).
		Expect(HeaderLength).
		Output()
}

// DecodeHeader parses a serialized header.
func DecodeHeader(b []byte) (*TransactionHeader, error) {
	r := wire.NewReader(b)
	h := new(TransactionHeader)
	r.Fixed(h.Sender[:])
	h.Nonce = r.Word64()
	h.Energy = r.Word64()
	h.PayloadSize = r.Word32()
	h.Expiry = r.Word64()
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("transaction header: %w", err)
	}
	return h, nil
}

// Encode serializes the payload and the header built from its length.
func (tx *AccountTransaction) Encode() (header, payload []byte, err error) {
	payload, err = SerializePayload(tx.Payload)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(payload)) > 0xffffffff {
		return nil, nil, fmt.Errorf("%w: payload of %d bytes", wire.ErrMalformedInput, len(payload))
	}
	header = SerializeHeader(tx.Sender, tx.Nonce, tx.EnergyAmount, uint32(len(payload)), tx.Expiry)
	return header, payload, nil
}

// Header returns the header of the transaction.
func (tx *AccountTransaction) Header() (*TransactionHeader, error) {
	header, _, err := tx.Encode()
	if err != nil {
		return nil, err
	}
	return DecodeHeader(header)
}

// Assemble joins a header and the payload it describes. The header must
// announce the payload's length.
func Assemble(header, payload []byte) ([]byte, error) {
	if len(header) != HeaderLength {
		return nil, fmt.Errorf("%w: header of %d bytes", wire.ErrMalformedInput, len(header))
	}
	size := binary.BigEndian.Uint32(header[payloadSizeOffset:])
	if int(size) != len(payload) {
		return nil, fmt.Errorf("%w: header announces %d bytes, have %d", ErrPayloadSizeMismatch, size, len(payload))
	}
	out := make([]byte, 0, len(header)+len(payload))
	return append(append(out, header...), payload...), nil
}

// TransactionHash returns the SHA-256 digest of header || payload.
func TransactionHash(header, payload []byte) common.Hash {
	h := sha256.New()
	h.Write(header)
	h.Write(payload)
	return common.BytesToHash(h.Sum(nil))
}

// SignDigest returns the digest the account keys sign.
func (tx *AccountTransaction) SignDigest() (common.Hash, error) {
	header, payload, err := tx.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return TransactionHash(header, payload), nil
}

// Signature is an ed25519 signature.
type Signature [SignatureLength]byte

// SignatureFromBytes copies b into a Signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureLength {
		return sig, fmt.Errorf("%w: signature of %d bytes", wire.ErrMalformedInput, len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

func (s Signature) Bytes() []byte  { return s[:] }
func (s Signature) String() string { return hex.EncodeToString(s[:]) }

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(input []byte) error {
	b, err := wire.DecodeHexFixed(string(input), SignatureLength)
	if err != nil {
		return err
	}
	copy(s[:], b)
	return nil
}

// CredentialIndex selects a credential of an account.
type CredentialIndex uint8

// KeyIndex selects a key of a credential.
type KeyIndex uint8

// CredentialSignature maps key indices to signatures.
type CredentialSignature map[KeyIndex]Signature

// AccountTransactionSignature maps credential indices to their signatures.
type AccountTransactionSignature map[CredentialIndex]CredentialSignature

// Count returns the number of signatures.
func (s AccountTransactionSignature) Count() int {
	n := 0
	for _, cred := range s {
		n += len(cred)
	}
	return n
}

func (s AccountTransactionSignature) encode(w *wire.Writer) {
	creds := make([]int, 0, len(s))
	for c := range s {
		creds = append(creds, int(c))
	}
	sort.Ints(creds)
	w.Word8(uint8(len(creds)))
	for _, c := range creds {
		keys := make([]int, 0, len(s[CredentialIndex(c)]))
		for k := range s[CredentialIndex(c)] {
			keys = append(keys, int(k))
		}
		sort.Ints(keys)
		w.Word8(uint8(c)).Word8(uint8(len(keys)))
		for _, k := range keys {
			sig := s[CredentialIndex(c)][KeyIndex(k)]
			w.Word8(uint8(k)).LengthPrefixed16(sig[:])
		}
	}
}

// SignedAccountTransaction is an account transaction with its serialized
// form fixed and one or more signatures attached. It is immutable: adding a
// signature returns a new value.
type SignedAccountTransaction struct {
	tx         *AccountTransaction
	header     []byte
	payload    []byte
	signatures AccountTransactionSignature

	// caches
	hash atomic.Value
}

// WithSignature returns a signed copy of tx carrying sig under the given
// credential and key index.
func (tx *AccountTransaction) WithSignature(cred CredentialIndex, key KeyIndex, sig Signature) (*SignedAccountTransaction, error) {
	header, payload, err := tx.Encode()
	if err != nil {
		return nil, err
	}
	cpy := *tx
	signed := &SignedAccountTransaction{
		tx:         &cpy,
		header:     header,
		payload:    payload,
		signatures: AccountTransactionSignature{},
	}
	return signed.WithSignature(cred, key, sig)
}

// WithSignature returns a copy of stx with sig added. A second signature for
// the same credential and key is rejected with ErrDuplicateSignature.
func (stx *SignedAccountTransaction) WithSignature(cred CredentialIndex, key KeyIndex, sig Signature) (*SignedAccountTransaction, error) {
	if _, ok := stx.signatures[cred][key]; ok {
		return nil, fmt.Errorf("%w: credential %d key %d", ErrDuplicateSignature, cred, key)
	}
	sigs := make(AccountTransactionSignature, len(stx.signatures)+1)
	for c, keys := range stx.signatures {
		cpy := make(CredentialSignature, len(keys)+1)
		for k, s := range keys {
			cpy[k] = s
		}
		sigs[c] = cpy
	}
	if sigs[cred] == nil {
		sigs[cred] = CredentialSignature{}
	}
	sigs[cred][key] = sig
	return &SignedAccountTransaction{
		tx:         stx.tx,
		header:     stx.header,
		payload:    stx.payload,
		signatures: sigs,
	}, nil
}

func (stx *SignedAccountTransaction) Transaction() *AccountTransaction { return stx.tx }
func (stx *SignedAccountTransaction) Header() []byte                   { return common.CopyBytes(stx.header) }
func (stx *SignedAccountTransaction) Payload() []byte                  { return common.CopyBytes(stx.payload) }

// Signatures returns a copy of the attached signatures.
func (stx *SignedAccountTransaction) Signatures() AccountTransactionSignature {
	sigs := make(AccountTransactionSignature, len(stx.signatures))
	for c, keys := range stx.signatures {
		cpy := make(CredentialSignature, len(keys))
		for k, s := range keys {
			cpy[k] = s
		}
		sigs[c] = cpy
	}
	return sigs
}

// Hash returns the digest that was signed.
func (stx *SignedAccountTransaction) Hash() common.Hash {
	if hash := stx.hash.Load(); hash != nil {
		return hash.(common.Hash)
	}
	v := TransactionHash(stx.header, stx.payload)
	stx.hash.Store(v)
	return v
}

// BlockItem returns the encoding submitted to a node: the block item kind,
// the signatures ordered by credential and key index, the header and the
// payload.
func (stx *SignedAccountTransaction) BlockItem() []byte {
	w := wire.NewWriter(1 + 1 + stx.signatures.Count()*(2+2+SignatureLength) + len(stx.header) + len(stx.payload))
	w.Word8(uint8(AccountTransactionItem))
	stx.signatures.encode(w)
	w.Bytes(stx.header).Bytes(stx.payload)
	return w.Output()
}

// BlockItemHash returns the SHA-256 digest of the block item, the identifier
// nodes report for a submitted transaction.
func (stx *SignedAccountTransaction) BlockItemHash() common.Hash {
	sum := sha256.Sum256(stx.BlockItem())
	return common.BytesToHash(sum[:])
}
