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

package proposal

import (
	"errors"
	"testing"
	"time"

	"github.com/ccd-wallet/ledger-signer/core/types"
	. "github.com/onsi/gomega"
)

func testUpdate() *types.UpdateInstruction {
	return &types.UpdateInstruction{
		Header:  types.UpdateHeader{SequenceNumber: 3, EffectiveTime: 0, Timeout: 1700000000},
		Payload: &types.ElectionDifficulty{Difficulty: 25000},
	}
}

func signed(t *testing.T, u *types.UpdateInstruction, index uint16, b byte) *types.UpdateInstruction {
	var sig types.Signature
	sig[0] = b
	out, err := u.WithSignature(index, sig)
	if err != nil {
		t.Fatalf("signing with key %d: %v", index, err)
	}
	return out
}

func TestNewProposal(t *testing.T) {
	RegisterTestingT(t)

	p, err := New(testUpdate(), 2)
	Ω(err).ShouldNot(HaveOccurred())
	Ω(p.Status).Should(Equal(StatusOpen))
	Ω(p.Ready()).Should(BeFalse())

	_, err = New(testUpdate(), 0)
	Ω(err).Should(HaveOccurred())

	invalid := testUpdate()
	invalid.Header.EffectiveTime = 10
	_, err = New(invalid, 1)
	Ω(err).Should(HaveOccurred())
}

func TestMergeSignatures(t *testing.T) {
	RegisterTestingT(t)

	p, err := New(signed(t, testUpdate(), 1, 0x01), 3)
	Ω(err).ShouldNot(HaveOccurred())

	other := signed(t, signed(t, testUpdate(), 1, 0x01), 4, 0x04)
	added, err := p.Merge(other)
	Ω(err).ShouldNot(HaveOccurred())
	Ω(added).Should(Equal(1))
	Ω(p.Ready()).Should(BeFalse())

	// Merging the same signatures again adds nothing.
	added, err = p.Merge(other)
	Ω(err).ShouldNot(HaveOccurred())
	Ω(added).Should(Equal(0))

	added, err = p.Merge(signed(t, testUpdate(), 0, 0x10))
	Ω(err).ShouldNot(HaveOccurred())
	Ω(added).Should(Equal(1))
	Ω(p.Ready()).Should(BeTrue())

	indices := []uint16{}
	for _, s := range p.Update.Signatures {
		indices = append(indices, s.AuthorizationKeyIndex)
	}
	Ω(indices).Should(Equal([]uint16{0, 1, 4}))
}

func TestMergeConflicts(t *testing.T) {
	RegisterTestingT(t)

	p, err := New(signed(t, testUpdate(), 1, 0x01), 2)
	Ω(err).ShouldNot(HaveOccurred())

	_, err = p.Merge(signed(t, signed(t, testUpdate(), 2, 0x02), 1, 0xff))
	Ω(errors.Is(err, ErrDuplicateSignature)).Should(BeTrue())
	Ω(p.Update.Signatures).Should(HaveLen(1))

	different := testUpdate()
	different.Header.SequenceNumber++
	_, err = p.Merge(signed(t, different, 2, 0x02))
	Ω(errors.Is(err, ErrDigestMismatch)).Should(BeTrue())
	Ω(p.Update.Signatures).Should(HaveLen(1))
}

func TestExpired(t *testing.T) {
	RegisterTestingT(t)

	p, err := New(testUpdate(), 1)
	Ω(err).ShouldNot(HaveOccurred())
	Ω(p.Expired(time.Unix(1600000000, 0))).Should(BeFalse())
	Ω(p.Expired(time.Unix(1700000000, 0))).Should(BeTrue())
}
