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

// Package proposal collects governance signatures on an update instruction
// until enough keys signed it.
package proposal

import (
	"errors"
	"fmt"
	"time"

	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/core/types"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no proposal has the requested ID.
	ErrNotFound = errors.New("proposal not found")

	// ErrDuplicateSignature is returned when two different signatures claim
	// the same authorization key.
	ErrDuplicateSignature = types.ErrDuplicateSignature

	// ErrDigestMismatch is returned when merging signatures over another
	// update.
	ErrDigestMismatch = errors.New("update digests differ")
)

// Status is the stage of a proposal.
type Status string

const (
	StatusOpen     Status = "open"
	StatusExported Status = "exported"
	StatusExpired  Status = "expired"
)

// Proposal is an update instruction being signed by the governance keys.
type Proposal struct {
	ID        uuid.UUID                `json:"id"`
	Update    *types.UpdateInstruction `json:"update"`
	Threshold int                      `json:"threshold"`
	Status    Status                   `json:"status"`
	Created   time.Time                `json:"created"`
}

// New creates an open proposal for update, requiring threshold signatures.
func New(update *types.UpdateInstruction, threshold int) (*Proposal, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("threshold must be at least 1, have %d", threshold)
	}
	if _, err := update.SignDigest(); err != nil {
		return nil, err
	}
	return &Proposal{
		ID:        uuid.New(),
		Update:    update,
		Threshold: threshold,
		Status:    StatusOpen,
		Created:   time.Now().UTC(),
	}, nil
}

// Digest returns the digest every signature must cover.
func (p *Proposal) Digest() (common.Hash, error) {
	return p.Update.SignDigest()
}

// Ready reports whether enough signatures were collected.
func (p *Proposal) Ready() bool {
	return len(p.Update.Signatures) >= p.Threshold
}

// Expired reports whether the update can no longer be submitted at now.
func (p *Proposal) Expired(now time.Time) bool {
	return uint64(now.Unix()) >= p.Update.Header.Timeout
}

// Merge adds the signatures of other, an independently signed copy of the
// same update. Signatures already present are skipped; a different
// signature for a known key fails the whole merge. It returns the number of
// signatures added.
func (p *Proposal) Merge(other *types.UpdateInstruction) (int, error) {
	ours, err := p.Update.SignDigest()
	if err != nil {
		return 0, err
	}
	theirs, err := other.SignDigest()
	if err != nil {
		return 0, err
	}
	if ours != theirs {
		return 0, fmt.Errorf("%w: have %v, merging %v", ErrDigestMismatch, ours, theirs)
	}
	known := make(map[uint16]types.Signature, len(p.Update.Signatures))
	for _, s := range p.Update.Signatures {
		known[s.AuthorizationKeyIndex] = s.Signature
	}
	merged, added := p.Update, 0
	for _, s := range other.Signatures {
		if sig, ok := known[s.AuthorizationKeyIndex]; ok {
			if sig != s.Signature {
				return 0, fmt.Errorf("%w: authorization key %d", ErrDuplicateSignature, s.AuthorizationKeyIndex)
			}
			continue
		}
		if merged, err = merged.WithSignature(s.AuthorizationKeyIndex, s.Signature); err != nil {
			return 0, err
		}
		known[s.AuthorizationKeyIndex] = s.Signature
		added++
	}
	p.Update = merged
	return added, nil
}
