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

// Package signer turns device signatures into submittable block items.
package signer

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/ccd-wallet/ledger-signer/accounts"
	"github.com/ccd-wallet/ledger-signer/accounts/usbwallet"
	"github.com/ccd-wallet/ledger-signer/common"
	"github.com/ccd-wallet/ledger-signer/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/hdevalence/ed25519consensus"
)

// ErrSignatureMismatch is returned when the device signature does not verify
// against the device public key of the signing path.
var ErrSignatureMismatch = errors.New("signature does not match device key")

// Options controls how a device signature is attached.
type Options struct {
	// Credential is the index of the credential the key belongs to.
	Credential types.CredentialIndex

	// Key is the index of the key within the credential. If nil, the last
	// component of an account key path is used.
	Key *types.KeyIndex

	// Verify checks the signature against the public key the device reports
	// for the signing path.
	Verify bool
}

func (o *Options) keyIndex(path accounts.DerivationPath) (types.KeyIndex, error) {
	if o.Key != nil {
		return *o.Key, nil
	}
	if len(path) != len(accounts.AccountPath(0, 0, 0)) || path[len(path)-1] > 0xff {
		return 0, fmt.Errorf("no key index given and %v is not an account key path", path)
	}
	return types.KeyIndex(path[len(path)-1]), nil
}

// SignAccountTransaction has the device sign tx with the key at path and
// returns the transaction with the signature attached. Nothing is attached
// if any step fails.
func SignAccountTransaction(ctx context.Context, sess *usbwallet.Session, path accounts.DerivationPath, tx *types.AccountTransaction, opts Options) (*types.SignedAccountTransaction, error) {
	key, err := opts.keyIndex(path)
	if err != nil {
		return nil, err
	}
	sig, err := usbwallet.SignTransaction(ctx, sess, path, tx)
	if err != nil {
		return nil, err
	}
	if opts.Verify {
		digest, err := tx.SignDigest()
		if err != nil {
			return nil, err
		}
		if err := verify(ctx, sess, path, digest, sig); err != nil {
			return nil, err
		}
	}
	signed, err := tx.WithSignature(opts.Credential, key, sig)
	if err != nil {
		return nil, err
	}
	log.Info("Signed account transaction", "kind", tx.Kind(), "hash", signed.Hash(), "credential", opts.Credential, "key", key)
	return signed, nil
}

// SignUpdateInstruction has the device sign update with the governance key at
// path and returns a copy carrying the signature under index.
func SignUpdateInstruction(ctx context.Context, sess *usbwallet.Session, path accounts.DerivationPath, update *types.UpdateInstruction, index uint16, verifySig bool) (*types.UpdateInstruction, error) {
	sig, err := usbwallet.SignUpdateInstruction(ctx, sess, path, update)
	if err != nil {
		return nil, err
	}
	if verifySig {
		digest, err := update.SignDigest()
		if err != nil {
			return nil, err
		}
		if err := verify(ctx, sess, path, digest, sig); err != nil {
			return nil, err
		}
	}
	signed, err := update.WithSignature(index, sig)
	if err != nil {
		return nil, err
	}
	log.Info("Signed update instruction", "type", update.Payload.UpdateType(), "sequence", update.Header.SequenceNumber, "key", index)
	return signed, nil
}

func verify(ctx context.Context, sess *usbwallet.Session, path accounts.DerivationPath, digest common.Hash, sig types.Signature) error {
	pub, err := sess.PublicKey(ctx, path, false)
	if err != nil {
		return err
	}
	return Verify(pub, digest, sig)
}

// Verify checks sig over digest with the ZIP 215 validation rules used by
// the chain.
func Verify(pub ed25519.PublicKey, digest common.Hash, sig types.Signature) error {
	if !ed25519consensus.Verify(pub, digest.Bytes(), sig.Bytes()) {
		return fmt.Errorf("%w: digest %v", ErrSignatureMismatch, digest)
	}
	return nil
}
