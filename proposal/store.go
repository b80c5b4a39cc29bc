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
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var proposalPrefix = []byte("proposal-")

// Store keeps proposals in a LevelDB database.
type Store struct {
	db  *leveldb.DB
	log log.Logger
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: 16,
		BlockCacheCapacity:     2 * opt.MiB,
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	logger := log.New("database", path)
	logger.Debug("Opened proposal store")
	return &Store{db: db, log: logger}, nil
}

// NewInMemory returns a store backed by memory.
func NewInMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, log: log.New("database", "memory")}, nil
}

func proposalKey(id uuid.UUID) []byte {
	return append(append([]byte(nil), proposalPrefix...), id.String()...)
}

// Put stores p, replacing any proposal with the same ID.
func (s *Store) Put(p *Proposal) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.db.Put(proposalKey(p.ID), blob, nil); err != nil {
		return err
	}
	s.log.Trace("Stored proposal", "id", p.ID, "signatures", len(p.Update.Signatures))
	return nil
}

// Get loads the proposal with the given ID.
func (s *Store) Get(id uuid.UUID) (*Proposal, error) {
	blob, err := s.db.Get(proposalKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	p := new(Proposal)
	if err := json.Unmarshal(blob, p); err != nil {
		return nil, fmt.Errorf("proposal %v: %w", id, err)
	}
	return p, nil
}

// Delete removes the proposal with the given ID.
func (s *Store) Delete(id uuid.UUID) error {
	if ok, err := s.db.Has(proposalKey(id), nil); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	return s.db.Delete(proposalKey(id), nil)
}

// List returns all proposals, oldest first.
func (s *Store) List() ([]*Proposal, error) {
	it := s.db.NewIterator(util.BytesPrefix(proposalPrefix), nil)
	defer it.Release()

	var proposals []*Proposal
	for it.Next() {
		p := new(Proposal)
		if err := json.Unmarshal(it.Value(), p); err != nil {
			return nil, fmt.Errorf("proposal %s: %w", it.Key()[len(proposalPrefix):], err)
		}
		proposals = append(proposals, p)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].Created.Before(proposals[j].Created)
	})
	return proposals, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
