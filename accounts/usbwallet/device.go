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
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ccd-wallet/ledger-signer/accounts"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/semaphore"
)

// Config tunes a Device.
type Config struct {
	// CommandTimeout bounds a single exchange, including the time the user
	// takes to confirm on the device.
	CommandTimeout time.Duration

	// KeyCacheSize is the number of public keys remembered per device.
	KeyCacheSize int
}

// DefaultConfig leaves ample time for the user to review a transaction.
var DefaultConfig = Config{
	CommandTimeout: 2 * time.Minute,
	KeyCacheSize:   64,
}

// Device is a single connected Ledger. Sessions on a device are exclusive:
// Acquire blocks until the previous holder released its session.
type Device struct {
	transport Transport
	config    Config
	sessions  *semaphore.Weighted
	keys      *lru.Cache // Public keys by derivation path
	log       log.Logger
}

// NewDevice wraps a transport. The device owns the transport from now on.
func NewDevice(transport Transport, config Config, logger log.Logger) (*Device, error) {
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = DefaultConfig.CommandTimeout
	}
	if config.KeyCacheSize <= 0 {
		config.KeyCacheSize = DefaultConfig.KeyCacheSize
	}
	keys, err := lru.New(config.KeyCacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Device{
		transport: transport,
		config:    config,
		sessions:  semaphore.NewWeighted(1),
		keys:      keys,
		log:       logger,
	}, nil
}

// Acquire waits until the caller exclusively owns the device.
func (d *Device) Acquire(ctx context.Context) (*Session, error) {
	if err := d.sessions.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	d.log.Debug("Ledger session acquired")
	return &Session{device: d}, nil
}

// TryAcquire returns a session only if the device is idle.
func (d *Device) TryAcquire() (*Session, bool) {
	if !d.sessions.TryAcquire(1) {
		return nil, false
	}
	return &Session{device: d}, true
}

// Close closes the underlying transport.
func (d *Device) Close() error {
	return d.transport.Close()
}

// Session is an exclusive handle on a device. It is not safe for concurrent
// use and must be released exactly once.
type Session struct {
	device *Device

	lock     sync.Mutex
	closed   bool
	released bool
}

// Release hands the device back. Releasing twice is a no-op.
func (s *Session) Release() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.released {
		return
	}
	s.closed, s.released = true, true
	s.device.sessions.Release(1)
	s.device.log.Debug("Ledger session released")
}

// discard makes every later exchange on the session fail. The device stays
// held until Release.
func (s *Session) discard(reason error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.closed {
		s.device.log.Debug("Ledger session discarded", "err", reason)
	}
	s.closed = true
}

// Exchange sends one command and returns the response data. The status word
// is checked: anything but success is returned as a *StatusError.
func (s *Session) Exchange(ctx context.Context, apdu APDU) ([]byte, error) {
	s.lock.Lock()
	closed := s.closed
	s.lock.Unlock()
	if closed {
		return nil, errSessionClosed
	}
	if err := apdu.Validate(); err != nil {
		return nil, err
	}
	return s.device.exchange(ctx, apdu)
}

func (d *Device) exchange(ctx context.Context, apdu APDU) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.CommandTimeout)
	defer cancel()

	exchangeMeter.Mark(1)
	sentBytesMeter.Mark(int64(len(apdu.Data)))

	reply, err := d.transport.Exchange(ctx, apdu)
	if err != nil {
		failureCounter.Inc(1)
		return nil, transportError(err)
	}
	if len(reply) < statusCodeLen {
		failureCounter.Inc(1)
		return nil, fmt.Errorf("%w: reply of %d bytes lacks status word", ErrTransportFailure, len(reply))
	}
	data, status := reply[:len(reply)-statusCodeLen], binary.BigEndian.Uint16(reply[len(reply)-statusCodeLen:])
	if status != statusCodeOK {
		rejectedCounter.Inc(1)
		return nil, &StatusError{Code: status}
	}
	return data, nil
}

// AppInfo describes the application running on the device.
type AppInfo struct {
	Name    string
	Version string
}

// AppAndVersion asks the device dashboard which application is open.
//
//	CLA | INS | P1 | P2 | Lc
//	----+-----+----+----+---
//	 B0 | 01  | 00 | 00 | 00
//
// The reply is a format byte (01), the length prefixed application name and
// the length prefixed version string.
func (s *Session) AppAndVersion(ctx context.Context) (*AppInfo, error) {
	reply, err := s.Exchange(ctx, APDU{CLA: dashboardCLA, INS: 0x01})
	if err != nil {
		return nil, err
	}
	if len(reply) < 1 || reply[0] != 0x01 {
		return nil, fmt.Errorf("%w: invalid app version reply", ErrTransportFailure)
	}
	var fields []string
	for rest := reply[1:]; len(fields) < 2; {
		if len(rest) < 1 || len(rest) < 1+int(rest[0]) {
			return nil, fmt.Errorf("%w: truncated app version reply", ErrTransportFailure)
		}
		fields = append(fields, string(rest[1:1+int(rest[0])]))
		rest = rest[1+int(rest[0]):]
	}
	return &AppInfo{Name: fields[0], Version: fields[1]}, nil
}

// PublicKey retrieves the Ed25519 public key at path.
//
//	CLA | INS | P1 | P2 | Lc  | Le
//	----+-----+----+----+-----+---
//	 E0 | 01  | 00 return key
//	            01 display key and confirm before returning
//	               | 00 | var | 20
//
// Keys fetched without display are served from the device cache.
func (s *Session) PublicKey(ctx context.Context, path accounts.DerivationPath, display bool) (ed25519.PublicKey, error) {
	cacheKey := path.String()
	if !display {
		if key, ok := s.device.keys.Get(cacheKey); ok {
			keyCacheHitsMeter.Mark(1)
			return key.(ed25519.PublicKey), nil
		}
	}
	p1 := ledgerP1DirectlyFetchKey
	if display {
		p1 = ledgerP1ShowFetchKey
	}
	reply, err := s.Exchange(ctx, APDU{CLA: ledgerCLA, INS: byte(ledgerOpGetPublicKey), P1: byte(p1), Data: path.Bytes()})
	if err != nil {
		return nil, err
	}
	if len(reply) < ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: reply lacks public key", ErrTransportFailure)
	}
	key := ed25519.PublicKey(append([]byte(nil), reply[:ed25519.PublicKeySize]...))
	s.device.keys.Add(cacheKey, key)
	return key, nil
}
