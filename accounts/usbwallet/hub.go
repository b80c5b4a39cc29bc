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
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/karalabe/usb"
)

// LedgerVendorID is the USB vendor ID of Ledger devices.
const LedgerVendorID = 0x2c97

// ledgerUsageID is the HID usage page of the Ledger APDU interface.
const ledgerUsageID = 0xffa0

// ErrNoDevice is returned when no Ledger is connected.
var ErrNoDevice = errors.New("ledger: no device connected")

// Hub enumerates the Ledger devices attached over USB.
type Hub struct {
	config Config
	log    log.Logger

	// Enumeration is not thread safe in the underlying HID library
	lock sync.Mutex
}

// NewLedgerHub creates a hub opening devices with the given config.
func NewLedgerHub(config Config) (*Hub, error) {
	if !usb.Supported() {
		return nil, errors.New("ledger: USB HID is not supported on this platform")
	}
	return &Hub{config: config, log: log.New("hub", "ledger")}, nil
}

// Devices lists the attached Ledger APDU interfaces.
func (hub *Hub) Devices() ([]usb.DeviceInfo, error) {
	hub.lock.Lock()
	defer hub.lock.Unlock()

	infos, err := usb.Enumerate(LedgerVendorID, 0)
	if err != nil {
		return nil, err
	}
	var devices []usb.DeviceInfo
	for _, info := range infos {
		// Only the APDU interface, skip U2F and the rest
		if info.UsagePage == ledgerUsageID || info.Interface == 0 {
			devices = append(devices, info)
		}
	}
	hub.log.Trace("Enumerated Ledger devices", "interfaces", len(infos), "apdu", len(devices))
	return devices, nil
}

// Open connects to a device returned by Devices.
func (hub *Hub) Open(info usb.DeviceInfo) (*Device, error) {
	hub.lock.Lock()
	device, err := info.Open()
	hub.lock.Unlock()
	if err != nil {
		return nil, err
	}
	logger := log.New("device", info.Path)
	logger.Debug("Ledger opened", "product", info.Product, "serial", info.Serial)
	return NewDevice(newHIDTransport(device, logger), hub.config, logger)
}

// OpenFirst connects to the first attached Ledger.
func (hub *Hub) OpenFirst() (*Device, error) {
	devices, err := hub.Devices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}
	return hub.Open(devices[0])
}
