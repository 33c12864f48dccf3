//go:build linux

package main

import (
	"github.com/go-ble/ble/linux"

	"github.com/rmaker/homectl/pkg/provision"
)

// newBLESource opens the default HCI device.
func newBLESource() (provision.AdvertisementSource, error) {
	d, err := linux.NewDevice()
	if err != nil {
		return nil, err
	}
	return d, nil
}
