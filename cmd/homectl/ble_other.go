//go:build !linux

package main

import (
	"errors"

	"github.com/rmaker/homectl/pkg/provision"
)

func newBLESource() (provision.AdvertisementSource, error) {
	return nil, errors.New("BLE scanning is only supported on linux")
}
