// Package lis3dh provides a driver for the LIS3DH 3-axis accelerometer.
// The driver configures high-resolution mode at ±2 g, where one digit of the
// left-justified 12-bit sample is 1 mg.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package lis3dh

import (
	"errors"

	"tinygo.org/x/drivers"
)

// I2C address with SA0 low.
const Address = 0x18

// Registers.
const (
	regWhoAmI   = 0x0F
	regCtrl1    = 0x20
	regCtrl4    = 0x23
	regOutXLow  = 0x28
	autoIncr    = 0x80
	whoAmIValue = 0x33
)

// ErrBadIdentity is returned when WHO_AM_I does not match.
var ErrBadIdentity = errors.New("lis3dh: unexpected device id")

// Device wraps an I2C connection to a LIS3DH device.
type Device struct {
	bus     drivers.I2C
	Address uint16
	buf     [6]byte
}

// New creates a new LIS3DH connection. The I2C bus must already be
// configured. This function only creates the Device object; it does not touch
// the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Configure verifies the device identity and enables all three axes at
// 100 Hz in high-resolution ±2 g mode.
func (d *Device) Configure() error {
	id := d.buf[:1]
	if err := d.bus.Tx(d.Address, []byte{regWhoAmI}, id); err != nil {
		return err
	}
	if id[0] != whoAmIValue {
		return ErrBadIdentity
	}
	// 100 Hz, X/Y/Z enabled.
	if err := d.bus.Tx(d.Address, []byte{regCtrl1, 0x57}, nil); err != nil {
		return err
	}
	// BDU, high resolution, ±2 g.
	return d.bus.Tx(d.Address, []byte{regCtrl4, 0x88}, nil)
}

// ReadAcceleration returns the acceleration on the x, y and z axes in g.
func (d *Device) ReadAcceleration() (x, y, z float64, err error) {
	data := d.buf[:]
	if err = d.bus.Tx(d.Address, []byte{regOutXLow | autoIncr}, data); err != nil {
		return 0, 0, 0, err
	}
	x = toG(data[0], data[1])
	y = toG(data[2], data[3])
	z = toG(data[4], data[5])
	return x, y, z, nil
}

// toG converts a left-justified 12-bit sample to g at 1 mg per digit.
func toG(lo, hi byte) float64 {
	raw := int16(uint16(lo) | uint16(hi)<<8) >> 4
	return float64(raw) / 1000.0
}
