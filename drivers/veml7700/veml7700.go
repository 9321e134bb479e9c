// Package veml7700 provides a driver for the VEML7700 ambient light sensor.
// Register words travel little-endian on the wire. The driver runs the part
// at the default 1x gain and 100 ms integration time, where one count is
// 0.0576 lx.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package veml7700

import (
	"tinygo.org/x/drivers"
)

// I2C address (fixed).
const Address = 0x10

// Registers.
const (
	regALSConf = 0x00
	regALS     = 0x04
)

// Lux per count at gain 1x, 100 ms integration.
const luxPerCount = 0.0576

// Device wraps an I2C connection to a VEML7700 device.
type Device struct {
	bus     drivers.I2C
	Address uint16
	buf     [2]byte
}

// New creates a new VEML7700 connection. The I2C bus must already be
// configured. This function only creates the Device object; it does not touch
// the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Configure enables the sensor with gain 1x and 100 ms integration time
// (an all-zero configuration word).
func (d *Device) Configure() error {
	return d.bus.Tx(d.Address, []byte{regALSConf, 0x00, 0x00}, nil)
}

// ReadLux returns the ambient light level in lux.
func (d *Device) ReadLux() (float64, error) {
	data := d.buf[:]
	if err := d.bus.Tx(d.Address, []byte{regALS}, data); err != nil {
		return 0, err
	}
	raw := uint16(data[0]) | uint16(data[1])<<8
	return float64(raw) * luxPerCount, nil
}
