// Package max30205 provides a driver for the MAX30205 human body temperature
// sensor. The part powers up converting continuously, so reads need no
// trigger step: ReadTemperature fetches the 16-bit temperature register and
// scales it to °C.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package max30205

import (
	"tinygo.org/x/drivers"
)

// I2C address with all address pins low.
const Address = 0x48

// Registers.
const (
	regTemperature = 0x00
	regConfig      = 0x01
)

// Device wraps an I2C connection to a MAX30205 device.
type Device struct {
	bus     drivers.I2C
	Address uint16
	buf     [2]byte
}

// New creates a new MAX30205 connection. The I2C bus must already be
// configured. This function only creates the Device object; it does not touch
// the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Configure puts the device in continuous conversion mode. The power-on
// default already is, so this just clears the config register.
func (d *Device) Configure() error {
	return d.bus.Tx(d.Address, []byte{regConfig, 0x00}, nil)
}

// ReadTemperature returns the temperature in °C. Resolution is 1/256 °C.
func (d *Device) ReadTemperature() (float64, error) {
	data := d.buf[:]
	if err := d.bus.Tx(d.Address, []byte{regTemperature}, data); err != nil {
		return 0, err
	}
	raw := int16(uint16(data[0])<<8 | uint16(data[1]))
	return float64(raw) / 256.0, nil
}
