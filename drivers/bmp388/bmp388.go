// Package bmp388 provides a driver for the BMP388 pressure and temperature
// sensor. Raw 24-bit samples are compensated with the per-part trim values
// read from NVM during Configure, using the datasheet floating-point
// formulas. Pressure is returned in Pa, temperature in °C.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package bmp388

import (
	"errors"

	"tinygo.org/x/drivers"
)

// I2C address with SDO low.
const Address = 0x76

// Registers.
const (
	regChipID  = 0x00
	regData    = 0x04
	regPwrCtrl = 0x1B
	regCalib   = 0x31

	chipIDValue = 0x50
)

// ErrBadIdentity is returned when the chip id does not match.
var ErrBadIdentity = errors.New("bmp388: unexpected chip id")

// calibration holds the trim values already scaled per datasheet.
type calibration struct {
	t1, t2, t3                                   float64
	p1, p2, p3, p4, p5, p6, p7, p8, p9, p10, p11 float64
}

// Device wraps an I2C connection to a BMP388 device.
type Device struct {
	bus     drivers.I2C
	Address uint16
	cal     calibration
	buf     [21]byte
}

// New creates a new BMP388 connection. The I2C bus must already be
// configured. This function only creates the Device object; it does not touch
// the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Configure verifies the chip id, loads the calibration trim and enables
// continuous pressure and temperature measurement.
func (d *Device) Configure() error {
	id := d.buf[:1]
	if err := d.bus.Tx(d.Address, []byte{regChipID}, id); err != nil {
		return err
	}
	if id[0] != chipIDValue {
		return ErrBadIdentity
	}
	if err := d.readCalibration(); err != nil {
		return err
	}
	// Pressure and temperature enabled, normal mode.
	return d.bus.Tx(d.Address, []byte{regPwrCtrl, 0x33}, nil)
}

func (d *Device) readCalibration() error {
	raw := d.buf[:21]
	if err := d.bus.Tx(d.Address, []byte{regCalib}, raw); err != nil {
		return err
	}
	u16 := func(i int) uint16 { return uint16(raw[i]) | uint16(raw[i+1])<<8 }
	s16 := func(i int) int16 { return int16(u16(i)) }

	d.cal = calibration{
		t1:  float64(u16(0)) * 256, // scaling is 2^-8
		t2:  float64(u16(2)) / (1 << 30),
		t3:  float64(int8(raw[4])) / (1 << 48),
		p1:  (float64(s16(5)) - (1 << 14)) / (1 << 20),
		p2:  (float64(s16(7)) - (1 << 14)) / (1 << 29),
		p3:  float64(int8(raw[9])) / (1 << 32),
		p4:  float64(int8(raw[10])) / (1 << 37),
		p5:  float64(u16(11)) * 8, // scaling is 2^-3
		p6:  float64(u16(13)) / (1 << 6),
		p7:  float64(int8(raw[15])) / (1 << 8),
		p8:  float64(int8(raw[16])) / (1 << 15),
		p9:  float64(s16(17)) / (1 << 48),
		p10: float64(int8(raw[19])) / (1 << 48),
		p11: float64(int8(raw[20])) / (1 << 62) / 8,
	}
	return nil
}

// readRaw fetches one uncompensated pressure/temperature pair.
func (d *Device) readRaw() (press, temp uint32, err error) {
	data := d.buf[:6]
	if err = d.bus.Tx(d.Address, []byte{regData}, data); err != nil {
		return 0, 0, err
	}
	press = uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16
	temp = uint32(data[3]) | uint32(data[4])<<8 | uint32(data[5])<<16
	return press, temp, nil
}

// compensateTemp returns the linearised temperature in °C.
func (d *Device) compensateTemp(raw uint32) float64 {
	pd1 := float64(raw) - d.cal.t1
	pd2 := pd1 * d.cal.t2
	return pd2 + pd1*pd1*d.cal.t3
}

// ReadTemperature returns the temperature in °C.
func (d *Device) ReadTemperature() (float64, error) {
	_, traw, err := d.readRaw()
	if err != nil {
		return 0, err
	}
	return d.compensateTemp(traw), nil
}

// ReadPressure returns the pressure in Pa.
func (d *Device) ReadPressure() (float64, error) {
	praw, traw, err := d.readRaw()
	if err != nil {
		return 0, err
	}
	t := d.compensateTemp(traw)
	p := float64(praw)

	out1 := d.cal.p5 + d.cal.p6*t + d.cal.p7*t*t + d.cal.p8*t*t*t
	out2 := p * (d.cal.p1 + d.cal.p2*t + d.cal.p3*t*t + d.cal.p4*t*t*t)
	out3 := p*p*(d.cal.p9+d.cal.p10*t) + p*p*p*d.cal.p11
	return out1 + out2 + out3, nil
}
