// Package is31fl3741 provides a driver for the IS31FL3741 39x9 matrix LED
// controller, wired as the 13x9 RGB matrix found on common breakout boards.
// The register map is paged: PWM values live in pages 0 and 1, per-LED
// scaling in pages 2 and 3, and global configuration in page 4. Every page
// select must first unlock the page register.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package is31fl3741

import (
	"errors"

	"tinygo.org/x/drivers"
)

// I2C address with ADDR pins low.
const Address = 0x30

// Matrix geometry.
const (
	Width  = 13
	Height = 9
)

// Registers.
const (
	regPage   = 0xFD
	regLock   = 0xFE
	lockMagic = 0xC5

	pageConfig       = 4
	regConfiguration = 0x00
	regGlobalCurrent = 0x01
)

// Errors returned by the driver.
var (
	ErrOutOfRange = errors.New("is31fl3741: pixel out of range")
	ErrFrameSize  = errors.New("is31fl3741: bad frame length")
)

// Device wraps an I2C connection to an IS31FL3741 device.
type Device struct {
	bus     drivers.I2C
	Address uint16
	page    int8
}

// New creates a new IS31FL3741 connection. The I2C bus must already be
// configured. This function only creates the Device object; it does not touch
// the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address, page: -1}
}

// Configure enables the controller with full per-LED scaling and a moderate
// global current, then clears all PWM values.
func (d *Device) Configure() error {
	// Scaling pages: every LED to full scale.
	for page := byte(2); page <= 3; page++ {
		if err := d.selectPage(page); err != nil {
			return err
		}
		if err := d.fillPage(0xFF); err != nil {
			return err
		}
	}
	if err := d.selectPage(pageConfig); err != nil {
		return err
	}
	// Normal operation.
	if err := d.bus.Tx(d.Address, []byte{regConfiguration, 0x01}, nil); err != nil {
		return err
	}
	if err := d.bus.Tx(d.Address, []byte{regGlobalCurrent, 0x7F}, nil); err != nil {
		return err
	}
	// PWM pages: all LEDs off.
	for page := byte(0); page <= 1; page++ {
		if err := d.selectPage(page); err != nil {
			return err
		}
		if err := d.fillPage(0x00); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) selectPage(page byte) error {
	if d.page == int8(page) {
		return nil
	}
	if err := d.bus.Tx(d.Address, []byte{regLock, lockMagic}, nil); err != nil {
		return err
	}
	if err := d.bus.Tx(d.Address, []byte{regPage, page}, nil); err != nil {
		return err
	}
	d.page = int8(page)
	return nil
}

// fillPage writes val to every register of the current PWM or scaling page.
// Pages 0 and 2 hold 180 entries, pages 1 and 3 hold 171.
func (d *Device) fillPage(val byte) error {
	n := 180
	if d.page == 1 || d.page == 3 {
		n = 171
	}
	buf := make([]byte, n+1)
	buf[0] = 0x00
	for i := 1; i <= n; i++ {
		buf[i] = val
	}
	return d.bus.Tx(d.Address, buf, nil)
}

// ledOffset maps an (x, y, channel) triple to its flat PWM register index.
// Channel order per pixel is red, green, blue.
func ledOffset(x, y, ch int) int {
	return (y*Width+x)*3 + ch
}

// setLED writes one 8-bit PWM value at a flat index, selecting the right page.
func (d *Device) setLED(index int, val byte) error {
	page := byte(0)
	if index >= 180 {
		page = 1
		index -= 180
	}
	if err := d.selectPage(page); err != nil {
		return err
	}
	return d.bus.Tx(d.Address, []byte{byte(index), val}, nil)
}

// SetPixel sets one RGB pixel. Coordinates outside the 13x9 matrix return
// ErrOutOfRange.
func (d *Device) SetPixel(x, y int, r, g, b byte) error {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return ErrOutOfRange
	}
	if err := d.setLED(ledOffset(x, y, 0), r); err != nil {
		return err
	}
	if err := d.setLED(ledOffset(x, y, 1), g); err != nil {
		return err
	}
	return d.setLED(ledOffset(x, y, 2), b)
}

// SetFrame writes a whole 13x9 RGB frame. The buffer is row-major with three
// bytes per pixel and must be exactly Width*Height*3 bytes long.
func (d *Device) SetFrame(frame []byte) error {
	if len(frame) != Width*Height*3 {
		return ErrFrameSize
	}
	if err := d.selectPage(0); err != nil {
		return err
	}
	buf := make([]byte, 181)
	copy(buf[1:], frame[:180])
	if err := d.bus.Tx(d.Address, buf, nil); err != nil {
		return err
	}
	if err := d.selectPage(1); err != nil {
		return err
	}
	buf = buf[:172]
	buf[0] = 0x00
	copy(buf[1:], frame[180:])
	return d.bus.Tx(d.Address, buf, nil)
}
