// services/periph/compile.go
package periph

import (
	"blockboard-go/drivers/bmp388"
	"blockboard-go/drivers/is31fl3741"
	"blockboard-go/drivers/lis3dh"
	"blockboard-go/drivers/max30205"
	"blockboard-go/drivers/veml7700"
	"blockboard-go/errcode"
	"blockboard-go/internal/platform"

	"tinygo.org/x/drivers"
)

// entry is one name in the registry, tagged by kind. Exactly one of the
// typed fields is set.
type entry struct {
	kind   Kind
	in     *DigitalIn
	out    *DigitalOut
	motor  *Motor
	group  *MotorGroup
	ranger *HCSR04
	temp   *max30205.Device
	matrix *is31fl3741.Device
	baro   *bmp388.Device
	accel  *lis3dh.Device
	light  *veml7700.Device
}

// CompiledConfig is one successfully compiled document: the verbatim source
// bytes and the registry of live peripherals built from them. It is
// immutable after Compile returns.
type CompiledConfig struct {
	source  []byte
	entries map[string]*entry
	motors  map[string]*Motor
	ledger  *ledger
}

// Source returns the raw document bytes this configuration was built from.
func (c *CompiledConfig) Source() []byte { return c.source }

// Names returns how many peripherals the registry holds.
func (c *CompiledConfig) Names() int { return len(c.entries) }

// Close releases the hardware held by this configuration. Called after a
// newer configuration has been published.
func (c *CompiledConfig) Close() {
	for _, m := range c.motors {
		m.release()
	}
}

// compiler carries the in-progress state so the section loops stay flat.
type compiler struct {
	board  platform.Board
	busman *BusManager
	led    *ledger
	out    *CompiledConfig
}

// Compile validates a document against a fresh ledger and builds its
// registry. The first error aborts the whole compile; any hardware already
// claimed by the partial build is released before returning.
func Compile(raw []byte, board platform.Board, busman *BusManager) (*CompiledConfig, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}

	c := &compiler{
		board:  board,
		busman: busman,
		led:    newLedger(),
		out: &CompiledConfig{
			source:  append([]byte(nil), raw...),
			entries: make(map[string]*entry),
			motors:  make(map[string]*Motor),
		},
	}
	c.out.ledger = c.led

	if err := c.run(doc); err != nil {
		c.out.Close()
		return nil, err
	}
	return c.out, nil
}

func (c *compiler) run(doc *Document) error {
	if doc.I2C != nil {
		if err := c.led.claimPin(doc.I2C.SDA, "i2c gpio_sda"); err != nil {
			return err
		}
		if err := c.led.claimPin(doc.I2C.SCL, "i2c gpio_scl"); err != nil {
			return err
		}
		if err := c.busman.Configure(c.board, doc.I2C.SDA, doc.I2C.SCL); err != nil {
			return err
		}
	}

	for _, d := range doc.DigitalIns {
		if err := c.digitalIn(d); err != nil {
			return err
		}
	}
	for _, d := range doc.DigitalOuts {
		if err := c.digitalOut(d); err != nil {
			return err
		}
	}
	for _, d := range doc.Motors {
		if err := c.motor(d); err != nil {
			return err
		}
	}
	for _, d := range doc.MotorGroups {
		if err := c.motorGroup(d); err != nil {
			return err
		}
	}
	for _, d := range doc.HCSR04s {
		if err := c.hcsr04(d); err != nil {
			return err
		}
	}
	for _, d := range doc.MAX30205s {
		if err := c.basicI2C("max30205s", d, KindMAX30205); err != nil {
			return err
		}
	}
	for _, d := range doc.IS31FL3741s {
		if err := c.basicI2C("is31fl3741s", d, KindIS31FL3741); err != nil {
			return err
		}
	}
	for _, d := range doc.BMP388s {
		if err := c.basicI2C("bmp388s", d, KindBMP388); err != nil {
			return err
		}
	}
	for _, d := range doc.LIS3DHs {
		if err := c.basicI2C("lis3dhs", d, KindLIS3DH); err != nil {
			return err
		}
	}
	for _, d := range doc.VEML7700s {
		if err := c.basicI2C("veml7700s", d, KindVEML7700); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) digitalIn(d DigitalIO) error {
	if err := c.led.claimName("digital_ins", d.Name); err != nil {
		return err
	}
	if err := c.led.claimPin(d.GPIO, "digital_ins "+d.Name+" gpio"); err != nil {
		return err
	}
	pin, err := c.board.Input(d.GPIO, platform.PullNone)
	if err != nil {
		return errcode.Wrap("digital_ins "+d.Name, err)
	}
	c.out.entries[d.Name] = &entry{kind: KindDigitalIn, in: &DigitalIn{pin: pin, negated: d.Negated}}
	return nil
}

func (c *compiler) digitalOut(d DigitalIO) error {
	if err := c.led.claimName("digital_outs", d.Name); err != nil {
		return err
	}
	if err := c.led.claimPin(d.GPIO, "digital_outs "+d.Name+" gpio"); err != nil {
		return err
	}
	// Initial physical level is the negated form of logical false.
	pin, err := c.board.Output(d.GPIO, d.Negated)
	if err != nil {
		return errcode.Wrap("digital_outs "+d.Name, err)
	}
	c.out.entries[d.Name] = &entry{kind: KindDigitalOut, out: &DigitalOut{pin: pin, negated: d.Negated}}
	return nil
}

func (c *compiler) motor(d MotorDecl) error {
	if err := c.led.claimName("motors", d.Name); err != nil {
		return err
	}
	if err := c.led.claimPin(d.GPIOPos, "motors "+d.Name+" gpio_pos"); err != nil {
		return err
	}
	if err := c.led.claimPin(d.GPIONeg, "motors "+d.Name+" gpio_neg"); err != nil {
		return err
	}
	pos, err := c.board.PWM(d.GPIOPos)
	if err != nil {
		return errcode.Wrap("motors "+d.Name+" gpio_pos", err)
	}
	neg, err := c.board.PWM(d.GPIONeg)
	if err != nil {
		pos.Release()
		return errcode.Wrap("motors "+d.Name+" gpio_neg", err)
	}
	m := &Motor{pos: pos, neg: neg}
	c.out.entries[d.Name] = &entry{kind: KindMotor, motor: m}
	c.out.motors[d.Name] = m
	return nil
}

func (c *compiler) motorGroup(d MotorGroupDecl) error {
	if err := c.led.claimName("motor_groups", d.Name); err != nil {
		return err
	}
	for _, member := range d.Motors {
		if _, ok := c.out.motors[member]; !ok {
			return &errcode.E{
				C:   errcode.UnknownMember,
				Op:  "motor_groups " + d.Name,
				Msg: "unknown motor " + member,
			}
		}
	}
	c.out.entries[d.Name] = &entry{kind: KindMotorGroup, group: &MotorGroup{
		members: append([]string(nil), d.Motors...),
		motors:  c.out.motors,
	}}
	return nil
}

func (c *compiler) hcsr04(d HCSR04Decl) error {
	if err := c.led.claimName("hcsr04s", d.Name); err != nil {
		return err
	}
	if err := c.led.claimPin(d.GPIOTrigger, "hcsr04s "+d.Name+" gpio_trigger"); err != nil {
		return err
	}
	if err := c.led.claimPin(d.GPIOEcho, "hcsr04s "+d.Name+" gpio_echo"); err != nil {
		return err
	}
	trig, err := c.board.Output(d.GPIOTrigger, false)
	if err != nil {
		return errcode.Wrap("hcsr04s "+d.Name+" gpio_trigger", err)
	}
	echo, err := c.board.Input(d.GPIOEcho, platform.PullNone)
	if err != nil {
		return errcode.Wrap("hcsr04s "+d.Name+" gpio_echo", err)
	}
	c.out.entries[d.Name] = &entry{kind: KindHCSR04, ranger: &HCSR04{trigger: trig, echo: echo}}
	return nil
}

func (c *compiler) basicI2C(section string, d BasicI2C, kind Kind) error {
	if err := c.led.claimName(section, d.Name); err != nil {
		return err
	}
	if err := c.led.claimAddr(d.I2CAddr, section+" "+d.Name); err != nil {
		return err
	}
	bus, ok := c.busman.Bus()
	if !ok {
		return &errcode.E{C: errcode.I2CNotConfigured, Op: section + " " + d.Name}
	}

	e := &entry{kind: kind}
	var err error
	switch kind {
	case KindMAX30205:
		e.temp, err = newMAX30205(bus, d.I2CAddr)
	case KindIS31FL3741:
		e.matrix, err = newIS31FL3741(bus, d.I2CAddr)
	case KindBMP388:
		e.baro, err = newBMP388(bus, d.I2CAddr)
	case KindLIS3DH:
		e.accel, err = newLIS3DH(bus, d.I2CAddr)
	case KindVEML7700:
		e.light, err = newVEML7700(bus, d.I2CAddr)
	}
	if err != nil {
		return &errcode.E{C: errcode.Hardware, Op: section + " " + d.Name, Err: err}
	}
	c.out.entries[d.Name] = e
	return nil
}

func newMAX30205(bus drivers.I2C, addr uint8) (*max30205.Device, error) {
	dev := max30205.New(bus)
	dev.Address = uint16(addr)
	if err := dev.Configure(); err != nil {
		return nil, err
	}
	return &dev, nil
}

func newIS31FL3741(bus drivers.I2C, addr uint8) (*is31fl3741.Device, error) {
	dev := is31fl3741.New(bus)
	dev.Address = uint16(addr)
	if err := dev.Configure(); err != nil {
		return nil, err
	}
	return &dev, nil
}

func newBMP388(bus drivers.I2C, addr uint8) (*bmp388.Device, error) {
	dev := bmp388.New(bus)
	dev.Address = uint16(addr)
	if err := dev.Configure(); err != nil {
		return nil, err
	}
	return &dev, nil
}

func newLIS3DH(bus drivers.I2C, addr uint8) (*lis3dh.Device, error) {
	dev := lis3dh.New(bus)
	dev.Address = uint16(addr)
	if err := dev.Configure(); err != nil {
		return nil, err
	}
	return &dev, nil
}

func newVEML7700(bus drivers.I2C, addr uint8) (*veml7700.Device, error) {
	dev := veml7700.New(bus)
	dev.Address = uint16(addr)
	if err := dev.Configure(); err != nil {
		return nil, err
	}
	return &dev, nil
}
