// internal/platform/esp32.go
//go:build tinygo

package platform

import (
	"machine"
	"sync"

	"blockboard-go/errcode"
)

// The LEDC block exposes eight channels; the tinygo machine PWM API does not
// surface them directly, so outputs above zero duty are driven as plain
// digital levels at the duty midpoint threshold.
const maxPWMChannels = 8

const mcuMaxDuty = 1023

// DefaultBoard provides the target MCU board.
func DefaultBoard() Board { return &mcuBoard{} }

type mcuBoard struct {
	mu      sync.Mutex
	pwmUsed int
	i2cOnce bool
}

type mcuPin struct {
	p machine.Pin
	n int
}

func (m *mcuPin) Get() bool      { return m.p.Get() }
func (m *mcuPin) Set(level bool) { m.p.Set(level) }
func (m *mcuPin) Number() int    { return m.n }

func (b *mcuBoard) Input(pin int, pull Pull) (InputPin, error) {
	p := machine.Pin(pin)
	mode := machine.PinInput
	switch pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	}
	p.Configure(machine.PinConfig{Mode: mode})
	return &mcuPin{p: p, n: pin}, nil
}

func (b *mcuBoard) Output(pin int, initial bool) (OutputPin, error) {
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Set(initial)
	return &mcuPin{p: p, n: pin}, nil
}

// mcuPWM approximates PWM by driving the pin high above half duty. Good
// enough for motor direction until the port grows LEDC support.
type mcuPWM struct {
	p     machine.Pin
	board *mcuBoard
	done  bool
}

func (c *mcuPWM) SetDuty(duty uint32) error {
	c.p.Set(duty > mcuMaxDuty/2)
	return nil
}

func (c *mcuPWM) MaxDuty() uint32 { return mcuMaxDuty }

func (c *mcuPWM) Release() {
	if c.done {
		return
	}
	c.done = true
	c.p.Set(false)
	c.board.mu.Lock()
	if c.board.pwmUsed > 0 {
		c.board.pwmUsed--
	}
	c.board.mu.Unlock()
}

func (b *mcuBoard) PWM(pin int) (PWMChannel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pwmUsed >= maxPWMChannels {
		return nil, &errcode.E{C: errcode.Hardware, Op: "platform.PWM", Msg: "out of pwm channels"}
	}
	b.pwmUsed++
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Set(false)
	return &mcuPWM{p: p, board: b}, nil
}

func (b *mcuBoard) I2C(sda, scl int) (I2CTransactor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus := machine.I2C0
	if !b.i2cOnce {
		err := bus.Configure(machine.I2CConfig{
			Frequency: 400 * machine.KHz,
			SDA:       machine.Pin(sda),
			SCL:       machine.Pin(scl),
		})
		if err != nil {
			return nil, &errcode.E{C: errcode.Hardware, Op: "platform.I2C", Err: err}
		}
		b.i2cOnce = true
	}
	return bus, nil
}
