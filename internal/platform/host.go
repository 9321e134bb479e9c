// internal/platform/host.go
//go:build !tinygo

package platform

import (
	"sync"

	"blockboard-go/errcode"
)

// maxPWMChannels mirrors the LEDC channel count on the target chip so host
// tests exercise the same exhaustion behaviour.
const maxPWMChannels = 8

// hostMaxDuty is the 10-bit duty range used by the target timer config.
const hostMaxDuty = 1023

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements InputPin and OutputPin for host-side tests. ReadHook,
// when set, overrides Get so tests can script input waveforms.
type FakePin struct {
	mu       sync.RWMutex
	number   int
	level    bool
	ReadHook func() bool
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	hook := p.ReadHook
	v := p.level
	p.mu.RUnlock()
	if hook != nil {
		return hook()
	}
	return v
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

func (p *FakePin) Number() int { return p.number }

// SetReadHook installs a scripted level source for input tests.
func (p *FakePin) SetReadHook(f func() bool) {
	p.mu.Lock()
	p.ReadHook = f
	p.mu.Unlock()
}

// ----------------------------- PWM (host) ------------------------------------

// FakePWM records the last duty written so tests can assert motor outputs.
// FailWith, when set, makes every write fail.
type FakePWM struct {
	mu       sync.Mutex
	pin      int
	duty     uint32
	released bool
	board    *HostBoard
	FailWith error
}

func (c *FakePWM) SetDuty(duty uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		return c.FailWith
	}
	c.duty = duty
	return nil
}

func (c *FakePWM) MaxDuty() uint32 { return hostMaxDuty }

func (c *FakePWM) Release() {
	c.mu.Lock()
	done := c.released
	c.released = true
	c.mu.Unlock()
	if !done {
		c.board.releasePWM()
	}
}

// Duty exposes the last written duty for tests.
func (c *FakePWM) Duty() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duty
}

// ----------------------------- I²C (host) ------------------------------------

// HostI2C implements I2CTransactor for host-side tests. Handlers, when set,
// scripts per-address responses; otherwise transactions are recorded and
// succeed with zeroed reads.
type HostI2C struct {
	mu       sync.Mutex
	Handlers map[uint16]func(w, r []byte) error
	LastTx   struct {
		Addr uint16
		W    []byte
		Rn   int
	}
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastTx.Addr = addr
	h.LastTx.W = append([]byte(nil), w...)
	h.LastTx.Rn = len(r)
	if fn, ok := h.Handlers[addr]; ok {
		return fn(w, r)
	}
	return nil
}

// ----------------------------- Board (host) ----------------------------------

// HostBoard hands out stable *FakePin instances per number and fake PWM and
// I²C resources. Tests reach the fakes through Pin and Bus.
type HostBoard struct {
	mu      sync.Mutex
	pins    map[int]*FakePin
	pwms    map[int]*FakePWM
	pwmUsed int
	bus     *HostI2C
}

func NewHostBoard() *HostBoard {
	return &HostBoard{
		pins: make(map[int]*FakePin),
		pwms: make(map[int]*FakePWM),
		bus:  &HostI2C{},
	}
}

// DefaultBoard provides the board used by host mains and tests.
func DefaultBoard() Board { return NewHostBoard() }

func (b *HostBoard) pin(n int) *FakePin {
	p, ok := b.pins[n]
	if !ok {
		p = &FakePin{number: n}
		b.pins[n] = p
	}
	return p
}

func (b *HostBoard) Input(pin int, _ Pull) (InputPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pin(pin), nil
}

func (b *HostBoard) Output(pin int, initial bool) (OutputPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pin(pin)
	p.Set(initial)
	return p, nil
}

func (b *HostBoard) PWM(pin int) (PWMChannel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pwmUsed >= maxPWMChannels {
		return nil, &errcode.E{C: errcode.Hardware, Op: "platform.PWM", Msg: "out of pwm channels"}
	}
	b.pwmUsed++
	c := &FakePWM{pin: pin, board: b}
	b.pwms[pin] = c
	return c, nil
}

func (b *HostBoard) releasePWM() {
	b.mu.Lock()
	if b.pwmUsed > 0 {
		b.pwmUsed--
	}
	b.mu.Unlock()
}

func (b *HostBoard) I2C(sda, scl int) (I2CTransactor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus, nil
}

// Pin exposes the underlying *FakePin for tests (e.g. to script inputs).
func (b *HostBoard) Pin(n int) (*FakePin, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pins[n]
	return p, ok
}

// PWMFor exposes the fake PWM claimed on a pin for tests.
func (b *HostBoard) PWMFor(n int) (*FakePWM, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.pwms[n]
	return c, ok
}

// Bus exposes the fake I²C bus for tests.
func (b *HostBoard) Bus() *HostI2C {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus
}
