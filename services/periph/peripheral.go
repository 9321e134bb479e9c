// services/periph/peripheral.go
package periph

import (
	"strings"
	"time"

	"blockboard-go/errcode"
	"blockboard-go/internal/platform"
	"blockboard-go/x/mathx"
)

// Kind identifies what a registry entry is, so dispatch can route
// operations without reflection.
type Kind uint8

const (
	KindDigitalIn Kind = iota
	KindDigitalOut
	KindMotor
	KindMotorGroup
	KindHCSR04
	KindMAX30205
	KindIS31FL3741
	KindBMP388
	KindLIS3DH
	KindVEML7700
)

var kindNames = [...]string{
	"DigitalIn", "DigitalOut", "Motor", "MotorGroup", "HCSR04",
	"MAX30205", "IS31FL3741", "BMP388", "LIS3DH", "VEML7700",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// maxPower is the full-scale motor power input.
const maxPower = 255

// DigitalIn reads a single GPIO, optionally inverted.
type DigitalIn struct {
	pin     platform.InputPin
	negated bool
}

func (d *DigitalIn) Get() bool { return d.pin.Get() != d.negated }

// DigitalOut drives a single GPIO, optionally inverted. The last logical
// value is tracked so reads do not depend on pin readback.
type DigitalOut struct {
	pin     platform.OutputPin
	negated bool
	last    bool
}

func (d *DigitalOut) Set(v bool) {
	d.last = v
	d.pin.Set(v != d.negated)
}

func (d *DigitalOut) Get() bool { return d.last }

// Motor drives an h-bridge through a PWM pair. Positive power drives the
// positive pin, negative power the negative pin, zero idles both.
type Motor struct {
	pos, neg platform.PWMChannel
}

// SetPower accepts power in [-255, 255]; out-of-range values are clamped.
func (m *Motor) SetPower(power float64) error {
	maxDuty := int64(m.pos.MaxDuty())
	duty := int64(mathx.Clamp(int(power), -maxPower, maxPower)) * maxDuty / maxPower

	if duty >= 0 {
		if err := m.neg.SetDuty(0); err != nil {
			return err
		}
		return m.pos.SetDuty(uint32(duty))
	}
	if err := m.pos.SetDuty(0); err != nil {
		return err
	}
	return m.neg.SetDuty(uint32(-duty))
}

func (m *Motor) release() {
	m.pos.Release()
	m.neg.Release()
}

// MotorGroup drives several motors with one power value. Members are kept
// by name and resolved against the owning configuration's motor table.
type MotorGroup struct {
	members []string
	motors  map[string]*Motor
}

// SetPower broadcasts the same power to every member in declaration order.
// A failing member does not stop the remainder; the failures are reported
// together afterwards.
func (g *MotorGroup) SetPower(power float64) error {
	var failed []string
	var first error
	for _, name := range g.members {
		if err := g.motors[name].SetPower(power); err != nil {
			failed = append(failed, name)
			if first == nil {
				first = err
			}
		}
	}
	if len(failed) > 0 {
		return &errcode.E{
			C:   errcode.PartialWrite,
			Msg: "failed members: " + strings.Join(failed, ", "),
			Err: first,
		}
	}
	return nil
}

// HCSR04 echo pulse constants: 10 µs trigger pulse, 50 ms round-trip
// budget, and half the speed of sound in cm/µs.
const (
	hcsr04TriggerPulse = 10 * time.Microsecond
	hcsr04EchoTimeout  = 50 * time.Millisecond
	hcsr04CmPerUs      = 0.01715
)

// HCSR04 measures distance with an ultrasonic trigger/echo pin pair.
type HCSR04 struct {
	trigger platform.OutputPin
	echo    platform.InputPin
}

// Distance fires the trigger and times the echo pulse, returning the
// distance in cm. A missing echo within the round-trip budget reports a
// timeout instead of a bogus zero reading.
func (h *HCSR04) Distance() (float64, error) {
	h.trigger.Set(true)
	busyWait(hcsr04TriggerPulse)
	h.trigger.Set(false)

	us, ok := measurePulse(h.echo, true, hcsr04EchoTimeout)
	if !ok {
		return 0, &errcode.E{C: errcode.Timeout, Msg: "no echo pulse"}
	}
	return float64(us) * hcsr04CmPerUs, nil
}

// measurePulse waits for the pin to reach level and returns how long it
// holds it, in µs. The deadline covers both phases.
func measurePulse(pin platform.InputPin, level bool, timeout time.Duration) (us int64, ok bool) {
	start := time.Now()
	for pin.Get() != level {
		if time.Since(start) > timeout {
			return 0, false
		}
	}
	pulseStart := time.Now()
	for pin.Get() == level {
		if time.Since(start) > timeout {
			return 0, false
		}
	}
	return time.Since(pulseStart).Microseconds(), true
}

// busyWait spins for sub-millisecond delays where the scheduler's sleep
// granularity is too coarse.
func busyWait(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}
