// internal/platform/board.go
package platform

// Pull is the input pull configuration.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// InputPin is a GPIO configured for reading.
type InputPin interface {
	Get() bool
	Number() int
}

// OutputPin is a GPIO configured for writing. Get returns the last driven
// level so callers can read back without extra bookkeeping.
type OutputPin interface {
	Set(level bool)
	Get() bool
	Number() int
}

// PWMChannel is a single PWM output. Duty is in hardware counts; callers
// scale against MaxDuty. Release frees the channel for a later claimant.
type PWMChannel interface {
	SetDuty(duty uint32) error
	MaxDuty() uint32
	Release()
}

// I2CTransactor is the raw bus transaction primitive, matching the tinygo
// drivers.I2C shape so chip drivers can be shared between host and target.
type I2CTransactor interface {
	Tx(addr uint16, w, r []byte) error
}

// Board hands out configured hardware resources by number. Implementations
// exist for the host (fakes) and for the target MCU; the compiler only ever
// talks to this interface.
type Board interface {
	Input(pin int, pull Pull) (InputPin, error)
	Output(pin int, initial bool) (OutputPin, error)
	PWM(pin int) (PWMChannel, error)
	I2C(sda, scl int) (I2CTransactor, error)
}
