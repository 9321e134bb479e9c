package errcode

// Code is a stable, caller-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Configuration compile stage.
	ParseError       Code = "parse_error"
	PinInUse         Code = "pin_in_use"
	AddrInUse        Code = "addr_in_use"
	DuplicateName    Code = "duplicate_name"
	UnknownMember    Code = "unknown_member"
	I2CNotConfigured Code = "i2c_not_configured"
	I2CPinsChanged   Code = "i2c_pins_changed"
	Hardware         Code = "hardware"

	// Dispatch stage.
	UnknownPeripheral Code = "unknown_peripheral"
	Unsupported       Code = "unsupported"
	InvalidArgs       Code = "invalid_args"
	Timeout           Code = "timeout"
	PartialWrite      Code = "partial_write"
	Busy              Code = "busy"

	Error Code = "error" // generic fallback
)

// E is an optional wrapper when we want to keep context and a cause.
// Op carries the document entry or peripheral name the error refers to,
// e.g. "motors m1 gpio_pos" or "left_wheel".
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is match an E against its bare Code.
func (e *E) Is(target error) bool {
	if c, ok := target.(Code); ok {
		return e.C == c
	}
	return false
}

// Wrap builds an E around a cause, preserving its Code when it has one.
func Wrap(op string, err error) *E {
	return &E{C: Of(err), Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		if inner := u.Unwrap(); inner != nil {
			if c := Of(inner); c != Error {
				return c
			}
		}
	}
	return Error
}
