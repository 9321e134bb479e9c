// services/periph/dispatch.go
package periph

import (
	"errors"
	"fmt"

	"blockboard-go/drivers/is31fl3741"
	"blockboard-go/errcode"
)

// Invoke runs one named operation against this configuration's registry.
// The result is the operation's value, or nil for pure commands. Errors are
// tagged with the peripheral name so callers can surface them verbatim.
func (c *CompiledConfig) Invoke(name, op string, args []any) (any, error) {
	e, ok := c.entries[name]
	if !ok {
		return nil, &errcode.E{C: errcode.UnknownPeripheral, Op: name}
	}

	v, err := c.invoke(e, op, args)
	if err != nil {
		if x, ok := err.(*errcode.E); ok && x.Op == "" {
			x.Op = name
			return nil, x
		}
		return nil, errcode.Wrap(name, err)
	}
	return v, nil
}

func (c *CompiledConfig) invoke(e *entry, op string, args []any) (any, error) {
	switch e.kind {
	case KindDigitalIn:
		switch op {
		case "get":
			if err := wantArgs(op, args, 0); err != nil {
				return nil, err
			}
			return e.in.Get(), nil
		}

	case KindDigitalOut:
		switch op {
		case "set":
			if err := wantArgs(op, args, 1); err != nil {
				return nil, err
			}
			v, err := asBool(op, args[0], 0)
			if err != nil {
				return nil, err
			}
			e.out.Set(v)
			return nil, nil
		case "get":
			if err := wantArgs(op, args, 0); err != nil {
				return nil, err
			}
			return e.out.Get(), nil
		}

	case KindMotor:
		switch op {
		case "setPower":
			if err := wantArgs(op, args, 1); err != nil {
				return nil, err
			}
			p, err := asNumber(op, args[0], 0)
			if err != nil {
				return nil, err
			}
			return nil, e.motor.SetPower(p)
		}

	case KindMotorGroup:
		switch op {
		case "setPower":
			if err := wantArgs(op, args, 1); err != nil {
				return nil, err
			}
			p, err := asNumber(op, args[0], 0)
			if err != nil {
				return nil, err
			}
			return nil, e.group.SetPower(p)
		}

	case KindHCSR04:
		switch op {
		case "getDistance":
			if err := wantArgs(op, args, 0); err != nil {
				return nil, err
			}
			return e.ranger.Distance()
		}

	case KindMAX30205:
		switch op {
		case "getTemperature":
			if err := wantArgs(op, args, 0); err != nil {
				return nil, err
			}
			return e.temp.ReadTemperature()
		}

	case KindIS31FL3741:
		switch op {
		case "setPixel":
			if err := wantArgs(op, args, 5); err != nil {
				return nil, err
			}
			var b [5]uint8
			for i := range b {
				v, err := asByte(op, args[i], i)
				if err != nil {
					return nil, err
				}
				b[i] = v
			}
			x, y := int(b[0]), int(b[1])
			if err := e.matrix.SetPixel(x, y, b[2], b[3], b[4]); err != nil {
				return nil, &errcode.E{
					C:   errcode.InvalidArgs,
					Msg: fmt.Sprintf("pixel position (%d, %d) is out of bounds", x, y),
					Err: err,
				}
			}
			return nil, nil
		case "setFrame":
			if err := wantArgs(op, args, 1); err != nil {
				return nil, err
			}
			frame, err := asFrame(op, args[0])
			if err != nil {
				return nil, err
			}
			if err := e.matrix.SetFrame(frame); err != nil {
				if errors.Is(err, is31fl3741.ErrFrameSize) {
					return nil, &errcode.E{
						C:   errcode.InvalidArgs,
						Msg: fmt.Sprintf("frame must be %d bytes, but got %d", is31fl3741.Width*is31fl3741.Height*3, len(frame)),
						Err: err,
					}
				}
				return nil, err
			}
			return nil, nil
		}

	case KindBMP388:
		switch op {
		case "getPressure":
			if err := wantArgs(op, args, 0); err != nil {
				return nil, err
			}
			return e.baro.ReadPressure()
		case "getTemperature":
			if err := wantArgs(op, args, 0); err != nil {
				return nil, err
			}
			return e.baro.ReadTemperature()
		}

	case KindLIS3DH:
		switch op {
		case "getAcceleration":
			if err := wantArgs(op, args, 0); err != nil {
				return nil, err
			}
			x, y, z, err := e.accel.ReadAcceleration()
			if err != nil {
				return nil, err
			}
			return []float64{x, y, z}, nil
		}

	case KindVEML7700:
		switch op {
		case "getLight":
			if err := wantArgs(op, args, 0); err != nil {
				return nil, err
			}
			return e.light.ReadLux()
		}
	}

	return nil, &errcode.E{
		C:   errcode.Unsupported,
		Msg: fmt.Sprintf("%s does not support %q", e.kind, op),
	}
}

func wantArgs(op string, args []any, n int) error {
	if len(args) != n {
		return &errcode.E{
			C:   errcode.InvalidArgs,
			Msg: fmt.Sprintf("%s expected %d args, but got %d", op, n, len(args)),
		}
	}
	return nil
}

func asBool(op string, v any, i int) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, &errcode.E{
		C:   errcode.InvalidArgs,
		Msg: fmt.Sprintf("%s expected a bool for arg %d, but got %T", op, i+1, v),
	}
}

func asNumber(op string, v any, i int) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, &errcode.E{
		C:   errcode.InvalidArgs,
		Msg: fmt.Sprintf("%s expected a number for arg %d, but got %T", op, i+1, v),
	}
}

// asFrame accepts raw bytes from in-process callers or a JSON array of
// integers from the bus.
func asFrame(op string, v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case []any:
		frame := make([]byte, len(x))
		for i, e := range x {
			b, err := asByte(op, e, 0)
			if err != nil {
				return nil, err
			}
			frame[i] = b
		}
		return frame, nil
	}
	return nil, &errcode.E{
		C:   errcode.InvalidArgs,
		Msg: fmt.Sprintf("%s expected a byte array for arg 1, but got %T", op, v),
	}
}

func asByte(op string, v any, i int) (uint8, error) {
	f, err := asNumber(op, v, i)
	if err != nil {
		return 0, err
	}
	b := uint8(f)
	if float64(b) != f {
		return 0, &errcode.E{
			C:   errcode.InvalidArgs,
			Msg: fmt.Sprintf("%s expected an integer in [0, 255] for arg %d, but got %v", op, i+1, f),
		}
	}
	return b, nil
}
