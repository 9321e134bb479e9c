// services/periph/ledger.go
package periph

import (
	"fmt"

	"blockboard-go/errcode"
)

// ledger tracks the pins and bus addresses claimed during one compile.
// A fresh ledger is built per compile; nothing carries over from the
// previously active configuration.
type ledger struct {
	pins  map[int]string    // pin number -> claimant entry
	addrs map[uint8]string  // i2c address -> claimant entry
	names map[string]string // peripheral name -> section
}

func newLedger() *ledger {
	return &ledger{
		pins:  make(map[int]string),
		addrs: make(map[uint8]string),
		names: make(map[string]string),
	}
}

// claimName reserves a peripheral name across all sections.
func (l *ledger) claimName(section, name string) error {
	if prev, ok := l.names[name]; ok {
		return &errcode.E{
			C:   errcode.DuplicateName,
			Op:  section + " " + name,
			Msg: fmt.Sprintf("name already taken by %s entry", prev),
		}
	}
	l.names[name] = section
	return nil
}

// claimPin reserves a GPIO for one entry. The claimant string names the
// entry and role, e.g. "motors m1 gpio_pos".
func (l *ledger) claimPin(pin int, claimant string) error {
	if prev, ok := l.pins[pin]; ok {
		return &errcode.E{
			C:   errcode.PinInUse,
			Op:  claimant,
			Msg: fmt.Sprintf("gpio %d already taken by %s", pin, prev),
		}
	}
	l.pins[pin] = claimant
	return nil
}

// claimAddr reserves an I²C address for one entry.
func (l *ledger) claimAddr(addr uint8, claimant string) error {
	if prev, ok := l.addrs[addr]; ok {
		return &errcode.E{
			C:   errcode.AddrInUse,
			Op:  claimant,
			Msg: fmt.Sprintf("i2c address %#02x already taken by %s", addr, prev),
		}
	}
	l.addrs[addr] = claimant
	return nil
}
