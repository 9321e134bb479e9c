// services/periph/i2c.go
package periph

import (
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"blockboard-go/errcode"
	"blockboard-go/internal/platform"
)

// i2cCallTimeout bounds a single bus transaction through the owner.
const i2cCallTimeout = 250 * time.Millisecond

// BusManager owns the single I²C bus. The bus is wired at most once per
// boot: the first document that carries an i2c section fixes the pin pair,
// and later documents must either omit the section or repeat the same pins.
// The manager outlives individual compiles.
type BusManager struct {
	mu       sync.Mutex
	wired    bool
	sda, scl int
	owner    *busOwner
}

func NewBusManager() *BusManager {
	return &BusManager{}
}

// Configure wires the bus on first use and validates the pins afterwards.
func (m *BusManager) Configure(board platform.Board, sda, scl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wired {
		if sda != m.sda || scl != m.scl {
			return &errcode.E{
				C:   errcode.I2CPinsChanged,
				Op:  "i2c",
				Msg: fmt.Sprintf("bus already wired on sda=%d scl=%d", m.sda, m.scl),
			}
		}
		return nil
	}
	hw, err := board.I2C(sda, scl)
	if err != nil {
		return errcode.Wrap("i2c", err)
	}
	m.owner = newBusOwner(hw)
	m.sda, m.scl = sda, scl
	m.wired = true
	return nil
}

// Pins returns the wired pin pair, valid only when ok is true.
func (m *BusManager) Pins() (sda, scl int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sda, m.scl, m.wired
}

// Bus returns a serialized handle on the wired bus. ok is false until a
// document has carried an i2c section.
func (m *BusManager) Bus() (drivers.I2C, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.wired {
		return nil, false
	}
	return &ownedI2C{o: m.owner, timeout: i2cCallTimeout}, true
}

type busReq struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1); worker replies best-effort
}

// busOwner hosts the single worker goroutine that touches the hardware,
// so driver transactions never interleave.
type busOwner struct {
	hw   platform.I2CTransactor
	reqs chan busReq
}

func newBusOwner(hw platform.I2CTransactor) *busOwner {
	o := &busOwner{
		hw:   hw,
		reqs: make(chan busReq, 16),
	}
	go o.loop()
	return o
}

func (o *busOwner) loop() {
	for req := range o.reqs {
		err := o.hw.Tx(req.addr, req.w, req.r)
		// best-effort reply; do not block the worker
		select {
		case req.done <- err:
		default:
		}
	}
}

// ownedI2C adapts the owner to tinygo.org/x/drivers.I2C with a per-call
// deadline.
type ownedI2C struct {
	o       *busOwner
	timeout time.Duration
}

var _ drivers.I2C = (*ownedI2C)(nil)

func (d *ownedI2C) Tx(addr uint16, w, r []byte) error {
	req := busReq{addr: addr, w: w, r: r, done: make(chan error, 1)}

	t := time.NewTimer(d.timeout)
	select {
	case d.o.reqs <- req:
		if !t.Stop() {
			<-t.C
		}
	case <-t.C:
		return errcode.Busy
	}

	t = time.NewTimer(d.timeout)
	defer t.Stop()
	select {
	case err := <-req.done:
		return err
	case <-t.C:
		return errcode.Busy
	}
}
