// services/periph/service.go

// Package periph compiles peripheral configuration documents into a live
// registry of named drivers and dispatches operations against it over the
// message bus.
//
// Topics:
//
//	config/peripherals        (sub)  replace the configuration document
//	periph/invoke/<name>/<op> (sub)  run one operation, replies on ReplyTo
//	periph/state              (pub, retained) subsystem state
package periph

import (
	"context"
	"fmt"
	"sync"

	"blockboard-go/bus"
	"blockboard-go/errcode"
	"blockboard-go/internal/platform"
	"blockboard-go/storage"
	"blockboard-go/types"
	"blockboard-go/x/timex"
)

// defaultDocument is what an unconfigured board runs: no peripherals.
const defaultDocument = "{}"

// Service owns the configuration lifecycle: persisted blob in, compiled
// registry out, operations dispatched against the active snapshot.
type Service struct {
	conn   *bus.Connection
	store  storage.Store
	board  platform.Board
	busman *BusManager
	reg    *Registry

	// reloadMu keeps store.Set and reg.Swap of one document together when
	// reloads arrive concurrently (bus handler and HTTP handler goroutines).
	reloadMu sync.Mutex
}

func NewService(conn *bus.Connection, store storage.Store, board platform.Board) *Service {
	return &Service{
		conn:   conn,
		store:  store,
		board:  board,
		busman: NewBusManager(),
		reg:    NewRegistry(),
	}
}

// Boot compiles the persisted document, or the empty default when none is
// stored. A document that no longer compiles leaves the board running with
// no peripherals rather than wedging startup.
func (s *Service) Boot() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	raw, ok := s.store.Get(storage.Peripherals)
	if !ok {
		raw = []byte(defaultDocument)
	}
	comp, err := Compile(raw, s.board, s.busman)
	if err != nil {
		s.publishState(types.LevelError, "boot", err)
		empty, eerr := Compile([]byte(defaultDocument), s.board, s.busman)
		if eerr != nil {
			return eerr
		}
		s.reg.Swap(empty)
		return err
	}
	s.reg.Swap(comp)
	s.publishState(types.LevelReady, statusFor(comp), nil)
	return nil
}

// Reload compiles a new document and, only on success, persists it and
// publishes the new registry. A rejected document leaves both the stored
// blob and the active registry untouched.
func (s *Service) Reload(raw []byte) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	comp, err := Compile(raw, s.board, s.busman)
	if err != nil {
		s.publishState(types.LevelError, "reload", err)
		return err
	}
	if err := s.store.Set(storage.Peripherals, raw); err != nil {
		comp.Close()
		s.publishState(types.LevelError, "persist", err)
		return errcode.Wrap("periph.Reload", err)
	}
	s.reg.Swap(comp)
	s.publishState(types.LevelReady, statusFor(comp), nil)
	return nil
}

// Current returns the stored document bytes, falling back to the active
// source and then the empty default. The store wins over the registry so
// a document that stopped compiling (hardware changed between boots) can
// still be fetched and fixed from the configuration page.
func (s *Service) Current() []byte {
	if raw, ok := s.store.Get(storage.Peripherals); ok {
		return raw
	}
	if comp := s.reg.Active(); comp != nil {
		return comp.Source()
	}
	return []byte(defaultDocument)
}

// Invoke runs one operation against the active registry.
func (s *Service) Invoke(name, op string, args []any) (any, error) {
	comp := s.reg.Active()
	if comp == nil {
		return nil, &errcode.E{C: errcode.UnknownPeripheral, Op: name, Msg: "no active configuration"}
	}
	return comp.Invoke(name, op, args)
}

// Run services bus traffic until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.T("config", "peripherals"))
	invSub := s.conn.Subscribe(bus.T("periph", "invoke", bus.TokAny, bus.TokAny))
	defer s.conn.Disconnect()

	for {
		select {
		case <-ctx.Done():
			s.publishState(types.LevelStopped, "shutdown", nil)
			return

		case m, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			s.handleConfig(m)

		case m, ok := <-invSub.Channel():
			if !ok {
				return
			}
			s.handleInvoke(m)
		}
	}
}

func (s *Service) handleConfig(m *bus.Message) {
	raw, ok := docBytes(m.Payload)
	if !ok {
		s.conn.Reply(m, types.ErrorReply{Error: "expected a document payload"}, false)
		return
	}
	if err := s.Reload(raw); err != nil {
		s.conn.Reply(m, types.ErrorReply{Error: err.Error()}, false)
		return
	}
	s.conn.Reply(m, types.InvokeReply{OK: true}, false)
}

func (s *Service) handleInvoke(m *bus.Message) {
	// periph/invoke/<name>/<op>
	if len(m.Topic) != 4 {
		return
	}
	name, op := string(m.Topic[2]), string(m.Topic[3])

	var args []any
	switch p := m.Payload.(type) {
	case nil:
	case types.InvokeRequest:
		args = p.Args
	case *types.InvokeRequest:
		args = p.Args
	case []any:
		args = p
	default:
		s.conn.Reply(m, types.ErrorReply{Error: "bad invoke payload"}, false)
		return
	}

	v, err := s.Invoke(name, op, args)
	if err != nil {
		s.conn.Reply(m, types.InvokeReply{Error: err.Error()}, false)
		return
	}
	s.conn.Reply(m, types.InvokeReply{OK: true, Value: v}, false)
}

func (s *Service) publishState(level, status string, err error) {
	st := types.PeriphState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(bus.T("periph", "state"), st, true))
}

func statusFor(comp *CompiledConfig) string {
	return fmt.Sprintf("%d peripherals", comp.Names())
}

func docBytes(payload any) ([]byte, bool) {
	switch p := payload.(type) {
	case []byte:
		return p, true
	case string:
		return []byte(p), true
	}
	return nil, false
}
