package periph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"blockboard-go/bus"
	"blockboard-go/errcode"
	"blockboard-go/internal/platform"
	"blockboard-go/storage"
	"blockboard-go/types"
)

func newTestService(t *testing.T) (*Service, *bus.Bus, *storage.MemStore, *platform.HostBoard) {
	t.Helper()
	b := bus.NewBus(16)
	store := storage.NewMemStore()
	board := platform.NewHostBoard()
	svc := NewService(b.NewConnection("periph"), store, board)
	return svc, b, store, board
}

// waitRunning probes the invoke topic until the service loop answers, so
// tests do not race its subscriptions.
func waitRunning(b *bus.Bus) {
	conn := b.NewConnection("probe")
	defer conn.Disconnect()
	sub := conn.Subscribe(bus.T("probe", "reply"))
	for i := 0; i < 100; i++ {
		conn.Publish(conn.NewRequest(
			bus.T("periph", "invoke", "__probe__", "get"), nil, bus.T("probe", "reply")))
		select {
		case <-sub.Channel():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func recvMsg(t *testing.T, ch <-chan *bus.Message) *bus.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
		return nil
	}
}

func TestService_BootDefaultsToEmpty(t *testing.T) {
	svc, b, _, _ := newTestService(t)
	if err := svc.Boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}
	if string(svc.Current()) != "{}" {
		t.Fatalf("current = %q (want {})", svc.Current())
	}

	// State is retained, so a late subscriber still sees it.
	conn := b.NewConnection("test")
	sub := conn.Subscribe(bus.T("periph", "state"))
	m := recvMsg(t, sub.Channel())
	st := m.Payload.(types.PeriphState)
	if st.Level != types.LevelReady {
		t.Fatalf("state level = %q (want ready)", st.Level)
	}
}

func TestService_BootCompilesStoredDocument(t *testing.T) {
	svc, _, store, _ := newTestService(t)
	doc := `{"digital_ins":[{"name":"btn","gpio":4,"negated":true}]}`
	store.Set(storage.Peripherals, []byte(doc))

	if err := svc.Boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}
	if v, err := svc.Invoke("btn", "get", nil); err != nil || v != true {
		t.Fatalf("btn get = %v, %v (want true)", v, err)
	}
}

func TestService_BootSurvivesBrokenDocument(t *testing.T) {
	svc, _, store, _ := newTestService(t)
	store.Set(storage.Peripherals, []byte(`{"nope":1}`))

	err := svc.Boot()
	if !errors.Is(err, errcode.ParseError) {
		t.Fatalf("expected ParseError from boot, got %v", err)
	}
	// The board still runs, with an empty registry.
	if _, err := svc.Invoke("anything", "get", nil); !errors.Is(err, errcode.UnknownPeripheral) {
		t.Fatalf("expected UnknownPeripheral, got %v", err)
	}
	// The broken document stays retrievable so it can be fixed from the
	// configuration page.
	if string(svc.Current()) != `{"nope":1}` {
		t.Fatalf("current = %q (want the stored document)", svc.Current())
	}
}

func TestService_ReloadPersistsOnlyOnSuccess(t *testing.T) {
	svc, _, store, _ := newTestService(t)
	if err := svc.Boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}

	good := `{"digital_outs":[{"name":"led","gpio":8,"negated":false}]}`
	if err := svc.Reload([]byte(good)); err != nil {
		t.Fatalf("reload: %v", err)
	}
	stored, _ := store.Get(storage.Peripherals)
	if string(stored) != good {
		t.Fatalf("stored = %q", stored)
	}

	bad := `{"digital_outs":[{"name":"led","gpio":8,"negated":false},{"name":"led","gpio":9,"negated":false}]}`
	if err := svc.Reload([]byte(bad)); !errors.Is(err, errcode.DuplicateName) {
		t.Fatalf("expected DuplicateName, got %v", err)
	}
	// The bad document is not persisted and the old registry stays active.
	stored, _ = store.Get(storage.Peripherals)
	if string(stored) != good {
		t.Fatalf("bad document was persisted: %q", stored)
	}
	if _, err := svc.Invoke("led", "set", []any{true}); err != nil {
		t.Fatalf("old registry gone: %v", err)
	}
}

func TestService_SwapReplacesRegistry(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if err := svc.Boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}

	if err := svc.Reload([]byte(`{"motors":[{"name":"m","gpio_pos":1,"gpio_neg":2}]}`)); err != nil {
		t.Fatalf("first reload: %v", err)
	}
	if err := svc.Reload([]byte(`{"motors":[{"name":"m2","gpio_pos":3,"gpio_neg":4}]}`)); err != nil {
		t.Fatalf("second reload: %v", err)
	}

	if _, err := svc.Invoke("m", "setPower", []any{float64(1)}); !errors.Is(err, errcode.UnknownPeripheral) {
		t.Fatalf("old name survived the swap: %v", err)
	}
	if _, err := svc.Invoke("m2", "setPower", []any{float64(1)}); err != nil {
		t.Fatalf("new name missing: %v", err)
	}
	// Replaced configurations release their channels: a full set of four
	// motors still fits after two swaps.
	full := `{"motors":[
		{"name":"a","gpio_pos":1,"gpio_neg":2},
		{"name":"b","gpio_pos":3,"gpio_neg":4},
		{"name":"c","gpio_pos":5,"gpio_neg":6},
		{"name":"d","gpio_pos":7,"gpio_neg":8}
	]}`
	if err := svc.Reload([]byte(full)); err != nil {
		t.Fatalf("channels leaked across swaps: %v", err)
	}
}

func TestService_ReloadDuringDistanceRead(t *testing.T) {
	svc, _, _, board := newTestService(t)
	if err := svc.Boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}
	if err := svc.Reload([]byte(`{"hcsr04s":[{"name":"sonar","gpio_trigger":12,"gpio_echo":13}]}`)); err != nil {
		t.Fatalf("reload: %v", err)
	}

	echo, _ := board.Pin(13)
	var once sync.Once
	var t0 time.Time
	const pulse = 20 * time.Millisecond
	echo.SetReadHook(func() bool {
		once.Do(func() { t0 = time.Now() })
		return time.Since(t0) < pulse
	})

	done := make(chan struct{})
	var v any
	var rdErr error
	go func() {
		defer close(done)
		v, rdErr = svc.Invoke("sonar", "getDistance", nil)
	}()

	// Swap the configuration out from under the in-flight read.
	time.Sleep(5 * time.Millisecond)
	if err := svc.Reload([]byte(`{"digital_outs":[{"name":"led","gpio":8,"negated":false}]}`)); err != nil {
		t.Fatalf("concurrent reload: %v", err)
	}

	<-done
	if rdErr != nil {
		t.Fatalf("getDistance: %v", rdErr)
	}
	// 20 ms of echo is ~343 cm; the read completes against the snapshot it
	// was dispatched to. Allow slack for scheduling.
	d := v.(float64)
	if d < 300 || d > 450 {
		t.Fatalf("distance = %v cm (want ~343)", d)
	}
	// Later calls see the swapped-in registry.
	if _, err := svc.Invoke("sonar", "getDistance", nil); !errors.Is(err, errcode.UnknownPeripheral) {
		t.Fatalf("old name survived the swap: %v", err)
	}
}

func TestService_ConcurrentReloadsStayConsistent(t *testing.T) {
	svc, _, store, _ := newTestService(t)
	if err := svc.Boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}

	docs := []string{
		`{"digital_outs":[{"name":"a","gpio":1,"negated":false}]}`,
		`{"digital_outs":[{"name":"b","gpio":2,"negated":false}]}`,
	}
	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		go func(doc string) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := svc.Reload([]byte(doc)); err != nil {
					t.Errorf("reload: %v", err)
					return
				}
			}
		}(doc)
	}
	wg.Wait()

	// Whatever won, the persisted blob and the active registry name the
	// same document.
	stored, _ := store.Get(storage.Peripherals)
	active := svc.reg.Active().Source()
	if string(stored) != string(active) {
		t.Fatalf("stored %q but active %q", stored, active)
	}
}

func TestService_InvokeOverBus(t *testing.T) {
	svc, b, _, board := newTestService(t)
	if err := svc.Boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}
	if err := svc.Reload([]byte(`{"digital_ins":[{"name":"btn","gpio":4,"negated":false}]}`)); err != nil {
		t.Fatalf("reload: %v", err)
	}
	pin, _ := board.Pin(4)
	pin.Set(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)
	waitRunning(b)

	conn := b.NewConnection("test")
	reply := conn.Subscribe(bus.T("test", "reply"))
	conn.Publish(conn.NewRequest(
		bus.T("periph", "invoke", "btn", "get"),
		types.InvokeRequest{},
		bus.T("test", "reply"),
	))

	m := recvMsg(t, reply.Channel())
	rep := m.Payload.(types.InvokeReply)
	if !rep.OK || rep.Value != true {
		t.Fatalf("reply = %+v (want ok, true)", rep)
	}

	// Unknown name comes back as an error reply, not silence.
	conn.Publish(conn.NewRequest(
		bus.T("periph", "invoke", "ghost", "get"),
		types.InvokeRequest{},
		bus.T("test", "reply"),
	))
	m = recvMsg(t, reply.Channel())
	rep = m.Payload.(types.InvokeReply)
	if rep.OK || rep.Error == "" {
		t.Fatalf("reply = %+v (want error)", rep)
	}
}

func TestService_ConfigOverBus(t *testing.T) {
	svc, b, store, _ := newTestService(t)
	if err := svc.Boot(); err != nil {
		t.Fatalf("boot: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)
	waitRunning(b)

	conn := b.NewConnection("test")
	reply := conn.Subscribe(bus.T("test", "reply"))
	doc := `{"digital_outs":[{"name":"led","gpio":8,"negated":false}]}`
	conn.Publish(conn.NewRequest(bus.T("config", "peripherals"), doc, bus.T("test", "reply")))

	m := recvMsg(t, reply.Channel())
	if rep, ok := m.Payload.(types.InvokeReply); !ok || !rep.OK {
		t.Fatalf("reply = %+v (want ok)", m.Payload)
	}
	stored, _ := store.Get(storage.Peripherals)
	if string(stored) != doc {
		t.Fatalf("stored = %q", stored)
	}
}
