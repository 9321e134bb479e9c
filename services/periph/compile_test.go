package periph

import (
	"errors"
	"strings"
	"testing"

	"blockboard-go/errcode"
	"blockboard-go/internal/platform"
)

func compileHost(t *testing.T, doc string) (*CompiledConfig, *platform.HostBoard, *BusManager) {
	t.Helper()
	board := platform.NewHostBoard()
	busman := NewBusManager()
	comp, err := Compile([]byte(doc), board, busman)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return comp, board, busman
}

func compileErr(t *testing.T, doc string) error {
	t.Helper()
	board := platform.NewHostBoard()
	_, err := Compile([]byte(doc), board, NewBusManager())
	if err == nil {
		t.Fatalf("expected compile error for %s", doc)
	}
	return err
}

func TestCompile_EmptyDocument(t *testing.T) {
	comp, _, _ := compileHost(t, `{}`)
	if comp.Names() != 0 {
		t.Fatalf("expected empty registry, got %d entries", comp.Names())
	}
	if string(comp.Source()) != `{}` {
		t.Fatalf("source = %q", comp.Source())
	}
}

func TestCompile_RejectsUnknownFields(t *testing.T) {
	err := compileErr(t, `{"digital_inz":[]}`)
	if !errors.Is(err, errcode.ParseError) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestCompile_RejectsTrailingData(t *testing.T) {
	err := compileErr(t, `{} {}`)
	if !errors.Is(err, errcode.ParseError) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestCompile_PinConflictNamesPin(t *testing.T) {
	err := compileErr(t, `{
		"digital_ins":  [{"name":"a","gpio":5,"negated":false}],
		"digital_outs": [{"name":"b","gpio":5,"negated":false}]
	}`)
	if !errors.Is(err, errcode.PinInUse) {
		t.Fatalf("expected PinInUse, got %v", err)
	}
	if !strings.Contains(err.Error(), "5") {
		t.Fatalf("error does not name the pin: %v", err)
	}
}

func TestCompile_DuplicateNameBeforePinConflict(t *testing.T) {
	// The second entry collides on both name and pin; the name check runs
	// first and wins.
	err := compileErr(t, `{
		"digital_ins": [
			{"name":"a","gpio":5,"negated":false},
			{"name":"a","gpio":5,"negated":false}
		]
	}`)
	if !errors.Is(err, errcode.DuplicateName) {
		t.Fatalf("expected DuplicateName, got %v", err)
	}
}

func TestCompile_DuplicateNameAcrossSections(t *testing.T) {
	err := compileErr(t, `{
		"digital_ins": [{"name":"x","gpio":5,"negated":false}],
		"motors":      [{"name":"x","gpio_pos":6,"gpio_neg":7}]
	}`)
	if !errors.Is(err, errcode.DuplicateName) {
		t.Fatalf("expected DuplicateName, got %v", err)
	}
}

func TestCompile_UnknownGroupMember(t *testing.T) {
	err := compileErr(t, `{
		"motors":       [{"name":"m1","gpio_pos":6,"gpio_neg":7}],
		"motor_groups": [{"name":"g","motors":["m1","ghost"]}]
	}`)
	if !errors.Is(err, errcode.UnknownMember) {
		t.Fatalf("expected UnknownMember, got %v", err)
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("error does not name the member: %v", err)
	}
}

func TestCompile_I2CRequiredForBusPeripherals(t *testing.T) {
	err := compileErr(t, `{"max30205s":[{"name":"t","i2c_addr":72}]}`)
	if !errors.Is(err, errcode.I2CNotConfigured) {
		t.Fatalf("expected I2CNotConfigured, got %v", err)
	}
}

func TestCompile_AddressConflict(t *testing.T) {
	err := compileErr(t, `{
		"i2c": {"gpio_sda":21,"gpio_scl":22},
		"max30205s": [
			{"name":"t1","i2c_addr":72},
			{"name":"t2","i2c_addr":72}
		]
	}`)
	if !errors.Is(err, errcode.AddrInUse) {
		t.Fatalf("expected AddrInUse, got %v", err)
	}
}

func TestCompile_I2CPinsFixedPerBoot(t *testing.T) {
	board := platform.NewHostBoard()
	busman := NewBusManager()

	if _, err := Compile([]byte(`{"i2c":{"gpio_sda":21,"gpio_scl":22}}`), board, busman); err != nil {
		t.Fatalf("first compile: %v", err)
	}
	// Same pins again is fine.
	if _, err := Compile([]byte(`{"i2c":{"gpio_sda":21,"gpio_scl":22}}`), board, busman); err != nil {
		t.Fatalf("same pins: %v", err)
	}
	// Different pins are rejected.
	_, err := Compile([]byte(`{"i2c":{"gpio_sda":25,"gpio_scl":26}}`), board, busman)
	if !errors.Is(err, errcode.I2CPinsChanged) {
		t.Fatalf("expected I2CPinsChanged, got %v", err)
	}
}

func TestCompile_PWMChannelExhaustion(t *testing.T) {
	// Four motors claim all eight channels; the fifth cannot be built.
	err := compileErr(t, `{
		"motors": [
			{"name":"m1","gpio_pos":1,"gpio_neg":2},
			{"name":"m2","gpio_pos":3,"gpio_neg":4},
			{"name":"m3","gpio_pos":5,"gpio_neg":6},
			{"name":"m4","gpio_pos":7,"gpio_neg":8},
			{"name":"m5","gpio_pos":9,"gpio_neg":10}
		]
	}`)
	if !errors.Is(err, errcode.Hardware) {
		t.Fatalf("expected Hardware, got %v", err)
	}
}

func TestCompile_FailedCompileReleasesChannels(t *testing.T) {
	board := platform.NewHostBoard()
	busman := NewBusManager()

	// Fails after claiming PWM channels for m1..m4.
	doc := `{
		"motors": [
			{"name":"m1","gpio_pos":1,"gpio_neg":2},
			{"name":"m2","gpio_pos":3,"gpio_neg":4},
			{"name":"m3","gpio_pos":5,"gpio_neg":6},
			{"name":"m4","gpio_pos":7,"gpio_neg":8}
		],
		"motor_groups": [{"name":"g","motors":["nope"]}]
	}`
	if _, err := Compile([]byte(doc), board, busman); err == nil {
		t.Fatalf("expected compile error")
	}

	// All channels must be free again.
	good := `{
		"motors": [
			{"name":"m1","gpio_pos":1,"gpio_neg":2},
			{"name":"m2","gpio_pos":3,"gpio_neg":4},
			{"name":"m3","gpio_pos":5,"gpio_neg":6},
			{"name":"m4","gpio_pos":7,"gpio_neg":8}
		]
	}`
	if _, err := Compile([]byte(good), board, busman); err != nil {
		t.Fatalf("channels leaked by failed compile: %v", err)
	}
}

func TestCompile_Idempotent(t *testing.T) {
	board := platform.NewHostBoard()
	busman := NewBusManager()
	doc := `{
		"i2c": {"gpio_sda":21,"gpio_scl":22},
		"digital_ins": [{"name":"a","gpio":5,"negated":true}],
		"motors": [{"name":"m","gpio_pos":6,"gpio_neg":7}],
		"max30205s": [{"name":"temp","i2c_addr":72}]
	}`

	first, err := Compile([]byte(doc), board, busman)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := Compile(first.Source(), board, busman)
	if err != nil {
		t.Fatalf("recompile of own source: %v", err)
	}
	if second.Names() != first.Names() {
		t.Fatalf("registries differ: %d vs %d", second.Names(), first.Names())
	}

	// Recompiling the serialized source claims the identical pins and
	// bus addresses.
	if len(second.ledger.pins) != len(first.ledger.pins) {
		t.Fatalf("pin sets differ: %v vs %v", second.ledger.pins, first.ledger.pins)
	}
	for pin := range first.ledger.pins {
		if _, ok := second.ledger.pins[pin]; !ok {
			t.Fatalf("pin %d not claimed by recompile", pin)
		}
	}
	if len(second.ledger.addrs) != len(first.ledger.addrs) {
		t.Fatalf("address sets differ: %v vs %v", second.ledger.addrs, first.ledger.addrs)
	}
	for addr := range first.ledger.addrs {
		if _, ok := second.ledger.addrs[addr]; !ok {
			t.Fatalf("address %#02x not claimed by recompile", addr)
		}
	}
}
