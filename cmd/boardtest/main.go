// cmd/boardtest/main.go

// Host-side exercise of the peripheral stack: compile a sample document,
// drive the registry over the bus, swap in a replacement and read the
// results back. Runs entirely against the fake board.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"blockboard-go/bus"
	"blockboard-go/internal/platform"
	"blockboard-go/services/cfgweb"
	"blockboard-go/services/periph"
	"blockboard-go/storage"
	"blockboard-go/types"
)

const sampleDoc = `{
	"digital_ins":  [{"name":"button","gpio":4,"negated":true}],
	"digital_outs": [{"name":"led","gpio":8,"negated":false}],
	"motors": [
		{"name":"left","gpio_pos":1,"gpio_neg":2},
		{"name":"right","gpio_pos":5,"gpio_neg":6}
	],
	"motor_groups": [{"name":"wheels","motors":["left","right"]}]
}`

const swappedDoc = `{
	"digital_outs": [{"name":"beacon","gpio":8,"negated":false}]
}`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "boardtest:", err)
		os.Exit(1)
	}
}

func run() error {
	b := bus.NewBus(16)
	store, err := storage.NewFileStore(filepath.Join(os.TempDir(), "boardtest-nvs"))
	if err != nil {
		return err
	}
	board := platform.NewHostBoard()

	svc := periph.NewService(b.NewConnection("periph"), store, board)
	if err := svc.Boot(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)
	time.Sleep(50 * time.Millisecond) // let the service subscribe

	web := cfgweb.NewHandler(svc)
	if _, err := web.Apply([]byte(sampleDoc)); err != nil {
		return err
	}
	fmt.Println("applied sample document")

	conn := b.NewConnection("boardtest")
	defer conn.Disconnect()
	reply := conn.Subscribe(bus.T("boardtest", "reply"))

	invoke := func(name, op string, args ...any) any {
		conn.Publish(conn.NewRequest(
			bus.T("periph", "invoke", name, op),
			types.InvokeRequest{Args: args},
			bus.T("boardtest", "reply"),
		))
		select {
		case m := <-reply.Channel():
			rep := m.Payload.(types.InvokeReply)
			if !rep.OK {
				fmt.Printf("  %s.%s -> error: %s\n", name, op, rep.Error)
				return nil
			}
			fmt.Printf("  %s.%s -> %v\n", name, op, rep.Value)
			return rep.Value
		case <-time.After(2 * time.Second):
			fmt.Printf("  %s.%s -> timeout\n", name, op)
			return nil
		}
	}

	fmt.Println("driving peripherals:")
	if pin, ok := board.Pin(4); ok {
		pin.Set(false) // negated input reads true
	}
	invoke("button", "get")
	invoke("led", "set", true)
	invoke("led", "get")
	invoke("wheels", "setPower", float64(100))
	invoke("left", "setPower", float64(-50))
	invoke("ghost", "get") // expected to fail

	if _, err := web.Apply([]byte(swappedDoc)); err != nil {
		return err
	}
	fmt.Println("swapped in replacement document:")
	invoke("beacon", "set", true)
	invoke("led", "set", true) // gone after the swap

	fmt.Printf("active document: %s\n", web.Current())
	return nil
}
