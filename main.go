package main

import (
	"context"

	"blockboard-go/bus"
	"blockboard-go/internal/platform"
	"blockboard-go/services/heartbeat"
	"blockboard-go/services/periph"
)

func main() {
	b := bus.NewBus(16)
	board := platform.DefaultBoard()
	store := newStore()

	svc := periph.NewService(b.NewConnection("periph"), store, board)
	if err := svc.Boot(); err != nil {
		// A broken stored document is reported on periph/state; the board
		// keeps running with an empty registry.
		println("Warn: boot:", err.Error())
	}

	ctx := context.Background()
	go svc.Run(ctx)

	var hb heartbeat.Service
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	serve(svc)
}
