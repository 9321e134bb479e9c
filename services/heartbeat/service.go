// services/heartbeat/service.go

// Package heartbeat publishes a retained liveness beacon so off-board
// tooling can tell a hung board from a silent one.
package heartbeat

import (
	"context"
	"time"

	"blockboard-go/bus"
	"blockboard-go/x/timex"
)

const defaultInterval = 5 * time.Second

// Beat is the retained payload on "sys/heartbeat".
type Beat struct {
	Seq      uint64 `json:"seq"`
	UptimeMs int64  `json:"uptime_ms"`
	TS       int64  `json:"ts_ms"`
}

type Service struct{}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(bus.T("config", "heartbeat"))
	defer conn.Unsubscribe(cfgSub)

	start := timex.NowMs()
	var seq uint64

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			seq++
			now := timex.NowMs()
			conn.Publish(conn.NewMessage(bus.T("sys", "heartbeat"), Beat{
				Seq:      seq,
				UptimeMs: now - start,
				TS:       now,
			}, true))
		case msg := <-cfgSub.Channel():
			// {"interval": seconds}
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"].(float64); ok && iv > 0 {
					tick.Reset(time.Duration(iv * float64(time.Second)))
				}
			}
		}
	}
}

// Start runs the heartbeat loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
