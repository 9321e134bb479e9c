//go:build tinygo

package main

import (
	"blockboard-go/services/periph"
	"blockboard-go/storage"
)

// TODO: back the store with an NVS flash partition so documents survive a
// power cycle on the target.
func newStore() storage.Store { return storage.NewMemStore() }

// serve parks the main goroutine; bus traffic drives everything else.
func serve(_ *periph.Service) {
	select {}
}
