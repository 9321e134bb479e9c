//go:build !tinygo

package main

import (
	"net/http"

	"blockboard-go/services/cfgweb"
	"blockboard-go/services/periph"
	"blockboard-go/storage"
)

const listenAddr = ":8080"

func newStore() storage.Store { return storage.NewMemStore() }

// serve exposes the configuration endpoint over HTTP and blocks.
func serve(svc *periph.Service) {
	h := cfgweb.NewHandler(svc)
	println("Info: serving /peripherals on", listenAddr)
	if err := http.ListenAndServe(listenAddr, h.Mux()); err != nil {
		println("Error: http:", err.Error())
	}
}
