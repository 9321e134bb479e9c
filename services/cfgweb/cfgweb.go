// services/cfgweb/cfgweb.go

// Package cfgweb exposes the peripheral configuration document for reading
// and replacement. The transport (HTTP on the host, whatever the firmware
// image wires up) stays thin; the logic lives against the periph service.
package cfgweb

import (
	"unicode/utf8"

	"blockboard-go/errcode"
	"blockboard-go/services/periph"
)

// applyOK is the body returned for an accepted document.
const applyOK = "successfully updated peripherals config"

// Handler mediates between a transport and the peripheral service.
type Handler struct {
	svc *periph.Service
}

func NewHandler(svc *periph.Service) *Handler {
	return &Handler{svc: svc}
}

// Current returns the active document. An unconfigured board reports the
// empty document, never an error.
func (h *Handler) Current() []byte {
	return h.svc.Current()
}

// Apply validates and activates a replacement document. The returned string
// is the transport's success body.
func (h *Handler) Apply(body []byte) (string, error) {
	if !utf8.Valid(body) {
		return "", &errcode.E{C: errcode.ParseError, Op: "cfgweb.Apply", Msg: "body is not valid utf-8"}
	}
	if err := h.svc.Reload(body); err != nil {
		return "", err
	}
	return applyOK, nil
}
