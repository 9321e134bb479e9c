// services/cfgweb/http.go
//go:build !tinygo

package cfgweb

import (
	"io"
	"net/http"
)

// maxDocumentSize bounds a posted document; the stored blob lives in a
// small flash partition.
const maxDocumentSize = 16 << 10

// Mux returns an http.Handler serving the configuration endpoint:
//
//	GET  /peripherals  the active document (application/json)
//	POST /peripherals  replace the document, applied immediately
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/peripherals", h.servePeripherals)
	return mux
}

func (h *Handler) servePeripherals(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		w.Write(h.Current())

	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
		if err != nil {
			textError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		msg, err := h.Apply(body)
		if err != nil {
			textError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, msg)

	default:
		textError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func textError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	io.WriteString(w, msg)
}
