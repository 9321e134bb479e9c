package types

// ---- Peripheral subsystem state (retained on "periph/state") ----

type PeriphState struct {
	Level  string `json:"level"`  // "idle", "ready", "error", "stopped"
	Status string `json:"status"` // freeform short code
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

const (
	LevelIdle    = "idle"
	LevelReady   = "ready"
	LevelError   = "error"
	LevelStopped = "stopped"
)

// ---- Dispatcher request/reply payloads (bus control surface) ----

// InvokeRequest is the payload on "periph/invoke/<name>/<operation>".
type InvokeRequest struct {
	Args []any `json:"args"`
}

// InvokeReply mirrors the dispatcher's result.
type InvokeReply struct {
	OK    bool   `json:"ok"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// ErrorReply is the generic negative acknowledgement.
type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
