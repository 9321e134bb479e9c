// services/periph/registry.go
package periph

import "sync/atomic"

// Registry publishes the active CompiledConfig. Readers load a consistent
// snapshot and keep using it even while a newer configuration is being
// compiled; swaps are atomic and never expose a half-built registry.
type Registry struct {
	active atomic.Pointer[CompiledConfig]
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Active returns the current configuration, or nil before the first swap.
func (r *Registry) Active() *CompiledConfig {
	return r.active.Load()
}

// Swap publishes next and releases the claims of the configuration it
// replaces. In-flight operations holding the old snapshot finish against it.
func (r *Registry) Swap(next *CompiledConfig) {
	old := r.active.Swap(next)
	if old != nil {
		old.Close()
	}
}
