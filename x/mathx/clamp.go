package mathx

import "golang.org/x/exp/constraints"

// Clamp returns v limited to the range [lo, hi].
// Callers are expected to pass lo <= hi.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
