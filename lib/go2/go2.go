// Package go2 contains numeric helpers used across the layout packages.
package go2

import "golang.org/x/exp/constraints"

// Clamp returns v limited to [lo, hi]. When lo > hi, lo wins.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

func Abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
