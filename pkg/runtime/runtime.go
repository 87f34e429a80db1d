// Package runtime exposes a few scheduler and clock primitives of the Go
// runtime that the queue packages use for spinning and backoff.
package runtime

import (
	_ "unsafe" // for go:linkname
)

// Procyield spins for the given number of cycles without yielding to the
// scheduler. On x86 each cycle is a PAUSE instruction.
//
//go:linkname Procyield runtime.procyield
func Procyield(cycles uint32)

// NanoTime returns the current monotonic clock reading in nanoseconds.
//
//go:linkname NanoTime runtime.nanotime
func NanoTime() int64

// Uint32n returns a cheap pseudo-random value in [0, n).
//
//go:linkname Uint32n runtime.fastrandn
func Uint32n(n uint32) uint32
