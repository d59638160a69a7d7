//go:build !(linux && cgo)

package shm

import "sync/atomic"

// Without cgo there's no inline-asm fence available; a no-op atomic
// operation is used as a portable (if weaker) compiler barrier so the
// surrounding code still has a single call site to reason about.
var fenceCounter atomic.Uint64

func Sfence() { fenceCounter.Add(1) }
func Mfence() { fenceCounter.Add(1) }
