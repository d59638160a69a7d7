//go:build linux && cgo

package shm

/*
#include <stdint.h>

// x86-64 store fence: all prior stores are globally visible before any
// subsequent store. The teacher needed this for io_uring SQE visibility
// before updating the submission-queue tail; a cross-process SHM region
// needs exactly the same guarantee before releasing the paired semaphore,
// otherwise a waiting reader can observe the post before it observes the
// slot it just unblocked on.
static inline void sfence_impl(void) {
    __asm__ __volatile__("sfence" ::: "memory");
}

// Full memory fence: all prior memory operations are complete before any
// subsequent ones. Used after acquiring the region lock, before reading
// header fields another process may have just mutated.
static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

// Sfence issues a store fence (x86 SFENCE instruction).
func Sfence() {
	C.sfence_impl()
}

// Mfence issues a full memory fence (x86 MFENCE instruction).
func Mfence() {
	C.mfence_impl()
}
