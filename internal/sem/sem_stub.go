//go:build !(linux && cgo)

package sem

import "time"

// This build has no POSIX named-semaphore binding available (cgo is
// disabled, or the target isn't Linux). Every entry point fails with
// errNotSupported rather than silently no-opping.

func semOpenOrCreate(name string, initial uint32) (handle, bool, error) {
	return nil, false, errNotSupported
}

func semAcquire(h handle, timeout time.Duration) error {
	return errNotSupported
}

func semRelease(h handle, n uint32) error {
	return errNotSupported
}

func semClose(h handle) error {
	return errNotSupported
}

func semUnlink(name string) error {
	return errNotSupported
}
