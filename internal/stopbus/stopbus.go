// Package stopbus implements the cooperative cross-process stop protocol: a
// one-shot global semaphore and a per-session semaphore, each with a
// background listener that reacts according to the owning connector's stop
// mode.
package stopbus

import (
	"fmt"
	"time"

	"github.com/esimstech/openisl-go/internal/constants"
	"github.com/esimstech/openisl-go/internal/sem"
)

// Mode selects what a listener does when its semaphore is released.
type Mode int

const (
	// ModeExit terminates the process outright.
	ModeExit Mode = iota
	// ModeStop marks the connector terminated and lets ongoing
	// set/get calls fail fast and return.
	ModeStop
)

// Error wraps a lower-level sem failure with the operation that triggered
// it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("stopbus: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Handler is invoked by a Listener when its semaphore is released. exit
// reports whether the caller's Mode is ModeExit (terminate the process) or
// ModeStop (mark terminated and keep running).
type Handler func(exit bool)

// OpenGlobal opens (creating if needed) the single, host-wide stop
// semaphore.
func OpenGlobal() (*sem.Sem, error) {
	name, err := sem.DeriveName(constants.DefaultSemPrefix, constants.GlobalStopKey)
	if err != nil {
		return nil, &Error{Op: "open_global", Err: err}
	}
	s, err := sem.OpenOrCreate(name, 0)
	if err != nil {
		return nil, &Error{Op: "open_global", Err: err}
	}
	return s, nil
}

// OpenSession opens (creating if needed) the per-session stop semaphore.
func OpenSession(session string) (*sem.Sem, error) {
	key := fmt.Sprintf(constants.SessionStopKeyFormat, session)
	name, err := sem.DeriveName(constants.DefaultSemPrefix, key)
	if err != nil {
		return nil, &Error{Op: "open_session", Err: err}
	}
	s, err := sem.OpenOrCreate(name, 0)
	if err != nil {
		return nil, &Error{Op: "open_session", Err: err}
	}
	return s, nil
}

// SendStopRequest releases the global stop semaphore by 1, waking every
// listener attached to it.
func SendStopRequest() error {
	s, err := OpenGlobal()
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Release(1); err != nil {
		return &Error{Op: "send_stop_request", Err: err}
	}
	return nil
}

// SendStopSession releases the given session's stop semaphore by 1.
func SendStopSession(session string) error {
	s, err := OpenSession(session)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Release(1); err != nil {
		return &Error{Op: "send_stop_session", Err: err}
	}
	return nil
}

// Listener is a background task that blocks on one stop semaphore and
// invokes its Handler once when released.
type Listener struct {
	sem     *sem.Sem
	mode    Mode
	handler Handler
	stop    chan struct{}
	done    chan struct{}
}

// NewListener constructs a Listener bound to an already-opened semaphore
// (typically from OpenGlobal or OpenSession).
func NewListener(s *sem.Sem, mode Mode, handler Handler) *Listener {
	return &Listener{sem: s, mode: mode, handler: handler, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start launches the listener goroutine. It polls the semaphore with a
// short timeout so Close can interrupt it without a real acquire.
func (l *Listener) Start() {
	go l.run()
}

func (l *Listener) run() {
	defer close(l.done)
	const pollInterval = 100 * time.Millisecond
	for {
		select {
		case <-l.stop:
			return
		default:
		}
		err := l.sem.Acquire(pollInterval)
		if err == nil {
			l.handler(l.mode == ModeExit)
			return
		}
	}
}

// Close stops the listener goroutine (it will not fire if it hasn't
// already) and waits for it to exit.
func (l *Listener) Close() {
	close(l.stop)
	<-l.done
}
