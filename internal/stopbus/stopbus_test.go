//go:build linux && cgo

package stopbus

import (
	"testing"
	"time"
)

func TestSendStopSessionWakesListener(t *testing.T) {
	s, err := OpenSession("stoptest1")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	defer s.Close()

	fired := make(chan bool, 1)
	l := NewListener(s, ModeStop, func(exit bool) { fired <- exit })
	l.Start()
	defer l.Close()

	if err := SendStopSession("stoptest1"); err != nil {
		t.Fatalf("SendStopSession: %v", err)
	}

	select {
	case exit := <-fired:
		if exit {
			t.Error("ModeStop listener reported exit=true, want false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener never fired after SendStopSession")
	}
}

func TestSendStopRequestWakesGlobalListener(t *testing.T) {
	s, err := OpenGlobal()
	if err != nil {
		t.Fatalf("OpenGlobal: %v", err)
	}
	defer s.Close()

	fired := make(chan bool, 1)
	l := NewListener(s, ModeExit, func(exit bool) { fired <- exit })
	l.Start()
	defer l.Close()

	if err := SendStopRequest(); err != nil {
		t.Fatalf("SendStopRequest: %v", err)
	}

	select {
	case exit := <-fired:
		if !exit {
			t.Error("ModeExit listener reported exit=false, want true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener never fired after SendStopRequest")
	}
}

func TestListenerCloseWithoutFiring(t *testing.T) {
	s, err := OpenSession("stoptest2")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	defer s.Close()

	l := NewListener(s, ModeStop, func(exit bool) { t.Error("handler should not fire") })
	l.Start()
	l.Close() // must return promptly without a stop being sent
}
