package daemon

import (
	"syscall"
	"testing"
	"time"
)

func TestShutdownHandler_SIGHUPDrains(t *testing.T) {
	h := NewShutdownHandler()
	h.Start()
	defer h.Stop()

	h.sigChan <- syscall.SIGHUP

	select {
	case <-h.Drain():
		// Expected
	case <-time.After(time.Second):
		t.Fatal("drain channel should close on SIGHUP")
	}

	select {
	case <-h.Kill():
		t.Error("kill channel should stay open after a single SIGHUP")
	default:
		// Expected
	}
}

func TestShutdownHandler_SecondSIGHUPKills(t *testing.T) {
	h := NewShutdownHandler()
	h.Start()
	defer h.Stop()

	h.sigChan <- syscall.SIGHUP
	<-h.Drain()
	h.sigChan <- syscall.SIGHUP

	select {
	case <-h.Kill():
		// Expected
	case <-time.After(time.Second):
		t.Fatal("kill channel should close on the second SIGHUP")
	}
}

func TestShutdownHandler_SIGTERMKills(t *testing.T) {
	h := NewShutdownHandler()
	h.Start()
	defer h.Stop()

	h.sigChan <- syscall.SIGTERM

	select {
	case <-h.Kill():
		// Expected
	case <-time.After(time.Second):
		t.Fatal("kill channel should close on SIGTERM")
	}

	select {
	case <-h.Drain():
		t.Error("drain channel should stay open on SIGTERM")
	default:
		// Expected
	}
}

func TestShutdownHandler_SIGINTKills(t *testing.T) {
	h := NewShutdownHandler()
	h.Start()
	defer h.Stop()

	h.sigChan <- syscall.SIGINT

	select {
	case <-h.Kill():
		// Expected
	case <-time.After(time.Second):
		t.Fatal("kill channel should close on SIGINT")
	}
}

func TestShutdownHandler_Stop(t *testing.T) {
	h := NewShutdownHandler()
	h.Start()

	done := make(chan struct{})
	go func() {
		h.Stop()
		close(done)
	}()

	select {
	case <-done:
		// Expected
	case <-time.After(time.Second):
		t.Error("Stop() should complete quickly")
	}
}
