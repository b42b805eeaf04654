package proxy

import (
	"net"
	"testing"
	"time"
)

// stubHandler records handled connections and optionally blocks them until
// released, standing in for long-lived forwarding.
type stubHandler struct {
	handled chan struct{}
	release chan struct{}
}

func newStubHandler(blocking bool) *stubHandler {
	s := &stubHandler{handled: make(chan struct{}, 16)}
	if blocking {
		s.release = make(chan struct{})
	}
	return s
}

func (s *stubHandler) Handle(conn net.Conn) {
	defer conn.Close()
	s.handled <- struct{}{}
	if s.release != nil {
		<-s.release
	}
}

func newTestServer(t *testing.T, h ConnHandler) (*Server, net.Listener, chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	srv := NewServer(ln, h, discardLogger())
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()
	return srv, ln, serveErr
}

func TestServer(t *testing.T) {
	t.Run("spawns a handler per connection", func(t *testing.T) {
		h := newStubHandler(false)
		srv, ln, _ := newTestServer(t, h)
		defer srv.Drain(time.Second)

		for i := 0; i < 3; i++ {
			conn, err := net.Dial("tcp", ln.Addr().String())
			if err != nil {
				t.Fatalf("dial %d: %v", i, err)
			}
			conn.Close()
		}

		for i := 0; i < 3; i++ {
			select {
			case <-h.handled:
			case <-time.After(5 * time.Second):
				t.Fatalf("handler %d never ran", i)
			}
		}
	})

	t.Run("drain closes the listener and returns Serve", func(t *testing.T) {
		srv, ln, serveErr := newTestServer(t, newStubHandler(false))

		srv.Drain(time.Second)

		select {
		case err := <-serveErr:
			if err != nil {
				t.Errorf("Serve() = %v, want nil after drain", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Serve did not return after drain")
		}

		if conn, err := net.Dial("tcp", ln.Addr().String()); err == nil {
			conn.Close()
			t.Error("listener still accepting after drain")
		}
	})

	t.Run("drain waits for in-flight connections", func(t *testing.T) {
		h := newStubHandler(true)
		srv, ln, _ := newTestServer(t, h)

		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		<-h.handled

		drained := make(chan struct{})
		go func() {
			srv.Drain(5 * time.Second)
			close(drained)
		}()

		select {
		case <-drained:
			t.Fatal("drain returned while a connection was live")
		case <-time.After(100 * time.Millisecond):
		}

		close(h.release)
		select {
		case <-drained:
		case <-time.After(5 * time.Second):
			t.Fatal("drain did not return after the connection finished")
		}
	})

	t.Run("drain window bounds the wait", func(t *testing.T) {
		h := newStubHandler(true)
		srv, ln, _ := newTestServer(t, h)
		defer close(h.release)

		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		<-h.handled

		start := time.Now()
		srv.Drain(150 * time.Millisecond)
		elapsed := time.Since(start)

		if elapsed < 150*time.Millisecond {
			t.Errorf("drain returned after %v, before the window", elapsed)
		}
		if elapsed > 3*time.Second {
			t.Errorf("drain took %v, window did not bound it", elapsed)
		}
	})
}
