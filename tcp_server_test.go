package reactor

import (
	"net"
	"testing"
	"time"
)

func startTestServer(t *testing.T, threadNum int, opts ...Option) (*TcpServer, *EventLoop, func()) {
	t.Helper()
	baseLoop, err := NewEventLoop(WithEventLoopLogger(NopLogger()))
	if err != nil {
		t.Fatalf("NewEventLoop() error = %v", err)
	}
	allOpts := append([]Option{WithLogger(NopLogger())}, opts...)
	srv, err := NewTcpServer(baseLoop, "127.0.0.1:0", "test", allOpts...)
	if err != nil {
		t.Fatalf("NewTcpServer() error = %v", err)
	}
	srv.SetThreadNum(threadNum)

	done := make(chan struct{})
	go func() {
		baseLoop.Loop()
		close(done)
	}()
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// Start posts Listen via RunInLoop; give the base loop a moment to
	// process it before any test dials.
	time.Sleep(50 * time.Millisecond)

	return srv, baseLoop, func() {
		baseLoop.Quit()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("base loop failed to quit during cleanup")
		}
	}
}

func TestEchoServerRoundTrip(t *testing.T) {
	srv, _, cleanup := startTestServer(t, 1)
	defer cleanup()

	closedConn := make(chan struct{}, 1)
	srv.SetConnectionCallback(func(c *TcpConnection) {
		if !c.Connected() {
			closedConn <- struct{}{}
		}
	})
	srv.SetMessageCallback(func(c *TcpConnection, buf *Buffer, ts Timestamp) {
		c.Send(buf.RetrieveAllString())
	})

	conn, err := net.Dial("tcp", srv.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("echoed %q, want %q", buf[:n], "hello")
	}

	conn.Close()
	select {
	case <-closedConn:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed connection close")
	}
}

func TestRoundRobinDistributionAcrossWorkers(t *testing.T) {
	const workers = 4
	const clients = 8

	srv, _, cleanup := startTestServer(t, workers)
	defer cleanup()

	loopSeq := make(chan *EventLoop, clients)
	accepted := make(chan struct{}, clients)
	srv.SetConnectionCallback(func(c *TcpConnection) {
		if c.Connected() {
			loopSeq <- c.GetLoop()
			accepted <- struct{}{}
		}
	})

	var conns []net.Conn
	for i := 0; i < clients; i++ {
		c, err := net.Dial("tcp", srv.LocalAddr().String())
		if err != nil {
			t.Fatalf("Dial() #%d error = %v", i, err)
		}
		conns = append(conns, c)
		select {
		case <-accepted:
		case <-time.After(2 * time.Second):
			t.Fatalf("server never accepted connection #%d", i)
		}
	}
	for _, c := range conns {
		c.Close()
	}
	close(loopSeq)

	var loops []*EventLoop
	for l := range loopSeq {
		loops = append(loops, l)
	}
	if len(loops) != clients {
		t.Fatalf("observed %d accepts, want %d", len(loops), clients)
	}
	for i := workers; i < clients; i++ {
		if loops[i] != loops[i-workers] {
			t.Fatalf("loop at accept %d = %p, want same worker as accept %d (%p): round robin not repeating every %d accepts", i, loops[i], i-workers, loops[i-workers], workers)
		}
	}
	seen := make(map[*EventLoop]bool)
	for _, l := range loops[:workers] {
		if seen[l] {
			t.Fatalf("first %d accepts did not cover %d distinct workers: %v", workers, workers, loops[:workers])
		}
		seen[l] = true
	}
}

func TestHighWaterMarkAndWriteCompleteFireOnce(t *testing.T) {
	srv, _, cleanup := startTestServer(t, 1, WithHighWaterMark(1024))
	defer cleanup()

	var hwmCount, wcCount int
	hwmCh := make(chan int, 8)
	wcCh := make(chan struct{}, 8)
	srv.SetHighWaterMarkCallback(func(c *TcpConnection, size int) {
		hwmCh <- size
	})
	srv.SetWriteCompleteCallback(func(c *TcpConnection) {
		wcCh <- struct{}{}
	})
	srv.SetConnectionCallback(func(c *TcpConnection) {
		if c.Connected() {
			c.Send(string(make([]byte, 200_000)))
		}
	})

	conn, err := net.Dial("tcp", srv.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	drained := make(chan struct{})
	go func() {
		buf := make([]byte, 32*1024)
		total := 0
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		for total < 200_000 {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			total += n
		}
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(3 * time.Second):
		t.Fatal("peer never received the full 200000-byte payload")
	}

	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case size := <-hwmCh:
			hwmCount++
			if size < 1024 {
				t.Fatalf("HighWaterMarkCallback fired with currentSize=%d, want >= 1024", size)
			}
		case <-wcCh:
			wcCount++
		case <-timeout:
			break loop
		}
	}
	if hwmCount != 1 {
		t.Fatalf("HighWaterMarkCallback fired %d times, want exactly 1", hwmCount)
	}
	if wcCount != 1 {
		t.Fatalf("WriteCompleteCallback fired %d times, want exactly 1", wcCount)
	}
}
