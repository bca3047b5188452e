package reactor

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// TcpServer composes an Acceptor on a base loop with a pool of worker
// loops, handing each accepted connection to the next worker round-robin
// (spec.md §4.7).
type TcpServer struct {
	baseLoop *EventLoop
	name     string
	addr     string
	opts     *serverOptions

	acceptor   *Acceptor
	threadPool *EventLoopThreadPool

	mu          sync.Mutex
	connections map[string]*TcpConnection
	nextConnID  int

	started atomic.Bool

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback
	highWaterMarkCallback HighWaterMarkCallback
}

// NewTcpServer constructs a server that will listen on addr once Start
// is called. baseLoop is the loop that owns the acceptor and the
// connection map; it is typically also the loop the caller drives with
// Loop() after calling Start.
func NewTcpServer(baseLoop *EventLoop, addr, name string, opts ...Option) (*TcpServer, error) {
	o := defaultServerOptions()
	for _, opt := range opts {
		opt(o)
	}

	acc, err := NewAcceptor(baseLoop, addr, o.reusePort, o.logger)
	if err != nil {
		return nil, fmt.Errorf("reactor: new tcp server %q: %w", name, err)
	}

	s := &TcpServer{
		baseLoop:    baseLoop,
		name:        name,
		addr:        addr,
		opts:        o,
		acceptor:    acc,
		connections: make(map[string]*TcpConnection),
	}
	s.threadPool = NewEventLoopThreadPool(baseLoop, 0, WithEventLoopLogger(o.logger))
	s.acceptor.SetNewConnectionCallback(s.newConnection)
	return s, nil
}

// SetThreadNum sets the number of worker loops started by Start. Must be
// called before Start; 0 (the default) means every connection is
// handled on the base loop itself.
func (s *TcpServer) SetThreadNum(n int) {
	s.threadPool = NewEventLoopThreadPool(s.baseLoop, n, WithEventLoopLogger(s.opts.logger))
}

// SetThreadInitCallback registers a hook invoked once per worker loop
// before it starts dispatching.
func (s *TcpServer) SetThreadInitCallback(cb func(*EventLoop)) {
	s.threadPool.SetThreadInitCallback(cb)
}

func (s *TcpServer) SetConnectionCallback(cb ConnectionCallback)       { s.connectionCallback = cb }
func (s *TcpServer) SetMessageCallback(cb MessageCallback)             { s.messageCallback = cb }
func (s *TcpServer) SetWriteCompleteCallback(cb WriteCompleteCallback) { s.writeCompleteCallback = cb }
func (s *TcpServer) SetHighWaterMarkCallback(cb HighWaterMarkCallback) { s.highWaterMarkCallback = cb }

// LocalAddr returns the address the listening socket is bound to.
func (s *TcpServer) LocalAddr() *net.TCPAddr { return s.acceptor.LocalAddr() }

// Start is idempotent: only the first call starts the worker pool and
// posts Acceptor.Listen to the base loop.
func (s *TcpServer) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.threadPool.Start(); err != nil {
		return fmt.Errorf("reactor: start tcp server %q: %w", s.name, err)
	}
	s.baseLoop.RunInLoop(func() {
		s.acceptor.Listen()
	})
	return nil
}

func (s *TcpServer) newConnection(connFd int, peerAddr *net.TCPAddr) {
	loop := s.threadPool.GetNextLoop()

	s.mu.Lock()
	connName := fmt.Sprintf("%s-%s#%d", s.name, s.addr, s.nextConnID)
	s.nextConnID++
	s.mu.Unlock()

	local, err := getsockname(connFd)
	if err != nil {
		s.opts.logger.Errorf("reactor: getsockname on accepted fd failed: %v", err)
		local = &net.TCPAddr{}
	}

	if err := setTCPNoDelay(connFd, s.opts.tcpNoDelay); err != nil {
		s.opts.logger.Warnf("reactor: setsockopt TCP_NODELAY on %s failed: %v", connName, err)
	}

	conn := NewTcpConnection(loop, connName, connFd, local, peerAddr, s.opts.highWaterMark, s.opts.logger)
	conn.SetConnectionCallback(s.connectionCallback)
	conn.SetMessageCallback(s.messageCallback)
	conn.SetWriteCompleteCallback(s.writeCompleteCallback)
	conn.SetHighWaterMarkCallback(s.highWaterMarkCallback)
	conn.setCloseCallback(s.removeConnection)

	s.mu.Lock()
	s.connections[connName] = conn
	s.mu.Unlock()

	loop.RunInLoop(conn.ConnectEstablished)
}

// removeConnection is callable from any worker loop; it forwards to
// removeConnectionInLoop on the base loop so the connection map is only
// ever touched from one thread (spec.md §4.7, §5).
func (s *TcpServer) removeConnection(conn *TcpConnection) {
	s.baseLoop.RunInLoop(func() {
		s.removeConnectionInLoop(conn)
	})
}

func (s *TcpServer) removeConnectionInLoop(conn *TcpConnection) {
	s.mu.Lock()
	delete(s.connections, conn.Name())
	s.mu.Unlock()

	// The strong reference captured by this closure keeps conn alive
	// until ConnectDestroyed runs on its own worker loop, satisfying the
	// rule that the channel must be removed from the poller on its
	// owning thread.
	conn.GetLoop().QueueInLoop(func() {
		conn.ConnectDestroyed()
	})
}

// Connections returns a snapshot of the currently live connection names,
// primarily useful for tests and diagnostics.
func (s *TcpServer) Connections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.connections))
	for name := range s.connections {
		names = append(names, name)
	}
	return names
}
