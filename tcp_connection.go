package reactor

import (
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ConnState is the connection's lifecycle state (spec.md §3, §4.6).
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// ConnectionCallback fires on both establish and teardown; the caller
// distinguishes via conn.Connected().
type ConnectionCallback func(conn *TcpConnection)

// MessageCallback fires once per handleRead with data available; it may
// consume any prefix of buf, leaving the rest for next time.
type MessageCallback func(conn *TcpConnection, buf *Buffer, receiveTime Timestamp)

// WriteCompleteCallback fires once the output buffer has fully drained
// to the kernel after a send.
type WriteCompleteCallback func(conn *TcpConnection)

// HighWaterMarkCallback fires when the output buffer's readable size
// just crossed highWaterMark upward.
type HighWaterMarkCallback func(conn *TcpConnection, currentSize int)

// closeCallback is internal; TcpServer installs it to route teardown
// through removeConnection.
type closeCallback func(conn *TcpConnection)

// TcpConnection is one accepted socket bound to a worker loop, with its
// own input/output buffers and state machine (spec.md §4.6). All of its
// fields are mutated only on its own loop's thread, except state (read
// from any thread via Connected) and the send/shutdown entry points
// (callable from any thread, which post into the loop when necessary).
type TcpConnection struct {
	loop *EventLoop
	name string
	fd   int

	state ConnState // accessed via atomic load/store

	channel   *Channel
	localAddr *net.TCPAddr
	peerAddr  *net.TCPAddr

	inputBuffer  *Buffer
	outputBuffer *Buffer

	highWaterMark int

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback
	highWaterMarkCallback HighWaterMarkCallback
	onClose               closeCallback

	reading bool
	logger  Logger

	alive atomic.Bool // backing store for the channel's tie/promote closure
}

// NewTcpConnection wraps an already-accepted, non-blocking fd in a
// TcpConnection bound to loop. The connection starts in StateConnecting;
// TcpServer calls ConnectEstablished once it has wired the user
// callbacks in.
func NewTcpConnection(loop *EventLoop, name string, fd int, localAddr, peerAddr *net.TCPAddr, highWaterMark int, logger Logger) *TcpConnection {
	c := &TcpConnection{
		loop:          loop,
		name:          name,
		fd:            fd,
		localAddr:     localAddr,
		peerAddr:      peerAddr,
		inputBuffer:   NewBuffer(),
		outputBuffer:  NewBuffer(),
		highWaterMark: highWaterMark,
		logger:        logger,
	}
	c.setState(StateConnecting)
	c.alive.Store(true)
	c.channel = NewChannel(loop, fd)
	c.channel.SetReadCallback(c.handleRead)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetCloseCallback(c.handleClose)
	c.channel.SetErrorCallback(c.handleError)
	return c
}

func (c *TcpConnection) GetLoop() *EventLoop { return c.loop }
func (c *TcpConnection) Name() string        { return c.name }
func (c *TcpConnection) LocalAddress() *net.TCPAddr { return c.localAddr }
func (c *TcpConnection) PeerAddress() *net.TCPAddr  { return c.peerAddr }
func (c *TcpConnection) Connected() bool     { return c.getState() == StateConnected }

func (c *TcpConnection) getState() ConnState {
	return ConnState(atomic.LoadInt32((*int32)(&c.state)))
}

func (c *TcpConnection) setState(s ConnState) {
	atomic.StoreInt32((*int32)(&c.state), int32(s))
}

func (c *TcpConnection) SetConnectionCallback(cb ConnectionCallback)       { c.connectionCallback = cb }
func (c *TcpConnection) SetMessageCallback(cb MessageCallback)             { c.messageCallback = cb }
func (c *TcpConnection) SetWriteCompleteCallback(cb WriteCompleteCallback) { c.writeCompleteCallback = cb }
func (c *TcpConnection) SetHighWaterMarkCallback(cb HighWaterMarkCallback) { c.highWaterMarkCallback = cb }
func (c *TcpConnection) setCloseCallback(cb closeCallback)                { c.onClose = cb }

// Send queues bytes for delivery: a direct call on the worker thread, or
// a copy-and-post from any other thread so the caller's memory is not
// captured beyond this call (spec.md §4.6). On the worker thread it
// reports ErrConnectionClosed immediately if the connection is already
// disconnected; posted from another thread it always returns nil, since
// the connection's state by the time the post runs can't be observed
// from the caller's thread.
func (c *TcpConnection) Send(data string) error {
	if c.loop.IsInLoopThread() {
		return c.sendInLoop([]byte(data))
	}
	owned := []byte(data)
	c.loop.QueueInLoop(func() {
		_ = c.sendInLoop(owned)
	})
	return nil
}

func (c *TcpConnection) sendInLoop(data []byte) error {
	if c.getState() == StateDisconnected {
		c.logger.Warnf("reactor: send on disconnected connection %s ignored", c.name)
		return ErrConnectionClosed
	}

	written := 0
	faultError := false

	if !c.channel.IsWriting() && c.outputBuffer.ReadableBytes() == 0 {
		n, err := unix.Write(c.fd, data)
		if n >= 0 {
			written = n
			if written == len(data) && c.writeCompleteCallback != nil {
				cb := c.writeCompleteCallback
				c.loop.QueueInLoop(func() { cb(c) })
			}
		} else if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			if err == unix.EPIPE || err == unix.ECONNRESET {
				faultError = true
			} else {
				c.logger.Errorf("reactor: write to %s failed: %v", c.name, err)
			}
		}
	}

	if faultError {
		return nil
	}

	remaining := data[written:]
	if len(remaining) == 0 {
		return nil
	}

	oldLen := c.outputBuffer.ReadableBytes()
	c.outputBuffer.Append(remaining)
	newLen := oldLen + len(remaining)
	if oldLen < c.highWaterMark && newLen >= c.highWaterMark && c.highWaterMarkCallback != nil {
		cb := c.highWaterMarkCallback
		c.loop.QueueInLoop(func() { cb(c, newLen) })
	}
	if !c.channel.IsWriting() {
		c.channel.EnableWriting()
	}
	return nil
}

// Shutdown half-closes the connection once pending output has drained:
// if currently Connected, transitions to Disconnecting and posts the
// actual shutdown(WR) to run once the output buffer is empty.
func (c *TcpConnection) Shutdown() {
	if c.getState() == StateConnected {
		c.setState(StateDisconnecting)
		c.loop.RunInLoop(c.shutdownInLoop)
	}
}

func (c *TcpConnection) shutdownInLoop() {
	if !c.channel.IsWriting() {
		if err := shutdownWrite(c.fd); err != nil {
			c.logger.Errorf("reactor: shutdown(WR) on %s failed: %v", c.name, err)
		}
	}
}

func (c *TcpConnection) handleRead(receiveTime Timestamp) {
	n, err := c.inputBuffer.ReadFromFD(c.fd)
	switch {
	case err != nil:
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return
		}
		c.logger.Errorf("reactor: read on %s failed: %v", c.name, err)
		c.handleError()
		c.handleClose()
	case n > 0:
		if c.messageCallback != nil {
			c.messageCallback(c, c.inputBuffer, receiveTime)
		}
	default:
		c.handleClose()
	}
}

func (c *TcpConnection) handleWrite() {
	if !c.channel.IsWriting() {
		c.logger.Warnf("reactor: handleWrite called on %s with no write interest, ignoring", c.name)
		return
	}
	n, err := unix.Write(c.fd, c.outputBuffer.Peek())
	if n > 0 {
		c.outputBuffer.Retrieve(n)
		if c.outputBuffer.ReadableBytes() == 0 {
			c.channel.DisableWriting()
			if c.writeCompleteCallback != nil {
				cb := c.writeCompleteCallback
				c.loop.QueueInLoop(func() { cb(c) })
			}
			if c.getState() == StateDisconnecting {
				c.shutdownInLoop()
			}
		}
		return
	}
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return
	}
	c.logger.Errorf("reactor: write on %s failed: %v", c.name, err)
	c.handleError()
}

func (c *TcpConnection) handleClose() {
	if c.getState() == StateDisconnected {
		return
	}
	c.setState(StateDisconnected)
	c.channel.DisableAll()

	conn := c
	if c.connectionCallback != nil {
		c.connectionCallback(conn)
	}
	if c.onClose != nil {
		c.onClose(conn)
	}
}

func (c *TcpConnection) handleError() {
	errno, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		c.logger.Errorf("reactor: handleError on %s: getsockopt(SO_ERROR): %v", c.name, err)
		return
	}
	c.logger.Errorf("reactor: connection %s error, errno %d", c.name, errno)
}

// ConnectEstablished transitions Connecting -> Connected, installs the
// channel's tie (promoted for the duration of each dispatch so a handler
// that drops the connection mid-callback can't race the teardown),
// enables read interest, and invokes the connection callback.
func (c *TcpConnection) ConnectEstablished() {
	if c.getState() != StateConnecting {
		panic(fmt.Sprintf("reactor: ConnectEstablished called in state %s", c.getState()))
	}
	c.setState(StateConnected)
	c.channel.Tie(func() (any, bool) {
		return c, c.alive.Load()
	})
	c.channel.EnableReading()
	c.reading = true
	if c.connectionCallback != nil {
		c.connectionCallback(c)
	}
}

// ConnectDestroyed removes the channel from the poller once the server
// has erased its map entry; after it returns it is safe to drop the last
// reference to the connection (spec.md §4.6).
func (c *TcpConnection) ConnectDestroyed() {
	if c.getState() == StateConnected {
		c.setState(StateDisconnected)
		c.channel.DisableAll()
		if c.connectionCallback != nil {
			c.connectionCallback(c)
		}
	}
	c.channel.Remove()
	c.alive.Store(false)
	_ = closeFd(c.fd)
}
