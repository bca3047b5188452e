package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// NewConnectionCallback is invoked once per accepted connection with its
// fd and peer address; TcpServer installs this to turn raw accepts into
// TcpConnections.
type NewConnectionCallback func(connFd int, peerAddr *net.TCPAddr)

// Acceptor owns the listening socket on the base loop and turns
// readiness into accepted connections (spec.md §4.4).
type Acceptor struct {
	loop       *EventLoop
	listenFd   int
	localAddr  *net.TCPAddr
	channel    *Channel
	logger     Logger
	listening  bool
	newConnCB  NewConnectionCallback

	// idleFd holds one spare fd in reserve so that, on EMFILE, the
	// acceptor can close it, accept the pending connection (now that a
	// descriptor is free), immediately close that connection, and
	// reopen the reserve — degrading gracefully instead of spinning on
	// EMFILE with read interest still set (spec.md §4.4, §7).
	idleFd int
}

// NewAcceptor creates a non-blocking, close-on-exec listening socket
// bound to addr and a Channel on loop monitoring its read-readiness.
func NewAcceptor(loop *EventLoop, addr string, reuse PortReuse, logger Logger) (*Acceptor, error) {
	fd, local, err := listenSocket(addr, reuse)
	if err != nil {
		return nil, err
	}
	idleFd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("reactor: reserve idle fd: %w", err)
	}

	a := &Acceptor{
		loop:      loop,
		listenFd:  fd,
		localAddr: local,
		logger:    logger,
		idleFd:    idleFd,
	}
	a.channel = NewChannel(loop, fd)
	a.channel.SetReadCallback(a.handleRead)
	return a, nil
}

// SetNewConnectionCallback registers the callback invoked per accept.
func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) {
	a.newConnCB = cb
}

// LocalAddr returns the address the listening socket is bound to.
func (a *Acceptor) LocalAddr() *net.TCPAddr { return a.localAddr }

// Listening reports whether Listen has been called.
func (a *Acceptor) Listening() bool { return a.listening }

// Listen marks the socket as accepting and enables read interest on the
// base loop. Must run on the base loop's thread.
func (a *Acceptor) Listen() {
	a.listening = true
	a.channel.EnableReading()
}

func (a *Acceptor) handleRead(_ Timestamp) {
	for {
		fd, peer, err := accept(a.listenFd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EMFILE || err == unix.ENFILE {
				a.recoverFromAcceptPressure()
				return
			}
			if err == unix.EINTR || err == unix.ECONNABORTED {
				continue
			}
			a.logger.Errorf("reactor: accept failed: %v", err)
			return
		}
		if a.newConnCB != nil {
			a.newConnCB(fd, peer)
		} else {
			_ = closeFd(fd)
		}
	}
}

// recoverFromAcceptPressure implements spec.md §4.4's EMFILE recovery:
// give up the reserve fd, accept-and-drop the pending connection so it
// stops signaling readiness, then reopen the reserve.
func (a *Acceptor) recoverFromAcceptPressure() {
	_ = unix.Close(a.idleFd)
	nfd, _, err := unix.Accept4(a.listenFd, unix.SOCK_CLOEXEC)
	if err == nil {
		_ = unix.Close(nfd)
	}
	a.logger.Warnf("reactor: accept pressure (too many open files), dropped one pending connection")
	if fd, openErr := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0); openErr == nil {
		a.idleFd = fd
	} else {
		a.logger.Errorf("reactor: failed to reopen reserve fd: %v", openErr)
	}
}

// Close disables and removes the acceptor's channel from the poller, then
// releases the listening socket and reserve fd. Must run on the base
// loop's thread.
func (a *Acceptor) Close() error {
	a.channel.DisableAll()
	a.channel.Remove()
	_ = closeFd(a.idleFd)
	return closeFd(a.listenFd)
}
