package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// listenSocket creates, binds, and listens on a non-blocking,
// close-on-exec IPv4 TCP socket, setting SO_REUSEADDR always and
// SO_REUSEPORT when reuse is true (spec.md §6).
func listenSocket(addr string, reuse PortReuse) (int, *net.TCPAddr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return -1, nil, fmt.Errorf("reactor: resolve listen addr %q: %w", addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, nil, fmt.Errorf("reactor: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("reactor: setsockopt SO_REUSEADDR: %w", err)
	}
	if reuse {
		if err := setReusePort(fd); err != nil {
			_ = unix.Close(fd)
			return -1, nil, fmt.Errorf("reactor: setsockopt SO_REUSEPORT: %w", err)
		}
	}

	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if tcpAddr.IP != nil {
		copy(sa.Addr[:], tcpAddr.IP.To4())
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("reactor: bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("reactor: listen %s: %w", addr, err)
	}

	local, err := getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("reactor: getsockname after listen: %w", err)
	}
	return fd, local, nil
}

// accept performs one non-blocking accept, returning a non-blocking,
// close-on-exec client fd and its peer address.
func accept(listenFd int) (int, *net.TCPAddr, error) {
	nfd, sa, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	peer := sockaddrToTCPAddr(sa)
	return nfd, peer, nil
}

// getsockname resolves the local address bound to fd, used by
// TcpServer.newConnection to report a connection's local address.
func getsockname(fd int) (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, err
	}
	return sockaddrToTCPAddr(sa), nil
}

func sockaddrToTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, v.Addr[:])
		return &net.TCPAddr{IP: ip, Port: v.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, v.Addr[:])
		return &net.TCPAddr{IP: ip, Port: v.Port}
	default:
		return &net.TCPAddr{}
	}
}

// setTCPNoDelay toggles Nagle's algorithm on fd. Default policy is off
// per spec.md §6; callers opt in explicitly.
func setTCPNoDelay(fd int, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// shutdownWrite performs the half-close TcpConnection uses to signal
// "no more data from me" while still being able to read (spec.md §6).
func shutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}

func closeFd(fd int) error {
	return unix.Close(fd)
}

func setReusePort(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}
