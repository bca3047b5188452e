//go:build linux

package reactor

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// newEventfd creates a non-blocking, close-on-exec eventfd used to wake a
// loop blocked in epoll_wait from another thread, exactly as
// other_examples/1898e4fc_panlibin-gnet__internal-netpoll-epoll.go.go's
// OpenPoller does via the raw SYS_EVENTFD2 syscall.
func newEventfd() (int, error) {
	r0, _, errno := unix.Syscall(unix.SYS_EVENTFD2, 0, uintptr(unix.EFD_CLOEXEC|unix.EFD_NONBLOCK), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(r0), nil
}

// one 8-byte word, written/read verbatim per the eventfd(2) protocol.
var wakeWord = (*(*[8]byte)(unsafe.Pointer(&[1]uint64{1})))[:]

func writeWakeWord(fd int) error {
	_, err := unix.Write(fd, wakeWord)
	return err
}

// drainWakeWord reads and discards the pending wake word. EAGAIN means a
// concurrent wakeup already drained it; spec.md §4.3 treats a short
// read/write on the wakeup descriptor as loggable, not fatal, so the
// error is swallowed here and the loop simply proceeds to run pending
// tasks.
func drainWakeWord(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}
