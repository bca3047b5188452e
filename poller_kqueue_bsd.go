//go:build darwin || freebsd || dragonfly || netbsd

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// kqueuePoller backs poller on the BSD family via kqueue, with
// cross-thread wakeup through an EVFILT_USER identifier (ident 0) rather
// than an eventfd — grounded on
// other_examples/67650d66_panlibin-gnet__internal-netpoll-kqueue.go.go's
// OpenPoller/Trigger shape. wakeFd here is not a real descriptor; it only
// exists to satisfy the shared poller struct's field and is left zero.
type kqueuePoller struct {
	poller
}

var wakeChanges = []unix.Kevent_t{{
	Ident:  0,
	Filter: unix.EVFILT_USER,
	Fflags: unix.NOTE_TRIGGER,
}}

func newPlatformPoller(logger Logger) (*kqueuePoller, error) {
	kfd, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("reactor: kqueue: %w", err)
	}
	if _, err := unix.Kevent(kfd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil); err != nil {
		_ = unix.Close(kfd)
		return nil, fmt.Errorf("reactor: kevent(EVFILT_USER add): %w", err)
	}
	p := &kqueuePoller{poller: newPollerCore(logger)}
	p.fd = kfd
	return p, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.fd)
}

func (p *kqueuePoller) wakeup() error {
	_, err := unix.Kevent(p.fd, wakeChanges, nil, nil)
	return err
}

func (p *kqueuePoller) poll(timeoutMs int, activeChannels *[]*Channel) (Timestamp, error) {
	events := make([]unix.Kevent_t, 16)
	if n := len(p.channels) + 1; n > len(events) {
		events = make([]unix.Kevent_t, n)
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(p.fd, nil, events, ts)
	now := Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		return now, fmt.Errorf("reactor: kevent wait: %w", err)
	}

	seen := make(map[int]uint32, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)
		if fd == 0 {
			continue // wake identifier, nothing to drain
		}
		var bits uint32
		switch events[i].Filter {
		case unix.EVFILT_READ:
			bits = readEvent
		case unix.EVFILT_WRITE:
			bits = writeEvent
		}
		if events[i].Flags&unix.EV_EOF != 0 {
			bits |= closeEvent
		}
		if events[i].Flags&unix.EV_ERROR != 0 {
			bits |= errorEvent
		}
		seen[fd] |= bits
	}
	for fd, bits := range seen {
		if ch, ok := p.channels[fd]; ok {
			ch.SetRevents(bits)
			*activeChannels = append(*activeChannels, ch)
		}
	}
	return now, nil
}

func (p *kqueuePoller) updateChannel(ch *Channel) {
	switch ch.Index() {
	case chanNew, chanDeleted:
		if ch.Index() == chanNew {
			p.channels[ch.fd] = ch
		} else {
			p.assertInMap(ch)
		}
		ch.SetIndex(chanAdded)
		p.applyInterest(ch)
	case chanAdded:
		p.assertInMap(ch)
		if ch.IsNoneEvent() {
			p.removeInterest(ch)
			ch.SetIndex(chanDeleted)
		} else {
			p.applyInterest(ch)
		}
	}
}

func (p *kqueuePoller) applyInterest(ch *Channel) {
	changes := make([]unix.Kevent_t, 0, 2)
	if ch.events&readEvent != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(ch.fd), Flags: unix.EV_ADD, Filter: unix.EVFILT_READ})
	} else {
		changes = append(changes, unix.Kevent_t{Ident: uint64(ch.fd), Flags: unix.EV_DELETE, Filter: unix.EVFILT_READ})
	}
	if ch.events&writeEvent != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(ch.fd), Flags: unix.EV_ADD, Filter: unix.EVFILT_WRITE})
	} else {
		changes = append(changes, unix.Kevent_t{Ident: uint64(ch.fd), Flags: unix.EV_DELETE, Filter: unix.EVFILT_WRITE})
	}
	if _, err := unix.Kevent(p.fd, changes, nil, nil); err != nil {
		p.logger.Errorf("reactor: kevent update fd %d: %v", ch.fd, err)
	}
}

func (p *kqueuePoller) removeInterest(ch *Channel) {
	_, _ = unix.Kevent(p.fd, []unix.Kevent_t{
		{Ident: uint64(ch.fd), Flags: unix.EV_DELETE, Filter: unix.EVFILT_READ},
		{Ident: uint64(ch.fd), Flags: unix.EV_DELETE, Filter: unix.EVFILT_WRITE},
	}, nil, nil)
}

func (p *kqueuePoller) removeChannel(ch *Channel) {
	delete(p.channels, ch.fd)
	if ch.Index() == chanAdded {
		p.removeInterest(ch)
	}
	ch.SetIndex(chanNew)
}
