//go:build linux

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// epollPoller backs poller on Linux via epoll, with cross-thread wakeup
// through an eventfd descriptor folded into the same epoll set — grounded
// on other_examples/1898e4fc_panlibin-gnet__internal-netpoll-epoll.go.go's
// OpenPoller/Polling/Trigger shape.
type epollPoller struct {
	poller
}

func newPlatformPoller(logger Logger) (*epollPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	wfd, err := newEventfd()
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("reactor: eventfd: %w", err)
	}
	p := &epollPoller{poller: newPollerCore(logger)}
	p.fd = epfd
	p.wakeFd = wfd
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, p.wakeFd, &unix.EpollEvent{
		Fd:     int32(p.wakeFd),
		Events: unix.EPOLLIN,
	}); err != nil {
		_ = unix.Close(p.wakeFd)
		_ = unix.Close(p.fd)
		return nil, fmt.Errorf("reactor: epoll_ctl(wake fd): %w", err)
	}
	return p, nil
}

func (p *epollPoller) close() error {
	err1 := unix.Close(p.wakeFd)
	err2 := unix.Close(p.fd)
	if err1 != nil {
		return err1
	}
	return err2
}

func (p *epollPoller) wakeup() error {
	return writeWakeWord(p.wakeFd)
}

// poll blocks until readiness, a wakeup, or timeoutMs elapses, and appends
// ready channels (revents already set) to activeChannels.
func (p *epollPoller) poll(timeoutMs int, activeChannels *[]*Channel) (Timestamp, error) {
	events := make([]unix.EpollEvent, 16)
	if n := len(p.channels) + 1; n > len(events) {
		events = make([]unix.EpollEvent, n)
	}
	n, err := unix.EpollWait(p.fd, events, timeoutMs)
	now := Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		return now, fmt.Errorf("reactor: epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == p.wakeFd {
			drainWakeWord(p.wakeFd)
			continue
		}
		ch, ok := p.channels[fd]
		if !ok {
			continue
		}
		ch.SetRevents(epollToChannelEvents(events[i].Events))
		*activeChannels = append(*activeChannels, ch)
	}
	return now, nil
}

func epollToChannelEvents(ev uint32) uint32 {
	var out uint32
	if ev&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		out |= readEvent
	}
	if ev&unix.EPOLLOUT != 0 {
		out |= writeEvent
	}
	if ev&unix.EPOLLHUP != 0 && ev&unix.EPOLLIN == 0 {
		out |= closeEvent
	}
	if ev&(unix.EPOLLERR) != 0 {
		out |= errorEvent
	}
	if ev&unix.EPOLLRDHUP != 0 {
		out |= closeEvent
	}
	return out
}

func channelEventsToEpoll(events uint32) uint32 {
	var out uint32
	if events&readEvent != 0 {
		out |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if events&writeEvent != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

// updateChannel implements the membership algorithm from spec.md §4.1,
// driven by the channel's index.
func (p *epollPoller) updateChannel(ch *Channel) {
	switch ch.Index() {
	case chanNew, chanDeleted:
		wasNew := ch.Index() == chanNew
		if wasNew {
			p.channels[ch.fd] = ch
		} else {
			p.assertInMap(ch)
		}
		ch.SetIndex(chanAdded)
		op := unix.EPOLL_CTL_ADD
		if !wasNew {
			op = unix.EPOLL_CTL_MOD
		}
		if err := unix.EpollCtl(p.fd, op, ch.fd, &unix.EpollEvent{
			Fd:     int32(ch.fd),
			Events: channelEventsToEpoll(ch.events),
		}); err != nil {
			p.logger.Errorf("reactor: epoll_ctl update fd %d: %v", ch.fd, err)
		}
	case chanAdded:
		p.assertInMap(ch)
		if ch.IsNoneEvent() {
			if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, ch.fd, nil); err != nil {
				p.logger.Errorf("reactor: epoll_ctl del fd %d: %v", ch.fd, err)
			}
			ch.SetIndex(chanDeleted)
		} else {
			if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, ch.fd, &unix.EpollEvent{
				Fd:     int32(ch.fd),
				Events: channelEventsToEpoll(ch.events),
			}); err != nil {
				p.logger.Errorf("reactor: epoll_ctl mod fd %d: %v", ch.fd, err)
			}
		}
	}
}

func (p *epollPoller) removeChannel(ch *Channel) {
	delete(p.channels, ch.fd)
	if ch.Index() == chanAdded {
		if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, ch.fd, nil); err != nil {
			p.logger.Errorf("reactor: epoll_ctl del fd %d: %v", ch.fd, err)
		}
	}
	ch.SetIndex(chanNew)
}
