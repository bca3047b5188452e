package reactor

import "fmt"

// channel index values, tracking membership in a Poller's internal map.
const (
	chanNew int8 = iota
	chanAdded
	chanDeleted
)

// Event bits a Channel can register interest in and a Poller can report
// back via revents. errorEvent/closeEvent are never set in the interest
// mask; the poller backend folds EPOLLERR/EPOLLHUP/EPOLLRDHUP into them.
const (
	noneEvent  uint32 = 0
	readEvent  uint32 = 1 << 0
	writeEvent uint32 = 1 << 1
	errorEvent uint32 = 1 << 2
	closeEvent uint32 = 1 << 3
)

// EventCallback is invoked with no argument for write/close/error
// readiness; ReadCallback additionally carries the poll-return timestamp.
type EventCallback func()
type ReadCallback func(Timestamp)

// Channel binds one fd to one EventLoop and the callbacks that fire when
// the poller reports readiness on it. A Channel lives on exactly one
// loop; every field below is only ever touched from that loop's thread,
// per spec.md §5's thread-affinity rule.
type Channel struct {
	loop *EventLoop
	fd   int

	events  uint32
	revents uint32
	index   int8

	readCallback  ReadCallback
	writeCallback EventCallback
	closeCallback EventCallback
	errorCallback EventCallback

	// promote, if set, returns a strong reference to the owning object
	// (and ok=true) for the duration of handleEvent's dispatch, or
	// ok=false if that object is already gone. This is the Go analog of
	// muduo's Channel::tie(weak_ptr<void>): a closure-captured promotion
	// check rather than a typed weak pointer, since the channel never
	// needs to do anything with the promoted value beyond keeping it
	// reachable until dispatch returns.
	promote func() (any, bool)

	eventHandling bool
	addedToLoop   bool
}

// NewChannel constructs a Channel for fd on loop. The channel starts with
// no interest bits set and index NEW; it is not registered with the
// poller until interest is enabled.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{
		loop:  loop,
		fd:    fd,
		index: chanNew,
	}
}

// Fd returns the channel's file descriptor.
func (c *Channel) Fd() int { return c.fd }

// Events returns the current interest mask.
func (c *Channel) Events() uint32 { return c.events }

// SetRevents records what the poller reported ready; called only by the
// poller backend between poll() and the loop's dispatch pass.
func (c *Channel) SetRevents(revt uint32) { c.revents = revt }

// Index reports this channel's membership state, one of {NEW, ADDED,
// DELETED} (spec.md §3), as tracked by its owning Poller.
func (c *Channel) Index() int8 { return c.index }

// SetIndex is called only by the owning Poller.
func (c *Channel) SetIndex(idx int8) { c.index = idx }

// OwnerLoop returns the loop this channel is bound to.
func (c *Channel) OwnerLoop() *EventLoop { return c.loop }

func (c *Channel) SetReadCallback(cb ReadCallback)   { c.readCallback = cb }
func (c *Channel) SetWriteCallback(cb EventCallback)  { c.writeCallback = cb }
func (c *Channel) SetCloseCallback(cb EventCallback)  { c.closeCallback = cb }
func (c *Channel) SetErrorCallback(cb EventCallback)  { c.errorCallback = cb }

// Tie installs a promotion closure: handleEvent calls it before
// dispatching callbacks, and skips dispatch entirely if it returns false.
// TcpConnection.ConnectEstablished calls this with a closure that
// reports true until that connection's ConnectDestroyed has run.
func (c *Channel) Tie(promote func() (any, bool)) {
	c.promote = promote
}

func (c *Channel) EnableReading() {
	c.events |= readEvent
	c.update()
}

func (c *Channel) DisableReading() {
	c.events &^= readEvent
	c.update()
}

func (c *Channel) EnableWriting() {
	c.events |= writeEvent
	c.update()
}

func (c *Channel) DisableWriting() {
	c.events &^= writeEvent
	c.update()
}

func (c *Channel) DisableAll() {
	c.events = noneEvent
	c.update()
}

func (c *Channel) IsNoneEvent() bool { return c.events == noneEvent }
func (c *Channel) IsWriting() bool   { return c.events&writeEvent != 0 }
func (c *Channel) IsReading() bool   { return c.events&readEvent != 0 }

func (c *Channel) update() {
	c.addedToLoop = true
	c.loop.updateChannel(c)
}

// Remove detaches the channel from its poller. It must run on the
// owning loop's thread; after it returns the channel must not be
// dispatched to again.
func (c *Channel) Remove() {
	c.addedToLoop = false
	c.loop.removeChannel(c)
}

// HandleEvent is called by the loop for every channel in the active list
// returned by poll, with the revents already populated via SetRevents.
// Dispatch order is error, then close (only if the peer hung up with no
// data, i.e. POLLHUP without POLLIN), then read, then write — matching
// spec.md §4.2.
func (c *Channel) HandleEvent(receiveTime Timestamp) {
	if c.promote == nil {
		c.handleEventWithGuard(receiveTime)
		return
	}
	if _, ok := c.promote(); !ok {
		return
	}
	c.handleEventWithGuard(receiveTime)
}

func (c *Channel) handleEventWithGuard(receiveTime Timestamp) {
	c.eventHandling = true
	defer func() { c.eventHandling = false }()

	if c.revents&errorEvent != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	}
	if c.revents&closeEvent != 0 && c.revents&readEvent == 0 {
		if c.closeCallback != nil {
			c.closeCallback()
		}
	}
	if c.revents&readEvent != 0 {
		if c.readCallback != nil {
			c.readCallback(receiveTime)
		}
	}
	if c.revents&writeEvent != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
}

func (c *Channel) String() string {
	return fmt.Sprintf("Channel{fd=%d events=%#x revents=%#x index=%d}", c.fd, c.events, c.revents, c.index)
}
