package reactor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// EventLoop is one iteration of the one-loop-per-thread reactor: it owns a
// poller, dispatches readiness to channels, and runs tasks posted to it
// from any thread (spec.md §4.3, §5). An EventLoop must be driven from a
// single goroutine (EventLoopThread provides one); see Loop on locking
// that goroutine to its OS thread.
type EventLoop struct {
	threadID atomic.Uint64 // goroutine id owning this loop, set when Loop starts

	looping atomic.Bool
	quit    atomic.Bool

	callingPendingFunctors atomic.Bool

	poller pollerBackend
	logger Logger

	activeChannels []*Channel

	mu      sync.Mutex
	pending []func()

	pollReturnTime Timestamp
}

// NewEventLoop constructs an EventLoop with its own poller. The returned
// loop is not yet dispatching; call Loop (normally from a dedicated
// goroutine/OS thread via EventLoopThread) to start it.
func NewEventLoop(opts ...EventLoopOption) (*EventLoop, error) {
	o := defaultEventLoopOptions()
	for _, opt := range opts {
		opt(o)
	}
	p, err := newPoller(o.logger)
	if err != nil {
		return nil, fmt.Errorf("reactor: new event loop: %w", err)
	}
	return &EventLoop{
		poller: p,
		logger: o.logger,
	}, nil
}

// Loop enters the dispatch cycle: clear the active list, poll with a
// fixed timeout, dispatch each active channel, then run pending tasks.
// It returns once Quit has been observed. Loop must be called from the
// goroutine that will own this loop for its lifetime; that goroutine
// should be locked to its OS thread (runtime.LockOSThread) so that the
// poller's fd operations and the "owning thread" invariant in spec.md §5
// hold in the same sense they do for a native one-loop-per-OS-thread
// reactor.
func (l *EventLoop) Loop() {
	l.looping.Store(true)
	l.quit.Store(false)
	l.bindThread()
	l.logger.Infof("reactor: event loop starting")

	for !l.quit.Load() {
		l.activeChannels = l.activeChannels[:0]
		ts, err := l.poller.poll(pollTimeoutMs, &l.activeChannels)
		if err != nil {
			l.logger.Errorf("reactor: poll error: %v", err)
			continue
		}
		l.pollReturnTime = ts
		for _, ch := range l.activeChannels {
			ch.HandleEvent(l.pollReturnTime)
		}
		l.doPendingFunctors()
	}

	l.looping.Store(false)
	l.logger.Infof("reactor: event loop stopped")
}

// Quit requests the loop return from Loop after its current iteration.
// It is safe to call from any thread; if the caller is not the loop's
// own thread, it also wakes the loop so the effect is observed promptly
// instead of waiting out the poll timeout.
func (l *EventLoop) Quit() {
	l.quit.Store(true)
	if !l.IsInLoopThread() {
		l.wakeup()
	}
}

// RunInLoop runs fn on the loop's thread: inline if the calling goroutine
// is already that thread, otherwise posted via QueueInLoop.
func (l *EventLoop) RunInLoop(fn func()) {
	if l.IsInLoopThread() {
		fn()
		return
	}
	l.QueueInLoop(fn)
}

// QueueInLoop appends fn to the pending-task queue under the loop's
// mutex and wakes the loop iff the caller is off-thread, or the loop is
// currently draining pending tasks — so a task that enqueues another
// task is still observed, on the next round, without needing to block
// for the current drain to notice it (spec.md §5's "already-draining"
// wakeup rule).
func (l *EventLoop) QueueInLoop(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	if !l.IsInLoopThread() || l.callingPendingFunctors.Load() {
		l.wakeup()
	}
}

func (l *EventLoop) doPendingFunctors() {
	l.mu.Lock()
	functors := l.pending
	l.pending = nil
	l.mu.Unlock()

	l.callingPendingFunctors.Store(true)
	for _, fn := range functors {
		fn()
	}
	l.callingPendingFunctors.Store(false)
}

func (l *EventLoop) wakeup() {
	if err := l.poller.wakeup(); err != nil {
		l.logger.Errorf("reactor: wakeup write failed: %v", err)
	}
}

// updateChannel, removeChannel, and hasChannel delegate to the poller;
// callers must be on the loop's thread (or have posted via RunInLoop).
func (l *EventLoop) updateChannel(ch *Channel) {
	l.assertInLoopThread()
	l.poller.updateChannel(ch)
}

func (l *EventLoop) removeChannel(ch *Channel) {
	l.assertInLoopThread()
	l.poller.removeChannel(ch)
}

func (l *EventLoop) hasChannel(ch *Channel) bool {
	l.assertInLoopThread()
	return l.poller.hasChannel(ch)
}

// Close releases the loop's poller resources. Call only after Loop has
// returned.
func (l *EventLoop) Close() error {
	return l.poller.close()
}

func (l *EventLoop) bindThread() {
	l.threadID.Store(goroutineID())
}

// IsInLoopThread reports whether the calling goroutine is the one
// currently running this loop's Loop call.
func (l *EventLoop) IsInLoopThread() bool {
	id := l.threadID.Load()
	return id != 0 && id == goroutineID()
}

func (l *EventLoop) assertInLoopThread() {
	if !l.IsInLoopThread() {
		l.logger.Errorf("reactor: operation invoked from outside the loop's own thread")
	}
}

// goroutineID extracts the running goroutine's id from its stack trace
// header ("goroutine 123 [running]:...") — there is no public runtime
// API for this, so the id is parsed the same way
// joeycumines-go-utilpkg/eventloop's isLoopThread check does.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
