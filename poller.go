package reactor

// pollTimeoutMs is the loop's fixed poll timeout, preserved from muduo's
// kPollTimsMs constant (EventLoop.cc in the original source).
const pollTimeoutMs = 10000

// pollerBackend is the readiness demultiplexer contract, implemented by
// *epollPoller (linux) and *kqueuePoller (darwin/freebsd/dragonfly/netbsd).
// EventLoop owns exactly one (spec.md §4.1); every method below executes
// only on that loop's thread.
type pollerBackend interface {
	poll(timeoutMs int, activeChannels *[]*Channel) (Timestamp, error)
	updateChannel(ch *Channel)
	removeChannel(ch *Channel)
	hasChannel(ch *Channel) bool
	wakeup() error
	close() error
}

func newPoller(logger Logger) (pollerBackend, error) {
	return newPlatformPoller(logger)
}

// poller holds the state shared by both platform backends (kernel fd,
// wake fd, fd-to-channel map, logger); epollPoller (poller_epoll_linux.go)
// and kqueuePoller (poller_kqueue_bsd.go) embed it, and the one compiled
// in is chosen at build time. All methods execute only on the owning
// loop's thread.
type poller struct {
	fd       int
	wakeFd   int
	wakeBuf  [8]byte
	channels map[int]*Channel
	logger   Logger
}

func newPollerCore(logger Logger) poller {
	return poller{
		channels: make(map[int]*Channel),
		logger:   logger,
	}
}

// hasChannel reports whether ch is currently registered with this poller.
func (p *poller) hasChannel(ch *Channel) bool {
	got, ok := p.channels[ch.fd]
	return ok && got == ch
}

func (p *poller) assertInMap(ch *Channel) {
	if existing, ok := p.channels[ch.fd]; ok && existing != ch {
		p.logger.Errorf("poller: fd %d already owned by a different channel", ch.fd)
	}
}
