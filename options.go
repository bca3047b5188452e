package reactor

// eventLoopOptions holds the construction-time knobs for an EventLoop.
type eventLoopOptions struct {
	logger Logger
}

func defaultEventLoopOptions() *eventLoopOptions {
	return &eventLoopOptions{logger: DefaultLogger}
}

// EventLoopOption configures an EventLoop at construction time.
type EventLoopOption func(*eventLoopOptions)

// WithEventLoopLogger overrides the logger used by this loop and the
// poller it owns.
func WithEventLoopLogger(logger Logger) EventLoopOption {
	return func(o *eventLoopOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// PortReuse selects whether a TcpServer's listening socket sets
// SO_REUSEPORT in addition to the always-on SO_REUSEADDR (spec.md §6).
type PortReuse bool

const (
	NoReusePort PortReuse = false
	ReusePort   PortReuse = true
)

// serverOptions holds the construction-time knobs for a TcpServer.
type serverOptions struct {
	logger        Logger
	reusePort     PortReuse
	threadNum     int
	threadInitCB  func(*EventLoop)
	highWaterMark int
	tcpNoDelay    bool
}

func defaultServerOptions() *serverOptions {
	return &serverOptions{
		logger:        DefaultLogger,
		reusePort:     NoReusePort,
		highWaterMark: 64 * 1024 * 1024,
		tcpNoDelay:    false,
	}
}

// Option configures a TcpServer at construction time. The library takes
// configuration only through options like these — no CLI, env vars, or
// persisted state (spec.md §6).
type Option func(*serverOptions)

// WithReusePort enables SO_REUSEPORT on the listening socket.
func WithReusePort(reuse PortReuse) Option {
	return func(o *serverOptions) { o.reusePort = reuse }
}

// WithLogger overrides the logger used by the server, its acceptor, and
// every connection it accepts.
func WithLogger(logger Logger) Option {
	return func(o *serverOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHighWaterMark sets the per-connection output-buffer threshold (in
// bytes); HighWaterMarkCallback fires when an append takes the buffered
// size from below it to at or above it.
func WithHighWaterMark(bytes int) Option {
	return func(o *serverOptions) {
		if bytes > 0 {
			o.highWaterMark = bytes
		}
	}
}

// WithTCPNoDelay toggles TCP_NODELAY on every socket this server accepts.
// Default is off, matching spec.md §6's stated default policy.
func WithTCPNoDelay(enabled bool) Option {
	return func(o *serverOptions) { o.tcpNoDelay = enabled }
}
