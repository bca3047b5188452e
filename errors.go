package reactor

import "errors"

// Sentinel errors for the conditions spec.md classifies as
// construction-fatal or caller-visible (§7). Transient I/O (EAGAIN,
// EINTR) and connection-fatal errno values never surface as these —
// they are handled internally and delivered to the application only
// as a ConnectionCallback with Connected() == false.
var (
	// ErrPoolAlreadyStarted is returned by EventLoopThreadPool.Start
	// on a second call.
	ErrPoolAlreadyStarted = errors.New("reactor: thread pool already started")

	// ErrConnectionClosed is returned by Send when called on the
	// connection's own worker thread while its state is already
	// Disconnected; a Send posted from another thread always returns
	// nil since the state by the time the post runs can't be known
	// to the caller.
	ErrConnectionClosed = errors.New("reactor: connection is not open for writing")
)
