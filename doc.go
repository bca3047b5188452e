// Package reactor implements a multi-threaded, event-driven TCP server
// library following the one-loop-per-thread reactor pattern: a base
// loop accepts connections and hands each one to a worker loop from a
// fixed pool, where readiness notifications from the OS poller drive
// that connection's reads, writes, and lifecycle.
//
// A minimal server looks like:
//
//	loop, err := reactor.NewEventLoop()
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv, err := reactor.NewTcpServer(loop, "127.0.0.1:0", "echo")
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv.SetThreadNum(4)
//	srv.SetMessageCallback(func(c *reactor.TcpConnection, buf *reactor.Buffer, t reactor.Timestamp) {
//		c.Send(buf.RetrieveAllString())
//	})
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//	loop.Loop()
//
// TLS, HTTP, timers, UDP, client-side (connector) connections,
// file-descriptor passing, and sendfile are out of scope.
package reactor
