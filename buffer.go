package reactor

import (
	"io"

	"golang.org/x/sys/unix"
)

const (
	bufferCheapPrepend = 8
	bufferInitialSize  = 1024
)

// Buffer is a contiguous byte store with three indices —
// prependable < readerIndex ≤ writerIndex ≤ capacity — giving O(1)
// prepend of up to bufferCheapPrepend bytes, amortized O(1) append with
// growth, and single-syscall scattered reads via a stack extension so
// short reads avoid heap growth (spec.md §3).
type Buffer struct {
	buf         []byte
	readerIndex int
	writerIndex int
}

// NewBuffer returns an empty Buffer sized for bufferInitialSize bytes of
// payload plus the cheap-prepend region.
func NewBuffer() *Buffer {
	return &Buffer{
		buf:         make([]byte, bufferCheapPrepend+bufferInitialSize),
		readerIndex: bufferCheapPrepend,
		writerIndex: bufferCheapPrepend,
	}
}

// ReadableBytes returns how many bytes are available to read.
func (b *Buffer) ReadableBytes() int { return b.writerIndex - b.readerIndex }

// WritableBytes returns how many bytes can be appended before growth.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writerIndex }

// PrependableBytes returns how many bytes are free in the cheap-prepend
// region ahead of readerIndex.
func (b *Buffer) PrependableBytes() int { return b.readerIndex }

// Peek returns the readable region without consuming it.
func (b *Buffer) Peek() []byte { return b.buf[b.readerIndex:b.writerIndex] }

// Retrieve consumes up to n readable bytes.
func (b *Buffer) Retrieve(n int) {
	if n >= b.ReadableBytes() {
		b.RetrieveAll()
		return
	}
	b.readerIndex += n
}

// RetrieveAll consumes every readable byte, resetting indices so the next
// append reuses the buffer from the front of the payload region.
func (b *Buffer) RetrieveAll() {
	b.readerIndex = bufferCheapPrepend
	b.writerIndex = bufferCheapPrepend
}

// RetrieveAllString consumes every readable byte and returns it as a
// string.
func (b *Buffer) RetrieveAllString() string {
	return b.RetrieveAsString(b.ReadableBytes())
}

// RetrieveAsString consumes n readable bytes and returns them as a
// string.
func (b *Buffer) RetrieveAsString(n int) string {
	s := string(b.buf[b.readerIndex : b.readerIndex+n])
	b.Retrieve(n)
	return s
}

// Append writes data to the writable region, growing the buffer if
// necessary, and advances writerIndex.
func (b *Buffer) Append(data []byte) {
	if b.WritableBytes() < len(data) {
		b.makeSpace(len(data))
	}
	n := copy(b.buf[b.writerIndex:], data)
	b.writerIndex += n
}

// AppendString is a convenience wrapper around Append.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

func (b *Buffer) makeSpace(need int) {
	if b.WritableBytes()+b.PrependableBytes() < need+bufferCheapPrepend {
		newCap := b.writerIndex + need
		newBuf := make([]byte, newCap)
		copy(newBuf, b.buf[:b.writerIndex])
		b.buf = newBuf
		return
	}
	// Enough total space once we slide the readable region back down to
	// the start of the payload area.
	readable := b.ReadableBytes()
	copy(b.buf[bufferCheapPrepend:], b.buf[b.readerIndex:b.writerIndex])
	b.readerIndex = bufferCheapPrepend
	b.writerIndex = b.readerIndex + readable
}

// Prepend writes data immediately before the current readable region.
// Callers must ensure len(data) <= PrependableBytes(). Nothing in this
// package calls it (length-prefix framing is out of scope); the
// mechanism is offered for embedders.
func (b *Buffer) Prepend(data []byte) {
	b.readerIndex -= len(data)
	copy(b.buf[b.readerIndex:], data)
}

// ReadFromFD performs one scattered read from fd into the buffer's
// writable tail and, if that tail is small, a 64KB stack-resident
// extension buffer — so a short read never forces the Buffer to grow
// just to make room, mirroring muduo's Buffer::readFd. It returns the
// number of bytes read (0 means EOF, per spec.md's handleRead contract)
// and an error for anything other than success.
func (b *Buffer) ReadFromFD(fd int) (int, error) {
	var extra [65536]byte
	writable := b.WritableBytes()

	iovs := make([][]byte, 0, 2)
	iovs = append(iovs, b.buf[b.writerIndex:])
	useExtra := writable < len(extra)
	if useExtra {
		iovs = append(iovs, extra[:])
	}

	n, err := readv(fd, iovs)
	if err != nil {
		return 0, err
	}
	if n <= writable {
		b.writerIndex += n
		return n, nil
	}
	b.writerIndex = len(b.buf)
	extraN := n - writable
	b.Append(extra[:extraN])
	return n, nil
}

func readv(fd int, iovs [][]byte) (int, error) {
	if len(iovs) == 1 {
		n, err := unix.Read(fd, iovs[0])
		if n < 0 {
			n = 0
		}
		return n, err
	}
	return unixReadv(fd, iovs)
}

func unixReadv(fd int, iovs [][]byte) (int, error) {
	n, err := unix.Readv(fd, iovs)
	if n < 0 {
		n = 0
	}
	return n, err
}

// bufferReader adapts a Buffer's readable region to io.Reader.
type bufferReader struct{ b *Buffer }

var _ io.Reader = (*bufferReader)(nil)

func (r *bufferReader) Read(p []byte) (int, error) {
	if r.b.ReadableBytes() == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b.Peek())
	r.b.Retrieve(n)
	return n, nil
}

// Reader returns an io.Reader over b's readable region, for callers
// outside this package that want to stream it (e.g. io.Copy to a log
// sink) instead of calling RetrieveAsString/RetrieveAllString directly.
// Reads consume from b the same way Retrieve does.
func (b *Buffer) Reader() io.Reader {
	return &bufferReader{b: b}
}
