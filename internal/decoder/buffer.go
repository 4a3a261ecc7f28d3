package decoder

import "io"

// boundedBuffer accumulates one in-flight message for the streaming
// decoders, enforcing the per-message byte limit from StreamingConfig.
// The overflow check happens before data is stored, at the write that
// crosses the limit, so the reported actual size is exact.
type boundedBuffer struct {
	buf []byte
	max int
}

func newBoundedBuffer(max int) *boundedBuffer {
	return &boundedBuffer{max: max}
}

func (b *boundedBuffer) append(p []byte) error {
	if len(b.buf)+len(p) > b.max {
		return &BufferOverflowError{Max: b.max, Actual: len(b.buf) + len(p)}
	}
	b.buf = append(b.buf, p...)
	return nil
}

func (b *boundedBuffer) appendString(s string) error {
	if len(b.buf)+len(s) > b.max {
		return &BufferOverflowError{Max: b.max, Actual: len(b.buf) + len(s)}
	}
	b.buf = append(b.buf, s...)
	return nil
}

func (b *boundedBuffer) len() int {
	return len(b.buf)
}

func (b *boundedBuffer) string() string {
	return string(b.buf)
}

func (b *boundedBuffer) bytes() []byte {
	return b.buf
}

// reset empties the buffer but keeps the allocation for the next message.
func (b *boundedBuffer) reset() {
	b.buf = b.buf[:0]
}

// recordLimitReader guards a reader feeding a record-oriented parser:
// reads fail once the parser has pulled more than max bytes since the
// last reset. The slack absorbs the parser's own read-ahead, so the
// cutoff is approximate by that much; what it guarantees is memory
// proportional to the caps rather than to the input.
type recordLimitReader struct {
	r     io.Reader
	max   int
	slack int
	read  int
}

func (l *recordLimitReader) Read(p []byte) (int, error) {
	if l.read > l.max+l.slack {
		return 0, &BufferOverflowError{Max: l.max, Actual: l.read}
	}
	n, err := l.r.Read(p)
	l.read += n
	return n, err
}

// reset starts a new record's byte budget.
func (l *recordLimitReader) reset() {
	l.read = 0
}
