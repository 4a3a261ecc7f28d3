package decoder

import (
	"bufio"
	"io"
	"strings"
)

// lineReader yields lines for the text streaming decoders without ever
// materializing an unbounded line: fragments arrive in BufferSize reads
// and pass through a bounded buffer, so a line that crosses
// MaxMessageSize fails at the crossing fragment instead of being
// accumulated first.
type lineReader struct {
	r   *bufio.Reader
	buf *boundedBuffer
}

func newLineReader(r io.Reader, cfg StreamingConfig) *lineReader {
	return &lineReader{
		r:   bufio.NewReaderSize(r, cfg.BufferSize),
		buf: newBoundedBuffer(cfg.MaxMessageSize),
	}
}

// next returns the next line with its terminator stripped. io.EOF after
// the final line.
func (lr *lineReader) next() (string, error) {
	lr.buf.reset()
	for {
		frag, err := lr.r.ReadSlice('\n')
		switch err {
		case nil:
			if appendErr := lr.buf.append(frag[:len(frag)-1]); appendErr != nil {
				return "", appendErr
			}
			return strings.TrimSuffix(lr.buf.string(), "\r"), nil
		case bufio.ErrBufferFull:
			if appendErr := lr.buf.append(frag); appendErr != nil {
				return "", appendErr
			}
		case io.EOF:
			if appendErr := lr.buf.append(frag); appendErr != nil {
				return "", appendErr
			}
			if lr.buf.len() == 0 {
				return "", io.EOF
			}
			return strings.TrimSuffix(lr.buf.string(), "\r"), nil
		default:
			return "", err
		}
	}
}
