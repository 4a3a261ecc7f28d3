package decoder

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// jsonArrayScanner incrementally extracts the raw objects of a top-level
// "messages" array from a JSON export, one at a time, without holding the
// document in memory. Shared by the Telegram, Instagram and Discord JSON
// streaming paths.
//
// Reads happen in BufferSize chunks, never whole lines, so a minified
// export without newlines is as bounded as a pretty-printed one: bytes
// consumed before the array is located count against MaxHeaderSize,
// object bytes count against MaxMessageSize via the bounded buffer.
// Brace depth is tracked with string/escape awareness, so braces inside
// message content do not confuse it.
type jsonArrayScanner struct {
	r        *bufio.Reader
	platform Platform
	path     string
	buf      *boundedBuffer
	chunk    []byte
	pending  []byte
	line     int // current physical line, 1-based
	objLine  int // line where the in-flight object started
	finished bool
	started  bool
	depth    int
	inString bool
	escaped  bool
}

const messagesKey = `"messages"`

func newJSONArrayScanner(r io.Reader, platform Platform, path string, cfg StreamingConfig) (*jsonArrayScanner, error) {
	s := &jsonArrayScanner{
		r:        bufio.NewReaderSize(r, cfg.BufferSize),
		platform: platform,
		path:     path,
		buf:      newBoundedBuffer(cfg.MaxMessageSize),
		chunk:    make([]byte, cfg.BufferSize),
		line:     1,
	}

	// Pre-scan for the messages array in chunks. The header buffer holds
	// at most MaxHeaderSize+1 bytes; the byte that crosses the cap with
	// the array still unseen is the error.
	var header []byte
	for {
		n, readErr := s.r.Read(s.chunk)
		if n > 0 {
			take := n
			if room := cfg.MaxHeaderSize + 1 - len(header); take > room {
				take = room
			}
			header = append(header, s.chunk[:take]...)
			if start := messagesArrayStart(header); start >= 0 {
				if start >= cfg.MaxHeaderSize {
					return nil, s.headerCapError(cfg)
				}
				s.line += bytes.Count(header[:start], []byte{'\n'})
				s.pending = append(header[:0:0], header[start+1:]...)
				s.pending = append(s.pending, s.chunk[take:n]...)
				return s, nil
			}
			if len(header) > cfg.MaxHeaderSize {
				return nil, s.headerCapError(cfg)
			}
		}
		if readErr == io.EOF {
			return nil, &FormatError{Platform: platform, Path: path, Reason: "no messages array found"}
		}
		if readErr != nil {
			return nil, fmt.Errorf("read %v export: %w", platform, readErr)
		}
	}
}

func (s *jsonArrayScanner) headerCapError(cfg StreamingConfig) error {
	return &FormatError{
		Platform: s.platform,
		Path:     s.path,
		Reason: fmt.Sprintf(
			"messages array not found within the first %v bytes", cfg.MaxHeaderSize),
	}
}

// messagesArrayStart returns the index of the '[' opening the messages
// array, or -1.
func messagesArrayStart(b []byte) int {
	key := bytes.Index(b, []byte(messagesKey))
	if key < 0 {
		return -1
	}
	bracket := bytes.IndexByte(b[key:], '[')
	if bracket < 0 {
		return -1
	}
	return key + bracket
}

// next returns the raw bytes of the next array element and the line it
// started on. io.EOF signals a cleanly exhausted array.
func (s *jsonArrayScanner) next() ([]byte, int, error) {
	if s.finished {
		return nil, 0, io.EOF
	}

	for {
		segStart := -1
		for i := 0; i < len(s.pending); i++ {
			c := s.pending[i]
			if c == '\n' {
				s.line++
			}

			if !s.started {
				switch c {
				case '{':
					s.started = true
					s.depth = 1
					s.inString = false
					s.escaped = false
					s.buf.reset()
					s.objLine = s.line
					segStart = i
				case ']':
					s.finished = true
					s.pending = nil
					return nil, 0, io.EOF
				}
				continue
			}

			switch {
			case s.escaped:
				s.escaped = false
			case s.inString:
				if c == '\\' {
					s.escaped = true
				} else if c == '"' {
					s.inString = false
				}
			case c == '"':
				s.inString = true
			case c == '{':
				s.depth++
			case c == '}':
				s.depth--
				if s.depth == 0 {
					if segStart < 0 {
						segStart = 0
					}
					if err := s.buf.append(s.pending[segStart : i+1]); err != nil {
						return nil, s.objLine, err
					}
					s.started = false
					s.pending = s.pending[i+1:]
					return s.buf.bytes(), s.objLine, nil
				}
			}
		}

		// Object continues past this chunk: keep what belongs to it. The
		// bounded buffer rejects the chunk that crosses the cap before
		// storing it.
		if s.started {
			if segStart < 0 {
				segStart = 0
			}
			if err := s.buf.append(s.pending[segStart:]); err != nil {
				return nil, s.objLine, err
			}
		}

		n, err := s.r.Read(s.chunk)
		if n > 0 {
			s.pending = s.chunk[:n]
			continue
		}
		s.pending = nil
		if err == io.EOF {
			if s.started {
				return nil, s.objLine, &FormatError{
					Platform: s.platform,
					Path:     s.path,
					Reason:   "unexpected end of file inside messages array",
				}
			}
			s.finished = true
			return nil, 0, io.EOF
		}
		if err != nil {
			return nil, s.line, fmt.Errorf("read %v export: %w", s.platform, err)
		}
	}
}
