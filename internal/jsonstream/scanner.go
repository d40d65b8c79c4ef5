// Package jsonstream splits a top-level JSON array into its elements without
// requiring the array to be complete. Compiler trace files are written
// incrementally and are frequently cut short when the traced process dies,
// so running out of input inside an element or before the closing bracket
// is reported as a clean end of stream.
package jsonstream

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/getsentry/hotspots/internal/errorutil"
)

const readBufferSize = 64 * 1024

type Scanner struct {
	r       *bufio.Reader
	started bool
	done    bool
	count   int
	offset  int64
	buf     []byte
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, readBufferSize)}
}

// Count returns the number of complete elements returned so far.
func (s *Scanner) Count() int {
	return s.count
}

// Next returns the next complete element of the array. The returned slice is
// only valid until the following call. It returns io.EOF once the array is
// closed or the input is exhausted.
func (s *Scanner) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	if !s.started {
		if err := s.open(); err != nil {
			return nil, s.finish(err)
		}
	}

	c, err := s.skipSpace()
	if err != nil {
		return nil, s.finish(err)
	}
	if s.count > 0 {
		switch c {
		case ']':
			return nil, s.finish(io.EOF)
		case ',':
		default:
			return nil, s.finish(s.malformed("expected ',' or ']' after element, got %q", c))
		}
		c, err = s.skipSpace()
		if err != nil {
			return nil, s.finish(err)
		}
	} else if c == ']' {
		return nil, s.finish(io.EOF)
	}

	s.buf = s.buf[:0]
	switch c {
	case '{', '[':
		err = s.readComposite(c)
	case '"':
		err = s.readString()
	case ',', ']', '}', ':':
		err = s.malformed("unexpected %q at start of element", c)
	default:
		err = s.readScalar(c)
	}
	if err != nil {
		return nil, s.finish(err)
	}
	s.count++
	return s.buf, nil
}

func (s *Scanner) open() error {
	c, err := s.skipSpace()
	if err != nil {
		return err
	}
	// UTF-8 byte order mark
	if c == 0xEF {
		for _, want := range []byte{0xBB, 0xBF} {
			b, err := s.readByte()
			if err != nil {
				return err
			}
			if b != want {
				return s.malformed("invalid byte order mark")
			}
		}
		if c, err = s.skipSpace(); err != nil {
			return err
		}
	}
	if c != '[' {
		return s.malformed("expected '[' at start of input, got %q", c)
	}
	s.started = true
	return nil
}

func (s *Scanner) readComposite(open byte) error {
	s.buf = append(s.buf, open)
	depth := 1
	inString, escaped := false, false
	for depth > 0 {
		c, err := s.readByte()
		if err != nil {
			return err
		}
		s.buf = append(s.buf, c)
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	return nil
}

func (s *Scanner) readString() error {
	s.buf = append(s.buf, '"')
	escaped := false
	for {
		c, err := s.readByte()
		if err != nil {
			return err
		}
		s.buf = append(s.buf, c)
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			return nil
		}
	}
}

// readScalar reads a number or literal. A scalar cut off by the end of the
// input can't be told apart from a complete one, so it counts as truncated.
func (s *Scanner) readScalar(first byte) error {
	s.buf = append(s.buf, first)
	for {
		c, err := s.readByte()
		if err != nil {
			return err
		}
		if c == ',' || c == ']' || isSpace(c) {
			s.unreadByte()
			return nil
		}
		s.buf = append(s.buf, c)
	}
}

func (s *Scanner) skipSpace() (byte, error) {
	for {
		c, err := s.readByte()
		if err != nil {
			return 0, err
		}
		if !isSpace(c) {
			return c, nil
		}
	}
}

func (s *Scanner) readByte() (byte, error) {
	c, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	s.offset++
	return c, nil
}

func (s *Scanner) unreadByte() {
	if err := s.r.UnreadByte(); err == nil {
		s.offset--
	}
}

func (s *Scanner) finish(err error) error {
	s.done = true
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}

func (s *Scanner) malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: offset %d: %s", errorutil.ErrMalformedInput, s.offset, fmt.Sprintf(format, args...))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
