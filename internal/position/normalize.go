// Package position maps positions reported by the compiler to the 1-based
// line and character a reader would point at. Offsets are counted in UTF-16
// code units, the unit the compiler reports them in.
package position

import (
	"bufio"
	"errors"
	"io"
	"sort"
	"unicode/utf16"

	"github.com/getsentry/hotspots/internal/trivia"
)

type (
	// Query asks for the position of an offset, or of a line and character
	// pair when ByLineChar is set. A skipping query resolves to the first
	// character at or after its target that isn't whitespace or a comment, a
	// Fixed one resolves to the target itself.
	Query struct {
		Offset     int
		Line       int
		Char       int
		ByLineChar bool
		Fixed      bool
	}

	Position struct {
		Line int `json:"line"`
		Char int `json:"char"`
	}
)

// QueryOffset builds an offset query from a raw value where a negative sign
// marks a fixed query.
func QueryOffset(raw int) Query {
	if raw < 0 {
		return Query{Offset: -raw, Fixed: true}
	}
	return Query{Offset: raw}
}

// QueryLineChar builds a line and character query from raw values where a
// negative sign on either marks a fixed query.
func QueryLineChar(line, char int) Query {
	q := Query{Line: line, Char: char, ByLineChar: true}
	if line < 0 {
		q.Line, q.Fixed = -line, true
	}
	if char < 0 {
		q.Char, q.Fixed = -char, true
	}
	return q
}

type cursor struct {
	offset int
	line   int
	char   int
}

func (c cursor) position() Position {
	return Position{Line: c.line, Char: c.char}
}

func (q Query) reachedBy(c cursor) bool {
	if q.ByLineChar {
		return q.Line < c.line || (q.Line == c.line && q.Char <= c.char)
	}
	return q.Offset <= c.offset
}

type pending struct {
	query Query
	index int
}

type bucket struct {
	items []pending
	next  int
}

func (b *bucket) sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		qi, qj := b.items[i].query, b.items[j].query
		if qi.ByLineChar {
			if qi.Line != qj.Line {
				return qi.Line < qj.Line
			}
			return qi.Char < qj.Char
		}
		return qi.Offset < qj.Offset
	})
}

func (b *bucket) resolve(c cursor, results []Position) {
	for b.next < len(b.items) && b.items[b.next].query.reachedBy(c) {
		results[b.items[b.next].index] = c.position()
		b.next++
	}
}

func (b *bucket) done() bool {
	return b.next == len(b.items)
}

// Normalize resolves every query in a single pass over r. The result at
// index i answers queries[i]. Queries past the end of the text resolve to
// the position right after its last character.
func Normalize(r io.Reader, queries []Query) ([]Position, error) {
	results := make([]Position, len(queries))
	if len(queries) == 0 {
		return results, nil
	}

	var fixedOffsets, fixedLineChars, skippingOffsets, skippingLineChars bucket
	for i, q := range queries {
		p := pending{query: q, index: i}
		switch {
		case q.Fixed && q.ByLineChar:
			fixedLineChars.items = append(fixedLineChars.items, p)
		case q.Fixed:
			fixedOffsets.items = append(fixedOffsets.items, p)
		case q.ByLineChar:
			skippingLineChars.items = append(skippingLineChars.items, p)
		default:
			skippingOffsets.items = append(skippingOffsets.items, p)
		}
	}
	fixed := []*bucket{&fixedOffsets, &fixedLineChars}
	skipping := []*bucket{&skippingOffsets, &skippingLineChars}
	all := append(append([]*bucket{}, fixed...), skipping...)
	for _, b := range all {
		b.sort()
	}

	lx := trivia.New()
	units := newUnitReader(r)
	c := cursor{line: 1, char: 1}
	ch, ok, err := units.read()
	for ok && err == nil {
		var next rune
		var hasNext bool
		next, hasNext, err = units.read()
		if !hasNext {
			next = 0
		}

		class, eol := lx.Next(ch, next)
		for _, b := range fixed {
			b.resolve(c, results)
		}
		if !class.IsTrivia() {
			for _, b := range skipping {
				b.resolve(c, results)
			}
		}

		c.offset++
		if eol {
			c.line++
			c.char = 1
		} else {
			c.char++
		}

		if allDone(all) {
			return results, nil
		}
		ch, ok = next, hasNext
	}
	if err != nil {
		return nil, err
	}

	for _, b := range all {
		for ; b.next < len(b.items); b.next++ {
			results[b.items[b.next].index] = c.position()
		}
	}
	return results, nil
}

func allDone(buckets []*bucket) bool {
	for _, b := range buckets {
		if !b.done() {
			return false
		}
	}
	return true
}

// unitReader decodes UTF-8 text into UTF-16 code units.
type unitReader struct {
	r      *bufio.Reader
	low    rune
	hasLow bool
}

func newUnitReader(r io.Reader) *unitReader {
	return &unitReader{r: bufio.NewReader(r)}
}

func (u *unitReader) read() (rune, bool, error) {
	if u.hasLow {
		u.hasLow = false
		return u.low, true, nil
	}
	ch, _, err := u.r.ReadRune()
	if errors.Is(err, io.EOF) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if ch > 0xFFFF {
		high, low := utf16.EncodeRune(ch)
		u.low, u.hasLow = low, true
		return high, true, nil
	}
	return ch, true, nil
}
