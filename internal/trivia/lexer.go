// Package trivia classifies source text one UTF-16 code unit at a time so
// that positions reported by the compiler can be moved past leading
// whitespace and comments. It knows just enough about the language's lexical
// grammar to skip over strings, template literals and regular expressions.
//
// A slash in code is always taken to start a regular expression, division
// is not told apart. Until the next slash or line break, the text after a
// division operator is therefore classified as regex.
package trivia

import "unicode"

type Class uint8

const (
	Code Class = iota
	Whitespace
	Comment
	String
	Regex
)

func (c Class) String() string {
	switch c {
	case Code:
		return "code"
	case Whitespace:
		return "whitespace"
	case Comment:
		return "comment"
	case String:
		return "string"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

// IsTrivia reports whether text of class c can be skipped.
func (c Class) IsTrivia() bool {
	return c == Whitespace || c == Comment
}

type state uint8

const (
	stateCode state = iota
	stateShebang
	stateLineComment
	stateBlockCommentOpen  // on the '*' of "/*"
	stateBlockComment      // inside /* */
	stateBlockCommentClose // on the '/' of "*/"
	stateSingleQuote
	stateSingleQuoteEscape
	stateDoubleQuote
	stateDoubleQuoteEscape
	stateTemplate
	stateTemplateEscape
	stateTemplateHoleOpen // on the '{' of "${"
	stateRegex
	stateRegexEscape
	stateCharClass
	stateCharClassEscape
)

func (s state) class() (Class, bool) {
	switch s {
	case stateShebang, stateLineComment, stateBlockCommentOpen, stateBlockComment, stateBlockCommentClose:
		return Comment, true
	case stateSingleQuote, stateSingleQuoteEscape, stateDoubleQuote, stateDoubleQuoteEscape,
		stateTemplate, stateTemplateEscape, stateTemplateHoleOpen:
		return String, true
	case stateRegex, stateRegexEscape, stateCharClass, stateCharClassEscape:
		return Regex, true
	default:
		return Code, false
	}
}

// Lexer holds the scan state for one forward pass over one text. It has no
// reset, scanning another text takes a new Lexer.
type Lexer struct {
	state state
	index int

	// braceDepth counts the '{' seen in code and not yet closed.
	braceDepth int
	// holes records braceDepth on entry of each open template expression
	// hole, innermost last.
	holes []int
}

func New() *Lexer {
	return &Lexer{}
}

// Next classifies ch, the next code unit of the text, given the unit that
// follows it (0 at the end of the text). It also reports whether ch ends a
// line. A CR LF pair ends a single line, on the LF.
func (lx *Lexer) Next(ch, next rune) (Class, bool) {
	first := lx.index == 0
	lx.index++
	eol := isLineTerminator(ch, next)

	// the state the current unit belongs to
	current := lx.state
	switch lx.state {
	case stateCode:
		switch {
		case first && ch == '#' && next == '!':
			lx.state = stateShebang
		case ch == '/' && next == '/':
			lx.state = stateLineComment
		case ch == '/' && next == '*':
			lx.state = stateBlockCommentOpen
		case ch == '/':
			lx.state = stateRegex
		case ch == '\'':
			lx.state = stateSingleQuote
		case ch == '"':
			lx.state = stateDoubleQuote
		case ch == '`':
			lx.state = stateTemplate
		case ch == '{':
			lx.braceDepth++
		case ch == '}':
			if n := len(lx.holes); n > 0 && lx.holes[n-1] == lx.braceDepth {
				lx.holes = lx.holes[:n-1]
				lx.state = stateTemplate
			} else if lx.braceDepth > 0 {
				lx.braceDepth--
			}
		}
		// opening delimiters, and the '}' closing a hole, belong to the
		// state they enter
		current = lx.state

	case stateShebang, stateLineComment:
		if eol {
			lx.state = stateCode
			current = stateCode
		}

	case stateBlockCommentOpen:
		lx.state = stateBlockComment

	case stateBlockComment:
		if ch == '*' && next == '/' {
			lx.state = stateBlockCommentClose
		}

	case stateBlockCommentClose:
		lx.state = stateCode

	case stateSingleQuote, stateDoubleQuote:
		switch {
		case eol:
			lx.state = stateCode
			current = stateCode
		case ch == '\\':
			lx.state = escapeOf(lx.state)
		case ch == '\'' && lx.state == stateSingleQuote,
			ch == '"' && lx.state == stateDoubleQuote:
			lx.state = stateCode
		}

	case stateSingleQuoteEscape, stateDoubleQuoteEscape, stateTemplateEscape:
		// an escaped CR LF is a single line continuation
		if !(ch == '\r' && next == '\n') {
			lx.state = unescapeOf(lx.state)
		}

	case stateTemplate:
		switch {
		case ch == '\\':
			lx.state = stateTemplateEscape
		case ch == '`':
			lx.state = stateCode
		case ch == '$' && next == '{':
			lx.state = stateTemplateHoleOpen
		}

	case stateTemplateHoleOpen:
		lx.holes = append(lx.holes, lx.braceDepth)
		lx.state = stateCode

	case stateRegex:
		switch {
		case eol:
			lx.state = stateCode
			current = stateCode
		case ch == '\\':
			lx.state = stateRegexEscape
		case ch == '[':
			lx.state = stateCharClass
		case ch == '/':
			lx.state = stateCode
		}

	case stateRegexEscape:
		if eol {
			lx.state = stateCode
			current = stateCode
		} else {
			lx.state = stateRegex
		}

	case stateCharClass:
		switch {
		case eol:
			lx.state = stateCode
			current = stateCode
		case ch == '\\':
			lx.state = stateCharClassEscape
		case ch == ']':
			lx.state = stateRegex
		}

	case stateCharClassEscape:
		if eol {
			lx.state = stateCode
			current = stateCode
		} else {
			lx.state = stateCharClass
		}
	}

	if class, ok := current.class(); ok {
		return class, eol
	}
	if eol || isWhitespace(ch) {
		return Whitespace, eol
	}
	return Code, eol
}

func escapeOf(s state) state {
	if s == stateSingleQuote {
		return stateSingleQuoteEscape
	}
	return stateDoubleQuoteEscape
}

func unescapeOf(s state) state {
	switch s {
	case stateSingleQuoteEscape:
		return stateSingleQuote
	case stateDoubleQuoteEscape:
		return stateDoubleQuote
	default:
		return stateTemplate
	}
}

func isLineTerminator(ch, next rune) bool {
	switch ch {
	case '\n', '\u2028', '\u2029':
		return true
	case '\r':
		return next != '\n'
	default:
		return false
	}
}

func isWhitespace(ch rune) bool {
	switch ch {
	case ' ', '\t', '\v', '\f', '\r', '\u00a0', '\ufeff':
		return true
	default:
		return unicode.IsSpace(ch)
	}
}
