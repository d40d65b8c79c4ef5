package highlight

import (
	"bufio"
	"errors"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/getsentry/hotspots/internal/trivia"
)

type importState uint8

const (
	importIdle importState = iota
	importKeyword
	importParen
	importSpecifier
)

// importScanner recognizes `import ( "specifier"` in code, trivia allowed
// between the tokens.
type importScanner struct {
	state     importState
	word      strings.Builder
	quote     rune
	escaped   bool
	specifier strings.Builder
	counts    map[string]int
}

// ScanImports counts the string specifiers of the dynamic imports in the
// text read from r.
func ScanImports(r io.Reader) (map[string]int, error) {
	s := &importScanner{counts: make(map[string]int)}
	lx := trivia.New()
	br := bufio.NewReader(r)
	cur, _, err := br.ReadRune()
	if errors.Is(err, io.EOF) {
		return s.counts, nil
	}
	if err != nil {
		return nil, err
	}
	for {
		next, _, err := br.ReadRune()
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return nil, err
		}
		if eof {
			next = 0
		}
		class, _ := lx.Next(cur, next)
		s.feed(cur, class)
		if eof {
			break
		}
		cur = next
	}
	return s.counts, nil
}

func (s *importScanner) feed(ch rune, class trivia.Class) {
	if s.state == importSpecifier {
		s.feedSpecifier(ch, class)
		return
	}
	if class == trivia.Code && isIdentifierPart(ch) {
		if s.word.Len() == 0 {
			s.state = importIdle
		}
		s.word.WriteRune(ch)
		return
	}
	if s.word.Len() > 0 {
		if s.word.String() == "import" {
			s.state = importKeyword
		}
		s.word.Reset()
	}
	switch {
	case class.IsTrivia():
	case class == trivia.Code && ch == '(' && s.state == importKeyword:
		s.state = importParen
	case class == trivia.String && s.state == importParen && (ch == '"' || ch == '\''):
		s.state = importSpecifier
		s.quote = ch
		s.escaped = false
		s.specifier.Reset()
	default:
		s.state = importIdle
	}
}

func (s *importScanner) feedSpecifier(ch rune, class trivia.Class) {
	switch {
	case class != trivia.String:
		s.state = importIdle
	case s.escaped:
		s.escaped = false
		s.specifier.WriteRune(ch)
	case ch == '\\':
		s.escaped = true
	case ch == s.quote:
		s.counts[s.specifier.String()]++
		s.state = importIdle
	default:
		s.specifier.WriteRune(ch)
	}
}

func isIdentifierPart(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

// suggestImports returns the specifiers counted at least threshold times,
// most used first.
func suggestImports(counts map[string]int, threshold int) []ImportSuggestion {
	var suggestions []ImportSuggestion
	for specifier, count := range counts {
		if count >= threshold {
			suggestions = append(suggestions, ImportSuggestion{Specifier: specifier, Count: count})
		}
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Count != suggestions[j].Count {
			return suggestions[i].Count > suggestions[j].Count
		}
		return suggestions[i].Specifier < suggestions[j].Specifier
	})
	return suggestions
}
