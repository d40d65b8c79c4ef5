package traceevent

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/getsentry/hotspots/internal/errorutil"
	"github.com/getsentry/hotspots/internal/jsonstream"
	"github.com/getsentry/hotspots/internal/packageutil"
)

// EventFindSourceFile is emitted every time the compiler resolves a module
// specifier to a file on disk.
const EventFindSourceFile = "findSourceFile"

type (
	Options struct {
		// MinDuration is the shortest span, in microseconds, kept in the result.
		MinDuration float64
	}

	ParseResult struct {
		MinTime float64
		MaxTime float64
		Spans   []*Span
		// Unterminated holds begin events that were never closed, oldest first.
		Unterminated []*Event
		// PackagePaths maps a package name to every distinct directory the
		// package was loaded from.
		PackagePaths map[string]map[string]struct{}
	}
)

// Parse reads a JSON array of trace events from r. The array may be cut
// short, everything up to the last complete event is used.
func Parse(r io.Reader, opts Options) (*ParseResult, error) {
	p := parser{
		opts: opts,
		result: &ParseResult{
			PackagePaths: make(map[string]map[string]struct{}),
		},
	}
	s := jsonstream.NewScanner(r)
	for {
		b, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		var e Event
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", errorutil.ErrMalformedInput, s.Count()-1, err)
		}
		if err := p.add(&e); err != nil {
			return nil, err
		}
	}
	p.result.Unterminated = append(p.result.Unterminated, p.stack...)
	return p.result, nil
}

type parser struct {
	opts   Options
	stack  []*Event
	seen   bool
	result *ParseResult
}

func (p *parser) add(e *Event) error {
	switch e.Phase {
	case PhaseBegin:
		p.observe(float64(e.Timestamp))
		p.stack = append(p.stack, e)
	case PhaseEnd:
		p.observe(float64(e.Timestamp))
		if len(p.stack) == 0 {
			return fmt.Errorf("%w: end event %q at %v has no matching begin event", errorutil.ErrDataIntegrity, e.Name, e.Timestamp)
		}
		begin := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		p.addSpan(&Span{
			Start: float64(begin.Timestamp),
			End:   float64(e.Timestamp),
			Event: begin,
		})
	case PhaseComplete:
		start := float64(e.Timestamp)
		end := start
		if e.Duration != nil {
			end += float64(*e.Duration)
		}
		p.observe(start)
		p.observe(end)
		p.addSpan(&Span{Start: start, End: end, Event: e})
	}
	// metadata, instant and every other phase carry no duration
	return nil
}

func (p *parser) observe(ts float64) {
	if !p.seen {
		p.result.MinTime, p.result.MaxTime = ts, ts
		p.seen = true
		return
	}
	if ts < p.result.MinTime {
		p.result.MinTime = ts
	}
	if ts > p.result.MaxTime {
		p.result.MaxTime = ts
	}
}

func (p *parser) addSpan(s *Span) {
	// short file lookups still count as evidence for duplicate packages
	if s.Event.Name == EventFindSourceFile {
		p.recordPackage(s.Event)
	}
	if s.Duration() >= p.opts.MinDuration {
		p.result.Spans = append(p.result.Spans, s)
	}
}

func (p *parser) recordPackage(e *Event) {
	path, ok := e.StringArg("fileName")
	if !ok {
		if path, ok = e.StringArg("path"); !ok {
			return
		}
	}
	info, ok := packageutil.NodePackageFromPath(path)
	if !ok {
		return
	}
	paths, exists := p.result.PackagePaths[info.Package]
	if !exists {
		paths = make(map[string]struct{})
		p.result.PackagePaths[info.Package] = paths
	}
	paths[info.Root] = struct{}{}
}
