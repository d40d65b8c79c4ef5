package highlight

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/getsentry/hotspots/internal/nodetree"
	"github.com/getsentry/hotspots/internal/packageutil"
	"github.com/getsentry/hotspots/internal/position"
	"github.com/getsentry/hotspots/internal/traceevent"
	"github.com/getsentry/hotspots/internal/typegraph"
)

const (
	EventCheckSourceFile         = "checkSourceFile"
	EventEmitDeclarationFile     = "emitDeclarationFileOrBundle"
	EventStructuredTypeRelatedTo = "structuredTypeRelatedTo"
	EventGetVariancesWorker      = "getVariancesWorker"

	CategoryCheck = "check"
)

type Options struct {
	// ImportExpressionThreshold is the number of dynamic imports of the
	// same module from which a static import is suggested.
	ImportExpressionThreshold int
	ExpandTypes               bool
	// Types is nil when no types file is available.
	Types     *typegraph.Graph
	Sources   SourceOpener
	Manifests packageutil.ManifestReader
}

type positionRequest struct {
	query position.Query
	apply func(position.Position)
}

type assembler struct {
	opts     Options
	logger   *zerolog.Logger
	requests map[string][]positionRequest
	// report copies of the graph locations, queued for normalization once
	locations map[*typegraph.Location]*typegraph.Location
}

// Assemble builds the report for the hot path tree of a parsed trace. The
// types graph in opts is only read, the report holds normalized copies of
// its locations.
func Assemble(ctx context.Context, root *nodetree.Node, result *traceevent.ParseResult, opts Options) *Report {
	if opts.Sources == nil {
		opts.Sources = FileSourceOpener{}
	}
	a := &assembler{
		opts:      opts,
		logger:    zerolog.Ctx(ctx),
		requests:  make(map[string][]positionRequest),
		locations: make(map[*typegraph.Location]*typegraph.Location),
	}

	r := &Report{
		HotSpots:          a.visit(root, ""),
		DuplicatePackages: DuplicatePackages(result.PackagePaths, opts.Manifests),
		Unterminated:      unterminated(result),
	}
	if r.HotSpots == nil {
		r.HotSpots = []*Node{}
	}
	if r.DuplicatePackages == nil {
		r.DuplicatePackages = []DuplicatePackage{}
	}
	a.normalize()
	return r
}

// visit returns the nodes n turns into: itself with its children, or its
// children alone when n isn't worth a label.
func (a *assembler) visit(n *nodetree.Node, file string) []*Node {
	if p, ok := n.Event.StringArg("path"); ok {
		file = p
	}

	children := make([]*nodetree.Node, len(n.Children))
	copy(children, n.Children)
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].DurationUS() > children[j].DurationUS()
	})
	var kids []*Node
	for _, c := range children {
		kids = append(kids, a.visit(c, file)...)
	}

	hn := a.describe(n, file)
	if hn == nil {
		return kids
	}
	hn.DurationMS = milliseconds(n.DurationUS())
	hn.Children = kids
	return []*Node{hn}
}

func (a *assembler) describe(n *nodetree.Node, file string) *Node {
	e := n.Event
	if e == nil {
		return nil
	}
	switch e.Name {
	case EventCheckSourceFile:
		return &Node{Label: "Check file", Path: file}

	case EventEmitDeclarationFile:
		path, _ := e.StringArg("declarationFilePath")
		hn := &Node{Label: "Emit declarations file", Path: path}
		if path != "" {
			hn.Imports = a.scanImports(path)
		}
		return hn

	case EventStructuredTypeRelatedTo:
		source, sok := e.NumberArg("sourceId")
		target, tok := e.NumberArg("targetId")
		if !sok || !tok {
			return nil
		}
		hn := &Node{Label: fmt.Sprintf("Compare types %s and %s", formatID(source), formatID(target))}
		hn.Types = a.typeTrees(source, target)
		return hn

	case EventGetVariancesWorker:
		id, ok := e.NumberArg("id")
		if !ok {
			return nil
		}
		hn := &Node{Label: fmt.Sprintf("Determine variance of type %s", formatID(id))}
		hn.Types = a.typeTrees(id)
		return hn
	}

	if e.Category != CategoryCheck {
		return nil
	}
	pos, pok := e.NumberArg("pos")
	end, eok := e.NumberArg("end")
	if !pok || !eok {
		return nil
	}
	start, sok := toOffset(pos)
	stop, tok := toOffset(end)
	if !sok || !tok {
		return nil
	}
	hn := &Node{
		Label:       Unmangle(e.Name),
		Path:        file,
		StartOffset: &start,
		EndOffset:   &stop,
	}
	if file != "" {
		a.request(file, position.Query{Offset: start}, func(p position.Position) {
			hn.Start = &p
		})
		a.request(file, position.Query{Offset: stop, Fixed: true}, func(p position.Position) {
			hn.End = &p
		})
	}
	return hn
}

func (a *assembler) scanImports(path string) []ImportSuggestion {
	f, err := a.opts.Sources.Open(path)
	if err != nil {
		a.logger.Debug().Err(err).Str("path", path).Msg("declaration file can't be read")
		return nil
	}
	defer f.Close()
	counts, err := ScanImports(f)
	if err != nil {
		a.logger.Debug().Err(err).Str("path", path).Msg("declaration file can't be scanned")
		return nil
	}
	return suggestImports(counts, a.opts.ImportExpressionThreshold)
}

func (a *assembler) typeTrees(ids ...float64) []*typegraph.Node {
	if a.opts.Types == nil {
		return nil
	}
	trees := make([]*typegraph.Node, 0, len(ids))
	for _, f := range ids {
		id, ok := toOffset(f)
		if !ok {
			continue
		}
		tree := a.opts.Types.Tree(id, a.opts.ExpandTypes)
		tree.Walk(func(n *typegraph.Node) {
			n.Type = a.withReportLocation(n.Type)
		})
		trees = append(trees, tree)
	}
	return trees
}

// withReportLocation returns t, or a copy of t holding the report's copy of
// its location when it has one.
func (a *assembler) withReportLocation(t *typegraph.SimplifiedType) *typegraph.SimplifiedType {
	l := t.Location()
	if l == nil {
		return t
	}
	c, ok := a.locations[l]
	if !ok {
		lc := *l
		c = &lc
		a.locations[l] = c
		a.requestLocation(c)
	}
	copied := *t
	copied.Fields = make([]typegraph.Field, len(t.Fields))
	for i, f := range t.Fields {
		if f.Key == "location" {
			f.Value = c
		}
		copied.Fields[i] = f
	}
	return &copied
}

func (a *assembler) requestLocation(l *typegraph.Location) {
	if s := l.Start; s != nil {
		a.request(l.Path, position.QueryLineChar(s.Line, s.Char), func(p position.Position) {
			l.Start = &typegraph.LineChar{Line: p.Line, Char: p.Char}
		})
	}
	if e := l.End; e != nil {
		a.request(l.Path, position.Query{Line: e.Line, Char: e.Char, ByLineChar: true, Fixed: true}, func(p position.Position) {
			l.End = &typegraph.LineChar{Line: p.Line, Char: p.Char}
		})
	}
}

func (a *assembler) request(file string, q position.Query, apply func(position.Position)) {
	a.requests[file] = append(a.requests[file], positionRequest{query: q, apply: apply})
}

// normalize resolves the queued positions with one pass over each file.
// Files that can't be read keep their raw positions.
func (a *assembler) normalize() {
	files := make([]string, 0, len(a.requests))
	for f := range a.requests {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, file := range files {
		requests := a.requests[file]
		queries := make([]position.Query, len(requests))
		for i, r := range requests {
			queries[i] = r.query
		}
		positions, err := a.readPositions(file, queries)
		if err != nil {
			a.logger.Debug().Err(err).Str("path", file).Msg("source file can't be read, keeping raw positions")
			continue
		}
		for i, p := range positions {
			requests[i].apply(p)
		}
	}
}

func (a *assembler) readPositions(file string, queries []position.Query) ([]position.Position, error) {
	f, err := a.opts.Sources.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return position.Normalize(f, queries)
}

func unterminated(result *traceevent.ParseResult) []UnterminatedEvent {
	events := make([]UnterminatedEvent, 0, len(result.Unterminated))
	for _, e := range result.Unterminated {
		events = append(events, UnterminatedEvent{
			Name:     e.Name,
			Category: e.Category,
			StartMS:  milliseconds(float64(e.Timestamp) - result.MinTime),
			Args:     e.Args,
		})
	}
	return events
}

// Unmangle turns a camel cased event name into a sentence, checkExpression
// becoming "Check expression".
func Unmangle(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatID(f float64) string {
	if id, ok := toOffset(f); ok {
		return fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%g", f)
}
