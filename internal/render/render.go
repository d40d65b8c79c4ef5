// Package render writes reports for people (an indented, optionally
// colored tree) and for programs (JSON).
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/getsentry/hotspots/internal/analyzer"
	"github.com/getsentry/hotspots/internal/highlight"
	"github.com/getsentry/hotspots/internal/metrics"
	"github.com/getsentry/hotspots/internal/typegraph"
)

// UseColor resolves a color mode (auto, on or off) for output written to f.
func UseColor(mode string, f *os.File) bool {
	switch mode {
	case "on":
		return true
	case "off":
		return false
	}
	if os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// JSON writes v indented.
func JSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type palette struct {
	heading  *color.Color
	slow     *color.Color
	warm     *color.Color
	location *color.Color
	hint     *color.Color
	failure  *color.Color
}

func newPalette(colored bool) palette {
	p := palette{
		heading:  color.New(color.Bold),
		slow:     color.New(color.FgRed, color.Bold),
		warm:     color.New(color.FgYellow),
		location: color.New(color.FgCyan),
		hint:     color.New(color.FgGreen),
		failure:  color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.heading, p.slow, p.warm, p.location, p.hint, p.failure} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

type entry struct {
	text     string
	children []entry
}

// Text writes the report as a tree.
func Text(w io.Writer, r *highlight.Report, colored bool) error {
	p := newPalette(colored)
	var b strings.Builder
	if !r.HasFindings() {
		b.WriteString("No hot spots found\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	if len(r.HotSpots) > 0 {
		b.WriteString(p.heading.Sprint("Hot Spots") + "\n")
		writeEntries(&b, p.hotSpots(r.HotSpots), "")
	}
	if len(r.DuplicatePackages) > 0 {
		b.WriteString(p.heading.Sprint("Duplicate Packages") + "\n")
		writeEntries(&b, p.duplicates(r.DuplicatePackages), "")
	}
	if len(r.Unterminated) > 0 {
		b.WriteString(p.heading.Sprint("Unterminated Events") + "\n")
		writeEntries(&b, p.unterminated(r.Unterminated), "")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Results writes the outcome of every project of a directory analysis.
func Results(w io.Writer, results []analyzer.Result, colored bool) error {
	p := newPalette(colored)
	for i, res := range results {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", p.heading.Sprint("Analyzed"), res.Project.Name); err != nil {
			return err
		}
		if res.Err != nil {
			if _, err := fmt.Fprintf(w, "%s %v\n", p.failure.Sprint("Error:"), res.Err); err != nil {
				return err
			}
			continue
		}
		if err := Text(w, res.Report, colored); err != nil {
			return err
		}
	}
	return nil
}

// Summary writes the hot spots shared by the projects of a directory
// analysis.
func Summary(w io.Writer, hotSpots []metrics.HotSpotMetrics, colored bool) error {
	p := newPalette(colored)
	var b strings.Builder
	b.WriteString(p.heading.Sprint("Summary") + "\n")
	if len(hotSpots) == 0 {
		b.WriteString("No hot spots found\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	entries := make([]entry, 0, len(hotSpots))
	for _, m := range hotSpots {
		text := m.Label
		if m.Path != "" {
			text += " " + p.location.Sprint(m.Path)
		}
		text += fmt.Sprintf(" (total %s in %d projects)", p.duration(m.Sum), m.Count)
		entries = append(entries, entry{
			text: text,
			children: []entry{
				{text: fmt.Sprintf("p75 %dms, p95 %dms, p99 %dms, avg %.1fms", m.P75, m.P95, m.P99, m.Avg)},
				{text: "worst: " + m.Worst},
				{text: "seen in: " + strings.Join(m.Examples, ", ")},
			},
		})
	}
	writeEntries(&b, entries, "")
	_, err := io.WriteString(w, b.String())
	return err
}

func (p palette) hotSpots(nodes []*highlight.Node) []entry {
	entries := make([]entry, 0, len(nodes))
	for _, n := range nodes {
		e := entry{text: p.hotSpot(n)}
		for _, t := range n.Types {
			e.children = append(e.children, p.typeTree(t))
		}
		for _, s := range n.Imports {
			e.children = append(e.children, entry{text: p.hint.Sprintf(
				"Consider adding `import %q` which is used in %d places", s.Specifier, s.Count,
			)})
		}
		e.children = append(e.children, p.hotSpots(n.Children)...)
		entries = append(entries, e)
	}
	return entries
}

func (p palette) hotSpot(n *highlight.Node) string {
	var b strings.Builder
	b.WriteString(n.Label)
	if loc := nodeLocation(n); loc != "" {
		b.WriteString(" " + p.location.Sprint(loc))
	}
	b.WriteString(" (" + p.duration(n.DurationMS) + ")")
	return b.String()
}

func nodeLocation(n *highlight.Node) string {
	if n.Path == "" {
		return ""
	}
	switch {
	case n.Start != nil && n.End != nil:
		return fmt.Sprintf("%s:%d:%d-%d:%d", n.Path, n.Start.Line, n.Start.Char, n.End.Line, n.End.Char)
	case n.StartOffset != nil && n.EndOffset != nil:
		return fmt.Sprintf("%s[%d,%d]", n.Path, *n.StartOffset, *n.EndOffset)
	default:
		return n.Path
	}
}

func (p palette) duration(ms int) string {
	s := fmt.Sprintf("%dms", ms)
	switch {
	case ms >= 1000:
		return p.slow.Sprint(s)
	case ms >= 500:
		return p.warm.Sprint(s)
	default:
		return s
	}
}

func (p palette) typeTree(n *typegraph.Node) entry {
	t := n.Type
	text := fmt.Sprintf("%s #%d", t.Kind, t.ID)
	if name := t.Name(); name != "" {
		text += " " + name
	}
	if l := t.Location(); l != nil {
		loc := l.Path
		if l.Start != nil {
			loc += fmt.Sprintf(":%d:%d", l.Start.Line, l.Start.Char)
		}
		text += " " + p.location.Sprint(loc)
	}
	e := entry{text: text}
	for _, c := range n.Children {
		e.children = append(e.children, p.typeTree(c))
	}
	return e
}

func (p palette) duplicates(packages []highlight.DuplicatePackage) []entry {
	entries := make([]entry, 0, len(packages))
	for _, d := range packages {
		e := entry{text: p.warm.Sprint(d.Name)}
		for _, i := range d.Instances {
			text := i.Path
			if i.Version != "" {
				text += " (" + i.Version + ")"
			}
			e.children = append(e.children, entry{text: text})
		}
		entries = append(entries, e)
	}
	return entries
}

func (p palette) unterminated(events []highlight.UnterminatedEvent) []entry {
	entries := make([]entry, 0, len(events))
	for _, u := range events {
		text := fmt.Sprintf("%s (started at %dms)", u.Name, u.StartMS)
		if path, ok := u.Args["path"].(string); ok {
			text += " " + p.location.Sprint(path)
		}
		entries = append(entries, entry{text: text})
	}
	return entries
}

func writeEntries(b *strings.Builder, entries []entry, prefix string) {
	for i, e := range entries {
		branch, indent := "├─ ", "│  "
		if i == len(entries)-1 {
			branch, indent = "└─ ", "   "
		}
		b.WriteString(prefix + branch + e.text + "\n")
		writeEntries(b, e.children, prefix+indent)
	}
}
