package nodetree

import (
	"sort"

	"github.com/getsentry/hotspots/internal/traceevent"
)

type (
	Node struct {
		StartUS  float64           `json:"start_us"`
		EndUS    float64           `json:"end_us"`
		Event    *traceevent.Event `json:"event,omitempty"`
		Children []*Node           `json:"children,omitempty"`
	}

	Thresholds struct {
		// ThresholdDuration is the duration, in microseconds, from which a
		// span is always kept.
		ThresholdDuration float64
		// MinPercentage is the fraction of its parent's duration from which
		// a shorter span is kept.
		MinPercentage float64
	}
)

func NodeFromSpan(s *traceevent.Span) *Node {
	return &Node{
		StartUS: s.Start,
		EndUS:   s.End,
		Event:   s.Event,
	}
}

func (n *Node) DurationUS() float64 {
	return n.EndUS - n.StartUS
}

func (n *Node) Wraps(v *Node) bool {
	return n.StartUS <= v.StartUS && v.EndUS <= n.EndUS
}

// WithUnterminated returns the spans of the result followed by one span per
// unterminated event, closed at the end of the trace.
func WithUnterminated(r *traceevent.ParseResult) []*traceevent.Span {
	spans := make([]*traceevent.Span, 0, len(r.Spans)+len(r.Unterminated))
	spans = append(spans, r.Spans...)
	for _, e := range r.Unterminated {
		spans = append(spans, &traceevent.Span{
			Start: float64(e.Timestamp),
			End:   r.MaxTime,
			Event: e,
		})
	}
	return spans
}

// Build assembles the spans into a tree rooted at a synthetic node covering
// [minTime, maxTime]. A span is kept when it's long enough in absolute terms
// or relative to the closest kept span containing it, discarded spans don't
// take part in the rest of the construction.
func Build(spans []*traceevent.Span, minTime, maxTime float64, t Thresholds) *Node {
	sorted := make([]*traceevent.Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	root := &Node{StartUS: minTime, EndUS: maxTime}
	stack := []*Node{root}
	for _, s := range sorted {
		for len(stack) > 1 && stack[len(stack)-1].EndUS <= s.Start {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		d := s.Duration()
		if d < t.ThresholdDuration && d < t.MinPercentage*parent.DurationUS() {
			continue
		}
		n := NodeFromSpan(s)
		parent.Children = append(parent.Children, n)
		stack = append(stack, n)
	}
	return root
}

// Walk calls fn for n and each of its descendants, parents first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}
