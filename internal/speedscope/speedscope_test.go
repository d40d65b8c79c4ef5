package speedscope

import (
	"testing"

	"github.com/getsentry/hotspots/internal/nodetree"
	"github.com/getsentry/hotspots/internal/testutil"
	"github.com/getsentry/hotspots/internal/traceevent"
)

func node(name, path string, start, end float64, children ...*nodetree.Node) *nodetree.Node {
	e := &traceevent.Event{Name: name}
	if path != "" {
		e.Args = map[string]interface{}{"path": path}
	}
	return &nodetree.Node{StartUS: start, EndUS: end, Event: e, Children: children}
}

func TestFromTree(t *testing.T) {
	tests := []struct {
		name   string
		root   *nodetree.Node
		frames []Frame
		events []Event
		end    float64
	}{
		{
			name:   "empty",
			root:   &nodetree.Node{StartUS: 100, EndUS: 100},
			frames: []Frame{},
			events: []Event{},
		},
		{
			name: "nested",
			root: &nodetree.Node{
				StartUS: 1000,
				EndUS:   5000,
				Children: []*nodetree.Node{
					node("checkSourceFile", "/a.ts", 1000, 3000,
						node("checkExpression", "", 1500, 2000),
					),
					node("checkSourceFile", "/b.ts", 3000, 5000,
						node("checkExpression", "", 3500, 4000),
					),
				},
			},
			frames: []Frame{
				{Name: "checkSourceFile", File: "/a.ts"},
				{Name: "checkExpression"},
				{Name: "checkSourceFile", File: "/b.ts"},
			},
			events: []Event{
				{Type: EventTypeOpenFrame, Frame: 0, At: 0},
				{Type: EventTypeOpenFrame, Frame: 1, At: 500},
				{Type: EventTypeCloseFrame, Frame: 1, At: 1000},
				{Type: EventTypeCloseFrame, Frame: 0, At: 2000},
				{Type: EventTypeOpenFrame, Frame: 2, At: 2000},
				{Type: EventTypeOpenFrame, Frame: 1, At: 2500},
				{Type: EventTypeCloseFrame, Frame: 1, At: 3000},
				{Type: EventTypeCloseFrame, Frame: 2, At: 4000},
			},
			end: 4000,
		},
		{
			name: "child overflowing its parent",
			root: &nodetree.Node{
				StartUS: 0,
				EndUS:   300,
				Children: []*nodetree.Node{
					node("outer", "", 0, 200,
						node("inner", "", 100, 300),
					),
				},
			},
			frames: []Frame{{Name: "outer"}, {Name: "inner"}},
			events: []Event{
				{Type: EventTypeOpenFrame, Frame: 0, At: 0},
				{Type: EventTypeOpenFrame, Frame: 1, At: 100},
				{Type: EventTypeCloseFrame, Frame: 1, At: 200},
				{Type: EventTypeCloseFrame, Frame: 0, At: 200},
			},
			end: 300,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := FromTree(tt.root, "project", "hotspots")
			if o.Schema != Schema || o.Name != "project" || o.Exporter != "hotspots" {
				t.Fatalf("unexpected header: %+v", o)
			}
			if diff := testutil.Diff(o.Shared.Frames, tt.frames); diff != "" {
				t.Fatalf("frames mismatch: got - want +\n%s", diff)
			}
			if len(o.Profiles) != 1 {
				t.Fatalf("expected 1 profile, got %d", len(o.Profiles))
			}
			p := o.Profiles[0]
			if p.Type != ProfileTypeEvented || p.Unit != ValueUnitMicroseconds {
				t.Fatalf("unexpected profile type or unit: %s %s", p.Type, p.Unit)
			}
			if p.EndValue != tt.end {
				t.Fatalf("expected end value %v, got %v", tt.end, p.EndValue)
			}
			if diff := testutil.Diff(p.Events, tt.events); diff != "" {
				t.Fatalf("events mismatch: got - want +\n%s", diff)
			}
		})
	}
}
