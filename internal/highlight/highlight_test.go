package highlight

import (
	"context"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/getsentry/hotspots/internal/nodetree"
	"github.com/getsentry/hotspots/internal/position"
	"github.com/getsentry/hotspots/internal/testutil"
	"github.com/getsentry/hotspots/internal/traceevent"
	"github.com/getsentry/hotspots/internal/typegraph"
)

const ms = 1000

type memSources map[string]string

func (m memSources) Open(path string) (io.ReadCloser, error) {
	s, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

type memManifests map[string]string

func (m memManifests) Version(dir string) (string, bool) {
	v, ok := m[dir]
	return v, ok
}

func node(name, cat string, args map[string]interface{}, start, end float64, children ...*nodetree.Node) *nodetree.Node {
	return &nodetree.Node{
		StartUS:  start,
		EndUS:    end,
		Event:    &traceevent.Event{Name: name, Category: cat, Args: args},
		Children: children,
	}
}

func TestAssemble(t *testing.T) {
	types, err := typegraph.LoadGraph(strings.NewReader(`[
		{"id":1,"intrinsicName":"string"},
		{"id":2,"symbolName":"Foo","flags":["Object"],"firstDeclaration":{"path":"/src/a.ts","start":{"line":1,"character":1},"end":{"line":2,"character":2}}}
	]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root := &nodetree.Node{StartUS: 0, EndUS: 1000 * ms, Children: []*nodetree.Node{
		node(EventCheckSourceFile, CategoryCheck, map[string]interface{}{"path": "/src/a.ts"}, 0, 300*ms,
			node("checkExpression", CategoryCheck, map[string]interface{}{"pos": 2.0, "end": 5.0}, 10*ms, 200*ms,
				node("bindSourceFile", "bind", nil, 20*ms, 150*ms,
					node("checkVariableDeclaration", CategoryCheck, map[string]interface{}{"pos": 0.0, "end": 3.0}, 30*ms, 100*ms),
				),
			),
		),
		node(EventStructuredTypeRelatedTo, CategoryCheck, map[string]interface{}{"sourceId": 1.0, "targetId": 2.0}, 400*ms, 900*ms),
	}}

	report := Assemble(context.Background(), root, &traceevent.ParseResult{}, Options{
		ExpandTypes: true,
		Types:       types,
		Sources:     memSources{"/src/a.ts": "  foo(bar)\nbaz"},
	})

	want := []*Node{
		{Label: "Compare types 1 and 2", DurationMS: 500},
		{Label: "Check file", Path: "/src/a.ts", DurationMS: 300, Children: []*Node{
			{
				Label:       "Check expression",
				Path:        "/src/a.ts",
				DurationMS:  190,
				Start:       &position.Position{Line: 1, Char: 3},
				End:         &position.Position{Line: 1, Char: 6},
				StartOffset: testutil.IntPtr(2),
				EndOffset:   testutil.IntPtr(5),
				Children: []*Node{
					{
						Label:       "Check variable declaration",
						Path:        "/src/a.ts",
						DurationMS:  70,
						Start:       &position.Position{Line: 1, Char: 3},
						End:         &position.Position{Line: 1, Char: 4},
						StartOffset: testutil.IntPtr(0),
						EndOffset:   testutil.IntPtr(3),
					},
				},
			},
		}},
	}
	if diff := testutil.Diff(report.HotSpots, want, cmpopts.IgnoreFields(Node{}, "Types")); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	trees := report.HotSpots[0].Types
	if len(trees) != 2 {
		t.Fatalf("expected 2 type trees, got %d", len(trees))
	}
	wantLocation := &typegraph.Location{
		Path:  "/src/a.ts",
		Start: &typegraph.LineChar{Line: 1, Char: 3},
		End:   &typegraph.LineChar{Line: 2, Char: 2},
	}
	if diff := testutil.Diff(trees[1].Type.Location(), wantLocation); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestAssembleLeavesTypesUntouched(t *testing.T) {
	types, err := typegraph.LoadGraph(strings.NewReader(`[
		{"id":1,"symbolName":"Foo","flags":["Object"],"firstDeclaration":{"path":"/src/a.ts","start":{"line":1,"character":1},"end":{"line":2,"character":2}}},
		{"id":2,"symbolName":"Bar","flags":["Object"],"aliasTypeArguments":[1,1]}
	]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root := &nodetree.Node{StartUS: 0, EndUS: 1000 * ms, Children: []*nodetree.Node{
		node(EventGetVariancesWorker, CategoryCheck, map[string]interface{}{"id": 2.0}, 0, 600*ms),
	}}
	opts := Options{
		ExpandTypes: true,
		Types:       types,
		Sources:     memSources{"/src/a.ts": "  foo(bar)\nbaz"},
	}
	raw := &typegraph.Location{
		Path:  "/src/a.ts",
		Start: &typegraph.LineChar{Line: 1, Char: 1},
		End:   &typegraph.LineChar{Line: 2, Char: 2},
	}
	normalized := &typegraph.Location{
		Path:  "/src/a.ts",
		Start: &typegraph.LineChar{Line: 1, Char: 3},
		End:   &typegraph.LineChar{Line: 2, Char: 2},
	}

	for i := 0; i < 2; i++ {
		report := Assemble(context.Background(), root, &traceevent.ParseResult{}, opts)
		if len(report.HotSpots) != 1 || len(report.HotSpots[0].Types) != 1 {
			t.Fatalf("expected one hot spot with one type tree, got %+v", report.HotSpots)
		}
		tree := report.HotSpots[0].Types[0]
		if len(tree.Children) != 2 {
			t.Fatalf("expected 2 children, got %d", len(tree.Children))
		}
		for _, c := range tree.Children {
			if diff := testutil.Diff(c.Type.Location(), normalized); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		}
		if tree.Children[0].Type.Location() != tree.Children[1].Type.Location() {
			t.Fatal("expected both references to share one report location")
		}
		if diff := testutil.Diff(types.Type(1).Location(), raw); diff != "" {
			t.Fatalf("graph location changed: got - want +\n%s", diff)
		}
	}
}

func TestAssembleWithoutSource(t *testing.T) {
	root := &nodetree.Node{StartUS: 0, EndUS: 100 * ms, Children: []*nodetree.Node{
		node("checkExpression", CategoryCheck, map[string]interface{}{"path": "/missing.ts", "pos": 4.0, "end": 9.0}, 0, 100*ms),
		node(EventGetVariancesWorker, CategoryCheck, map[string]interface{}{"id": 7.0}, 0, 50*ms),
	}}

	report := Assemble(context.Background(), root, &traceevent.ParseResult{}, Options{
		Sources: memSources{},
	})

	want := []*Node{
		{
			Label:       "Check expression",
			Path:        "/missing.ts",
			DurationMS:  100,
			StartOffset: testutil.IntPtr(4),
			EndOffset:   testutil.IntPtr(9),
		},
		{Label: "Determine variance of type 7", DurationMS: 50},
	}
	if diff := testutil.Diff(report.HotSpots, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestAssembleImportSuggestions(t *testing.T) {
	root := &nodetree.Node{StartUS: 0, EndUS: 100 * ms, Children: []*nodetree.Node{
		node(EventEmitDeclarationFile, "emit", map[string]interface{}{"declarationFilePath": "/out/a.d.ts"}, 0, 100*ms),
	}}
	source := strings.Repeat(`export declare const a: import("./x").X;`+"\n", 3) +
		`export declare const b: import("./y").Y;` + "\n"

	report := Assemble(context.Background(), root, &traceevent.ParseResult{}, Options{
		ImportExpressionThreshold: 2,
		Sources:                   memSources{"/out/a.d.ts": source},
	})

	want := []*Node{
		{
			Label:      "Emit declarations file",
			Path:       "/out/a.d.ts",
			DurationMS: 100,
			Imports:    []ImportSuggestion{{Specifier: "./x", Count: 3}},
		},
	}
	if diff := testutil.Diff(report.HotSpots, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestScanImports(t *testing.T) {
	source := strings.Join([]string{
		`const a = import("./a");`,
		`const b = import ( /* c */ './a' );`,
		"const c = import(`./t`);",
		`// import("./commented")`,
		`const s = "import('./in-string')";`,
		`reimport("./no");`,
		`import.meta;`,
		`const d = import("./esc\"aped");`,
	}, "\n")

	got, err := ScanImports(strings.NewReader(source))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]int{"./a": 2, `./esc"aped`: 1}
	if diff := testutil.Diff(got, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestDuplicatePackages(t *testing.T) {
	paths := map[string]map[string]struct{}{
		"foo": {
			"/b/node_modules/foo": {},
			"/a/node_modules/foo": {},
		},
		"bar": {
			"/a/node_modules/bar": {},
		},
	}
	manifests := memManifests{"/a/node_modules/foo": "1.0.0"}

	got := DuplicatePackages(paths, manifests)
	want := []DuplicatePackage{
		{Name: "foo", Instances: []PackageInstance{
			{Path: "/a/node_modules/foo", Version: "1.0.0"},
			{Path: "/b/node_modules/foo"},
		}},
	}
	if diff := testutil.Diff(got, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestUnmangle(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"checkExpression", "Check expression"},
		{"checkVariableDeclaration", "Check variable declaration"},
		{"check", "Check"},
		{"", ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Unmangle(test.name); got != test.want {
				t.Fatalf("expected %q, got %q", test.want, got)
			}
		})
	}
}

func TestHasFindings(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   bool
	}{
		{name: "empty", report: Report{}, want: false},
		{name: "hot spot", report: Report{HotSpots: []*Node{{Label: "Check file"}}}, want: true},
		{name: "duplicate", report: Report{DuplicatePackages: []DuplicatePackage{{Name: "foo"}}}, want: true},
		{name: "unterminated", report: Report{Unterminated: []UnterminatedEvent{{Name: "emit"}}}, want: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.report.HasFindings(); got != test.want {
				t.Fatalf("expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestMillisecondsAndOffsets(t *testing.T) {
	tests := []struct {
		name string
		us   float64
		want int
	}{
		{name: "rounded down", us: 1499, want: 1},
		{name: "rounded up", us: 1500, want: 2},
		{name: "zero", us: 0, want: 0},
		{name: "out of range", us: 1e300, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := milliseconds(tt.us); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}

	offsets := []struct {
		f    float64
		want int
		ok   bool
	}{
		{f: 42, want: 42, ok: true},
		{f: 4.5, ok: false},
		{f: -1, want: -1, ok: true},
		{f: 1e300, ok: false},
	}
	for _, o := range offsets {
		got, ok := toOffset(o.f)
		if ok != o.ok || (ok && got != o.want) {
			t.Fatalf("toOffset(%v): expected (%d, %v), got (%d, %v)", o.f, o.want, o.ok, got, ok)
		}
	}
}
