package typegraph

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/getsentry/hotspots/internal/errorutil"
	"github.com/getsentry/hotspots/internal/testutil"
)

type treeShape struct {
	ID       int
	Kind     Kind
	Children []treeShape
}

func shapeOf(n *Node) treeShape {
	s := treeShape{ID: n.Type.ID, Kind: n.Type.Kind}
	for _, c := range n.Children {
		s.Children = append(s.Children, shapeOf(c))
	}
	return s
}

func loadGraph(t *testing.T, s string) *Graph {
	t.Helper()
	g, err := LoadGraph(strings.NewReader(s))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return g
}

func TestTree(t *testing.T) {
	tests := []struct {
		name   string
		types  string
		root   int
		expand bool
		want   treeShape
	}{
		{
			name:   "truncated file with a missing reference",
			types:  `[{"id":1,"intrinsicName":"any"},{"id":2,"unionTypes":[1,3]},{"id":3,"intr`,
			root:   2,
			expand: true,
			want: treeShape{ID: 2, Kind: KindUnion, Children: []treeShape{
				{ID: 1, Kind: KindIntrinsic},
				{ID: 3, Kind: KindMissing},
			}},
		},
		{
			name:   "self reference",
			types:  `[{"id":1,"symbolName":"Box","instantiatedType":1,"typeArguments":[1],"flags":["Object"]}]`,
			root:   1,
			expand: true,
			want: treeShape{ID: 1, Kind: KindGenericType, Children: []treeShape{
				{ID: 1, Kind: KindGenericType},
			}},
		},
		{
			name:   "indirect cycle",
			types:  `[{"id":1,"unionTypes":[2]},{"id":2,"intersectionTypes":[1,3]},{"id":3,"intrinsicName":"never"}]`,
			root:   1,
			expand: true,
			want: treeShape{ID: 1, Kind: KindUnion, Children: []treeShape{
				{ID: 2, Kind: KindIntersection, Children: []treeShape{
					{ID: 1, Kind: KindUnion},
					{ID: 3, Kind: KindIntrinsic},
				}},
			}},
		},
		{
			name:   "siblings revisit a shared type",
			types:  `[{"id":1,"unionTypes":[2,2]},{"id":2,"keyofType":3},{"id":3,"intrinsicName":"string"}]`,
			root:   1,
			expand: true,
			want: treeShape{ID: 1, Kind: KindUnion, Children: []treeShape{
				{ID: 2, Kind: KindIndexType, Children: []treeShape{{ID: 3, Kind: KindIntrinsic}}},
				{ID: 2, Kind: KindIndexType, Children: []treeShape{{ID: 3, Kind: KindIntrinsic}}},
			}},
		},
		{
			name:   "not expanded",
			types:  `[{"id":1,"unionTypes":[2]},{"id":2,"intrinsicName":"any"}]`,
			root:   1,
			expand: false,
			want:   treeShape{ID: 1, Kind: KindUnion},
		},
		{
			name:   "root out of range",
			types:  `[]`,
			root:   4,
			expand: true,
			want:   treeShape{ID: 4, Kind: KindMissing},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			g := loadGraph(t, test.types)
			got := shapeOf(g.Tree(test.root, test.expand))
			if diff := testutil.Diff(got, test.want); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		})
	}
}

// Shared types below a diamond are expanded once per path, so each diamond
// of the chain doubles the tree below it.
func TestTreeDiamondChainSize(t *testing.T) {
	g := loadGraph(t, `[
		{"id":1,"unionTypes":[2,3]},
		{"id":2,"keyofType":4},
		{"id":3,"keyofType":4},
		{"id":4,"unionTypes":[5,6]},
		{"id":5,"keyofType":7},
		{"id":6,"keyofType":7},
		{"id":7,"intrinsicName":"string"}
	]`)
	nodes, ids := 0, make(map[int]int)
	g.Tree(1, true).Walk(func(n *Node) {
		nodes++
		ids[n.Type.ID]++
	})
	if nodes != 13 {
		t.Fatalf("expected 13 nodes, got %d", nodes)
	}
	want := map[int]int{1: 1, 2: 1, 3: 1, 4: 2, 5: 2, 6: 2, 7: 4}
	if diff := testutil.Diff(ids, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestTypeIsCached(t *testing.T) {
	g := loadGraph(t, `[{"id":1,"intrinsicName":"any"}]`)
	if g.Type(1) != g.Type(1) {
		t.Fatal("expected the same simplified type on every lookup")
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", g.Len())
	}
}

func TestLoadGraphMalformed(t *testing.T) {
	_, err := LoadGraph(strings.NewReader(`[{"id":1},{"a": tru}]`))
	if !errors.Is(err, errorutil.ErrMalformedInput) {
		t.Fatalf("expected %v, got %v", errorutil.ErrMalformedInput, err)
	}
}

func TestNodeMarshalJSON(t *testing.T) {
	g := loadGraph(t, `[{"id":1,"unionTypes":[2]},{"id":2,"intrinsicName":"any"}]`)
	b, err := json.Marshal(g.Tree(1, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"id":1,"kind":"Union","types":[2],"children":[{"id":2,"kind":"Intrinsic","name":"any"}]}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}
}

func TestNodeUnmarshalJSONKeepsLayout(t *testing.T) {
	g := loadGraph(t, `[
		{"id":1,"symbolName":"Foo","flags":["Object"],"aliasTypeArguments":[2],"zeta":true,"display":"Foo<any>","firstDeclaration":{"path":"/a.ts","start":{"line":1,"character":1}}},
		{"id":2,"intrinsicName":"any"}
	]`)
	stored, err := json.Marshal(g.Tree(1, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var n Node
	if err := json.Unmarshal(stored, &n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := testutil.Diff(n.Type.Location(), &Location{Path: "/a.ts", Start: &LineChar{Line: 1, Char: 1}}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	again, err := json.Marshal(&n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(again) != string(stored) {
		t.Fatalf("expected %s, got %s", stored, again)
	}
}
