package typegraph

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/getsentry/hotspots/internal/errorutil"
	"github.com/getsentry/hotspots/internal/jsonstream"
)

type (
	// Graph holds the raw records of one types file, record i having id
	// i+1, and caches their simplified form.
	Graph struct {
		records    []Record
		simplified map[int]*SimplifiedType
	}

	Node struct {
		Type     *SimplifiedType
		Children []*Node
	}
)

func NewGraph(records []Record) *Graph {
	return &Graph{
		records:    records,
		simplified: make(map[int]*SimplifiedType),
	}
}

// LoadGraph reads a types file. A file cut short keeps the records read so
// far.
func LoadGraph(r io.Reader) (*Graph, error) {
	s := jsonstream.NewScanner(r)
	var records []Record
	for {
		raw, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("type %d: %w: %v", len(records)+1, errorutil.ErrMalformedInput, err)
		}
		records = append(records, record)
	}
	return NewGraph(records), nil
}

func (g *Graph) Len() int {
	return len(g.records)
}

// Type returns the simplified type with the given id, or a Missing type
// when the file holds no such record.
func (g *Graph) Type(id int) *SimplifiedType {
	if t, ok := g.simplified[id]; ok {
		return t
	}
	var t *SimplifiedType
	if id < 1 || id > len(g.records) || g.records[id-1] == nil {
		t = &SimplifiedType{ID: id, Kind: KindMissing}
	} else {
		t = Simplify(g.records[id-1])
		t.ID = id
	}
	g.simplified[id] = t
	return t
}

// Tree returns the type with the given id and, when expand is set, the
// types it references recursively. A type already on the path from the
// root is emitted again without its children.
func (g *Graph) Tree(id int, expand bool) *Node {
	if !expand {
		return &Node{Type: g.Type(id)}
	}
	return g.tree(id, make(map[int]bool))
}

func (g *Graph) tree(id int, ancestors map[int]bool) *Node {
	n := &Node{Type: g.Type(id)}
	if ancestors[id] {
		return n
	}
	ancestors[id] = true
	for _, ref := range n.Type.References() {
		n.Children = append(n.Children, g.tree(ref, ancestors))
	}
	delete(ancestors, id)
	return n
}

// Walk calls fn on n and every node below it, parents first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.Type.writeJSON(&buf); err != nil {
		return nil, err
	}
	if len(n.Children) > 0 {
		buf.WriteString(`,"children":`)
		b, err := json.Marshal(n.Children)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var tree struct {
		Children []*Node `json:"children"`
	}
	if err := json.Unmarshal(b, &tree); err != nil {
		return err
	}
	t, err := decodeType(b, "children")
	if err != nil {
		return err
	}
	n.Type = t
	n.Children = tree.Children
	return nil
}
