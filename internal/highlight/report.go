// Package highlight turns a hot path tree into the report a person reads:
// labelled hot spots with source positions and type trees, import
// suggestions, duplicated packages and events that never ended.
package highlight

import (
	"fortio.org/safecast"

	"github.com/getsentry/hotspots/internal/position"
	"github.com/getsentry/hotspots/internal/typegraph"
)

type (
	Node struct {
		Label      string `json:"label"`
		DurationMS int    `json:"duration_ms"`
		Path       string `json:"path,omitempty"`
		// Start and End are set once the source of Path could be read,
		// StartOffset and EndOffset hold the raw offsets until then.
		Start       *position.Position `json:"start,omitempty"`
		End         *position.Position `json:"end,omitempty"`
		StartOffset *int               `json:"start_offset,omitempty"`
		EndOffset   *int               `json:"end_offset,omitempty"`
		Types       []*typegraph.Node  `json:"types,omitempty"`
		Imports     []ImportSuggestion `json:"imports,omitempty"`
		Children    []*Node            `json:"children,omitempty"`
	}

	// ImportSuggestion is a module imported dynamically often enough from a
	// declaration file that a static import would be cheaper.
	ImportSuggestion struct {
		Specifier string `json:"specifier"`
		Count     int    `json:"count"`
	}

	PackageInstance struct {
		Path    string `json:"path"`
		Version string `json:"version,omitempty"`
	}

	DuplicatePackage struct {
		Name      string            `json:"name"`
		Instances []PackageInstance `json:"instances"`
	}

	UnterminatedEvent struct {
		Name     string                 `json:"name"`
		Category string                 `json:"category,omitempty"`
		StartMS  int                    `json:"start_ms"`
		Args     map[string]interface{} `json:"args,omitempty"`
	}

	Report struct {
		HotSpots          []*Node             `json:"hot_spots"`
		DuplicatePackages []DuplicatePackage  `json:"duplicate_packages"`
		Unterminated      []UnterminatedEvent `json:"unterminated"`
	}
)

// HasFindings reports whether the report holds anything worth acting on.
func (r *Report) HasFindings() bool {
	return len(r.HotSpots) > 0 || len(r.DuplicatePackages) > 0 || len(r.Unterminated) > 0
}

// SlowestMS returns the duration of the slowest top level hot spot.
func (r *Report) SlowestMS() int {
	slowest := 0
	for _, n := range r.HotSpots {
		if n.DurationMS > slowest {
			slowest = n.DurationMS
		}
	}
	return slowest
}

// Walk calls fn for n and each of its descendants, parents first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

func milliseconds(us float64) int {
	ms, err := safecast.Round[int](us / 1000)
	if err != nil {
		return 0
	}
	return ms
}

func toOffset(f float64) (int, bool) {
	i, err := safecast.Convert[int](f)
	if err != nil {
		return 0, false
	}
	return i, true
}
