// Package speedscope exports a hot path tree as an evented profile in the
// speedscope file format, see https://www.speedscope.app/file-format-schema.json.
package speedscope

import (
	"github.com/getsentry/hotspots/internal/nodetree"
)

const (
	Schema = "https://www.speedscope.app/file-format-schema.json"

	ValueUnitMicroseconds ValueUnit = "microseconds"

	EventTypeOpenFrame  EventType = "O"
	EventTypeCloseFrame EventType = "C"

	ProfileTypeEvented ProfileType = "evented"
)

type (
	Frame struct {
		Name string `json:"name"`
		File string `json:"file,omitempty"`
	}

	Event struct {
		Type  EventType `json:"type"`
		Frame int       `json:"frame"`
		At    float64   `json:"at"`
	}

	EventedProfile struct {
		Type       ProfileType `json:"type"`
		Name       string      `json:"name"`
		Unit       ValueUnit   `json:"unit"`
		StartValue float64     `json:"startValue"`
		EndValue   float64     `json:"endValue"`
		Events     []Event     `json:"events"`
	}

	SharedData struct {
		Frames []Frame `json:"frames"`
	}

	EventType   string
	ProfileType string
	ValueUnit   string

	Output struct {
		Schema             string           `json:"$schema"`
		Name               string           `json:"name"`
		Exporter           string           `json:"exporter,omitempty"`
		ActiveProfileIndex int              `json:"activeProfileIndex"`
		Profiles           []EventedProfile `json:"profiles"`
		Shared             SharedData       `json:"shared"`
	}
)

type frameKey struct {
	name string
	file string
}

type exporter struct {
	frames  []Frame
	indices map[frameKey]int
	events  []Event
	origin  float64
}

// FromTree returns a single evented profile of the tree rooted at root.
// Times are relative to the start of the root, a node closes no later than
// its parent.
func FromTree(root *nodetree.Node, name, exporterName string) Output {
	e := exporter{
		indices: make(map[frameKey]int),
		events:  []Event{},
		origin:  root.StartUS,
	}
	e.visit(root, root.EndUS)
	frames := e.frames
	if frames == nil {
		frames = []Frame{}
	}
	return Output{
		Schema:   Schema,
		Name:     name,
		Exporter: exporterName,
		Profiles: []EventedProfile{
			{
				Type:       ProfileTypeEvented,
				Name:       name,
				Unit:       ValueUnitMicroseconds,
				StartValue: 0,
				EndValue:   root.DurationUS(),
				Events:     e.events,
			},
		},
		Shared: SharedData{Frames: frames},
	}
}

func (e *exporter) visit(n *nodetree.Node, limit float64) {
	end := n.EndUS
	if end > limit {
		end = limit
	}
	if n.Event == nil {
		for _, c := range n.Children {
			e.visit(c, end)
		}
		return
	}
	frame := e.frame(n)
	e.events = append(e.events, Event{Type: EventTypeOpenFrame, Frame: frame, At: n.StartUS - e.origin})
	for _, c := range n.Children {
		e.visit(c, end)
	}
	e.events = append(e.events, Event{Type: EventTypeCloseFrame, Frame: frame, At: end - e.origin})
}

func (e *exporter) frame(n *nodetree.Node) int {
	k := frameKey{name: n.Event.Name}
	if path, ok := n.Event.Args["path"].(string); ok {
		k.file = path
	}
	if i, ok := e.indices[k]; ok {
		return i
	}
	i := len(e.frames)
	e.frames = append(e.frames, Frame{Name: k.name, File: k.file})
	e.indices[k] = i
	return i
}
