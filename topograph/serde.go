package topograph

import (
	"encoding/json"
	"fmt"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/topo/lib/geo"
)

// Diagram is the node/edge document exchanged with the editor.
type Diagram struct {
	Nodes []SerializedNode `json:"nodes"`
	Edges []SerializedEdge `json:"edges"`
}

type SerializedNode struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Position geo.Point              `json:"position"`
	ParentID string                 `json:"parentId,omitempty"`
	Width    *float64               `json:"width,omitempty"`
	Height   *float64               `json:"height,omitempty"`
	Measured *Size                  `json:"measured,omitempty"`
	Style    *Size                  `json:"style,omitempty"`
	Locked   bool                   `json:"locked,omitempty"`
	ZIndex   int                    `json:"zIndex,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

type SerializedEdge struct {
	ID           string                 `json:"id"`
	Source       string                 `json:"source"`
	Target       string                 `json:"target"`
	SourceHandle string                 `json:"sourceHandle,omitempty"`
	TargetHandle string                 `json:"targetHandle,omitempty"`
	ZIndex       int                    `json:"zIndex,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

type serializedRouting struct {
	Chain          []string       `json:"chain"`
	CommonAncestor string         `json:"commonAncestor,omitempty"`
	Channel        int            `json:"channel,omitempty"`
	Channels       map[string]int `json:"channels,omitempty"`
	Waypoints      []*geo.Point   `json:"waypoints"`
}

// ParseDiagram decodes a diagram document into a validated graph
func ParseDiagram(b []byte) (_ *Graph, err error) {
	defer xdefer.Errorf(&err, "failed to parse diagram")

	var d Diagram
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return d.Graph()
}

func (d *Diagram) Graph() (*Graph, error) {
	nodes := make([]*Node, 0, len(d.Nodes))
	for _, sn := range d.Nodes {
		n, err := sn.node()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	edges := make([]*Edge, 0, len(d.Edges))
	for _, se := range d.Edges {
		e, err := se.edge()
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return NewGraph(nodes, edges)
}

func (sn SerializedNode) node() (*Node, error) {
	data := copyData(sn.Data)
	n := &Node{
		ID:       sn.ID,
		ParentID: sn.ParentID,
		TopLeft:  geo.NewPoint(sn.Position.X, sn.Position.Y),
		Width:    sn.Width,
		Height:   sn.Height,
		Measured: sn.Measured,
		Style:    sn.Style,
		Locked:   sn.Locked,
		ZIndex:   sn.ZIndex,
		Label:    popString(data, "label"),
	}
	switch sn.Type {
	case "device":
		n.Variant = &Device{
			DeviceType:      popString(data, "deviceType"),
			IconSizePercent: popFloat(data, "iconSize"),
		}
	case "boundary":
		b := &Boundary{
			BoundaryType: popString(data, "boundaryType"),
		}
		if h, ok := data["handler"].(map[string]interface{}); ok {
			delete(data, "handler")
			b.Handler.Side = Side(popString(h, "side"))
			b.Handler.Percent = popFloat(h, "percent")
		}
		if _, ok := data["padding"]; ok {
			p := popFloat(data, "padding")
			b.Padding = &p
		}
		n.Variant = b
	default:
		return nil, fmt.Errorf("node %q has unknown type %q, expected device or boundary", sn.ID, sn.Type)
	}
	if len(data) > 0 {
		n.Data = data
	}
	return n, nil
}

func (se SerializedEdge) edge() (*Edge, error) {
	if se.ID == "" {
		return nil, fmt.Errorf("edge %s -> %s has no id", se.Source, se.Target)
	}
	data := copyData(se.Data)
	e := &Edge{
		ID:           se.ID,
		Source:       se.Source,
		Target:       se.Target,
		SourceHandle: se.SourceHandle,
		TargetHandle: se.TargetHandle,
		ZIndex:       se.ZIndex,
		EdgeType:     popString(data, "edgeType"),
		SourceOffset: popFloat(data, "handleOffset"),
		TargetOffset: popFloat(data, "targetHandleOffset"),
	}
	e.SourceSide = Side(popString(data, "sourceSide"))
	e.TargetSide = Side(popString(data, "targetSide"))
	e.SourceHandleIndex = int(popFloat(data, "handleIndex"))
	e.TargetHandleIndex = int(popFloat(data, "targetHandleIndex"))
	if raw, ok := data["routing"]; ok {
		delete(data, "routing")
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		var sr serializedRouting
		if err := json.Unmarshal(b, &sr); err != nil {
			return nil, fmt.Errorf("edge %q has invalid routing: %w", se.ID, err)
		}
		e.Routing = &Routing{
			Chain:          sr.Chain,
			CommonAncestor: sr.CommonAncestor,
			Channel:        sr.Channel,
			Channels:       sr.Channels,
			Waypoints:      sr.Waypoints,
		}
	}
	if len(data) > 0 {
		e.Data = data
	}
	return e, nil
}

// Serialize converts the graph back into the editor document
func (g *Graph) Serialize() *Diagram {
	d := &Diagram{
		Nodes: make([]SerializedNode, 0, len(g.Nodes)),
		Edges: make([]SerializedEdge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		data := copyData(n.Data)
		if data == nil {
			data = make(map[string]interface{})
		}
		if n.Label != "" {
			data["label"] = n.Label
		}
		sn := SerializedNode{
			ID:       n.ID,
			Position: *n.TopLeft,
			ParentID: n.ParentID,
			Width:    n.Width,
			Height:   n.Height,
			Measured: n.Measured,
			Style:    n.Style,
			Locked:   n.Locked,
			ZIndex:   n.ZIndex,
		}
		switch v := n.Variant.(type) {
		case *Device:
			sn.Type = "device"
			if v.DeviceType != "" {
				data["deviceType"] = v.DeviceType
			}
			if v.IconSizePercent != 0 {
				data["iconSize"] = v.IconSizePercent
			}
		case *Boundary:
			sn.Type = "boundary"
			if v.BoundaryType != "" {
				data["boundaryType"] = v.BoundaryType
			}
			if v.Handler.Side != "" || v.Handler.Percent != 0 {
				data["handler"] = map[string]interface{}{
					"side":    string(v.Handler.Side),
					"percent": v.Handler.Percent,
				}
			}
			if v.Padding != nil {
				data["padding"] = *v.Padding
			}
		}
		if len(data) > 0 {
			sn.Data = data
		}
		d.Nodes = append(d.Nodes, sn)
	}
	for _, e := range g.Edges {
		data := copyData(e.Data)
		if data == nil {
			data = make(map[string]interface{})
		}
		if e.EdgeType != "" {
			data["edgeType"] = e.EdgeType
		}
		data["handleOffset"] = e.SourceOffset
		data["targetHandleOffset"] = e.TargetOffset
		data["handleIndex"] = e.SourceHandleIndex
		data["targetHandleIndex"] = e.TargetHandleIndex
		if e.SourceSide != "" {
			data["sourceSide"] = string(e.SourceSide)
		}
		if e.TargetSide != "" {
			data["targetSide"] = string(e.TargetSide)
		}
		if e.Routing != nil {
			data["routing"] = serializedRouting{
				Chain:          e.Routing.Chain,
				CommonAncestor: e.Routing.CommonAncestor,
				Channel:        e.Routing.Channel,
				Channels:       e.Routing.Channels,
				Waypoints:      e.Routing.Waypoints,
			}
		}
		d.Edges = append(d.Edges, SerializedEdge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
			ZIndex:       e.ZIndex,
			Data:         data,
		})
	}
	return d
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Serialize())
}

func copyData(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func popString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key].(string)
	if ok {
		delete(m, key)
	}
	return v
}

func popFloat(m map[string]interface{}, key string) float64 {
	if m == nil {
		return 0
	}
	v, ok := m[key].(float64)
	if ok {
		delete(m, key)
	}
	return v
}
