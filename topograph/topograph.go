// Package topograph holds the diagram model the layout engine operates on: devices, boundaries
// that own them, and the edges between them.
//
// Positions are local: a node's TopLeft is relative to its parent boundary's top-left corner,
// and root nodes are relative to the canvas origin.
package topograph

import (
	"errors"
	"fmt"
	"sort"

	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/topo/lib/geo"
)

const (
	DEFAULT_DEVICE_WIDTH    = 100
	DEFAULT_DEVICE_HEIGHT   = 100
	DEFAULT_BOUNDARY_WIDTH  = 300
	DEFAULT_BOUNDARY_HEIGHT = 200
	DEFAULT_PADDING         = 45
	DEFAULT_HANDLER_PERCENT = 50
)

var ErrParentCycle = errors.New("parent chain contains a cycle")

type Kind int

const (
	KindDevice Kind = iota
	KindBoundary
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindBoundary:
		return "boundary"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Variant is either *Device or *Boundary.
type Variant interface {
	Kind() Kind
}

type Device struct {
	DeviceType string
	// IconSizePercent is how much of the footprint the icon fills, 0 means renderer default.
	IconSizePercent float64
}

func (*Device) Kind() Kind { return KindDevice }

type Boundary struct {
	BoundaryType string
	Handler      HandlerConfig
	// Padding overrides the layout padding for this boundary when set.
	Padding *float64
}

func (*Boundary) Kind() Kind { return KindBoundary }

// HandlerConfig places a boundary's single edge hand-off point on one of its sides.
type HandlerConfig struct {
	Side Side
	// Percent is the distance along the side, 0 at the top/left end and 100 at the bottom/right end.
	Percent float64
}

type Side string

const (
	SideTop    Side = "top"
	SideRight  Side = "right"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
)

func (s Side) Opposite() Side {
	switch s {
	case SideTop:
		return SideBottom
	case SideBottom:
		return SideTop
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	}
	return s
}

func (s Side) IsHorizontal() bool {
	return s == SideLeft || s == SideRight
}

type Direction string

const (
	DirectionTB Direction = "TB"
	DirectionBT Direction = "BT"
	DirectionLR Direction = "LR"
	DirectionRL Direction = "RL"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionTB, DirectionBT, DirectionLR, DirectionRL:
		return Direction(s), nil
	case "":
		return DirectionTB, nil
	}
	return "", fmt.Errorf("unknown direction %q, expected one of TB, BT, LR, RL", s)
}

func (d Direction) IsVertical() bool {
	return d != DirectionLR && d != DirectionRL
}

// Sides returns the exit side of a source and the entry side of a target for an edge
// flowing with the direction.
func (d Direction) Sides() (Side, Side) {
	switch d {
	case DirectionBT:
		return SideTop, SideBottom
	case DirectionLR:
		return SideRight, SideLeft
	case DirectionRL:
		return SideLeft, SideRight
	}
	return SideBottom, SideTop
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Node struct {
	ID       string
	ParentID string
	Label    string

	TopLeft *geo.Point

	// Sizing sources in priority order: Measured, Width/Height, Style, kind default.
	Measured *Size
	Width    *float64
	Height   *float64
	Style    *Size

	Locked bool
	ZIndex int

	Variant Variant

	// Data is carried through untouched for the surrounding editor.
	Data map[string]interface{}
}

func (n *Node) Kind() Kind {
	if n.Variant == nil {
		panic(fmt.Sprintf("topograph: node %q has no device/boundary variant", n.ID))
	}
	return n.Variant.Kind()
}

func (n *Node) IsBoundary() bool {
	_, ok := n.Variant.(*Boundary)
	return ok
}

func (n *Node) IsDevice() bool {
	_, ok := n.Variant.(*Device)
	return ok
}

func (n *Node) AsBoundary() (*Boundary, bool) {
	b, ok := n.Variant.(*Boundary)
	return b, ok
}

func (n *Node) AsDevice() (*Device, bool) {
	d, ok := n.Variant.(*Device)
	return d, ok
}

type SizeSource string

const (
	SourceMeasured SizeSource = "measured"
	SourceExplicit SizeSource = "explicit"
	SourceStyle    SizeSource = "style"
	SourceDefault  SizeSource = "default"
	SourcePresize  SizeSource = "presize"
	SourceLayout   SizeSource = "layout"
)

// Size resolves the node's dimensions. A node without a variant has no default and
// reaching here with one is a programmer error.
func (n *Node) Size() (float64, float64, SizeSource) {
	switch {
	case n.Measured != nil && n.Measured.Width > 0 && n.Measured.Height > 0:
		return n.Measured.Width, n.Measured.Height, SourceMeasured
	case n.Width != nil && n.Height != nil && *n.Width > 0 && *n.Height > 0:
		return *n.Width, *n.Height, SourceExplicit
	case n.Style != nil && n.Style.Width > 0 && n.Style.Height > 0:
		return n.Style.Width, n.Style.Height, SourceStyle
	}
	switch n.Kind() {
	case KindBoundary:
		return DEFAULT_BOUNDARY_WIDTH, DEFAULT_BOUNDARY_HEIGHT, SourceDefault
	default:
		return DEFAULT_DEVICE_WIDTH, DEFAULT_DEVICE_HEIGHT, SourceDefault
	}
}

// SetSize writes dimensions so that they win over any previous source.
func (n *Node) SetSize(w, h float64) {
	n.Width = go2.Pointer(w)
	n.Height = go2.Pointer(h)
	if n.Measured != nil {
		n.Measured = &Size{Width: w, Height: h}
	}
}

// Padding returns the inner padding of a boundary
func (n *Node) Padding(fallback float64) float64 {
	if b, ok := n.AsBoundary(); ok && b.Padding != nil {
		return *b.Padding
	}
	return fallback
}

func (n *Node) Copy() *Node {
	out := *n
	out.TopLeft = n.TopLeft.Copy()
	if n.Measured != nil {
		m := *n.Measured
		out.Measured = &m
	}
	if n.Width != nil {
		out.Width = go2.Pointer(*n.Width)
	}
	if n.Height != nil {
		out.Height = go2.Pointer(*n.Height)
	}
	if n.Style != nil {
		s := *n.Style
		out.Style = &s
	}
	switch v := n.Variant.(type) {
	case *Device:
		d := *v
		out.Variant = &d
	case *Boundary:
		b := *v
		if v.Padding != nil {
			b.Padding = go2.Pointer(*v.Padding)
		}
		out.Variant = &b
	}
	if n.Data != nil {
		out.Data = make(map[string]interface{}, len(n.Data))
		for k, v := range n.Data {
			out.Data[k] = v
		}
	}
	return &out
}

type Edge struct {
	ID     string
	Source string
	Target string

	SourceSide        Side
	TargetSide        Side
	SourceHandle      string
	TargetHandle      string
	SourceHandleIndex int
	TargetHandleIndex int
	// Offsets are in pixels from the center of the side.
	SourceOffset float64
	TargetOffset float64

	EdgeType string
	ZIndex   int

	Routing *Routing

	Data map[string]interface{}
}

// Routing is set on edges that cross boundaries and are routed through handlers.
type Routing struct {
	Chain          []string
	CommonAncestor string
	// Channels maps each handler boundary on the chain to the edge's channel number there.
	Channels  map[string]int
	Channel   int
	Waypoints []*geo.Point
}

func (e *Edge) Copy() *Edge {
	out := *e
	if e.Routing != nil {
		r := *e.Routing
		r.Chain = append([]string(nil), e.Routing.Chain...)
		if e.Routing.Channels != nil {
			r.Channels = make(map[string]int, len(e.Routing.Channels))
			for k, v := range e.Routing.Channels {
				r.Channels[k] = v
			}
		}
		r.Waypoints = make([]*geo.Point, 0, len(e.Routing.Waypoints))
		for _, p := range e.Routing.Waypoints {
			r.Waypoints = append(r.Waypoints, p.Copy())
		}
		out.Routing = &r
	}
	if e.Data != nil {
		out.Data = make(map[string]interface{}, len(e.Data))
		for k, v := range e.Data {
			out.Data[k] = v
		}
	}
	return &out
}

type Graph struct {
	Nodes []*Node
	Edges []*Edge

	index    map[string]*Node
	children map[string][]*Node
}

// NewGraph indexes nodes and checks the ownership tree: ids are unique, every parent exists and
// is a boundary, and no parent chain loops back on itself.
// A node without a position is replaced by a shallow copy placed at the origin, so neither
// nodes nor its elements are modified.
func NewGraph(nodes []*Node, edges []*Edge) (*Graph, error) {
	g := &Graph{
		Nodes: make([]*Node, len(nodes)),
		Edges: edges,
	}
	g.index = make(map[string]*Node, len(nodes))
	for i, n := range nodes {
		if n.ID == "" {
			return nil, errors.New("node with empty id")
		}
		if n.Variant == nil {
			return nil, fmt.Errorf("node %q is neither a device nor a boundary", n.ID)
		}
		if _, ok := g.index[n.ID]; ok {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		if n.TopLeft == nil {
			placed := *n
			placed.TopLeft = geo.NewPoint(0, 0)
			n = &placed
		}
		g.Nodes[i] = n
		g.index[n.ID] = n
	}
	for _, n := range g.Nodes {
		if n.ParentID == "" {
			continue
		}
		p, ok := g.index[n.ParentID]
		if !ok {
			return nil, fmt.Errorf("node %q has unknown parent %q", n.ID, n.ParentID)
		}
		if !p.IsBoundary() {
			return nil, fmt.Errorf("node %q has parent %q which is not a boundary", n.ID, n.ParentID)
		}
	}
	for _, n := range g.Nodes {
		if _, err := g.Ancestors(n.ID); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
	}
	g.reindexChildren()
	return g, nil
}

func (g *Graph) reindexChildren() {
	g.children = make(map[string][]*Node)
	for _, n := range g.Nodes {
		g.children[n.ParentID] = append(g.children[n.ParentID], n)
	}
}

func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.index[id]
	return n, ok
}

// Children returns direct children of id in input order. "" returns root nodes.
func (g *Graph) Children(id string) []*Node {
	return g.children[id]
}

// Ancestors returns the boundary chain of id from its direct parent outward.
func (g *Graph) Ancestors(id string) ([]*Node, error) {
	n, ok := g.index[id]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", id)
	}
	var out []*Node
	visited := map[string]struct{}{id: {}}
	for n.ParentID != "" {
		if _, ok := visited[n.ParentID]; ok {
			return out, ErrParentCycle
		}
		visited[n.ParentID] = struct{}{}
		p, ok := g.index[n.ParentID]
		if !ok {
			return out, fmt.Errorf("unknown parent %q", n.ParentID)
		}
		out = append(out, p)
		n = p
	}
	return out, nil
}

// AncestorIDs is Ancestors without the error, for graphs already validated by NewGraph.
func (g *Graph) AncestorIDs(id string) []string {
	ancestors, _ := g.Ancestors(id)
	ids := make([]string, 0, len(ancestors))
	for _, a := range ancestors {
		ids = append(ids, a.ID)
	}
	return ids
}

// Depth is the number of boundaries enclosing id
func (g *Graph) Depth(id string) int {
	ancestors, _ := g.Ancestors(id)
	return len(ancestors)
}

func (g *Graph) MaxDepth() int {
	max := 0
	for _, n := range g.Nodes {
		max = go2.Max(max, g.Depth(n.ID))
	}
	return max
}

// IsDescendantOf reports whether id sits anywhere below ancestorID
func (g *Graph) IsDescendantOf(id, ancestorID string) bool {
	for _, a := range g.AncestorIDs(id) {
		if a == ancestorID {
			return true
		}
	}
	return false
}

func (g *Graph) Boundaries() []*Node {
	return go2.Filter(g.Nodes, func(n *Node) bool {
		return n.IsBoundary()
	})
}

func (g *Graph) Devices() []*Node {
	return go2.Filter(g.Nodes, func(n *Node) bool {
		return n.IsDevice()
	})
}

// BoundariesDeepestFirst orders boundaries so every boundary comes before its ancestors.
// Ties keep input order.
func (g *Graph) BoundariesDeepestFirst() []*Node {
	boundaries := g.Boundaries()
	depth := make(map[string]int, len(boundaries))
	for _, b := range boundaries {
		depth[b.ID] = g.Depth(b.ID)
	}
	sort.SliceStable(boundaries, func(i, j int) bool {
		return depth[boundaries[i].ID] > depth[boundaries[j].ID]
	})
	return boundaries
}

// AbsolutePosition is the node's top-left in canvas coordinates
func (g *Graph) AbsolutePosition(id string) *geo.Point {
	n, ok := g.index[id]
	if !ok {
		return nil
	}
	p := n.TopLeft.Copy()
	for _, a := range mustAncestors(g, id) {
		p.X += a.TopLeft.X
		p.Y += a.TopLeft.Y
	}
	return p
}

func (g *Graph) AbsoluteBox(id string) *geo.Box {
	n, ok := g.index[id]
	if !ok {
		return nil
	}
	w, h, _ := n.Size()
	return geo.NewBox(g.AbsolutePosition(id), w, h)
}

func (g *Graph) LocalBox(id string) *geo.Box {
	n, ok := g.index[id]
	if !ok {
		return nil
	}
	w, h, _ := n.Size()
	return geo.NewBox(n.TopLeft.Copy(), w, h)
}

func mustAncestors(g *Graph, id string) []*Node {
	ancestors, _ := g.Ancestors(id)
	return ancestors
}

// SameParent reports whether a and b are direct children of the same boundary, or both root nodes.
func (g *Graph) SameParent(a, b string) bool {
	na, ok := g.index[a]
	if !ok {
		return false
	}
	nb, ok := g.index[b]
	if !ok {
		return false
	}
	return na.ParentID == nb.ParentID
}

// Copy deep copies the graph so layout passes never mutate caller-owned nodes.
func (g *Graph) Copy() *Graph {
	nodes := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n.Copy())
	}
	edges := make([]*Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, e.Copy())
	}
	out := &Graph{
		Nodes: nodes,
		Edges: edges,
		index: make(map[string]*Node, len(nodes)),
	}
	for _, n := range nodes {
		out.index[n.ID] = n
	}
	out.reindexChildren()
	return out
}

// Positions snapshots every node's local top-left
func (g *Graph) Positions() map[string]*geo.Point {
	out := make(map[string]*geo.Point, len(g.Nodes))
	for _, n := range g.Nodes {
		out[n.ID] = n.TopLeft.Copy()
	}
	return out
}
