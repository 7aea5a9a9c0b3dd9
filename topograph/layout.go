package topograph

import (
	"context"

	"oss.terrastruct.com/topo/lib/geo"
)

// LayoutRequest asks a per-container layout engine to place the direct children of one boundary.
// Nodes and Edges are the whole diagram and must be treated as read only.
type LayoutRequest struct {
	// BoundaryID is the container being laid out, "" for the canvas root.
	BoundaryID  string
	Graph       *Graph
	Target      *geo.Box
	Direction   Direction
	NodeSpacing float64
	RankSpacing float64
	Dimensions  *Dimensions
}

// ContainerLayout returns new local positions keyed by child id.
// Children missing from the result keep their position.
type ContainerLayout func(ctx context.Context, req *LayoutRequest) (map[string]*geo.Point, error)

type NestedRequest struct {
	Direction   Direction
	NodeSpacing float64
	RankSpacing float64
	Padding     float64
	Dimensions  *Dimensions
}

// NestedLayout lays out the whole ownership tree in one call, writing positions and boundary
// sizes directly into g.
type NestedLayout func(ctx context.Context, g *Graph, req *NestedRequest) error

// LiftedEdge is an edge between two direct children of a container, derived from an edge whose
// endpoints are those children or their descendants.
type LiftedEdge struct {
	Edge   *Edge
	Source string
	Target string
}

// LiftEdges maps every edge with both endpoints inside containerID onto the pair of direct
// children containing them. Edges within a single child are dropped.
func (g *Graph) LiftEdges(containerID string) []LiftedEdge {
	var out []LiftedEdge
	for _, e := range g.Edges {
		src, ok := g.childContaining(containerID, e.Source)
		if !ok {
			continue
		}
		dst, ok := g.childContaining(containerID, e.Target)
		if !ok || src == dst {
			continue
		}
		out = append(out, LiftedEdge{Edge: e, Source: src, Target: dst})
	}
	return out
}

// childContaining returns the direct child of containerID that is id or encloses id
func (g *Graph) childContaining(containerID, id string) (string, bool) {
	n, ok := g.index[id]
	if !ok {
		return "", false
	}
	if n.ParentID == containerID {
		return id, true
	}
	for _, a := range mustAncestors(g, id) {
		if a.ParentID == containerID {
			return a.ID, true
		}
	}
	return "", false
}
