// Package topoport assigns connection sides, handle indices and offsets to edges from the
// rank structure of the graph and the dominant layout direction.
package topoport

import (
	"fmt"
	"sort"

	"oss.terrastruct.com/topo/lib/go2"
	"oss.terrastruct.com/topo/topograph"
)

const DEFAULT_PORT_SPACING = 20

type Options struct {
	// PortSpacing is the gap in pixels between edges sharing one side of a node.
	PortSpacing float64
	// SiblingThreshold is the largest rank difference still treated as a sibling pair.
	SiblingThreshold int
}

func (opts *Options) withDefaults() Options {
	out := Options{PortSpacing: DEFAULT_PORT_SPACING}
	if opts == nil {
		return out
	}
	if opts.PortSpacing > 0 {
		out.PortSpacing = opts.PortSpacing
	}
	if opts.SiblingThreshold > 0 {
		out.SiblingThreshold = opts.SiblingThreshold
	}
	return out
}

type Relation int

const (
	Downstream Relation = iota
	Upstream
	Sibling
)

func (r Relation) String() string {
	switch r {
	case Downstream:
		return "downstream"
	case Upstream:
		return "upstream"
	case Sibling:
		return "sibling"
	}
	return fmt.Sprintf("Relation(%d)", int(r))
}

type Result struct {
	// Edges are copies of the input in input order. Missing edges are copied unchanged.
	Edges []*topograph.Edge
	// Missing holds ids of edges whose source or target is not in the graph.
	Missing []string
	Ranks   map[string]int
}

// Ranks is the BFS distance of every node from the nodes without incoming edges.
// Nodes only reachable through cycles are seeded in input order at rank 0.
func Ranks(g *topograph.Graph, edges []*topograph.Edge) map[string]int {
	inDegree := make(map[string]int, len(g.Nodes))
	out := make(map[string][]string)
	for _, e := range edges {
		if !hasEndpoints(g, e) {
			continue
		}
		inDegree[e.Target]++
		out[e.Source] = append(out[e.Source], e.Target)
	}

	ranks := make(map[string]int, len(g.Nodes))
	var queue []string
	bfs := func() {
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, next := range out[id] {
				if _, ok := ranks[next]; ok {
					continue
				}
				ranks[next] = ranks[id] + 1
				queue = append(queue, next)
			}
		}
	}

	for _, n := range g.Nodes {
		if inDegree[n.ID] == 0 {
			ranks[n.ID] = 0
			queue = append(queue, n.ID)
		}
	}
	bfs()
	for _, n := range g.Nodes {
		if _, ok := ranks[n.ID]; ok {
			continue
		}
		ranks[n.ID] = 0
		queue = append(queue, n.ID)
		bfs()
	}
	return ranks
}

// Classify relates an edge's endpoints by rank difference
func Classify(srcRank, dstRank, threshold int) Relation {
	delta := dstRank - srcRank
	switch {
	case delta > threshold:
		return Downstream
	case delta < -threshold:
		return Upstream
	}
	return Sibling
}

// Sides picks the exit and entry side for an edge.
// Sibling pairs connect across the axis perpendicular to the direction, toward the target.
func Sides(g *topograph.Graph, e *topograph.Edge, rel Relation, dir topograph.Direction) (topograph.Side, topograph.Side) {
	exit, entry := dir.Sides()
	switch rel {
	case Downstream:
		return exit, entry
	case Upstream:
		return entry, exit
	}
	src := g.AbsoluteBox(e.Source).Center()
	dst := g.AbsoluteBox(e.Target).Center()
	if dir.IsVertical() {
		if dst.X > src.X {
			return topograph.SideRight, topograph.SideLeft
		}
		return topograph.SideLeft, topograph.SideRight
	}
	if dst.Y > src.Y {
		return topograph.SideBottom, topograph.SideTop
	}
	return topograph.SideTop, topograph.SideBottom
}

// Handle formats a handle id such as "bottom-0"
func Handle(side topograph.Side, index int) string {
	return fmt.Sprintf("%s-%d", side, index)
}

type port struct {
	node string
	side topograph.Side
}

// Route assigns sides and fans out edges sharing a side. Edges with the largest rank distance
// claim their ports first, so they get the lowest indices.
func Route(g *topograph.Graph, edges []*topograph.Edge, dir topograph.Direction, opts *Options) *Result {
	o := opts.withDefaults()
	res := &Result{
		Edges: make([]*topograph.Edge, len(edges)),
		Ranks: Ranks(g, edges),
	}

	var routable []int
	for i, e := range edges {
		res.Edges[i] = e.Copy()
		if !hasEndpoints(g, e) {
			res.Missing = append(res.Missing, e.ID)
			continue
		}
		routable = append(routable, i)
	}

	distance := func(i int) int {
		e := edges[i]
		return go2.Abs(res.Ranks[e.Target] - res.Ranks[e.Source])
	}
	sort.SliceStable(routable, func(a, b int) bool {
		return distance(routable[a]) > distance(routable[b])
	})

	totals := make(map[port]int)
	for _, i := range routable {
		e := res.Edges[i]
		rel := Classify(res.Ranks[e.Source], res.Ranks[e.Target], o.SiblingThreshold)
		e.SourceSide, e.TargetSide = Sides(g, e, rel, dir)
		totals[port{e.Source, e.SourceSide}]++
		totals[port{e.Target, e.TargetSide}]++
	}

	claimed := make(map[port]int)
	claim := func(p port) (int, float64) {
		i := claimed[p]
		claimed[p]++
		return i, (float64(i) - float64(totals[p]-1)/2) * o.PortSpacing
	}
	for _, i := range routable {
		e := res.Edges[i]
		e.SourceHandleIndex, e.SourceOffset = claim(port{e.Source, e.SourceSide})
		e.TargetHandleIndex, e.TargetOffset = claim(port{e.Target, e.TargetSide})
		e.SourceHandle = Handle(e.SourceSide, e.SourceHandleIndex)
		e.TargetHandle = Handle(e.TargetSide, e.TargetHandleIndex)
	}
	return res
}

func hasEndpoints(g *topograph.Graph, e *topograph.Edge) bool {
	if _, ok := g.Node(e.Source); !ok {
		return false
	}
	_, ok := g.Node(e.Target)
	return ok
}
