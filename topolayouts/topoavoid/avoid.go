// Package topoavoid nudges sibling nodes apart when they violate the minimum clearance.
// It is meant for interactive editing: small, bounded moves rather than a full relayout.
package topoavoid

import (
	"math"
	"sort"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/topograph"
)

const (
	DEFAULT_MAX_ITERATIONS     = 3
	DEFAULT_MAX_NUDGE_DISTANCE = 50
	DEFAULT_CLEARANCE          = 20
)

// DefaultDirection is used when two centers coincide and no repulsion direction exists
var DefaultDirection = geo.NewVector(1, 0)

// Zero values fall back to the package defaults.
type Options struct {
	Clearance        float64
	MaxIterations    int
	MaxNudgeDistance float64
	// Pinned nodes, such as the one being dragged, are never moved.
	Pinned map[string]bool
}

func (opts *Options) withDefaults() Options {
	out := Options{
		Clearance:        DEFAULT_CLEARANCE,
		MaxIterations:    DEFAULT_MAX_ITERATIONS,
		MaxNudgeDistance: DEFAULT_MAX_NUDGE_DISTANCE,
	}
	if opts == nil {
		return out
	}
	if opts.Clearance > 0 {
		out.Clearance = opts.Clearance
	}
	if opts.MaxIterations > 0 {
		out.MaxIterations = opts.MaxIterations
	}
	if opts.MaxNudgeDistance > 0 {
		out.MaxNudgeDistance = opts.MaxNudgeDistance
	}
	out.Pinned = opts.Pinned
	return out
}

type Result struct {
	// Nudged holds new local positions of the nodes that moved.
	Nudged        map[string]*geo.Point
	NudgedCount   int
	HadCollisions bool
	Iterations    int
	// OverlapArea is the total raw overlap area among siblings before each round and after the last.
	OverlapArea []float64
}

type body struct {
	node   *topograph.Node
	origin *geo.Point
	pos    *geo.Point
	w, h   float64
}

func (b *body) center() *geo.Point {
	return geo.NewPoint(b.pos.X+b.w/2, b.pos.Y+b.h/2)
}

func (b *body) box() *geo.Box {
	return geo.NewBox(b.pos, b.w, b.h)
}

// Repulsion returns the push on a away from b, and whether they violate clearance at all.
// The direction is the normalized vector between centers. Its magnitude is the larger of the
// x and y clearance overlaps.
func Repulsion(a, b *geo.Box, clearance float64) (geo.Vector, bool) {
	ca, cb := a.Center(), b.Center()
	dx, dy := ca.X-cb.X, ca.Y-cb.Y
	overlapX := (a.Width+b.Width)/2 + clearance - math.Abs(dx)
	overlapY := (a.Height+b.Height)/2 + clearance - math.Abs(dy)
	if overlapX <= 0 || overlapY <= 0 {
		return nil, false
	}
	dir := geo.NewVector(dx, dy).Unit(DefaultDirection)
	return dir.Multiply(math.Max(overlapX, overlapY)), true
}

// Apply separates sibling nodes over at most MaxIterations rounds. Each node's total
// displacement is limited to MaxNudgeDistance. The graph is not modified.
func Apply(g *topograph.Graph, opts *Options) *Result {
	o := opts.withDefaults()

	var groups [][]*body
	bodies := make(map[string]*body)
	for _, parent := range parentIDs(g) {
		var group []*body
		for _, n := range g.Children(parent) {
			w, h, _ := n.Size()
			b := &body{node: n, origin: n.TopLeft.Copy(), pos: n.TopLeft.Copy(), w: w, h: h}
			bodies[n.ID] = b
			group = append(group, b)
		}
		if len(group) > 1 {
			groups = append(groups, group)
		}
	}

	res := &Result{Nudged: make(map[string]*geo.Point)}
	res.OverlapArea = append(res.OverlapArea, totalOverlap(groups))
	for res.Iterations < o.MaxIterations {
		collisions := round(groups, o)
		if collisions == 0 {
			break
		}
		res.HadCollisions = true
		res.Iterations++
		res.OverlapArea = append(res.OverlapArea, totalOverlap(groups))
	}

	for id, b := range bodies {
		if !b.pos.Equals(b.origin) {
			res.Nudged[id] = b.pos
		}
	}
	res.NudgedCount = len(res.Nudged)
	return res
}

func (o *Options) movable(n *topograph.Node) bool {
	return !n.Locked && !o.Pinned[n.ID]
}

// round applies one averaged nudge to every colliding node and returns the number of violations seen
func round(groups [][]*body, o Options) int {
	collisions := 0
	for _, group := range groups {
		pushes := make(map[*body][]geo.Vector)
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				v, ok := Repulsion(a.box(), b.box(), o.Clearance)
				if !ok {
					continue
				}
				collisions++
				aMoves, bMoves := o.movable(a.node), o.movable(b.node)
				switch {
				case aMoves && bMoves:
					pushes[a] = append(pushes[a], v.Multiply(0.5))
					pushes[b] = append(pushes[b], v.Multiply(-0.5))
				case aMoves:
					pushes[a] = append(pushes[a], v)
				case bMoves:
					pushes[b] = append(pushes[b], v.Multiply(-1))
				}
			}
		}
		for b, vs := range pushes {
			avg := geo.NewVector(0, 0)
			for _, v := range vs {
				avg = avg.Add(v)
			}
			avg = avg.Multiply(1 / float64(len(vs)))
			b.pos = clampDisplacement(b.origin, b.pos.AddVector(avg), o.MaxNudgeDistance)
		}
	}
	return collisions
}

func clampDisplacement(origin, p *geo.Point, max float64) *geo.Point {
	return origin.AddVector(origin.VectorTo(p).ClampLength(max))
}

func totalOverlap(groups [][]*body) float64 {
	var sum float64
	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				sum += group[i].box().IntersectionArea(group[j].box())
			}
		}
	}
	return sum
}

func parentIDs(g *topograph.Graph) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, n := range g.Nodes {
		if _, ok := seen[n.ParentID]; ok {
			continue
		}
		seen[n.ParentID] = struct{}{}
		out = append(out, n.ParentID)
	}
	sort.Strings(out)
	return out
}

// AvoidDragged suggests a corrected local position for a node being dragged to proposed,
// pushing it away from every sibling it now violates clearance with. No other node moves.
// It returns nil when the proposed position is already clear.
func AvoidDragged(g *topograph.Graph, id string, proposed *geo.Point, opts *Options) *geo.Point {
	o := opts.withDefaults()
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	w, h, _ := n.Size()
	dragged := geo.NewBox(proposed.Copy(), w, h)

	var pushes []geo.Vector
	for _, sibling := range g.Children(n.ParentID) {
		if sibling.ID == id {
			continue
		}
		v, ok := Repulsion(dragged, g.LocalBox(sibling.ID), o.Clearance)
		if ok {
			pushes = append(pushes, v)
		}
	}
	if len(pushes) == 0 {
		return nil
	}
	avg := geo.NewVector(0, 0)
	for _, v := range pushes {
		avg = avg.Add(v)
	}
	avg = avg.Multiply(1 / float64(len(pushes)))
	return clampDisplacement(proposed, proposed.AddVector(avg), o.MaxNudgeDistance)
}
