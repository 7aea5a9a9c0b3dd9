// Package topovalidate checks a finished layout for sibling overlaps, children escaping their
// boundary, and suspicious edges, and can repair the geometric defects.
package topovalidate

import (
	"fmt"
	"math"
	"sort"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/go2"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/topocollision"
)

const (
	DEFAULT_MAX_EDGE_LENGTH    = 2000
	DEFAULT_BUFFER             = 20
	DEFAULT_MAX_FIX_ITERATIONS = 3
	// tolerance for padding checks, layouts round to whole pixels
	epsilon = 0.5
)

type Options struct {
	Padding          float64
	MaxEdgeLength    float64
	Buffer           float64
	MaxFixIterations int
}

func (opts *Options) withDefaults() Options {
	out := Options{
		Padding:          topograph.DEFAULT_PADDING,
		MaxEdgeLength:    DEFAULT_MAX_EDGE_LENGTH,
		Buffer:           DEFAULT_BUFFER,
		MaxFixIterations: DEFAULT_MAX_FIX_ITERATIONS,
	}
	if opts == nil {
		return out
	}
	if opts.Padding > 0 {
		out.Padding = opts.Padding
	}
	if opts.MaxEdgeLength > 0 {
		out.MaxEdgeLength = opts.MaxEdgeLength
	}
	if opts.Buffer > 0 {
		out.Buffer = opts.Buffer
	}
	if opts.MaxFixIterations > 0 {
		out.MaxFixIterations = opts.MaxFixIterations
	}
	return out
}

type ContainmentKind string

const (
	// Outside means the child crosses the boundary's edge.
	Outside ContainmentKind = "outside"
	// Padding means the child is inside but closer to an edge than the padding allows.
	Padding ContainmentKind = "padding"
)

type ContainmentIssue struct {
	Node   string          `json:"node"`
	Parent string          `json:"parent"`
	Kind   ContainmentKind `json:"kind"`
	// Violation is the largest distance by which a side misses its limit.
	Violation float64 `json:"violation"`
}

type EdgeIssueKind string

const (
	Dangling        EdgeIssueKind = "dangling"
	SelfLoop        EdgeIssueKind = "self-loop"
	ExcessiveLength EdgeIssueKind = "excessive-length"
	PassesThrough   EdgeIssueKind = "passes-through"
)

type EdgeIssue struct {
	Edge   string        `json:"edge"`
	Kind   EdgeIssueKind `json:"kind"`
	Detail string        `json:"detail"`
}

type Result struct {
	Passed      bool                    `json:"passed"`
	Overlaps    []topocollision.Overlap `json:"overlaps"`
	Containment []ContainmentIssue      `json:"containment"`
	EdgeIssues  []EdgeIssue             `json:"edgeIssues"`
}

func (r *Result) IssueCount() int {
	return len(r.Overlaps) + len(r.Containment) + len(r.EdgeIssues)
}

type sizer func(n *topograph.Node) (float64, float64)

func sizes(dims *topograph.Dimensions) sizer {
	if dims == nil {
		return func(n *topograph.Node) (float64, float64) {
			w, h, _ := n.Size()
			return w, h
		}
	}
	return dims.LayoutSize
}

// Validate reports defects without touching g.
func Validate(g *topograph.Graph, dims *topograph.Dimensions, opts *Options) *Result {
	o := opts.withDefaults()
	size := sizes(dims)
	res := &Result{
		Overlaps:    overlaps(g, size),
		Containment: containment(g, size, o),
		EdgeIssues:  edgeIssues(g, o),
	}
	res.Passed = res.IssueCount() == 0
	return res
}

func localBox(n *topograph.Node, size sizer) *geo.Box {
	w, h := size(n)
	return geo.NewBox(n.TopLeft.Copy(), w, h)
}

// overlaps compares siblings only. Nodes in different boundaries may overlap visually.
func overlaps(g *topograph.Graph, size sizer) []topocollision.Overlap {
	var out []topocollision.Overlap
	for _, parent := range parents(g) {
		children := g.Children(parent)
		for i := 0; i < len(children); i++ {
			for j := i + 1; j < len(children); j++ {
				a, b := localBox(children[i], size), localBox(children[j], size)
				if !topocollision.BoxesIntersect(a, b) {
					continue
				}
				out = append(out, topocollision.Overlap{
					NodeA:       children[i].ID,
					NodeB:       children[j].ID,
					Severity:    topocollision.OverlapSeverity(a, b),
					OverlapArea: a.IntersectionArea(b),
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity > out[j].Severity
	})
	return out
}

func containment(g *topograph.Graph, size sizer, o Options) []ContainmentIssue {
	var out []ContainmentIssue
	for _, n := range g.Nodes {
		if n.ParentID == "" {
			continue
		}
		parent, ok := g.Node(n.ParentID)
		if !ok {
			continue
		}
		pw, ph := size(parent)
		pad := parent.Padding(o.Padding)
		box := localBox(n, size)

		outside := math.Max(
			math.Max(-box.TopLeft.X, -box.TopLeft.Y),
			math.Max(box.Right()-pw, box.Bottom()-ph),
		)
		if outside > 0 {
			out = append(out, ContainmentIssue{Node: n.ID, Parent: parent.ID, Kind: Outside, Violation: outside})
			continue
		}
		short := math.Max(
			math.Max(pad-box.TopLeft.X, pad-box.TopLeft.Y),
			math.Max(box.Right()-(pw-pad), box.Bottom()-(ph-pad)),
		)
		if short > epsilon {
			out = append(out, ContainmentIssue{Node: n.ID, Parent: parent.ID, Kind: Padding, Violation: short})
		}
	}
	return out
}

func edgeIssues(g *topograph.Graph, o Options) []EdgeIssue {
	var out []EdgeIssue
	for _, e := range g.Edges {
		_, srcOK := g.Node(e.Source)
		_, dstOK := g.Node(e.Target)
		if !srcOK || !dstOK {
			out = append(out, EdgeIssue{Edge: e.ID, Kind: Dangling, Detail: fmt.Sprintf("%s -> %s", e.Source, e.Target)})
			continue
		}
		if e.Source == e.Target {
			out = append(out, EdgeIssue{Edge: e.ID, Kind: SelfLoop, Detail: e.Source})
			continue
		}

		route := edgeRoute(g, e)
		if l := route.Length(); l > o.MaxEdgeLength {
			out = append(out, EdgeIssue{Edge: e.ID, Kind: ExcessiveLength, Detail: fmt.Sprintf("%.0fpx exceeds %.0fpx", l, o.MaxEdgeLength)})
		}
		if through, ok := passesThrough(g, e, route); ok {
			out = append(out, EdgeIssue{Edge: e.ID, Kind: PassesThrough, Detail: through})
		}
	}
	return out
}

func edgeRoute(g *topograph.Graph, e *topograph.Edge) geo.Route {
	if e.Routing != nil && len(e.Routing.Waypoints) >= 2 {
		return geo.Route(e.Routing.Waypoints)
	}
	return geo.Route{
		g.AbsoluteBox(e.Source).Center(),
		g.AbsoluteBox(e.Target).Center(),
	}
}

// passesThrough finds the first device, other than the endpoints, that the route crosses
func passesThrough(g *topograph.Graph, e *topograph.Edge, route geo.Route) (string, bool) {
	for _, n := range g.Devices() {
		if n.ID == e.Source || n.ID == e.Target {
			continue
		}
		box := g.AbsoluteBox(n.ID)
		for _, s := range route.Segments() {
			if len(box.Intersections(s)) > 0 || box.Contains(geo.NewBox(s.Start, 0, 0)) {
				return n.ID, true
			}
		}
	}
	return "", false
}

func parents(g *topograph.Graph) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, n := range g.Nodes {
		if _, ok := seen[n.ParentID]; !ok {
			seen[n.ParentID] = struct{}{}
			out = append(out, n.ParentID)
		}
	}
	return out
}

type Fix struct {
	Node   string     `json:"node"`
	Reason string     `json:"reason"`
	From   *geo.Point `json:"from"`
	To     *geo.Point `json:"to"`
}

// ValidateAndAdjust repairs overlaps and containment on a copy of g and returns it with the
// result of validating the repaired copy. Edge issues are only reported.
func ValidateAndAdjust(g *topograph.Graph, dims *topograph.Dimensions, opts *Options) (*topograph.Graph, *Result, []Fix) {
	o := opts.withDefaults()
	size := sizes(dims)
	out := g.Copy()

	var fixes []Fix
	res := Validate(out, dims, opts)
	for i := 0; i < o.MaxFixIterations && len(res.Overlaps)+len(res.Containment) > 0; i++ {
		for _, ov := range res.Overlaps {
			if f, ok := separate(out, ov, size, o.Buffer); ok {
				fixes = append(fixes, f)
			}
		}
		for _, ci := range Validate(out, dims, opts).Containment {
			if f, ok := clampInto(out, ci, size, o.Padding); ok {
				fixes = append(fixes, f)
			}
		}
		res = Validate(out, dims, opts)
	}
	return out, res, fixes
}

// separate shifts one node of an overlapping pair along the axis of least penetration
func separate(g *topograph.Graph, ov topocollision.Overlap, size sizer, buffer float64) (Fix, bool) {
	a, _ := g.Node(ov.NodeA)
	b, _ := g.Node(ov.NodeB)
	mover, anchor, sign := b, a, 1.
	if b.Locked {
		mover, anchor, sign = a, b, -1.
	}
	if mover.Locked {
		return Fix{}, false
	}
	ba, bb := localBox(a, size), localBox(b, size)
	if !ba.Overlaps(bb) {
		return Fix{}, false
	}
	dx, dy := ba.OverlapExtent(bb)
	ca, cb := ba.Center(), bb.Center()

	from := mover.TopLeft.Copy()
	if dx <= dy {
		dir := sign
		if cb.X < ca.X {
			dir = -sign
		}
		mover.TopLeft.X += dir * (dx + buffer)
	} else {
		dir := sign
		if cb.Y < ca.Y {
			dir = -sign
		}
		mover.TopLeft.Y += dir * (dy + buffer)
	}
	return Fix{Node: mover.ID, Reason: fmt.Sprintf("overlap with %s", anchor.ID), From: from, To: mover.TopLeft.Copy()}, true
}

// clampInto moves a child into [padding, parentSize - childSize - padding] on both axes
func clampInto(g *topograph.Graph, ci ContainmentIssue, size sizer, padding float64) (Fix, bool) {
	n, _ := g.Node(ci.Node)
	parent, _ := g.Node(ci.Parent)
	if n.Locked {
		return Fix{}, false
	}
	pad := parent.Padding(padding)
	pw, ph := size(parent)
	w, h := size(n)

	from := n.TopLeft.Copy()
	n.TopLeft.X = go2.Clamp(n.TopLeft.X, pad, pw-w-pad)
	n.TopLeft.Y = go2.Clamp(n.TopLeft.Y, pad, ph-h-pad)
	if n.TopLeft.Equals(from) {
		return Fix{}, false
	}
	return Fix{Node: n.ID, Reason: fmt.Sprintf("%s %s", ci.Kind, ci.Parent), From: from, To: n.TopLeft.Copy()}, true
}
