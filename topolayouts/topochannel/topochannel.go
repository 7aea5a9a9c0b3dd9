// Package topochannel routes edges that cross boundaries through each boundary's handler,
// the single point where edges enter and leave it.
package topochannel

import (
	"fmt"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/go2"
	"oss.terrastruct.com/topo/topograph"
)

const DEFAULT_BUNDLE_SPACING = 8

type Options struct {
	// BundleSpacing separates edges that share a handler, per channel number.
	BundleSpacing float64
}

func (opts *Options) withDefaults() Options {
	out := Options{BundleSpacing: DEFAULT_BUNDLE_SPACING}
	if opts != nil && opts.BundleSpacing > 0 {
		out.BundleSpacing = opts.BundleSpacing
	}
	return out
}

// HandlerChain lists the boundaries an edge passes through, in travel order.
type HandlerChain struct {
	Chain []string
	// CommonAncestor is the innermost boundary enclosing both endpoints, "" when they share none.
	CommonAncestor string
}

// SameBoundary reports whether a and b are direct children of the same parent
func SameBoundary(g *topograph.Graph, a, b string) bool {
	return g.SameParent(a, b)
}

// BuildHandlerChain climbs from src to the lowest common ancestor and back down to dst.
func BuildHandlerChain(g *topograph.Graph, src, dst string) (_ HandlerChain, err error) {
	defer xdefer.Errorf(&err, "failed to build handler chain from %q to %q", src, dst)

	if SameBoundary(g, src, dst) {
		return HandlerChain{}, nil
	}
	srcAncestors, err := g.Ancestors(src)
	if err != nil {
		return HandlerChain{}, err
	}
	dstAncestors, err := g.Ancestors(dst)
	if err != nil {
		return HandlerChain{}, err
	}

	dstIndex := make(map[string]int, len(dstAncestors))
	for i, a := range dstAncestors {
		dstIndex[a.ID] = i
	}

	var hc HandlerChain
	down := dstAncestors
	for _, a := range srcAncestors {
		if j, ok := dstIndex[a.ID]; ok {
			hc.CommonAncestor = a.ID
			hc.Chain = append(hc.Chain, a.ID)
			down = dstAncestors[:j]
			break
		}
		hc.Chain = append(hc.Chain, a.ID)
	}
	for i := len(down) - 1; i >= 0; i-- {
		hc.Chain = append(hc.Chain, down[i].ID)
	}
	return hc, nil
}

// Handler returns the boundary's handler config, right side at 50% when unset.
func Handler(n *topograph.Node) topograph.HandlerConfig {
	b, ok := n.AsBoundary()
	if !ok || b.Handler.Side == "" {
		return topograph.HandlerConfig{Side: topograph.SideRight, Percent: topograph.DEFAULT_HANDLER_PERCENT}
	}
	return topograph.HandlerConfig{
		Side:    b.Handler.Side,
		Percent: go2.Clamp(b.Handler.Percent, 0, 100),
	}
}

// HandlerPoint is the absolute position of a boundary's handler
func HandlerPoint(g *topograph.Graph, boundaryID string) (*geo.Point, topograph.Side, error) {
	n, ok := g.Node(boundaryID)
	if !ok {
		return nil, "", fmt.Errorf("unknown boundary %q", boundaryID)
	}
	hc := Handler(n)
	box := g.AbsoluteBox(boundaryID)
	t := hc.Percent / 100
	switch hc.Side {
	case topograph.SideTop:
		return geo.NewPoint(box.TopLeft.X+box.Width*t, box.TopLeft.Y), hc.Side, nil
	case topograph.SideBottom:
		return geo.NewPoint(box.TopLeft.X+box.Width*t, box.Bottom()), hc.Side, nil
	case topograph.SideLeft:
		return geo.NewPoint(box.TopLeft.X, box.TopLeft.Y+box.Height*t), hc.Side, nil
	default:
		return geo.NewPoint(box.Right(), box.TopLeft.Y+box.Height*t), topograph.SideRight, nil
	}
}

// ComputeChannelRouting builds the orthogonal path of e from its source center through every
// handler on its chain to its target center. channels gives the edge's channel number at each
// handler; channel n is shifted (n-1)*BundleSpacing along the handler's side.
func ComputeChannelRouting(g *topograph.Graph, e *topograph.Edge, channels map[string]int, opts *Options) (_ geo.Route, err error) {
	defer xdefer.Errorf(&err, "failed to route edge %q", e.ID)

	o := opts.withDefaults()
	hc, err := BuildHandlerChain(g, e.Source, e.Target)
	if err != nil {
		return nil, err
	}
	src := g.AbsoluteBox(e.Source)
	dst := g.AbsoluteBox(e.Target)

	route := geo.Route{src.Center()}
	for _, id := range hc.Chain {
		q, side, err := HandlerPoint(g, id)
		if err != nil {
			return nil, err
		}
		var shift float64
		if ch := channels[id]; ch > 1 {
			shift = float64(ch-1) * o.BundleSpacing
		}
		if side.IsHorizontal() {
			q = q.Add(0, shift)
		} else {
			q = q.Add(shift, 0)
		}
		p := route[len(route)-1]
		if side.IsHorizontal() {
			route = append(route, geo.NewPoint(p.X, q.Y), q)
		} else {
			route = append(route, geo.NewPoint(q.X, p.Y), q)
		}
	}
	p, q := route[len(route)-1], dst.Center()
	route = append(route, geo.NewPoint(q.X, p.Y), q)
	return route.Simplify(), nil
}

type Result struct {
	// Edges are copies of the input. Cross-boundary edges carry Routing, others have it cleared.
	Edges []*topograph.Edge
	// Routed holds ids of edges given a handler route.
	Routed []string
	// Handlers lists, per boundary, the edge ids routed through it in channel order.
	Handlers map[string][]string
	Missing  []string
	Errors   map[string]error
}

// Route numbers channels per handler in edge order, starting at 1, and routes every
// cross-boundary edge.
func Route(g *topograph.Graph, edges []*topograph.Edge, opts *Options) *Result {
	res := &Result{
		Edges:    make([]*topograph.Edge, len(edges)),
		Handlers: make(map[string][]string),
		Errors:   make(map[string]error),
	}
	chains := make([]*HandlerChain, len(edges))
	for i, e := range edges {
		res.Edges[i] = e.Copy()
		if _, ok := g.Node(e.Source); !ok {
			res.Missing = append(res.Missing, e.ID)
			continue
		}
		if _, ok := g.Node(e.Target); !ok {
			res.Missing = append(res.Missing, e.ID)
			continue
		}
		hc, err := BuildHandlerChain(g, e.Source, e.Target)
		if err != nil {
			res.Errors[e.ID] = err
			continue
		}
		if len(hc.Chain) == 0 {
			res.Edges[i].Routing = nil
			continue
		}
		chains[i] = &hc
	}

	for i, hc := range chains {
		if hc == nil {
			continue
		}
		e := res.Edges[i]
		channels := make(map[string]int, len(hc.Chain))
		for _, id := range hc.Chain {
			if _, ok := channels[id]; ok {
				continue
			}
			res.Handlers[id] = append(res.Handlers[id], e.ID)
			channels[id] = len(res.Handlers[id])
		}
		waypoints, err := ComputeChannelRouting(g, e, channels, opts)
		if err != nil {
			res.Errors[e.ID] = err
			continue
		}
		primary := hc.CommonAncestor
		if primary == "" {
			primary = hc.Chain[0]
		}
		e.Routing = &topograph.Routing{
			Chain:          hc.Chain,
			CommonAncestor: hc.CommonAncestor,
			Channels:       channels,
			Channel:        channels[primary],
			Waypoints:      waypoints,
		}
		res.Routed = append(res.Routed, e.ID)
	}
	return res
}
