// Package topolayered is a small layered (Sugiyama style) layout for the direct children of
// one boundary. Children are ranked by BFS over the edges lifted to them, ordered within a rank
// by barycenter sweeps, and stacked along the layout direction.
package topolayered

import (
	"context"
	"math"
	"sort"

	"cdr.dev/slog"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/topograph"
)

const (
	DEFAULT_NODE_SPACING = 60
	DEFAULT_RANK_SPACING = 80
	DEFAULT_SWEEPS       = 4
)

type Options struct {
	// Sweeps is the number of down and up barycenter passes.
	Sweeps int
}

// New returns a ContainerLayout backed by this package.
func New(opts *Options) topograph.ContainerLayout {
	sweeps := DEFAULT_SWEEPS
	if opts != nil && opts.Sweeps > 0 {
		sweeps = opts.Sweeps
	}
	return func(ctx context.Context, req *topograph.LayoutRequest) (map[string]*geo.Point, error) {
		return layout(ctx, req, sweeps)
	}
}

// Layout is a ContainerLayout with default options
func Layout(ctx context.Context, req *topograph.LayoutRequest) (map[string]*geo.Point, error) {
	return layout(ctx, req, DEFAULT_SWEEPS)
}

type vertex struct {
	node  *topograph.Node
	w, h  float64
	rank  int
	order float64
	preds []*vertex
	succs []*vertex
}

func layout(ctx context.Context, req *topograph.LayoutRequest, sweeps int) (map[string]*geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	children := req.Graph.Children(req.BoundaryID)
	positions := make(map[string]*geo.Point, len(children))
	if len(children) == 0 {
		return positions, nil
	}

	vertices := make(map[string]*vertex, len(children))
	ordered := make([]*vertex, 0, len(children))
	for _, c := range children {
		v := &vertex{node: c}
		if req.Dimensions != nil {
			v.w, v.h = req.Dimensions.LayoutSize(c)
		} else {
			v.w, v.h, _ = c.Size()
		}
		vertices[c.ID] = v
		ordered = append(ordered, v)
	}
	for _, le := range req.Graph.LiftEdges(req.BoundaryID) {
		src, dst := vertices[le.Source], vertices[le.Target]
		src.succs = append(src.succs, dst)
		dst.preds = append(dst.preds, src)
	}

	layers := rank(ordered)
	for i := 0; i < sweeps; i++ {
		for r := 1; r < len(layers); r++ {
			reorder(layers[r], func(v *vertex) []*vertex { return v.preds })
		}
		for r := len(layers) - 2; r >= 0; r-- {
			reorder(layers[r], func(v *vertex) []*vertex { return v.succs })
		}
	}

	nodeSpacing, rankSpacing := req.NodeSpacing, req.RankSpacing
	if nodeSpacing <= 0 {
		nodeSpacing = DEFAULT_NODE_SPACING
	}
	if rankSpacing <= 0 {
		rankSpacing = DEFAULT_RANK_SPACING
	}
	origin := geo.NewPoint(0, 0)
	if req.Target != nil {
		origin = req.Target.TopLeft.Copy()
	}
	place(layers, req.Direction, nodeSpacing, rankSpacing, origin, positions)

	log.Debug(ctx, "layered layout",
		slog.F("boundary", req.BoundaryID),
		slog.F("children", len(children)),
		slog.F("ranks", len(layers)),
	)
	return positions, nil
}

// rank assigns BFS levels from vertices without predecessors. Vertices only reachable
// through a cycle start a new search at rank 0.
func rank(vertices []*vertex) [][]*vertex {
	seen := make(map[*vertex]bool, len(vertices))
	var queue []*vertex
	bfs := func() {
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, s := range v.succs {
				if seen[s] {
					continue
				}
				seen[s] = true
				s.rank = v.rank + 1
				queue = append(queue, s)
			}
		}
	}
	for _, v := range vertices {
		if len(v.preds) == 0 {
			seen[v] = true
			queue = append(queue, v)
		}
	}
	bfs()
	for _, v := range vertices {
		if !seen[v] {
			seen[v] = true
			queue = append(queue, v)
			bfs()
		}
	}

	var layers [][]*vertex
	for _, v := range vertices {
		for len(layers) <= v.rank {
			layers = append(layers, nil)
		}
		v.order = float64(len(layers[v.rank]))
		layers[v.rank] = append(layers[v.rank], v)
	}
	return layers
}

// reorder sorts a layer by the mean order of each vertex's neighbors in the adjacent layer.
// Vertices without neighbors keep their slot.
func reorder(layer []*vertex, neighbors func(*vertex) []*vertex) {
	bary := make(map[*vertex]float64, len(layer))
	for _, v := range layer {
		ns := neighbors(v)
		if len(ns) == 0 {
			bary[v] = v.order
			continue
		}
		var sum float64
		for _, n := range ns {
			sum += n.order
		}
		bary[v] = sum / float64(len(ns))
	}
	sort.SliceStable(layer, func(i, j int) bool {
		return bary[layer[i]] < bary[layer[j]]
	})
	for i, v := range layer {
		v.order = float64(i)
	}
}

// place stacks layers along the direction and centers each layer on the widest one
func place(layers [][]*vertex, dir topograph.Direction, nodeSpacing, rankSpacing float64, origin *geo.Point, positions map[string]*geo.Point) {
	vertical := dir.IsVertical()
	// main runs along the direction, cross runs across it
	mainSize := func(v *vertex) float64 {
		if vertical {
			return v.h
		}
		return v.w
	}
	crossSize := func(v *vertex) float64 {
		if vertical {
			return v.w
		}
		return v.h
	}

	thickness := make([]float64, len(layers))
	spans := make([]float64, len(layers))
	var widest, total float64
	for i, layer := range layers {
		for j, v := range layer {
			thickness[i] = math.Max(thickness[i], mainSize(v))
			spans[i] += crossSize(v)
			if j > 0 {
				spans[i] += nodeSpacing
			}
		}
		widest = math.Max(widest, spans[i])
		total += thickness[i]
		if i > 0 {
			total += rankSpacing
		}
	}

	reversed := dir == topograph.DirectionBT || dir == topograph.DirectionRL
	var main float64
	for i, layer := range layers {
		start := main
		if reversed {
			start = total - main - thickness[i]
		}
		cross := (widest - spans[i]) / 2
		for _, v := range layer {
			// center within the layer thickness
			m := start + (thickness[i]-mainSize(v))/2
			if vertical {
				positions[v.node.ID] = geo.NewPoint(origin.X+cross, origin.Y+m)
			} else {
				positions[v.node.ID] = geo.NewPoint(origin.X+m, origin.Y+cross)
			}
			cross += crossSize(v) + nodeSpacing
		}
		main += thickness[i] + rankSpacing
	}
}
