// Package topocollision finds boxes that violate a minimum clearance and scores how badly.
//
// Boxes are expanded by clearance/2 on every side before testing, so two nodes "overlap" when
// they are closer than the clearance, not only when they touch. Small scopes are tested
// pairwise; scopes above SPATIAL_HASH_THRESHOLD go through a spatial hash.
package topocollision

import (
	"math"
	"sort"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/spatial"
	"oss.terrastruct.com/topo/topograph"
)

const (
	SPATIAL_HASH_THRESHOLD = 50
	DEFAULT_CLEARANCE      = 20
)

type Strategy string

const (
	StrategyNaive       Strategy = "naive"
	StrategySpatialHash Strategy = "spatial-hash"
)

type Overlap struct {
	NodeA       string  `json:"nodeA"`
	NodeB       string  `json:"nodeB"`
	Severity    float64 `json:"severity"`
	OverlapArea float64 `json:"overlapArea"`
}

type Options struct {
	Clearance float64
	// Filter selects the nodes taking part. Defaults to devices only, since a boundary always
	// overlaps its own children.
	Filter func(*topograph.Node) bool
	// Threshold is the node count above which the spatial hash is used.
	Threshold int
	// Strategy forces a strategy instead of choosing by node count.
	Strategy Strategy
}

type Report struct {
	Overlaps        []Overlap      `json:"overlaps"`
	TotalNodes      int            `json:"totalNodes"`
	CollisionCount  int            `json:"collisionCount"`
	AverageSeverity float64        `json:"averageSeverity"`
	MaxSeverity     float64        `json:"maxSeverity"`
	Strategy        Strategy       `json:"strategy"`
	HashStats       *spatial.Stats `json:"hashStats,omitempty"`
}

// BoxesIntersect is an open-interval rectangle test, symmetric in its arguments
func BoxesIntersect(a, b *geo.Box) bool {
	return a.Overlaps(b)
}

// OverlapSeverity is the intersection area over the smaller box's area, in [0, 1]
func OverlapSeverity(a, b *geo.Box) float64 {
	smaller := math.Min(a.Area(), b.Area())
	if smaller <= 0 {
		return 0
	}
	return math.Min(1, a.IntersectionArea(b)/smaller)
}

// Boxes returns the absolute boxes of the selected nodes expanded by clearance/2
func Boxes(g *topograph.Graph, nodes []*topograph.Node, clearance float64) []spatial.Item {
	items := make([]spatial.Item, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, spatial.Item{
			ID:  n.ID,
			Box: g.AbsoluteBox(n.ID).Expand(clearance / 2),
		})
	}
	return items
}

func (opts *Options) filtered(g *topograph.Graph) []*topograph.Node {
	filter := opts.Filter
	if filter == nil {
		filter = (*topograph.Node).IsDevice
	}
	var out []*topograph.Node
	for _, n := range g.Nodes {
		if filter(n) {
			out = append(out, n)
		}
	}
	return out
}

// DetectNodeOverlaps returns every clearance violation among nodes, most severe first
func DetectNodeOverlaps(g *topograph.Graph, nodes []*topograph.Node, minClearance float64) []Overlap {
	items := Boxes(g, nodes, minClearance)
	overlaps, _ := detect(g, items, chooseStrategy(len(items), SPATIAL_HASH_THRESHOLD, ""), minClearance)
	return overlaps
}

func DetectCollisions(g *topograph.Graph, opts *Options) *Report {
	if opts == nil {
		opts = &Options{Clearance: DEFAULT_CLEARANCE}
	}
	nodes := opts.filtered(g)
	items := Boxes(g, nodes, opts.Clearance)
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = SPATIAL_HASH_THRESHOLD
	}
	strategy := chooseStrategy(len(items), threshold, opts.Strategy)
	overlaps, stats := detect(g, items, strategy, opts.Clearance)

	r := &Report{
		Overlaps:       overlaps,
		TotalNodes:     len(nodes),
		CollisionCount: len(overlaps),
		Strategy:       strategy,
		HashStats:      stats,
	}
	var sum float64
	for _, o := range overlaps {
		sum += o.Severity
		r.MaxSeverity = math.Max(r.MaxSeverity, o.Severity)
	}
	if len(overlaps) > 0 {
		r.AverageSeverity = sum / float64(len(overlaps))
	}
	return r
}

func chooseStrategy(n, threshold int, forced Strategy) Strategy {
	if forced != "" {
		return forced
	}
	if n <= threshold {
		return StrategyNaive
	}
	return StrategySpatialHash
}

func detect(g *topograph.Graph, items []spatial.Item, strategy Strategy, clearance float64) ([]Overlap, *spatial.Stats) {
	var overlaps []Overlap
	var stats *spatial.Stats
	switch strategy {
	case StrategySpatialHash:
		overlaps, stats = detectHashed(g, items, clearance)
	default:
		overlaps = detectNaive(g, items)
	}
	sortOverlaps(overlaps)
	return overlaps, stats
}

func detectNaive(g *topograph.Graph, items []spatial.Item) []Overlap {
	var out []Overlap
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if o, ok := overlap(g, items[i], items[j]); ok {
				out = append(out, o)
			}
		}
	}
	return out
}

func detectHashed(g *topograph.Graph, items []spatial.Item, clearance float64) ([]Overlap, *spatial.Stats) {
	h := spatial.New(averageCellSize(items, clearance))
	for _, it := range items {
		h.Insert(it)
	}

	type pair struct{ a, b string }
	seen := make(map[pair]struct{})
	var out []Overlap
	for _, it := range items {
		for _, candidate := range h.Query(it.Box) {
			if candidate.ID == it.ID {
				continue
			}
			p := pair{it.ID, candidate.ID}
			if p.b < p.a {
				p.a, p.b = p.b, p.a
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			if o, ok := overlap(g, it, candidate); ok {
				out = append(out, o)
			}
		}
	}
	stats := h.Stats()
	return out, &stats
}

// averageCellSize sizes cells from the average box dimension, which items are already expanded by
func averageCellSize(items []spatial.Item, clearance float64) float64 {
	if len(items) == 0 {
		return 1
	}
	var sum float64
	for _, it := range items {
		sum += math.Max(it.Box.Width, it.Box.Height)
	}
	return sum/float64(len(items)) + clearance
}

func overlap(g *topograph.Graph, a, b spatial.Item) (Overlap, bool) {
	if !BoxesIntersect(a.Box, b.Box) {
		return Overlap{}, false
	}
	// a boundary always contains its descendants
	if g.IsDescendantOf(a.ID, b.ID) || g.IsDescendantOf(b.ID, a.ID) {
		return Overlap{}, false
	}
	nodeA, nodeB := a.ID, b.ID
	if nodeB < nodeA {
		nodeA, nodeB = nodeB, nodeA
	}
	return Overlap{
		NodeA:       nodeA,
		NodeB:       nodeB,
		Severity:    OverlapSeverity(a.Box, b.Box),
		OverlapArea: a.Box.IntersectionArea(b.Box),
	}, true
}

func sortOverlaps(overlaps []Overlap) {
	sort.Slice(overlaps, func(i, j int) bool {
		if overlaps[i].Severity != overlaps[j].Severity {
			return overlaps[i].Severity > overlaps[j].Severity
		}
		if overlaps[i].NodeA != overlaps[j].NodeA {
			return overlaps[i].NodeA < overlaps[j].NodeA
		}
		return overlaps[i].NodeB < overlaps[j].NodeB
	})
}
