// Package topotidy is the auto-tidy driver. It presizes boundaries, lays out every boundary's
// children deepest first while refitting each boundary as soon as its children move, packs the
// root level, routes edges and checks the result.
package topotidy

import (
	"context"
	"fmt"
	"math"
	"time"

	"cdr.dev/slog"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/go2"
	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/topoanimate"
	"oss.terrastruct.com/topo/topolayouts/topocollision"
	"oss.terrastruct.com/topo/topolayouts/topographviz"
	"oss.terrastruct.com/topo/topolayouts/topolayered"
	"oss.terrastruct.com/topo/topolayouts/toposize"
	"oss.terrastruct.com/topo/topolayouts/topovalidate"
)

const (
	MIN_PASSES = 2
	MAX_PASSES = 10

	DEFAULT_NODE_SPACING      = 60
	DEFAULT_RANK_SPACING      = 80
	DEFAULT_NESTED_MARGIN     = 20
	DEFAULT_PACK_SPACING      = 80
	DEFAULT_ICON_FILL_PERCENT = 70
)

type Strategy string

const (
	// StrategyNested hands the whole tree to a NestedLayout in one call.
	StrategyNested Strategy = "nested"
	// StrategyLegacy runs the ContainerLayout once per boundary over several passes.
	StrategyLegacy Strategy = "legacy"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyNested, StrategyLegacy:
		return Strategy(s), nil
	case "":
		return StrategyLegacy, nil
	}
	return "", fmt.Errorf("unknown strategy %q, expected nested or legacy", s)
}

type Options struct {
	Strategy  Strategy
	Direction topograph.Direction
	Tier      toposize.Tier

	Padding     float64
	NodeSpacing float64
	RankSpacing float64
	// NestedMargin is added around the children of boundaries that hold other boundaries.
	NestedMargin float64
	PackSpacing  float64
	Clearance    float64
	PortSpacing  float64

	ContainerLayout topograph.ContainerLayout
	NestedLayout    topograph.NestedLayout

	SkipPresize bool
	// NormalizeDevices squares every unlocked device and sets its icon fill.
	NormalizeDevices bool
	IconFillPercent  float64

	Validate bool
	AutoFix  bool

	Labels     *topocollision.LabelInputs
	Dimensions *topograph.Dimensions
}

func (opts *Options) withDefaults() Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Strategy == "" {
		o.Strategy = StrategyLegacy
	}
	if o.Direction == "" {
		o.Direction = topograph.DirectionTB
	}
	if o.Tier == "" {
		o.Tier = toposize.TierComfortable
	}
	if o.Padding <= 0 {
		o.Padding = topograph.DEFAULT_PADDING
	}
	if o.NodeSpacing <= 0 {
		o.NodeSpacing = DEFAULT_NODE_SPACING
	}
	if o.RankSpacing <= 0 {
		o.RankSpacing = DEFAULT_RANK_SPACING
	}
	if o.NestedMargin <= 0 {
		o.NestedMargin = DEFAULT_NESTED_MARGIN
	}
	if o.PackSpacing <= 0 {
		o.PackSpacing = DEFAULT_PACK_SPACING
	}
	if o.Clearance <= 0 {
		o.Clearance = topocollision.DEFAULT_CLEARANCE
	}
	if o.IconFillPercent <= 0 {
		o.IconFillPercent = DEFAULT_ICON_FILL_PERCENT
	}
	if o.ContainerLayout == nil {
		o.ContainerLayout = topolayered.Layout
	}
	if o.NestedLayout == nil {
		o.NestedLayout = topographviz.NestedLayout
	}
	if o.Dimensions == nil {
		o.Dimensions = topograph.NewDimensions(0)
	}
	return o
}

// spacing scales a base spacing by the tier
func (o *Options) spacing(base float64) float64 {
	return base * o.Tier.Multiplier()
}

type Stats struct {
	Strategy Strategy
	// FellBack is set when the nested strategy failed and legacy passes ran instead.
	FellBack            bool
	Passes              int
	NodesProcessed      int
	BoundariesProcessed int
	Duration            time.Duration

	// FailedBoundaries lists boundaries whose children were left in place because their layout
	// failed. BoundaryErrors combines those failures.
	FailedBoundaries []string
	BoundaryErrors   error

	MissingEdges []string
	RoutedEdges  []string

	Collisions *topocollision.Report
	Quality    *topocollision.Quality
}

type Result struct {
	Graph *topograph.Graph
	// Before and After hold local positions, for animating the transition.
	Before     map[string]*geo.Point
	After      map[string]*geo.Point
	Validation *topovalidate.Result
	Fixes      []topovalidate.Fix
	Stats      Stats
}

// Transition animates from the input layout to the tidied one
func (r *Result) Transition() *topoanimate.Transition {
	return topoanimate.New(r.Before, r.After)
}

// Tidy lays out a copy of g. The input graph is never modified.
// Layout failures of single boundaries are logged and recorded in the stats, not returned.
func Tidy(ctx context.Context, g *topograph.Graph, opts *Options) (_ *Result, err error) {
	defer xdefer.Errorf(&err, "failed to tidy")

	start := time.Now()
	o := opts.withDefaults()
	res := &Result{
		Before: g.Positions(),
	}
	res.Stats.Strategy = o.Strategy

	out, err := prepare(ctx, g, &o)
	if err != nil {
		return nil, err
	}

	t := &tidier{o: &o, stats: &res.Stats, failed: make(map[string]bool)}
	if o.Strategy == StrategyNested {
		err = t.nested(ctx, out)
		if err != nil {
			log.Warn(ctx, "nested layout failed, falling back to legacy passes", slog.Error(err))
			res.Stats.FellBack = true
			res.Stats.Strategy = StrategyLegacy
			o.Dimensions = topograph.NewDimensions(o.Dimensions.MaxAge)
			out, err = prepare(ctx, g, &o)
			if err != nil {
				return nil, err
			}
		}
	}
	if res.Stats.Strategy == StrategyLegacy {
		if err := t.legacy(ctx, out); err != nil {
			return nil, err
		}
	}

	t.packRoot(ctx, out)
	t.routeEdges(ctx, out)
	applyZOrder(out)

	if o.Validate || o.AutoFix {
		vopts := &topovalidate.Options{Padding: o.Padding}
		if o.AutoFix {
			out, res.Validation, res.Fixes = topovalidate.ValidateAndAdjust(out, o.Dimensions, vopts)
		} else {
			res.Validation = topovalidate.Validate(out, o.Dimensions, vopts)
		}
	}

	copts := &topocollision.Options{Clearance: o.Clearance}
	res.Stats.Collisions = topocollision.DetectCollisions(out, copts)
	res.Stats.Quality = topocollision.Assess(out, copts, o.Labels)
	res.Stats.NodesProcessed = len(out.Nodes)
	res.Stats.BoundariesProcessed = len(out.Boundaries()) - len(res.Stats.FailedBoundaries)
	res.Stats.Duration = time.Since(start)

	res.Graph = out
	res.After = out.Positions()

	log.Info(ctx, "tidied diagram",
		slog.F("strategy", res.Stats.Strategy),
		slog.F("passes", res.Stats.Passes),
		slog.F("nodes", res.Stats.NodesProcessed),
		slog.F("failed_boundaries", len(res.Stats.FailedBoundaries)),
		slog.F("quality", res.Stats.Quality.Score),
		slog.F("duration", res.Stats.Duration),
	)
	return res, nil
}

// prepare copies g, normalizes devices if asked, and presizes boundaries
func prepare(ctx context.Context, g *topograph.Graph, o *Options) (*topograph.Graph, error) {
	out := g.Copy()
	if o.NormalizeDevices {
		normalizeDevices(out, o)
	}
	if !o.SkipPresize {
		err := toposize.Presize(ctx, out, o.Dimensions, &toposize.Options{
			Tier:    o.Tier,
			Padding: o.Padding,
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// normalizeDevices gives every unlocked device a square footprint of its larger side
func normalizeDevices(g *topograph.Graph, o *Options) {
	for _, n := range g.Devices() {
		if n.Locked {
			continue
		}
		w, h, _ := n.Size()
		s := math.Max(w, h)
		n.SetSize(s, s)
		dev, _ := n.AsDevice()
		dev.IconSizePercent = o.IconFillPercent
		o.Dimensions.Delete(n.ID)
	}
}

type tidier struct {
	o      *Options
	stats  *Stats
	failed map[string]bool
}

// passes is how many legacy passes a tree of the given depth needs
func passes(maxDepth int) int {
	return go2.Clamp(maxDepth+1, MIN_PASSES, MAX_PASSES)
}

func (t *tidier) legacy(ctx context.Context, g *topograph.Graph) error {
	n := passes(g.MaxDepth())
	boundaries := g.BoundariesDeepestFirst()
	for pass := 0; pass < n; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, b := range boundaries {
			if err := t.layoutBoundary(ctx, g, b); err != nil {
				t.fail(ctx, b, err)
			}
		}
		t.stats.Passes++
	}
	return nil
}

func (t *tidier) nested(ctx context.Context, g *topograph.Graph) error {
	locked := make(map[string]*geo.Point)
	for _, n := range g.Nodes {
		if n.Locked {
			locked[n.ID] = n.TopLeft.Copy()
		}
	}
	err := t.o.NestedLayout(ctx, g, &topograph.NestedRequest{
		Direction:   t.o.Direction,
		NodeSpacing: t.o.spacing(t.o.NodeSpacing),
		RankSpacing: t.o.spacing(t.o.RankSpacing),
		Padding:     t.o.Padding,
		Dimensions:  t.o.Dimensions,
	})
	if err != nil {
		return err
	}
	for id, p := range locked {
		n, _ := g.Node(id)
		n.TopLeft = p
	}
	// nested engines do not all agree on coordinates across levels, so one fit pass follows
	for _, b := range g.BoundariesDeepestFirst() {
		t.dims().Delete(b.ID)
		t.fit(g, b)
	}
	t.stats.Passes = 1
	return nil
}

func (t *tidier) dims() *topograph.Dimensions {
	return t.o.Dimensions
}

func (t *tidier) fail(ctx context.Context, b *topograph.Node, err error) {
	if t.failed[b.ID] {
		return
	}
	t.failed[b.ID] = true
	log.Error(ctx, "boundary layout failed, leaving children in place",
		slog.F("boundary", b.ID),
		slog.Error(err),
	)
	t.stats.FailedBoundaries = append(t.stats.FailedBoundaries, b.ID)
	t.stats.BoundaryErrors = appendErr(t.stats.BoundaryErrors, fmt.Errorf("boundary %q: %w", b.ID, err))
}
