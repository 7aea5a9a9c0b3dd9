// Package toposize estimates boundary sizes from their children before any layout runs,
// so that ancestors see realistic child footprints on the first pass.
package toposize

import (
	"context"
	"fmt"
	"math"

	"cdr.dev/slog"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/topograph"
)

const (
	DEFAULT_BASE_SPACING = 40
	DEFAULT_MIN_WIDTH    = topograph.DEFAULT_BOUNDARY_WIDTH
	DEFAULT_MIN_HEIGHT   = topograph.DEFAULT_BOUNDARY_HEIGHT
)

// Tier is a named spacing density
type Tier string

const (
	TierCompact     Tier = "compact"
	TierComfortable Tier = "comfortable"
	TierSpacious    Tier = "spacious"
)

func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierCompact, TierComfortable, TierSpacious:
		return Tier(s), nil
	case "":
		return TierComfortable, nil
	}
	return "", fmt.Errorf("unknown spacing tier %q, expected compact, comfortable or spacious", s)
}

func (t Tier) Multiplier() float64 {
	switch t {
	case TierCompact:
		return 0.75
	case TierSpacious:
		return 1.5
	}
	return 1
}

type Options struct {
	Tier        Tier
	BaseSpacing float64
	Padding     float64
	MinWidth    float64
	MinHeight   float64
}

func (opts *Options) withDefaults() Options {
	out := Options{
		Tier:        TierComfortable,
		BaseSpacing: DEFAULT_BASE_SPACING,
		Padding:     topograph.DEFAULT_PADDING,
		MinWidth:    DEFAULT_MIN_WIDTH,
		MinHeight:   DEFAULT_MIN_HEIGHT,
	}
	if opts == nil {
		return out
	}
	if opts.Tier != "" {
		out.Tier = opts.Tier
	}
	if opts.BaseSpacing > 0 {
		out.BaseSpacing = opts.BaseSpacing
	}
	if opts.Padding > 0 {
		out.Padding = opts.Padding
	}
	if opts.MinWidth > 0 {
		out.MinWidth = opts.MinWidth
	}
	if opts.MinHeight > 0 {
		out.MinHeight = opts.MinHeight
	}
	return out
}

// Spacing is the gap between grid cells for the options' tier
func (opts *Options) Spacing() float64 {
	o := opts.withDefaults()
	return o.BaseSpacing * o.Tier.Multiplier()
}

// Estimate returns the size of a boundary holding n children with the given average size
// in a near-square grid.
func Estimate(n int, avgW, avgH float64, opts *Options) (float64, float64) {
	o := opts.withDefaults()
	if n <= 0 {
		return o.MinWidth, o.MinHeight
	}
	return estimate(n, avgW, avgH, o.Spacing(), o.Padding)
}

func estimate(n int, avgW, avgH, spacing, padding float64) (float64, float64) {
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := int(math.Ceil(float64(n) / float64(cols)))
	w := float64(cols)*avgW + float64(cols-1)*spacing + 2*padding
	h := float64(rows)*avgH + float64(rows-1)*spacing + 2*padding
	return w, h
}

// Presize writes an estimated size into every boundary of g, deepest first, and records it in
// dims so later lookups see the estimate rather than a stale default.
func Presize(ctx context.Context, g *topograph.Graph, dims *topograph.Dimensions, opts *Options) (err error) {
	defer xdefer.Errorf(&err, "failed to presize boundaries")

	o := opts.withDefaults()
	if dims == nil {
		dims = topograph.NewDimensions(0)
	}
	spacing := o.BaseSpacing * o.Tier.Multiplier()

	for _, b := range g.BoundariesDeepestFirst() {
		if err := ctx.Err(); err != nil {
			return err
		}
		children := g.Children(b.ID)
		var w, h float64
		if len(children) == 0 {
			w, h = o.MinWidth, o.MinHeight
		} else {
			var sumW, sumH float64
			for _, c := range children {
				cw, ch := dims.LayoutSize(c)
				sumW += cw
				sumH += ch
			}
			n := float64(len(children))
			w, h = estimate(len(children), sumW/n, sumH/n, spacing, b.Padding(o.Padding))
		}

		b.SetSize(w, h)
		dims.Set(b.ID, topograph.LayoutDimensions{
			Core:   topograph.Size{Width: w, Height: h},
			Visual: topograph.Size{Width: w, Height: h},
			Layout: topograph.Size{Width: w, Height: h},
			Source: topograph.SourcePresize,
		})
		log.Debug(ctx, "presized boundary",
			slog.F("boundary", b.ID),
			slog.F("children", len(children)),
			slog.F("width", w),
			slog.F("height", h),
		)
	}
	return nil
}
