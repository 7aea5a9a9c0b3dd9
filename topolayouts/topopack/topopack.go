// Package topopack packs rectangles tightly with a maximal-rectangles packer, and packs
// connected groups of rectangles so linked items stay together.
package topopack

import (
	"math"
	"sort"

	"oss.terrastruct.com/topo/lib/geo"
)

const (
	DEFAULT_SPACING = 40
	// DEFAULT_SLACK widens the bin beyond a perfect square of the total area
	DEFAULT_SLACK = 1.3
	eps           = 0.001
)

type Item struct {
	ID     string
	Width  float64
	Height float64
}

type Options struct {
	Spacing float64
	Slack   float64
	// Width fixes the bin width instead of deriving it from the total area.
	Width float64
}

func (opts *Options) withDefaults() Options {
	out := Options{Spacing: DEFAULT_SPACING, Slack: DEFAULT_SLACK}
	if opts == nil {
		return out
	}
	if opts.Spacing > 0 {
		out.Spacing = opts.Spacing
	}
	if opts.Slack > 0 {
		out.Slack = opts.Slack
	}
	out.Width = opts.Width
	return out
}

type rect struct {
	x, y, w, h float64
}

func (r rect) overlaps(o rect) bool {
	return r.x < o.x+o.w-eps && r.x+r.w > o.x+eps &&
		r.y < o.y+o.h-eps && r.y+r.h > o.y+eps
}

func (r rect) contains(o rect) bool {
	return r.x <= o.x+eps && r.y <= o.y+eps &&
		r.x+r.w >= o.x+o.w-eps && r.y+r.h >= o.y+o.h-eps
}

// packer keeps the maximal free rectangles of a bin and splits every one a placement touches
type packer struct {
	free []rect
}

func newPacker(w, h float64) *packer {
	return &packer{free: []rect{{0, 0, w, h}}}
}

// insert places a w by h piece at the free position with the lowest bottom edge, then the
// lowest x, then the tightest area fit.
func (p *packer) insert(w, h float64) (float64, float64, bool) {
	best := -1
	var bestBottom, bestX, bestFit float64
	for i, r := range p.free {
		if w > r.w+eps || h > r.h+eps {
			continue
		}
		bottom, fit := r.y+h, r.w*r.h-w*h
		better := best < 0 ||
			bottom < bestBottom-eps ||
			(math.Abs(bottom-bestBottom) <= eps && (r.x < bestX-eps ||
				(math.Abs(r.x-bestX) <= eps && fit < bestFit)))
		if better {
			best, bestBottom, bestX, bestFit = i, bottom, r.x, fit
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	r := p.free[best]
	p.split(rect{r.x, r.y, w, h})
	return r.x, r.y, true
}

func (p *packer) split(placed rect) {
	var next []rect
	for _, r := range p.free {
		if !r.overlaps(placed) {
			next = append(next, r)
			continue
		}
		if placed.x > r.x+eps {
			next = append(next, rect{r.x, r.y, placed.x - r.x, r.h})
		}
		if placed.x+placed.w < r.x+r.w-eps {
			next = append(next, rect{placed.x + placed.w, r.y, r.x + r.w - placed.x - placed.w, r.h})
		}
		if placed.y > r.y+eps {
			next = append(next, rect{r.x, r.y, r.w, placed.y - r.y})
		}
		if placed.y+placed.h < r.y+r.h-eps {
			next = append(next, rect{r.x, placed.y + placed.h, r.w, r.y + r.h - placed.y - placed.h})
		}
	}
	p.free = pruneContained(next)
}

// pruneContained drops free rectangles inside another. Of two equal ones the first is kept.
func pruneContained(rects []rect) []rect {
	kept := make([]rect, 0, len(rects))
	for i, a := range rects {
		contained := false
		for j, b := range rects {
			if i == j || !b.contains(a) {
				continue
			}
			if a.contains(b) && i < j {
				continue
			}
			contained = true
			break
		}
		if !contained {
			kept = append(kept, a)
		}
	}
	return kept
}

// Pack places items in the given order inside a bin roughly as wide as the square root of
// their total area. Items are separated by Spacing. It returns top-left positions keyed by id
// and the bounding box of the placed items, nil when there are none.
func Pack(items []Item, opts *Options) (map[string]*geo.Point, *geo.Box) {
	o := opts.withDefaults()
	positions := make(map[string]*geo.Point, len(items))
	if len(items) == 0 {
		return positions, nil
	}

	var area, maxW, height float64
	for _, it := range items {
		w, h := it.Width+o.Spacing, it.Height+o.Spacing
		area += w * h
		maxW = math.Max(maxW, w)
		height += h
	}
	width := o.Width + o.Spacing
	if o.Width <= 0 {
		width = math.Max(maxW, math.Sqrt(area*o.Slack))
	}
	width = math.Max(width, maxW)

	p := newPacker(width, height)
	var boxes []*geo.Box
	for _, it := range items {
		x, y, ok := p.insert(it.Width+o.Spacing, it.Height+o.Spacing)
		if !ok {
			// the bin is as tall as every item stacked, so this only trips on NaN sizes
			x, y = 0, height
			height += it.Height + o.Spacing
		}
		positions[it.ID] = geo.NewPoint(x, y)
		boxes = append(boxes, geo.NewBox(geo.NewPoint(x, y), it.Width, it.Height))
	}
	return positions, geo.BoundingBox(boxes...)
}

// Link is an undirected connection between two item ids
type Link [2]string

// Components groups item ids into connected components over links, in item order.
func Components(items []Item, links []Link) [][]string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	uf := NewUnionFind(ids)
	for _, l := range links {
		uf.Union(l[0], l[1])
	}
	return uf.Groups()
}

// Cluster packs each connected component on its own, placing its best connected items first,
// then packs the component footprints together, largest first.
func Cluster(items []Item, links []Link, opts *Options) (map[string]*geo.Point, *geo.Box) {
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	degree := make(map[string]int)
	for _, l := range links {
		if l[0] == l[1] {
			continue
		}
		if _, ok := byID[l[0]]; !ok {
			continue
		}
		if _, ok := byID[l[1]]; !ok {
			continue
		}
		degree[l[0]]++
		degree[l[1]]++
	}

	type component struct {
		id        string
		positions map[string]*geo.Point
		bbox      *geo.Box
	}
	var comps []component
	for _, ids := range Components(items, links) {
		sort.SliceStable(ids, func(i, j int) bool {
			return degree[ids[i]] > degree[ids[j]]
		})
		members := make([]Item, 0, len(ids))
		for _, id := range ids {
			members = append(members, byID[id])
		}
		positions, bbox := Pack(members, opts)
		comps = append(comps, component{id: ids[0], positions: positions, bbox: bbox})
	}
	sort.SliceStable(comps, func(i, j int) bool {
		return comps[i].bbox.Area() > comps[j].bbox.Area()
	})

	footprints := make([]Item, 0, len(comps))
	for _, c := range comps {
		footprints = append(footprints, Item{ID: c.id, Width: c.bbox.Width, Height: c.bbox.Height})
	}
	offsets, _ := Pack(footprints, opts)

	out := make(map[string]*geo.Point, len(items))
	var boxes []*geo.Box
	for _, c := range comps {
		off := offsets[c.id]
		for id, p := range c.positions {
			q := geo.NewPoint(off.X+p.X-c.bbox.TopLeft.X, off.Y+p.Y-c.bbox.TopLeft.Y)
			out[id] = q
			it := byID[id]
			boxes = append(boxes, geo.NewBox(q, it.Width, it.Height))
		}
	}
	return out, geo.BoundingBox(boxes...)
}
