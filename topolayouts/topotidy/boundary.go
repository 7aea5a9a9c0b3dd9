package topotidy

import (
	"context"

	"go.uber.org/multierr"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/topograph"
)

func appendErr(errs, err error) error {
	return multierr.Append(errs, err)
}

// layoutBoundary places b's direct children with the container layout, then normalizes and
// refits b right away so ancestors later in the same pass see its new size.
// On failure b's children are left untouched.
func (t *tidier) layoutBoundary(ctx context.Context, g *topograph.Graph, b *topograph.Node) error {
	children := g.Children(b.ID)
	if len(children) == 0 {
		return nil
	}
	pad := b.Padding(t.o.Padding)
	w, h := t.dims().LayoutSize(b)
	positions, err := t.o.ContainerLayout(ctx, &topograph.LayoutRequest{
		BoundaryID:  b.ID,
		Graph:       g,
		Target:      geo.NewBox(geo.NewPoint(pad, pad), w-2*pad, h-2*pad),
		Direction:   t.o.Direction,
		NodeSpacing: t.o.spacing(t.o.NodeSpacing),
		RankSpacing: t.o.spacing(t.o.RankSpacing),
		Dimensions:  t.dims(),
	})
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.Locked {
			continue
		}
		if p, ok := positions[c.ID]; ok && p != nil {
			c.TopLeft = p.Copy()
		}
	}
	t.fit(g, b)
	return nil
}

// childBounds is the bounding box of b's children in b's local space, nil when it has none
func (t *tidier) childBounds(g *topograph.Graph, b *topograph.Node) *geo.Box {
	var boxes []*geo.Box
	for _, c := range g.Children(b.ID) {
		w, h := t.dims().LayoutSize(c)
		boxes = append(boxes, geo.NewBox(c.TopLeft, w, h))
	}
	return geo.BoundingBox(boxes...)
}

// fit shifts b's unlocked children so their bounding box starts at (padding, padding) and
// resizes b around them. Boundaries holding other boundaries get NestedMargin extra room.
func (t *tidier) fit(g *topograph.Graph, b *topograph.Node) {
	bounds := t.childBounds(g, b)
	if bounds == nil {
		return
	}
	pad := b.Padding(t.o.Padding)
	inset := pad
	for _, c := range g.Children(b.ID) {
		if c.IsBoundary() {
			inset += t.o.NestedMargin
			break
		}
	}

	dx, dy := inset-bounds.TopLeft.X, inset-bounds.TopLeft.Y
	for _, c := range g.Children(b.ID) {
		if c.Locked {
			continue
		}
		c.TopLeft = c.TopLeft.Add(dx, dy)
	}
	bounds = t.childBounds(g, b)

	w, h := bounds.Right()+inset, bounds.Bottom()+inset
	b.SetSize(w, h)
	t.dims().Set(b.ID, topograph.LayoutDimensions{
		Core:   topograph.Size{Width: w, Height: h},
		Visual: topograph.Size{Width: w, Height: h},
		Layout: topograph.Size{Width: w, Height: h},
		Source: topograph.SourceLayout,
	})
}
