package geo

import (
	"fmt"
	"math"
)

type Box struct {
	TopLeft *Point
	Width   float64
	Height  float64
}

func NewBox(tl *Point, width, height float64) *Box {
	return &Box{
		TopLeft: tl,
		Width:   width,
		Height:  height,
	}
}

func (b *Box) Copy() *Box {
	if b == nil {
		return nil
	}
	return NewBox(b.TopLeft.Copy(), b.Width, b.Height)
}

func (b *Box) Center() *Point {
	return NewPoint(b.TopLeft.X+b.Width/2, b.TopLeft.Y+b.Height/2)
}

func (b *Box) Right() float64 {
	return b.TopLeft.X + b.Width
}

func (b *Box) Bottom() float64 {
	return b.TopLeft.Y + b.Height
}

func (b *Box) Area() float64 {
	return b.Width * b.Height
}

// Expand grows the box by pad on every side. A negative pad shrinks it.
func (b *Box) Expand(pad float64) *Box {
	return NewBox(NewPoint(b.TopLeft.X-pad, b.TopLeft.Y-pad), b.Width+2*pad, b.Height+2*pad)
}

// Overlaps is an open-interval rectangle test: boxes that only share an edge do not overlap.
func (b *Box) Overlaps(o *Box) bool {
	return b.TopLeft.X < o.Right() && o.TopLeft.X < b.Right() &&
		b.TopLeft.Y < o.Bottom() && o.TopLeft.Y < b.Bottom()
}

// OverlapExtent returns how far the boxes interpenetrate on each axis.
// Non-positive values mean the boxes are separated on that axis.
func (b *Box) OverlapExtent(o *Box) (float64, float64) {
	dx := math.Min(b.Right(), o.Right()) - math.Max(b.TopLeft.X, o.TopLeft.X)
	dy := math.Min(b.Bottom(), o.Bottom()) - math.Max(b.TopLeft.Y, o.TopLeft.Y)
	return dx, dy
}

func (b *Box) IntersectionArea(o *Box) float64 {
	dx, dy := b.OverlapExtent(o)
	if dx <= 0 || dy <= 0 {
		return 0
	}
	return dx * dy
}

// Contains reports whether o lies entirely within b (edges may touch)
func (b *Box) Contains(o *Box) bool {
	return o.TopLeft.X >= b.TopLeft.X && o.TopLeft.Y >= b.TopLeft.Y &&
		o.Right() <= b.Right() && o.Bottom() <= b.Bottom()
}

func (b *Box) Intersections(s Segment) []*Point {
	pts := []*Point{}

	tl := b.TopLeft
	tr := NewPoint(tl.X+b.Width, tl.Y)
	br := NewPoint(tr.X, tr.Y+b.Height)
	bl := NewPoint(tl.X, br.Y)

	if p := IntersectionPoint(s.Start, s.End, tl, tr); p != nil {
		pts = append(pts, p)
	}
	if p := IntersectionPoint(s.Start, s.End, tr, br); p != nil {
		pts = append(pts, p)
	}
	if p := IntersectionPoint(s.Start, s.End, br, bl); p != nil {
		pts = append(pts, p)
	}
	if p := IntersectionPoint(s.Start, s.End, bl, tl); p != nil {
		pts = append(pts, p)
	}
	return pts
}

// BoundingBox returns the smallest box containing every given box, or nil when there are none
func BoundingBox(boxes ...*Box) *Box {
	if len(boxes) == 0 {
		return nil
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, b := range boxes {
		minX = math.Min(minX, b.TopLeft.X)
		minY = math.Min(minY, b.TopLeft.Y)
		maxX = math.Max(maxX, b.Right())
		maxY = math.Max(maxY, b.Bottom())
	}
	return NewBox(NewPoint(minX, minY), maxX-minX, maxY-minY)
}

func (b *Box) ToString() string {
	if b == nil {
		return ""
	}
	return fmt.Sprintf("{TopLeft: %s, Width: %.0f, Height: %.0f}", b.TopLeft.ToString(), b.Width, b.Height)
}
