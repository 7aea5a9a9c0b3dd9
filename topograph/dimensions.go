package topograph

import (
	"math"
	"time"
)

const DEFAULT_DIMENSIONS_MAX_AGE = 5 * time.Second

// LayoutDimensions records the three nested footprints of a node:
// the bare shape (Core), what is painted including label and icon (Visual),
// and what layout must reserve (Layout).
type LayoutDimensions struct {
	Core      Size
	Visual    Size
	Layout    Size
	Source    SizeSource
	Timestamp time.Time
	Modifiers Modifiers
}

type Modifiers struct {
	IconSizePercent float64
}

// Normalize enforces Layout >= Visual >= Core on both axes
func (ld *LayoutDimensions) Normalize() {
	ld.Visual.Width = math.Max(ld.Visual.Width, ld.Core.Width)
	ld.Visual.Height = math.Max(ld.Visual.Height, ld.Core.Height)
	ld.Layout.Width = math.Max(ld.Layout.Width, ld.Visual.Width)
	ld.Layout.Height = math.Max(ld.Layout.Height, ld.Visual.Height)
}

// Dimensions is an arena of dimension records keyed by node id.
// One is created per layout run and passed down explicitly.
type Dimensions struct {
	MaxAge time.Duration
	now    func() time.Time
	byID   map[string]*LayoutDimensions
}

func NewDimensions(maxAge time.Duration) *Dimensions {
	if maxAge <= 0 {
		maxAge = DEFAULT_DIMENSIONS_MAX_AGE
	}
	return &Dimensions{
		MaxAge: maxAge,
		now:    time.Now,
		byID:   make(map[string]*LayoutDimensions),
	}
}

// WithClock replaces the time source, for tests.
func (d *Dimensions) WithClock(now func() time.Time) *Dimensions {
	d.now = now
	return d
}

// Get returns a fresh record. Stale records are reported as missing and must be recomputed.
func (d *Dimensions) Get(id string) (*LayoutDimensions, bool) {
	ld, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	if d.now().Sub(ld.Timestamp) > d.MaxAge {
		return nil, false
	}
	return ld, true
}

func (d *Dimensions) Set(id string, ld LayoutDimensions) *LayoutDimensions {
	ld.Normalize()
	if ld.Timestamp.IsZero() {
		ld.Timestamp = d.now()
	}
	d.byID[id] = &ld
	return &ld
}

func (d *Dimensions) Delete(id string) {
	delete(d.byID, id)
}

func (d *Dimensions) Len() int {
	return len(d.byID)
}

// Resolve returns the node's record, computing and storing a new one when missing or stale.
func (d *Dimensions) Resolve(n *Node) *LayoutDimensions {
	if ld, ok := d.Get(n.ID); ok {
		return ld
	}
	return d.Set(n.ID, Compute(n))
}

// LayoutSize is the footprint layout should reserve for n
func (d *Dimensions) LayoutSize(n *Node) (float64, float64) {
	ld := d.Resolve(n)
	return ld.Layout.Width, ld.Layout.Height
}

// Compute derives a record from the node's own sizing sources.
// Devices with an icon fill above 100% paint outside their core box, so Visual grows with it.
func Compute(n *Node) LayoutDimensions {
	w, h, src := n.Size()
	ld := LayoutDimensions{
		Core:   Size{Width: w, Height: h},
		Visual: Size{Width: w, Height: h},
		Layout: Size{Width: w, Height: h},
		Source: src,
	}
	if dev, ok := n.AsDevice(); ok && dev.IconSizePercent > 0 {
		ld.Modifiers.IconSizePercent = dev.IconSizePercent
		if dev.IconSizePercent > 100 {
			scale := dev.IconSizePercent / 100
			ld.Visual = Size{Width: w * scale, Height: h * scale}
		}
	}
	ld.Normalize()
	return ld
}
