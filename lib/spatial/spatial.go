// Package spatial implements a uniform-grid spatial hash used for broad-phase overlap queries.
//
// World coordinates map to cells via floor(coord / cellSize). An item is stored in every cell
// its rectangle touches, so a query only has to look at the cells covered by the query box.
// With items that are small relative to the cell, total query work is expected O(n).
package spatial

import (
	"math"
	"sort"

	"oss.terrastruct.com/topo/lib/geo"
)

type Item struct {
	ID  string
	Box *geo.Box
}

type cell struct {
	x, y int
}

type Hash struct {
	cellSize float64
	cells    map[cell][]Item
	items    int
}

type Stats struct {
	CellSize    float64
	Cells       int
	Items       int
	MaxPerCell  int
	AvgPerCell  float64
	Occurrences int
}

func New(cellSize float64) *Hash {
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		cellSize = 1
	}
	return &Hash{
		cellSize: cellSize,
		cells:    make(map[cell][]Item),
	}
}

// RecommendedCellSize sizes cells so most items occupy a single cell
func RecommendedCellSize(items []Item, clearance float64) float64 {
	var max float64
	for _, it := range items {
		max = math.Max(max, math.Max(it.Box.Width, it.Box.Height))
	}
	return max + clearance
}

func (h *Hash) CellSize() float64 {
	return h.cellSize
}

func (h *Hash) toCell(v float64) int {
	return int(math.Floor(v / h.cellSize))
}

// span returns the inclusive cell range covered by b
func (h *Hash) span(b *geo.Box) (minX, minY, maxX, maxY int) {
	return h.toCell(b.TopLeft.X), h.toCell(b.TopLeft.Y), h.toCell(b.Right()), h.toCell(b.Bottom())
}

// Cells returns the cells b touches, in row-major order
func (h *Hash) Cells(b *geo.Box) [][2]int {
	minX, minY, maxX, maxY := h.span(b)
	out := make([][2]int, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			out = append(out, [2]int{x, y})
		}
	}
	return out
}

func (h *Hash) Insert(it Item) {
	minX, minY, maxX, maxY := h.span(it.Box)
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			c := cell{x, y}
			h.cells[c] = append(h.cells[c], it)
		}
	}
	h.items++
}

// Query returns every item sharing at least one cell with b, deduplicated by ID.
// The result is sorted by ID so callers get a stable order.
func (h *Hash) Query(b *geo.Box) []Item {
	seen := make(map[string]struct{})
	var out []Item
	minX, minY, maxX, maxY := h.span(b)
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			for _, it := range h.cells[cell{x, y}] {
				if _, ok := seen[it.ID]; ok {
					continue
				}
				seen[it.ID] = struct{}{}
				out = append(out, it)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func (h *Hash) Clear() {
	h.cells = make(map[cell][]Item)
	h.items = 0
}

func (h *Hash) Rebuild(cellSize float64, items []Item) {
	*h = *New(cellSize)
	for _, it := range items {
		h.Insert(it)
	}
}

func (h *Hash) Stats() Stats {
	s := Stats{
		CellSize: h.cellSize,
		Cells:    len(h.cells),
		Items:    h.items,
	}
	for _, its := range h.cells {
		s.Occurrences += len(its)
		if len(its) > s.MaxPerCell {
			s.MaxPerCell = len(its)
		}
	}
	if s.Cells > 0 {
		s.AvgPerCell = float64(s.Occurrences) / float64(s.Cells)
	}
	return s
}
