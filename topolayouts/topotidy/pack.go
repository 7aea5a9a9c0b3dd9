package topotidy

import (
	"context"

	"cdr.dev/slog"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/topopack"
)

// packRoot bin-packs root boundaries into one block and orphan devices, grouped by
// connectivity, into another placed after it along the cross axis. Locked nodes stay put.
func (t *tidier) packRoot(ctx context.Context, g *topograph.Graph) {
	var boundaries, orphans []topopack.Item
	var pinned []*geo.Box
	for _, n := range g.Children("") {
		if n.Locked {
			w, h := t.dims().LayoutSize(n)
			pinned = append(pinned, geo.NewBox(n.TopLeft.Copy(), w, h))
			continue
		}
		w, h := t.dims().LayoutSize(n)
		it := topopack.Item{ID: n.ID, Width: w, Height: h}
		if n.IsBoundary() {
			boundaries = append(boundaries, it)
		} else {
			orphans = append(orphans, it)
		}
	}

	gap := t.o.spacing(t.o.PackSpacing)
	popts := &topopack.Options{Spacing: gap}

	// packed blocks start past the locked nodes so nothing lands on them
	base := geo.NewPoint(0, 0)
	if locked := geo.BoundingBox(pinned...); locked != nil {
		if t.o.Direction.IsVertical() {
			base = geo.NewPoint(locked.Right()+gap, 0)
		} else {
			base = geo.NewPoint(0, locked.Bottom()+gap)
		}
	}

	var block *geo.Box
	if len(boundaries) > 0 {
		positions, bbox := topopack.Pack(boundaries, popts)
		t.place(g, positions, base)
		block = bbox
	}
	if len(orphans) == 0 {
		return
	}

	var links []topopack.Link
	for _, e := range g.Edges {
		links = append(links, topopack.Link{e.Source, e.Target})
	}
	positions, _ := topopack.Cluster(orphans, links, popts)

	origin := base
	if block != nil {
		if t.o.Direction.IsVertical() {
			origin = base.Add(block.Right()+gap, 0)
		} else {
			origin = base.Add(0, block.Bottom()+gap)
		}
	}
	t.place(g, positions, origin)

	log.Debug(ctx, "packed root level",
		slog.F("boundaries", len(boundaries)),
		slog.F("orphans", len(orphans)),
	)
}

func (t *tidier) place(g *topograph.Graph, positions map[string]*geo.Point, origin *geo.Point) {
	for id, p := range positions {
		if n, ok := g.Node(id); ok {
			n.TopLeft = origin.Add(p.X, p.Y)
		}
	}
}
