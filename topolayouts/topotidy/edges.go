package topotidy

import (
	"context"

	"cdr.dev/slog"

	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/topochannel"
	"oss.terrastruct.com/topo/topolayouts/topoport"
)

const (
	// boundaries take their depth as z-index, always below edges
	MAX_BOUNDARY_Z = 999
	EDGE_Z         = 1000
	DEVICE_Z       = 2000
)

// routeEdges assigns ports to every edge, then handler routes to edges crossing boundaries
func (t *tidier) routeEdges(ctx context.Context, g *topograph.Graph) {
	ports := topoport.Route(g, g.Edges, t.o.Direction, &topoport.Options{PortSpacing: t.o.PortSpacing})
	if len(ports.Missing) > 0 {
		log.Warn(ctx, "edges with missing endpoints left unrouted", slog.F("edges", ports.Missing))
	}
	t.stats.MissingEdges = ports.Missing

	channels := topochannel.Route(g, ports.Edges, nil)
	for id, err := range channels.Errors {
		log.Warn(ctx, "channel routing failed", slog.F("edge", id), slog.Error(err))
	}
	t.stats.RoutedEdges = channels.Routed
	g.Edges = channels.Edges
}

// applyZOrder stacks boundaries by depth beneath edges, and edges beneath devices
func applyZOrder(g *topograph.Graph) {
	for _, n := range g.Nodes {
		if n.IsBoundary() {
			z := g.Depth(n.ID)
			if z > MAX_BOUNDARY_Z {
				z = MAX_BOUNDARY_Z
			}
			n.ZIndex = z
		} else {
			n.ZIndex = DEVICE_Z
		}
	}
	for _, e := range g.Edges {
		e.ZIndex = EDGE_Z
	}
}
