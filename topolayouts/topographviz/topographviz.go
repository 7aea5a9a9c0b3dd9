// Package topographviz lays out diagrams with Graphviz dot. Boundaries become clusters, so the
// whole ownership tree is placed in a single call, and every size is fixed up front.
package topographviz

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cdr.dev/slog"
	"github.com/goccy/go-graphviz"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/topograph"
)

// dot works in points
const dpi = 72.

var rankdirs = map[topograph.Direction]string{
	topograph.DirectionTB: "TB",
	topograph.DirectionBT: "BT",
	topograph.DirectionLR: "LR",
	topograph.DirectionRL: "RL",
}

// names maps diagram ids to dot identifiers. Diagram ids are arbitrary strings,
// dot ids here are always n<i> for nodes and cluster_<i> for boundaries.
type names struct {
	dot map[string]string
}

func newNames() *names {
	return &names{dot: make(map[string]string)}
}

func (ns *names) add(id, dotID string) {
	ns.dot[id] = dotID
}

type writer struct {
	buf   bytes.Buffer
	g     *topograph.Graph
	dims  *topograph.Dimensions
	names *names
	// anchors are invisible nodes inside each cluster that edges to a boundary attach to
	anchors map[string]string
	padding float64
}

func (w *writer) size(n *topograph.Node) (float64, float64) {
	if w.dims != nil {
		return w.dims.LayoutSize(n)
	}
	width, height, _ := n.Size()
	return width, height
}

func (w *writer) line(depth int, format string, args ...interface{}) {
	w.buf.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&w.buf, format, args...)
	w.buf.WriteByte('\n')
}

func (w *writer) header(dir topograph.Direction, nodeSpacing, rankSpacing float64) {
	w.line(0, "digraph G {")
	w.line(1, "graph [rankdir=%s, compound=true, nodesep=%.4f, ranksep=%.4f];", rankdir(dir), nodeSpacing/dpi, rankSpacing/dpi)
	w.line(1, `node [shape=box, fixedsize=true, label=""];`)
}

func rankdir(dir topograph.Direction) string {
	if r, ok := rankdirs[dir]; ok {
		return r
	}
	return "TB"
}

func (w *writer) node(depth int, n *topograph.Node) {
	id := fmt.Sprintf("n%d", len(w.names.dot))
	w.names.add(n.ID, id)
	width, height := w.size(n)
	w.line(depth, "%s [width=%.4f, height=%.4f];", id, width/dpi, height/dpi)
}

func (w *writer) cluster(depth int, b *topograph.Node) {
	id := fmt.Sprintf("cluster_%d", len(w.names.dot))
	w.names.add(b.ID, id)
	w.line(depth, "subgraph %s {", id)
	w.line(depth+1, "graph [margin=%.2f];", b.Padding(w.padding))
	anchor := fmt.Sprintf("a%d", len(w.anchors))
	w.anchors[b.ID] = anchor
	w.line(depth+1, "%s [shape=point, width=0.01, height=0.01, style=invis];", anchor)
	w.children(depth+1, b.ID)
	w.line(depth, "}")
}

func (w *writer) children(depth int, parentID string) {
	for _, c := range w.g.Children(parentID) {
		if c.IsBoundary() {
			w.cluster(depth, c)
		} else {
			w.node(depth, c)
		}
	}
}

func (w *writer) endpoint(id string) (string, string, bool) {
	if anchor, ok := w.anchors[id]; ok {
		return anchor, w.names.dot[id], true
	}
	dotID, ok := w.names.dot[id]
	return dotID, "", ok
}

func (w *writer) edges() {
	for _, e := range w.g.Edges {
		src, ltail, ok := w.endpoint(e.Source)
		if !ok {
			continue
		}
		dst, lhead, ok := w.endpoint(e.Target)
		if !ok || e.Source == e.Target {
			continue
		}
		var attrs []string
		if ltail != "" {
			attrs = append(attrs, "ltail="+ltail)
		}
		if lhead != "" {
			attrs = append(attrs, "lhead="+lhead)
		}
		if len(attrs) > 0 {
			w.line(1, "%s -> %s [%s];", src, dst, strings.Join(attrs, ", "))
		} else {
			w.line(1, "%s -> %s;", src, dst)
		}
	}
}

// ToDOT writes the whole ownership tree as nested clusters. It also returns the dot id given
// to every diagram id.
func ToDOT(g *topograph.Graph, req *topograph.NestedRequest) (string, map[string]string) {
	w := &writer{
		g:       g,
		dims:    req.Dimensions,
		names:   newNames(),
		anchors: make(map[string]string),
		padding: req.Padding,
	}
	if w.padding <= 0 {
		w.padding = topograph.DEFAULT_PADDING
	}
	w.header(req.Direction, req.NodeSpacing, req.RankSpacing)
	w.children(1, "")
	w.edges()
	w.line(0, "}")
	return w.buf.String(), w.names.dot
}

func render(ctx context.Context, dot string) (string, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return "", fmt.Errorf("parse DOT: %w", err)
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return buf.String(), nil
}

var (
	continuationRe = regexp.MustCompile(`\\\r?\n`)
	rootRe         = regexp.MustCompile(`(?s)^\s*(?:strict\s+)?digraph[^{]*\{\s*graph\s*\[([^\]]*)\]`)
	clusterRe      = regexp.MustCompile(`subgraph\s+"?(cluster_\d+)"?\s*\{\s*graph\s*\[([^\]]*)\]`)
	nodeRe         = regexp.MustCompile(`(?m)^\s*"?(n\d+)"?\s*\[([^\]]*)\]`)
	bbRe           = regexp.MustCompile(`bb="([^"]+)"`)
	posRe          = regexp.MustCompile(`pos="([^"]+)"`)
)

// Layout is the geometry read back from dot, in top-down pixel coordinates
type Layout struct {
	Boxes map[string]*geo.Box
	Nodes map[string]*geo.Point
	// Height of the whole drawing, used to flip dot's upward y axis.
	Height float64
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) < n {
		return nil, fmt.Errorf("expected %d numbers in %q", n, s)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// ParseLayout reads the bounding boxes of clusters and the centers of nodes out of dot output.
// Node positions are returned as centers.
func ParseLayout(out string) (_ *Layout, err error) {
	defer xdefer.Errorf(&err, "failed to parse dot output")

	out = continuationRe.ReplaceAllString(out, "")
	root := rootRe.FindStringSubmatch(out)
	if root == nil {
		return nil, fmt.Errorf("missing graph attributes")
	}
	bb := bbRe.FindStringSubmatch(root[1])
	if bb == nil {
		return nil, fmt.Errorf("missing graph bounding box")
	}
	rootBB, err := parseFloats(bb[1], 4)
	if err != nil {
		return nil, err
	}
	l := &Layout{
		Boxes:  make(map[string]*geo.Box),
		Nodes:  make(map[string]*geo.Point),
		Height: rootBB[3],
	}

	for _, m := range clusterRe.FindAllStringSubmatch(out, -1) {
		bb := bbRe.FindStringSubmatch(m[2])
		if bb == nil {
			continue
		}
		f, err := parseFloats(bb[1], 4)
		if err != nil {
			return nil, fmt.Errorf("cluster %s: %w", m[1], err)
		}
		l.Boxes[m[1]] = geo.NewBox(geo.NewPoint(f[0], l.Height-f[3]), f[2]-f[0], f[3]-f[1])
	}
	for _, m := range nodeRe.FindAllStringSubmatch(out, -1) {
		pos := posRe.FindStringSubmatch(m[2])
		if pos == nil {
			continue
		}
		f, err := parseFloats(pos[1], 2)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", m[1], err)
		}
		l.Nodes[m[1]] = geo.NewPoint(f[0], l.Height-f[1])
	}
	return l, nil
}

// NestedLayout places every node and sizes every boundary of g in one dot run.
func NestedLayout(ctx context.Context, g *topograph.Graph, req *topograph.NestedRequest) (err error) {
	defer xdefer.Errorf(&err, "graphviz nested layout failed")

	dot, dotIDs := ToDOT(g, req)
	out, err := render(ctx, dot)
	if err != nil {
		return err
	}
	l, err := ParseLayout(out)
	if err != nil {
		return err
	}

	abs := make(map[string]*geo.Point, len(g.Nodes))
	for _, n := range g.Nodes {
		dotID := dotIDs[n.ID]
		if box, ok := l.Boxes[dotID]; ok {
			n.SetSize(box.Width, box.Height)
			abs[n.ID] = box.TopLeft
			continue
		}
		center, ok := l.Nodes[dotID]
		if !ok {
			return fmt.Errorf("dot returned no position for %q", n.ID)
		}
		w, h := sizeOf(req.Dimensions, n)
		abs[n.ID] = geo.NewPoint(center.X-w/2, center.Y-h/2)
	}
	for _, n := range g.Nodes {
		if n.Locked {
			continue
		}
		p := abs[n.ID]
		if parent, ok := abs[n.ParentID]; ok {
			p = geo.NewPoint(p.X-parent.X, p.Y-parent.Y)
		}
		n.TopLeft = p
	}
	log.Debug(ctx, "graphviz nested layout", slog.F("nodes", len(g.Nodes)), slog.F("height", l.Height))
	return nil
}

func sizeOf(dims *topograph.Dimensions, n *topograph.Node) (float64, float64) {
	if dims != nil {
		return dims.LayoutSize(n)
	}
	w, h, _ := n.Size()
	return w, h
}

// ContainerLayout places the direct children of one boundary with dot, treating nested
// boundaries as opaque boxes at their current size.
func ContainerLayout(ctx context.Context, req *topograph.LayoutRequest) (_ map[string]*geo.Point, err error) {
	defer xdefer.Errorf(&err, "graphviz layout of %q failed", req.BoundaryID)

	children := req.Graph.Children(req.BoundaryID)
	positions := make(map[string]*geo.Point, len(children))
	if len(children) == 0 {
		return positions, nil
	}

	w := &writer{g: req.Graph, dims: req.Dimensions, names: newNames(), anchors: make(map[string]string)}
	w.header(req.Direction, req.NodeSpacing, req.RankSpacing)
	for _, c := range children {
		w.node(1, c)
	}
	for _, le := range req.Graph.LiftEdges(req.BoundaryID) {
		w.line(1, "%s -> %s;", w.names.dot[le.Source], w.names.dot[le.Target])
	}
	w.line(0, "}")

	out, err := render(ctx, w.buf.String())
	if err != nil {
		return nil, err
	}
	l, err := ParseLayout(out)
	if err != nil {
		return nil, err
	}
	origin := geo.NewPoint(0, 0)
	if req.Target != nil {
		origin = req.Target.TopLeft
	}
	for _, c := range children {
		center, ok := l.Nodes[w.names.dot[c.ID]]
		if !ok {
			return nil, fmt.Errorf("dot returned no position for %q", c.ID)
		}
		cw, ch := sizeOf(req.Dimensions, c)
		positions[c.ID] = geo.NewPoint(origin.X+center.X-cw/2, origin.Y+center.Y-ch/2)
	}
	return positions, nil
}
