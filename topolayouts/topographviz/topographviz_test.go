package topographviz_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/topographviz"
)

func device(id, parent string) *topograph.Node {
	return &topograph.Node{
		ID:       id,
		ParentID: parent,
		Width:    go2.Pointer(100.),
		Height:   go2.Pointer(100.),
		Variant:  &topograph.Device{},
	}
}

func boundary(id, parent string) *topograph.Node {
	return &topograph.Node{ID: id, ParentID: parent, Variant: &topograph.Boundary{}}
}

func campus(t *testing.T) *topograph.Graph {
	g, err := topograph.NewGraph([]*topograph.Node{
		boundary("corp", ""),
		boundary("dmz", "corp"),
		device("web", "dmz"),
		device("proxy", "dmz"),
		device("db", "corp"),
		device("internet", ""),
	}, []*topograph.Edge{
		{ID: "1", Source: "internet", Target: "proxy"},
		{ID: "2", Source: "proxy", Target: "web"},
		{ID: "3", Source: "web", Target: "db"},
		{ID: "4", Source: "internet", Target: "dmz"},
	})
	assert.Nil(t, err)
	return g
}

func TestToDOT(t *testing.T) {
	dot, ids := topographviz.ToDOT(campus(t), &topograph.NestedRequest{
		Direction:   topograph.DirectionLR,
		NodeSpacing: 72,
		RankSpacing: 144,
	})
	assert.Equal(t, "cluster_0", ids["corp"])
	assert.Equal(t, "cluster_1", ids["dmz"])
	assert.Equal(t, "n2", ids["web"])
	assert.Equal(t, "n5", ids["internet"])

	assert.Contains(t, dot, "rankdir=LR")
	assert.Contains(t, dot, "nodesep=1.0000, ranksep=2.0000")
	assert.Contains(t, dot, "n2 [width=1.3889, height=1.3889];")
	assert.Contains(t, dot, "graph [margin=45.00];")
	assert.Contains(t, dot, "n5 -> a1 [lhead=cluster_1];")
	assert.Contains(t, dot, "n3 -> n2;")
	assert.Equal(t, strings.Count(dot, "{"), strings.Count(dot, "}"))
}

func TestParseLayout(t *testing.T) {
	out := `digraph G {
	graph [bb="0,0,262,3\
00",
		compound=true
	];
	node [label=""];
	subgraph cluster_0 {
		graph [bb="8,8,254,292",
			margin=45.00
		];
		a0	[height=0.01,
			pos="20,20",
			width=0.01];
		n1	[height=1.3889,
			pos="131,150",
			width=1.3889];
	}
	n2	[pos="300,40"];
	n2 -> n1	[pos="e,131,200 300,90"];
}
`
	l, err := topographviz.ParseLayout(out)
	assert.Nil(t, err)
	assert.Equal(t, 300., l.Height)
	assert.Equal(t, geo.NewBox(geo.NewPoint(8, 8), 246, 284), l.Boxes["cluster_0"])
	assert.Equal(t, map[string]*geo.Point{
		"n1": geo.NewPoint(131, 150),
		"n2": geo.NewPoint(300, 260),
	}, l.Nodes)

	_, err = topographviz.ParseLayout("not dot")
	assert.NotNil(t, err)
}

func TestNestedLayout(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := campus(t)
	err := topographviz.NestedLayout(ctx, g, &topograph.NestedRequest{
		Direction:   topograph.DirectionTB,
		NodeSpacing: 40,
		RankSpacing: 60,
		Padding:     45,
	})
	assert.Nil(t, err)

	for _, n := range g.Nodes {
		if n.ParentID == "" {
			continue
		}
		parent := g.AbsoluteBox(n.ParentID)
		child := g.AbsoluteBox(n.ID)
		assert.True(t, parent.Contains(child), "%s in %s", n.ID, n.ParentID)
	}
	web, proxy := g.AbsoluteBox("web"), g.AbsoluteBox("proxy")
	assert.False(t, web.Overlaps(proxy))
	assert.Less(t, proxy.TopLeft.Y, web.TopLeft.Y)
}

func TestNestedLayoutSkipsLocked(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := campus(t)
	internet, _ := g.Node("internet")
	internet.Locked = true
	internet.TopLeft = geo.NewPoint(-500, -500)
	err := topographviz.NestedLayout(ctx, g, &topograph.NestedRequest{
		Direction:   topograph.DirectionTB,
		NodeSpacing: 40,
		RankSpacing: 60,
		Padding:     45,
	})
	assert.Nil(t, err)
	assert.Equal(t, geo.NewPoint(-500, -500), internet.TopLeft)
}

func TestContainerLayout(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := campus(t)
	positions, err := topographviz.ContainerLayout(ctx, &topograph.LayoutRequest{
		BoundaryID: "dmz",
		Graph:      g,
		Target:     geo.NewBox(geo.NewPoint(45, 45), 0, 0),
		Direction:  topograph.DirectionTB,
	})
	assert.Nil(t, err)
	assert.Len(t, positions, 2)
	assert.Less(t, positions["proxy"].Y, positions["web"].Y)
	assert.GreaterOrEqual(t, positions["proxy"].X, 45.)
}
