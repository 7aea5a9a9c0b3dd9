package topoport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/topoport"
)

func device(id, parent string, x, y float64) *topograph.Node {
	return &topograph.Node{
		ID:       id,
		ParentID: parent,
		TopLeft:  geo.NewPoint(x, y),
		Width:    go2.Pointer(100.),
		Height:   go2.Pointer(100.),
		Variant:  &topograph.Device{},
	}
}

func edge(id, src, dst string) *topograph.Edge {
	return &topograph.Edge{ID: id, Source: src, Target: dst}
}

func TestChainInBoundary(t *testing.T) {
	g, err := topograph.NewGraph([]*topograph.Node{
		{ID: "zone", Variant: &topograph.Boundary{}},
		device("A", "zone", 45, 45),
		device("B", "zone", 45, 185),
		device("C", "zone", 45, 325),
	}, []*topograph.Edge{
		edge("ab", "A", "B"),
		edge("bc", "B", "C"),
	})
	assert.Nil(t, err)

	res := topoport.Route(g, g.Edges, topograph.DirectionTB, nil)
	assert.Empty(t, res.Missing)
	for _, e := range res.Edges {
		assert.Equal(t, topograph.SideBottom, e.SourceSide, e.ID)
		assert.Equal(t, topograph.SideTop, e.TargetSide, e.ID)
		assert.Equal(t, 0, e.SourceHandleIndex, e.ID)
		assert.Equal(t, 0, e.TargetHandleIndex, e.ID)
		assert.Equal(t, 0., e.SourceOffset, e.ID)
	}
	assert.Equal(t, "bottom-0", res.Edges[0].SourceHandle)
	assert.Equal(t, "top-0", res.Edges[1].TargetHandle)

	// input edges are untouched
	assert.Equal(t, topograph.Side(""), g.Edges[0].SourceSide)
}

func TestDownstreamAlwaysCanonical(t *testing.T) {
	// a fan with a feedback edge and a sibling pair
	g, err := topograph.NewGraph([]*topograph.Node{
		device("root", "", 200, 0),
		device("l", "", 0, 200),
		device("r", "", 400, 200),
		device("leaf", "", 200, 400),
	}, []*topograph.Edge{
		edge("1", "root", "l"),
		edge("2", "root", "r"),
		edge("3", "l", "leaf"),
		edge("4", "r", "leaf"),
		edge("6", "leaf", "root"),
		edge("7", "l", "r"),
	})
	assert.Nil(t, err)

	res := topoport.Route(g, g.Edges, topograph.DirectionTB, nil)
	for _, e := range res.Edges {
		rel := topoport.Classify(res.Ranks[e.Source], res.Ranks[e.Target], 0)
		switch rel {
		case topoport.Downstream:
			assert.Equal(t, topograph.SideBottom, e.SourceSide, e.ID)
			assert.Equal(t, topograph.SideTop, e.TargetSide, e.ID)
		case topoport.Upstream:
			assert.Equal(t, topograph.SideTop, e.SourceSide, e.ID)
			assert.Equal(t, topograph.SideBottom, e.TargetSide, e.ID)
		}
	}

	byID := make(map[string]*topograph.Edge)
	for _, e := range res.Edges {
		byID[e.ID] = e
	}
	// l and r share rank 1, r is to the right
	assert.Equal(t, topograph.SideRight, byID["7"].SourceSide)
	assert.Equal(t, topograph.SideLeft, byID["7"].TargetSide)
	// the feedback edge spans two ranks, so it claims root's bottom first
	assert.Equal(t, topoport.Upstream, topoport.Classify(res.Ranks["leaf"], res.Ranks["root"], 0))
	assert.Equal(t, topograph.SideBottom, byID["6"].TargetSide)
	assert.Equal(t, 0, byID["6"].TargetHandleIndex)
	assert.Equal(t, -20., byID["6"].TargetOffset)
	assert.Equal(t, 1, byID["1"].SourceHandleIndex)
	assert.Equal(t, 0., byID["1"].SourceOffset)
	assert.Equal(t, 2, byID["2"].SourceHandleIndex)
	assert.Equal(t, 20., byID["2"].SourceOffset)
}

func TestRanksWithCycle(t *testing.T) {
	g, err := topograph.NewGraph([]*topograph.Node{
		device("a", "", 0, 0),
		device("b", "", 0, 0),
		device("c", "", 0, 0),
	}, []*topograph.Edge{
		edge("ab", "a", "b"),
		edge("bc", "b", "c"),
		edge("ca", "c", "a"),
	})
	assert.Nil(t, err)
	ranks := topoport.Ranks(g, g.Edges)
	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 2}, ranks)
}

func TestHorizontalDirection(t *testing.T) {
	g, err := topograph.NewGraph([]*topograph.Node{
		device("a", "", 0, 0),
		device("b", "", 200, 0),
		device("c", "", 200, 200),
	}, []*topograph.Edge{
		edge("ab", "a", "b"),
		edge("ba", "b", "a"),
		edge("bc", "a", "c"),
	})
	assert.Nil(t, err)
	res := topoport.Route(g, []*topograph.Edge{g.Edges[0]}, topograph.DirectionLR, nil)
	assert.Equal(t, topograph.SideRight, res.Edges[0].SourceSide)
	assert.Equal(t, topograph.SideLeft, res.Edges[0].TargetSide)

	res = topoport.Route(g, []*topograph.Edge{g.Edges[1]}, topograph.DirectionRL, nil)
	assert.Equal(t, topograph.SideLeft, res.Edges[0].SourceSide)
	assert.Equal(t, topograph.SideRight, res.Edges[0].TargetSide)

	// b and c both sit one rank after a and share its right side
	res = topoport.Route(g, []*topograph.Edge{g.Edges[0], g.Edges[2]}, topograph.DirectionLR, &topoport.Options{PortSpacing: 10})
	assert.Equal(t, -5., res.Edges[0].SourceOffset)
	assert.Equal(t, 5., res.Edges[1].SourceOffset)
}

func TestSiblingHorizontal(t *testing.T) {
	g, err := topograph.NewGraph([]*topograph.Node{
		device("a", "", 0, 200),
		device("b", "", 0, 0),
	}, nil)
	assert.Nil(t, err)
	e := edge("ab", "a", "b")
	res := topoport.Route(g, []*topograph.Edge{e}, topograph.DirectionLR, &topoport.Options{SiblingThreshold: 1})
	assert.Equal(t, topograph.SideTop, res.Edges[0].SourceSide)
	assert.Equal(t, topograph.SideBottom, res.Edges[0].TargetSide)
}

func TestMissingEndpoints(t *testing.T) {
	g, err := topograph.NewGraph([]*topograph.Node{device("a", "", 0, 0)}, nil)
	assert.Nil(t, err)
	e := edge("ghost", "a", "nowhere")
	e.SourceSide = topograph.SideLeft
	res := topoport.Route(g, []*topograph.Edge{e}, topograph.DirectionTB, nil)
	assert.Equal(t, []string{"ghost"}, res.Missing)
	assert.Equal(t, topograph.SideLeft, res.Edges[0].SourceSide)
	assert.Equal(t, "", res.Edges[0].SourceHandle)
}
