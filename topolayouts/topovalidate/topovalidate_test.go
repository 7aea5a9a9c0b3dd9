package topovalidate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/topovalidate"
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

func zone(id string, x, y float64) *topograph.Node {
	return &topograph.Node{
		ID:      id,
		TopLeft: geo.NewPoint(x, y),
		Width:   go2.Pointer(300.),
		Height:  go2.Pointer(200.),
		Variant: &topograph.Boundary{},
	}
}

func newGraph(t *testing.T, nodes []*topograph.Node, edges ...*topograph.Edge) *topograph.Graph {
	g, err := topograph.NewGraph(nodes, edges)
	assert.Nil(t, err)
	return g
}

func TestValidLayoutPasses(t *testing.T) {
	g := newGraph(t, []*topograph.Node{
		zone("zone", 0, 0),
		device("a", "zone", 45, 45),
		device("b", "zone", 155, 45),
	}, &topograph.Edge{ID: "ab", Source: "a", Target: "b"})

	res := topovalidate.Validate(g, topograph.NewDimensions(0), nil)
	assert.True(t, res.Passed)
	assert.Empty(t, res.Overlaps)
	assert.Empty(t, res.Containment)
	assert.Empty(t, res.EdgeIssues)

	// adjusting a valid layout changes nothing
	out, res, fixes := topovalidate.ValidateAndAdjust(g, nil, nil)
	assert.True(t, res.Passed)
	assert.Empty(t, fixes)
	assert.Equal(t, g.Positions(), out.Positions())
}

func TestOverlapsOnlyBetweenSiblings(t *testing.T) {
	g := newGraph(t, []*topograph.Node{
		zone("left", 0, 0),
		zone("right", 400, 0),
		device("a", "left", 45, 45),
		// absolutely this lands on top of a, but it lives in another boundary
		device("b", "right", -355, 45),
		device("c", "left", 100, 45),
	})
	res := topovalidate.Validate(g, nil, nil)
	assert.False(t, res.Passed)
	assert.Len(t, res.Overlaps, 1)
	assert.Equal(t, "a", res.Overlaps[0].NodeA)
	assert.Equal(t, "c", res.Overlaps[0].NodeB)
	assert.Equal(t, 4500., res.Overlaps[0].OverlapArea)
}

func TestContainment(t *testing.T) {
	g := newGraph(t, []*topograph.Node{
		zone("zone", 0, 0),
		device("escaped", "zone", 250, 150),
		device("cramped", "zone", 10, 45),
		device("fine", "zone", 155, 45),
	})
	res := topovalidate.Validate(g, nil, nil)
	assert.Equal(t, []topovalidate.ContainmentIssue{
		{Node: "escaped", Parent: "zone", Kind: topovalidate.Outside, Violation: 50},
		{Node: "cramped", Parent: "zone", Kind: topovalidate.Padding, Violation: 35},
	}, res.Containment)
}

func TestEdgeIssues(t *testing.T) {
	g := newGraph(t, []*topograph.Node{
		device("a", "", 0, 0),
		device("mid", "", 200, 0),
		device("b", "", 400, 0),
		device("far", "", 5000, 0),
	},
		&topograph.Edge{ID: "dangling", Source: "a", Target: "gone"},
		&topograph.Edge{ID: "loop", Source: "a", Target: "a"},
		&topograph.Edge{ID: "long", Source: "b", Target: "far"},
		&topograph.Edge{ID: "through", Source: "a", Target: "b"},
	)
	res := topovalidate.Validate(g, nil, nil)
	kinds := make(map[string]topovalidate.EdgeIssueKind)
	for _, issue := range res.EdgeIssues {
		kinds[issue.Edge] = issue.Kind
	}
	assert.Equal(t, map[string]topovalidate.EdgeIssueKind{
		"dangling": topovalidate.Dangling,
		"loop":     topovalidate.SelfLoop,
		"long":     topovalidate.ExcessiveLength,
		"through":  topovalidate.PassesThrough,
	}, kinds)
	assert.False(t, res.Passed)

	// edges are never fixed
	_, after, _ := topovalidate.ValidateAndAdjust(g, nil, nil)
	assert.Len(t, after.EdgeIssues, 4)
}

func TestAdjustSeparatesOverlaps(t *testing.T) {
	g := newGraph(t, []*topograph.Node{
		device("a", "", 0, 0),
		device("b", "", 50, 0),
	})
	out, res, fixes := topovalidate.ValidateAndAdjust(g, nil, nil)
	assert.True(t, res.Passed)
	assert.Len(t, fixes, 1)

	b, _ := out.Node("b")
	assert.Equal(t, 120., b.TopLeft.X)
	assert.Equal(t, 0., b.TopLeft.Y)

	orig, _ := g.Node("b")
	assert.Equal(t, 50., orig.TopLeft.X)
}

func TestAdjustMovesUnlockedPartner(t *testing.T) {
	locked := device("b", "", 50, 0)
	locked.Locked = true
	g := newGraph(t, []*topograph.Node{device("a", "", 0, 0), locked})

	out, res, _ := topovalidate.ValidateAndAdjust(g, nil, nil)
	assert.True(t, res.Passed)
	a, _ := out.Node("a")
	b, _ := out.Node("b")
	assert.Equal(t, -70., a.TopLeft.X)
	assert.Equal(t, 50., b.TopLeft.X)
}

func TestAdjustClampsChildren(t *testing.T) {
	g := newGraph(t, []*topograph.Node{
		zone("zone", 0, 0),
		device("escaped", "zone", 250, 150),
	})
	out, res, fixes := topovalidate.ValidateAndAdjust(g, nil, nil)
	assert.True(t, res.Passed)
	assert.Len(t, fixes, 1)
	assert.Equal(t, "outside zone", fixes[0].Reason)
	n, _ := out.Node("escaped")
	assert.Equal(t, geo.NewPoint(155, 55), n.TopLeft)
}
