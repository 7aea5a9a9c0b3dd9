package topocollision_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/topocollision"
)

func devices(t *testing.T, boxes ...*geo.Box) *topograph.Graph {
	var nodes []*topograph.Node
	for i, b := range boxes {
		nodes = append(nodes, &topograph.Node{
			ID:      fmt.Sprintf("n%02d", i),
			TopLeft: b.TopLeft.Copy(),
			Width:   go2.Pointer(b.Width),
			Height:  go2.Pointer(b.Height),
			Variant: &topograph.Device{},
		})
	}
	g, err := topograph.NewGraph(nodes, nil)
	assert.Nil(t, err)
	return g
}

func TestBoxesIntersectSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		a := geo.NewBox(geo.NewPoint(r.Float64()*200, r.Float64()*200), r.Float64()*80, r.Float64()*80)
		b := geo.NewBox(geo.NewPoint(r.Float64()*200, r.Float64()*200), r.Float64()*80, r.Float64()*80)
		assert.Equal(t, topocollision.BoxesIntersect(a, b), topocollision.BoxesIntersect(b, a))
	}
}

func TestOverlapSeverity(t *testing.T) {
	a := geo.NewBox(geo.NewPoint(10, 10), 50, 40)
	dup := geo.NewBox(geo.NewPoint(10, 10), 50, 40)
	assert.Equal(t, 1., topocollision.OverlapSeverity(a, dup))

	apart := geo.NewBox(geo.NewPoint(500, 500), 50, 40)
	assert.Equal(t, 0., topocollision.OverlapSeverity(a, apart))

	// a small box fully inside a large one is as severe as it gets
	inner := geo.NewBox(geo.NewPoint(20, 20), 5, 5)
	assert.Equal(t, 1., topocollision.OverlapSeverity(a, inner))

	half := geo.NewBox(geo.NewPoint(35, 10), 50, 40)
	assert.InDelta(t, 0.5, topocollision.OverlapSeverity(a, half), 1e-9)

	empty := geo.NewBox(geo.NewPoint(10, 10), 0, 0)
	assert.Equal(t, 0., topocollision.OverlapSeverity(a, empty))
}

func TestClearanceExpandsBoxes(t *testing.T) {
	// 10px apart: fine at clearance 0, a violation at clearance 20
	g := devices(t,
		geo.NewBox(geo.NewPoint(0, 0), 100, 100),
		geo.NewBox(geo.NewPoint(110, 0), 100, 100),
	)
	assert.Empty(t, topocollision.DetectNodeOverlaps(g, g.Devices(), 0))
	overlaps := topocollision.DetectNodeOverlaps(g, g.Devices(), 20)
	assert.Len(t, overlaps, 1)
	assert.Equal(t, "n00", overlaps[0].NodeA)
	assert.Equal(t, "n01", overlaps[0].NodeB)
	assert.Equal(t, 10.*120, overlaps[0].OverlapArea)
}

func TestOverlapsSortedBySeverity(t *testing.T) {
	g := devices(t,
		geo.NewBox(geo.NewPoint(0, 0), 100, 100),
		geo.NewBox(geo.NewPoint(90, 0), 100, 100),
		geo.NewBox(geo.NewPoint(1000, 0), 100, 100),
		geo.NewBox(geo.NewPoint(1010, 10), 50, 50),
	)
	overlaps := topocollision.DetectNodeOverlaps(g, g.Devices(), 0)
	assert.Len(t, overlaps, 2)
	assert.Equal(t, 1., overlaps[0].Severity)
	assert.Equal(t, "n02", overlaps[0].NodeA)
	assert.InDelta(t, 0.1, overlaps[1].Severity, 1e-9)
}

func TestSpatialHashMatchesNaive(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	var boxes []*geo.Box
	for i := 0; i < 60; i++ {
		boxes = append(boxes, geo.NewBox(geo.NewPoint(r.Float64()*600, r.Float64()*600), 50, 50))
	}
	g := devices(t, boxes...)

	auto := topocollision.DetectCollisions(g, &topocollision.Options{Clearance: 20})
	assert.Equal(t, topocollision.StrategySpatialHash, auto.Strategy)
	assert.NotNil(t, auto.HashStats)
	assert.Equal(t, 60, auto.TotalNodes)

	naive := topocollision.DetectCollisions(g, &topocollision.Options{Clearance: 20, Strategy: topocollision.StrategyNaive})
	assert.Equal(t, topocollision.StrategyNaive, naive.Strategy)

	pairs := func(r *topocollision.Report) map[[2]string]struct{} {
		m := make(map[[2]string]struct{})
		for _, o := range r.Overlaps {
			m[[2]string{o.NodeA, o.NodeB}] = struct{}{}
		}
		return m
	}
	assert.NotEmpty(t, naive.Overlaps)
	assert.Equal(t, pairs(naive), pairs(auto))
	assert.Equal(t, naive.CollisionCount, auto.CollisionCount)
	assert.InDelta(t, naive.AverageSeverity, auto.AverageSeverity, 1e-9)
}

func TestSmallScopesStayNaive(t *testing.T) {
	var boxes []*geo.Box
	for i := 0; i < 50; i++ {
		boxes = append(boxes, geo.NewBox(geo.NewPoint(float64(i)*200, 0), 50, 50))
	}
	r := topocollision.DetectCollisions(devices(t, boxes...), &topocollision.Options{Clearance: 20})
	assert.Equal(t, topocollision.StrategyNaive, r.Strategy)
	assert.Equal(t, 0, r.CollisionCount)
}

func TestDescendantsNeverCollide(t *testing.T) {
	g, err := topograph.NewGraph([]*topograph.Node{
		{ID: "zone", TopLeft: geo.NewPoint(0, 0), Width: go2.Pointer(300.), Height: go2.Pointer(300.), Variant: &topograph.Boundary{}},
		{ID: "host", ParentID: "zone", TopLeft: geo.NewPoint(50, 50), Variant: &topograph.Device{}},
		{ID: "other", TopLeft: geo.NewPoint(250, 0), Width: go2.Pointer(300.), Height: go2.Pointer(300.), Variant: &topograph.Boundary{}},
	}, nil)
	assert.Nil(t, err)

	r := topocollision.DetectCollisions(g, &topocollision.Options{
		Filter: func(*topograph.Node) bool { return true },
	})
	assert.Equal(t, 1, r.CollisionCount)
	assert.Equal(t, "other", r.Overlaps[0].NodeA)
	assert.Equal(t, "zone", r.Overlaps[0].NodeB)
}

func TestLayoutQuality(t *testing.T) {
	clean := devices(t,
		geo.NewBox(geo.NewPoint(0, 0), 100, 100),
		geo.NewBox(geo.NewPoint(300, 0), 100, 100),
	)
	assert.Equal(t, 1., topocollision.LayoutQuality(clean, 20))

	// one pair out of three possible, fully overlapping
	messy := devices(t,
		geo.NewBox(geo.NewPoint(0, 0), 100, 100),
		geo.NewBox(geo.NewPoint(0, 0), 100, 100),
		geo.NewBox(geo.NewPoint(500, 0), 100, 100),
	)
	assert.InDelta(t, 1-1./3, topocollision.LayoutQuality(messy, 0), 1e-9)

	single := devices(t, geo.NewBox(geo.NewPoint(0, 0), 10, 10))
	assert.Equal(t, 1., topocollision.LayoutQuality(single, 20))

	q := topocollision.Assess(messy, &topocollision.Options{}, &topocollision.LabelInputs{LabelCollisions: 2, EdgeCrossings: 3})
	assert.Equal(t, 2, q.LabelCollisions)
	assert.Equal(t, 3, q.EdgeCrossings)
	assert.Equal(t, 1, q.CollisionCount)
}
