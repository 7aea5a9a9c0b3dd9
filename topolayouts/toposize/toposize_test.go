package toposize_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/toposize"
)

func device(id, parent string) *topograph.Node {
	return &topograph.Node{
		ID:       id,
		ParentID: parent,
		TopLeft:  geo.NewPoint(0, 0),
		Width:    go2.Pointer(100.),
		Height:   go2.Pointer(100.),
		Variant:  &topograph.Device{},
	}
}

func boundary(id, parent string) *topograph.Node {
	return &topograph.Node{ID: id, ParentID: parent, Variant: &topograph.Boundary{}}
}

func TestFourChildGrid(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g, err := topograph.NewGraph([]*topograph.Node{
		boundary("zone", ""),
		device("a", "zone"),
		device("b", "zone"),
		device("c", "zone"),
		device("d", "zone"),
	}, nil)
	assert.Nil(t, err)

	dims := topograph.NewDimensions(0)
	err = toposize.Presize(ctx, g, dims, &toposize.Options{Tier: toposize.TierComfortable})
	assert.Nil(t, err)

	zone, _ := g.Node("zone")
	w, h, src := zone.Size()
	assert.Equal(t, 330., w)
	assert.Equal(t, 330., h)
	assert.Equal(t, topograph.SourceExplicit, src)

	ld, ok := dims.Get("zone")
	assert.True(t, ok)
	assert.Equal(t, 330., ld.Layout.Width)
	assert.Equal(t, topograph.SourcePresize, ld.Source)
}

func TestTiers(t *testing.T) {
	for _, tc := range []struct {
		tier toposize.Tier
		exp  float64
	}{
		{toposize.TierCompact, 2*100 + 30 + 90},
		{toposize.TierComfortable, 330},
		{toposize.TierSpacious, 2*100 + 60 + 90},
	} {
		w, h := toposize.Estimate(4, 100, 100, &toposize.Options{Tier: tc.tier})
		assert.Equal(t, tc.exp, w, tc.tier)
		assert.Equal(t, tc.exp, h, tc.tier)
	}

	_, err := toposize.ParseTier("roomy")
	assert.NotNil(t, err)
	tier, err := toposize.ParseTier("")
	assert.Nil(t, err)
	assert.Equal(t, toposize.TierComfortable, tier)
}

func TestEmptyAndSmallBoundaries(t *testing.T) {
	w, h := toposize.Estimate(0, 0, 0, nil)
	assert.Equal(t, float64(toposize.DEFAULT_MIN_WIDTH), w)
	assert.Equal(t, float64(toposize.DEFAULT_MIN_HEIGHT), h)

	// the minimum only applies to empty boundaries
	w, h = toposize.Estimate(1, 100, 100, nil)
	assert.Equal(t, 100.+90, w)
	assert.Equal(t, 100.+90, h)

	// five children: 3 columns, 2 rows
	w, h = toposize.Estimate(5, 100, 100, nil)
	assert.Equal(t, 3*100.+2*40+90, w)
	assert.Equal(t, 2*100.+40+90, h)
}

func TestDeepestFirst(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	nodes := []*topograph.Node{
		boundary("outer", ""),
		boundary("inner", "outer"),
		device("x", "outer"),
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		nodes = append(nodes, device(id, "inner"))
	}
	g, err := topograph.NewGraph(nodes, nil)
	assert.Nil(t, err)

	assert.Nil(t, toposize.Presize(ctx, g, nil, nil))

	// outer averages the 330x330 inner estimate with the 100x100 device
	outer, _ := g.Node("outer")
	w, h, _ := outer.Size()
	assert.Equal(t, 2*215.+40+90, w)
	assert.Equal(t, 215.+90, h)
}

func TestPaddingOverride(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	zone := boundary("zone", "")
	zone.Variant.(*topograph.Boundary).Padding = go2.Pointer(10.)
	g, err := topograph.NewGraph([]*topograph.Node{
		zone,
		device("a", "zone"),
		device("b", "zone"),
		device("c", "zone"),
		device("d", "zone"),
	}, nil)
	assert.Nil(t, err)
	assert.Nil(t, toposize.Presize(ctx, g, nil, nil))
	zone, _ = g.Node("zone")
	w, _, _ := zone.Size()
	assert.Equal(t, 2*100.+40+20, w)
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(log.WithTB(context.Background(), t))
	cancel()
	g, err := topograph.NewGraph([]*topograph.Node{boundary("zone", "")}, nil)
	assert.Nil(t, err)
	err = toposize.Presize(ctx, g, nil, nil)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}
