package topopack_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/topolayouts/topopack"
)

func TestUnionFind(t *testing.T) {
	uf := topopack.NewUnionFind([]string{"a", "b", "c", "d", "e"})
	uf.Union("a", "c")
	uf.Union("d", "c")
	uf.Union("b", "zzz")
	assert.Equal(t, uf.Find("a"), uf.Find("d"))
	assert.NotEqual(t, uf.Find("a"), uf.Find("b"))
	assert.Equal(t, "zzz", uf.Find("zzz"))
	assert.Equal(t, [][]string{{"a", "c", "d"}, {"b"}, {"e"}}, uf.Groups())
}

func TestPackGrid(t *testing.T) {
	var items []topopack.Item
	for _, id := range []string{"a", "b", "c", "d"} {
		items = append(items, topopack.Item{ID: id, Width: 100, Height: 100})
	}
	positions, bbox := topopack.Pack(items, &topopack.Options{Spacing: 10})
	assert.Equal(t, map[string]*geo.Point{
		"a": geo.NewPoint(0, 0),
		"b": geo.NewPoint(110, 0),
		"c": geo.NewPoint(0, 110),
		"d": geo.NewPoint(110, 110),
	}, positions)
	assert.Equal(t, geo.NewBox(geo.NewPoint(0, 0), 210, 210), bbox)
}

func boxes(items []topopack.Item, positions map[string]*geo.Point) []*geo.Box {
	var out []*geo.Box
	for _, it := range items {
		out = append(out, geo.NewBox(positions[it.ID], it.Width, it.Height))
	}
	return out
}

func assertSeparated(t *testing.T, bs []*geo.Box, spacing float64) {
	t.Helper()
	for i := range bs {
		for j := i + 1; j < len(bs); j++ {
			assert.False(t, bs[i].Expand(spacing/2-0.01).Overlaps(bs[j].Expand(spacing/2-0.01)),
				"%s and %s", bs[i].ToString(), bs[j].ToString())
		}
	}
}

func TestPackMixedSizes(t *testing.T) {
	var items []topopack.Item
	for i := 0; i < 25; i++ {
		items = append(items, topopack.Item{
			ID:     fmt.Sprintf("n%d", i),
			Width:  float64(40 + (i*37)%120),
			Height: float64(30 + (i*53)%90),
		})
	}
	positions, bbox := topopack.Pack(items, nil)
	assert.Len(t, positions, len(items))
	assertSeparated(t, boxes(items, positions), topopack.DEFAULT_SPACING)
	for _, p := range positions {
		assert.GreaterOrEqual(t, p.X, 0.)
		assert.GreaterOrEqual(t, p.Y, 0.)
	}
	// roughly square, never a single column or row
	ratio := bbox.Width / bbox.Height
	assert.True(t, ratio > 0.4 && ratio < 2.5, "aspect ratio %v", ratio)
	assert.False(t, math.IsNaN(bbox.Width))
}

func TestPackEmpty(t *testing.T) {
	positions, bbox := topopack.Pack(nil, nil)
	assert.Empty(t, positions)
	assert.Nil(t, bbox)
}

func TestClusterKeepsComponentsTogether(t *testing.T) {
	items := []topopack.Item{
		{ID: "a", Width: 100, Height: 100},
		{ID: "b", Width: 100, Height: 100},
		{ID: "c", Width: 100, Height: 100},
		{ID: "d", Width: 100, Height: 100},
		{ID: "e", Width: 100, Height: 100},
	}
	links := []topopack.Link{{"a", "b"}, {"b", "c"}, {"d", "d"}, {"e", "ghost"}}
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}, {"e"}}, topopack.Components(items, links))

	positions, bbox := topopack.Cluster(items, links, &topopack.Options{Spacing: 20})
	assert.Len(t, positions, 5)
	assertSeparated(t, boxes(items, positions), 20)

	// the best connected device anchors the largest component at the origin
	assert.Equal(t, geo.NewPoint(0, 0), positions["b"])
	assert.Equal(t, 0., bbox.TopLeft.X)
	assert.Equal(t, 0., bbox.TopLeft.Y)

	component := geo.BoundingBox(boxes(items[:3], positions)...)
	for _, id := range []string{"d", "e"} {
		box := geo.NewBox(positions[id], 100, 100)
		assert.False(t, component.Overlaps(box), id)
	}
}
