package topograph_test

import (
	"encoding/json"
	"testing"

	"oss.terrastruct.com/util-go/assert"

	"oss.terrastruct.com/topo/topograph"
)

func TestParseDiagram(t *testing.T) {
	t.Parallel()

	input := `{
  "nodes": [
    {"id": "dmz", "type": "boundary", "position": {"x": 10, "y": 20}, "width": 400, "height": 300,
     "data": {"label": "DMZ", "boundaryType": "security_zone", "handler": {"side": "right", "percent": 25}, "padding": 30, "color": "red"}},
    {"id": "fw", "type": "device", "position": {"x": 50, "y": 60}, "parentId": "dmz",
     "measured": {"width": 80, "height": 90}, "data": {"deviceType": "firewall", "iconSize": 60}}
  ],
  "edges": [
    {"id": "e1", "source": "fw", "target": "dmz", "data": {"edgeType": "smoothstep", "handleOffset": 12}}
  ]
}`
	g, err := topograph.ParseDiagram([]byte(input))
	assert.Success(t, err)

	dmz, ok := g.Node("dmz")
	assert.True(t, ok)
	b, ok := dmz.AsBoundary()
	assert.True(t, ok)
	assert.Equal(t, "security_zone", b.BoundaryType)
	assert.Equal(t, topograph.SideRight, b.Handler.Side)
	assert.Equal(t, 25., b.Handler.Percent)
	assert.Equal(t, 30., dmz.Padding(45))
	assert.Equal(t, "DMZ", dmz.Label)
	assert.Equal(t, "red", dmz.Data["color"])

	fw, _ := g.Node("fw")
	d, ok := fw.AsDevice()
	assert.True(t, ok)
	assert.Equal(t, "firewall", d.DeviceType)
	w, _, src := fw.Size()
	assert.Equal(t, 80., w)
	assert.Equal(t, topograph.SourceMeasured, src)

	assert.Equal(t, "smoothstep", g.Edges[0].EdgeType)
	assert.Equal(t, 12., g.Edges[0].SourceOffset)

	b2, err := json.Marshal(g)
	assert.Success(t, err)
	g2, err := topograph.ParseDiagram(b2)
	assert.Success(t, err)
	dmz2, _ := g2.Node("dmz")
	assert.Equal(t, "red", dmz2.Data["color"])
	assert.Equal(t, 10., dmz2.TopLeft.X)
	assert.Equal(t, "smoothstep", g2.Edges[0].EdgeType)
}

func TestParseDiagramUnknownType(t *testing.T) {
	t.Parallel()

	_, err := topograph.ParseDiagram([]byte(`{"nodes": [{"id": "a", "type": "cloud"}]}`))
	assert.ErrorString(t, err, `failed to parse diagram: node "a" has unknown type "cloud", expected device or boundary`)
}
