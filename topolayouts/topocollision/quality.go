package topocollision

import (
	"math"

	"oss.terrastruct.com/topo/topograph"
)

// LabelInputs are edge-label measurements computed by the label placement collaborator.
// They are reported alongside the score, never recomputed here.
type LabelInputs struct {
	LabelCollisions int `json:"labelCollisions"`
	EdgeCrossings   int `json:"edgeCrossings"`
}

type Quality struct {
	Score           float64  `json:"score"`
	CollisionCount  int      `json:"collisionCount"`
	CollisionRatio  float64  `json:"collisionRatio"`
	AverageSeverity float64  `json:"averageSeverity"`
	MaxSeverity     float64  `json:"maxSeverity"`
	Strategy        Strategy `json:"strategy"`
	LabelCollisions int      `json:"labelCollisions"`
	EdgeCrossings   int      `json:"edgeCrossings"`
}

// LayoutQuality scores a layout in [0, 1]: 1 - ratio*(0.5 + 0.5*avgSeverity), where ratio is
// collisions over the number of possible pairs.
func LayoutQuality(g *topograph.Graph, clearance float64) float64 {
	return Assess(g, &Options{Clearance: clearance}, nil).Score
}

func Assess(g *topograph.Graph, opts *Options, labels *LabelInputs) *Quality {
	r := DetectCollisions(g, opts)
	q := &Quality{
		CollisionCount:  r.CollisionCount,
		AverageSeverity: r.AverageSeverity,
		MaxSeverity:     r.MaxSeverity,
		Strategy:        r.Strategy,
	}
	q.CollisionRatio, q.Score = score(r)
	if labels != nil {
		q.LabelCollisions = labels.LabelCollisions
		q.EdgeCrossings = labels.EdgeCrossings
	}
	return q
}

func score(r *Report) (ratio, score float64) {
	maxPairs := float64(r.TotalNodes*(r.TotalNodes-1)) / 2
	if maxPairs < 1 {
		return 0, 1
	}
	ratio = float64(r.CollisionCount) / maxPairs
	return ratio, math.Max(0, 1-ratio*(0.5+0.5*r.AverageSeverity))
}
