// Package topoanimate interpolates node positions between two layouts for animated tidies.
// Frames are driven by an external ticker and playback can be cancelled at any point without
// affecting the target layout.
package topoanimate

import (
	"context"
	"math"
	"time"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/go2"
)

const DEFAULT_DURATION = 300 * time.Millisecond

type Easing func(t float64) float64

func Linear(t float64) float64 {
	return t
}

func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

type Transition struct {
	From     map[string]*geo.Point
	To       map[string]*geo.Point
	Duration time.Duration
	Easing   Easing
}

func New(from, to map[string]*geo.Point) *Transition {
	return &Transition{
		From:     from,
		To:       to,
		Duration: DEFAULT_DURATION,
		Easing:   EaseInOutCubic,
	}
}

// Frame returns every target node's position at progress t in [0, 1].
// Nodes without a starting position sit at their target throughout.
func (tr *Transition) Frame(t float64) map[string]*geo.Point {
	t = go2.Clamp(t, 0, 1)
	if tr.Easing != nil {
		t = tr.Easing(t)
	}
	out := make(map[string]*geo.Point, len(tr.To))
	for id, to := range tr.To {
		from, ok := tr.From[id]
		if !ok {
			out[id] = to.Copy()
			continue
		}
		out[id] = from.Interpolate(to, t)
	}
	return out
}

// Play applies one frame per tick until the duration has elapsed, ending exactly on the target.
// It returns ctx.Err() if cancelled first, and nil once the final frame is applied or ticks
// is closed.
func (tr *Transition) Play(ctx context.Context, ticks <-chan time.Time, apply func(frame map[string]*geo.Point, t float64)) error {
	duration := tr.Duration
	if duration <= 0 {
		duration = DEFAULT_DURATION
	}
	var start time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now, ok := <-ticks:
			if !ok {
				return nil
			}
			if start.IsZero() {
				start = now
			}
			t := float64(now.Sub(start)) / float64(duration)
			if t >= 1 {
				apply(tr.Frame(1), 1)
				return nil
			}
			apply(tr.Frame(t), t)
		}
	}
}
