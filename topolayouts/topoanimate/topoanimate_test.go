package topoanimate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/topolayouts/topoanimate"
)

func transition() *topoanimate.Transition {
	tr := topoanimate.New(
		map[string]*geo.Point{"a": geo.NewPoint(0, 0), "gone": geo.NewPoint(5, 5)},
		map[string]*geo.Point{"a": geo.NewPoint(100, 200), "new": geo.NewPoint(10, 10)},
	)
	tr.Easing = topoanimate.Linear
	tr.Duration = 100 * time.Millisecond
	return tr
}

func TestFrame(t *testing.T) {
	tr := transition()
	assert.Equal(t, geo.NewPoint(0, 0), tr.Frame(0)["a"])
	assert.Equal(t, geo.NewPoint(50, 100), tr.Frame(0.5)["a"])
	assert.Equal(t, geo.NewPoint(100, 200), tr.Frame(2)["a"])
	assert.Equal(t, geo.NewPoint(10, 10), tr.Frame(0.5)["new"])
	_, ok := tr.Frame(0.5)["gone"]
	assert.False(t, ok)
}

func TestEasing(t *testing.T) {
	assert.Equal(t, 0., topoanimate.EaseInOutCubic(0))
	assert.Equal(t, 0.5, topoanimate.EaseInOutCubic(0.5))
	assert.Equal(t, 1., topoanimate.EaseInOutCubic(1))
	assert.Less(t, topoanimate.EaseInOutCubic(0.25), 0.25)
}

func TestPlayEndsOnTarget(t *testing.T) {
	tr := transition()
	ticks := make(chan time.Time, 4)
	start := time.Unix(0, 0)
	ticks <- start
	ticks <- start.Add(50 * time.Millisecond)
	ticks <- start.Add(150 * time.Millisecond)
	ticks <- start.Add(200 * time.Millisecond)

	var progress []float64
	var last map[string]*geo.Point
	err := tr.Play(context.Background(), ticks, func(frame map[string]*geo.Point, p float64) {
		progress = append(progress, p)
		last = frame
	})
	assert.Nil(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, progress)
	assert.Equal(t, geo.NewPoint(100, 200), last["a"])
	// the last tick was never consumed
	assert.Len(t, ticks, 1)
}

func TestPlayCancelled(t *testing.T) {
	tr := transition()
	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan time.Time)
	done := make(chan error)
	go func() {
		done <- tr.Play(ctx, ticks, func(map[string]*geo.Point, float64) {})
	}()
	ticks <- time.Unix(0, 0)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// the target layout is untouched by cancellation
	assert.Equal(t, geo.NewPoint(100, 200), tr.To["a"])
}
