package geo

import (
	"math"
)

// A 2D Vector with components (x, y) based on the origin
type Vector []float64

func NewVector(components ...float64) Vector {
	return components
}

func (a Vector) Add(b Vector) Vector {
	c := []float64{}
	for i := 0; i < len(a); i++ {
		c = append(c, a[i]+b[i])
	}
	return c
}

func (a Vector) Minus(b Vector) Vector {
	c := []float64{}
	for i := 0; i < len(a); i++ {
		c = append(c, a[i]-b[i])
	}
	return c
}

func (a Vector) Multiply(v float64) Vector {
	c := []float64{}
	for i := 0; i < len(a); i++ {
		c = append(c, a[i]*v)
	}
	return c
}

func (a Vector) Length() float64 {
	sum := 0.0
	for _, comp := range a {
		sum += comp * comp
	}
	return math.Sqrt(sum)
}

// Unit returns a unit Vector pointing in the same direction.
// The zero vector has no direction, so fallback is returned instead.
func (a Vector) Unit(fallback Vector) Vector {
	l := a.Length()
	if l == 0 || math.IsNaN(l) {
		return fallback
	}
	return a.Multiply(1 / l)
}

// ClampLength scales the vector down so its length is at most max
func (a Vector) ClampLength(max float64) Vector {
	l := a.Length()
	if l <= max || l == 0 {
		return a
	}
	return a.Multiply(max / l)
}

func (a Vector) ToPoint() *Point {
	return &Point{a[0], a[1]}
}
