// Package geometry provides the rectangle type used to seed segmentations.
package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rect represents a rectangle with floating-point coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// ParseRect parses "x,y,width,height".
func ParseRect(s string) (Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("rectangle %q: want x,y,width,height", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Rect{}, fmt.Errorf("rectangle %q: %w", s, err)
		}
		v[i] = f
	}
	if v[2] <= 0 || v[3] <= 0 {
		return Rect{}, fmt.Errorf("rectangle %q: width and height must be positive", s)
	}
	return NewRect(v[0], v[1], v[2], v[3]), nil
}

// String formats the rectangle the way ParseRect reads it.
func (r Rect) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", r.X, r.Y, r.Width, r.Height)
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns the rectangle's area.
func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Clip returns the part of the rectangle inside [0, width) x [0, height).
func (r Rect) Clip(width, height float64) Rect {
	x := math.Max(r.X, 0)
	y := math.Max(r.Y, 0)
	x2 := math.Min(r.X+r.Width, width)
	y2 := math.Min(r.Y+r.Height, height)
	if x2 <= x || y2 <= y {
		return Rect{}
	}
	return Rect{X: x, Y: y, Width: x2 - x, Height: y2 - y}
}
