package config

import (
	"fmt"
	"math"
)

// DefaultHalfSpan is the half extent, in cm, of the x/y footprint used when
// a surface does not provide two complete bound pairs.
const DefaultHalfSpan = 250.0

// Axis is one projection axis of a region.
type Axis struct {
	Name   string // x, y or z
	Column string // event column holding the coordinate
	Min    float64
	Max    float64
}

// Label returns the axis title used on plots.
func (a Axis) Label() string { return a.Name + " [cm]" }

// Bins returns floor((Max-Min)/width).
func (a Axis) Bins(width float64) int {
	if width <= 0 {
		return 0
	}
	return int(math.Floor((a.Max - a.Min) / width))
}

// Projection is the pair of axes a region is histogrammed on.
type Projection struct {
	X, Y Axis
}

var axisColumns = map[string]string{"x": "Vx", "y": "Vy", "z": "Vz"}

// RegionName returns the name under which histograms of s are stored.
func (s *Surface) RegionName() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("surface_%d", s.ID)
}

// Projection resolves the two axes of s from the complete bound pairs, in
// x, y, z priority order. With fewer than two pairs it falls back to x, y
// with missing bounds set to ±DefaultHalfSpan.
func (s *Surface) Projection() Projection {
	var axes []Axis
	for _, c := range []struct {
		name   string
		lo, hi *float64
	}{
		{"x", s.XL, s.XH},
		{"y", s.YL, s.YH},
		{"z", s.ZL, s.ZH},
	} {
		if c.lo != nil && c.hi != nil {
			axes = append(axes, Axis{Name: c.name, Column: axisColumns[c.name], Min: *c.lo, Max: *c.hi})
		}
	}
	if len(axes) >= 2 {
		return Projection{X: axes[0], Y: axes[1]}
	}

	or := func(v *float64, def float64) float64 {
		if v == nil {
			return def
		}
		return *v
	}
	return Projection{
		X: Axis{Name: "x", Column: "Vx", Min: or(s.XL, -DefaultHalfSpan), Max: or(s.XH, DefaultHalfSpan)},
		Y: Axis{Name: "y", Column: "Vy", Min: or(s.YL, -DefaultHalfSpan), Max: or(s.YH, DefaultHalfSpan)},
	}
}

// Face is one face of a box: rows on the face satisfy Column == Value.
type Face struct {
	Name   string
	Column string
	Value  float64
	Proj   Projection
}

// Faces returns the six faces of b in a fixed order.
func (b *BoxSurface) Faces() []Face {
	var (
		x = Axis{Name: "x", Column: "Vx", Min: b.XMin, Max: b.XMax}
		y = Axis{Name: "y", Column: "Vy", Min: b.YMin, Max: b.YMax}
		z = Axis{Name: "z", Column: "Vz", Min: b.ZMin, Max: b.ZMax}
	)
	return []Face{
		{Name: "front_face", Column: "Vz", Value: b.ZMin, Proj: Projection{X: x, Y: y}},
		{Name: "back_face", Column: "Vz", Value: b.ZMax, Proj: Projection{X: x, Y: y}},
		{Name: "right_face", Column: "Vx", Value: b.XMax, Proj: Projection{X: z, Y: y}},
		{Name: "left_face", Column: "Vx", Value: b.XMin, Proj: Projection{X: z, Y: y}},
		{Name: "top_face", Column: "Vy", Value: b.YMax, Proj: Projection{X: z, Y: x}},
		{Name: "bottom_face", Column: "Vy", Value: b.YMin, Proj: Projection{X: z, Y: x}},
	}
}
