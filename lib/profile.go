package lib

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// HSV is a color in the full-range 8-bit encoding: H, S and V all span 0-255.
type HSV struct {
	H, S, V float64
}

// Scalar returns the color as a gocv scalar for InRange bounds
func (c HSV) Scalar() gocv.Scalar {
	return gocv.NewScalar(c.H, c.S, c.V, 0)
}

func (c HSV) String() string {
	return fmt.Sprintf("(%g, %g, %g)", c.H, c.S, c.V)
}

// ColorProfile is the acceptance range of one tracked object. Profiles are
// created by calibration and never modified afterwards.
type ColorProfile struct {
	Name         string
	Min          HSV // Inclusive lower bound per channel
	Max          HSV // Inclusive upper bound per channel
	DisplayColor color.RGBA
}

// Contains reports whether c lies inside the profile range on every channel
func (p ColorProfile) Contains(c HSV) bool {
	return c.H >= p.Min.H && c.H <= p.Max.H &&
		c.S >= p.Min.S && c.S <= p.Max.S &&
		c.V >= p.Min.V && c.V <= p.Max.V
}

// Detection is the best blob found for one profile in one frame.
type Detection struct {
	Profile      string          `json:"profile"`
	ProfileIndex int             `json:"profile_index"` // Position in the frame's profile list
	Color        color.RGBA      `json:"color"`
	X            int             `json:"x"`
	Y            int             `json:"y"`
	Area         float64         `json:"area"`
	Bounds       image.Rectangle `json:"bounds"`
	ContourIndex int             `json:"-"`
	Contour      []image.Point   `json:"-"`
}

// Centroid returns the detection position as a point
func (d Detection) Centroid() image.Point {
	return image.Pt(d.X, d.Y)
}
