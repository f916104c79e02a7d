package lib

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Moments holds the spatial moments of a contour up to first order
type Moments struct {
	M00, M10, M01 float64
}

// contourMoments returns the moments of the polygon outlined by contour.
// cv::moments normalizes orientation, so M00 is never negative.
func contourMoments(contour gocv.PointVector) Moments {
	if contour.Size() < 3 {
		return Moments{}
	}

	pm := gocv.NewMatFromPointVector(contour, false)
	defer pm.Close()

	m := gocv.Moments(pm, false)
	return Moments{M00: m["m00"], M10: m["m10"], M01: m["m01"]}
}

// Centroid returns the rounded center of mass. It is only meaningful when
// M00 is positive.
func (m Moments) Centroid() image.Point {
	return image.Pt(int(math.Round(m.M10/m.M00)), int(math.Round(m.M01/m.M00)))
}
