package lib

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Hierarchy entry layout produced by FindContoursWithParams
const (
	hierNext   = 0
	hierParent = 3
)

// Blob is the best candidate contour of a mask, without profile identity
type Blob struct {
	X, Y         int
	Area         float64
	Bounds       image.Rectangle
	ContourIndex int
	Contour      []image.Point
}

// BlobSelector picks the single largest contour of a mask that passes the
// area bounds.
type BlobSelector struct {
	MaxObjects    int
	MinObjectArea float64
	MaxAreaRatio  float64
}

// NewBlobSelector creates a selector from the tracker configuration
func NewBlobSelector(config TrackerConfig) BlobSelector {
	return BlobSelector{
		MaxObjects:    config.MaxObjects,
		MinObjectArea: config.MinObjectArea,
		MaxAreaRatio:  config.MaxAreaRatio,
	}
}

// SelectBest extracts the contours of mask and returns the top-level contour
// with the largest area in (MinObjectArea, frameArea/MaxAreaRatio). The bool
// is false when no contour qualifies. ErrNoiseOverload is returned when the
// mask has MaxObjects or more top-level contours.
func (s BlobSelector) SelectBest(mask gocv.Mat, frameArea float64) (Blob, bool, error) {
	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	contours := gocv.FindContoursWithParams(mask, &hierarchy, gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer contours.Close()

	top := topLevelContours(hierarchy, contours.Size())
	if len(top) >= s.MaxObjects {
		return Blob{}, false, errors.Wrapf(ErrNoiseOverload, "%d top-level contours (max %d)", len(top), s.MaxObjects)
	}

	maxArea := frameArea / s.MaxAreaRatio
	refArea := 0.0
	var best Blob
	found := false

	for _, idx := range top {
		contour := contours.At(idx)
		m := contourMoments(contour)
		area := m.M00

		// Too small is noise, too large is a filter matching the whole frame.
		// Only a strictly larger area replaces the current best.
		if area <= s.MinObjectArea || area >= maxArea || area <= refArea {
			continue
		}

		c := m.Centroid()
		best = Blob{
			X:            c.X,
			Y:            c.Y,
			Area:         area,
			Bounds:       gocv.BoundingRect(contour),
			ContourIndex: idx,
			Contour:      contour.ToPoints(),
		}
		refArea = area
		found = true
	}

	return best, found, nil
}

// topLevelContours flattens the sibling chain of outer contours into an
// ordered list of contour indexes.
func topLevelContours(hierarchy gocv.Mat, n int) []int {
	if n == 0 || hierarchy.Empty() {
		return nil
	}

	first := -1
	for i := 0; i < n; i++ {
		if hierarchy.GetVeciAt(0, i)[hierParent] < 0 {
			first = i
			break
		}
	}

	var top []int
	for i := first; i >= 0 && i < n && len(top) < n; i = int(hierarchy.GetVeciAt(0, i)[hierNext]) {
		top = append(top, i)
	}
	return top
}
