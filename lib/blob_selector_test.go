package lib

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// A filled block of w x h pixels traces a contour enclosing (w-1) x (h-1).

func TestSelectBestAreaLowerBound(t *testing.T) {
	selector := NewBlobSelector(DefaultTrackerConfig())

	atLimit := newMask(t, 480, 640)
	fillMask(&atLimit, image.Rect(100, 100, 116, 116)) // 15 x 15 = 225
	_, found, err := selector.SelectBest(atLimit, 640*480)
	require.NoError(t, err)
	assert.False(t, found)

	above := newMask(t, 480, 640)
	fillMask(&above, image.Rect(100, 100, 117, 117)) // 16 x 16 = 256
	blob, found, err := selector.SelectBest(above, 640*480)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 256.0, blob.Area, 1e-9)
	assert.Equal(t, 108, blob.X)
	assert.Equal(t, 108, blob.Y)
}

func TestSelectBestAreaUpperBound(t *testing.T) {
	selector := NewBlobSelector(DefaultTrackerConfig())
	const frameArea = 30 * 30 // Threshold 600

	atLimit := newMask(t, 30, 30)
	fillMask(&atLimit, image.Rect(2, 2, 27, 28)) // 24 x 25 = 600
	_, found, err := selector.SelectBest(atLimit, frameArea)
	require.NoError(t, err)
	assert.False(t, found)

	below := newMask(t, 30, 30)
	fillMask(&below, image.Rect(2, 2, 27, 27)) // 24 x 24 = 576
	blob, found, err := selector.SelectBest(below, frameArea)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 576.0, blob.Area, 1e-9)
}

func TestSelectBestLargestWins(t *testing.T) {
	mask := newMask(t, 480, 640)
	fillMask(&mask, image.Rect(400, 300, 411, 331)) // 10 x 30 = 300
	fillMask(&mask, image.Rect(200, 100, 211, 151)) // 10 x 50 = 500

	blob, found, err := NewBlobSelector(DefaultTrackerConfig()).SelectBest(mask, 640*480)
	require.NoError(t, err)
	require.True(t, found)

	assert.InDelta(t, 500.0, blob.Area, 1e-9)
	assert.Equal(t, 205, blob.X)
	assert.Equal(t, 125, blob.Y)
	assert.Equal(t, image.Rect(200, 100, 211, 151), blob.Bounds)
	assert.NotEmpty(t, blob.Contour)
}

func TestSelectBestTieKeepsFirst(t *testing.T) {
	mask := newMask(t, 480, 640)
	fillMask(&mask, image.Rect(50, 50, 71, 71))
	fillMask(&mask, image.Rect(300, 300, 321, 321))

	blob, found, err := NewBlobSelector(DefaultTrackerConfig()).SelectBest(mask, 640*480)
	require.NoError(t, err)
	require.True(t, found)

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()
	contours := gocv.FindContoursWithParams(mask, &hierarchy, gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer contours.Close()

	top := topLevelContours(hierarchy, contours.Size())
	require.Len(t, top, 2)
	assert.Equal(t, top[0], blob.ContourIndex)
	assert.Equal(t, gocv.BoundingRect(contours.At(top[0])), blob.Bounds)
}

func TestSelectBestIgnoresHoles(t *testing.T) {
	mask := newMask(t, 200, 200)
	fillMask(&mask, image.Rect(50, 50, 90, 90))
	fill(&mask, image.Rect(60, 60, 80, 80), gocv.NewScalar(0, 0, 0, 0))

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()
	contours := gocv.FindContoursWithParams(mask, &hierarchy, gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer contours.Close()
	assert.Equal(t, 2, contours.Size())
	assert.Len(t, topLevelContours(hierarchy, contours.Size()), 1)

	blob, found, err := NewBlobSelector(DefaultTrackerConfig()).SelectBest(mask, 200*200)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 39.0*39.0, blob.Area, 1e-9)
}

func TestSelectBestNoiseOverload(t *testing.T) {
	selector := NewBlobSelector(DefaultTrackerConfig())

	noisy := newMask(t, 480, 640)
	for _, r := range gridRects(MaxNumObjects+1, 20, 50, 640) {
		fillMask(&noisy, r)
	}
	blob, found, err := selector.SelectBest(noisy, 640*480)
	assert.True(t, errors.Is(err, ErrNoiseOverload))
	assert.False(t, found)
	assert.Equal(t, Blob{}, blob)

	// The cap is inclusive
	atCap := newMask(t, 480, 640)
	for _, r := range gridRects(MaxNumObjects, 20, 50, 640) {
		fillMask(&atCap, r)
	}
	_, _, err = selector.SelectBest(atCap, 640*480)
	assert.True(t, errors.Is(err, ErrNoiseOverload))

	below := newMask(t, 480, 640)
	for _, r := range gridRects(MaxNumObjects-1, 20, 50, 640) {
		fillMask(&below, r)
	}
	_, found, err = selector.SelectBest(below, 640*480)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSelectBestEmptyMask(t *testing.T) {
	mask := newMask(t, 48, 64)

	_, found, err := NewBlobSelector(DefaultTrackerConfig()).SelectBest(mask, 48*64)
	require.NoError(t, err)
	assert.False(t, found)
}
