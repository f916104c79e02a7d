package lib

import (
	"image"
	"testing"

	"gocv.io/x/gocv"
)

var (
	rgbaBlack = gocv.NewScalar(0, 0, 0, 255)
	rgbaRed   = gocv.NewScalar(255, 0, 0, 255)
	rgbaGreen = gocv.NewScalar(0, 255, 0, 255)
	rgbaBlue  = gocv.NewScalar(0, 0, 255, 255)
)

// newRGBA returns a rows x cols RGBA frame filled with s
func newRGBA(t *testing.T, rows, cols int, s gocv.Scalar) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(s, rows, cols, gocv.MatTypeCV8UC4)
	t.Cleanup(func() { m.Close() })
	return m
}

// newMask returns an all-zero single channel mask
func newMask(t *testing.T, rows, cols int) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8U)
	t.Cleanup(func() { m.Close() })
	return m
}

// fill paints r of m with s
func fill(m *gocv.Mat, r image.Rectangle, s gocv.Scalar) {
	region := m.Region(r)
	region.SetTo(s)
	region.Close()
}

// fillMask turns r of a mask on
func fillMask(m *gocv.Mat, r image.Rectangle) {
	fill(m, r, gocv.NewScalar(255, 0, 0, 0))
}

// squareAt returns the side x side pixel block centered on (x, y)
func squareAt(x, y, side int) image.Rectangle {
	return image.Rect(x-side/2, y-side/2, x-side/2+side, y-side/2+side)
}

// gridRects returns n side x side blocks laid out on a grid of pitch pixels
func gridRects(n, side, pitch, width int) []image.Rectangle {
	perRow := (width - pitch) / pitch
	rects := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		x := 10 + (i%perRow)*pitch
		y := 10 + (i/perRow)*pitch
		rects = append(rects, image.Rect(x, y, x+side, y+side))
	}
	return rects
}

func closeAll(mats ...gocv.Mat) {
	for _, m := range mats {
		m.Close()
	}
}
