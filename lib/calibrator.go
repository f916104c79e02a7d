package lib

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Calibrator derives color profiles from sampled image regions
type Calibrator struct {
	Config CalibrationConfig
}

// NewCalibrator creates a calibrator with the given configuration
func NewCalibrator(config CalibrationConfig) *Calibrator {
	return &Calibrator{Config: config}
}

// Calibrate converts an RGB(A) sample to HSV and returns a profile spanning
// the per-channel minimum and maximum of the sample. The display color is the
// mean HSV color of the sample converted back to RGBA.
func (c *Calibrator) Calibrate(name string, sample gocv.Mat) (*ColorProfile, error) {
	if sample.Empty() || sample.Rows() < 1 || sample.Cols() < 1 {
		return nil, errors.Wrapf(ErrInvalidCalibrationRegion, "sample is %dx%d", sample.Cols(), sample.Rows())
	}
	if ch := sample.Channels(); ch != 3 && ch != 4 {
		return nil, errors.Wrapf(ErrInvalidCalibrationRegion, "sample has %d channels, want RGB or RGBA", ch)
	}

	hsvImg := toHSV(sample)
	defer hsvImg.Close()

	rows, cols := hsvImg.Rows(), hsvImg.Cols()
	data := hsvImg.ToBytes()

	start := 0
	if c.Config.SkipFirstRowCol {
		start = 1
	}

	var sum [3]float64
	lo := [3]int{256, 256, 256} // Above the legal maximum so any pixel replaces it
	hi := [3]int{0, 0, 0}
	scanned := 0

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			px := data[(row*cols+col)*3:]
			for ch := 0; ch < 3; ch++ {
				sum[ch] += float64(px[ch])
			}
			if row < start || col < start {
				continue
			}
			scanned++
			for ch := 0; ch < 3; ch++ {
				v := int(px[ch])
				if v < lo[ch] {
					lo[ch] = v
				}
				if v > hi[ch] {
					hi[ch] = v
				}
			}
		}
	}

	if scanned == 0 {
		return nil, errors.Wrapf(ErrInvalidCalibrationRegion, "no pixels scanned in %dx%d sample", cols, rows)
	}

	n := float64(rows * cols)
	mean := HSV{H: sum[0] / n, S: sum[1] / n, V: sum[2] / n}

	return &ColorProfile{
		Name:         name,
		Min:          HSV{H: float64(lo[0]), S: float64(lo[1]), V: float64(lo[2])},
		Max:          HSV{H: float64(hi[0]), S: float64(hi[1]), V: float64(hi[2])},
		DisplayColor: hsvToRGBA(mean),
	}, nil
}

// hsvToRGBA converts a single full-range HSV color to RGBA with opaque alpha
func hsvToRGBA(c HSV) color.RGBA {
	point := gocv.NewMatWithSizeFromScalar(c.Scalar(), 1, 1, gocv.MatTypeCV8UC3)
	defer point.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()

	gocv.CvtColor(point, &rgb, gocv.ColorHSVToRGBFull)
	px := rgb.ToBytes()
	return color.RGBA{R: px[0], G: px[1], B: px[2], A: 255}
}

// DefaultSelectionSize is the side of the square calibration box
const DefaultSelectionSize = 200

// SelectionRect returns a size x size square centered in a width x height
// frame, clipped to the frame.
func SelectionRect(width, height, size int) image.Rectangle {
	x := width/2 - size/2
	y := height/2 - size/2
	return image.Rect(x, y, x+size, y+size).Intersect(image.Rect(0, 0, width, height))
}
