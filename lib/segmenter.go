package lib

import "gocv.io/x/gocv"

// toHSV converts an RGB or RGBA image to full-range HSV. Calibration and
// segmentation must share this conversion or calibrated ranges do not match.
func toHSV(src gocv.Mat) gocv.Mat {
	hsvImg := gocv.NewMat()
	gocv.CvtColor(src, &hsvImg, gocv.ColorRGBToHSVFull)
	return hsvImg
}

// FrameSegmenter produces binary masks of the pixels matching a profile.
// It holds no state and is safe for concurrent use.
type FrameSegmenter struct{}

// ToHSV returns a new full-range HSV copy of an RGB(A) frame
func (FrameSegmenter) ToHSV(frame gocv.Mat) gocv.Mat {
	return toHSV(frame)
}

// Threshold returns a new 8-bit mask that is 255 where every channel of hsvImg
// lies inside the profile bounds (inclusive) and 0 elsewhere.
func (FrameSegmenter) Threshold(hsvImg gocv.Mat, profile *ColorProfile) gocv.Mat {
	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsvImg, profile.Min.Scalar(), profile.Max.Scalar(), &mask)
	return mask
}

// Segment converts frame to HSV and thresholds it against profile
func (s FrameSegmenter) Segment(frame gocv.Mat, profile *ColorProfile) gocv.Mat {
	hsvImg := s.ToHSV(frame)
	defer hsvImg.Close()
	return s.Threshold(hsvImg, profile)
}
