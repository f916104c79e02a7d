package main

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"colortrack/lib"
)

var (
	white = color.RGBA{255, 255, 255, 0}
	red   = color.RGBA{255, 0, 0, 0}
)

// renderer draws overlays on processed frames and keeps the latest result
// for the preview window and the snapshot endpoint.
type renderer struct {
	session *lib.Session
	mu      sync.Mutex
	display gocv.Mat
}

func newRenderer(session *lib.Session) *renderer {
	return &renderer{session: session, display: gocv.NewMat()}
}

func (r *renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.display.Close()
}

// handle is installed as the camera frame handler
func (r *renderer) handle(frame gocv.Mat, result *lib.FrameResult) {
	img := viewBuffer(frame, result)

	switch result.Mode {
	case lib.Calibrating:
		drawSelection(&img, frame)
	case lib.Tracking:
		drawDetections(&img, result)
	}

	r.mu.Lock()
	old := r.display
	r.display = img
	r.mu.Unlock()
	old.Close()
}

// snapshot encodes the latest display frame as JPEG
func (r *renderer) snapshot() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.display.Empty() {
		return nil, false
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, r.display)
	if err != nil {
		return nil, false
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), true
}

// show displays the latest frame. It must be called from the main thread.
func (r *renderer) show(window *gocv.Window) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.display.Empty() {
		return false
	}
	window.IMShow(r.display)
	return true
}

// viewBuffer returns a BGR image of the buffer selected by the view mode.
// Mask views show the last profile's mask, as the handheld tracker did.
func viewBuffer(frame gocv.Mat, result *lib.FrameResult) gocv.Mat {
	img := gocv.NewMat()

	if result.HasBuffers {
		switch result.View {
		case lib.ViewHSV:
			result.HSV.CopyTo(&img)
			return img
		case lib.ViewEroded, lib.ViewDilated:
			if n := len(result.Layers); n > 0 {
				mask := result.Layers[n-1].Dilated
				if result.View == lib.ViewEroded {
					mask = result.Layers[n-1].Eroded
				}
				gocv.CvtColor(mask, &img, gocv.ColorGrayToBGR)
				return img
			}
		}
	}

	gocv.CvtColor(frame, &img, gocv.ColorRGBAToBGR)
	return img
}

// drawSelection outlines the calibration box and prints its mean color
func drawSelection(img *gocv.Mat, frame gocv.Mat) {
	rect := lib.SelectionRect(frame.Cols(), frame.Rows(), lib.DefaultSelectionSize)
	if rect.Empty() {
		return
	}

	region := frame.Region(rect)
	mean := region.Mean()
	region.Close()

	// frame is RGBA, so the scalar is in R, G, B, A order
	c := color.RGBA{uint8(mean.Val1), uint8(mean.Val2), uint8(mean.Val3), 0}
	gocv.Rectangle(img, rect, white, 1)
	text := fmt.Sprintf("%.0f, %.0f, %.0f, %.0f", mean.Val1, mean.Val2, mean.Val3, mean.Val4)
	gocv.PutText(img, text, image.Pt(rect.Min.X, rect.Min.Y-10), gocv.FontHersheyPlain, 2, c, 2)
}

// drawDetections draws each detection's contour, centroid and label, plus the
// summary list in the upper-left corner.
func drawDetections(img *gocv.Mat, result *lib.FrameResult) {
	for i, d := range result.Detections {
		if len(d.Contour) > 0 {
			contours := gocv.NewPointsVectorFromPoints([][]image.Point{d.Contour})
			gocv.DrawContours(img, contours, 0, white, 3)
			contours.Close()
		}

		center := d.Centroid()
		gocv.Circle(img, center, 5, white, 1)
		gocv.PutText(img, fmt.Sprintf("%d , %d", d.X, d.Y), image.Pt(d.X, d.Y+20), gocv.FontHersheyPlain, 1, white, 1)
		gocv.PutText(img, d.Profile, image.Pt(d.X, d.Y-20), gocv.FontHersheyPlain, 2, white, 1)

		y := 30 + i*30
		gocv.Circle(img, image.Pt(10, y), 5, d.Color, 1)
		summary := fmt.Sprintf("%s: %d, %d, area: %.0f", d.Profile, d.X, d.Y, d.Area)
		gocv.PutText(img, summary, image.Pt(15, y), gocv.FontHersheyPlain, 2, white, 2)
	}

	if len(result.Noisy) > 0 {
		gocv.PutText(img, "TOO MUCH NOISE! ADJUST FILTER", image.Pt(0, 50), gocv.FontHersheyPlain, 2, red, 2)
	}
}
