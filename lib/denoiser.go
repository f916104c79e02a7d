package lib

import (
	"image"

	"gocv.io/x/gocv"
)

// Denoiser removes speckle noise from binary masks with rectangular erosion
// followed by a larger rectangular dilation.
type Denoiser struct {
	erodeKernel      gocv.Mat
	dilateKernel     gocv.Mat
	erodeIterations  int
	dilateIterations int
}

// NewDenoiser creates the structuring elements described by config.
// Call Close to release them.
func NewDenoiser(config TrackerConfig) *Denoiser {
	return &Denoiser{
		erodeKernel:      gocv.GetStructuringElement(gocv.MorphRect, image.Pt(config.ErodeKernelSize, config.ErodeKernelSize)),
		dilateKernel:     gocv.GetStructuringElement(gocv.MorphRect, image.Pt(config.DilateKernelSize, config.DilateKernelSize)),
		erodeIterations:  config.ErodeIterations,
		dilateIterations: config.DilateIterations,
	}
}

// Close releases the structuring elements
func (d *Denoiser) Close() {
	d.erodeKernel.Close()
	d.dilateKernel.Close()
}

// Denoise returns the mask after erosion and the mask after erosion and
// dilation. Both are new Mats owned by the caller; mask is not modified.
func (d *Denoiser) Denoise(mask gocv.Mat) (eroded, dilated gocv.Mat) {
	eroded = repeat(mask, d.erodeIterations, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Erode(src, dst, d.erodeKernel)
	})
	dilated = repeat(eroded, d.dilateIterations, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Dilate(src, dst, d.dilateKernel)
	})
	return eroded, dilated
}

// repeat applies op n times, each pass into a fresh buffer
func repeat(src gocv.Mat, n int, op func(src gocv.Mat, dst *gocv.Mat)) gocv.Mat {
	out := src.Clone()
	for i := 0; i < n; i++ {
		next := gocv.NewMat()
		op(out, &next)
		out.Close()
		out = next
	}
	return out
}
