package lib

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestDenoiseRemovesSpecks(t *testing.T) {
	mask := newMask(t, 100, 100)
	fillMask(&mask, image.Rect(10, 10, 12, 12))
	fillMask(&mask, image.Rect(50, 50, 53, 53))

	d := NewDenoiser(DefaultTrackerConfig())
	defer d.Close()

	eroded, dilated := d.Denoise(mask)
	defer closeAll(eroded, dilated)

	assert.Zero(t, gocv.CountNonZero(eroded))
	assert.Zero(t, gocv.CountNonZero(dilated))
}

func TestDenoiseKeepsBlobs(t *testing.T) {
	mask := newMask(t, 200, 200)
	fillMask(&mask, image.Rect(90, 90, 110, 110))

	d := NewDenoiser(DefaultTrackerConfig())
	defer d.Close()

	eroded, dilated := d.Denoise(mask)
	defer closeAll(eroded, dilated)

	// Two 3x3 erosions strip one pixel per side each
	assert.Equal(t, 16*16, gocv.CountNonZero(eroded))
	assert.Equal(t, uint8(255), eroded.GetUCharAt(92, 92))
	assert.Equal(t, uint8(0), eroded.GetUCharAt(91, 91))

	// The larger dilation grows the blob past its original size
	n := gocv.CountNonZero(dilated)
	assert.Greater(t, n, 20*20)
	assert.Less(t, n, 40*40)
	assert.Equal(t, uint8(255), dilated.GetUCharAt(100, 100))

	// The input mask is untouched
	assert.Equal(t, 20*20, gocv.CountNonZero(mask))
}

func TestDenoiseZeroIterations(t *testing.T) {
	mask := newMask(t, 50, 50)
	fillMask(&mask, image.Rect(5, 5, 7, 7))

	cfg := DefaultTrackerConfig()
	cfg.ErodeIterations = 0
	cfg.DilateIterations = 0
	d := NewDenoiser(cfg)
	defer d.Close()

	eroded, dilated := d.Denoise(mask)
	defer closeAll(eroded, dilated)

	assert.Equal(t, mask.ToBytes(), eroded.ToBytes())
	assert.Equal(t, mask.ToBytes(), dilated.ToBytes())
}
