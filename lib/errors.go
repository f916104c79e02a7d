package lib

import "github.com/pkg/errors"

var (
	// ErrInvalidCalibrationRegion is returned when a calibration sample has no
	// usable pixels or the requested rectangle does not fit the frame.
	ErrInvalidCalibrationRegion = errors.New("invalid calibration region")

	// ErrNoiseOverload is returned by the blob selector when the mask holds
	// too many top-level contours to be a usable filter. It is an expected
	// operating condition, not a failure of the session.
	ErrNoiseOverload = errors.New("too much noise, adjust filter")

	ErrDuplicateProfile = errors.New("color profile already exists")
	ErrUnknownProfile   = errors.New("unknown color profile")
	ErrInvalidConfig    = errors.New("invalid tracker config")
)
