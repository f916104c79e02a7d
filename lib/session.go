package lib

import (
	"fmt"
	"image"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// Mode selects which pipeline stage runs for each frame
type Mode string

const (
	Calibrating Mode = "CALIBRATING"
	Tracking    Mode = "TRACKING"
)

// ViewMode selects which intermediate buffer a renderer shows
type ViewMode string

const (
	ViewRGB     ViewMode = "RGB"
	ViewHSV     ViewMode = "HSV"
	ViewEroded  ViewMode = "ERODED"
	ViewDilated ViewMode = "DILATED"
)

var viewCycle = []ViewMode{ViewRGB, ViewHSV, ViewEroded, ViewDilated}

// Next returns the view that follows v, wrapping around
func (v ViewMode) Next() ViewMode {
	for i, m := range viewCycle {
		if m == v {
			return viewCycle[(i+1)%len(viewCycle)]
		}
	}
	return ViewRGB
}

// ProfileLayer holds the denoising buffers of one profile for one frame
type ProfileLayer struct {
	Profile *ColorProfile
	Eroded  gocv.Mat
	Dilated gocv.Mat
}

// FrameResult is the outcome of one ProcessFrame call. When HasBuffers is
// true the caller owns HSV and the layer masks and must call Close.
type FrameResult struct {
	Mode       Mode
	View       ViewMode
	Width      int
	Height     int
	Detections []Detection
	Noisy      []string // Profiles whose masks hit the noise cap
	HSV        gocv.Mat
	Layers     []ProfileLayer
	HasBuffers bool
}

// Close releases the frame buffers
func (r *FrameResult) Close() {
	if !r.HasBuffers {
		return
	}
	r.HSV.Close()
	for _, l := range r.Layers {
		l.Eroded.Close()
		l.Dilated.Close()
	}
	r.HasBuffers = false
}

// Session owns the calibrated profiles and runs the detection pipeline for
// every delivered frame.
type Session struct {
	ID uuid.UUID

	config     TrackerConfig
	calibrator *Calibrator
	segmenter  FrameSegmenter
	denoiser   *Denoiser
	selector   BlobSelector

	mu       sync.RWMutex
	mode     Mode
	view     ViewMode
	profiles []*ColorProfile

	noiseMu sync.Mutex
	noisy   map[string]bool

	detections atomic.Pointer[[]Detection]
}

// NewSession creates a session in calibration mode
func NewSession(config TrackerConfig) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		ID:         uuid.New(),
		config:     config,
		calibrator: NewCalibrator(config.Calibration),
		denoiser:   NewDenoiser(config),
		selector:   NewBlobSelector(config),
		mode:       Calibrating,
		view:       ViewRGB,
		noisy:      make(map[string]bool),
	}
	empty := []Detection{}
	s.detections.Store(&empty)
	return s, nil
}

// Close releases all resources
func (s *Session) Close() {
	s.denoiser.Close()
}

// Config returns the tracker configuration of the session
func (s *Session) Config() TrackerConfig {
	return s.config
}

// Calibrate derives a profile from an RGB(A) sample, registers it and
// switches the session to tracking. An empty name is replaced by "Obj <n>".
func (s *Session) Calibrate(name string, sample gocv.Mat) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = s.nextNameLocked()
	} else if s.indexLocked(name) >= 0 {
		return "", errors.Wrapf(ErrDuplicateProfile, "profile %q", name)
	}

	profile, err := s.calibrator.Calibrate(name, sample)
	if err != nil {
		return "", err
	}

	s.profiles = append(s.profiles, profile)
	s.mode = Tracking

	log.Printf("Calibrated %s: HSV min %v max %v, color %v", profile.Name, profile.Min, profile.Max, profile.DisplayColor)
	return profile.Name, nil
}

// CalibrateRegion calibrates from the rect region of frame
func (s *Session) CalibrateRegion(name string, frame gocv.Mat, rect image.Rectangle) (string, error) {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	if frame.Empty() || rect.Empty() || !rect.In(bounds) {
		return "", errors.Wrapf(ErrInvalidCalibrationRegion, "region %v outside frame %v", rect, bounds)
	}

	region := frame.Region(rect)
	defer region.Close()

	return s.Calibrate(name, region)
}

// RemoveProfile stops tracking the named profile
func (s *Session) RemoveProfile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(name)
	if i < 0 {
		return errors.Wrapf(ErrUnknownProfile, "profile %q", name)
	}
	s.profiles = append(s.profiles[:i:i], s.profiles[i+1:]...)
	log.Printf("Removed profile %s", name)
	return nil
}

// Profiles returns a copy of the registered profiles in calibration order
func (s *Session) Profiles() []ColorProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ColorProfile, len(s.profiles))
	for i, p := range s.profiles {
		out[i] = *p
	}
	return out
}

// Mode returns the current pipeline mode
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// RequestCalibrationMode stops tracking until the next calibration
func (s *Session) RequestCalibrationMode() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != Calibrating {
		log.Println("Switching to calibration mode")
	}
	s.mode = Calibrating
}

// ViewMode returns the buffer renderers should display
func (s *Session) ViewMode() ViewMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// CycleViewMode advances to the next view and returns it
func (s *Session) CycleViewMode() ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view = s.view.Next()
	log.Println("View mode:", s.view)
	return s.view
}

// LastDetections returns the detections of the most recent tracked frame
func (s *Session) LastDetections() []Detection {
	last := *s.detections.Load()
	out := make([]Detection, len(last))
	copy(out, last)
	return out
}

// ProcessFrame runs the pipeline on an RGB(A) frame. In calibration mode, or
// for an empty frame or one without 3 or 4 channels, nothing runs and the
// previous detections are returned.
func (s *Session) ProcessFrame(frame gocv.Mat) *FrameResult {
	s.mu.RLock()
	mode, view := s.mode, s.view
	profiles := append([]*ColorProfile(nil), s.profiles...)
	s.mu.RUnlock()

	result := &FrameResult{Mode: mode, View: view}
	if frame.Empty() || frame.Rows() == 0 || frame.Cols() == 0 || (frame.Channels() != 3 && frame.Channels() != 4) {
		result.Detections = s.LastDetections()
		return result
	}
	result.Width, result.Height = frame.Cols(), frame.Rows()

	if mode == Calibrating {
		result.Detections = s.LastDetections()
		return result
	}

	hsvImg := s.segmenter.ToHSV(frame)
	frameArea := float64(result.Width * result.Height)

	outcomes := make([]profileOutcome, len(profiles))
	var g errgroup.Group
	g.SetLimit(s.config.Workers)
	for i, p := range profiles {
		g.Go(func() error {
			outcomes[i] = s.trackProfile(hsvImg, p, frameArea)
			return nil
		})
	}
	g.Wait()

	// Single accumulation point for the frame-wide cap
	detections := make([]Detection, 0, len(profiles))
	for i, o := range outcomes {
		p := profiles[i]
		result.Layers = append(result.Layers, ProfileLayer{Profile: p, Eroded: o.eroded, Dilated: o.dilated})
		if o.noisy {
			result.Noisy = append(result.Noisy, p.Name)
			continue
		}
		if !o.found || len(detections) >= s.config.MaxObjects {
			continue
		}
		detections = append(detections, Detection{
			Profile:      p.Name,
			ProfileIndex: i,
			Color:        p.DisplayColor,
			X:            o.blob.X,
			Y:            o.blob.Y,
			Area:         o.blob.Area,
			Bounds:       o.blob.Bounds,
			ContourIndex: o.blob.ContourIndex,
			Contour:      o.blob.Contour,
		})
	}

	result.HSV = hsvImg
	result.HasBuffers = true
	result.Detections = detections

	s.mu.RLock()
	if s.mode == Tracking {
		s.detections.Store(&detections)
	}
	s.mu.RUnlock()

	s.reportNoise(result.Noisy)
	return result
}

type profileOutcome struct {
	eroded  gocv.Mat
	dilated gocv.Mat
	blob    Blob
	found   bool
	noisy   bool
}

// trackProfile runs threshold, denoise and selection for one profile
func (s *Session) trackProfile(hsvImg gocv.Mat, p *ColorProfile, frameArea float64) profileOutcome {
	mask := s.segmenter.Threshold(hsvImg, p)
	defer mask.Close()

	var o profileOutcome
	o.eroded, o.dilated = s.denoiser.Denoise(mask)

	blob, found, err := s.selector.SelectBest(o.dilated, frameArea)
	if errors.Is(err, ErrNoiseOverload) {
		o.noisy = true
		return o
	}
	o.blob, o.found = blob, found
	return o
}

// reportNoise logs profiles that just entered the noisy state
func (s *Session) reportNoise(noisy []string) {
	s.noiseMu.Lock()
	defer s.noiseMu.Unlock()

	current := make(map[string]bool, len(noisy))
	for _, name := range noisy {
		current[name] = true
		if !s.noisy[name] {
			log.Printf("Profile %s: too much noise, adjust filter", name)
		}
	}
	s.noisy = current
}

func (s *Session) indexLocked(name string) int {
	for i, p := range s.profiles {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (s *Session) nextNameLocked() string {
	for n := len(s.profiles); ; n++ {
		name := fmt.Sprintf("Obj %d", n)
		if s.indexLocked(name) < 0 {
			return name
		}
	}
}
