package lib

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// FrameHandler is called for every processed frame. frame and result are
// only valid for the duration of the call.
type FrameHandler func(frame gocv.Mat, result *FrameResult)

// Camera reads frames from a webcam and feeds them to a session
type Camera struct {
	session  *Session
	webcam   *gocv.VideoCapture
	handler  FrameHandler
	latest   gocv.Mat
	frames   int64
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	done     chan struct{}
}

// OpenCamera opens the webcam with the given device ID
func OpenCamera(cameraID int, session *Session) (*Camera, error) {
	webcam, err := gocv.OpenVideoCapture(cameraID)
	if err != nil {
		return nil, err
	}

	return &Camera{
		session:  session,
		webcam:   webcam,
		latest:   gocv.NewMat(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// OnFrame sets the handler for processed frames. Call before Start.
func (c *Camera) OnFrame(handler FrameHandler) {
	c.handler = handler
}

// Start begins reading frames in a separate goroutine
func (c *Camera) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.captureLoop()
}

// Stop halts frame capture and waits for the loop to exit
func (c *Camera) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopChan)
	<-c.done
}

// Close releases all resources
func (c *Camera) Close() {
	c.Stop()

	if c.webcam != nil {
		c.webcam.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest.Close()
}

// LatestFrame returns a copy of the last captured RGBA frame
func (c *Camera) LatestFrame() (gocv.Mat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.latest.Empty() {
		return gocv.NewMat(), false
	}
	return c.latest.Clone(), true
}

// Frames returns the number of frames processed so far
func (c *Camera) Frames() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames
}

func (c *Camera) captureLoop() {
	defer close(c.done)

	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-c.stopChan:
			return
		default:
			if ok := c.webcam.Read(&img); !ok || img.Empty() {
				time.Sleep(10 * time.Millisecond) // Small delay to avoid busy waiting
				continue
			}

			// Webcams deliver BGR, the pipeline works on RGB(A)
			rgba := gocv.NewMat()
			gocv.CvtColor(img, &rgba, gocv.ColorBGRToRGBA)

			result := c.session.ProcessFrame(rgba)
			if c.handler != nil {
				c.handler(rgba, result)
			}
			result.Close()

			c.mu.Lock()
			old := c.latest
			c.latest = rgba
			c.frames++
			c.mu.Unlock()
			old.Close()
		}
	}
}

// FrameSource provides the most recent frame for calibration requests
type FrameSource interface {
	LatestFrame() (gocv.Mat, bool)
}

var _ FrameSource = (*Camera)(nil)
