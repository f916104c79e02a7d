// Package api exposes the tracking session over HTTP: calibration, mode and
// view switching, and the latest detections.
package api

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"colortrack/lib"
)

// SnapshotFunc returns the latest rendered frame as JPEG bytes
type SnapshotFunc func() ([]byte, bool)

// Server serves the control endpoints for one session
type Server struct {
	session  *lib.Session
	frames   lib.FrameSource
	snapshot SnapshotFunc
}

// NewServer creates a server for session. frames supplies the image that
// calibration requests sample from.
func NewServer(session *lib.Session, frames lib.FrameSource) *Server {
	return &Server{session: session, frames: frames}
}

// SetSnapshot installs the source for /snapshot.jpg
func (s *Server) SetSnapshot(fn SnapshotFunc) {
	s.snapshot = fn
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/detections", s.handleDetections)
	mux.HandleFunc("/calibrate", s.handleCalibrate)
	mux.HandleFunc("/touch", s.handleTouch)
	mux.HandleFunc("/mode/calibration", s.handleCalibrationMode)
	mux.HandleFunc("/view/next", s.handleNextView)
	mux.HandleFunc("/profiles/remove", s.handleRemoveProfile)
	mux.HandleFunc("/snapshot.jpg", s.handleSnapshot)
	return mux
}

type profileStatus struct {
	Name  string  `json:"name"`
	Min   lib.HSV `json:"min"`
	Max   lib.HSV `json:"max"`
	Color string  `json:"color"`
}

type statusResponse struct {
	Session  string          `json:"session"`
	Mode     lib.Mode        `json:"mode"`
	View     lib.ViewMode    `json:"view"`
	Profiles []profileStatus `json:"profiles"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{
		Session:  s.session.ID.String(),
		Mode:     s.session.Mode(),
		View:     s.session.ViewMode(),
		Profiles: []profileStatus{},
	}
	for _, p := range s.session.Profiles() {
		c := p.DisplayColor
		resp.Profiles = append(resp.Profiles, profileStatus{
			Name:  p.Name,
			Min:   p.Min,
			Max:   p.Max,
			Color: fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B),
		})
	}
	writeJSON(w, resp)
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.session.LastDetections())
}

// handleCalibrate samples x,y,w,h of the latest frame. Without a rectangle
// the centered selection box is used.
func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	frame, ok := s.frames.LatestFrame()
	defer frame.Close()
	if !ok {
		http.Error(w, "No frame captured yet", http.StatusServiceUnavailable)
		return
	}

	rect := lib.SelectionRect(frame.Cols(), frame.Rows(), lib.DefaultSelectionSize)
	if hasRectFields(r) {
		var err error
		rect, err = formRect(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	name, err := s.session.CalibrateRegion(r.FormValue("name"), frame, rect)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Calibrated %s from %v", name, rect)
	fmt.Fprint(w, name)
}

// handleTouch maps a screen touch the way the handheld tracker did: while
// calibrating any touch samples the selection box, while tracking the upper
// half switches to calibration and the lower half cycles the view.
func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}
	y, err := strconv.Atoi(r.FormValue("y"))
	if err != nil {
		http.Error(w, "Invalid y coordinate", http.StatusBadRequest)
		return
	}

	frame, ok := s.frames.LatestFrame()
	defer frame.Close()
	if !ok {
		http.Error(w, "No frame captured yet", http.StatusServiceUnavailable)
		return
	}

	switch s.session.Mode() {
	case lib.Calibrating:
		rect := lib.SelectionRect(frame.Cols(), frame.Rows(), lib.DefaultSelectionSize)
		name, err := s.session.CalibrateRegion("", frame, rect)
		if err != nil {
			writeError(w, err)
			return
		}
		fmt.Fprint(w, name)
	case lib.Tracking:
		if y < frame.Rows()/2 {
			s.session.RequestCalibrationMode()
			fmt.Fprint(w, lib.Calibrating)
			return
		}
		fmt.Fprint(w, s.session.CycleViewMode())
	}
}

func (s *Server) handleCalibrationMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.session.RequestCalibrationMode()
	fmt.Fprint(w, s.session.Mode())
}

func (s *Server) handleNextView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fmt.Fprint(w, s.session.CycleViewMode())
}

func (s *Server) handleRemoveProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}
	name := r.FormValue("name")
	if err := s.session.RemoveProfile(name); err != nil {
		writeError(w, err)
		return
	}
	fmt.Fprintf(w, "Removed %s", name)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.snapshot == nil {
		http.Error(w, "Snapshots not enabled", http.StatusNotFound)
		return
	}
	data, ok := s.snapshot()
	if !ok {
		http.Error(w, "No frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing snapshot: %v", err)
	}
}

// hasRectFields reports whether any of x, y, w, h was sent
func hasRectFields(r *http.Request) bool {
	for _, key := range []string{"x", "y", "w", "h"} {
		if _, ok := r.Form[key]; ok {
			return true
		}
	}
	return false
}

func formRect(r *http.Request) (image.Rectangle, error) {
	var v [4]int
	for i, key := range []string{"x", "y", "w", "h"} {
		n, err := strconv.Atoi(r.FormValue(key))
		if err != nil {
			return image.Rectangle{}, errors.Errorf("invalid %s: %q", key, r.FormValue(key))
		}
		v[i] = n
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

// writeError maps session errors to HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lib.ErrInvalidCalibrationRegion):
		status = http.StatusBadRequest
	case errors.Is(err, lib.ErrDuplicateProfile):
		status = http.StatusConflict
	case errors.Is(err, lib.ErrUnknownProfile):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
