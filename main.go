package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"
	"gocv.io/x/gocv"

	"colortrack/api"
	"colortrack/lib"
)

var (
	cameraID   = flag.Int("camera", 0, "Video capture device ID")
	configPath = flag.String("config", "", "Optional tracker config JSON file")
	httpAddr   = flag.String("http", ":8080", "HTTP control API listen address (empty to disable)")
	serialPort = flag.String("serial", "", "Serial port of the robot controller receiving detection reports\n\t\tExample: -serial=/dev/ttyUSB0")
	baudRate   = flag.Int("baud", 115200, "Serial baud rate")
	listPorts  = flag.Bool("list-ports", false, "List available serial ports and exit")
	showWindow = flag.Bool("window", false, "Show a preview window (keys: c calibrate, r recalibrate, v next view, ESC quit)")
	workers    = flag.Int("workers", 0, "Profiles processed concurrently per frame (0 keeps the config value)")
)

func main() {
	flag.Parse()

	if *listPorts {
		printPorts()
		return
	}

	config := lib.DefaultTrackerConfig()
	if *configPath != "" {
		var err error
		config, err = lib.LoadTrackerConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Printf("Loaded tracker config from %s", *configPath)
	}
	if *workers > 0 {
		config.Workers = *workers
	}

	session, err := lib.NewSession(config)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer session.Close()
	log.Printf("Session %s started in %s mode", session.ID, session.Mode())

	camera, err := lib.OpenCamera(*cameraID, session)
	if err != nil {
		log.Fatalf("Error opening camera %d: %v", *cameraID, err)
	}
	defer camera.Close()

	var link *lib.SerialLink
	if *serialPort != "" {
		link = lib.NewSerialLink(*serialPort, *baudRate)
		if err := link.Connect(); err != nil {
			log.Fatalf("Failed to connect to controller: %v", err)
		}
		defer link.Close()
		log.Printf("Connected to controller on %s", *serialPort)
	}

	view := newRenderer(session)
	defer view.Close()

	camera.OnFrame(func(frame gocv.Mat, result *lib.FrameResult) {
		view.handle(frame, result)

		// Only tracked frames carry fresh detections
		if link != nil && result.HasBuffers {
			if err := link.Send(result.Detections, result.Width, config.CenterWidth); err != nil {
				log.Printf("Error sending detections: %v", err)
			}
		}
	})
	camera.Start()
	log.Println("Capture started")

	var server *http.Server
	if *httpAddr != "" {
		apiServer := api.NewServer(session, camera)
		apiServer.SetSnapshot(view.snapshot)
		server = &http.Server{Addr: *httpAddr, Handler: apiServer.Handler()}

		go func() {
			log.Printf("Starting server on %s...", *httpAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
	}

	// Set up signal handling for clean shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *showWindow {
		runWindow(sigCh, session, camera, view)
	} else {
		<-sigCh
	}
	fmt.Println("\nShutting down...")

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error stopping server: %v", err)
		}
	}
	camera.Stop()
	log.Printf("Processed %d frames", camera.Frames())
}

// runWindow drives the preview window. Window functions must run in the main
// thread, so this blocks until ESC or a signal.
func runWindow(sigCh <-chan os.Signal, session *lib.Session, camera *lib.Camera, view *renderer) {
	window := gocv.NewWindow("Color Tracking")
	defer window.Close()

	for {
		select {
		case <-sigCh:
			return
		default:
		}

		if !view.show(window) {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		switch key := window.WaitKey(1); key {
		case 27: // ESC
			return
		case 'c':
			calibrateCenter(session, camera)
		case 'r':
			session.RequestCalibrationMode()
		case 'v':
			session.CycleViewMode()
		}
	}
}

func calibrateCenter(session *lib.Session, camera *lib.Camera) {
	frame, ok := camera.LatestFrame()
	defer frame.Close()
	if !ok {
		return
	}

	rect := lib.SelectionRect(frame.Cols(), frame.Rows(), lib.DefaultSelectionSize)
	if _, err := session.CalibrateRegion("", frame, rect); err != nil {
		log.Printf("Calibration failed: %v", err)
	}
}

func printPorts() {
	ports, err := serial.GetPortsList()
	if err != nil {
		log.Fatalf("Error getting serial ports: %v", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found!")
		return
	}
	fmt.Println("Available serial ports:")
	for _, port := range ports {
		fmt.Println("  " + port)
	}
}
