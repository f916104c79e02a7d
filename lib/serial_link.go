package lib

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Zone is the horizontal position of a detection relative to the frame center
type Zone byte

const (
	ZoneLeft     Zone = 0
	ZoneCentered Zone = 1
	ZoneRight    Zone = 2
)

func (z Zone) String() string {
	switch z {
	case ZoneLeft:
		return "LEFT"
	case ZoneCentered:
		return "CENTERED"
	case ZoneRight:
		return "RIGHT"
	}
	return "UNKNOWN"
}

// ZoneOf places x against a center band of frameWidth/centerWidth pixels
func ZoneOf(x, frameWidth, centerWidth int) Zone {
	band := frameWidth / centerWidth
	left := frameWidth/2 - band/2
	right := frameWidth/2 + band/2
	switch {
	case x < left:
		return ZoneLeft
	case x > right:
		return ZoneRight
	}
	return ZoneCentered
}

const packetStart byte = 0xA5

// EncodeDetections builds one report packet:
//
//	0xA5 | count | count x (index | x:i16 | y:i16 | area:u32 | zone) | checksum
//
// index is the detection's ProfileIndex; multi-byte fields are big endian.
func EncodeDetections(detections []Detection, frameWidth, centerWidth int) []byte {
	n := len(detections)
	if n > math.MaxUint8 {
		n = math.MaxUint8
	}

	buf := make([]byte, 0, 3+n*10)
	buf = append(buf, packetStart, byte(n))
	for _, d := range detections[:n] {
		area := d.Area
		if area > math.MaxUint32 {
			area = math.MaxUint32
		}
		buf = append(buf, byte(d.ProfileIndex))
		buf = binary.BigEndian.AppendUint16(buf, uint16(clampInt16(d.X)))
		buf = binary.BigEndian.AppendUint16(buf, uint16(clampInt16(d.Y)))
		buf = binary.BigEndian.AppendUint32(buf, uint32(area))
		buf = append(buf, byte(ZoneOf(d.X, frameWidth, centerWidth)))
	}

	var sum byte
	for _, b := range buf {
		sum += b
	}
	return append(buf, sum)
}

func clampInt16(v int) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// SerialLink streams detection reports to a robot controller
type SerialLink struct {
	port     io.WriteCloser
	portName string
	baudRate int
	mu       sync.Mutex
}

// NewSerialLink creates a link for the given port; call Connect before use
func NewSerialLink(portName string, baudRate int) *SerialLink {
	return &SerialLink{
		portName: portName,
		baudRate: baudRate,
	}
}

// NewSerialLinkWithPort creates a link over an already open port
func NewSerialLinkWithPort(port io.WriteCloser) *SerialLink {
	return &SerialLink{port: port}
}

// Connect opens the serial port and resets the controller by toggling RTS
func (l *SerialLink) Connect() error {
	mode := &serial.Mode{
		BaudRate: l.baudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(l.portName, mode)
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", l.portName)
	}

	// Not every adapter supports RTS control
	port.SetRTS(false)
	time.Sleep(100 * time.Millisecond)
	port.SetRTS(true)

	l.mu.Lock()
	l.port = port
	l.mu.Unlock()
	return nil
}

// Close closes the serial port
func (l *SerialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port != nil {
		err := l.port.Close()
		l.port = nil
		return err
	}
	return nil
}

// Send writes a report packet for the detections of one frame
func (l *SerialLink) Send(detections []Detection, frameWidth, centerWidth int) error {
	packet := EncodeDetections(detections, frameWidth, centerWidth)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return errors.Errorf("serial link %s not connected", l.portName)
	}
	if _, err := l.port.Write(packet); err != nil {
		return errors.Wrap(err, "failed to write detection report")
	}
	return nil
}
