package lib

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	bytes.Buffer
	closed bool
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

var errUnplugged = errors.New("device unplugged")

type brokenPort struct{}

func (brokenPort) Write([]byte) (int, error) { return 0, errUnplugged }
func (brokenPort) Close() error              { return nil }

func TestZoneOf(t *testing.T) {
	// 640 wide with a 1/12 band: 53 px centered on 320, edges 294 and 346
	assert.Equal(t, ZoneLeft, ZoneOf(100, 640, 12))
	assert.Equal(t, ZoneLeft, ZoneOf(293, 640, 12))
	assert.Equal(t, ZoneCentered, ZoneOf(294, 640, 12))
	assert.Equal(t, ZoneCentered, ZoneOf(320, 640, 12))
	assert.Equal(t, ZoneCentered, ZoneOf(346, 640, 12))
	assert.Equal(t, ZoneRight, ZoneOf(347, 640, 12))
	assert.Equal(t, "RIGHT", ZoneRight.String())
}

func TestEncodeDetections(t *testing.T) {
	detections := []Detection{
		{Profile: "blue", ProfileIndex: 1, X: 320, Y: 10, Area: 500.7},
		{Profile: "red", ProfileIndex: 0, X: 1, Y: 258, Area: 70000},
	}

	packet := EncodeDetections(detections, 640, 12)

	want := []byte{
		0xA5, 2,
		1, 0x01, 0x40, 0x00, 0x0A, 0x00, 0x00, 0x01, 0xF4, byte(ZoneCentered),
		0, 0x00, 0x01, 0x01, 0x02, 0x00, 0x01, 0x11, 0x70, byte(ZoneLeft),
	}
	var sum byte
	for _, b := range want {
		sum += b
	}
	want = append(want, sum)

	assert.Equal(t, want, packet)
}

func TestEncodeNoDetections(t *testing.T) {
	packet := EncodeDetections(nil, 640, 12)
	assert.Equal(t, []byte{0xA5, 0, 0xA5}, packet)
}

func TestSerialLinkSend(t *testing.T) {
	port := &fakePort{}
	link := NewSerialLinkWithPort(port)

	detections := []Detection{{Profile: "red", X: 5, Y: 6, Area: 300}}
	require.NoError(t, link.Send(detections, 640, 12))
	assert.Equal(t, EncodeDetections(detections, 640, 12), port.Bytes())

	require.NoError(t, link.Close())
	assert.True(t, port.closed)
	assert.Error(t, link.Send(detections, 640, 12))
}

func TestSerialLinkWriteError(t *testing.T) {
	link := NewSerialLinkWithPort(brokenPort{})

	err := link.Send([]Detection{{Profile: "red"}}, 640, 12)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUnplugged))
	assert.Equal(t, errUnplugged, errors.Cause(err))
}

// Indexes come from the profile list the frame was processed with, so a
// profile removed before sending does not shift the report.
func TestEncodeUsesProcessedProfileIndex(t *testing.T) {
	session := newTestSession(t)
	calibrateColor(t, session, "red", rgbaRed)
	calibrateColor(t, session, "blue", rgbaBlue)

	frame := newRGBA(t, 480, 640, rgbaBlack)
	fill(&frame, squareAt(500, 100, 30), rgbaBlue)
	result := process(t, session, frame)
	require.Len(t, result.Detections, 1)
	assert.Equal(t, 1, result.Detections[0].ProfileIndex)

	require.NoError(t, session.RemoveProfile("red"))

	packet := EncodeDetections(result.Detections, 640, 12)
	require.Len(t, packet, 3+10)
	assert.Equal(t, byte(1), packet[2])
}

func TestSerialLinkNotConnected(t *testing.T) {
	link := NewSerialLink("/dev/null-port", 115200)
	assert.Error(t, link.Send(nil, 640, 12))
	assert.NoError(t, link.Close())
}
