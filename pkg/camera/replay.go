package camera

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxLineSize = 1 << 20

// replayLine is one recorded frame.
type replayLine struct {
	Faces []liveness.FaceMeasurement `json:"faces"`
}

// ReplaySource replays recorded face measurements, one JSON object per line:
//
//	{"faces":[{"bounds":{"x":145,"y":150,"width":100,"height":100},"yawAngle":0}]}
//
// Blank lines are skipped. Path "-" reads from stdin.
type ReplaySource struct {
	mu      sync.Mutex
	path    string
	closer  io.Closer
	scanner *bufio.Scanner
	limiter *rate.Limiter
	fps     int
	line    int
	index   int
	closed  bool
}

// OpenReplay opens a recording. A positive fps paces Next to that rate.
func OpenReplay(path string, fps int) (*ReplaySource, error) {
	var r io.ReadCloser
	if path == "-" {
		r = io.NopCloser(os.Stdin)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, wrapOpenError(path, err)
		}
		r = f
	}

	src := NewReplayReader(r, fps)
	src.path = path
	src.closer = r
	return src, nil
}

// NewReplayReader replays a recording from r.
func NewReplayReader(r io.Reader, fps int) *ReplaySource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	src := &ReplaySource{
		path:    "reader",
		scanner: scanner,
		fps:     fps,
	}
	if fps > 0 {
		src.limiter = rate.NewLimiter(rate.Limit(fps), 1)
	}
	return src
}

// Next returns the next recorded frame, or io.EOF at the end of the recording.
func (s *ReplaySource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Frame{}, ErrCameraNotOpen
	}

	if err := pace(ctx, s.limiter); err != nil {
		return Frame{}, err
	}

	for s.scanner.Scan() {
		s.line++
		raw := bytes.TrimSpace(s.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec replayLine
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Frame{}, fmt.Errorf("%w: %s line %d: %v", ErrNoFrame, s.path, s.line, err)
		}

		frame := Frame{
			Index:     s.index,
			Faces:     rec.Faces,
			Timestamp: time.Now(),
		}
		s.index++
		return frame, nil
	}

	if err := s.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	logging.Component("camera").WithField("frames", s.index).Debug("Replay exhausted")
	return Frame{}, io.EOF
}

// Info describes the recording.
func (s *ReplaySource) Info() DeviceInfo {
	return DeviceInfo{
		Kind:   KindReplay,
		Path:   s.path,
		Name:   "measurement replay",
		FPS:    s.fps,
		Frames: -1,
	}
}

// Close releases the underlying file.
func (s *ReplaySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
