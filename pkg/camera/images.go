package camera

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
)

// ImageSource runs a directory of JPEG frames through a FaceDetector in
// file name order.
type ImageSource struct {
	mu       sync.Mutex
	dir      string
	files    []string
	detector FaceDetector
	limiter  *rate.Limiter
	fps      int
	next     int
	closed   bool
}

// OpenImages lists the .jpg and .jpeg files in dir.
func OpenImages(dir string, detector FaceDetector, fps int) (*ImageSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrapOpenError(dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no JPEG frames in %s", ErrCameraNotFound, dir)
	}

	logging.Component("camera").WithFields(logging.Fields{
		"dir":    dir,
		"frames": len(files),
	}).Debug("Opened image source")

	src := &ImageSource{
		dir:      dir,
		files:    files,
		detector: detector,
		fps:      fps,
	}
	if fps > 0 {
		src.limiter = rate.NewLimiter(rate.Limit(fps), 1)
	}
	return src, nil
}

// Next detects faces in the next image, or returns io.EOF after the last.
func (s *ImageSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Frame{}, ErrCameraNotOpen
	}
	if s.next >= len(s.files) {
		return Frame{}, io.EOF
	}

	if err := pace(ctx, s.limiter); err != nil {
		return Frame{}, err
	}

	path := s.files[s.next]
	faces, err := s.detector.DetectFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %s: %v", ErrNoFrame, filepath.Base(path), err)
	}

	frame := Frame{
		Index:     s.next,
		Faces:     faces,
		Timestamp: time.Now(),
	}
	s.next++
	return frame, nil
}

// Info describes the image directory.
func (s *ImageSource) Info() DeviceInfo {
	return DeviceInfo{
		Kind:   KindImages,
		Path:   s.dir,
		Name:   "jpeg frames",
		FPS:    s.fps,
		Frames: len(s.files),
	}
}

// Close marks the source closed. The detector is owned by the caller.
func (s *ImageSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
