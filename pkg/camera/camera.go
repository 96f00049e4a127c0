// Package camera provides the frame sources that feed a liveness session.
// A source yields one Frame per captured image, already reduced to the
// faces found in it, so the challenge never touches pixels.
package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
)

// Source kinds accepted by Open.
const (
	KindReplay = "replay"
	KindImages = "images"
)

// Frame represents a single captured frame.
type Frame struct {
	Index     int
	Faces     []liveness.FaceMeasurement
	Timestamp time.Time
}

// DeviceInfo contains information about a frame source.
type DeviceInfo struct {
	Kind   string
	Path   string
	Name   string
	FPS    int
	Frames int // -1 when unknown up front
}

// Source defines the interface for frame sources. Next returns io.EOF once
// the source is exhausted.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Info() DeviceInfo
	Close() error
}

// FaceDetector turns an image file into face measurements.
type FaceDetector interface {
	DetectFile(path string) ([]liveness.FaceMeasurement, error)
}

// Options configures Open.
type Options struct {
	FPS      int
	Detector FaceDetector // required for KindImages
}

// ErrCameraNotFound is returned when the source path does not exist.
var ErrCameraNotFound = errors.New("camera device not found")

// ErrPermissionDenied is returned when the source cannot be read.
var ErrPermissionDenied = errors.New("camera permission denied")

// ErrCameraNotOpen is returned when reading from a closed source.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrNoFrame is returned when a frame could not be decoded.
var ErrNoFrame = errors.New("failed to capture frame")

// ErrUnknownKind is returned by Open for an unsupported source kind.
var ErrUnknownKind = errors.New("unknown source kind")

// Open opens a frame source of the given kind.
func Open(kind, path string, opts Options) (Source, error) {
	switch kind {
	case KindReplay, "":
		return OpenReplay(path, opts.FPS)
	case KindImages:
		if opts.Detector == nil {
			return nil, fmt.Errorf("images source requires a face detector")
		}
		return OpenImages(path, opts.Detector, opts.FPS)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// wrapOpenError maps file system errors to the camera sentinels.
func wrapOpenError(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrCameraNotFound, path)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
}

// pace blocks until lim allows the next frame. Unlike rate.Limiter.Wait it
// only ever fails with ctx.Err(), so callers can tell timeouts apart.
func pace(ctx context.Context, lim *rate.Limiter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if lim == nil {
		return nil
	}

	r := lim.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
