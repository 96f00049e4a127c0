// Package recognition provides face detection for the images source.
// It uses dlib/go-face for detection and 5-point landmarks, and derives the
// head pose the liveness challenge checks from those landmarks.
package recognition

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"math"
	"os"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
)

// FaceEngine is the part of go-face's recognizer the detector uses.
type FaceEngine interface {
	Recognize(imgData []byte) ([]face.Face, error)
	Close()
}

// ErrModelNotLoaded is returned when models are not loaded.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// ErrInvalidImage is returned when the frame is not a decodable JPEG.
var ErrInvalidImage = errors.New("invalid image")

// Options configures a Detector.
type Options struct {
	// Viewport is the preview the image is mapped onto. The whole image is
	// scaled into the PreviewSize square.
	Viewport liveness.Viewport
	// Mirror is set when frames are mirrored (selfie view). Angles are
	// negated so a turn to the user's left stays positive.
	Mirror bool
}

// Detector turns JPEG frames into face measurements using dlib via go-face.
type Detector struct {
	engine    FaceEngine
	factory   func(path string) (FaceEngine, error)
	modelPath string
	loaded    bool
	mu        sync.RWMutex
	opts      Options
}

// NewDetector creates a new Detector instance.
func NewDetector(opts Options) *Detector {
	if opts.Viewport == (liveness.Viewport{}) {
		opts.Viewport = liveness.DefaultViewport()
	}
	return &Detector{
		factory: newDlibEngine,
		opts:    opts,
	}
}

func newDlibEngine(path string) (FaceEngine, error) {
	rec, err := face.NewRecognizer(path)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// LoadModels loads the dlib models from the specified path.
// The path should contain:
// - shape_predictor_5_face_landmarks.dat
// - dlib_face_recognition_resnet_model_v1.dat
// - mmod_human_face_detector.dat
func (d *Detector) LoadModels(modelPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return nil
	}

	log := logging.Component("recognition")
	log.Infof("Loading face detection models from: %s", modelPath)

	engine, err := d.factory(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	d.engine = engine
	d.modelPath = modelPath
	d.loaded = true

	log.Info("Face detection models loaded successfully")
	return nil
}

// IsLoaded returns true if models are loaded.
func (d *Detector) IsLoaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// Close releases the detector resources.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.engine != nil {
		d.engine.Close()
		d.engine = nil
	}
	d.loaded = false
	return nil
}

// Detect finds every face in a JPEG frame. A frame without faces yields an
// empty slice, not an error.
func (d *Detector) Detect(imageData []byte) ([]liveness.FaceMeasurement, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.loaded {
		return nil, ErrModelNotLoaded
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	faces, err := d.engine.Recognize(imageData)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	result := make([]liveness.FaceMeasurement, 0, len(faces))
	for _, f := range faces {
		result = append(result, d.measure(f, cfg.Width, cfg.Height))
	}

	logging.Component("recognition").Debugf("Detected %d face(s) in image", len(result))
	return result, nil
}

// DetectFile reads a JPEG file and detects the faces in it.
func (d *Detector) DetectFile(path string) ([]liveness.FaceMeasurement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return d.Detect(data)
}

func (d *Detector) measure(f face.Face, width, height int) liveness.FaceMeasurement {
	m := liveness.FaceMeasurement{
		Bounds: d.toPreview(f.Rectangle, width, height),
		// The 5-point model has no eye or smile classifiers.
		LeftEyeOpenProbability:  1,
		RightEyeOpenProbability: 1,
		SmilingProbability:      0,
	}
	m.RollAngle, m.YawAngle = HeadPose(f.Shapes, d.opts.Mirror)
	return m
}

// toPreview scales an image rectangle into the preview square.
func (d *Detector) toPreview(r image.Rectangle, width, height int) liveness.BoundingBox {
	vp := d.opts.Viewport
	sx := vp.PreviewSize / float64(width)
	sy := vp.PreviewSize / float64(height)
	left := (vp.WindowWidth - vp.PreviewSize) / 2

	return liveness.BoundingBox{
		X:      left + float64(r.Min.X)*sx,
		Y:      vp.PreviewTopMargin + float64(r.Min.Y)*sy,
		Width:  float64(r.Dx()) * sx,
		Height: float64(r.Dy()) * sy,
	}
}

// HeadPose estimates roll and yaw in degrees from dlib's 5-point landmarks
// (two corners per eye, then the base of the nose). Roll is the tilt of the
// eye line. Yaw is the asin of the nose offset from the eye midpoint in
// units of the inter-eye distance; positive when the nose moves towards the
// right of an unmirrored image. Fewer than five points yields 0, 0.
func HeadPose(shapes []image.Point, mirror bool) (roll, yaw float64) {
	if len(shapes) < 5 {
		return 0, 0
	}

	ax, ay := midpoint(shapes[0], shapes[1])
	bx, by := midpoint(shapes[2], shapes[3])
	if ax > bx {
		ax, ay, bx, by = bx, by, ax, ay
	}

	dx, dy := bx-ax, by-ay
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return 0, 0
	}

	roll = math.Atan2(dy, dx) * 180 / math.Pi

	// Offset of the nose along the eye line.
	nx := float64(shapes[4].X) - (ax+bx)/2
	ny := float64(shapes[4].Y) - (ay+by)/2
	offset := (nx*dx + ny*dy) / (dist * dist)
	offset = math.Max(-1, math.Min(1, offset))
	yaw = math.Asin(offset) * 180 / math.Pi

	if mirror {
		roll, yaw = -roll, -yaw
	}
	return roll, yaw
}

func midpoint(a, b image.Point) (float64, float64) {
	return float64(a.X+b.X) / 2, float64(a.Y+b.Y) / 2
}
