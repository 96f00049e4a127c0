package liveness

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
)

// Options configures a Challenge.
type Options struct {
	SessionID  string
	Sequence   []Gesture
	Thresholds Thresholds
	Viewport   Viewport
}

// DefaultOptions returns the default gesture order, thresholds and viewport.
func DefaultOptions() Options {
	return Options{
		Sequence:   DefaultSequence(),
		Thresholds: DefaultThresholds(),
		Viewport:   DefaultViewport(),
	}
}

// Snapshot is what the presentation layer renders after each frame.
type Snapshot struct {
	SessionID             string
	FaceDetected          bool
	MultipleFacesDetected bool
	Status                string
	Instruction           string
	Gesture               Gesture
	GesturePrompt         string
	Index                 int
	Total                 int
	Progress              float64
	Complete              bool
}

// Challenge feeds per-frame face measurements through the framing gate and
// the evaluator of the active gesture, and keeps the resulting State.
// It expects one frame at a time from a single caller.
type Challenge struct {
	id        string
	evaluator *Evaluator
	viewport  Viewport
	state     State
	history   *RollHistory
	log       *logrus.Entry

	done     chan struct{}
	doneOnce sync.Once
}

// NewChallenge creates a challenge in its initial state.
func NewChallenge(opts Options) (*Challenge, error) {
	seq := opts.Sequence
	if len(seq) == 0 {
		seq = DefaultSequence()
	}
	for _, g := range seq {
		if !g.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGesture, string(g))
		}
	}

	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	evaluator := NewEvaluator(opts.Thresholds)
	return &Challenge{
		id:        id,
		evaluator: evaluator,
		viewport:  opts.Viewport,
		state:     NewState(seq),
		history:   NewRollHistory(evaluator.Thresholds().NodWindow),
		log:       logging.Component("challenge").WithField("session_id", id),
		done:      make(chan struct{}),
	}, nil
}

// ID returns the session identifier.
func (c *Challenge) ID() string {
	return c.id
}

// State returns the current state.
func (c *Challenge) State() State {
	return c.state
}

// Done is closed once every gesture has been performed.
func (c *Challenge) Done() <-chan struct{} {
	return c.done
}

// HandleFaces processes the faces found in one frame and returns the
// resulting snapshot.
func (c *Challenge) HandleFaces(faces []FaceMeasurement) Snapshot {
	if c.state.Complete {
		return c.Snapshot()
	}

	switch {
	case len(faces) > 1:
		c.dispatch(MultipleFacesDetected{})
		return c.Snapshot()
	case len(faces) == 0:
		c.dispatch(FaceCountChanged{Count: 0})
		return c.Snapshot()
	}

	face := faces[0]
	if !c.viewport.Contains(face.Bounds) {
		c.dispatch(FaceCountChanged{Count: 1, Framed: false})
		return c.Snapshot()
	}
	if !c.state.FaceDetected {
		c.dispatch(FaceCountChanged{Count: 1, Framed: true})
	}

	gesture, ok := c.state.Current()
	if !ok {
		return c.Snapshot()
	}
	if c.evaluator.Evaluate(gesture, face, c.history) {
		c.dispatch(GestureSatisfied{})
	}
	return c.Snapshot()
}

// Apply feeds a single event to the state machine. It is exposed for
// callers that run their own detection and only report outcomes.
func (c *Challenge) Apply(ev Event) Snapshot {
	c.dispatch(ev)
	return c.Snapshot()
}

func (c *Challenge) dispatch(ev Event) {
	prev := c.state
	next := Apply(prev, ev)
	c.state = next

	// The nod window belongs to a single step. A reset or a step change
	// starts a fresh one; the multi-face branch keeps it.
	if next.Index != prev.Index || resets(ev) {
		c.history.Reset()
	}

	if next.Complete && !prev.Complete {
		c.log.WithField("gestures", len(next.Sequence)).Info("Liveness challenge complete")
		c.doneOnce.Do(func() { close(c.done) })
		return
	}

	if next.Index != prev.Index {
		c.log.WithFields(logrus.Fields{
			"gesture":  prev.Sequence[prev.Index],
			"index":    next.Index,
			"progress": next.Progress,
		}).Debug("Gesture satisfied")
	}
	if prev.FaceDetected != next.FaceDetected || prev.MultipleFacesDetected != next.MultipleFacesDetected {
		c.log.WithFields(logrus.Fields{
			"face_detected":  next.FaceDetected,
			"multiple_faces": next.MultipleFacesDetected,
			"index":          next.Index,
			"progress":       next.Progress,
		}).Debug("Face status changed")
	}
}

func resets(ev Event) bool {
	e, ok := ev.(FaceCountChanged)
	return ok && (e.Count <= 0 || (e.Count == 1 && !e.Framed))
}

// Snapshot returns the current presentation values.
func (c *Challenge) Snapshot() Snapshot {
	s := c.state
	snap := Snapshot{
		SessionID:             c.id,
		FaceDetected:          s.FaceDetected,
		MultipleFacesDetected: s.MultipleFacesDetected,
		Index:                 s.Index,
		Total:                 len(s.Sequence),
		Progress:              s.Progress,
		Complete:              s.Complete,
	}

	switch {
	case s.Complete:
		snap.Status = PromptComplete
		return snap
	case s.MultipleFacesDetected:
		snap.Status = PromptMultipleFaces
	case !s.FaceDetected:
		snap.Status = PromptNoFace
	}

	if s.FaceDetected {
		snap.Instruction = PromptPerformActions
		if g, ok := s.Current(); ok {
			snap.Gesture = g
			snap.GesturePrompt = g.Prompt()
		}
	}
	return snap
}
