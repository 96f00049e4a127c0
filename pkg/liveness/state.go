package liveness

import "fmt"

// State is the progress of one challenge session. States are values:
// Apply never mutates its input.
type State struct {
	FaceDetected          bool
	MultipleFacesDetected bool
	Sequence              []Gesture
	Index                 int
	Progress              float64
	Complete              bool
}

// NewState returns the initial state for the given gesture order. A nil or
// empty sequence selects DefaultSequence.
func NewState(sequence []Gesture) State {
	if len(sequence) == 0 {
		sequence = DefaultSequence()
	}
	seq := make([]Gesture, len(sequence))
	copy(seq, sequence)
	return State{Sequence: seq}
}

// Current returns the gesture being evaluated. ok is false once complete.
func (s State) Current() (g Gesture, ok bool) {
	if s.Index < 0 || s.Index >= len(s.Sequence) {
		return "", false
	}
	return s.Sequence[s.Index], true
}

// Tracking reports whether a single framed face is being challenged.
func (s State) Tracking() bool {
	return s.FaceDetected && !s.Complete
}

// Event is an input to Apply. The set of events is closed.
type Event interface {
	isEvent()
}

// FaceCountChanged reports how many faces the detector found in a frame and,
// for a single face, whether it passed the framing gate.
type FaceCountChanged struct {
	Count  int
	Framed bool
}

// GestureSatisfied reports that the active gesture was performed.
type GestureSatisfied struct{}

// MultipleFacesDetected reports more than one face in frame.
type MultipleFacesDetected struct{}

func (FaceCountChanged) isEvent()      {}
func (GestureSatisfied) isEvent()      {}
func (MultipleFacesDetected) isEvent() {}

// Apply returns the state that follows s after ev. A complete state is
// returned unchanged. Apply panics on an event type it does not know.
func Apply(s State, ev Event) State {
	if s.Complete {
		switch ev.(type) {
		case FaceCountChanged, GestureSatisfied, MultipleFacesDetected:
			return s
		}
		panic(fmt.Sprintf("liveness: unexpected event %T", ev))
	}

	switch e := ev.(type) {
	case FaceCountChanged:
		switch {
		case e.Count > 1:
			return multipleFaces(s)
		case e.Count <= 0 || !e.Framed:
			return NewState(s.Sequence)
		case s.FaceDetected:
			return s
		default:
			next := s
			next.FaceDetected = true
			next.MultipleFacesDetected = false
			next.Progress = progressFor(next.Index, len(next.Sequence))
			return next
		}

	case MultipleFacesDetected:
		return multipleFaces(s)

	case GestureSatisfied:
		if !s.FaceDetected {
			return s
		}
		next := s
		next.Index++
		if next.Index >= len(next.Sequence) {
			next.Index = len(next.Sequence)
			next.Complete = true
			next.Progress = 100
			return next
		}
		next.Progress = progressFor(next.Index, len(next.Sequence))
		return next

	default:
		panic(fmt.Sprintf("liveness: unexpected event %T", ev))
	}
}

func multipleFaces(s State) State {
	next := s
	next.FaceDetected = false
	next.MultipleFacesDetected = true
	return next
}

// progressFor is the fill shown while gesture index of n is active. One
// extra slot is reserved so the bar only reaches 100 on completion.
func progressFor(index, n int) float64 {
	return 100 * float64(index+1) / float64(n+1)
}
