// Package liveness implements the guided liveness challenge.
// A user is asked to perform a fixed sequence of gestures in front of the
// camera; per-frame face measurements are checked against the active gesture
// and a small state machine tracks progress until every gesture is done.
package liveness

import (
	"errors"
	"fmt"
	"strings"
)

// Gesture is a single challenge step the user must perform.
type Gesture string

const (
	GestureBlink         Gesture = "BLINK"
	GestureTurnHeadLeft  Gesture = "TURN_HEAD_LEFT"
	GestureTurnHeadRight Gesture = "TURN_HEAD_RIGHT"
	GestureNod           Gesture = "NOD"
	GestureSmile         Gesture = "SMILE"
)

// Prompt texts shown next to the camera preview.
const (
	PromptNoFace         = "No face detected"
	PromptPerformActions = "Perform the following actions:"
	PromptMultipleFaces  = "There is more than one face"
	PromptComplete       = "Liveness check passed"
)

var gesturePrompts = map[Gesture]string{
	GestureBlink:         "Blink both eyes",
	GestureTurnHeadLeft:  "Turn head left",
	GestureTurnHeadRight: "Turn head right",
	GestureNod:           "Nod",
	GestureSmile:         "Smile",
}

// ErrUnknownGesture is returned when a gesture name cannot be parsed.
var ErrUnknownGesture = errors.New("unknown gesture")

// ErrEmptySequence is returned when a challenge has no gestures.
var ErrEmptySequence = errors.New("gesture sequence is empty")

// DefaultSequence returns the default gesture order.
func DefaultSequence() []Gesture {
	return []Gesture{
		GestureBlink,
		GestureTurnHeadLeft,
		GestureTurnHeadRight,
		GestureNod,
		GestureSmile,
	}
}

// AllGestures returns every supported gesture in display order.
func AllGestures() []Gesture {
	return DefaultSequence()
}

// Prompt returns the instruction text for the gesture.
func (g Gesture) Prompt() string {
	if p, ok := gesturePrompts[g]; ok {
		return p
	}
	return string(g)
}

// Valid reports whether g is a supported gesture.
func (g Gesture) Valid() bool {
	_, ok := gesturePrompts[g]
	return ok
}

func (g Gesture) String() string {
	return string(g)
}

// ParseGesture parses a gesture name. Matching is case-insensitive and
// accepts dashes in place of underscores ("turn-head-left").
func ParseGesture(name string) (Gesture, error) {
	g := Gesture(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_")))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownGesture, name)
	}
	return g, nil
}

// ParseSequence parses an ordered list of gesture names.
func ParseSequence(names []string) ([]Gesture, error) {
	if len(names) == 0 {
		return nil, ErrEmptySequence
	}
	seq := make([]Gesture, 0, len(names))
	for _, name := range names {
		g, err := ParseGesture(name)
		if err != nil {
			return nil, err
		}
		seq = append(seq, g)
	}
	return seq, nil
}
