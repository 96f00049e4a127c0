package liveness

import "math"

// Thresholds holds the per-gesture decision limits.
type Thresholds struct {
	// BlinkMaxEyeOpen is the eye-open probability at or below which an
	// eye counts as closed.
	BlinkMaxEyeOpen float64
	// TurnLeftMinYaw is the yaw at or above which the head counts as turned left.
	TurnLeftMinYaw float64
	// TurnRightMaxYaw is the yaw at or below which the head counts as turned right.
	TurnRightMaxYaw float64
	// NodMinDiff is the minimum gap between the current absolute roll and
	// the recent mean absolute roll.
	NodMinDiff float64
	// NodWindow is the roll history length a nod needs before it is judged.
	NodWindow int
	// SmileMinProbability is the smiling probability at or above which the
	// user counts as smiling.
	SmileMinProbability float64
}

// DefaultThresholds returns the standard gesture limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BlinkMaxEyeOpen:     0.4,
		TurnLeftMinYaw:      30,
		TurnRightMaxYaw:     -30,
		NodMinDiff:          1,
		NodWindow:           DefaultNodWindow,
		SmileMinProbability: 0.8,
	}
}

// Evaluator decides whether a measurement satisfies a gesture.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(t Thresholds) *Evaluator {
	if t.NodWindow < 2 {
		t.NodWindow = DefaultNodWindow
	}
	return &Evaluator{thresholds: t}
}

// Thresholds returns the limits the evaluator applies.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate reports whether m satisfies gesture g. For GestureNod the roll
// angle of m is pushed into history first, so history must be the window
// owned by the current nod step.
func (e *Evaluator) Evaluate(g Gesture, m FaceMeasurement, history *RollHistory) bool {
	switch g {
	case GestureBlink:
		return e.Blink(m)
	case GestureTurnHeadLeft:
		return e.TurnHeadLeft(m)
	case GestureTurnHeadRight:
		return e.TurnHeadRight(m)
	case GestureNod:
		return e.Nod(m, history)
	case GestureSmile:
		return e.Smile(m)
	default:
		return false
	}
}

// Blink is satisfied when both eyes are closed.
func (e *Evaluator) Blink(m FaceMeasurement) bool {
	leftClosed := m.LeftEyeOpenProbability <= e.thresholds.BlinkMaxEyeOpen
	rightClosed := m.RightEyeOpenProbability <= e.thresholds.BlinkMaxEyeOpen
	return leftClosed && rightClosed
}

// TurnHeadLeft is satisfied when the yaw reaches the left limit.
func (e *Evaluator) TurnHeadLeft(m FaceMeasurement) bool {
	return m.YawAngle >= e.thresholds.TurnLeftMinYaw
}

// TurnHeadRight is satisfied when the yaw reaches the right limit.
func (e *Evaluator) TurnHeadRight(m FaceMeasurement) bool {
	return m.YawAngle <= e.thresholds.TurnRightMaxYaw
}

// Nod records the roll angle and, once the window is full, compares the
// current absolute roll against the mean absolute roll of the older entries.
func (e *Evaluator) Nod(m FaceMeasurement, history *RollHistory) bool {
	if history == nil {
		return false
	}
	history.Push(m.RollAngle)
	if !history.Full() {
		return false
	}
	mean, ok := history.MeanAbsExceptLatest()
	if !ok {
		return false
	}
	diff := math.Abs(mean - math.Abs(m.RollAngle))
	return diff >= e.thresholds.NodMinDiff
}

// Smile is satisfied when the smiling probability reaches the limit.
func (e *Evaluator) Smile(m FaceMeasurement) bool {
	return m.SmilingProbability >= e.thresholds.SmileMinProbability
}
